// Package indicator renders a live input level meter and elapsed timer on a terminal.
package indicator

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/dictate/internal/config"
)

const (
	barWidth       = 20
	defaultRefresh = 100 * time.Millisecond
	clearLine      = "\r\033[K"
)

// Terminal is a session observer that draws the meter off the audio callback.
// Progress only stores the latest level; a ticker goroutine does the writing.
type Terminal struct {
	out      io.Writer
	refresh  time.Duration
	messages messages
	logger   *slog.Logger
	now      func() time.Time

	level   atomic.Int64
	running atomic.Bool

	mu      sync.Mutex
	started time.Time
	stop    chan struct{}
	done    chan struct{}
}

// NewTerminal creates a meter writing to out. Disabled configs return nil.
func NewTerminal(out io.Writer, cfg config.IndicatorConfig, logger *slog.Logger) *Terminal {
	if !cfg.Enable || out == nil {
		return nil
	}
	refresh := time.Duration(cfg.RefreshMS) * time.Millisecond
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Terminal{
		out:      out,
		refresh:  refresh,
		messages: indicatorMessagesFromEnv(),
		logger:   logger,
		now:      time.Now,
	}
}

// Progress records the latest level and starts rendering on the first block.
func (t *Terminal) Progress(level int) {
	t.level.Store(int64(level))
	if t.running.CompareAndSwap(false, true) {
		t.begin()
	}
}

// Completed clears the meter and reports success.
func (t *Terminal) Completed(string) {
	t.finish(t.messages.done)
}

// Failed clears the meter and reports the error.
func (t *Terminal) Failed(err error) {
	text := t.messages.errorText
	if err != nil {
		text = fmt.Sprintf("%s: %v", text, err)
	}
	t.finish(text)
}

// LifecycleEnd stops rendering and rearms the meter for the next session.
func (t *Terminal) LifecycleEnd() {
	t.halt()
	t.level.Store(0)
	t.running.Store(false)
}

// Level reports the most recently observed level.
func (t *Terminal) Level() int {
	return int(t.level.Load())
}

func (t *Terminal) begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return
	}
	t.started = t.now()
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.loop(t.stop, t.done)
}

func (t *Terminal) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.refresh)
	defer ticker.Stop()

	t.draw()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.draw()
		}
	}
}

func (t *Terminal) draw() {
	t.mu.Lock()
	elapsed := t.now().Sub(t.started)
	t.mu.Unlock()
	t.write(clearLine + renderLine(t.messages, t.Level(), elapsed))
}

func (t *Terminal) halt() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (t *Terminal) finish(text string) {
	t.halt()
	t.write(clearLine + text + "\n")
}

func (t *Terminal) write(s string) {
	if _, err := io.WriteString(t.out, s); err != nil {
		t.logger.Debug("indicator write failed", "error", err.Error())
	}
}

// renderLine formats one meter frame, e.g. "● Recording [#####---------------]  25  Time 00:03".
func renderLine(msg messages, level int, elapsed time.Duration) string {
	level = min(max(level, 0), 100)
	filled := level * barWidth / 100
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)

	if elapsed < 0 {
		elapsed = 0
	}
	secs := int(elapsed / time.Second)
	return fmt.Sprintf("● %s [%s] %3d  %s %02d:%02d", msg.recording, bar, level, msg.elapsed, secs/60, secs%60)
}
