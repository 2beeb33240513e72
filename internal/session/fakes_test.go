package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/dictate/internal/audio"
	"github.com/rbright/dictate/internal/fsm"
)

type fakeStream struct {
	cb       audio.Callback
	startErr error

	started atomic.Int32
	closed  atomic.Int32
}

func (s *fakeStream) Start() error {
	s.started.Add(1)
	return s.startErr
}

func (s *fakeStream) Close() error {
	s.closed.Add(1)
	return nil
}

// emit plays one hardware buffer through the registered callback.
func (s *fakeStream) emit(samples []float32) {
	s.cb(samples)
}

type fakeBackend struct {
	openErr  error
	startErr error

	mu      sync.Mutex
	streams []*fakeStream
	configs []audio.StreamConfig
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Devices(context.Context) ([]audio.Device, error) {
	return []audio.Device{{Index: 0, ID: "fake-mic", Available: true, Default: true}}, nil
}

func (b *fakeBackend) Open(_ context.Context, cfg audio.StreamConfig, cb audio.Callback) (audio.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configs = append(b.configs, cfg)
	if b.openErr != nil {
		return nil, b.openErr
	}
	stream := &fakeStream{cb: cb, startErr: b.startErr}
	b.streams = append(b.streams, stream)
	return stream, nil
}

func (b *fakeBackend) lastStream(t *testing.T) *fakeStream {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.streams) == 0 {
		t.Fatal("no stream opened")
	}
	return b.streams[len(b.streams)-1]
}

type fakeHandoff struct {
	text  string
	err   error
	block chan struct{}

	calls   atomic.Int32
	mu      sync.Mutex
	samples [][]float32
	rates   []int
}

func (h *fakeHandoff) Transcribe(_ context.Context, samples []float32, sampleRate int) (string, error) {
	h.calls.Add(1)
	h.mu.Lock()
	h.samples = append(h.samples, append([]float32(nil), samples...))
	h.rates = append(h.rates, sampleRate)
	h.mu.Unlock()
	if h.block != nil {
		<-h.block
	}
	return h.text, h.err
}

func (h *fakeHandoff) lastSamples() []float32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) == 0 {
		return nil
	}
	return h.samples[len(h.samples)-1]
}

type fakeObserver struct {
	progress      atomic.Int32
	completed     atomic.Int32
	failed        atomic.Int32
	lifecycleEnds atomic.Int32
	maxLevel      atomic.Int32

	mu     sync.Mutex
	text   string
	err    error
	events []string
	onEnd  func()
}

func (o *fakeObserver) Progress(level int) {
	o.progress.Add(1)
	for {
		current := o.maxLevel.Load()
		if int32(level) <= current || o.maxLevel.CompareAndSwap(current, int32(level)) {
			return
		}
	}
}

func (o *fakeObserver) Completed(text string) {
	o.completed.Add(1)
	o.mu.Lock()
	o.text = text
	o.events = append(o.events, "completed")
	o.mu.Unlock()
}

func (o *fakeObserver) Failed(err error) {
	o.failed.Add(1)
	o.mu.Lock()
	o.err = err
	o.events = append(o.events, "failed")
	o.mu.Unlock()
}

func (o *fakeObserver) LifecycleEnd() {
	o.lifecycleEnds.Add(1)
	o.mu.Lock()
	o.events = append(o.events, "lifecycle_end")
	onEnd := o.onEnd
	o.mu.Unlock()
	if onEnd != nil {
		onEnd()
	}
}

func (o *fakeObserver) lastErr() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

func (o *fakeObserver) eventLog() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func testOptions() Options {
	return Options{Device: 0, SampleRate: 16000, QueueBlocks: 16, PollInterval: 5 * time.Millisecond}
}

func constant(value float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func waitForState(t *testing.T, sess *Session, desired fsm.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess.State() == desired {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s (current=%s)", desired, sess.State())
}

func waitResult(t *testing.T, sess *Session) (Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	res, err := sess.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("session %s did not finish (state=%s)", sess.ID(), sess.State())
	}
	return res, err
}
