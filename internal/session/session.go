// Package session coordinates one microphone capture from start to transcript.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/dictate/internal/audio"
	"github.com/rbright/dictate/internal/fsm"
	"github.com/rbright/dictate/internal/metrics"
)

// DefaultPollInterval bounds how long the consumer waits for each block.
const DefaultPollInterval = 100 * time.Millisecond

// Handoff is the synchronous transcription step run after draining.
type Handoff interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

// HandoffFunc adapts a function to Handoff.
type HandoffFunc func(ctx context.Context, samples []float32, sampleRate int) (string, error)

func (f HandoffFunc) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	return f(ctx, samples, sampleRate)
}

// Options selects the device and buffering for one session.
type Options struct {
	Device          int
	SampleRate      int
	FramesPerBuffer int
	QueueBlocks     int
	PollInterval    time.Duration
	// DumpDir enables a WAV copy of each utterance when non-empty.
	DumpDir string
}

func (o Options) normalize() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = audio.DefaultSampleRate
	}
	if o.FramesPerBuffer <= 0 {
		o.FramesPerBuffer = audio.DefaultFramesPerBuffer
	}
	if o.QueueBlocks <= 0 {
		o.QueueBlocks = audio.DefaultQueueBlocks
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// Result is the terminal outcome of one session.
type Result struct {
	ID                   string
	State                fsm.State
	Transcript           string
	Err                  error
	Cancelled            bool
	Device               int
	SampleRate           int
	Samples              int
	Blocks               int
	Dropped              int64
	DumpPath             string
	StartedAt            time.Time
	StoppedAt            time.Time
	FinishedAt           time.Time
	TranscriptionLatency time.Duration
}

// Duration reports the captured audio length.
func (r Result) Duration() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(r.Samples) * time.Second / time.Duration(r.SampleRate)
}

// Session owns one capture stream, its queue, and its consumer goroutine.
type Session struct {
	id       string
	opts     Options
	backend  audio.Backend
	handoff  Handoff
	observer Observer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	release  func(*Session)

	mu        sync.RWMutex
	state     fsm.State
	stream    audio.Stream
	startedAt time.Time
	stoppedAt time.Time
	result    Result

	started   atomic.Bool
	running   atomic.Bool
	cancelled atomic.Bool
	queue     *audio.Queue

	closeOnce sync.Once
	done      chan struct{}
}

// Config wires a Session's collaborators.
type Config struct {
	Backend  audio.Backend
	Handoff  Handoff
	Observer Observer
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// New creates an idle session.
func New(cfg Config, opts Options) *Session {
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Handoff == nil {
		cfg.Handoff = HandoffFunc(func(context.Context, []float32, int) (string, error) {
			return "", errNoHandoff
		})
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		opts:     opts.normalize(),
		backend:  cfg.Backend,
		handoff:  cfg.Handoff,
		observer: cfg.Observer,
		logger:   cfg.Logger.With("session_id", id),
		metrics:  cfg.Metrics,
		state:    fsm.StateIdle,
		done:     make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// State returns the current FSM state snapshot.
func (s *Session) State() fsm.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Done is closed once LifecycleEnd has been delivered.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// transition applies one FSM event to the session state.
func (s *Session) transition(event fsm.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(event)
}

func (s *Session) transitionLocked(event fsm.Event) error {
	next, err := fsm.Transition(s.state, event)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// Start opens and starts the capture stream, then spawns the consumer.
// Device failures return *audio.DeviceError and leave the session idle.
// Cancelling ctx cancels the capture; it does not interrupt transcription.
func (s *Session) Start(ctx context.Context) error {
	if s.backend == nil {
		return audio.NewDeviceError(s.opts.Device, "open", errors.New("no audio backend configured"))
	}
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("session %s already started", s.id)
	}

	s.queue = audio.NewQueue(s.opts.QueueBlocks)
	stream, err := s.backend.Open(ctx, audio.StreamConfig{
		Device:          s.opts.Device,
		SampleRate:      s.opts.SampleRate,
		FramesPerBuffer: s.opts.FramesPerBuffer,
	}, s.onSamples)
	if err != nil {
		return audio.NewDeviceError(s.opts.Device, "open", err)
	}

	s.mu.Lock()
	s.stream = stream
	if err := s.transitionLocked(fsm.EventStart); err != nil {
		s.mu.Unlock()
		_ = stream.Close()
		return err
	}
	s.startedAt = time.Now()
	s.running.Store(true)
	s.mu.Unlock()

	if err := stream.Start(); err != nil {
		s.running.Store(false)
		_ = stream.Close()
		s.mu.Lock()
		s.state = fsm.StateIdle
		s.stream = nil
		s.mu.Unlock()
		return audio.NewDeviceError(s.opts.Device, "start", err)
	}

	s.metrics.SessionStarted()
	s.logger.Info("recording started",
		"backend", s.backend.Name(),
		"device", s.opts.Device,
		"sample_rate", s.opts.SampleRate,
		"frames_per_buffer", s.opts.FramesPerBuffer,
		"queue_blocks", s.opts.QueueBlocks,
	)

	go s.run(context.WithoutCancel(ctx))
	go func() {
		select {
		case <-ctx.Done():
			s.Cancel()
		case <-s.done:
		}
	}()
	return nil
}

// onSamples runs on the backend's callback context. It must not block.
func (s *Session) onSamples(in []float32) {
	if !s.running.Load() {
		return
	}

	level := audio.Level(in)
	s.metrics.SetLevel(level)
	s.progress(level)
	s.queue.Push(audio.NewBlock(in))
}

// progress keeps a misbehaving observer from unwinding the audio thread.
func (s *Session) progress(level int) {
	defer func() {
		_ = recover()
	}()
	s.observer.Progress(level)
}

// Stop ends recording and lets the consumer drain and transcribe. It never
// blocks and reports whether this call initiated the stop.
func (s *Session) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != fsm.StateRecording {
		return false
	}
	_ = s.transitionLocked(fsm.EventStop)
	s.stoppedAt = time.Now()
	s.running.Store(false)
	return true
}

// Cancel ends recording and discards the utterance. It has no effect once
// transcription has begun.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case fsm.StateRecording:
		s.cancelled.Store(true)
		_ = s.transitionLocked(fsm.EventStop)
		s.stoppedAt = time.Now()
		s.running.Store(false)
		return true
	case fsm.StateDraining:
		return !s.cancelled.Swap(true)
	default:
		return false
	}
}

// Wait blocks until LifecycleEnd was delivered and returns the outcome.
// The error is the session's terminal error, or ctx.Err if ctx ends first.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.result, s.result.Err
	case <-ctx.Done():
		return Result{ID: s.id, State: s.State()}, ctx.Err()
	}
}

// run is the consumer goroutine. The deferred finish guarantees exactly one
// LifecycleEnd on every exit path.
func (s *Session) run(ctx context.Context) {
	result := Result{
		ID:         s.id,
		Device:     s.opts.Device,
		SampleRate: s.opts.SampleRate,
	}
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("capture session panic: %v", r)
			result.Transcript = ""
		}
		s.finish(result)
	}()

	samples, blocks := s.collect()
	result.Samples = len(samples)
	result.Blocks = blocks
	result.Dropped = s.queue.Dropped()
	if result.Dropped > 0 {
		s.logger.Warn("capture queue overflowed", "dropped_blocks", result.Dropped)
	}
	result.DumpPath = s.dump(samples)

	switch {
	case len(samples) == 0:
		result.Err = ErrEmptyRecording
		return
	case s.cancelled.Load():
		result.Cancelled = true
		result.Err = ErrCancelled
		return
	}

	if err := s.transition(fsm.EventDrained); err != nil {
		result.Err = err
		return
	}

	started := time.Now()
	text, err := s.handoff.Transcribe(ctx, samples, s.opts.SampleRate)
	result.TranscriptionLatency = time.Since(started)
	if err != nil {
		result.Err = err
		return
	}
	result.Transcript = text
}

// collect polls while recording, then drains around stream close to absorb
// blocks pushed by callbacks already in flight when Stop ran.
func (s *Session) collect() ([]float32, int) {
	var samples []float32
	blocks := 0
	add := func(b audio.Block) {
		samples = append(samples, b.Samples...)
		blocks++
	}

	for s.running.Load() {
		if b, ok := s.queue.PopWithTimeout(s.opts.PollInterval); ok {
			add(b)
		}
	}

	s.drain(add)
	s.closeStream()
	s.drain(add)
	return samples, blocks
}

func (s *Session) drain(add func(audio.Block)) {
	for i := 0; i < s.queue.Cap(); i++ {
		b, ok := s.queue.TryPop()
		if !ok {
			return
		}
		add(b)
	}
}

func (s *Session) closeStream() {
	s.closeOnce.Do(func() {
		s.mu.RLock()
		stream := s.stream
		s.mu.RUnlock()
		if stream == nil {
			return
		}
		if err := stream.Close(); err != nil {
			s.logger.Warn("close capture stream", "error", err.Error())
		}
	})
}

func (s *Session) dump(samples []float32) string {
	if s.opts.DumpDir == "" || len(samples) == 0 {
		return ""
	}
	name := fmt.Sprintf("audio-%s-%s.wav", time.Now().Format("20060102-150405.000"), s.id[:8])
	path := filepath.Join(s.opts.DumpDir, name)
	if err := audio.WriteWAVFile(path, samples, s.opts.SampleRate); err != nil {
		s.logger.Warn("unable to write debug audio dump", "error", err.Error())
		return ""
	}
	return path
}

// finish records the outcome, notifies the observer, releases the controller
// slot, then emits LifecycleEnd and returns the session to idle.
func (s *Session) finish(result Result) {
	s.closeStream()
	s.running.Store(false)

	event := fsm.EventTranscribed
	if result.Err != nil {
		event = fsm.EventFail
	}

	s.mu.Lock()
	if err := s.transitionLocked(event); err != nil {
		// The consumer can only fail out of an active state; anything else is a bug.
		s.logger.Error("unexpected session transition", "state", s.state, "event", event, "error", err.Error())
		s.state = fsm.StateFailed
		if result.Err == nil {
			result.Err = err
		}
	}
	result.State = s.state
	result.StartedAt = s.startedAt
	result.StoppedAt = s.stoppedAt
	result.FinishedAt = time.Now()
	s.result = result
	s.mu.Unlock()

	s.metrics.SessionEnded(outcome(result), result.FinishedAt.Sub(result.StartedAt), result.Samples, result.Dropped)
	s.logResult(result)

	if result.Err != nil {
		notify(s.logger, "failed", func() { s.observer.Failed(result.Err) })
	} else {
		notify(s.logger, "completed", func() { s.observer.Completed(result.Transcript) })
	}

	if s.release != nil {
		s.release(s)
	}
	notify(s.logger, "lifecycle_end", s.observer.LifecycleEnd)

	_ = s.transition(fsm.EventReset)
	close(s.done)
}

func (s *Session) logResult(result Result) {
	attrs := []any{
		"state", string(result.State),
		"samples", result.Samples,
		"blocks", result.Blocks,
		"dropped_blocks", result.Dropped,
		"audio_ms", result.Duration().Milliseconds(),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"transcription_ms", result.TranscriptionLatency.Milliseconds(),
		"transcript_chars", len(result.Transcript),
	}
	if result.DumpPath != "" {
		attrs = append(attrs, "dump_path", result.DumpPath)
	}
	if result.Err != nil {
		attrs = append(attrs, "error", result.Err.Error())
		s.logger.Error("session failed", attrs...)
		return
	}
	s.logger.Info("session completed", attrs...)
}

func outcome(result Result) string {
	switch {
	case result.Err == nil:
		return metrics.OutcomeCompleted
	case errors.Is(result.Err, ErrEmptyRecording):
		return metrics.OutcomeEmpty
	case errors.Is(result.Err, ErrCancelled):
		return metrics.OutcomeCancelled
	default:
		return metrics.OutcomeFailed
	}
}
