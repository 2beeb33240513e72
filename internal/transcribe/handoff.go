package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/dictate/internal/metrics"
	"github.com/rbright/dictate/internal/transcript"
)

// HandoffOptions configures one long-lived Handoff.
type HandoffOptions struct {
	Backend  string
	Language string
	// Timeout bounds each call; zero disables it. The backend call is not
	// preempted, its result is discarded once the deadline passes.
	Timeout  time.Duration
	Assembly transcript.Options
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Handoff is the session's single synchronous call into the transcriber.
type Handoff struct {
	transcriber Transcriber
	opts        HandoffOptions
}

// NewHandoff wraps a long-lived transcriber shared across sessions.
func NewHandoff(t Transcriber, opts HandoffOptions) *Handoff {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Backend == "" {
		if named, ok := t.(interface{ Name() string }); ok {
			opts.Backend = named.Name()
		} else {
			opts.Backend = "custom"
		}
	}
	return &Handoff{transcriber: t, opts: opts}
}

type transcribeResult struct {
	text string
	err  error
}

// Transcribe runs the backend and normalizes its text. Every failure, including
// a panic inside the backend, comes back as *TranscriptionError.
func (h *Handoff) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if h == nil || h.transcriber == nil {
		return "", &TranscriptionError{Err: ErrBackendUnavailable}
	}

	callCtx := ctx
	if h.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, h.opts.Timeout)
		defer cancel()
	}

	started := time.Now()
	done := make(chan transcribeResult, 1)
	go func() {
		text, err := h.call(callCtx, samples, sampleRate)
		done <- transcribeResult{text: text, err: err}
	}()

	var res transcribeResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		err := callCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("transcription timed out after %s", h.opts.Timeout)
		}
		res = transcribeResult{err: err}
	}
	elapsed := time.Since(started)

	if res.err == nil {
		res.text = transcript.Assemble([]string{res.text}, h.opts.Assembly)
		if res.text == "" {
			res.err = ErrEmptyTranscript
		}
	}

	h.opts.Metrics.RecordTranscription(h.opts.Backend, res.err, elapsed)
	if res.err != nil {
		h.opts.Logger.Error("transcription failed",
			"backend", h.opts.Backend,
			"samples", len(samples),
			"duration_ms", elapsed.Milliseconds(),
			"error", res.err.Error(),
		)
		var terr *TranscriptionError
		if errors.As(res.err, &terr) {
			return "", terr
		}
		return "", &TranscriptionError{Backend: h.opts.Backend, Err: res.err}
	}

	h.opts.Logger.Info("transcription complete",
		"backend", h.opts.Backend,
		"samples", len(samples),
		"duration_ms", elapsed.Milliseconds(),
		"transcript_chars", len(res.text),
	)
	return res.text, nil
}

func (h *Handoff) call(ctx context.Context, samples []float32, sampleRate int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transcriber panic: %v", r)
		}
	}()
	return h.transcriber.Transcribe(ctx, samples, sampleRate, h.opts.Language)
}
