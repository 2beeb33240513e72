// Package transcribe hands finished utterances to a speech-to-text backend.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTranscription marks every failure surfaced by Handoff.
	ErrTranscription = errors.New("transcription failed")
	// ErrEmptyTranscript indicates the backend returned no usable text.
	ErrEmptyTranscript = errors.New("empty transcript")
	// ErrBackendUnavailable indicates the configured backend is not compiled in or not configured.
	ErrBackendUnavailable = errors.New("transcription backend unavailable")
)

// Transcriber converts mono float32 samples to text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (string, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, samples []float32, sampleRate int, language string) (string, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (string, error) {
	return f(ctx, samples, sampleRate, language)
}

// TranscriptionError wraps a backend failure. Error returns the backend's
// message unchanged so diagnostics show exactly what the model reported.
type TranscriptionError struct {
	Backend string
	Err     error
}

func (e *TranscriptionError) Error() string {
	if e.Err == nil {
		return ErrTranscription.Error()
	}
	return e.Err.Error()
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

func (e *TranscriptionError) Is(target error) bool {
	return target == ErrTranscription
}

// Config selects and configures a backend for New.
type Config struct {
	Backend string

	HTTP    HTTPConfig
	Whisper WhisperConfig
}

// Backend is a Transcriber with a name and releasable resources.
type Backend interface {
	Transcriber
	Name() string
	Close() error
}

// New creates the configured backend. Whisper models load here, once per process.
func New(cfg Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "http", "":
		backend, err := NewHTTP(cfg.HTTP)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case "whisper":
		backend, err := NewWhisper(cfg.Whisper)
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown transcription backend %q (supported: http, whisper)", cfg.Backend)
	}
}
