//go:build !whisper

package transcribe

import (
	"context"
	"fmt"
)

// WhisperCompiled reports whether the local whisper.cpp backend is built in.
const WhisperCompiled = false

// WhisperConfig configures the local whisper.cpp backend.
type WhisperConfig struct {
	ModelPath string
	Threads   int
}

// Whisper is unavailable without the whisper build tag.
type Whisper struct{}

// NewWhisper always fails when built without the whisper tag.
func NewWhisper(WhisperConfig) (*Whisper, error) {
	return nil, fmt.Errorf("%w: whisper not compiled (build with: go build -tags whisper)", ErrBackendUnavailable)
}

func (w *Whisper) Name() string { return "whisper" }

func (w *Whisper) Transcribe(context.Context, []float32, int, string) (string, error) {
	return "", fmt.Errorf("%w: whisper not compiled", ErrBackendUnavailable)
}

func (w *Whisper) Close() error { return nil }
