//go:build whisper

package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperCompiled reports whether the local whisper.cpp backend is built in.
const WhisperCompiled = true

// WhisperConfig configures the local whisper.cpp backend.
type WhisperConfig struct {
	ModelPath string
	Threads   int
}

// Whisper runs whisper.cpp in-process. The model is loaded once and shared;
// calls are serialized because a whisper context is not safe for concurrent use.
type Whisper struct {
	cfg   WhisperConfig
	model whisperlib.Model

	mu sync.Mutex
}

// NewWhisper loads the model at cfg.ModelPath.
func NewWhisper(cfg WhisperConfig) (*Whisper, error) {
	if strings.TrimSpace(cfg.ModelPath) == "" {
		return nil, fmt.Errorf("%w: transcription.whisper.model_path is empty", ErrBackendUnavailable)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: whisper model %q: %v", ErrBackendUnavailable, cfg.ModelPath, err)
	}
	if cfg.Threads <= 0 {
		cfg.Threads = max(1, runtime.NumCPU()-2)
	}

	model, err := whisperlib.New(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", cfg.ModelPath, err)
	}
	return &Whisper{cfg: cfg, model: model}, nil
}

func (w *Whisper) Name() string { return "whisper" }

func (w *Whisper) Transcribe(_ context.Context, samples []float32, sampleRate int, language string) (string, error) {
	if sampleRate != whisperlib.SampleRate {
		return "", fmt.Errorf("whisper requires %d Hz input, got %d Hz", whisperlib.SampleRate, sampleRate)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if language = strings.TrimSpace(language); language != "" {
		if err := wctx.SetLanguage(language); err != nil {
			return "", fmt.Errorf("whisper: set language %q: %w", language, err)
		}
	}
	wctx.SetThreads(uint(w.cfg.Threads))
	wctx.SetMaxContext(0)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process: %w", err)
	}

	var segments []string
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		segments = append(segments, seg.Text)
	}
	return strings.Join(segments, " "), nil
}

func (w *Whisper) Close() error {
	if w.model == nil {
		return nil
	}
	return w.model.Close()
}
