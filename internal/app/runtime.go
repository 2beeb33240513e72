package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rbright/dictate/internal/audio"
	"github.com/rbright/dictate/internal/cli"
	"github.com/rbright/dictate/internal/config"
	"github.com/rbright/dictate/internal/indicator"
	"github.com/rbright/dictate/internal/logging"
	"github.com/rbright/dictate/internal/metrics"
	"github.com/rbright/dictate/internal/session"
	"github.com/rbright/dictate/internal/transcribe"
	"github.com/rbright/dictate/internal/transcript"
)

// apiKeyEnv supplies transcription.http.api_key when the config leaves it empty.
const apiKeyEnv = "DICTATE_API_KEY"

// ownerRuntime holds the long-lived collaborators of one owner process.
type ownerRuntime struct {
	backend  audio.Backend
	handoff  *transcribe.Handoff
	observer session.Observer
	metrics  *metrics.Metrics
	closer   io.Closer
}

func (rt ownerRuntime) Close() error {
	if rt.closer == nil {
		return nil
	}
	return rt.closer.Close()
}

func (r Runner) buildRuntime(cfg config.Config, logger *slog.Logger) (ownerRuntime, error) {
	backend, err := r.audioBackend(cfg, logger)
	if err != nil {
		return ownerRuntime{}, err
	}

	transcriber, closer, err := r.transcriber(cfg.Transcription)
	if err != nil {
		return ownerRuntime{}, fmt.Errorf("setup transcription: %w", err)
	}

	m := metrics.New()
	handoff := transcribe.NewHandoff(transcriber, transcribe.HandoffOptions{
		Language: cfg.Transcription.Language,
		Timeout:  cfg.Transcription.Timeout(),
		Assembly: transcript.Options{
			TrailingSpace:   cfg.Transcript.TrailingSpace,
			CapitalizeFirst: cfg.Transcript.CapitalizeFirst,
		},
		Logger:  logger,
		Metrics: m,
	})

	var observers []session.Observer
	if term := indicator.NewTerminal(r.Stderr, cfg.Indicator, logger); term != nil {
		observers = append(observers, term)
	}

	return ownerRuntime{
		backend:  backend,
		handoff:  handoff,
		observer: session.Observers(observers...),
		metrics:  m,
		closer:   closer,
	}, nil
}

func (r Runner) audioBackend(cfg config.Config, logger *slog.Logger) (audio.Backend, error) {
	if r.Backend != nil {
		return r.Backend, nil
	}
	return audio.NewBackend(cfg.Audio.Backend, logger)
}

func (r Runner) transcriber(cfg config.TranscriptionConfig) (transcribe.Transcriber, io.Closer, error) {
	if r.Transcriber != nil {
		return r.Transcriber, nil, nil
	}

	apiKey := cfg.HTTP.APIKey
	if strings.TrimSpace(apiKey) == "" {
		apiKey = os.Getenv(apiKeyEnv)
	}
	backend, err := transcribe.New(transcribe.Config{
		Backend: cfg.Backend,
		HTTP: transcribe.HTTPConfig{
			Endpoint:   cfg.HTTP.Endpoint,
			APIKey:     apiKey,
			Model:      cfg.HTTP.Model,
			MaxRetries: cfg.HTTP.MaxRetries,
		},
		Whisper: transcribe.WhisperConfig{
			ModelPath: cfg.Whisper.ModelPath,
			Threads:   cfg.Whisper.Threads,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return backend, backend, nil
}

// sessionOptions applies config and then CLI overrides.
func sessionOptions(cfg config.Config, parsed cli.Parsed) (session.Options, error) {
	opts := session.Options{
		Device:          cfg.Audio.Device,
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		QueueBlocks:     cfg.Audio.QueueBlocks,
		PollInterval:    cfg.Audio.PollInterval(),
	}
	if cfg.Debug.AudioDump {
		stateDir, err := logging.StateDir()
		if err != nil {
			return session.Options{}, fmt.Errorf("resolve audio dump dir: %w", err)
		}
		opts.DumpDir = filepath.Join(stateDir, "audio")
	}
	if parsed.Device != nil {
		opts.Device = *parsed.Device
	}
	if parsed.SampleRate > 0 {
		opts.SampleRate = parsed.SampleRate
	}
	return opts, nil
}
