package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	switch strings.ToLower(cfg.Audio.Backend) {
	case "pulse", "portaudio":
	default:
		return nil, fmt.Errorf("audio.backend must be one of: pulse, portaudio")
	}
	if cfg.Audio.Device < -1 {
		return nil, fmt.Errorf("audio.device must be >= -1 (-1 selects the default source)")
	}
	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("audio.sample_rate must be > 0")
	}
	if cfg.Audio.SampleRate != 16000 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("audio.sample_rate=%d; most speech models expect 16000", cfg.Audio.SampleRate)})
	}
	if cfg.Audio.FramesPerBuffer <= 0 {
		return nil, fmt.Errorf("audio.frames_per_buffer must be > 0")
	}
	if cfg.Audio.QueueBlocks <= 0 {
		return nil, fmt.Errorf("audio.queue_blocks must be > 0")
	}
	if cfg.Audio.PollMS <= 0 {
		return nil, fmt.Errorf("audio.poll_ms must be > 0")
	}

	if strings.TrimSpace(cfg.Transcription.Language) == "" {
		return nil, fmt.Errorf("transcription.language must not be empty")
	}
	if cfg.Transcription.TimeoutMS < 0 {
		return nil, fmt.Errorf("transcription.timeout_ms must be >= 0")
	}
	switch strings.ToLower(cfg.Transcription.Backend) {
	case "http":
		if err := validateHTTPURL("transcription.http.endpoint", cfg.Transcription.HTTP.Endpoint, true); err != nil {
			return nil, err
		}
		if cfg.Transcription.HTTP.MaxRetries < 0 {
			return nil, fmt.Errorf("transcription.http.max_retries must be >= 0")
		}
	case "whisper":
		if strings.TrimSpace(cfg.Transcription.Whisper.ModelPath) == "" {
			return nil, fmt.Errorf("transcription.whisper.model_path must not be empty when transcription.backend=whisper")
		}
		if cfg.Transcription.Whisper.Threads < 0 {
			return nil, fmt.Errorf("transcription.whisper.threads must be >= 0")
		}
	default:
		return nil, fmt.Errorf("transcription.backend must be one of: http, whisper")
	}
	if err := validateHTTPURL("transcription.http.health_url", cfg.Transcription.HTTP.HealthURL, false); err != nil {
		return nil, err
	}

	if cfg.Indicator.RefreshMS <= 0 {
		return nil, fmt.Errorf("indicator.refresh_ms must be > 0")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	if cfg.Log.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("log.max_size_mb must be > 0")
	}
	if cfg.Log.MaxBackups < 0 {
		return nil, fmt.Errorf("log.max_backups must be >= 0")
	}

	return warnings, nil
}

func validateHTTPURL(key, raw string, required bool) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return fmt.Errorf("%s must not be empty", key)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", key)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", key)
	}
	return nil
}
