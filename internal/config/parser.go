package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies the syntax of a config file.
type Format string

const (
	FormatJSONC Format = "jsonc"
	FormatYAML  Format = "yaml"
)

// FormatForPath picks YAML for .yaml/.yml files and JSONC for everything else.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSONC
	}
}

// Parse reads JSONC configuration content merged over base.
func Parse(content string, base Config) (Config, []Warning, error) {
	return ParseFormat(content, FormatJSONC, base)
}

// ParseFormat reads configuration content in the given format merged over base,
// then validates the result.
func ParseFormat(content string, format Format, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		validatedWarnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, validatedWarnings, nil
	}

	var (
		payload fileConfig
		err     error
	)
	switch format {
	case FormatJSONC, "":
		payload, err = decodeJSONC(content)
	case FormatYAML:
		payload, err = decodeYAML(content)
	default:
		return Config{}, nil, fmt.Errorf("unsupported config format %q", format)
	}
	if err != nil {
		return Config{}, nil, err
	}

	cfg := base
	warnings := payload.applyTo(&cfg)

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

type fileConfig struct {
	Audio         *fileAudio         `json:"audio" yaml:"audio"`
	Transcription *fileTranscription `json:"transcription" yaml:"transcription"`
	Transcript    *fileTranscript    `json:"transcript" yaml:"transcript"`
	Indicator     *fileIndicator     `json:"indicator" yaml:"indicator"`
	Metrics       *fileMetrics       `json:"metrics" yaml:"metrics"`
	Log           *fileLog           `json:"log" yaml:"log"`
	Debug         *fileDebug         `json:"debug" yaml:"debug"`
}

type fileAudio struct {
	Backend         *string `json:"backend" yaml:"backend"`
	Device          *int    `json:"device" yaml:"device"`
	SampleRate      *int    `json:"sample_rate" yaml:"sample_rate"`
	FramesPerBuffer *int    `json:"frames_per_buffer" yaml:"frames_per_buffer"`
	QueueBlocks     *int    `json:"queue_blocks" yaml:"queue_blocks"`
	PollMS          *int    `json:"poll_ms" yaml:"poll_ms"`
}

type fileTranscription struct {
	Backend    *string      `json:"backend" yaml:"backend"`
	Language   *string      `json:"language" yaml:"language"`
	TimeoutMS  *int         `json:"timeout_ms" yaml:"timeout_ms"`
	GRPCHealth *string      `json:"grpc_health" yaml:"grpc_health"`
	HTTP       *fileHTTP    `json:"http" yaml:"http"`
	Whisper    *fileWhisper `json:"whisper" yaml:"whisper"`
}

type fileHTTP struct {
	Endpoint   *string `json:"endpoint" yaml:"endpoint"`
	APIKey     *string `json:"api_key" yaml:"api_key"`
	Model      *string `json:"model" yaml:"model"`
	MaxRetries *int    `json:"max_retries" yaml:"max_retries"`
	HealthURL  *string `json:"health_url" yaml:"health_url"`
}

type fileWhisper struct {
	ModelPath *string `json:"model_path" yaml:"model_path"`
	Threads   *int    `json:"threads" yaml:"threads"`
}

type fileTranscript struct {
	TrailingSpace   *bool `json:"trailing_space" yaml:"trailing_space"`
	CapitalizeFirst *bool `json:"capitalize_first" yaml:"capitalize_first"`
}

type fileIndicator struct {
	Enable    *bool `json:"enable" yaml:"enable"`
	RefreshMS *int  `json:"refresh_ms" yaml:"refresh_ms"`
}

type fileMetrics struct {
	Listen *string `json:"listen" yaml:"listen"`
}

type fileLog struct {
	Level      *string `json:"level" yaml:"level"`
	MaxSizeMB  *int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups *int    `json:"max_backups" yaml:"max_backups"`
}

type fileDebug struct {
	AudioDump *bool `json:"audio_dump" yaml:"audio_dump"`
}

func (payload fileConfig) applyTo(cfg *Config) []Warning {
	warnings := make([]Warning, 0)

	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Backend, a.Backend)
		setInt(&cfg.Audio.Device, a.Device)
		setInt(&cfg.Audio.SampleRate, a.SampleRate)
		setInt(&cfg.Audio.FramesPerBuffer, a.FramesPerBuffer)
		setInt(&cfg.Audio.QueueBlocks, a.QueueBlocks)
		setInt(&cfg.Audio.PollMS, a.PollMS)
	}

	if t := payload.Transcription; t != nil {
		setString(&cfg.Transcription.Backend, t.Backend)
		setString(&cfg.Transcription.Language, t.Language)
		setInt(&cfg.Transcription.TimeoutMS, t.TimeoutMS)
		setString(&cfg.Transcription.GRPCHealth, t.GRPCHealth)
		if h := t.HTTP; h != nil {
			setString(&cfg.Transcription.HTTP.Endpoint, h.Endpoint)
			if h.APIKey != nil {
				cfg.Transcription.HTTP.APIKey = *h.APIKey
			}
			setString(&cfg.Transcription.HTTP.Model, h.Model)
			setInt(&cfg.Transcription.HTTP.MaxRetries, h.MaxRetries)
			setString(&cfg.Transcription.HTTP.HealthURL, h.HealthURL)
		}
		if w := t.Whisper; w != nil {
			setString(&cfg.Transcription.Whisper.ModelPath, w.ModelPath)
			setInt(&cfg.Transcription.Whisper.Threads, w.Threads)
		}
		if t.Language != nil && strings.TrimSpace(*t.Language) != *t.Language {
			warnings = append(warnings, Warning{Message: "transcription.language contains surrounding whitespace; trimmed"})
		}
	}

	if t := payload.Transcript; t != nil {
		setBool(&cfg.Transcript.TrailingSpace, t.TrailingSpace)
		setBool(&cfg.Transcript.CapitalizeFirst, t.CapitalizeFirst)
	}

	if i := payload.Indicator; i != nil {
		setBool(&cfg.Indicator.Enable, i.Enable)
		setInt(&cfg.Indicator.RefreshMS, i.RefreshMS)
	}

	if m := payload.Metrics; m != nil {
		setString(&cfg.Metrics.Listen, m.Listen)
	}

	if l := payload.Log; l != nil {
		setString(&cfg.Log.Level, l.Level)
		setInt(&cfg.Log.MaxSizeMB, l.MaxSizeMB)
		setInt(&cfg.Log.MaxBackups, l.MaxBackups)
	}

	if d := payload.Debug; d != nil {
		setBool(&cfg.Debug.AudioDump, d.AudioDump)
	}

	return warnings
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
