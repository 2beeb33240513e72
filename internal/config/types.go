// Package config resolves, parses, validates, and defaults dictate configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by dictate.
type Config struct {
	Audio         AudioConfig
	Transcription TranscriptionConfig
	Transcript    TranscriptConfig
	Indicator     IndicatorConfig
	Metrics       MetricsConfig
	Log           LogConfig
	Debug         DebugConfig
}

// AudioConfig selects the capture backend, device, and buffering.
type AudioConfig struct {
	Backend         string
	Device          int
	SampleRate      int
	FramesPerBuffer int
	QueueBlocks     int
	PollMS          int
}

// PollInterval is the consumer wait per queue poll.
func (a AudioConfig) PollInterval() time.Duration {
	return time.Duration(a.PollMS) * time.Millisecond
}

// TranscriptionConfig selects the speech-to-text backend and request hints.
type TranscriptionConfig struct {
	Backend    string
	Language   string
	TimeoutMS  int
	GRPCHealth string
	HTTP       HTTPTranscriptionConfig
	Whisper    WhisperConfig
}

// Timeout bounds one transcription call. Zero disables the bound.
func (t TranscriptionConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutMS) * time.Millisecond
}

// HTTPTranscriptionConfig targets an OpenAI-compatible transcription endpoint.
type HTTPTranscriptionConfig struct {
	Endpoint   string
	APIKey     string
	Model      string
	MaxRetries int
	HealthURL  string
}

// WhisperConfig controls the in-process whisper.cpp backend.
type WhisperConfig struct {
	ModelPath string
	Threads   int
}

// TranscriptConfig controls transcript assembly formatting.
type TranscriptConfig struct {
	TrailingSpace   bool
	CapitalizeFirst bool
}

// IndicatorConfig controls the terminal level meter.
type IndicatorConfig struct {
	Enable    bool
	RefreshMS int
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Listen string
}

// LogConfig controls the JSONL runtime log.
type LogConfig struct {
	Level      string
	MaxSizeMB  int
	MaxBackups int
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	AudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
