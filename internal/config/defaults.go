package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			Backend:         "pulse",
			Device:          -1,
			SampleRate:      16000,
			FramesPerBuffer: 1024,
			QueueBlocks:     512,
			PollMS:          100,
		},
		Transcription: TranscriptionConfig{
			Backend:   "http",
			Language:  "es",
			TimeoutMS: 60000,
			HTTP: HTTPTranscriptionConfig{
				Endpoint:   "http://127.0.0.1:8080/v1/audio/transcriptions",
				Model:      "whisper-1",
				MaxRetries: 2,
			},
		},
		Transcript: TranscriptConfig{
			TrailingSpace: false,
		},
		Indicator: IndicatorConfig{
			Enable:    true,
			RefreshMS: 100,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}
