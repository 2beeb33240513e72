// Package doctor runs runtime readiness diagnostics for config, audio, and transcription.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/rbright/dictate/internal/audio"
	"github.com/rbright/dictate/internal/config"
	"github.com/rbright/dictate/internal/health"
	"github.com/rbright/dictate/internal/ipc"
	"github.com/rbright/dictate/internal/transcribe"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Deps overrides live collaborators. Zero values resolve from config.
type Deps struct {
	Backend    audio.Backend
	HTTPClient *http.Client
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded, deps Deps) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded), checkSocket()}

	checks = append(checks, checkAudio(ctx, cfg.Audio, deps.Backend)...)
	checks = append(checks, checkTranscription(ctx, cfg.Transcription, deps.HTTPClient)...)

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if n := len(loaded.Warnings); n > 0 {
		message = fmt.Sprintf("%s (%d warnings)", message, n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

func checkSocket() Check {
	path, err := ipc.RuntimeSocketPath()
	if err != nil {
		return Check{Name: "ipc.socket", Pass: false, Message: err.Error()}
	}
	return Check{Name: "ipc.socket", Pass: true, Message: path}
}

// checkAudio enumerates inputs and runs the same device selection as a session start.
func checkAudio(ctx context.Context, cfg config.AudioConfig, backend audio.Backend) []Check {
	if backend == nil {
		var err error
		backend, err = audio.NewBackend(cfg.Backend, nil)
		if err != nil {
			return []Check{{Name: "audio.backend", Pass: false, Message: err.Error()}}
		}
	}

	devices, err := backend.Devices(ctx)
	if err != nil {
		return []Check{{Name: "audio.backend", Pass: false, Message: fmt.Sprintf("%s: %v", backend.Name(), err)}}
	}
	checks := []Check{{
		Name:    "audio.backend",
		Pass:    true,
		Message: fmt.Sprintf("%s: %d input devices", backend.Name(), len(devices)),
	}}

	selected, err := audio.SelectDevice(devices, cfg.Device)
	if err != nil {
		return append(checks, Check{Name: "audio.device", Pass: false, Message: err.Error()})
	}
	return append(checks, Check{
		Name:    "audio.device",
		Pass:    true,
		Message: fmt.Sprintf("[%d] %s", selected.Index, audio.DescribeDevice(selected)),
	})
}

func checkTranscription(ctx context.Context, cfg config.TranscriptionConfig, client *http.Client) []Check {
	var checks []Check

	switch strings.ToLower(cfg.Backend) {
	case "whisper":
		checks = append(checks, checkWhisper(cfg.Whisper))
	default:
		checks = append(checks, checkHTTPReady(ctx, cfg.HTTP, client))
	}

	if target := strings.TrimSpace(cfg.GRPCHealth); target != "" {
		res, err := health.GRPC(ctx, target, "")
		if err != nil {
			checks = append(checks, Check{Name: "transcription.grpc", Pass: false, Message: err.Error()})
		} else {
			checks = append(checks, Check{Name: "transcription.grpc", Pass: true, Message: fmt.Sprintf("%s at %s", res.Status, res.Target)})
		}
	}
	return checks
}

// checkHTTPReady probes health_url when configured; otherwise it only reports the endpoint.
func checkHTTPReady(ctx context.Context, cfg config.HTTPTranscriptionConfig, client *http.Client) Check {
	if strings.TrimSpace(cfg.HealthURL) == "" {
		return Check{
			Name:    "transcription.http",
			Pass:    true,
			Message: fmt.Sprintf("endpoint %s (no health_url configured)", cfg.Endpoint),
		}
	}

	res, err := health.HTTP(ctx, client, cfg.HealthURL)
	if err != nil {
		return Check{Name: "transcription.http", Pass: false, Message: err.Error()}
	}
	return Check{Name: "transcription.http", Pass: true, Message: fmt.Sprintf("ready at %s (%s)", res.Target, res.Status)}
}

func checkWhisper(cfg config.WhisperConfig) Check {
	if !transcribe.WhisperCompiled {
		return Check{Name: "transcription.whisper", Pass: false, Message: "binary built without the whisper build tag"}
	}
	info, err := os.Stat(cfg.ModelPath)
	if err != nil {
		return Check{Name: "transcription.whisper", Pass: false, Message: fmt.Sprintf("model %q: %v", cfg.ModelPath, err)}
	}
	if info.IsDir() {
		return Check{Name: "transcription.whisper", Pass: false, Message: fmt.Sprintf("model %q is a directory", cfg.ModelPath)}
	}
	return Check{Name: "transcription.whisper", Pass: true, Message: fmt.Sprintf("model %s (%d MiB)", cfg.ModelPath, info.Size()>>20)}
}
