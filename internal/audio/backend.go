// Package audio handles device discovery, live capture streams, and sample buffering.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// DefaultDevice selects the backend's default input source.
	DefaultDevice = -1
	// DefaultSampleRate is the rate transcription models expect.
	DefaultSampleRate = 16000
	// DefaultFramesPerBuffer is the callback block size in frames.
	DefaultFramesPerBuffer = 1024
)

var (
	// ErrDevice marks every failure to open, start, or address an input device.
	ErrDevice = errors.New("audio device error")
	// ErrNoInputDevices indicates the backend exposes no capture sources.
	ErrNoInputDevices = errors.New("no audio input devices found")
	// ErrUnknownDevice indicates the requested device index does not exist.
	ErrUnknownDevice = errors.New("unknown input device index")
)

// Device describes one input source surfaced by a backend.
type Device struct {
	Index       int
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// StreamConfig selects the device and format for one capture stream.
// Streams are always mono float32.
type StreamConfig struct {
	Device          int
	SampleRate      int
	FramesPerBuffer int
}

// Callback receives each hardware buffer. The slice is only valid for the
// duration of the call.
type Callback func(samples []float32)

// Stream is one opened capture stream.
type Stream interface {
	Start() error
	Close() error
}

// Backend abstracts the platform audio API.
type Backend interface {
	Name() string
	Devices(ctx context.Context) ([]Device, error)
	Open(ctx context.Context, cfg StreamConfig, cb Callback) (Stream, error)
}

// NewBackend resolves a backend by configured name.
func NewBackend(name string, logger *slog.Logger) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pulse", "":
		return NewPulse(logger), nil
	case "portaudio":
		return NewPortAudio(logger), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q (supported: pulse, portaudio)", name)
	}
}

// DeviceError reports a capture stream that could not be opened or started.
type DeviceError struct {
	Device int
	Op     string
	Err    error
}

// NewDeviceError wraps err unless it already is a DeviceError.
func NewDeviceError(device int, op string, err error) error {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return err
	}
	return &DeviceError{Device: device, Op: op, Err: err}
}

func (e *DeviceError) Error() string {
	target := "default input device"
	if e.Device != DefaultDevice {
		target = fmt.Sprintf("input device %d", e.Device)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, target, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func (e *DeviceError) Is(target error) bool {
	return target == ErrDevice
}

// SelectDevice resolves an index (or DefaultDevice) against a device list.
func SelectDevice(devices []Device, index int) (Device, error) {
	if len(devices) == 0 {
		return Device{}, ErrNoInputDevices
	}

	var selected *Device
	for i := range devices {
		dev := &devices[i]
		if index == DefaultDevice && dev.Default {
			selected = dev
			break
		}
		if index != DefaultDevice && dev.Index == index {
			selected = dev
			break
		}
	}
	if selected == nil {
		if index == DefaultDevice {
			return Device{}, errors.New("default audio source is unavailable")
		}
		return Device{}, fmt.Errorf("%w: %d", ErrUnknownDevice, index)
	}

	if !selected.Available {
		return Device{}, fmt.Errorf("input %q is not available", selected.ID)
	}
	if selected.Muted {
		return Device{}, fmt.Errorf("input %q is muted", selected.ID)
	}
	return *selected, nil
}

// DescribeDevice formats device metadata for logs and session results.
func DescribeDevice(device Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	if description == "" {
		return id
	}
	if id == "" || id == description {
		return description
	}
	return fmt.Sprintf("%s (%s)", description, id)
}

func normalizeStreamConfig(cfg StreamConfig) (StreamConfig, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.SampleRate < 0 {
		return cfg, fmt.Errorf("unsupported sample rate %d", cfg.SampleRate)
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = DefaultFramesPerBuffer
	}
	return cfg, nil
}
