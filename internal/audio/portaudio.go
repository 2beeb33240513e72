package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// PortAudio captures through the cross-platform PortAudio host APIs.
// Device indices are positions in portaudio.Devices() that accept input.
type PortAudio struct {
	logger *slog.Logger
}

// NewPortAudio creates a PortAudio backend.
func NewPortAudio(logger *slog.Logger) *PortAudio {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortAudio{logger: logger}
}

func (p *PortAudio) Name() string { return "portaudio" }

func (p *PortAudio) Devices(_ context.Context) ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate() //nolint:errcheck

	devices, _, err := portaudioInputs()
	return devices, err
}

func portaudioInputs() ([]Device, []*portaudio.DeviceInfo, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, nil, fmt.Errorf("list portaudio devices: %w", err)
	}

	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	devices := make([]Device, 0, len(infos))
	inputs := make([]*portaudio.DeviceInfo, 0, len(infos))
	for _, info := range infos {
		if info == nil || info.MaxInputChannels < 1 {
			continue
		}
		devices = append(devices, Device{
			Index:       info.Index,
			ID:          info.Name,
			Description: info.Name,
			State:       fmt.Sprintf("%d ch @ %.0f Hz", info.MaxInputChannels, info.DefaultSampleRate),
			Available:   true,
			Default:     info.Name == defaultName,
		})
		inputs = append(inputs, info)
	}
	return devices, inputs, nil
}

func (p *PortAudio) Open(_ context.Context, cfg StreamConfig, cb Callback) (Stream, error) {
	cfg, err := normalizeStreamConfig(cfg)
	if err != nil {
		return nil, NewDeviceError(cfg.Device, "open", err)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, NewDeviceError(cfg.Device, "open", fmt.Errorf("portaudio init: %w", err))
	}

	devices, infos, err := portaudioInputs()
	if err != nil {
		portaudio.Terminate() //nolint:errcheck
		return nil, NewDeviceError(cfg.Device, "open", err)
	}
	selected, err := SelectDevice(devices, cfg.Device)
	if err != nil {
		portaudio.Terminate() //nolint:errcheck
		return nil, NewDeviceError(cfg.Device, "open", err)
	}

	var info *portaudio.DeviceInfo
	for i := range devices {
		if devices[i].Index == selected.Index {
			info = infos[i]
			break
		}
	}

	s := &portaudioStream{device: cfg.Device, cb: cb}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: 1,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.FramesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, s.onSamples)
	if err != nil {
		portaudio.Terminate() //nolint:errcheck
		return nil, NewDeviceError(cfg.Device, "open", fmt.Errorf("portaudio open stream: %w", err))
	}
	s.stream = stream

	p.logger.Debug("portaudio stream opened",
		"device", DescribeDevice(selected),
		"sample_rate", cfg.SampleRate,
		"frames_per_buffer", cfg.FramesPerBuffer,
	)
	return s, nil
}

type portaudioStream struct {
	device int
	stream *portaudio.Stream
	cb     Callback

	mu      sync.Mutex
	started bool
	closed  atomic.Bool
}

func (s *portaudioStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return NewDeviceError(s.device, "start", errors.New("stream closed"))
	}
	if s.started {
		return nil
	}
	if err := s.stream.Start(); err != nil {
		return NewDeviceError(s.device, "start", fmt.Errorf("portaudio start stream: %w", err))
	}
	s.started = true
	return nil
}

func (s *portaudioStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.started {
		if err := s.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("portaudio stop stream: %w", err))
		}
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio close stream: %w", err))
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio terminate: %w", err))
	}
	return errors.Join(errs...)
}

func (s *portaudioStream) onSamples(in []float32) {
	if s.closed.Load() || len(in) == 0 {
		return
	}
	s.cb(in)
}
