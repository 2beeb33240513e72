package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	pulseAppName  = "dictate"
	pulseIconName = "audio-input-microphone"
)

// Pulse captures from PulseAudio/PipeWire sources through the native protocol.
type Pulse struct {
	logger *slog.Logger
}

// NewPulse creates a PulseAudio backend.
func NewPulse(logger *slog.Logger) *Pulse {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pulse{logger: logger}
}

func (p *Pulse) Name() string { return "pulse" }

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(pulseAppName),
		pulse.ClientApplicationIconName(pulseIconName),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// Devices returns Pulse input sources in server order; Index is the list position.
func (p *Pulse) Devices(_ context.Context) ([]Device, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return listPulseSources(client)
}

func listPulseSources(client *pulse.Client) ([]Device, error) {
	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			Index:       len(devices),
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

// Open resolves cfg.Device and prepares a mono float32 record stream.
func (p *Pulse) Open(_ context.Context, cfg StreamConfig, cb Callback) (Stream, error) {
	cfg, err := normalizeStreamConfig(cfg)
	if err != nil {
		return nil, NewDeviceError(cfg.Device, "open", err)
	}

	client, err := newPulseClient()
	if err != nil {
		return nil, NewDeviceError(cfg.Device, "open", err)
	}

	devices, err := listPulseSources(client)
	if err != nil {
		client.Close()
		return nil, NewDeviceError(cfg.Device, "open", err)
	}
	selected, err := SelectDevice(devices, cfg.Device)
	if err != nil {
		client.Close()
		return nil, NewDeviceError(cfg.Device, "open", err)
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, NewDeviceError(cfg.Device, "open", fmt.Errorf("resolve source %q: %w", selected.ID, err))
	}

	s := &pulseStream{
		device:   cfg.Device,
		selected: selected,
		client:   client,
		cb:       cb,
		logger:   p.logger,
	}

	// Fragment size is in bytes; float32 mono is four bytes per frame.
	stream, err := client.NewRecord(
		pulse.Float32Writer(s.onSamples),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(cfg.SampleRate),
		pulse.RecordBufferFragmentSize(uint32(cfg.FramesPerBuffer*4)),
		pulse.RecordMediaName("dictate capture"),
	)
	if err != nil {
		client.Close()
		return nil, NewDeviceError(cfg.Device, "open", fmt.Errorf("create pulse record stream: %w", err))
	}
	s.stream = stream

	p.logger.Debug("pulse stream opened",
		"device", DescribeDevice(selected),
		"sample_rate", cfg.SampleRate,
		"frames_per_buffer", cfg.FramesPerBuffer,
	)
	return s, nil
}

type pulseStream struct {
	device   int
	selected Device
	client   *pulse.Client
	stream   *pulse.RecordStream
	cb       Callback
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	closed  atomic.Bool
}

func (s *pulseStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return NewDeviceError(s.device, "start", errors.New("stream closed"))
	}
	if s.started {
		return nil
	}
	s.stream.Start()
	if err := s.stream.Error(); err != nil {
		return NewDeviceError(s.device, "start", err)
	}
	s.started = true
	return nil
}

// Close stops delivery, closes the stream, and releases the client. Safe to call twice.
func (s *pulseStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		if s.started {
			s.stream.Stop()
		}
		s.stream.Close()
	}
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

func (s *pulseStream) onSamples(buffer []float32) (int, error) {
	if s.closed.Load() || len(buffer) == 0 {
		return len(buffer), nil
	}
	s.cb(buffer)
	return len(buffer), nil
}

// sourceStateString maps Pulse source state constants to human-readable values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
