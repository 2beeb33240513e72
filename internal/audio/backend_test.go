package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectDeviceDefault(t *testing.T) {
	devices := []Device{
		{Index: 0, ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Default: true},
		{Index: 1, ID: "sony", Description: "Sony WH-1000XM6", Available: true},
	}

	selected, err := SelectDevice(devices, DefaultDevice)
	require.NoError(t, err)
	require.Equal(t, "elgato", selected.ID)
}

func TestSelectDeviceByIndex(t *testing.T) {
	devices := []Device{
		{Index: 0, ID: "elgato", Available: true, Default: true},
		{Index: 1, ID: "sony", Available: true},
	}

	selected, err := SelectDevice(devices, 1)
	require.NoError(t, err)
	require.Equal(t, "sony", selected.ID)
}

func TestSelectDeviceRejectsUnknownIndex(t *testing.T) {
	devices := []Device{{Index: 0, ID: "elgato", Available: true, Default: true}}

	_, err := SelectDevice(devices, 42)
	require.ErrorIs(t, err, ErrUnknownDevice)
	require.Contains(t, err.Error(), "42")
}

func TestSelectDeviceRejectsMutedOrUnavailable(t *testing.T) {
	devices := []Device{
		{Index: 0, ID: "elgato", Available: true, Muted: true, Default: true},
		{Index: 1, ID: "unplugged", Available: false},
	}

	_, err := SelectDevice(devices, DefaultDevice)
	require.Error(t, err)
	require.Contains(t, err.Error(), "muted")

	_, err = SelectDevice(devices, 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not available")
}

func TestSelectDeviceEmptyList(t *testing.T) {
	_, err := SelectDevice(nil, DefaultDevice)
	require.ErrorIs(t, err, ErrNoInputDevices)
}

func TestSelectDeviceMissingDefault(t *testing.T) {
	_, err := SelectDevice([]Device{{Index: 0, ID: "a", Available: true}}, DefaultDevice)
	require.Error(t, err)
	require.Contains(t, err.Error(), "default audio source")
}

func TestDeviceErrorWrapsCause(t *testing.T) {
	cause := errors.New("device busy")
	err := NewDeviceError(3, "open", cause)

	require.ErrorIs(t, err, ErrDevice)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "open input device 3: device busy", err.Error())

	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	require.Equal(t, 3, devErr.Device)
}

func TestDeviceErrorDefaultDeviceMessage(t *testing.T) {
	err := NewDeviceError(DefaultDevice, "start", errors.New("boom"))
	require.Equal(t, "start default input device: boom", err.Error())
}

func TestNewDeviceErrorDoesNotDoubleWrap(t *testing.T) {
	inner := NewDeviceError(1, "open", errors.New("x"))
	outer := NewDeviceError(2, "start", inner)
	require.Same(t, inner, outer)
}

func TestDescribeDevice(t *testing.T) {
	require.Equal(t, "Mic (alsa.mic)", DescribeDevice(Device{ID: "alsa.mic", Description: "Mic"}))
	require.Equal(t, "alsa.mic", DescribeDevice(Device{ID: "alsa.mic"}))
	require.Equal(t, "Mic", DescribeDevice(Device{ID: "Mic", Description: "Mic"}))
}

func TestNewBackendByName(t *testing.T) {
	b, err := NewBackend("", nil)
	require.NoError(t, err)
	require.Equal(t, "pulse", b.Name())

	b, err = NewBackend("PortAudio", nil)
	require.NoError(t, err)
	require.Equal(t, "portaudio", b.Name())

	_, err = NewBackend("alsa", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown audio backend")
}

func TestNormalizeStreamConfig(t *testing.T) {
	cfg, err := normalizeStreamConfig(StreamConfig{Device: DefaultDevice})
	require.NoError(t, err)
	require.Equal(t, DefaultSampleRate, cfg.SampleRate)
	require.Equal(t, DefaultFramesPerBuffer, cfg.FramesPerBuffer)

	_, err = normalizeStreamConfig(StreamConfig{SampleRate: -1})
	require.Error(t, err)
}
