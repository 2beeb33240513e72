//go:build integration

package audio

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPulseDevicesIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	devices, err := NewPulse(nil).Devices(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, devices)
}

func TestPulseCaptureIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var frames atomic.Int64
	stream, err := NewPulse(nil).Open(ctx, StreamConfig{Device: DefaultDevice}, func(samples []float32) {
		frames.Add(int64(len(samples)))
	})
	require.NoError(t, err)
	require.NoError(t, stream.Start())

	time.Sleep(500 * time.Millisecond)
	require.NoError(t, stream.Close())
	require.Positive(t, frames.Load())
}
