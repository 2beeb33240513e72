package audio

import "math"

// levelGain maps a typical speaking-voice RMS onto the 0..100 meter range.
const levelGain = 5000

// Block is one callback's worth of mono float32 samples.
type Block struct {
	Samples []float32
	Frames  int
}

// NewBlock copies in so the backend can reuse its buffer after the callback returns.
func NewBlock(in []float32) Block {
	samples := make([]float32, len(in))
	copy(samples, in)
	return Block{Samples: samples, Frames: len(samples)}
}

// Level computes the 0..100 loudness of a block: RMS scaled by levelGain and clamped.
// It never allocates and never fails; empty or non-finite input yields 0.
func Level(samples []float32) int {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}

	scaled := math.Sqrt(sum/float64(len(samples))) * levelGain
	switch {
	case math.IsNaN(scaled), scaled <= 0:
		return 0
	case scaled >= 100:
		return 100
	default:
		return int(scaled)
	}
}
