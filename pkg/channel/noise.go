package channel

import (
	"math/rand"

	"satsim-server/pkg/signal"
)

// NoiseStage injects additive zero-mean Gaussian noise into a signal.
//
// The noise standard deviation is Level times the input's peak amplitude,
// matching how perceived noise scales with signal loudness on a real
// link. Output samples are re-clipped to the valid amplitude range.
type NoiseStage struct {
	// Level controls the injected noise variance. Zero is a bit-for-bit
	// identity and performs no RNG draws.
	Level float64
}

// Name implements Stage.
func (s NoiseStage) Name() string {
	return "noise"
}

// Apply implements Stage.
func (s NoiseStage) Apply(buf signal.Buffer, rng *rand.Rand) (signal.Buffer, error) {
	if err := buf.Validate("input"); err != nil {
		return signal.Buffer{}, err
	}

	if s.Level == 0 {
		return buf.Clone(), nil
	}

	stddev := s.Level * buf.Peak()
	out := make([]float64, len(buf.Samples))
	for i, sample := range buf.Samples {
		out[i] = signal.Clamp(sample + rng.NormFloat64()*stddev)
	}

	return signal.Buffer{Samples: out, SampleRate: buf.SampleRate}, nil
}
