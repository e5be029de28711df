package channel

import (
	"math/rand"

	"satsim-server/pkg/signal"
)

// PacketLossStage simulates lost transmission packets by silencing
// fixed-duration segments of the signal.
//
// The sample sequence is partitioned into contiguous segments of
// SegmentMs (the last segment may be shorter). Each segment is dropped
// independently with probability Rate. Dropped segments are zeroed in
// place rather than removed, so the output always has the same length as
// the input and stays sample-aligned with the reference for evaluation.
// No concealment or interpolation is performed.
type PacketLossStage struct {
	// Rate is the independent drop probability per segment. Zero is a
	// bit-for-bit identity and performs no RNG draws; one yields a fully
	// silent buffer of the same length.
	Rate float64

	// SegmentMs is the duration of each droppable segment.
	SegmentMs float64
}

// Name implements Stage.
func (s PacketLossStage) Name() string {
	return "packet_loss"
}

// Apply implements Stage.
func (s PacketLossStage) Apply(buf signal.Buffer, rng *rand.Rand) (signal.Buffer, error) {
	if err := buf.Validate("input"); err != nil {
		return signal.Buffer{}, err
	}

	if s.Rate == 0 {
		return buf.Clone(), nil
	}

	segmentSamples := int(s.SegmentMs / 1000.0 * float64(buf.SampleRate))
	if segmentSamples < 1 {
		segmentSamples = 1
	}

	out := make([]float64, len(buf.Samples))
	copy(out, buf.Samples)

	for start := 0; start < len(out); start += segmentSamples {
		if rng.Float64() >= s.Rate {
			continue
		}
		end := start + segmentSamples
		if end > len(out) {
			end = len(out)
		}
		for i := start; i < end; i++ {
			out[i] = 0
		}
	}

	return signal.Buffer{Samples: out, SampleRate: buf.SampleRate}, nil
}
