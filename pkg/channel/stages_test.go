package channel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoiseStage_ZeroLevelIsIdentity(t *testing.T) {
	input := testTone(0.2, 16000)
	rng := rand.New(rand.NewSource(42))

	out, err := NoiseStage{Level: 0}.Apply(input, rng)
	require.NoError(t, err)

	assert.Equal(t, input.Samples, out.Samples)

	// No RNG draws may have happened: the next draw must match a fresh
	// generator with the same seed.
	fresh := rand.New(rand.NewSource(42))
	assert.Equal(t, fresh.Float64(), rng.Float64())
}

func TestNoiseStage_AddsNoiseAndClips(t *testing.T) {
	input := testTone(0.2, 16000)
	rng := rand.New(rand.NewSource(7))

	out, err := NoiseStage{Level: 0.5}.Apply(input, rng)
	require.NoError(t, err)
	require.Equal(t, input.Len(), out.Len())

	assert.NotEqual(t, input.Samples, out.Samples)
	for i, s := range out.Samples {
		if s > 1.0 || s < -1.0 {
			t.Fatalf("sample %d out of range: %v", i, s)
		}
	}
}

func TestPacketLossStage_Boundaries(t *testing.T) {
	input := testTone(0.5, 8000)

	t.Run("rate zero is identity", func(t *testing.T) {
		out, err := PacketLossStage{Rate: 0, SegmentMs: 100}.Apply(input, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		assert.Equal(t, input.Samples, out.Samples)
	})

	t.Run("rate one silences everything", func(t *testing.T) {
		out, err := PacketLossStage{Rate: 1, SegmentMs: 100}.Apply(input, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		require.Equal(t, input.Len(), out.Len())
		for _, s := range out.Samples {
			assert.Zero(t, s)
		}
	})

	t.Run("partial loss silences whole segments", func(t *testing.T) {
		out, err := PacketLossStage{Rate: 0.5, SegmentMs: 50}.Apply(input, rand.New(rand.NewSource(3)))
		require.NoError(t, err)
		require.Equal(t, input.Len(), out.Len())

		segment := int(50.0 / 1000.0 * 8000)
		var dropped, kept int
		for start := 0; start < out.Len(); start += segment {
			end := start + segment
			if end > out.Len() {
				end = out.Len()
			}
			allZero := true
			for i := start; i < end; i++ {
				if out.Samples[i] != 0 {
					allZero = false
					break
				}
			}
			if allZero {
				dropped++
			} else {
				kept++
				// Surviving segments must be untouched.
				for i := start; i < end; i++ {
					assert.Equal(t, input.Samples[i], out.Samples[i])
				}
			}
		}
		assert.Greater(t, dropped, 0)
		assert.Greater(t, kept, 0)
	})
}

func TestCompressionStage_NoOpConfigIsIdentity(t *testing.T) {
	input := testTone(0.2, 16000)

	stage := CompressionArtifactStage{Config: CompressionConfig{
		BandwidthHz:              8000, // Nyquist
		QuantizationBits:         NativeBitDepth,
		HarmonicDistortionAmount: 0,
		TemporalSmearMs:          0,
	}}
	out, err := stage.Apply(input, nil)
	require.NoError(t, err)
	assert.Equal(t, input.Samples, out.Samples)
}

func TestCompressionStage_BandwidthLimitingAttenuatesHighs(t *testing.T) {
	sampleRate := 16000
	n := sampleRate / 2
	low := make([]float64, n)
	high := make([]float64, n)
	for i := range low {
		tm := float64(i) / float64(sampleRate)
		low[i] = 0.5 * math.Sin(2*math.Pi*500*tm)
		high[i] = 0.5 * math.Sin(2*math.Pi*6000*tm)
	}

	filteredLow := limitBandwidth(low, 2000, sampleRate)
	filteredHigh := limitBandwidth(high, 2000, sampleRate)

	// Pass band: roughly unity gain. Compare RMS over the filter's
	// settled interior to avoid edge effects.
	interior := func(s []float64) []float64 { return s[lowPassTaps : len(s)-lowPassTaps] }
	assert.InDelta(t, rmsOf(interior(low)), rmsOf(interior(filteredLow)), 0.02)

	// Stop band: strongly attenuated.
	assert.Less(t, rmsOf(interior(filteredHigh)), 0.05*rmsOf(interior(high)))
}

func TestCompressionStage_QuantizationRaisesNoiseFloor(t *testing.T) {
	input := testTone(0.2, 16000)

	coarse := quantize(input.Samples, 3)
	fine := quantize(input.Samples, 10)

	coarseErr := rmsOfDiff(input.Samples, coarse)
	fineErr := rmsOfDiff(input.Samples, fine)

	assert.Greater(t, coarseErr, fineErr, "fewer bits must mean more quantization noise")
	assert.Greater(t, fineErr, 0.0)
}

func TestCompressionStage_WaveshapingIsBounded(t *testing.T) {
	input := testTone(0.2, 16000)

	for _, amount := range []float64{0.1, 1.0, 10.0} {
		shaped := waveshape(input.Samples, amount)
		require.Len(t, shaped, len(input.Samples))
		for i, s := range shaped {
			if math.Abs(s) > 1.0 {
				t.Fatalf("amount %v: sample %d exceeds full scale: %v", amount, i, s)
			}
		}
	}
}

func TestCompressionStage_SmearPreservesLength(t *testing.T) {
	input := testTone(0.2, 8000)

	smeared := smear(input.Samples, 25, 8000)
	require.Len(t, smeared, len(input.Samples))
	assert.NotEqual(t, input.Samples, smeared)
}

func rmsOf(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func rmsOfDiff(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(a)))
}
