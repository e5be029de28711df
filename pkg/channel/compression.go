package channel

import (
	"math"
	"math/rand"

	"satsim-server/pkg/signal"
)

// CompressionArtifactStage approximates lossy codec and channel behavior
// with four ordered sub-effects: bandwidth limiting, requantization,
// harmonic distortion, and temporal smearing. Each sub-effect is a no-op
// at its neutral parameter value, and each consumes the previous one's
// output. The composite preserves signal length and sample rate.
type CompressionArtifactStage struct {
	Config CompressionConfig
}

// Number of taps for the windowed-sinc low-pass filter. Odd so the
// group delay lands on a whole sample and the output stays aligned.
const lowPassTaps = 101

// Name implements Stage.
func (s CompressionArtifactStage) Name() string {
	return "compression"
}

// Apply implements Stage. The rng parameter is unused; every sub-effect
// is deterministic.
func (s CompressionArtifactStage) Apply(buf signal.Buffer, _ *rand.Rand) (signal.Buffer, error) {
	if err := buf.Validate("input"); err != nil {
		return signal.Buffer{}, err
	}

	out := buf.Clone()
	out.Samples = limitBandwidth(out.Samples, s.Config.BandwidthHz, buf.SampleRate)
	out.Samples = quantize(out.Samples, s.Config.QuantizationBits)
	out.Samples = waveshape(out.Samples, s.Config.HarmonicDistortionAmount)
	out.Samples = smear(out.Samples, s.Config.TemporalSmearMs, buf.SampleRate)
	return out, nil
}

// limitBandwidth applies a zero-phase windowed-sinc FIR low-pass filter
// with the given cutoff. Cutoffs at or above Nyquist leave the signal
// untouched. The kernel is normalized to unity DC gain so the pass band
// sees no net gain change.
func limitBandwidth(samples []float64, cutoffHz float64, sampleRate int) []float64 {
	nyquist := float64(sampleRate) / 2.0
	if cutoffHz >= nyquist {
		return samples
	}

	kernel := sincKernel(cutoffHz, sampleRate, lowPassTaps)
	half := lowPassTaps / 2

	out := make([]float64, len(samples))
	for i := range samples {
		var acc float64
		for k, h := range kernel {
			j := i + k - half
			if j < 0 || j >= len(samples) {
				continue
			}
			acc += h * samples[j]
		}
		out[i] = acc
	}
	return out
}

// sincKernel builds a Hamming-windowed sinc low-pass kernel normalized
// to a sum of one.
func sincKernel(cutoffHz float64, sampleRate, taps int) []float64 {
	fc := cutoffHz / float64(sampleRate)
	half := taps / 2

	kernel := make([]float64, taps)
	var sum float64
	for i := range kernel {
		n := float64(i - half)
		var v float64
		if n == 0 {
			v = 2 * math.Pi * fc
		} else {
			v = math.Sin(2*math.Pi*fc*n) / n
		}
		// Hamming window
		v *= 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(taps-1))
		kernel[i] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// quantize rescales samples to 2^bits discrete levels and back,
// emulating the raised noise floor of coarse coding bit depths. Depths
// at or above native resolution are a no-op.
func quantize(samples []float64, bits int) []float64 {
	if bits >= NativeBitDepth {
		return samples
	}

	levels := math.Pow(2, float64(bits)) - 1
	out := make([]float64, len(samples))
	for i, s := range samples {
		// Map [-1,1] onto the level grid and back.
		scaled := (signal.Clamp(s) + 1.0) / 2.0 * levels
		out[i] = math.Round(scaled)/levels*2.0 - 1.0
	}
	return out
}

// waveshape applies a bounded tanh nonlinearity whose strength scales
// with amount. The output is normalized by tanh(k) so peak amplitude
// never exceeds the input's full scale. Amount zero is an exact
// identity with no arithmetic applied.
func waveshape(samples []float64, amount float64) []float64 {
	if amount == 0 {
		return samples
	}

	k := 1.0 + 4.0*amount
	norm := math.Tanh(k)
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = math.Tanh(k*s) / norm
	}
	return out
}

// smear convolves the signal with a normalized one-sided exponential
// decay kernel of the given width, approximating echo and dispersion on
// the link. Width zero (or a kernel shorter than two samples) is an
// exact identity.
func smear(samples []float64, widthMs float64, sampleRate int) []float64 {
	kernelLen := int(widthMs / 1000.0 * float64(sampleRate))
	if kernelLen < 2 {
		return samples
	}

	kernel := make([]float64, kernelLen)
	var sum float64
	for i := range kernel {
		kernel[i] = math.Exp(-3.0 * float64(i) / float64(kernelLen))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	out := make([]float64, len(samples))
	for i := range samples {
		var acc float64
		for k, h := range kernel {
			j := i - k
			if j < 0 {
				break
			}
			acc += h * samples[j]
		}
		out[i] = acc
	}
	return out
}
