package channel

import (
	"math"

	"satsim-server/pkg/errors"
)

// CompressionConfig controls the lossy-coding artifact sub-effects.
type CompressionConfig struct {
	// BandwidthHz is the low-pass cutoff approximating channel bandwidth.
	// A cutoff at or above Nyquist disables filtering.
	BandwidthHz float64 `json:"bandwidth_hz"`

	// QuantizationBits is the effective coding bit depth. Depths at or
	// above native PCM16 resolution disable requantization.
	QuantizationBits int `json:"quantization_bits"`

	// HarmonicDistortionAmount scales the bounded waveshaping
	// nonlinearity. Zero is an exact identity.
	HarmonicDistortionAmount float64 `json:"harmonic_distortion_amount"`

	// TemporalSmearMs is the width of the smoothing kernel approximating
	// echo/dispersion. Zero is an exact identity.
	TemporalSmearMs float64 `json:"temporal_smear_ms"`
}

// TransmissionConfig describes one simulated trip over the satellite link.
type TransmissionConfig struct {
	// NoiseLevel controls injected Gaussian noise. The noise standard
	// deviation is NoiseLevel times the signal's peak amplitude.
	NoiseLevel float64 `json:"noise_level"`

	// PacketLossRate is the independent drop probability per segment.
	PacketLossRate float64 `json:"packet_loss_rate"`

	// PacketSegmentMs is the duration of each droppable segment.
	PacketSegmentMs float64 `json:"packet_segment_ms"`

	Compression CompressionConfig `json:"compression"`

	// RandomSeed makes all stochastic stages reproducible when set.
	// When nil, each run draws fresh entropy.
	RandomSeed *int64 `json:"random_seed,omitempty"`
}

// NativeBitDepth is the bit depth at which requantization becomes a no-op.
// Signals enter the pipeline from 16-bit PCM, so 16 bits is full native
// resolution.
const NativeBitDepth = 16

// DefaultTransmissionConfig returns a moderate degradation profile.
func DefaultTransmissionConfig() TransmissionConfig {
	return TransmissionConfig{
		NoiseLevel:      0.05,
		PacketLossRate:  0.05,
		PacketSegmentMs: 100,
		Compression: CompressionConfig{
			BandwidthHz:              3400, // telephony-grade channel
			QuantizationBits:         12,
			HarmonicDistortionAmount: 0.1,
			TemporalSmearMs:          10,
		},
	}
}

// Validate checks every field against its valid domain. It is called
// before any stage runs so an invalid configuration never produces
// partial output.
func (c TransmissionConfig) Validate() error {
	if !isFinite(c.NoiseLevel) || c.NoiseLevel < 0 {
		return errors.NewInvalidConfig("noise_level", c.NoiseLevel,
			"noise_level must be a finite value >= 0")
	}
	if !isFinite(c.PacketLossRate) || c.PacketLossRate < 0 || c.PacketLossRate > 1 {
		return errors.NewInvalidConfig("packet_loss_rate", c.PacketLossRate,
			"packet_loss_rate must be a finite value in [0, 1]")
	}
	if !isFinite(c.PacketSegmentMs) || c.PacketSegmentMs <= 0 {
		return errors.NewInvalidConfig("packet_segment_ms", c.PacketSegmentMs,
			"packet_segment_ms must be a finite value > 0")
	}
	if !isFinite(c.Compression.BandwidthHz) || c.Compression.BandwidthHz <= 0 {
		return errors.NewInvalidConfig("bandwidth_hz", c.Compression.BandwidthHz,
			"bandwidth_hz must be a finite value > 0")
	}
	if c.Compression.QuantizationBits < 1 {
		return errors.NewInvalidConfig("quantization_bits", c.Compression.QuantizationBits,
			"quantization_bits must be an integer >= 1")
	}
	if !isFinite(c.Compression.HarmonicDistortionAmount) || c.Compression.HarmonicDistortionAmount < 0 {
		return errors.NewInvalidConfig("harmonic_distortion_amount", c.Compression.HarmonicDistortionAmount,
			"harmonic_distortion_amount must be a finite value >= 0")
	}
	if !isFinite(c.Compression.TemporalSmearMs) || c.Compression.TemporalSmearMs < 0 {
		return errors.NewInvalidConfig("temporal_smear_ms", c.Compression.TemporalSmearMs,
			"temporal_smear_ms must be a finite value >= 0")
	}
	return nil
}

// Identity returns a config under which the pipeline is a bit-for-bit
// identity at the given sample rate. Useful for tests and baselines.
func Identity(sampleRate int) TransmissionConfig {
	return TransmissionConfig{
		NoiseLevel:      0,
		PacketLossRate:  0,
		PacketSegmentMs: 100,
		Compression: CompressionConfig{
			BandwidthHz:              float64(sampleRate) / 2.0,
			QuantizationBits:         NativeBitDepth,
			HarmonicDistortionAmount: 0,
			TemporalSmearMs:          0,
		},
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
