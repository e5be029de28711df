package signal

import (
	"math"

	"satsim-server/pkg/errors"
)

// Buffer holds a finite mono audio signal as normalized float64 samples.
// Samples are in the range [-1.0, 1.0]; SampleRate is in Hz.
//
// Buffers are treated as immutable once constructed: every transform in
// this codebase allocates a new Buffer rather than mutating its input, so
// a reference signal stays valid for later comparison.
type Buffer struct {
	Samples    []float64
	SampleRate int
}

// New creates a Buffer and validates its basic invariants.
func New(samples []float64, sampleRate int) (Buffer, error) {
	if len(samples) == 0 {
		return Buffer{}, errors.NewEmptySignal("input")
	}
	if sampleRate <= 0 {
		return Buffer{}, errors.New("sample rate must be positive").
			WithField("sample_rate", sampleRate)
	}
	return Buffer{Samples: samples, SampleRate: sampleRate}, nil
}

// FromPCM16 converts 16-bit PCM samples to a normalized Buffer.
func FromPCM16(pcm []int16, sampleRate int) (Buffer, error) {
	samples := make([]float64, len(pcm))
	for i, s := range pcm {
		samples[i] = float64(s) / 32768.0
	}
	return New(samples, sampleRate)
}

// ToPCM16 converts the buffer back to 16-bit PCM, clamping to full scale.
func (b Buffer) ToPCM16() []int16 {
	pcm := make([]int16, len(b.Samples))
	for i, s := range b.Samples {
		pcm[i] = int16(Clamp(s) * 32767.0)
	}
	return pcm
}

// Clone returns a deep copy of the buffer.
func (b Buffer) Clone() Buffer {
	samples := make([]float64, len(b.Samples))
	copy(samples, b.Samples)
	return Buffer{Samples: samples, SampleRate: b.SampleRate}
}

// Len returns the number of samples.
func (b Buffer) Len() int {
	return len(b.Samples)
}

// Duration returns the signal duration in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Nyquist returns the Nyquist frequency for the buffer's sample rate.
func (b Buffer) Nyquist() float64 {
	return float64(b.SampleRate) / 2.0
}

// Peak returns the maximum absolute sample amplitude.
func (b Buffer) Peak() float64 {
	peak := 0.0
	for _, s := range b.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// RMS returns the root mean square amplitude of the signal.
func (b Buffer) RMS() float64 {
	if len(b.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range b.Samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(b.Samples)))
}

// Validate checks the invariants a buffer must satisfy before entering a
// degradation stage or the evaluator.
func (b Buffer) Validate(name string) error {
	if len(b.Samples) == 0 {
		return errors.NewEmptySignal(name)
	}
	if b.SampleRate <= 0 {
		return errors.New("sample rate must be positive").
			WithField("signal", name).
			WithField("sample_rate", b.SampleRate)
	}
	return nil
}

// Clamp restricts a sample to the valid [-1.0, 1.0] amplitude range.
func Clamp(s float64) float64 {
	if s > 1.0 {
		return 1.0
	}
	if s < -1.0 {
		return -1.0
	}
	return s
}
