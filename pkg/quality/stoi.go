package quality

import (
	"math"

	"github.com/mjibson/go-dsp/fft"

	"satsim-server/pkg/errors"
)

// Short-time objective intelligibility, after Taal et al. (2011):
// both signals are segmented into overlapping Hann-windowed frames,
// frame spectra are grouped into one-third-octave bands, and the
// correlation between clipped, normalized band envelopes over short
// analysis segments is averaged into a single score. Scores land in
// roughly [0, 1], higher meaning more intelligible.
const (
	stoiNumBands      = 15
	stoiLowestBandHz  = 150.0
	stoiSegmentFrames = 30    // ~384 ms of envelope per analysis segment
	stoiClipDB        = -15.0 // lower SDR bound before clipping
	stoiDynamicRange  = 40.0  // silent-frame exclusion threshold in dB
)

// STOI computes the short-time objective intelligibility of a degraded
// signal against its clean reference. Both slices must have the same
// length and describe signals at the same sample rate; the evaluator
// enforces that before calling. The metric needs enough signal for at
// least one full analysis segment and returns an error for shorter
// inputs.
func STOI(reference, degraded []float64, sampleRate int) (float64, error) {
	frameLen := nextPow2(int(0.025 * float64(sampleRate)))
	hop := frameLen / 2

	refFrames := spectralFrames(reference, frameLen, hop)
	degFrames := spectralFrames(degraded, frameLen, hop)
	if len(refFrames) < stoiSegmentFrames {
		return 0, errors.New("signal too short for STOI").
			WithField("frames", len(refFrames)).
			WithField("frames_required", stoiSegmentFrames)
	}

	// Exclude frames where the reference is effectively silent; they
	// carry no intelligibility information.
	refFrames, degFrames = dropSilentFrames(refFrames, degFrames)
	if len(refFrames) < stoiSegmentFrames {
		return 0, errors.New("too little active speech for STOI").
			WithField("active_frames", len(refFrames))
	}

	bands := thirdOctaveBands(sampleRate, frameLen)
	if len(bands) == 0 {
		return 0, errors.New("no usable third-octave bands at this sample rate").
			WithField("sample_rate", sampleRate)
	}

	refEnv := bandEnvelopes(refFrames, bands)
	degEnv := bandEnvelopes(degFrames, bands)

	clipFactor := 1.0 + math.Pow(10, -stoiClipDB/20.0)

	var sum float64
	var count int
	for j := range bands {
		for m := stoiSegmentFrames; m <= len(refFrames); m++ {
			x := refEnv[j][m-stoiSegmentFrames : m]
			y := degEnv[j][m-stoiSegmentFrames : m]

			alpha := norm(x) / math.Max(norm(y), 1e-12)
			clipped := make([]float64, len(y))
			for n := range y {
				clipped[n] = math.Min(alpha*y[n], x[n]*clipFactor)
			}

			sum += correlation(x, clipped)
			count++
		}
	}

	if count == 0 {
		return 0, errors.New("signal too short for STOI")
	}
	return sum / float64(count), nil
}

// spectralFrames returns the one-sided magnitude spectrum of each
// Hann-windowed frame.
func spectralFrames(samples []float64, frameLen, hop int) [][]float64 {
	if len(samples) < frameLen {
		return nil
	}

	window := hannWindow(frameLen)
	numFrames := (len(samples)-frameLen)/hop + 1

	frames := make([][]float64, 0, numFrames)
	buf := make([]float64, frameLen)
	for f := 0; f < numFrames; f++ {
		offset := f * hop
		for i := 0; i < frameLen; i++ {
			buf[i] = samples[offset+i] * window[i]
		}

		spectrum := fft.FFTReal(buf)
		mags := make([]float64, frameLen/2+1)
		for k := range mags {
			mags[k] = cmplxAbs(spectrum[k])
		}
		frames = append(frames, mags)
	}
	return frames
}

// dropSilentFrames removes frame pairs whose reference energy is more
// than stoiDynamicRange dB below the loudest reference frame.
func dropSilentFrames(refFrames, degFrames [][]float64) ([][]float64, [][]float64) {
	energies := make([]float64, len(refFrames))
	maxEnergy := 0.0
	for i, frame := range refFrames {
		var e float64
		for _, m := range frame {
			e += m * m
		}
		energies[i] = e
		if e > maxEnergy {
			maxEnergy = e
		}
	}
	if maxEnergy == 0 {
		return refFrames, degFrames
	}

	threshold := maxEnergy * math.Pow(10, -stoiDynamicRange/10.0)
	keptRef := make([][]float64, 0, len(refFrames))
	keptDeg := make([][]float64, 0, len(degFrames))
	for i := range refFrames {
		if energies[i] >= threshold {
			keptRef = append(keptRef, refFrames[i])
			keptDeg = append(keptDeg, degFrames[i])
		}
	}
	return keptRef, keptDeg
}

type band struct {
	firstBin int
	lastBin  int // inclusive
}

// thirdOctaveBands maps FFT bins into one-third-octave bands starting at
// stoiLowestBandHz. Bands that fall entirely above Nyquist are excluded
// so the metric stays defined at telephony rates.
func thirdOctaveBands(sampleRate, frameLen int) []band {
	nyquist := float64(sampleRate) / 2.0
	binHz := float64(sampleRate) / float64(frameLen)

	var bands []band
	for j := 0; j < stoiNumBands; j++ {
		center := stoiLowestBandHz * math.Pow(2, float64(j)/3.0)
		lower := center / math.Pow(2, 1.0/6.0)
		upper := center * math.Pow(2, 1.0/6.0)
		if lower >= nyquist {
			break
		}
		if upper > nyquist {
			upper = nyquist
		}

		first := int(math.Ceil(lower / binHz))
		last := int(math.Floor(upper / binHz))
		if last > frameLen/2 {
			last = frameLen / 2
		}
		if first > last {
			continue
		}
		bands = append(bands, band{firstBin: first, lastBin: last})
	}
	return bands
}

// bandEnvelopes reduces per-frame spectra to per-band envelope
// trajectories: env[band][frame].
func bandEnvelopes(frames [][]float64, bands []band) [][]float64 {
	env := make([][]float64, len(bands))
	for j := range bands {
		env[j] = make([]float64, len(frames))
	}
	for f, frame := range frames {
		for j, b := range bands {
			var e float64
			for k := b.firstBin; k <= b.lastBin; k++ {
				e += frame[k] * frame[k]
			}
			env[j][f] = math.Sqrt(e)
		}
	}
	return env
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// correlation is the sample correlation coefficient between two equal
// length vectors. Degenerate (zero variance) inputs yield zero.
func correlation(x, y []float64) float64 {
	n := float64(len(x))
	var meanX, meanY float64
	for i := range x {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= n
	meanY /= n

	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
