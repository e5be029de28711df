package quality

import (
	"math"

	"satsim-server/pkg/errors"
)

// Perceptual evaluation of speech quality in the shape of ITU-T P.862:
// level-aligned signals are transformed to Bark-scale loudness spectra,
// and symmetric plus asymmetric disturbances between reference and
// degraded loudness are aggregated into a MOS-like score on the nominal
// [-0.5, 4.5] scale. This is a compact estimate of the standardized
// procedure, not a bit-exact P.862 implementation; it preserves the
// standard's rate contract (narrowband 8 kHz, wideband 16 kHz only) and
// its qualitative behavior (identical signals score at the top of the
// scale, added distortion lowers the score).
const (
	pesqFrameMs  = 32
	pesqNumBands = 24
	pesqMaxScore = 4.5
	pesqMinScore = -0.5
)

// PESQSupportedRate reports whether the standardized procedure is
// defined at the given sample rate.
func PESQSupportedRate(sampleRate int) bool {
	return sampleRate == 8000 || sampleRate == 16000
}

// PESQ scores the perceived quality of a degraded signal against its
// clean reference. Only 8000 Hz and 16000 Hz signals are accepted; any
// other rate yields an unsupported-rate error.
func PESQ(reference, degraded []float64, sampleRate int) (float64, error) {
	if !PESQSupportedRate(sampleRate) {
		return 0, errors.Wrap(errors.ErrUnsupportedSampleRate,
			"PESQ is defined only at 8000 Hz and 16000 Hz").
			WithField("sample_rate", sampleRate)
	}

	frameLen := nextPow2(sampleRate * pesqFrameMs / 1000)
	hop := frameLen / 2
	if len(reference) < frameLen {
		return 0, errors.New("signal too short for PESQ").
			WithField("samples", len(reference)).
			WithField("samples_required", frameLen)
	}

	// Level alignment: scale the degraded signal to the reference's
	// active power so plain gain differences are not scored as
	// distortion.
	degAligned := alignLevel(reference, degraded)

	refFrames := spectralFrames(reference, frameLen, hop)
	degFrames := spectralFrames(degAligned, frameLen, hop)

	bands := barkBands(sampleRate, frameLen)

	var symSum, asymSum float64
	for f := range refFrames {
		refLoud := bandLoudness(refFrames[f], bands)
		degLoud := bandLoudness(degFrames[f], bands)

		var sym, asym float64
		for b := range bands {
			d := degLoud[b] - refLoud[b]
			sym += d * d
			// Additive distortion (degraded louder than reference) is
			// more annoying than attenuation; weight it separately.
			if d > 0 {
				asym += d * d
			}
		}
		symSum += math.Sqrt(sym / float64(len(bands)))
		asymSum += math.Sqrt(asym / float64(len(bands)))
	}

	n := float64(len(refFrames))
	dSym := symSum / n
	dAsym := asymSum / n

	score := pesqMaxScore - 18.0*dSym - 6.0*dAsym
	if score > pesqMaxScore {
		score = pesqMaxScore
	}
	if score < pesqMinScore {
		score = pesqMinScore
	}
	return score, nil
}

// alignLevel scales the degraded signal so its RMS matches the
// reference's. A silent degraded signal is returned unchanged.
func alignLevel(reference, degraded []float64) []float64 {
	refRMS := rms(reference)
	degRMS := rms(degraded)
	if degRMS == 0 {
		return degraded
	}

	gain := refRMS / degRMS
	out := make([]float64, len(degraded))
	for i, s := range degraded {
		out[i] = s * gain
	}
	return out
}

// barkBands partitions FFT bins into pesqNumBands critical-band
// intervals equally spaced on the Bark scale up to Nyquist.
func barkBands(sampleRate, frameLen int) []band {
	nyquist := float64(sampleRate) / 2.0
	binHz := float64(sampleRate) / float64(frameLen)
	maxBark := hzToBark(nyquist)

	bands := make([]band, 0, pesqNumBands)
	for b := 0; b < pesqNumBands; b++ {
		lower := barkToHz(maxBark * float64(b) / float64(pesqNumBands))
		upper := barkToHz(maxBark * float64(b+1) / float64(pesqNumBands))

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

// bandLoudness converts a magnitude spectrum to per-band loudness using
// Zwicker's power-law compression of band energy.
func bandLoudness(frame []float64, bands []band) []float64 {
	loud := make([]float64, len(bands))
	for b, bd := range bands {
		var e float64
		for k := bd.firstBin; k <= bd.lastBin; k++ {
			e += frame[k] * frame[k]
		}
		loud[b] = math.Pow(e, 0.23)
	}
	return loud
}

func hzToBark(hz float64) float64 {
	return 13.0*math.Atan(0.00076*hz) + 3.5*math.Atan(math.Pow(hz/7500.0, 2))
}

// barkToHz inverts hzToBark by bisection; the map is monotonic.
func barkToHz(bark float64) float64 {
	lo, hi := 0.0, 25000.0
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		if hzToBark(mid) < bark {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
