package quality

import (
	"math"

	"github.com/sirupsen/logrus"

	"satsim-server/pkg/errors"
	"satsim-server/pkg/metrics"
	"satsim-server/pkg/signal"
)

// MetricResult is the tagged outcome of a single quality metric. A
// metric either computed a value or carries the reason it could not;
// "not computed" is never conflated with a perfect score.
type MetricResult struct {
	Computed bool    `json:"computed"`
	Value    float64 `json:"value"`
	Reason   string  `json:"reason,omitempty"`
}

func computed(value float64) MetricResult {
	return MetricResult{Computed: true, Value: value}
}

func notComputed(reason string) MetricResult {
	return MetricResult{Computed: false, Reason: reason}
}

// EvaluationResult is the immutable report of one evaluate call.
type EvaluationResult struct {
	STOI MetricResult `json:"stoi"`
	PESQ MetricResult `json:"pesq"`
	WER  MetricResult `json:"wer"`

	// Transcripts WER was computed from, kept for auditability.
	ReferenceTranscript  string `json:"reference_transcript,omitempty"`
	HypothesisTranscript string `json:"hypothesis_transcript,omitempty"`

	// Waveform statistics, always computable for aligned signals.
	SNRdB       float64 `json:"snr_db"`
	RMSE        float64 `json:"rmse"`
	Correlation float64 `json:"correlation"`
}

// TranscriptPair carries the reference and hypothesis transcripts for
// WER. A nil pair means transcripts were not supplied and WER is
// omitted from the result.
type TranscriptPair struct {
	Reference  string
	Hypothesis string
}

// Evaluator scores a degraded signal against its clean reference. It is
// stateless and safe for concurrent use.
type Evaluator struct {
	logger *logrus.Logger
}

// NewEvaluator creates a quality evaluator.
func NewEvaluator(logger *logrus.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Evaluate computes STOI, PESQ and (when transcripts are supplied) WER
// between a reference and a degraded signal.
//
// Input contract violations - empty signals, differing sample rates,
// differing lengths - are hard errors: they indicate caller mistakes and
// are never silently coerced. Per-metric precondition failures, such as
// an unsupported sample rate for PESQ, do not abort the evaluation; the
// affected metric is reported as not computed and the rest still run.
func (e *Evaluator) Evaluate(reference, degraded signal.Buffer, transcripts *TranscriptPair) (EvaluationResult, error) {
	if err := reference.Validate("reference"); err != nil {
		return EvaluationResult{}, err
	}
	if err := degraded.Validate("degraded"); err != nil {
		return EvaluationResult{}, err
	}
	if reference.SampleRate != degraded.SampleRate {
		return EvaluationResult{}, errors.Wrap(errors.ErrSampleRateMismatch,
			"evaluator requires equal sample rates; resampling belongs to the caller").
			WithField("reference_rate", reference.SampleRate).
			WithField("degraded_rate", degraded.SampleRate)
	}
	if reference.Len() != degraded.Len() {
		return EvaluationResult{}, errors.Wrap(errors.ErrLengthMismatch,
			"evaluator requires equal length signals").
			WithField("reference_samples", reference.Len()).
			WithField("degraded_samples", degraded.Len())
	}

	result := EvaluationResult{}

	if stoi, err := STOI(reference.Samples, degraded.Samples, reference.SampleRate); err != nil {
		e.logger.WithError(err).Warn("STOI could not be computed")
		metrics.MetricFailed("stoi", "computation_failed")
		result.STOI = notComputed(err.Error())
	} else {
		result.STOI = computed(stoi)
	}

	if pesq, err := PESQ(reference.Samples, degraded.Samples, reference.SampleRate); err != nil {
		reason := "computation_failed"
		if errors.Is(err, errors.ErrUnsupportedSampleRate) {
			reason = "unsupported_sample_rate"
		}
		e.logger.WithError(err).WithField("sample_rate", reference.SampleRate).
			Warn("PESQ could not be computed")
		metrics.MetricFailed("pesq", reason)
		result.PESQ = notComputed(err.Error())
	} else {
		result.PESQ = computed(pesq)
	}

	if transcripts == nil {
		result.WER = notComputed("transcripts not supplied")
	} else {
		result.ReferenceTranscript = transcripts.Reference
		result.HypothesisTranscript = transcripts.Hypothesis
		if wer, err := WordErrorRate(transcripts.Reference, transcripts.Hypothesis); err != nil {
			e.logger.WithError(err).Warn("WER could not be computed")
			metrics.MetricFailed("wer", "computation_failed")
			result.WER = notComputed(err.Error())
		} else {
			result.WER = computed(wer)
		}
	}

	result.SNRdB, result.RMSE, result.Correlation = waveformStats(reference.Samples, degraded.Samples)

	metrics.EvaluationCompleted()
	observeResult(result)

	e.logger.WithFields(logrus.Fields{
		"stoi_computed": result.STOI.Computed,
		"pesq_computed": result.PESQ.Computed,
		"wer_computed":  result.WER.Computed,
		"snr_db":        result.SNRdB,
	}).Debug("Quality evaluation complete")

	return result, nil
}

// waveformStats computes the signal-to-noise ratio (treating the
// reference/degraded difference as noise), root mean square error, and
// sample correlation between the two signals.
func waveformStats(reference, degraded []float64) (snrDB, rmse, corr float64) {
	var signalPower, noisePower float64
	for i := range reference {
		d := reference[i] - degraded[i]
		signalPower += reference[i] * reference[i]
		noisePower += d * d
	}
	n := float64(len(reference))
	signalPower /= n
	noisePower /= n

	snrDB = 10 * math.Log10(signalPower/(noisePower+1e-10))
	rmse = math.Sqrt(noisePower)
	corr = correlation(reference, degraded)
	return snrDB, rmse, corr
}

func observeResult(result EvaluationResult) {
	var stoi, pesq, wer *float64
	if result.STOI.Computed {
		stoi = &result.STOI.Value
	}
	if result.PESQ.Computed {
		pesq = &result.PESQ.Value
	}
	if result.WER.Computed {
		wer = &result.WER.Value
	}
	metrics.ObserveScores(stoi, pesq, wer)
}
