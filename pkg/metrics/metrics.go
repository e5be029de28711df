package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once

	// Simulation metrics
	SimulationsTotal   prometheus.Counter
	StageDuration      *prometheus.HistogramVec
	SimulationDuration prometheus.Histogram

	// Evaluation metrics
	EvaluationsTotal prometheus.Counter
	MetricFailures   *prometheus.CounterVec
	STOIScore        prometheus.Histogram
	PESQScore        prometheus.Histogram
	WERScore         prometheus.Histogram

	// STT metrics
	STTRequestsTotal *prometheus.CounterVec
	STTLatency       *prometheus.HistogramVec

	// AMQP metrics
	AMQPPublishedReports *prometheus.CounterVec
	AMQPConnectionErrors prometheus.Counter
)

// Init initializes all metrics and registers them with Prometheus.
// Metric helpers are safe to call before Init; they become no-ops.
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		SimulationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "satsim_simulations_total",
			Help: "Total number of completed transmission simulations",
		})

		StageDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "satsim_stage_duration_seconds",
				Help:    "Time spent in each degradation stage",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
			},
			[]string{"stage"},
		)

		SimulationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "satsim_simulation_duration_seconds",
			Help:    "End-to-end duration of a transmission simulation",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		})

		EvaluationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "satsim_evaluations_total",
			Help: "Total number of quality evaluations performed",
		})

		MetricFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satsim_metric_failures_total",
				Help: "Quality metrics that could not be computed",
			},
			[]string{"metric", "reason"},
		)

		STOIScore = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "satsim_stoi_score",
			Help:    "Distribution of computed STOI scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		})

		PESQScore = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "satsim_pesq_score",
			Help:    "Distribution of computed PESQ scores",
			Buckets: prometheus.LinearBuckets(-0.5, 0.5, 11),
		})

		WERScore = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "satsim_wer",
			Help:    "Distribution of computed word error rates",
			Buckets: prometheus.LinearBuckets(0, 0.1, 16),
		})

		STTRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satsim_stt_requests_total",
				Help: "Total transcription requests by provider and status",
			},
			[]string{"provider", "status"},
		)

		STTLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "satsim_stt_latency_seconds",
				Help:    "Latency of transcription requests",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider"},
		)

		AMQPPublishedReports = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satsim_amqp_published_reports_total",
				Help: "Evaluation reports published to AMQP by status",
			},
			[]string{"status"},
		)

		AMQPConnectionErrors = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "satsim_amqp_connection_errors_total",
			Help: "AMQP connection failures",
		})

		registry.MustRegister(
			SimulationsTotal,
			StageDuration,
			SimulationDuration,
			EvaluationsTotal,
			MetricFailures,
			STOIScore,
			PESQScore,
			WERScore,
			STTRequestsTotal,
			STTLatency,
			AMQPPublishedReports,
			AMQPConnectionErrors,
		)

		logger.Info("Prometheus metrics initialized")
	})
}

// Handler returns an HTTP handler serving the metrics registry.
func Handler() http.Handler {
	if registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveStageDuration records time spent in a degradation stage.
func ObserveStageDuration(stage string, d time.Duration) {
	if StageDuration == nil {
		return
	}
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SimulationCompleted counts one finished simulation.
func SimulationCompleted() {
	if SimulationsTotal == nil {
		return
	}
	SimulationsTotal.Inc()
}

// EvaluationCompleted counts one finished evaluation.
func EvaluationCompleted() {
	if EvaluationsTotal == nil {
		return
	}
	EvaluationsTotal.Inc()
}

// MetricFailed counts a quality metric that could not be computed.
func MetricFailed(metric, reason string) {
	if MetricFailures == nil {
		return
	}
	MetricFailures.WithLabelValues(metric, reason).Inc()
}

// ObserveScores records computed metric values on their histograms.
// Any nil pointer argument is skipped.
func ObserveScores(stoi, pesq, wer *float64) {
	if STOIScore == nil {
		return
	}
	if stoi != nil {
		STOIScore.Observe(*stoi)
	}
	if pesq != nil {
		PESQScore.Observe(*pesq)
	}
	if wer != nil {
		WERScore.Observe(*wer)
	}
}

// ObserveSTTRequest records one transcription request.
func ObserveSTTRequest(provider, status string, d time.Duration) {
	if STTRequestsTotal == nil {
		return
	}
	STTRequestsTotal.WithLabelValues(provider, status).Inc()
	STTLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// AMQPPublished records one AMQP publish attempt.
func AMQPPublished(status string) {
	if AMQPPublishedReports == nil {
		return
	}
	AMQPPublishedReports.WithLabelValues(status).Inc()
}

// AMQPConnectionError records one AMQP connection failure.
func AMQPConnectionError() {
	if AMQPConnectionErrors == nil {
		return
	}
	AMQPConnectionErrors.Inc()
}
