package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"satsim-server/pkg/channel"
	"satsim-server/pkg/config"
	"satsim-server/pkg/messaging"
	"satsim-server/pkg/metrics"
	"satsim-server/pkg/quality"
	"satsim-server/pkg/signal"
	"satsim-server/pkg/stt"
	"satsim-server/pkg/wav"
)

var logger = logrus.New()

func main() {
	inputPath := flag.String("in", "", "path to the clean reference WAV file (required)")
	outputPath := flag.String("out", "", "path to write the degraded WAV file (optional)")
	refTranscript := flag.String("ref-transcript", "", "reference transcript for WER (optional)")
	hypTranscript := flag.String("hyp-transcript", "", "hypothesis transcript for WER; overrides STT (optional)")
	skipEval := flag.Bool("no-eval", false, "run the degradation simulation only")
	flag.Parse()

	if *inputPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	cfg.ConfigureLogger(logger)

	if cfg.Metrics.Enabled {
		metrics.Init(logger)
		go serveMetrics(cfg.Metrics.Listen)
	}

	runID := uuid.New().String()
	runLog := logger.WithField("run_id", runID)

	reference, err := wav.Decode(*inputPath)
	if err != nil {
		runLog.WithError(err).Fatal("Failed to decode reference WAV")
	}
	runLog.WithFields(logrus.Fields{
		"samples":     reference.Len(),
		"sample_rate": reference.SampleRate,
		"duration_s":  reference.Duration(),
	}).Info("Loaded reference signal")

	simStart := time.Now()
	pipeline := channel.NewPipeline(logger, cfg.Simulation.Defaults)
	degraded, err := pipeline.Run(reference)
	if err != nil {
		runLog.WithError(err).Fatal("Transmission simulation failed")
	}
	if metrics.SimulationDuration != nil {
		metrics.SimulationDuration.Observe(time.Since(simStart).Seconds())
	}
	runLog.WithField("elapsed", time.Since(simStart)).Info("Transmission simulation complete")

	if *outputPath != "" {
		if err := wav.Encode(*outputPath, degraded); err != nil {
			runLog.WithError(err).Fatal("Failed to write degraded WAV")
		}
		runLog.WithField("path", *outputPath).Info("Wrote degraded signal")
	}

	if *skipEval {
		return
	}

	transcripts := resolveTranscripts(cfg, *refTranscript, *hypTranscript, degraded, runLog)

	evaluator := quality.NewEvaluator(logger)
	result, err := evaluator.Evaluate(reference, degraded, transcripts)
	if err != nil {
		runLog.WithError(err).Fatal("Quality evaluation failed")
	}

	printResult(result)

	if cfg.Messaging.AMQPUrl != "" {
		publishReport(cfg, runID, reference, result, runLog)
	}
}

// resolveTranscripts builds the WER transcript pair: the reference comes
// from the CLI, the hypothesis from the CLI or from the configured STT
// provider run over the degraded audio. Returns nil when WER cannot be
// attempted, which the evaluator reports as "not computed".
func resolveTranscripts(cfg *config.Config, ref, hyp string, degraded signal.Buffer, runLog *logrus.Entry) *quality.TranscriptPair {
	if ref == "" {
		return nil
	}
	if hyp != "" {
		return &quality.TranscriptPair{Reference: ref, Hypothesis: hyp}
	}
	if cfg.STT.Provider == "" {
		runLog.Warn("Reference transcript supplied but no hypothesis and no STT provider configured; WER will be omitted")
		return nil
	}

	manager := stt.NewProviderManager(logger, cfg.STT.Provider)
	var provider stt.Provider
	switch cfg.STT.Provider {
	case "google":
		provider = stt.NewGoogleProvider(logger, &cfg.STT.Google, cfg.STT.Language)
	case "amazon":
		provider = stt.NewAmazonProvider(logger, &cfg.STT.Amazon, cfg.STT.Language)
	case "mock":
		provider = stt.NewMockProvider(logger, ref)
	}
	if err := manager.RegisterProvider(provider); err != nil {
		runLog.WithError(err).Warn("STT provider unavailable; WER will be omitted")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	transcript, err := manager.Transcribe(ctx, cfg.STT.Provider, degraded)
	if err != nil {
		runLog.WithError(err).Warn("Transcription failed; WER will be omitted")
		return nil
	}
	return &quality.TranscriptPair{Reference: ref, Hypothesis: transcript}
}

func publishReport(cfg *config.Config, runID string, reference signal.Buffer, result quality.EvaluationResult, runLog *logrus.Entry) {
	client := messaging.NewAMQPClient(logger, messaging.AMQPConfig{
		URL:       cfg.Messaging.AMQPUrl,
		QueueName: cfg.Messaging.QueueName,
	})
	if err := client.Connect(); err != nil {
		runLog.WithError(err).Warn("Skipping AMQP report publishing")
		return
	}
	defer client.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	report := messaging.EvaluationReport{
		RunID:      runID,
		Timestamp:  time.Now().UTC(),
		Config:     cfg.Simulation.Defaults,
		Result:     result,
		SampleRate: reference.SampleRate,
		DurationS:  reference.Duration(),
	}
	if err := client.PublishReport(ctx, report); err != nil {
		runLog.WithError(err).Warn("Failed to publish evaluation report")
	}
}

func printResult(result quality.EvaluationResult) {
	printMetric := func(name string, m quality.MetricResult) {
		if m.Computed {
			fmt.Printf("%-6s %.4f\n", name, m.Value)
		} else {
			fmt.Printf("%-6s not computed (%s)\n", name, m.Reason)
		}
	}
	printMetric("STOI", result.STOI)
	printMetric("PESQ", result.PESQ)
	printMetric("WER", result.WER)
	fmt.Printf("SNR    %.2f dB\n", result.SNRdB)
	fmt.Printf("RMSE   %.6f\n", result.RMSE)
	fmt.Printf("CORR   %.4f\n", result.Correlation)
}

func serveMetrics(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger.WithField("listen", listen).Info("Serving Prometheus metrics")
	if err := http.ListenAndServe(listen, mux); err != nil {
		logger.WithError(err).Error("Metrics server stopped")
	}
}
