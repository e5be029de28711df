package channel

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"satsim-server/pkg/metrics"
	"satsim-server/pkg/signal"
)

// Stage is a single degradation transform over an immutable buffer.
// Implementations must never mutate their input and must preserve both
// signal length and sample rate.
type Stage interface {
	Name() string
	Apply(buf signal.Buffer, rng *rand.Rand) (signal.Buffer, error)
}

// Pipeline applies the configured degradation stages in a fixed order:
// noise, then packet loss, then compression artifacts. The order mirrors
// the physical chain: channel noise corrupts the signal in flight,
// packets are lost in transit, and the receiver's lossy processing acts
// on whatever arrives.
type Pipeline struct {
	logger *logrus.Logger
	config TransmissionConfig
}

// NewPipeline creates a pipeline for one transmission configuration.
func NewPipeline(logger *logrus.Logger, config TransmissionConfig) *Pipeline {
	return &Pipeline{
		logger: logger,
		config: config,
	}
}

// Run simulates one trip over the link. The configuration is validated
// in full before any stage executes, so an invalid config never produces
// partial output. The input buffer is never mutated.
//
// Runs are deterministic when the config carries a RandomSeed; otherwise
// each run draws fresh entropy. The generator is owned by this call
// alone, so concurrent runs never share random state.
func (p *Pipeline) Run(input signal.Buffer) (signal.Buffer, error) {
	if err := input.Validate("input"); err != nil {
		return signal.Buffer{}, err
	}
	if err := p.config.Validate(); err != nil {
		return signal.Buffer{}, err
	}

	var seed int64
	if p.config.RandomSeed != nil {
		seed = *p.config.RandomSeed
	} else {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	stages := []Stage{
		NoiseStage{Level: p.config.NoiseLevel},
		PacketLossStage{Rate: p.config.PacketLossRate, SegmentMs: p.config.PacketSegmentMs},
		CompressionArtifactStage{Config: p.config.Compression},
	}

	current := input
	for _, stage := range stages {
		start := time.Now()
		next, err := stage.Apply(current, rng)
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"stage": stage.Name(),
				"error": err,
			}).Error("Degradation stage failed")
			return signal.Buffer{}, err
		}
		metrics.ObserveStageDuration(stage.Name(), time.Since(start))
		current = next
	}

	metrics.SimulationCompleted()
	p.logger.WithFields(logrus.Fields{
		"samples":          current.Len(),
		"sample_rate":      current.SampleRate,
		"noise_level":      p.config.NoiseLevel,
		"packet_loss_rate": p.config.PacketLossRate,
		"seeded":           p.config.RandomSeed != nil,
	}).Debug("Transmission simulation complete")

	return current, nil
}
