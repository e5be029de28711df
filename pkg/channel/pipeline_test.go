package channel

import (
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satsim-server/pkg/errors"
	"satsim-server/pkg/signal"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// testTone builds a modulated multi-tone signal resembling voiced speech.
func testTone(durationS float64, sampleRate int) signal.Buffer {
	n := int(durationS * float64(sampleRate))
	samples := make([]float64, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		env := 0.6 + 0.4*math.Sin(2*math.Pi*3*t)
		samples[i] = env * (0.4*math.Sin(2*math.Pi*220*t) +
			0.25*math.Sin(2*math.Pi*440*t) +
			0.15*math.Sin(2*math.Pi*880*t))
	}
	return signal.Buffer{Samples: samples, SampleRate: sampleRate}
}

func seed(v int64) *int64 {
	return &v
}

func TestPipeline_IdentityConfig(t *testing.T) {
	input := testTone(0.5, 16000)
	pipeline := NewPipeline(testLogger(), Identity(16000))

	output, err := pipeline.Run(input)
	require.NoError(t, err)

	require.Equal(t, input.Len(), output.Len())
	assert.Equal(t, input.SampleRate, output.SampleRate)
	for i := range input.Samples {
		if input.Samples[i] != output.Samples[i] {
			t.Fatalf("identity config changed sample %d: %v != %v", i, input.Samples[i], output.Samples[i])
		}
	}
}

func TestPipeline_PreservesLength(t *testing.T) {
	input := testTone(0.73, 8000)

	configs := []TransmissionConfig{
		DefaultTransmissionConfig(),
		{
			NoiseLevel:      0.3,
			PacketLossRate:  0.5,
			PacketSegmentMs: 20,
			Compression: CompressionConfig{
				BandwidthHz:              1000,
				QuantizationBits:         4,
				HarmonicDistortionAmount: 0.8,
				TemporalSmearMs:          40,
			},
			RandomSeed: seed(7),
		},
	}

	for _, cfg := range configs {
		cfg.RandomSeed = seed(7)
		output, err := NewPipeline(testLogger(), cfg).Run(input)
		require.NoError(t, err)
		assert.Equal(t, input.Len(), output.Len())
		assert.Equal(t, input.SampleRate, output.SampleRate)
	}
}

func TestPipeline_DoesNotMutateInput(t *testing.T) {
	input := testTone(0.25, 16000)
	original := input.Clone()

	cfg := DefaultTransmissionConfig()
	cfg.RandomSeed = seed(99)
	_, err := NewPipeline(testLogger(), cfg).Run(input)
	require.NoError(t, err)

	assert.Equal(t, original.Samples, input.Samples)
}

func TestPipeline_FullPacketLossYieldsSilence(t *testing.T) {
	input := testTone(0.5, 16000)

	cfg := Identity(16000)
	cfg.PacketLossRate = 1.0
	cfg.PacketSegmentMs = 50
	cfg.RandomSeed = seed(1)

	output, err := NewPipeline(testLogger(), cfg).Run(input)
	require.NoError(t, err)

	require.Equal(t, input.Len(), output.Len())
	for i, s := range output.Samples {
		if s != 0 {
			t.Fatalf("expected silence at sample %d, got %v", i, s)
		}
	}
}

func TestPipeline_Determinism(t *testing.T) {
	input := testTone(0.5, 16000)

	cfg := DefaultTransmissionConfig()
	cfg.RandomSeed = seed(12345)

	first, err := NewPipeline(testLogger(), cfg).Run(input)
	require.NoError(t, err)
	second, err := NewPipeline(testLogger(), cfg).Run(input)
	require.NoError(t, err)

	assert.Equal(t, first.Samples, second.Samples, "same seed must be bit-identical")

	cfg.RandomSeed = seed(54321)
	third, err := NewPipeline(testLogger(), cfg).Run(input)
	require.NoError(t, err)

	assert.NotEqual(t, first.Samples, third.Samples, "different seeds should diverge")
}

func TestPipeline_RejectsInvalidConfig(t *testing.T) {
	input := testTone(0.1, 16000)

	tests := []struct {
		name   string
		mutate func(*TransmissionConfig)
	}{
		{"negative noise level", func(c *TransmissionConfig) { c.NoiseLevel = -0.1 }},
		{"NaN noise level", func(c *TransmissionConfig) { c.NoiseLevel = math.NaN() }},
		{"packet loss above one", func(c *TransmissionConfig) { c.PacketLossRate = 1.5 }},
		{"negative packet loss", func(c *TransmissionConfig) { c.PacketLossRate = -0.01 }},
		{"zero segment duration", func(c *TransmissionConfig) { c.PacketSegmentMs = 0 }},
		{"zero bandwidth", func(c *TransmissionConfig) { c.Compression.BandwidthHz = 0 }},
		{"Inf bandwidth", func(c *TransmissionConfig) { c.Compression.BandwidthHz = math.Inf(1) }},
		{"zero quantization bits", func(c *TransmissionConfig) { c.Compression.QuantizationBits = 0 }},
		{"negative distortion", func(c *TransmissionConfig) { c.Compression.HarmonicDistortionAmount = -1 }},
		{"negative smear", func(c *TransmissionConfig) { c.Compression.TemporalSmearMs = -5 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultTransmissionConfig()
			tc.mutate(&cfg)

			_, err := NewPipeline(testLogger(), cfg).Run(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidConfig), "expected ErrInvalidConfig, got %v", err)
		})
	}
}

func TestPipeline_RejectsEmptySignal(t *testing.T) {
	empty := signal.Buffer{Samples: nil, SampleRate: 16000}
	_, err := NewPipeline(testLogger(), DefaultTransmissionConfig()).Run(empty)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEmptySignal))
}
