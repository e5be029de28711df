package config

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satsim-server/pkg/errors"
)

func clearSimEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOG_LEVEL", "LOG_FORMAT", "METRICS_ENABLED", "METRICS_LISTEN",
		"SIM_NOISE_LEVEL", "SIM_PACKET_LOSS_RATE", "SIM_PACKET_SEGMENT_MS",
		"SIM_BANDWIDTH_HZ", "SIM_QUANTIZATION_BITS", "SIM_HARMONIC_DISTORTION",
		"SIM_TEMPORAL_SMEAR_MS", "SIM_RANDOM_SEED",
		"STT_PROVIDER", "STT_LANGUAGE", "AMQP_URL", "AMQP_QUEUE_NAME",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearSimEnv(t)

	cfg, err := Load(logrus.New())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9090", cfg.Metrics.Listen)
	assert.Equal(t, "", cfg.STT.Provider)
	assert.Equal(t, "en-US", cfg.STT.Language)
	assert.Equal(t, "satsim_evaluations", cfg.Messaging.QueueName)

	defaults := cfg.Simulation.Defaults
	assert.InDelta(t, 0.05, defaults.NoiseLevel, 1e-9)
	assert.InDelta(t, 0.05, defaults.PacketLossRate, 1e-9)
	assert.Nil(t, defaults.RandomSeed)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearSimEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("SIM_NOISE_LEVEL", "0.2")
	t.Setenv("SIM_QUANTIZATION_BITS", "6")
	t.Setenv("SIM_RANDOM_SEED", "424242")
	t.Setenv("STT_PROVIDER", "MOCK")

	cfg, err := Load(logrus.New())
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.InDelta(t, 0.2, cfg.Simulation.Defaults.NoiseLevel, 1e-9)
	assert.Equal(t, 6, cfg.Simulation.Defaults.Compression.QuantizationBits)
	require.NotNil(t, cfg.Simulation.Defaults.RandomSeed)
	assert.Equal(t, int64(424242), *cfg.Simulation.Defaults.RandomSeed)
	assert.Equal(t, "mock", cfg.STT.Provider, "provider names are normalized to lower case")
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Run("bad log level", func(t *testing.T) {
		clearSimEnv(t)
		t.Setenv("LOG_LEVEL", "verbose")

		_, err := Load(logrus.New())
		require.Error(t, err)
	})

	t.Run("bad log format", func(t *testing.T) {
		clearSimEnv(t)
		t.Setenv("LOG_FORMAT", "xml")

		_, err := Load(logrus.New())
		require.Error(t, err)
	})

	t.Run("unknown STT provider", func(t *testing.T) {
		clearSimEnv(t)
		t.Setenv("STT_PROVIDER", "whisper")

		_, err := Load(logrus.New())
		require.Error(t, err)
	})

	t.Run("invalid simulation defaults", func(t *testing.T) {
		clearSimEnv(t)
		t.Setenv("SIM_PACKET_LOSS_RATE", "1.5")

		_, err := Load(logrus.New())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
	})
}

func TestConfigureLogger(t *testing.T) {
	clearSimEnv(t)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(logrus.New())
	require.NoError(t, err)

	logger := logrus.New()
	cfg.ConfigureLogger(logger)

	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}
