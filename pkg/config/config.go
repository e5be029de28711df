package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"satsim-server/pkg/channel"
)

// Config represents the complete application configuration.
type Config struct {
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Simulation SimulationConfig `json:"simulation"`
	STT        STTConfig        `json:"stt"`
	Messaging  MessagingConfig  `json:"messaging"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `json:"level"`  // LOG_LEVEL: debug, info, warn, error
	Format string `json:"format"` // LOG_FORMAT: text or json
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"` // METRICS_ENABLED
	Listen  string `json:"listen"`  // METRICS_LISTEN, e.g. ":9090"
}

// SimulationConfig carries the default transmission parameters applied
// when the caller does not override them.
type SimulationConfig struct {
	Defaults channel.TransmissionConfig `json:"defaults"`
}

// STTConfig selects and configures the transcription collaborator.
type STTConfig struct {
	// Provider: "google", "amazon", "mock" or "" (transcription
	// disabled; WER is then omitted from evaluation reports).
	Provider string `json:"provider"`

	Language string `json:"language"`

	Google GoogleSTTConfig `json:"google"`
	Amazon AmazonSTTConfig `json:"amazon"`
}

// GoogleSTTConfig configures the Google Speech-to-Text provider.
type GoogleSTTConfig struct {
	APIKey          string `json:"-"`
	CredentialsFile string `json:"credentials_file"`
	Model           string `json:"model"`
}

// AmazonSTTConfig configures the Amazon Transcribe provider.
type AmazonSTTConfig struct {
	Region          string `json:"region"`
	AccessKeyID     string `json:"-"`
	SecretAccessKey string `json:"-"`
}

// MessagingConfig configures optional AMQP report publishing.
type MessagingConfig struct {
	AMQPUrl   string `json:"-"` // AMQP_URL; empty disables publishing
	QueueName string `json:"queue_name"`
}

// Load reads configuration from the environment, loading a .env file
// first when present, and validates the result.
func Load(logger *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.WithError(err).Debug("No .env file loaded, using environment only")
	}

	cfg := &Config{
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", false),
			Listen:  getEnv("METRICS_LISTEN", ":9090"),
		},
		Simulation: SimulationConfig{
			Defaults: loadTransmissionDefaults(),
		},
		STT: STTConfig{
			Provider: strings.ToLower(getEnv("STT_PROVIDER", "")),
			Language: getEnv("STT_LANGUAGE", "en-US"),
			Google: GoogleSTTConfig{
				APIKey:          getEnv("GOOGLE_STT_API_KEY", ""),
				CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
				Model:           getEnv("GOOGLE_STT_MODEL", ""),
			},
			Amazon: AmazonSTTConfig{
				Region:          getEnv("AWS_REGION", "us-east-1"),
				AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			},
		},
		Messaging: MessagingConfig{
			AMQPUrl:   getEnv("AMQP_URL", ""),
			QueueName: getEnv("AMQP_QUEUE_NAME", "satsim_evaluations"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadTransmissionDefaults() channel.TransmissionConfig {
	defaults := channel.DefaultTransmissionConfig()
	defaults.NoiseLevel = getEnvFloat("SIM_NOISE_LEVEL", defaults.NoiseLevel)
	defaults.PacketLossRate = getEnvFloat("SIM_PACKET_LOSS_RATE", defaults.PacketLossRate)
	defaults.PacketSegmentMs = getEnvFloat("SIM_PACKET_SEGMENT_MS", defaults.PacketSegmentMs)
	defaults.Compression.BandwidthHz = getEnvFloat("SIM_BANDWIDTH_HZ", defaults.Compression.BandwidthHz)
	defaults.Compression.QuantizationBits = getEnvInt("SIM_QUANTIZATION_BITS", defaults.Compression.QuantizationBits)
	defaults.Compression.HarmonicDistortionAmount = getEnvFloat("SIM_HARMONIC_DISTORTION", defaults.Compression.HarmonicDistortionAmount)
	defaults.Compression.TemporalSmearMs = getEnvFloat("SIM_TEMPORAL_SMEAR_MS", defaults.Compression.TemporalSmearMs)

	if seedStr := os.Getenv("SIM_RANDOM_SEED"); seedStr != "" {
		if seed, err := strconv.ParseInt(seedStr, 10, 64); err == nil {
			defaults.RandomSeed = &seed
		}
	}
	return defaults
}

// Validate checks cross-field consistency of the loaded configuration.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q (expected text or json)", c.Logging.Format)
	}

	switch c.STT.Provider {
	case "", "mock", "google", "amazon":
	default:
		return fmt.Errorf("unknown STT_PROVIDER %q", c.STT.Provider)
	}

	// Simulation defaults go through the same validation the pipeline
	// applies, so a bad .env fails at startup rather than mid-run.
	if err := c.Simulation.Defaults.Validate(); err != nil {
		return err
	}

	return nil
}

// ConfigureLogger applies the logging configuration to a logrus logger.
func (c *Config) ConfigureLogger(logger *logrus.Logger) {
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if c.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
