package stt

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"satsim-server/pkg/errors"
	"satsim-server/pkg/metrics"
	"satsim-server/pkg/signal"
)

// ErrInitializationFailed indicates a provider was used before a
// successful Initialize call.
var ErrInitializationFailed = errors.New("speech-to-text provider not initialized")

// Provider defines the interface for speech-to-text collaborators.
// Transcription is an external concern: the quality evaluator never
// calls a provider itself, it only compares the transcripts produced
// here.
type Provider interface {
	// Initialize initializes the provider with any required configuration
	Initialize() error

	// Name returns the provider name
	Name() string

	// Transcribe converts a complete in-memory signal to text
	Transcribe(ctx context.Context, buf signal.Buffer) (string, error)
}

// ProviderManager manages registered speech-to-text providers.
type ProviderManager struct {
	logger          *logrus.Logger
	providers       map[string]Provider
	defaultProvider string
}

// NewProviderManager creates a new provider manager.
func NewProviderManager(logger *logrus.Logger, defaultProvider string) *ProviderManager {
	return &ProviderManager{
		logger:          logger,
		providers:       make(map[string]Provider),
		defaultProvider: defaultProvider,
	}
}

// RegisterProvider initializes and registers a speech-to-text provider.
func (m *ProviderManager) RegisterProvider(provider Provider) error {
	if err := provider.Initialize(); err != nil {
		m.logger.WithFields(logrus.Fields{
			"provider": provider.Name(),
			"error":    err,
		}).Error("Failed to initialize speech-to-text provider")
		return err
	}

	m.providers[provider.Name()] = provider
	m.logger.WithField("provider", provider.Name()).Info("Registered speech-to-text provider")
	return nil
}

// GetProvider returns a provider by name, or the default provider when
// name is empty.
func (m *ProviderManager) GetProvider(name string) (Provider, bool) {
	if name == "" {
		name = m.defaultProvider
	}
	p, ok := m.providers[name]
	return p, ok
}

// Transcribe runs a buffer through the named provider and records
// request metrics.
func (m *ProviderManager) Transcribe(ctx context.Context, name string, buf signal.Buffer) (string, error) {
	provider, ok := m.GetProvider(name)
	if !ok {
		return "", errors.New("no such speech-to-text provider").
			WithField("provider", name)
	}

	start := time.Now()
	transcript, err := provider.Transcribe(ctx, buf)
	if err != nil {
		metrics.ObserveSTTRequest(provider.Name(), "error", time.Since(start))
		return "", errors.Wrap(err, "transcription failed").
			WithField("provider", provider.Name())
	}
	metrics.ObserveSTTRequest(provider.Name(), "ok", time.Since(start))
	return transcript, nil
}

// pcmBytes converts a buffer to 16-bit little-endian PCM for providers
// that consume raw audio.
func pcmBytes(buf signal.Buffer) []byte {
	pcm := buf.ToPCM16()
	data := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}
