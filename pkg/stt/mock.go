package stt

import (
	"context"

	"github.com/sirupsen/logrus"

	"satsim-server/pkg/signal"
)

// MockProvider implements a deterministic speech-to-text provider for
// tests and offline runs. It returns a fixed transcript regardless of
// input, which keeps WER assertions reproducible without network
// access.
type MockProvider struct {
	logger     *logrus.Logger
	Transcript string
}

// NewMockProvider creates a new mock provider.
func NewMockProvider(logger *logrus.Logger, transcript string) *MockProvider {
	return &MockProvider{
		logger:     logger,
		Transcript: transcript,
	}
}

// Name returns the provider name.
func (p *MockProvider) Name() string {
	return "mock"
}

// Initialize initializes the mock provider.
func (p *MockProvider) Initialize() error {
	p.logger.Info("Mock STT provider initialized")
	return nil
}

// Transcribe returns the configured transcript.
func (p *MockProvider) Transcribe(ctx context.Context, buf signal.Buffer) (string, error) {
	if err := buf.Validate("audio"); err != nil {
		return "", err
	}
	p.logger.WithFields(logrus.Fields{
		"samples":     buf.Len(),
		"sample_rate": buf.SampleRate,
	}).Debug("Mock STT provider transcribing buffer")
	return p.Transcript, nil
}
