package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"satsim-server/pkg/config"
	"satsim-server/pkg/signal"
)

// GoogleProvider implements the Provider interface for Google
// Speech-to-Text using synchronous recognition, which fits the finite
// in-memory buffers this system works with.
type GoogleProvider struct {
	logger   *logrus.Logger
	client   *speech.Client
	config   *config.GoogleSTTConfig
	language string
}

// NewGoogleProvider creates a new Google Speech-to-Text provider.
func NewGoogleProvider(logger *logrus.Logger, cfg *config.GoogleSTTConfig, language string) *GoogleProvider {
	return &GoogleProvider{
		logger:   logger,
		config:   cfg,
		language: language,
	}
}

// Name returns the provider name.
func (p *GoogleProvider) Name() string {
	return "google"
}

// Initialize initializes the Google Speech-to-Text client.
func (p *GoogleProvider) Initialize() error {
	if p.config == nil {
		return fmt.Errorf("Google STT configuration is required")
	}

	var clientOptions []option.ClientOption

	// Use API key if provided, otherwise use credentials file
	if p.config.APIKey != "" {
		clientOptions = append(clientOptions, option.WithAPIKey(p.config.APIKey))
		p.logger.Debug("Using Google STT API key authentication")
	} else if p.config.CredentialsFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(p.config.CredentialsFile))
		p.logger.WithField("credentials_file", p.config.CredentialsFile).Debug("Using Google STT credentials file")
	} else {
		return fmt.Errorf("Google STT requires either API key or credentials file")
	}

	var err error
	p.client, err = speech.NewClient(context.Background(), clientOptions...)
	if err != nil {
		p.logger.WithError(err).Error("Failed to create Google Speech client")
		return fmt.Errorf("failed to create Google Speech client: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"language": p.language,
		"model":    p.config.Model,
	}).Info("Google Speech-to-Text client initialized")
	return nil
}

// Transcribe sends the complete buffer to Google Speech-to-Text and
// returns the concatenated best-alternative transcript.
func (p *GoogleProvider) Transcribe(ctx context.Context, buf signal.Buffer) (string, error) {
	if p.client == nil {
		return "", ErrInitializationFailed
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:        speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz: int32(buf.SampleRate),
		LanguageCode:    p.language,
	}
	if p.config.Model != "" {
		recognitionConfig.Model = p.config.Model
	}

	resp, err := p.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{
				Content: pcmBytes(buf),
			},
		},
	})
	if err != nil {
		p.logger.WithError(err).Error("Google Speech-to-Text recognition failed")
		return "", err
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		parts = append(parts, result.Alternatives[0].Transcript)
	}

	transcript := strings.TrimSpace(strings.Join(parts, " "))
	p.logger.WithFields(logrus.Fields{
		"results":    len(resp.Results),
		"word_count": len(strings.Fields(transcript)),
	}).Debug("Google transcription complete")
	return transcript, nil
}
