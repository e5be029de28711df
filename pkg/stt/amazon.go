package stt

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"
	"github.com/sirupsen/logrus"

	"satsim-server/pkg/config"
	"satsim-server/pkg/signal"
)

// amazonChunkSize is the audio chunk size sent per streaming event.
const amazonChunkSize = 8 * 1024

// AmazonProvider implements the Provider interface on Amazon Transcribe
// streaming. Transcribe has no synchronous API for raw PCM, so the
// finite buffer is streamed in chunks and the final results collected.
type AmazonProvider struct {
	logger   *logrus.Logger
	client   *transcribestreaming.Client
	config   *config.AmazonSTTConfig
	language string
}

// NewAmazonProvider creates a new Amazon Transcribe provider.
func NewAmazonProvider(logger *logrus.Logger, cfg *config.AmazonSTTConfig, language string) *AmazonProvider {
	return &AmazonProvider{
		logger:   logger,
		config:   cfg,
		language: language,
	}
}

// Name returns the provider name.
func (p *AmazonProvider) Name() string {
	return "amazon"
}

// Initialize initializes the Amazon Transcribe client.
func (p *AmazonProvider) Initialize() error {
	if p.config == nil {
		return fmt.Errorf("Amazon STT configuration is required")
	}
	if p.config.AccessKeyID == "" || p.config.SecretAccessKey == "" {
		return fmt.Errorf("Amazon STT requires AWS access key ID and secret access key")
	}

	region := p.config.Region
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMaxAttempts(3),
		awsconfig.WithRetryMode(aws.RetryModeStandard),
		awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     p.config.AccessKeyID,
				SecretAccessKey: p.config.SecretAccessKey,
			}, nil
		})),
	)
	if err != nil {
		p.logger.WithError(err).Error("Failed to load AWS configuration")
		return fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	p.client = transcribestreaming.NewFromConfig(cfg)

	p.logger.WithFields(logrus.Fields{
		"region":   region,
		"language": p.language,
	}).Info("Amazon Transcribe provider initialized")
	return nil
}

// Transcribe streams the buffer to Amazon Transcribe and returns the
// concatenated final transcript.
func (p *AmazonProvider) Transcribe(ctx context.Context, buf signal.Buffer) (string, error) {
	if p.client == nil {
		return "", ErrInitializationFailed
	}

	resp, err := p.client.StartStreamTranscription(ctx, &transcribestreaming.StartStreamTranscriptionInput{
		LanguageCode:         types.LanguageCode(p.language),
		MediaSampleRateHertz: aws.Int32(int32(buf.SampleRate)),
		MediaEncoding:        types.MediaEncodingPcm,
	})
	if err != nil {
		p.logger.WithError(err).Error("Failed to start Amazon Transcribe stream")
		return "", fmt.Errorf("failed to start transcription stream: %w", err)
	}

	stream := resp.GetStream()
	sendErr := make(chan error, 1)

	go func() {
		defer close(sendErr)
		data := pcmBytes(buf)
		for offset := 0; offset < len(data); offset += amazonChunkSize {
			end := offset + amazonChunkSize
			if end > len(data) {
				end = len(data)
			}
			event := &types.AudioStreamMemberAudioEvent{
				Value: types.AudioEvent{AudioChunk: data[offset:end]},
			}
			if err := stream.Send(ctx, event); err != nil {
				sendErr <- err
				return
			}
		}
		if err := stream.Close(); err != nil {
			sendErr <- err
		}
	}()

	var parts []string
	for event := range stream.Events() {
		transcriptEvent, ok := event.(*types.TranscriptResultStreamMemberTranscriptEvent)
		if !ok || transcriptEvent.Value.Transcript == nil {
			continue
		}
		for _, result := range transcriptEvent.Value.Transcript.Results {
			if result.IsPartial || len(result.Alternatives) == 0 {
				continue
			}
			if alt := result.Alternatives[0].Transcript; alt != nil && *alt != "" {
				parts = append(parts, *alt)
			}
		}
	}

	if err := <-sendErr; err != nil {
		p.logger.WithError(err).Error("Failed to send audio to Amazon Transcribe")
		return "", err
	}
	if err := stream.Err(); err != nil {
		p.logger.WithError(err).Error("Amazon Transcribe stream error")
		return "", err
	}

	transcript := strings.TrimSpace(strings.Join(parts, " "))
	p.logger.WithField("word_count", len(strings.Fields(transcript))).
		Debug("Amazon transcription complete")
	return transcript, nil
}
