package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satsim-server/pkg/channel"
	"satsim-server/pkg/quality"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestNewAMQPClient_Defaults(t *testing.T) {
	client := NewAMQPClient(testLogger(), AMQPConfig{
		URL:       "amqp://localhost",
		QueueName: "reports",
	})

	assert.Equal(t, "reports", client.config.RoutingKey, "routing key defaults to queue name")
	assert.True(t, client.config.Durable)
	assert.False(t, client.IsConnected())
}

func TestConnect_RequiresConfiguration(t *testing.T) {
	client := NewAMQPClient(testLogger(), AMQPConfig{})
	require.Error(t, client.Connect())
	assert.False(t, client.IsConnected())
}

func TestPublishReport_NotConnected(t *testing.T) {
	client := NewAMQPClient(testLogger(), AMQPConfig{
		URL:       "amqp://localhost",
		QueueName: "reports",
	})

	err := client.PublishReport(context.Background(), EvaluationReport{RunID: "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestDisconnect_Idempotent(t *testing.T) {
	client := NewAMQPClient(testLogger(), AMQPConfig{URL: "amqp://localhost", QueueName: "q"})
	client.Disconnect()
	client.Disconnect()
	assert.False(t, client.IsConnected())
}

func TestEvaluationReport_JSONShape(t *testing.T) {
	report := EvaluationReport{
		RunID:     "run-1",
		Timestamp: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Config:    channel.DefaultTransmissionConfig(),
		Result: quality.EvaluationResult{
			STOI: quality.MetricResult{Computed: true, Value: 0.92},
			PESQ: quality.MetricResult{Computed: false, Reason: "sample rate not supported"},
		},
		SampleRate: 16000,
		DurationS:  2.5,
	}

	body, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, float64(16000), decoded["sample_rate"])
	assert.Contains(t, decoded, "config")
	assert.Contains(t, decoded, "result")
}
