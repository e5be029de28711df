package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"satsim-server/pkg/channel"
	"satsim-server/pkg/metrics"
	"satsim-server/pkg/quality"
)

// EvaluationReport is the message shipped to AMQP after each
// simulate-and-evaluate run.
type EvaluationReport struct {
	RunID      string                     `json:"run_id"`
	Timestamp  time.Time                  `json:"timestamp"`
	Config     channel.TransmissionConfig `json:"config"`
	Result     quality.EvaluationResult   `json:"result"`
	SampleRate int                        `json:"sample_rate"`
	DurationS  float64                    `json:"duration_s"`
}

// AMQPConfig holds AMQP client configuration.
type AMQPConfig struct {
	URL        string
	QueueName  string
	RoutingKey string
	Durable    bool
}

// AMQPClient publishes evaluation reports to an AMQP queue.
type AMQPClient struct {
	logger    *logrus.Logger
	config    AMQPConfig
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
	connMutex sync.RWMutex
}

// NewAMQPClient creates a new AMQP client.
func NewAMQPClient(logger *logrus.Logger, config AMQPConfig) *AMQPClient {
	if config.RoutingKey == "" {
		config.RoutingKey = config.QueueName
	}
	config.Durable = true

	return &AMQPClient{
		logger: logger,
		config: config,
	}
}

// Connect establishes a connection to the AMQP server and declares the
// report queue.
func (c *AMQPClient) Connect() error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.connected {
		return nil
	}

	if c.config.URL == "" || c.config.QueueName == "" {
		c.logger.Warn("AMQP_URL or AMQP_QUEUE_NAME not set, report publishing disabled")
		return fmt.Errorf("AMQP URL or queue name not configured")
	}

	conn, err := amqp.Dial(c.config.URL)
	if err != nil {
		metrics.AMQPConnectionError()
		c.logger.WithError(err).Error("Failed to connect to AMQP server")
		return fmt.Errorf("failed to connect to AMQP server: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		metrics.AMQPConnectionError()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		c.config.QueueName,
		c.config.Durable,
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare AMQP queue: %w", err)
	}

	c.conn = conn
	c.channel = ch
	c.connected = true

	c.logger.WithFields(logrus.Fields{
		"queue":       c.config.QueueName,
		"routing_key": c.config.RoutingKey,
	}).Info("Connected to AMQP server")
	return nil
}

// PublishReport publishes an evaluation report as a persistent JSON
// message.
func (c *AMQPClient) PublishReport(ctx context.Context, report EvaluationReport) error {
	c.connMutex.RLock()
	connected := c.connected
	ch := c.channel
	c.connMutex.RUnlock()

	if !connected {
		metrics.AMQPPublished("skipped")
		return fmt.Errorf("AMQP client not connected")
	}

	body, err := json.Marshal(report)
	if err != nil {
		metrics.AMQPPublished("error")
		return fmt.Errorf("failed to marshal evaluation report: %w", err)
	}

	err = ch.Publish(
		"", // default exchange
		c.config.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    report.RunID,
			Timestamp:    report.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		metrics.AMQPPublished("error")
		c.logger.WithError(err).WithField("run_id", report.RunID).
			Error("Failed to publish evaluation report")
		return err
	}

	metrics.AMQPPublished("ok")
	c.logger.WithFields(logrus.Fields{
		"run_id": report.RunID,
		"queue":  c.config.QueueName,
		"bytes":  len(body),
	}).Debug("Published evaluation report")
	return nil
}

// Disconnect closes the channel and connection.
func (c *AMQPClient) Disconnect() {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if !c.connected {
		return
	}

	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.logger.Info("Disconnected from AMQP server")
}

// IsConnected reports whether the client currently holds a connection.
func (c *AMQPClient) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.connected
}
