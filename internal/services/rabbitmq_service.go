package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/assign-services-backend/internal/config"
)

// RabbitMQService is the broker-backed JobQueue
type RabbitMQService struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	prefetch int
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewRabbitMQService(cfg *config.RabbitMQConfig) (*RabbitMQService, error) {
	// Connect to RabbitMQ
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	// Create channel
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare queue
	_, err = channel.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	service := &RabbitMQService{
		conn:     conn,
		channel:  channel,
		queue:    cfg.Queue,
		prefetch: cfg.Prefetch,
		stopChan: make(chan struct{}),
	}

	logrus.Infof("RabbitMQ service initialized successfully (queue: %s)", cfg.Queue)
	return service, nil
}

// Enqueue publishes a job to the assignment queue
func (s *RabbitMQService) Enqueue(ctx context.Context, job Job) error {
	// Convert job to JSON
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = s.channel.PublishWithContext(ctx,
		"",      // exchange
		s.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID.String(),
			Type:         string(job.Kind),
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"job_kind": job.Kind,
	}).Debug("Job published")
	return nil
}

// StartJobConsumer consumes jobs from the queue and runs them with runner.
// Failed jobs are rejected without requeue so a poison job cannot loop.
func (s *RabbitMQService) StartJobConsumer(runner *JobRunner) error {
	if s.prefetch > 0 {
		if err := s.channel.Qos(s.prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	// Consume messages
	msgs, err := s.channel.Consume(
		s.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logrus.Infof("RabbitMQ consumer started for %s queue", s.queue)

	go s.consume(runner, msgs)
	return nil
}

// consume runs deliveries until the consumer is stopped or the broker closes
// the delivery channel
func (s *RabbitMQService) consume(runner *JobRunner, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-s.stopChan:
			logrus.Info("RabbitMQ consumer stopped")
			return
		default:
		}

		select {
		case <-s.stopChan:
			logrus.Info("RabbitMQ consumer stopped")
			return
		case msg, ok := <-msgs:
			if !ok {
				logrus.Warn("RabbitMQ channel closed")
				return
			}
			s.processDelivery(runner, msg)
		}
	}
}

func (s *RabbitMQService) processDelivery(runner *JobRunner, msg amqp.Delivery) {
	job, err := DecodeJob(msg.Body)
	if err != nil {
		logrus.Errorf("Dropping malformed job %s: %v", msg.MessageId, err)
		msg.Reject(false)
		return
	}

	if err := runner.Handle(context.Background(), job); err != nil {
		msg.Nack(false, false)
		return
	}
	msg.Ack(false)
}

// StopJobConsumer stops the consumer. It is safe to call more than once and
// before the consumer has started.
func (s *RabbitMQService) StopJobConsumer() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Close closes the RabbitMQ connection
func (s *RabbitMQService) Close() error {
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			logrus.Errorf("Error closing channel: %v", err)
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			logrus.Errorf("Error closing connection: %v", err)
		}
	}
	return nil
}
