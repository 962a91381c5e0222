// Package queue carries screening jobs from trigger to worker. A Broker
// moves messages (RabbitMQ in production, memory in tests and single-node
// runs); a Pool consumes them with bounded concurrency.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/config"
	"github.com/jonathan/resume-screener/internal/retry"
	"github.com/jonathan/resume-screener/internal/screening"
)

// ErrClosed is returned when publishing to a closed broker
var ErrClosed = errors.New("queue is closed")

// Job is one queued screening. Attempt counts earlier failed deliveries.
type Job struct {
	ApplicationID uuid.UUID          `json:"application_id"`
	Attempt       int                `json:"attempt"`
	Priority      screening.Priority `json:"priority"`
	EnqueuedAt    time.Time          `json:"enqueued_at"`
}

func encodeJob(j Job) ([]byte, error) {
	body, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}
	return body, nil
}

func decodeJob(body []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(body, &j); err != nil {
		return Job{}, fmt.Errorf("invalid job format: %w", err)
	}
	if j.ApplicationID == uuid.Nil {
		return Job{}, errors.New("invalid job format: missing application_id")
	}
	return j, nil
}

// Delivery is a received job that must be settled exactly once
type Delivery struct {
	Job  Job
	ack  func() error
	nack func(requeue bool) error
}

// Ack removes the message from the queue
func (d Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nack returns the message to the queue when requeue is true and moves it
// to the dead-letter queue otherwise
func (d Delivery) Nack(requeue bool) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(requeue)
}

// Broker is a durable job transport
type Broker interface {
	// Publish sends job, delivering it no earlier than delay from now
	Publish(ctx context.Context, job Job, delay time.Duration) error
	// Consume streams deliveries until ctx is done or the broker closes
	Consume(ctx context.Context) (<-chan Delivery, error)
	Close() error
}

// Queue is the producer side. It implements screening.Enqueuer.
type Queue struct {
	broker Broker
	now    func() time.Time
}

// New creates a Queue on broker
func New(broker Broker) *Queue {
	return &Queue{broker: broker, now: time.Now}
}

// Enqueue publishes a first attempt for an application
func (q *Queue) Enqueue(ctx context.Context, applicationID uuid.UUID, priority screening.Priority) error {
	return q.broker.Publish(ctx, Job{
		ApplicationID: applicationID,
		Priority:      priority,
		EnqueuedAt:    q.now().UTC(),
	}, 0)
}

// NewBroker opens the broker selected by cfg.Backend
func NewBroker(cfg config.QueueConfig, mq config.RabbitMQConfig, logger *zap.Logger) (Broker, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "rabbitmq", "":
		return NewRabbitMQ(mq, cfg.Workers, logger)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}

// PoolOptionsFromConfig maps queue configuration to PoolOptions
func PoolOptionsFromConfig(cfg config.QueueConfig) PoolOptions {
	return PoolOptions{
		Workers: cfg.Workers,
		Retry: retry.Policy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.BaseDelay,
			MaxDelay:   cfg.MaxDelay,
		},
		JobTimeout: cfg.JobTimeout,
	}
}
