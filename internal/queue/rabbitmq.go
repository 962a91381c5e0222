package queue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/config"
	"github.com/jonathan/resume-screener/internal/logging"
)

const publishTimeout = 5 * time.Second

// RabbitMQ is a Broker on a durable priority queue. Delayed jobs wait in a
// retry queue whose messages dead-letter back to the main queue when their
// per-message TTL expires. Rejected messages dead-letter from the main
// queue to a dead-letter queue.
type RabbitMQ struct {
	conn      *amqp.Connection
	pubMu     sync.Mutex
	publisher *amqp.Channel
	consumer  *amqp.Channel
	queue     string
	retry     string
	dead      string
	prefetch  int
	logger    *zap.Logger
}

// NewRabbitMQ connects and declares the main, retry and dead-letter queues. prefetch bounds unacked
// deliveries and should match the worker count.
func NewRabbitMQ(cfg config.RabbitMQConfig, prefetch int, logger *zap.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	r := &RabbitMQ{
		conn:     conn,
		queue:    cfg.Queue,
		retry:    cfg.RetryQueue,
		dead:     cfg.DeadLetter,
		prefetch: prefetch,
		logger:   logging.OrNop(logger),
	}
	if r.prefetch < 1 {
		r.prefetch = 1
	}

	if err := r.setup(cfg.MaxPriority); err != nil {
		_ = conn.Close()
		return nil, err
	}
	r.logger.Info("connected to RabbitMQ",
		zap.String("queue", r.queue),
		zap.String("retry_queue", r.retry),
		zap.String("dead_letter_queue", r.dead))
	return r, nil
}

func (r *RabbitMQ) setup(maxPriority uint8) error {
	pub, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	r.publisher = pub

	queues := []struct {
		name string
		args amqp.Table
	}{
		{r.dead, nil},
		{r.queue, mainQueueArgs(maxPriority, r.dead)},
		{r.retry, retryQueueArgs(r.queue)},
	}
	for _, q := range queues {
		_, err = pub.QueueDeclare(
			q.name,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			q.args,
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

// mainQueueArgs makes rejected screening jobs dead-letter to dead
func mainQueueArgs(maxPriority uint8, dead string) amqp.Table {
	return amqp.Table{
		"x-max-priority":            int32(maxPriority),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dead,
	}
}

// retryQueueArgs sends expired delayed jobs back to the main queue
func retryQueueArgs(main string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": main,
	}
}

// Publish sends job to the main queue, or to the retry queue with a TTL
// when delay is positive
func (r *RabbitMQ) Publish(ctx context.Context, job Job, delay time.Duration) error {
	body, err := encodeJob(job)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Priority:     uint8(job.Priority),
		Timestamp:    time.Now(),
		Body:         body,
	}
	routingKey := r.queue
	if delay > 0 {
		routingKey = r.retry
		msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	if r.publisher == nil || r.publisher.IsClosed() {
		return ErrClosed
	}
	if err := r.publisher.PublishWithContext(ctx, "", routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish job for %s: %w", job.ApplicationID, err)
	}
	return nil
}

// Consume registers a manual-ack consumer on the main queue. Messages that
// cannot be decoded are dead-lettered.
func (r *RabbitMQ) Consume(ctx context.Context) (<-chan Delivery, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.Qos(r.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}
	msgs, err := ch.Consume(
		r.queue,
		"",
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}
	r.consumer = ch

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				job, err := decodeJob(m.Body)
				if err != nil {
					r.logger.Error("dead-lettering undecodable message", zap.Error(err))
					_ = m.Nack(false, false)
					continue
				}
				d := Delivery{
					Job:  job,
					ack:  func() error { return m.Ack(false) },
					nack: func(requeue bool) error { return m.Nack(false, requeue) },
				}
				select {
				case out <- d:
				case <-ctx.Done():
					_ = m.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes both channels and the connection
func (r *RabbitMQ) Close() error {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	if r.consumer != nil {
		_ = r.consumer.Close()
	}
	if r.publisher != nil {
		_ = r.publisher.Close()
	}
	return r.conn.Close()
}
