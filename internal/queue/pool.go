package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-screener/internal/logging"
	"github.com/jonathan/resume-screener/internal/retry"
	"github.com/jonathan/resume-screener/internal/screening"
)

// Handler processes one job. lastAttempt is true when a failure will not
// be redelivered.
type Handler func(ctx context.Context, job Job, lastAttempt bool) error

// PoolOptions bound the worker pool
type PoolOptions struct {
	Workers    int
	Retry      retry.Policy
	JobTimeout time.Duration
}

// Pool consumes a Broker with a fixed number of workers. At most one job
// per application runs at a time; a duplicate delivery for an application
// already in flight is dropped.
type Pool struct {
	broker  Broker
	handler Handler
	opts    PoolOptions
	logger  *zap.Logger

	mu       sync.Mutex
	inFlight map[uuid.UUID]bool
}

// NewPool creates a Pool
func NewPool(broker Broker, handler Handler, opts PoolOptions, logger *zap.Logger) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Retry == (retry.Policy{}) {
		opts.Retry = retry.DefaultPolicy
	}
	return &Pool{
		broker:   broker,
		handler:  handler,
		opts:     opts,
		logger:   logging.OrNop(logger),
		inFlight: make(map[uuid.UUID]bool),
	}
}

// ProcessWith adapts an Orchestrator to a Handler
func ProcessWith(o *screening.Orchestrator) Handler {
	return func(ctx context.Context, job Job, lastAttempt bool) error {
		return o.Process(ctx, job.ApplicationID, lastAttempt)
	}
}

// Run consumes until ctx is done, then waits for running jobs to settle
func (p *Pool) Run(ctx context.Context) error {
	deliveries, err := p.broker.Consume(ctx)
	if err != nil {
		return err
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.opts.Workers))

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range deliveries {
				if ctx.Err() != nil {
					p.settle(p.logger, d.Nack(true))
					continue
				}
				p.handle(ctx, d)
			}
		}()
	}
	wg.Wait()

	p.logger.Info("worker pool stopped")
	return ctx.Err()
}

func (p *Pool) acquire(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[id] {
		return false
	}
	p.inFlight[id] = true
	return true
}

func (p *Pool) release(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, id)
}

// InFlight returns the number of jobs being processed
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight)
}

func (p *Pool) handle(ctx context.Context, d Delivery) {
	job := d.Job
	log := p.logger.With(
		zap.String("application_id", job.ApplicationID.String()),
		zap.Int("attempt", job.Attempt))

	if !p.acquire(job.ApplicationID) {
		log.Info("screening already in flight, dropping duplicate")
		p.settle(log, d.Ack())
		return
	}
	defer p.release(job.ApplicationID)

	lastAttempt := p.opts.Retry.Exhausted(job.Attempt + 1)
	jobCtx := ctx
	if p.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, p.opts.JobTimeout)
		defer cancel()
	}

	err := p.handler(jobCtx, job, lastAttempt)
	switch {
	case err == nil:
		p.settle(log, d.Ack())

	case ctx.Err() != nil:
		// shutting down; the broker redelivers
		p.settle(log, d.Nack(true))

	case screening.IsRetryable(err) && !lastAttempt:
		next := job
		next.Attempt++
		delay := p.opts.Retry.NextDelay(next.Attempt)
		if perr := p.broker.Publish(context.WithoutCancel(ctx), next, delay); perr != nil {
			log.Error("failed to schedule retry, requeueing", zap.Error(perr))
			p.settle(log, d.Nack(true))
			return
		}
		log.Warn("screening will be retried", zap.Duration("delay", delay), zap.Error(err))
		p.settle(log, d.Ack())

	default:
		log.Error("screening job dead-lettered", zap.Bool("last_attempt", lastAttempt), zap.Error(err))
		p.settle(log, d.Nack(false))
	}
}

func (p *Pool) settle(log *zap.Logger, err error) {
	if err != nil {
		log.Error("failed to settle delivery", zap.Error(err))
	}
}
