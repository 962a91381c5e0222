// Package screening runs the per-application screening state machine:
// PENDING -> PROCESSING -> COMPLETED | FAILED, and FAILED -> PENDING on an
// explicit retry.
package screening

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-screener/internal/logging"
	"github.com/jonathan/resume-screener/internal/types"
)

// CancelledMessage is the error message of a cancelled result
const CancelledMessage = "cancelled"

const bulkConcurrency = 8

// Priority orders queued screenings; higher runs first
type Priority uint8

const (
	PriorityWebhook Priority = 1
	PriorityManual  Priority = 5
)

// Store persists screening results. Every status change is a conditional
// single-row update that reports whether it applied.
type Store interface {
	GetScreeningResult(ctx context.Context, applicationID uuid.UUID) (*types.ScreeningResult, error)
	CreatePendingResult(ctx context.Context, applicationID uuid.UUID) (*types.ScreeningResult, bool, error)
	ClaimForProcessing(ctx context.Context, applicationID uuid.UUID, staleBefore time.Time) (bool, error)
	ReleaseClaim(ctx context.Context, applicationID uuid.UUID, message string) (bool, error)
	CompleteResult(ctx context.Context, applicationID uuid.UUID, o *types.ScreeningOutcome) (bool, error)
	FailResult(ctx context.Context, applicationID uuid.UUID, message string) (bool, error)
	ResetForRetry(ctx context.Context, applicationID uuid.UUID) (bool, error)
}

// Registry looks up applications and job postings
type Registry interface {
	GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error)
	GetJobPosting(ctx context.Context, id uuid.UUID) (*types.JobPosting, error)
	UpdateCandidateProfile(ctx context.Context, id uuid.UUID, phone string, skills []string) error
}

// Documents lists an application's stored files
type Documents interface {
	HasClassifiedResume(ctx context.Context, applicationID uuid.UUID) (bool, error)
	ListApplicationFiles(ctx context.Context, applicationID uuid.UUID, kind types.FileKind) ([]types.StoredFile, error)
}

// Enqueuer hands a screening to the worker pool
type Enqueuer interface {
	Enqueue(ctx context.Context, applicationID uuid.UUID, priority Priority) error
}

// Runner computes the outcome of one screening
type Runner interface {
	Run(ctx context.Context, applicationID uuid.UUID, cancelled func() bool) (*types.ScreeningOutcome, error)
}

// Orchestrator owns the screening state machine
type Orchestrator struct {
	store      Store
	registry   Registry
	docs       Documents
	queue      Enqueuer
	runner     Runner
	staleAfter time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewOrchestrator creates an Orchestrator. staleAfter is how long a
// PROCESSING result may go untouched before another worker reclaims it.
func NewOrchestrator(store Store, registry Registry, docs Documents, queue Enqueuer, runner Runner, staleAfter time.Duration, logger *zap.Logger) *Orchestrator {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &Orchestrator{
		store:      store,
		registry:   registry,
		docs:       docs,
		queue:      queue,
		runner:     runner,
		staleAfter: staleAfter,
		now:        time.Now,
		logger:     logging.OrNop(logger),
	}
}

// Get returns the result of an application
func (o *Orchestrator) Get(ctx context.Context, applicationID uuid.UUID) (*types.ScreeningResult, error) {
	r, err := o.store.GetScreeningResult(ctx, applicationID)
	if err != nil {
		return nil, &TransientError{Stage: "load result", Cause: err}
	}
	if r == nil {
		return nil, fmt.Errorf("screening result for %s: %w", applicationID, ErrNotFound)
	}
	return r, nil
}

// Trigger starts a screening. It is idempotent: an existing PENDING,
// PROCESSING or COMPLETED result is returned unchanged. A FAILED result is
// retried.
func (o *Orchestrator) Trigger(ctx context.Context, applicationID uuid.UUID, priority Priority) (*types.ScreeningResult, error) {
	existing, err := o.store.GetScreeningResult(ctx, applicationID)
	if err != nil {
		return nil, &TransientError{Stage: "load result", Cause: err}
	}
	if existing != nil {
		if existing.Status == types.ScreeningFailed {
			return o.Retry(ctx, applicationID, priority)
		}
		return existing, nil
	}

	app, err := o.registry.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, &TransientError{Stage: "load application", Cause: err}
	}
	if app == nil {
		return nil, fmt.Errorf("application %s: %w", applicationID, ErrNotFound)
	}

	hasResume, err := o.docs.HasClassifiedResume(ctx, applicationID)
	if err != nil {
		return nil, &TransientError{Stage: "check résumé", Cause: err}
	}
	if !hasResume {
		return nil, fmt.Errorf("application %s: %w", applicationID, ErrNoResume)
	}

	r, created, err := o.store.CreatePendingResult(ctx, applicationID)
	if err != nil {
		return nil, &TransientError{Stage: "create result", Cause: err}
	}
	if !created {
		return r, nil
	}

	if err := o.enqueue(ctx, applicationID, priority); err != nil {
		return nil, err
	}
	o.logger.Info("screening triggered",
		zap.String("application_id", applicationID.String()),
		zap.Uint8("priority", uint8(priority)))
	return r, nil
}

// enqueue hands the job to the queue and fails the result when that is
// impossible, so that it never stays PENDING with nothing to run it
func (o *Orchestrator) enqueue(ctx context.Context, applicationID uuid.UUID, priority Priority) error {
	err := o.queue.Enqueue(ctx, applicationID, priority)
	if err == nil {
		return nil
	}
	if _, ferr := o.store.FailResult(ctx, applicationID, "enqueue failed: "+err.Error()); ferr != nil {
		o.logger.Error("failed to mark unqueued screening as failed",
			zap.String("application_id", applicationID.String()), zap.Error(ferr))
	}
	return &TransientError{Stage: "enqueue", Cause: err}
}

// BulkItem is the per-application outcome of BulkTrigger
type BulkItem struct {
	ApplicationID uuid.UUID              `json:"application_id"`
	Result        *types.ScreeningResult `json:"result,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

// BulkResult summarizes BulkTrigger
type BulkResult struct {
	Triggered int        `json:"triggered"`
	Failed    int        `json:"failed"`
	Items     []BulkItem `json:"items"`
}

// BulkTrigger triggers each application independently; one failure never
// affects the others. Items keep the input order.
func (o *Orchestrator) BulkTrigger(ctx context.Context, applicationIDs []uuid.UUID, priority Priority) *BulkResult {
	items := make([]BulkItem, len(applicationIDs))
	var mu sync.Mutex
	res := &BulkResult{}

	var g errgroup.Group
	g.SetLimit(bulkConcurrency)
	for i, id := range applicationIDs {
		g.Go(func() error {
			r, err := o.Trigger(ctx, id, priority)
			item := BulkItem{ApplicationID: id, Result: r}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				item.Error = err.Error()
				res.Failed++
			} else {
				res.Triggered++
			}
			items[i] = item
			return nil
		})
	}
	_ = g.Wait()

	res.Items = items
	return res
}

// Cancel moves a PENDING or PROCESSING result to FAILED. Completed and
// failed results are rejected and left unchanged.
func (o *Orchestrator) Cancel(ctx context.Context, applicationID uuid.UUID) (*types.ScreeningResult, error) {
	r, err := o.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanCancel() {
		return r, fmt.Errorf("%w (status %s)", ErrCannotCancel, r.Status)
	}

	changed, err := o.store.FailResult(ctx, applicationID, CancelledMessage)
	if err != nil {
		return nil, &TransientError{Stage: "cancel", Cause: err}
	}

	r, err = o.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !changed {
		// finished between the read and the update
		return r, fmt.Errorf("%w (status %s)", ErrCannotCancel, r.Status)
	}
	o.logger.Info("screening cancelled", zap.String("application_id", applicationID.String()))
	return r, nil
}

// Retry moves a FAILED result back to PENDING and enqueues it
func (o *Orchestrator) Retry(ctx context.Context, applicationID uuid.UUID, priority Priority) (*types.ScreeningResult, error) {
	r, err := o.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanRetry() {
		return r, fmt.Errorf("%w (status %s)", ErrNotRetryable, r.Status)
	}

	changed, err := o.store.ResetForRetry(ctx, applicationID)
	if err != nil {
		return nil, &TransientError{Stage: "reset result", Cause: err}
	}
	if !changed {
		r, err = o.Get(ctx, applicationID)
		if err != nil {
			return nil, err
		}
		return r, fmt.Errorf("%w (status %s)", ErrNotRetryable, r.Status)
	}

	if err := o.enqueue(ctx, applicationID, priority); err != nil {
		return nil, err
	}
	o.logger.Info("screening retried",
		zap.String("application_id", applicationID.String()),
		zap.Int("retry_count", r.RetryCount+1))
	return o.Get(ctx, applicationID)
}

// Process runs one queued screening. lastAttempt tells whether the queue
// will redeliver on a transient failure; when it will, the result goes
// back to PENDING instead of FAILED.
func (o *Orchestrator) Process(ctx context.Context, applicationID uuid.UUID, lastAttempt bool) error {
	log := o.logger.With(zap.String("application_id", applicationID.String()))

	claimed, err := o.store.ClaimForProcessing(ctx, applicationID, o.now().Add(-o.staleAfter))
	if err != nil {
		return &TransientError{Stage: "claim result", Cause: err}
	}
	if !claimed {
		r, err := o.store.GetScreeningResult(ctx, applicationID)
		if err != nil {
			return &TransientError{Stage: "load result", Cause: err}
		}
		if r == nil {
			return fmt.Errorf("screening result for %s: %w", applicationID, ErrNotFound)
		}
		log.Info("screening not claimable, skipping", zap.String("status", string(r.Status)))
		return nil
	}

	start := o.now()
	outcome, runErr := o.runner.Run(ctx, applicationID, func() bool { return o.isCancelled(ctx, applicationID) })
	if runErr == nil {
		ok, err := o.store.CompleteResult(ctx, applicationID, outcome)
		if err != nil {
			runErr = &TransientError{Stage: "save result", Cause: err}
		} else if !ok {
			log.Info("screening cancelled while running, result discarded")
			return ErrCancelled
		} else {
			log.Info("screening completed",
				zap.Duration("elapsed", o.now().Sub(start)),
				zap.String("fit_tier", string(outcome.FitTier)))
			return nil
		}
	}

	if errors.Is(runErr, ErrCancelled) {
		log.Info("screening cancelled while running")
		return ErrCancelled
	}

	// Shutting down: hand the screening back for the next delivery. A job
	// timeout is a deadline instead and is handled as a transient failure.
	if errors.Is(ctx.Err(), context.Canceled) {
		if _, err := o.store.ReleaseClaim(context.WithoutCancel(ctx), applicationID, "interrupted"); err != nil {
			log.Error("failed to release screening claim", zap.Error(err))
		}
		return ctx.Err()
	}

	if IsRetryable(runErr) && !lastAttempt {
		if _, err := o.store.ReleaseClaim(context.WithoutCancel(ctx), applicationID, runErr.Error()); err != nil {
			log.Error("failed to release screening claim", zap.Error(err))
		}
		log.Warn("screening failed, will retry", zap.Error(runErr))
		return runErr
	}

	// Record the failure even when ctx is already done
	if _, err := o.store.FailResult(context.WithoutCancel(ctx), applicationID, runErr.Error()); err != nil {
		log.Error("failed to mark screening as failed", zap.Error(err))
	}
	log.Error("screening failed", zap.Error(runErr))
	return runErr
}

func (o *Orchestrator) isCancelled(ctx context.Context, applicationID uuid.UUID) bool {
	r, err := o.store.GetScreeningResult(ctx, applicationID)
	if err != nil || r == nil {
		return false
	}
	return r.Status != types.ScreeningProcessing
}
