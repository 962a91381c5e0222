package ocr

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/resume-screener/internal/logging"
)

// Recognition is what downstream consumers receive. On total failure
// Success is false and Text is empty.
type Recognition struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	ElapsedMs  int64   `json:"elapsed_ms"`
	Success    bool    `json:"success"`
	Pass       string  `json:"pass,omitempty"`
}

// Options configures the adapter.
type Options struct {
	Languages        string
	FallbackLanguage string
	MinTextLength    int
	Timeout          time.Duration // per pass
	PoolSize         int           // concurrent engine invocations
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Languages:        "eng+vie",
		FallbackLanguage: "eng",
		MinTextLength:    10,
		Timeout:          60 * time.Second,
		PoolSize:         2,
	}
}

// Adapter runs recognition passes on a bounded pool.
type Adapter struct {
	engine Engine
	opts   Options
	pool   *Pool
	logger *zap.Logger
}

// NewAdapter creates an Adapter. pool may be shared with other CPU-heavy
// image work; nil creates a private pool of opts.PoolSize.
func NewAdapter(engine Engine, opts Options, pool *Pool, logger *zap.Logger) *Adapter {
	def := DefaultOptions()
	if opts.Languages == "" {
		opts.Languages = def.Languages
	}
	if opts.FallbackLanguage == "" {
		opts.FallbackLanguage = def.FallbackLanguage
	}
	if opts.MinTextLength <= 0 {
		opts.MinTextLength = def.MinTextLength
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = def.PoolSize
	}
	if pool == nil {
		pool = NewPool(opts.PoolSize)
	}
	return &Adapter{engine: engine, opts: opts, pool: pool, logger: logging.OrNop(logger)}
}

// Passes returns the primary passes: combined languages, then Latin only.
func (a *Adapter) Passes() []Pass {
	passes := []Pass{{Name: "combined", Languages: a.opts.Languages}}
	if a.opts.FallbackLanguage != a.opts.Languages {
		passes = append(passes, Pass{Name: "latin", Languages: a.opts.FallbackLanguage})
	}
	return passes
}

// Score is the length-aware quality proxy used to pick between passes.
func Score(confidence float64, text string) float64 {
	n := float64(len([]rune(strings.TrimSpace(text))))
	return confidence * math.Min(n/100.0, 2.0)
}

// Recognize runs the primary passes concurrently and returns the best
// viable result, or ErrRecognitionFailed.
func (a *Adapter) Recognize(ctx context.Context, image []byte) (Recognition, error) {
	start := time.Now()
	passes := a.Passes()

	results := make([]EngineResult, len(passes))
	errs := make([]error, len(passes))
	g, gctx := errgroup.WithContext(ctx)
	for i, pass := range passes {
		g.Go(func() error {
			results[i], errs[i] = a.runPass(gctx, image, pass)
			// a failed pass is not fatal for the other one
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Recognition{}, err
	}

	best := -1
	bestScore := -1.0
	for i, res := range results {
		if errs[i] != nil {
			a.logger.Debug("ocr pass failed", zap.String("pass", passes[i].Name), zap.Error(errs[i]))
			continue
		}
		if len([]rune(strings.TrimSpace(res.Text))) < a.opts.MinTextLength {
			continue
		}
		if s := Score(res.Confidence, res.Text); s > bestScore {
			best, bestScore = i, s
		}
	}

	elapsed := time.Since(start).Milliseconds()
	if best < 0 {
		if cause := errors.Join(errs...); cause != nil {
			return Recognition{ElapsedMs: elapsed}, fmt.Errorf("%w: %w", ErrRecognitionFailed, cause)
		}
		return Recognition{ElapsedMs: elapsed}, fmt.Errorf("%w: no pass produced %d characters", ErrRecognitionFailed, a.opts.MinTextLength)
	}

	a.logger.Debug("ocr pass selected",
		zap.String("pass", passes[best].Name),
		zap.Float64("confidence", results[best].Confidence),
		zap.Float64("score", bestScore),
		zap.Int64("elapsed_ms", elapsed))

	return Recognition{
		Text:       strings.TrimSpace(results[best].Text),
		Confidence: results[best].Confidence,
		ElapsedMs:  elapsed,
		Success:    true,
		Pass:       passes[best].Name,
	}, nil
}

// RecognizeWithFallback never fails: after the primary passes it tries a
// reduced single pass, and on total failure returns Success=false.
func (a *Adapter) RecognizeWithFallback(ctx context.Context, image []byte) Recognition {
	start := time.Now()
	rec, err := a.Recognize(ctx, image)
	if err == nil {
		return rec
	}
	a.logger.Info("ocr primary passes failed, trying fallback", zap.Error(err))

	if ctx.Err() == nil {
		pass := Pass{Name: "fallback", Languages: a.opts.FallbackLanguage, SingleBlock: true}
		res, ferr := a.runPass(ctx, image, pass)
		if ferr == nil && len([]rune(strings.TrimSpace(res.Text))) >= a.opts.MinTextLength {
			return Recognition{
				Text:       strings.TrimSpace(res.Text),
				Confidence: res.Confidence,
				ElapsedMs:  time.Since(start).Milliseconds(),
				Success:    true,
				Pass:       pass.Name,
			}
		}
		if ferr != nil {
			a.logger.Warn("ocr fallback pass failed", zap.Error(ferr))
		}
	}
	return Recognition{ElapsedMs: time.Since(start).Milliseconds()}
}

func (a *Adapter) runPass(ctx context.Context, image []byte, pass Pass) (EngineResult, error) {
	pctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	type outcome struct {
		res EngineResult
		err error
	}
	out := make(chan outcome, 1)
	err := a.pool.DoDetached(pctx, func() error {
		res, err := a.engine.Recognize(pctx, image, pass)
		out <- outcome{res, err}
		return err
	})
	if err != nil {
		return EngineResult{}, err
	}
	o := <-out
	return o.res, nil
}

// Pool bounds concurrent CPU-heavy image work (preprocessing and OCR).
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool with size slots.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Do runs fn once a slot is free. It returns ctx.Err() if ctx ends first.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// DoDetached runs fn on its own goroutine once a slot is free and waits
// for it until ctx ends. The slot stays taken until fn returns, even when
// the caller has already given up waiting.
func (p *Pool) DoDetached(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		defer p.sem.Release(1)
		done <- fn()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
