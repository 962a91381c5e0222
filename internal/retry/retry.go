// Package retry runs operations with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retry loop. MaxRetries counts retries after the first attempt.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultPolicy is used when a component is given a zero Policy.
var DefaultPolicy = Policy{MaxRetries: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}

func (p Policy) orDefault() Policy {
	if p.BaseDelay <= 0 || p.MaxDelay <= 0 {
		return DefaultPolicy
	}
	return p
}

func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Permanent marks err as not worth retrying. Do returns it unwrapped.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns a Permanent error, the retry budget
// is spent, or ctx is done. notify, when non-nil, is called before each sleep.
func Do(ctx context.Context, p Policy, op func() error, notify func(err error, wait time.Duration)) error {
	p = p.orDefault()
	var b backoff.BackOff = p.newBackOff()
	if p.MaxRetries >= 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxRetries))
	}
	b = backoff.WithContext(b, ctx)

	err := backoff.RetryNotify(op, b, notify)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func() (T, error), notify func(err error, wait time.Duration)) (T, error) {
	var out T
	err := Do(ctx, p, func() error {
		v, err := op()
		if err != nil {
			return err
		}
		out = v
		return nil
	}, notify)
	return out, err
}

// NextDelay is the wait before retry number attempt (1-based), doubling from
// BaseDelay and capped at MaxDelay. The queue uses it for delayed redelivery.
func (p Policy) NextDelay(attempt int) time.Duration {
	p = p.orDefault()
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Exhausted reports whether attempt (1-based) has used up the retry budget.
func (p Policy) Exhausted(attempt int) bool {
	return attempt > p.MaxRetries
}
