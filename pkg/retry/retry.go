// Package retry runs an operation until it succeeds, fails permanently, runs
// out of attempts or its context ends.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
)

// Policy controls attempts and exponential backoff between them.
type Policy struct {
	Attempts int           // total tries, at least 1
	Base     time.Duration // delay after the first failure
	Max      time.Duration // delay cap, 0 for none
}

func (p Policy) backoff() goretry.Backoff {
	base := p.Base
	if base <= 0 {
		base = time.Millisecond
	}
	b := goretry.NewExponential(base)
	if p.Max > 0 {
		b = goretry.WithCappedDuration(p.Max, b)
	}
	retries := uint64(0)
	if p.Attempts > 1 {
		retries = uint64(p.Attempts - 1)
	}
	return goretry.WithMaxRetries(retries, b)
}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// Do calls fn until it returns nil or a Permanent error, the attempts are spent,
// or ctx is done. It returns the last error with any Permanent wrapper removed;
// when ctx ends between attempts the context error is joined to it.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var last error
	err := goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var perm permanent
		if errors.As(err, &perm) {
			last = perm.err
			return perm.err
		}
		last = err
		return goretry.RetryableError(err)
	})
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil && last != nil && errors.Is(err, cerr) && !errors.Is(last, cerr) {
		return multierr.Append(last, cerr)
	}
	return err
}
