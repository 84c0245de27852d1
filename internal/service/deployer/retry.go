package deployer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/oshokin/intuneforge/internal/config"
	"github.com/oshokin/intuneforge/internal/logger"
	"github.com/oshokin/intuneforge/internal/remote"
)

// poll calls check at a fixed interval until it reports done, fails, or
// runs out of attempts.
func poll(ctx context.Context, policy config.Polling, what string, check func(context.Context) (bool, error)) error {
	attempts := max(policy.Attempts, 1)

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.Interval), uint64(attempts-1)),
		ctx,
	)

	err := backoff.Retry(func() error {
		done, err := check(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		if !done {
			return errNotReady
		}

		return nil
	}, b)
	if errors.Is(err, errNotReady) {
		return fmt.Errorf("%w: %s not ready after %d attempts", ErrTimeout, what, attempts)
	}

	return err
}

// retryServerErrors calls fn until it succeeds, it fails with anything but
// a 5xx response, or the policy runs out of attempts. The delay doubles
// after every failed attempt.
func retryServerErrors(ctx context.Context, policy config.Retry, fn func(context.Context) error) error {
	attempts := max(policy.Attempts, 1)

	exponential := &backoff.ExponentialBackOff{
		InitialInterval:     policy.Delay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         policy.Delay << attempts,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exponential.Reset()

	b := backoff.WithContext(backoff.WithMaxRetries(exponential, uint64(attempts-1)), ctx)

	attempt := 0

	err := backoff.RetryNotify(
		func() error {
			attempt++

			err := fn(ctx)
			if err == nil {
				return nil
			}

			var reqErr *remote.RequestError
			if errors.As(err, &reqErr) && reqErr.ServerError() {
				return err
			}

			return backoff.Permanent(err)
		},
		b,
		func(err error, wait time.Duration) {
			logger.WarnKV(ctx, "Request failed, retrying",
				"attempt", attempt,
				"max_attempts", attempts,
				"wait", wait.String(),
				"error", err,
			)
		},
	)
	if err != nil && attempt > 1 {
		return fmt.Errorf("after %d attempts: %w", attempt, err)
	}

	return err
}
