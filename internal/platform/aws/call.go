package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/dblab/internal/util/retry"
)

// call runs fn under the retry policy. Every attempt gets its own deadline of
// Timeouts.APICall. Already-exists errors come back wrapping ErrAlreadyExists,
// permission errors as *PermissionError; neither is retried.
func (c *RealClient) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := retry.WithExponentialBackoff(ctx, func(attemptCtx context.Context) error {
		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("attempt timed out: %w", err)
		}
		switch d := Describe(err); Classify(d) {
		case ClassAlreadyExists:
			return retry.Fatal(fmt.Errorf("%w: %w", ErrAlreadyExists, err))
		case ClassPermission:
			return retry.Fatal(&PermissionError{Operation: op, Code: d.Code, Err: err})
		case ClassFatal:
			return retry.Fatal(err)
		}
		return err
	},
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay),
		retry.WithMaxDelay(c.timeouts.RetryMaxDelay),
		retry.WithAttemptTimeout(c.timeouts.APICall),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			class := ClassifyError(err)
			c.logger.Warn().
				Str("operation", op).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Str("class", class.String()).
				Err(err).
				Msg("retrying cloud API call")
			c.metrics.RecordRetry(op, class.String())
		}),
	)

	c.metrics.RecordAPICall(op, callResult(err))
	if err == nil {
		return nil
	}

	var fatal *retry.FatalError
	if errors.As(err, &fatal) {
		err = fatal.Err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func callResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case IsPermission(err):
		return "permission_denied"
	default:
		return "error"
	}
}

// describe runs a lookup under the retry policy and converts a not-found
// response into a nil result.
func describe[T any](ctx context.Context, c *RealClient, op string, fn func(ctx context.Context) (*T, error)) (*T, error) {
	var out *T
	err := c.call(ctx, op, func(ctx context.Context) error {
		res, err := fn(ctx)
		if err != nil {
			if IsNotFound(err) {
				out = nil
				return nil
			}
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
