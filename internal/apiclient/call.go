package apiclient

import (
	"context"
	"errors"

	"github.com/hirely/hirely-cli/internal/apierr"
	"github.com/hirely/hirely-cli/internal/resilience"
)

// Call runs a typed backend call under the client's retry policy. A
// *apierr.StatusError with a transient status is retried like a transport
// failure. Failures come back classified. Unlike Request, Call never queues:
// it is for reads and idempotent calls whose result the caller needs now.
func Call[T any](ctx context.Context, c *Client, fn func(ctx context.Context) (T, error)) (T, *apierr.ErrorResponse) {
	var zero T
	if c.net != nil && !c.net.IsOnline() {
		return zero, apierr.Offline("")
	}

	o := c.defaults
	rc := c.retryConfig(o)
	rc.ShouldRetry = func(err error) bool { return shouldRetryCall(ctx, err) }

	v, err := resilience.DoVal(ctx, rc, func(ctx context.Context) (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, o.Timeout)
		defer cancel()

		v, err := fn(attemptCtx)
		if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return v, apierr.ErrTimeout
		}
		return v, err
	})
	if err != nil {
		return zero, apierr.Classify(err)
	}
	return v, nil
}

func shouldRetryCall(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *apierr.StatusError
	if errors.As(err, &se) {
		return resilience.IsTransientHTTPStatus(se.Status)
	}
	return errors.Is(err, apierr.ErrTimeout) || resilience.IsTransient(err)
}
