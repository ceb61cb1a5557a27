package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 2 * time.Second
)

// IsTransient reports whether err looks like a server-side failure worth
// retrying. Malformed requests, auth failures and safety rejections are
// deterministic; retrying them only wastes latency.
func IsTransient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

// WithRetry runs op, retrying transient failures with exponential backoff.
// The delay doubles per attempt and waiting suspends the caller without
// blocking other work. Non-transient failures propagate immediately, as does
// exhaustion of the retry budget.
func WithRetry[T any](ctx context.Context, op func(ctx context.Context) (T, error), maxRetries int, initialDelay time.Duration) (T, error) {
	var zero T
	delay := initialDelay

	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if !IsTransient(err) || attempt >= maxRetries {
			return zero, err
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}
