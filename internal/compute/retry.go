package compute

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/shilovk/yandex-cloud-tools/internal/telemetry"
)

// RetryPolicy bounds how a transient API failure is retried. Attempts
// counts every try including the first; Delay is the fixed pause
// between tries.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy retries twice more after the initial failure,
// one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: time.Second}
}

// Do runs fn until it succeeds, fails with a non-transient error, or
// the attempt budget is spent. Only connection-level failures and
// timeouts are retried; HTTP status errors surface immediately.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, op string, fn func() error) error {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt == attempts || !isTransient(ctx, err) {
			return err
		}
		telemetry.APIRetries.WithLabelValues(op).Inc()
		logger.Warn("transient api failure, retrying",
			"op", op,
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	return err
}

// isTransient reports whether err is worth another try. Transport
// failures and timeouts qualify unless the caller's context already
// ended.
func isTransient(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
