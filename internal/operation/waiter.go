package operation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shilovk/yandex-cloud-tools/internal/compute"
	"github.com/shilovk/yandex-cloud-tools/internal/telemetry"
)

// Getter fetches the current state of an operation. *compute.Client
// satisfies it.
type Getter interface {
	GetOperation(ctx context.Context, id string) (*compute.Operation, error)
}

// Outcome says how a wait ended.
type Outcome string

const (
	OutcomeDone     Outcome = "done"
	OutcomeTimedOut Outcome = "timed_out"
)

// Result is the terminal state of a wait. Operation holds the last
// observed document.
type Result struct {
	Outcome   Outcome
	Operation *compute.Operation
	Elapsed   time.Duration
	Message   string
}

// Option configures the Waiter.
type Option func(*Waiter)

// WithPolicy overrides the poll cadence.
func WithPolicy(p Policy) Option {
	return func(w *Waiter) { w.policy = p }
}

// WithLogger sets the logger for poll diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Waiter) { w.logger = logger }
}

// Waiter polls operations to completion. Waiters are stateless across
// calls and safe for concurrent use.
type Waiter struct {
	client Getter
	policy Policy
	logger *slog.Logger
}

// NewWaiter creates a Waiter with the default policy.
func NewWaiter(client Getter, opts ...Option) *Waiter {
	w := &Waiter{
		client: client,
		policy: DefaultPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wait blocks until the operation reports done or the budget runs out.
// The first poll happens immediately; elapsed time advances one
// interval per poll, so a budget of 600s at a 2s interval allows 300
// polls, and done on the final poll wins over timeout. An empty ID
// returns (nil, nil) without polling. Fetch errors surface as errors
// once the client's own retries are spent.
func (w *Waiter) Wait(ctx context.Context, id string) (*Result, error) {
	if id == "" {
		return nil, nil
	}

	var elapsed time.Duration
	for {
		op, err := w.client.GetOperation(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("poll operation %s: %w", id, err)
		}
		telemetry.OperationPolls.Inc()
		elapsed += w.policy.Interval

		switch w.policy.Step(elapsed, op.Done) {
		case Done:
			w.logger.Info("operation completed",
				"operation_id", id,
				"description", op.Description,
				"elapsed", elapsed,
			)
			return &Result{
				Outcome:   OutcomeDone,
				Operation: op,
				Elapsed:   elapsed,
				Message:   fmt.Sprintf("operation %s (%s) completed", op.Description, id),
			}, nil
		case TimedOut:
			w.logger.Warn("operation still running, giving up",
				"operation_id", id,
				"description", op.Description,
				"elapsed", elapsed,
			)
			return &Result{
				Outcome:   OutcomeTimedOut,
				Operation: op,
				Elapsed:   elapsed,
				Message:   fmt.Sprintf("operation %s (%s) running too long", op.Description, id),
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(w.policy.Interval):
		}
	}
}

// WatchResult pairs a terminal result with the error that ended the
// watch, mirroring Wait's return values.
type WatchResult struct {
	Result *Result
	Err    error
}

// Watch runs the same policy in a goroutine and delivers the terminal
// state on the returned channel. The channel is buffered and closed
// after one send, so abandoning it leaks nothing. Watchers share no
// state; any number may run concurrently.
func (w *Waiter) Watch(ctx context.Context, id string) <-chan WatchResult {
	ch := make(chan WatchResult, 1)
	go func() {
		defer close(ch)
		res, err := w.Wait(ctx, id)
		ch <- WatchResult{Result: res, Err: err}
	}()
	return ch
}
