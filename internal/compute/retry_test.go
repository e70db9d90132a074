package compute

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"
)

func transientErr() error {
	return &url.Error{Op: "Get", URL: "http://example", Err: errors.New("connection refused")}
}

func TestRetryPolicy_RetriesTransient(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Delay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), discard, "get_instance", func() error {
		calls++
		if calls < 3 {
			return transientErr()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestRetryPolicy_NonTransientFailsFast(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Delay: time.Millisecond}
	calls := 0
	wantErr := errors.New("bad request body")
	err := p.Do(context.Background(), discard, "create_snapshot", func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	p := RetryPolicy{Attempts: 2, Delay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), discard, "get_instance", func() error {
		calls++
		return transientErr()
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
}

func TestRetryPolicy_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := RetryPolicy{Attempts: 3, Delay: time.Millisecond}
	calls := 0
	err := p.Do(ctx, discard, "get_instance", func() error {
		calls++
		return transientErr()
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1 (no retries once the context ended)", calls)
	}
}

func TestRetryPolicy_ZeroAttemptsRunsOnce(t *testing.T) {
	p := RetryPolicy{}
	calls := 0
	err := p.Do(context.Background(), discard, "get_instance", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}
