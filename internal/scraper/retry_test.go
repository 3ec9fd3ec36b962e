// internal/scraper/retry_test.go
package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/realyield/auctionwatch/internal/browser"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &browser.NavigationError{URL: "http://x", Timeout: true}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhaustion(t *testing.T) {
	navErr := &browser.NavigationError{URL: "http://x", Cause: errors.New("connection reset")}
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return navErr
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	var rex *RetryExhaustedError
	if !errors.As(err, &rex) {
		t.Fatalf("err = %v, want RetryExhaustedError", err)
	}
	if rex.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", rex.Attempts)
	}
	if !errors.Is(err, navErr) {
		t.Error("RetryExhaustedError should wrap the last attempt's error")
	}
}

func TestRetryPermanentErrorShortCircuits(t *testing.T) {
	extr := &ExtractionError{Kind: MissingField, Field: "propertyName", URL: "http://x"}
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return extr
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1: permanent failures must not be retried", calls)
	}
	if !errors.Is(err, extr) {
		t.Errorf("err = %v, want the extraction error unchanged", err)
	}
}

func TestRetryCancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := fastPolicy(5).Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return &browser.NavigationError{URL: "http://x", Timeout: true}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryAttemptTimeoutConsumesAttempts(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:       3,
		PerAttemptTimeout: 5 * time.Millisecond,
		BaseDelay:         time.Millisecond,
		MaxDelay:          2 * time.Millisecond,
	}
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3: an attempt timeout must consume retries, not end the run", calls)
	}
	var rex *RetryExhaustedError
	if !errors.As(err, &rex) {
		t.Fatalf("err = %v, want RetryExhaustedError", err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, must not look like run cancellation", err)
	}
}

func TestRetryAttemptTimeoutFromBlockedStep(t *testing.T) {
	// A step bound to the attempt context reports Canceled when the attempt
	// budget expires mid-operation. That is still a timeout, not a run stop.
	p := RetryPolicy{
		MaxAttempts:       2,
		PerAttemptTimeout: 5 * time.Millisecond,
		BaseDelay:         time.Millisecond,
	}
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return context.Canceled
	})
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	var rex *RetryExhaustedError
	if !errors.As(err, &rex) {
		t.Fatalf("err = %v, want RetryExhaustedError", err)
	}
	if errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, must not be read as cancellation by the skip tally", err)
	}
}

func TestRetryOnRetryHook(t *testing.T) {
	policy := fastPolicy(3)
	var attempts []int
	policy.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
	}
	policy.Do(context.Background(), func(context.Context) error {
		return &browser.NavigationError{URL: "http://x", Timeout: true}
	})
	if len(attempts) != 2 {
		t.Fatalf("OnRetry fired %d times, want 2", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("attempts = %v, want [1 2]", attempts)
	}
}

func TestRetryDelayCapped(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 6, BaseDelay: 2 * time.Second, MaxDelay: 15 * time.Second}
	want := []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second, 15 * time.Second, 15 * time.Second,
	}
	for i, w := range want {
		if got := p.delay(i + 1); got != w {
			t.Errorf("delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}
