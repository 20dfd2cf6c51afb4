package httpqueue

import (
	"errors"
	"testing"
	"time"
)

func TestNewRetryPolicyDefaults(t *testing.T) {
	rp := NewRetryPolicy()
	if got := rp.CurrentTimeout(); got != DefaultTimeout {
		t.Fatalf("CurrentTimeout = %v, want %v", got, DefaultTimeout)
	}
	if got := rp.RetryCount(); got != 0 {
		t.Fatalf("RetryCount = %d, want 0", got)
	}
}

func TestRetryExhaustsBudgetAndReturnsOriginalError(t *testing.T) {
	rp := NewRetryPolicyWithBackoff(100*time.Millisecond, 1, 1.0)
	errOrig := errors.New("boom")

	if err := rp.Retry(errOrig); err != nil {
		t.Fatalf("first retry should be granted, got err %v", err)
	}
	if got := rp.RetryCount(); got != 1 {
		t.Fatalf("RetryCount after first retry = %d, want 1", got)
	}
	if got := rp.CurrentTimeout(); got != 200*time.Millisecond {
		t.Fatalf("CurrentTimeout after backoff = %v, want 200ms", got)
	}

	if err := rp.Retry(errOrig); err != errOrig {
		t.Fatalf("second retry should exhaust the budget and return the original error, got %v", err)
	}
}

func TestRetryWithZeroBackoffMultiplierKeepsTimeoutStable(t *testing.T) {
	rp := NewRetryPolicyWithBackoff(500*time.Millisecond, 3, 0)
	for i := 0; i < 3; i++ {
		if err := rp.Retry(errors.New("x")); err != nil {
			t.Fatalf("retry %d should be granted, got %v", i, err)
		}
	}
	if got := rp.CurrentTimeout(); got != 500*time.Millisecond {
		t.Fatalf("CurrentTimeout = %v, want unchanged 500ms", got)
	}
}

func TestRetryWithZeroMaxRetriesNeverGrantsARetry(t *testing.T) {
	rp := NewRetryPolicyWithBackoff(time.Second, 0, 1.0)
	errOrig := errors.New("boom")
	if err := rp.Retry(errOrig); err != errOrig {
		t.Fatalf("with maxRetries=0 the first Retry call should already exhaust the budget, got %v", err)
	}
}
