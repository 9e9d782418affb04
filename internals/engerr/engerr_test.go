package engerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorMessageIncludesKindAndOp(t *testing.T) {
	err := New(KindConnection, "worker.connect", "device unreachable")
	msg := err.Error()
	if !strings.Contains(msg, "connection") {
		t.Fatalf("expected kind in message, got %q", msg)
	}
	if !strings.Contains(msg, "worker.connect") {
		t.Fatalf("expected op in message, got %q", msg)
	}
}

func TestWrapUnwrapsToCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindFFI, "engine.start", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	if err.Error() == "" {
		t.Fatalf("expected message from cause")
	}
}

func TestSeverityByKind(t *testing.T) {
	cases := []struct {
		kind Kind
		want Severity
	}{
		{KindConfiguration, SeverityCritical},
		{KindInvalidParameter, SeverityCritical},
		{KindFFI, SeverityHigh},
		{KindInternal, SeverityHigh},
		{KindConnection, SeverityMedium},
		{KindDevice, SeverityMedium},
		{KindTimeout, SeverityLow},
		{KindSynchronization, SeverityLow},
	}
	for _, tc := range cases {
		err := New(tc.kind, "op", "msg")
		if got := err.Severity(); got != tc.want {
			t.Fatalf("kind %s: expected severity %s, got %s", tc.kind, tc.want, got)
		}
	}
}

func TestCriticalKindsAreNeverRetryable(t *testing.T) {
	for _, kind := range []Kind{KindConfiguration, KindInvalidParameter} {
		err := New(kind, "op", "msg")
		if err.Recoverable() {
			t.Fatalf("kind %s must not be recoverable", kind)
		}
		if err.Retryable() {
			t.Fatalf("kind %s must not be retryable", kind)
		}
	}
}

func TestFFIRetryableOnlyForNegativeCodes(t *testing.T) {
	if !FFI("engine.click", "transient", -3).Retryable() {
		t.Fatalf("negative code must be retryable")
	}
	if FFI("engine.click", "permanent", 2).Retryable() {
		t.Fatalf("non-negative code must not be retryable")
	}
}

func TestKindOfPlainErrorDefaultsToInternal(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Fatalf("expected internal, got %s", got)
	}
	wrapped := fmt.Errorf("outer: %w", New(KindDevice, "op", "msg"))
	if got := KindOf(wrapped); got != KindDevice {
		t.Fatalf("expected device through wrapping, got %s", got)
	}
}

func TestRetryIfEligibleRetriesTransientErrors(t *testing.T) {
	attempts := 0
	err := RetryIfEligible(context.Background(), 5, time.Millisecond, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return New(KindConnection, "op", "transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryIfEligibleStopsOnCriticalError(t *testing.T) {
	attempts := 0
	err := RetryIfEligible(context.Background(), 5, time.Millisecond, func(ctx context.Context) error {
		attempts++
		return New(KindInvalidParameter, "op", "bad params")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly one attempt, got %d", attempts)
	}
}
