package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   Reason
	}{
		{http.StatusTooManyRequests, ReasonRateLimited},
		{418, ReasonRateLimited},
		{http.StatusNotFound, ReasonNotFound},
		{http.StatusBadRequest, ReasonNotFound},
		{http.StatusInternalServerError, ReasonTransient},
		{http.StatusBadGateway, ReasonTransient},
	}

	for _, tc := range cases {
		err := FromStatus("depth", tc.status)
		if err.Reason != tc.want {
			t.Fatalf("status %d: expected reason %s, got %s", tc.status, tc.want, err.Reason)
		}
	}
}

func TestReasonOfUnwrapsWrappedErrors(t *testing.T) {
	inner := FromStatus("premiumIndex", http.StatusTooManyRequests)
	wrapped := fmt.Errorf("fetch funding: %w", inner)

	if ReasonOf(wrapped) != ReasonRateLimited {
		t.Fatalf("expected wrapped error to classify as rate limited")
	}
	if !IsRateLimited(wrapped) {
		t.Fatalf("IsRateLimited should see through wrapping")
	}
}

func TestPlainErrorsAreTransient(t *testing.T) {
	err := errors.New("connection reset by peer")
	if ReasonOf(err) != ReasonTransient {
		t.Fatalf("plain errors must classify as transient")
	}
	if !Retryable(err) {
		t.Fatalf("transient errors must be retryable")
	}
}

func TestNotFoundIsNotRetryable(t *testing.T) {
	if Retryable(FromStatus("ticker/price", http.StatusNotFound)) {
		t.Fatalf("not-found errors must not be retried")
	}
}
