package lifecycle

import (
	"errors"
	"testing"
	"time"

	"EmberFM/core/fault"
)

func TestClassify(t *testing.T) {
	policy := LinearRetryPolicy(3, time.Second)

	cases := []struct {
		name    string
		err     error
		attempt int
		want    Verdict
	}{
		{"success", nil, 1, VerdictOk},
		{"missing document is the creation trigger", fault.Newf(fault.KindNotFound, "no row"), 1, VerdictOk},
		{"permission is terminal immediately", fault.Newf(fault.KindPermission, "access denied"), 1, VerdictFatal},
		{"transient retries", fault.Newf(fault.KindTransient, "connection reset"), 1, VerdictRetry},
		{"transient retries on attempt two", fault.Newf(fault.KindTransient, "connection reset"), 2, VerdictRetry},
		{"budget exhausted", fault.Newf(fault.KindTransient, "connection reset"), 3, VerdictFatal},
		{"unclassified errors count as transient", errors.New("weird"), 1, VerdictRetry},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := policy.Classify(tc.err, tc.attempt)
			if got != tc.want {
				t.Fatalf("Classify(attempt=%d) = %v, want %v", tc.attempt, got, tc.want)
			}
		})
	}
}

func TestLinearBackoffGrowsWithAttempt(t *testing.T) {
	policy := LinearRetryPolicy(3, time.Second)
	for attempt := 1; attempt <= 3; attempt++ {
		want := time.Duration(attempt) * time.Second
		if got := policy.Backoff(attempt); got != want {
			t.Fatalf("Backoff(%d) = %v, want %v", attempt, got, want)
		}
	}
}
