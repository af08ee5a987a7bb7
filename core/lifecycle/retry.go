package lifecycle

import (
	"time"

	"EmberFM/core/fault"
)

// Verdict is the tagged result of classifying one fetch attempt.
type Verdict int

const (
	VerdictOk Verdict = iota
	VerdictRetry
	VerdictFatal
)

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait first. It has no timers of its own, so tests drive it with a fake
// clock.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// LinearRetryPolicy waits attempt × base between attempts.
func LinearRetryPolicy(maxAttempts int, base time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * base
		},
	}
}

// Classify maps the error of attempt n (1-based) onto a verdict.
// NotFound is Ok: a missing document is the creation trigger, not a
// failure. Permission faults are fatal immediately; transient ones retry
// until the budget runs out.
func (p RetryPolicy) Classify(err error, attempt int) (Verdict, fault.Kind) {
	if err == nil {
		return VerdictOk, 0
	}
	kind := fault.KindOf(err)
	switch kind {
	case fault.KindNotFound:
		return VerdictOk, kind
	case fault.KindPermission:
		return VerdictFatal, kind
	default:
		if attempt >= p.MaxAttempts {
			return VerdictFatal, fault.KindTransient
		}
		return VerdictRetry, fault.KindTransient
	}
}
