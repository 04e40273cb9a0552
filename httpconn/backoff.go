package httpconn

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// calculateBackoff returns the delay before retry attempt `attempt` (0-based,
// counting the first retry after the initial try). It follows an exponential
// curve with factor 1.5 starting at retryAfterSeconds, capped at
// retryCount² × retryAfterSeconds — the library's own defaults (factor 1.5,
// a 15-minute cap) don't track the start interval the repository hands us
// per-request, so the curve is rebuilt from backoff.ExponentialBackOff's
// fields rather than used as shipped.
func calculateBackoff(attempt, retryCount int, retryAfterSeconds float64) time.Duration {
	start := time.Duration(retryAfterSeconds * float64(time.Second))
	if start <= 0 {
		start = time.Second
	}
	maxInterval := start
	if retryCount > 0 {
		maxInterval = time.Duration(retryCount*retryCount) * start
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = start
	b.Multiplier = 1.5
	b.MaxInterval = maxInterval
	b.RandomizationFactor = 0

	var d time.Duration
	for i := 0; i <= attempt; i++ {
		d = b.NextBackOff()
	}
	if maxInterval > 0 && d > maxInterval {
		d = maxInterval
	}
	return d
}

// retryAfterOverride computes the delay forced by a 429 response's
// Retry-After header: the header's value plus one second, per spec.
func retryAfterOverride(seconds float64) time.Duration {
	return time.Duration(seconds*float64(time.Second)) + time.Second
}
