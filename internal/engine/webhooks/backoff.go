package webhooks

import (
	"math/rand"
	"time"
)

// BackoffPolicy computes retry schedules. The curve is exponential
// from BaseDelay, capped at MaxDelay, with uniform jitter of up to
// JitterFraction of the computed delay so a burst of failures does not
// retry in lockstep.
type BackoffPolicy struct {
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64
}

// NextDelay returns the wait before the given attempt number is
// retried. attempt is 1-based: the delay after the first failure is
// BaseDelay.
func (p BackoffPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}

	if p.JitterFraction > 0 {
		jitter := time.Duration(rand.Int63n(int64(float64(delay)*p.JitterFraction) + 1))
		delay += jitter
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
