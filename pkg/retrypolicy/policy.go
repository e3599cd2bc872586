// Package retrypolicy computes backoff delays for retried requests and poll
// cadence. The policy is a pure function of the attempt number so it can be
// tested apart from the I/O it guards.
package retrypolicy

import (
	"math"
	"math/rand"
	"time"
)

// DefaultJitterFraction bounds the random jitter added to a computed delay.
// Kept below Factor-1 so delays stay non-decreasing across attempts.
const DefaultJitterFraction = 0.25

// Policy describes exponential backoff with jitter.
type Policy struct {
	// Base is the delay before the first retry.
	Base time.Duration

	// Factor multiplies the delay on each subsequent attempt. Must be >= 1.
	Factor float64

	// Max caps the computed delay before jitter. Zero means uncapped.
	Max time.Duration

	// Jitter is the fraction of the computed delay added as random jitter,
	// drawn uniformly from [0, delay*Jitter). Spreads out concurrent jobs so
	// they do not retry in lockstep.
	Jitter float64
}

// Delay returns the wait before the given attempt (1-based). A positive hint
// is a service-provided minimum wait and is honored as a floor, even above
// Max.
func (p Policy) Delay(attempt int, hint time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := float64(p.Base) * math.Pow(p.Factor, float64(attempt-1))
	if p.Max > 0 && d > float64(p.Max) {
		d = float64(p.Max)
	}
	if p.Jitter > 0 {
		d += rand.Float64() * d * p.Jitter
	}

	delay := time.Duration(d)
	if hint > delay {
		delay = hint
	}
	return delay
}
