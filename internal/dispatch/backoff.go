package dispatch

import (
	"math"
	"math/rand"
	"time"
)

// BackoffPolicy computes retry delays: exponential growth from Base, capped
// at Max, with a symmetric jitter fraction applied after the cap. Channels
// with strict provider rate limits (SMS, email) typically configure a lower
// Max than webhook channels.
type BackoffPolicy struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64 // fraction in [0,1), +/- applied to the computed delay
}

// DefaultBackoff is used for channels without an explicit policy.
var DefaultBackoff = BackoffPolicy{
	Base:   time.Second,
	Max:    5 * time.Minute,
	Jitter: 0.25,
}

// Delay returns the wait before retry n (attempt is 1-based: the delay
// scheduled after the n-th failed attempt).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.Base
	if base <= 0 {
		base = DefaultBackoff.Base
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	if p.Jitter > 0 {
		// jitter multiplier in [1-j, 1+j], floored so the delay never
		// collapses to zero
		j := 1 + (rand.Float64()*2-1)*p.Jitter
		if j < 0.1 {
			j = 0.1
		}
		d = time.Duration(float64(d) * j)
	}
	return d
}
