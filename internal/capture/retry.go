package capture

import "time"

// RetryPolicy governs per-tile capture attempts. One policy applies
// uniformly to every tile in a session; call sites never hand-roll
// their own delays.
type RetryPolicy struct {
	MaxAttempts int           // total attempts per tile, first try included
	SettleDelay time.Duration // pause after scrolling, before a capture attempt
	MaxDelay    time.Duration // ceiling for grown settle delays
}

// DefaultRetryPolicy returns the tuning used when config is silent:
// one try plus two retries, 350ms base settle.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		SettleDelay: 350 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Delay returns the settle pause before the given attempt (1-based).
// The pause grows linearly with the attempt number so a slow-rendering
// document gets more time on each retry, capped at MaxDelay. Whether
// the base delay is enough for arbitrarily slow documents is a tunable,
// not a guarantee.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.SettleDelay * time.Duration(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// normalize fills zero fields with defaults.
func (p RetryPolicy) normalize() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.SettleDelay <= 0 {
		p.SettleDelay = def.SettleDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	return p
}
