package api

import "time"

// WaitStrategy blocks for the given duration between retries. Tests swap in
// a recording no-op instead of sleeping for real.
type WaitStrategy func(time.Duration)

// RetryPolicy governs the rate-limit retry loop around snapshot creation.
// The server's quota refills on a known cadence, so a fixed interval is
// enough; no exponential backoff.
type RetryPolicy struct {
	Interval time.Duration
	// MaxAttempts of 0 retries until the server accepts.
	MaxAttempts int
	Wait        WaitStrategy
}

// Exhausted reports whether another attempt is allowed after n attempts.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}

// Sleep waits one retry interval using the configured strategy.
func (p RetryPolicy) Sleep() {
	if p.Wait != nil {
		p.Wait(p.Interval)
		return
	}
	time.Sleep(p.Interval)
}
