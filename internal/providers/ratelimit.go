package providers

import (
	"context"
	"sync"
	"time"
)

// DefaultRequestsPerMinute applies when a provider has no rate_limit.
const DefaultRequestsPerMinute = 600

// RateLimiter is a token bucket sized to one minute of requests. A throttle
// response from the backend pauses the bucket until its retry-after passes.
type RateLimiter struct {
	mu sync.Mutex

	perMinute int
	tokens    float64
	last      time.Time
	pausedTil time.Time
	now       func() time.Time

	consumed     int64
	waited       time.Duration
	lastThrottle time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	Utilization     float64       `json:"utilization"`
	TimeUntilToken  time.Duration `json:"time_until_token"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
	LastThrottle    time.Time     `json:"last_throttle,omitempty"`
}

// NewRateLimiter creates a limiter allowing requestsPerMinute, starting full.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	r := &RateLimiter{
		perMinute: requestsPerMinute,
		tokens:    float64(requestsPerMinute),
		now:       time.Now,
	}
	r.last = r.now()
	return r
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		wait := r.reserveLocked()
		r.mu.Unlock()
		if wait == 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.waited += wait
			r.mu.Unlock()
		}
	}
}

// TryConsume takes a token without blocking.
func (r *RateLimiter) TryConsume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reserveLocked() == 0
}

// RecordThrottle drains the bucket and pauses it for retryAfter.
func (r *RateLimiter) RecordThrottle(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.lastThrottle = now
	r.tokens = 0
	if retryAfter > 0 {
		if until := now.Add(retryAfter); until.After(r.pausedTil) {
			r.pausedTil = until
		}
	}
}

// Status returns a snapshot of the limiter.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refillLocked()
	utilization := 1.0 - r.tokens/float64(r.perMinute)
	if utilization < 0 {
		utilization = 0
	}
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.perMinute,
		Utilization:     utilization,
		TimeUntilToken:  r.untilTokenLocked(),
		TotalConsumed:   r.consumed,
		TotalWaited:     r.waited,
		LastThrottle:    r.lastThrottle,
	}
}

// reserveLocked consumes a token and returns 0, or returns the time to wait.
func (r *RateLimiter) reserveLocked() time.Duration {
	r.refillLocked()
	if d := r.untilTokenLocked(); d > 0 {
		return d
	}
	r.tokens--
	r.consumed++
	return 0
}

func (r *RateLimiter) untilTokenLocked() time.Duration {
	if now := r.now(); now.Before(r.pausedTil) {
		return r.pausedTil.Sub(now)
	}
	if r.tokens >= 1 {
		return 0
	}
	perSecond := float64(r.perMinute) / 60.0
	d := time.Duration((1 - r.tokens) / perSecond * float64(time.Second))
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}

func (r *RateLimiter) refillLocked() {
	now := r.now()
	elapsed := now.Sub(r.last).Seconds()
	r.last = now
	if elapsed <= 0 || now.Before(r.pausedTil) {
		return
	}
	r.tokens += elapsed * float64(r.perMinute) / 60.0
	if limit := float64(r.perMinute); r.tokens > limit {
		r.tokens = limit
	}
}
