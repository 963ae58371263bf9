package hardware

import (
	"context"
	"sync"
	"time"
)

// Prober is anything that can produce a fresh profile.
type Prober interface {
	Detect(ctx context.Context) (Profile, error)
}

// Cache holds the last detected profile until it is invalidated or,
// when MaxAge is set, until it expires.
type Cache struct {
	prober Prober
	maxAge time.Duration
	now    func() time.Time

	mu      sync.Mutex
	profile *Profile
}

// NewCache wraps a prober. A zero maxAge keeps the profile until Invalidate.
func NewCache(prober Prober, maxAge time.Duration) *Cache {
	return &Cache{prober: prober, maxAge: maxAge, now: time.Now}
}

// Get returns the cached profile, detecting on first use or after expiry.
func (c *Cache) Get(ctx context.Context) (Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.profile != nil && !c.expired() {
		return *c.profile, nil
	}
	return c.refreshLocked(ctx)
}

// Refresh re-probes unconditionally and replaces the cached profile.
func (c *Cache) Refresh(ctx context.Context) (Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

// Invalidate drops the cached profile so the next Get re-probes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = nil
}

func (c *Cache) refreshLocked(ctx context.Context) (Profile, error) {
	p, err := c.prober.Detect(ctx)
	if err != nil {
		return Profile{}, err
	}
	c.profile = &p
	return p, nil
}

// expired must be called with lock held.
func (c *Cache) expired() bool {
	if c.maxAge <= 0 || c.profile.DetectedAt.IsZero() {
		return false
	}
	return c.now().Sub(c.profile.DetectedAt) > c.maxAge
}
