package ratelimit

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimitExceeded is returned when a key has spent its budget.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Policy describes a token bucket.
type Policy struct {
	Enabled         bool
	EventsPerSecond float64
	Burst           int
}

// Limiter throttles a single connection. A nil Limiter allows everything.
type Limiter struct {
	limiter *rate.Limiter
}

// New returns a limiter for one connection, or nil when the policy is off.
func (p Policy) New() *Limiter {
	if !p.Enabled || p.EventsPerSecond <= 0 {
		return nil
	}
	burst := p.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(p.EventsPerSecond), burst)}
}

// Allow reports whether one more event fits the budget right now.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed holds one token bucket per key (remote address for HTTP routes).
// Buckets idle for longer than expiration are swept periodically.
type Keyed struct {
	policy     Policy
	expiration time.Duration

	mu       sync.Mutex
	limiters map[string]*keyedLimiter

	stop     chan struct{}
	stopOnce sync.Once
}

// NewKeyed creates a keyed limiter and starts its cleanup goroutine.
func NewKeyed(policy Policy, expiration time.Duration) *Keyed {
	if expiration <= 0 {
		expiration = 10 * time.Minute
	}
	k := &Keyed{
		policy:     policy,
		expiration: expiration,
		limiters:   make(map[string]*keyedLimiter),
		stop:       make(chan struct{}),
	}
	go k.cleanup()
	return k
}

// Allow checks if key may perform another request.
func (k *Keyed) Allow(key string) error {
	if !k.policy.Enabled || k.policy.EventsPerSecond <= 0 {
		return nil
	}

	now := time.Now()
	k.mu.Lock()
	entry, ok := k.limiters[key]
	if !ok {
		burst := k.policy.Burst
		if burst <= 0 {
			burst = 1
		}
		entry = &keyedLimiter{limiter: rate.NewLimiter(rate.Limit(k.policy.EventsPerSecond), burst)}
		k.limiters[key] = entry
	}
	entry.lastSeen = now
	k.mu.Unlock()

	if !entry.limiter.AllowN(now, 1) {
		return ErrRateLimitExceeded
	}
	return nil
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

// Close stops the cleanup goroutine.
func (k *Keyed) Close() {
	k.stopOnce.Do(func() { close(k.stop) })
}

func (k *Keyed) cleanup() {
	ticker := time.NewTicker(k.expiration / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			k.sweep(time.Now())
		case <-k.stop:
			return
		}
	}
}

func (k *Keyed) sweep(now time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, entry := range k.limiters {
		if now.Sub(entry.lastSeen) > k.expiration {
			delete(k.limiters, key)
		}
	}
}
