// Package ratelimit throttles requests per client and route tier with token buckets.
package ratelimit

import (
	"sync"
	"time"
)

// idleBucketTTL is how long an unused bucket is kept before the sweeper drops it.
const idleBucketTTL = time.Hour

// bucket refills continuously at rate tokens per second up to capacity.
type bucket struct {
	capacity float64
	rate     float64
	tokens   float64
	updated  time.Time
}

func newBucket(capacity int, rate float64, now time.Time) *bucket {
	return &bucket{capacity: float64(capacity), rate: rate, tokens: float64(capacity), updated: now}
}

func (b *bucket) refill(now time.Time) {
	if elapsed := now.Sub(b.updated).Seconds(); elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.rate)
	}
	b.updated = now
}

// take consumes one token if one is available.
func (b *bucket) take(now time.Time) bool {
	b.refill(now)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// fullAt is when the bucket will next be at capacity.
func (b *bucket) fullAt(now time.Time) time.Time {
	missing := b.capacity - b.tokens
	if missing <= 0 || b.rate <= 0 {
		return now
	}
	return now.Add(time.Duration(missing / b.rate * float64(time.Second)))
}

// Info describes the client's budget after a request.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// DefaultConfig is used when NewLimiter is given nil.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// Limiter keeps one bucket per client, route tier and method.
type Limiter struct {
	cfg *Config
	now func() time.Time

	mu       sync.Mutex
	buckets  map[string]*bucket
	lastSeen map[string]time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter and starts its idle-bucket sweeper. Call Stop
// when done.
func NewLimiter(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	l := &Limiter{
		cfg:      cfg,
		now:      time.Now,
		buckets:  make(map[string]*bucket),
		lastSeen: make(map[string]time.Time),
		stop:     make(chan struct{}),
	}
	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go l.sweepEvery(cfg.CleanupInterval)
	}
	return l
}

// Allow reports whether clientID may make a request to path with method, and
// the budget left on the matching tier.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	switch {
	case !l.cfg.Enabled, l.cfg.Whitelist[clientID]:
		return true, Info{Allowed: true}
	case l.cfg.Blacklist[clientID]:
		return false, Info{}
	}

	rule := MatchEndpoint(path, method, l.cfg.EndpointConfigs)
	if rule == nil {
		rule = &EndpointConfig{Limit: l.cfg.DefaultLimit, Window: l.cfg.DefaultWindow, Burst: l.cfg.DefaultLimit}
	}
	if rule.Limit <= 0 {
		return true, Info{Allowed: true}
	}

	// Prefix tiers share one bucket, so /activities/1 and /activities/2 draw
	// from the same budget.
	tier := path
	if rule.Path != "" {
		tier = rule.Path
	}
	key := clientID + ":" + tier + ":" + method

	now := l.now()
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		capacity := rule.Burst
		if capacity <= 0 {
			capacity = rule.Limit
		}
		b = newBucket(capacity, float64(rule.Limit)/rule.Window.Seconds(), now)
		l.buckets[key] = b
	}
	l.lastSeen[key] = now
	allowed := b.take(now)
	info := Info{
		Allowed:   allowed,
		Limit:     rule.Limit,
		Remaining: int(b.tokens),
		ResetTime: b.fullAt(now),
	}
	l.mu.Unlock()

	if !allowed {
		info.RetryAfter = max(info.ResetTime.Sub(now), 0)
	}
	return allowed, info
}

// sweep drops buckets not used since before cutoff and returns how many went.
func (l *Limiter) sweep(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	dropped := 0
	for key, seen := range l.lastSeen {
		if seen.Before(cutoff) {
			delete(l.buckets, key)
			delete(l.lastSeen, key)
			dropped++
		}
	}
	return dropped
}

func (l *Limiter) sweepEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep(l.now().Add(-idleBucketTTL))
		case <-l.stop:
			return
		}
	}
}

// Stop ends the sweeper. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
