// Package ratelimit throttles API clients with per-client token buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter manages rate limiting for multiple clients.
type Limiter struct {
	config *Config
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*entry

	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	stopOnce      sync.Once
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}

	l := &Limiter{
		config:  config,
		now:     time.Now,
		clients: make(map[string]*entry),
	}

	if config.Enabled && config.CleanupInterval > 0 {
		l.cleanupTicker = time.NewTicker(config.CleanupInterval)
		l.cleanupStop = make(chan struct{})
		go l.cleanup()
	}
	return l
}

// Allow checks if a request from the given client is allowed for the specified endpoint.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{}
	}

	ec := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	if ec == nil {
		ec = &EndpointConfig{RequestsPerSecond: l.config.RequestsPerSecond, Burst: l.config.Burst}
	}
	if ec.Unlimited || ec.RequestsPerSecond <= 0 {
		return true, Info{Allowed: true}
	}

	burst := max(ec.Burst, 1)
	key := clientID + ":" + ec.Path + ":" + method
	now := l.now()
	lim := l.limiterFor(key, ec.RequestsPerSecond, burst, now)

	allowed := lim.AllowN(now, 1)
	tokens := max(lim.TokensAt(now), 0)
	info := Info{
		Allowed:   allowed,
		Limit:     burst,
		Remaining: int(tokens),
		ResetTime: now.Add(time.Duration((float64(burst) - tokens) / ec.RequestsPerSecond * float64(time.Second))),
	}
	if !allowed {
		r := lim.ReserveN(now, 1)
		info.RetryAfter = r.DelayFrom(now)
		r.CancelAt(now)
	}
	return allowed, info
}

func (l *Limiter) limiterFor(key string, rps float64, burst int, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.clients[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
		l.clients[key] = e
	}
	e.lastAccess = now
	return e.limiter
}

func (l *Limiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.evictIdle()
		case <-l.cleanupStop:
			return
		}
	}
}

// evictIdle drops limiters not used within IdleTTL.
func (l *Limiter) evictIdle() {
	cutoff := l.now().Add(-l.config.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.clients {
		if e.lastAccess.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		if l.cleanupTicker != nil {
			l.cleanupTicker.Stop()
		}
		if l.cleanupStop != nil {
			close(l.cleanupStop)
		}
	})
}
