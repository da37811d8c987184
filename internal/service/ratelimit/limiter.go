package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per provider key.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*rate.Limiter
	defaults Limit
}

// Limit configures a bucket: steady rate per second and burst capacity.
type Limit struct {
	PerSecond float64
	Burst     int
}

func New(defaults Limit) *Limiter {
	if defaults.PerSecond <= 0 {
		defaults.PerSecond = 5
	}
	if defaults.Burst <= 0 {
		defaults.Burst = 1
	}
	return &Limiter{m: make(map[string]*rate.Limiter), defaults: defaults}
}

// Configure sets the bucket for key, replacing any existing one.
func (l *Limiter) Configure(key string, lim Limit) {
	if lim.PerSecond <= 0 {
		lim.PerSecond = l.defaults.PerSecond
	}
	if lim.Burst <= 0 {
		lim.Burst = l.defaults.Burst
	}
	l.mu.Lock()
	l.m[key] = rate.NewLimiter(rate.Limit(lim.PerSecond), lim.Burst)
	l.mu.Unlock()
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.m[key]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.defaults.PerSecond), l.defaults.Burst)
		l.m[key] = b
	}
	return b
}

// Allow returns true if one token can be consumed for key right now.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Wait blocks until a token for key is available or ctx is done.
// A wait that would outlive the ctx deadline fails immediately.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if err := l.get(key).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", key, err)
	}
	return nil
}
