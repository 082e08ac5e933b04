package safety

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket guarding broker API calls against rate-limit
// bans. Tokens refill continuously at refillRate per second up to capacity.
type Limiter struct {
	name       string
	capacity   float64
	refillRate float64

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time

	now func() time.Time
}

// NewLimiter creates a limiter starting with a full bucket.
func NewLimiter(name string, capacity, refillRate float64) *Limiter {
	return &Limiter{
		name:       name,
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     capacity,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Allow takes one token if available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.timeToNextToken()):
		}
	}
}

// Tokens returns the current token count, for monitoring.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * l.refillRate
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.lastRefill = now
}

func (l *Limiter) timeToNextToken() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		return 0
	}
	deficit := 1 - l.tokens
	return time.Duration(deficit/l.refillRate*float64(time.Second)) + 10*time.Millisecond
}
