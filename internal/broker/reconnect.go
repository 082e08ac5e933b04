package broker

import (
	"context"
	"fmt"
	"time"
)

// ReconnectConfig holds configuration for the bounded reconnection sequence.
type ReconnectConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultReconnectConfig returns the default reconnection configuration
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxAttempts:   3,
		InitialDelay:  10 * time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2.0,
	}
}

// Reconnector drives a bounded reconnection sequence as an explicit state
// machine (attempt count, next delay) rather than recursive self-calls, so it
// can be exercised with a fake sleep in tests.
type Reconnector struct {
	config  ReconnectConfig
	attempt int
	delay   time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewReconnector creates a new reconnector with the given configuration
func NewReconnector(config ReconnectConfig) *Reconnector {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 10 * time.Second
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	return &Reconnector{
		config: config,
		sleep:  sleepContext,
	}
}

// SetSleepFunc replaces the delay function. Intended for tests.
func (r *Reconnector) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	r.sleep = fn
}

// Attempts returns the number of connection attempts made in the current run.
func (r *Reconnector) Attempts() int {
	return r.attempt
}

// Run attempts to restore the gateway connection, waiting between attempts
// with multiplicative backoff. It returns nil as soon as one attempt succeeds
// and an error once the attempt budget is exhausted. Exhaustion halts trading
// for the current cycle only; the caller retries on the next cycle.
func (r *Reconnector) Run(ctx context.Context, gw Gateway) error {
	r.attempt = 0
	r.delay = r.config.InitialDelay

	gw.Disconnect()

	var lastErr error
	for r.attempt < r.config.MaxAttempts {
		r.attempt++

		if err := r.sleep(ctx, r.delay); err != nil {
			return err
		}

		if err := gw.Connect(ctx); err != nil {
			lastErr = err
			r.delay = r.nextDelay()
			continue
		}
		return nil
	}

	return fmt.Errorf("reconnect failed after %d attempts: %w", r.config.MaxAttempts, lastErr)
}

func (r *Reconnector) nextDelay() time.Duration {
	next := time.Duration(float64(r.delay) * r.config.BackoffFactor)
	if r.config.MaxDelay > 0 && next > r.config.MaxDelay {
		next = r.config.MaxDelay
	}
	return next
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
