package bybit

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// retryConfig bounds the retry loop around retryable API failures.
type retryConfig struct {
	maxRetries    int
	initialDelay  time.Duration
	maxDelay      time.Duration
	backoffFactor float64
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxRetries:    3,
		initialDelay:  time.Second,
		maxDelay:      30 * time.Second,
		backoffFactor: 2.0,
	}
}

// withRetry runs fn, retrying rate-limit and transport failures with jittered
// exponential backoff. Broker-side refusals return immediately.
func withRetry(ctx context.Context, config retryConfig, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= config.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == config.maxRetries || !isTransportErr(err) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay(attempt, config)):
		}
	}
	return lastErr
}

func retryDelay(attempt int, config retryConfig) time.Duration {
	delay := time.Duration(float64(config.initialDelay) * math.Pow(config.backoffFactor, float64(attempt)))
	if delay > config.maxDelay {
		delay = config.maxDelay
	}
	// Up to 10% jitter either way to avoid thundering retries.
	jitter := time.Duration(float64(delay) * 0.1 * (2*rand.Float64() - 1))
	return delay + jitter
}
