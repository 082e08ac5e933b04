package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fx-scalper-bot/internal/broker"
	"fx-scalper-bot/internal/indicators"
)

// ATRCache serves ATR values computed from recent klines, refreshing a
// symbol's value at most once per TTL. The supervisor and the sizing path
// both read ATR every cycle; the cache keeps that to one kline fetch per
// symbol per candle interval.
type ATRCache struct {
	gateway  broker.Gateway
	interval string
	period   int
	ttl      time.Duration

	mu      sync.Mutex
	entries map[string]atrEntry
	now     func() time.Time
}

type atrEntry struct {
	value     float64
	fetchedAt time.Time
}

// NewATRCache creates an ATR cache reading klines at the given interval.
func NewATRCache(gateway broker.Gateway, interval string, period int, ttl time.Duration) *ATRCache {
	if period <= 0 {
		period = 14
	}
	return &ATRCache{
		gateway:  gateway,
		interval: interval,
		period:   period,
		ttl:      ttl,
		entries:  make(map[string]atrEntry),
		now:      time.Now,
	}
}

// ATR returns the current ATR for the symbol, fetching fresh klines when the
// cached value has expired.
func (c *ATRCache) ATR(ctx context.Context, symbol string) (float64, error) {
	c.mu.Lock()
	entry, ok := c.entries[symbol]
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return entry.value, nil
	}
	c.mu.Unlock()

	// Three periods of history smooths the Wilder seed without dragging in
	// stale regime data.
	klines, err := c.gateway.GetKlines(ctx, symbol, c.interval, c.period*3)
	if err != nil {
		return 0, fmt.Errorf("fetch klines for %s: %w", symbol, err)
	}

	atr := indicators.NewATR(c.period)
	value, err := atr.Calculate(klines)
	if err != nil {
		return 0, fmt.Errorf("calculate ATR for %s: %w", symbol, err)
	}

	c.mu.Lock()
	c.entries[symbol] = atrEntry{value: value, fetchedAt: c.now()}
	c.mu.Unlock()

	return value, nil
}

// Invalidate drops the cached value for a symbol.
func (c *ATRCache) Invalidate(symbol string) {
	c.mu.Lock()
	delete(c.entries, symbol)
	c.mu.Unlock()
}
