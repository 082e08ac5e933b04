package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-scalper-bot/pkg/types"
)

type klineGateway struct {
	*fakeGateway
	klines     []types.OHLCV
	klineCalls int
}

func (g *klineGateway) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	g.klineCalls++
	return g.klines, nil
}

func flatCandles(n int, rangeSize float64) []types.OHLCV {
	out := make([]types.OHLCV, n)
	ts := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = types.OHLCV{
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
			Open:      1.1000,
			High:      1.1000 + rangeSize,
			Low:       1.1000,
			Close:     1.1000 + rangeSize/2,
			Volume:    100,
		}
	}
	return out
}

func TestATRCache_ComputesFromKlines(t *testing.T) {
	gw := &klineGateway{fakeGateway: newFakeGateway(), klines: flatCandles(12, 0.0010)}
	cache := NewATRCache(gw, "1", 3, time.Minute)

	value, err := cache.ATR(context.Background(), "EURUSD")
	require.NoError(t, err)

	// Constant true range collapses Wilder smoothing to the range itself.
	assert.InDelta(t, 0.0010, value, 1e-6)
}

func TestATRCache_ServesCachedValueWithinTTL(t *testing.T) {
	gw := &klineGateway{fakeGateway: newFakeGateway(), klines: flatCandles(12, 0.0010)}
	cache := NewATRCache(gw, "1", 3, time.Minute)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	_, err := cache.ATR(context.Background(), "EURUSD")
	require.NoError(t, err)
	_, err = cache.ATR(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.klineCalls)

	now = now.Add(2 * time.Minute)
	_, err = cache.ATR(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 2, gw.klineCalls)
}

func TestATRCache_InvalidateForcesRefetch(t *testing.T) {
	gw := &klineGateway{fakeGateway: newFakeGateway(), klines: flatCandles(12, 0.0010)}
	cache := NewATRCache(gw, "1", 3, time.Hour)

	_, err := cache.ATR(context.Background(), "EURUSD")
	require.NoError(t, err)

	cache.Invalidate("EURUSD")

	_, err = cache.ATR(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 2, gw.klineCalls)
}

func TestATRCache_PropagatesFetchError(t *testing.T) {
	gw := newFakeGateway() // GetKlines always fails
	cache := NewATRCache(gw, "1", 3, time.Minute)

	_, err := cache.ATR(context.Background(), "EURUSD")
	require.Error(t, err)
}
