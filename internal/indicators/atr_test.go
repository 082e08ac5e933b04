package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-scalper-bot/pkg/types"
)

func makeCandles(n int, rangeSize float64) []types.OHLCV {
	data := make([]types.OHLCV, n)
	for i := 0; i < n; i++ {
		close := 1.1000
		data[i] = types.OHLCV{
			Open:      close,
			High:      close + rangeSize/2,
			Low:       close - rangeSize/2,
			Close:     close,
			Volume:    1000,
			Timestamp: time.Now().Add(time.Duration(i) * time.Minute),
		}
	}
	return data
}

func TestATR_InsufficientData(t *testing.T) {
	atr := NewATR(14)

	_, err := atr.Calculate(makeCandles(5, 0.0010))
	assert.Error(t, err)
}

func TestATR_ConstantRange(t *testing.T) {
	atr := NewATR(14)

	// Every candle has the same range and the same close, so the true range
	// is constant and the smoothed ATR must converge to it.
	value, err := atr.Calculate(makeCandles(50, 0.0010))
	require.NoError(t, err)

	assert.InDelta(t, 0.0010, value, 0.0001)
}

func TestATR_Incremental(t *testing.T) {
	atr := NewATR(14)

	data := makeCandles(30, 0.0010)
	_, err := atr.Calculate(data)
	require.NoError(t, err)

	// Feeding the same candle again keeps the value stable.
	before := atr.Value()
	value, err := atr.Calculate(data)
	require.NoError(t, err)
	assert.InDelta(t, before, value, 0.0002)
}

func TestATR_Reset(t *testing.T) {
	atr := NewATR(14)

	_, err := atr.Calculate(makeCandles(30, 0.0010))
	require.NoError(t, err)
	require.Greater(t, atr.Value(), 0.0)

	atr.Reset()
	assert.Equal(t, 0.0, atr.Value())
}
