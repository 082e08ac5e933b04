package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-scalper-bot/internal/broker"
)

func eurusdMeta() *broker.InstrumentMeta {
	return &broker.InstrumentMeta{
		Symbol:       "EURUSD",
		ContractSize: 100000,
		Point:        0.00001,
		VolumeMin:    0.01,
		VolumeMax:    100,
		VolumeStep:   0.01,
	}
}

func TestCalculatePositionSize_StandardPair(t *testing.T) {
	// Equity 10,000 at 1% risk → risk amount 100. Stop of 50 pips at
	// pip value 10 ($/pip per lot) → 100 / 500 = 0.20 lots.
	meta := eurusdMeta()
	stopDistance := 0.0050 // 50 pips

	volume, err := CalculatePositionSize(meta, 10000, 1.0, stopDistance, 1.1000)
	require.NoError(t, err)

	assert.InDelta(t, 0.20, volume, 1e-9)
}

func TestCalculatePositionSize_JPYQuoteConversion(t *testing.T) {
	meta := &broker.InstrumentMeta{
		Symbol:       "USDJPY",
		ContractSize: 100000,
		Point:        0.001,
		VolumeMin:    0.01,
		VolumeMax:    100,
		VolumeStep:   0.01,
	}

	// pip = 0.01, raw pip value 1000 JPY, converted at 150.00 → ~6.67 USD.
	volume, err := CalculatePositionSize(meta, 10000, 1.0, 0.50, 150.00)
	require.NoError(t, err)

	// 100 / (50 * 6.667) ≈ 0.30
	assert.InDelta(t, 0.30, volume, 0.01)
}

func TestCalculatePositionSize_MonotonicInStopDistance(t *testing.T) {
	meta := eurusdMeta()

	prev := 1e18
	for _, pips := range []float64{10, 20, 40, 80, 160, 320} {
		volume, err := CalculatePositionSize(meta, 10000, 1.0, pips*0.0001, 1.1000)
		require.NoError(t, err)
		assert.LessOrEqual(t, volume, prev, "volume must not increase with stop distance")
		prev = volume
	}
}

func TestCalculatePositionSize_RoundsToStepAndClamps(t *testing.T) {
	meta := eurusdMeta()

	// Huge stop forces the raw volume below the minimum.
	volume, err := CalculatePositionSize(meta, 1000, 0.1, 5.0, 1.1000)
	require.NoError(t, err)
	assert.Equal(t, meta.VolumeMin, volume)

	// Tiny stop forces the raw volume above the maximum.
	volume, err = CalculatePositionSize(meta, 1e9, 2.0, 0.0001, 1.1000)
	require.NoError(t, err)
	assert.Equal(t, meta.VolumeMax, volume)
}

func TestCalculatePositionSize_Errors(t *testing.T) {
	meta := eurusdMeta()

	tests := []struct {
		name         string
		meta         *broker.InstrumentMeta
		equity       float64
		riskPercent  float64
		stopDistance float64
	}{
		{"nil metadata", nil, 10000, 1.0, 0.0050},
		{"zero stop distance", meta, 10000, 1.0, 0},
		{"negative stop distance", meta, 10000, 1.0, -0.001},
		{"zero equity", meta, 0, 1.0, 0.0050},
		{"negative equity", meta, -500, 1.0, 0.0050},
		{"zero risk percent", meta, 10000, 0, 0.0050},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculatePositionSize(tt.meta, tt.equity, tt.riskPercent, tt.stopDistance, 1.1000)
			require.Error(t, err)

			var sizingErr *SizingError
			assert.ErrorAs(t, err, &sizingErr)
		})
	}
}

func TestNormalizeVolume(t *testing.T) {
	meta := eurusdMeta()

	assert.InDelta(t, 0.20, NormalizeVolume(meta, 0.2049), 1e-9)
	assert.InDelta(t, 0.21, NormalizeVolume(meta, 0.2051), 1e-9)
	assert.Equal(t, 0.01, NormalizeVolume(meta, 0.001))
	assert.Equal(t, 100.0, NormalizeVolume(meta, 5000))
}
