package indicators

import (
	"errors"
	"math"

	"fx-scalper-bot/pkg/types"
)

// ATR represents the Average True Range technical indicator.
// The engine uses it as the volatility unit for stop distances and
// breakeven/trailing activation thresholds.
type ATR struct {
	period      int
	ema         *EMA // Wilder-style smoothing of the true range
	lastClose   float64
	initialized bool
}

// NewATR creates a new ATR indicator
func NewATR(period int) *ATR {
	return &ATR{
		period: period,
		ema:    NewEMA(period),
	}
}

// Calculate calculates the ATR value from the given candles
func (a *ATR) Calculate(data []types.OHLCV) (float64, error) {
	if len(data) < a.period {
		return 0, errors.New("insufficient data points for ATR calculation")
	}

	if !a.initialized {
		return a.initialCalculation(data)
	}

	return a.incrementalCalculation(data)
}

// initialCalculation seeds the smoothing EMA from the full data window
func (a *ATR) initialCalculation(data []types.OHLCV) (float64, error) {
	for i := 0; i < len(data); i++ {
		candle := data[i]

		var trueRange float64
		if i > 0 {
			trueRange = a.trueRange(candle, a.lastClose)
		} else {
			trueRange = candle.High - candle.Low // First candle
		}

		a.ema.Update(trueRange)
		a.lastClose = candle.Close
	}

	a.initialized = true
	return a.ema.Value(), nil
}

// incrementalCalculation updates ATR with the latest candle only
func (a *ATR) incrementalCalculation(data []types.OHLCV) (float64, error) {
	if len(data) == 0 {
		return a.ema.Value(), nil
	}

	latest := data[len(data)-1]
	atrValue := a.ema.Update(a.trueRange(latest, a.lastClose))
	a.lastClose = latest.Close

	return atrValue, nil
}

// trueRange = max(High-Low, abs(High-PrevClose), abs(Low-PrevClose))
func (a *ATR) trueRange(current types.OHLCV, prevClose float64) float64 {
	hl := current.High - current.Low
	hc := math.Abs(current.High - prevClose)
	lc := math.Abs(current.Low - prevClose)

	return math.Max(hl, math.Max(hc, lc))
}

// Value returns the last calculated ATR value.
func (a *ATR) Value() float64 {
	return a.ema.Value()
}

// Period returns the period used for the calculation.
func (a *ATR) Period() int {
	return a.period
}

// Reset clears the ATR state for a fresh data window.
func (a *ATR) Reset() {
	a.ema.Reset()
	a.lastClose = 0
	a.initialized = false
}
