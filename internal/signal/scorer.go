package signal

import (
	"context"
	"fmt"
	"math"

	"fx-scalper-bot/internal/broker"
	"fx-scalper-bot/internal/indicators"
	"fx-scalper-bot/internal/logger"
)

// ScorerConfig holds the indicator periods and decision thresholds for the
// built-in scoring provider.
type ScorerConfig struct {
	Interval string // Kline interval
	Lookback int    // Candles fetched per evaluation

	EMAFast int
	EMASlow int
	EMALong int

	RSIPeriod     int
	OversoldMin   float64 // RSI band that counts as a recovering oversold
	OversoldMax   float64
	OverboughtMin float64 // RSI band that counts as a fading overbought
	OverboughtMax float64

	BBPeriod int
	BBStd    float64

	ATRPeriod    int
	SLMultiplier float64 // Stop distance in ATR multiples

	MinStrength float64 // Minimum score percentage to emit a signal
}

// DefaultScorerConfig returns the standard scalping parameters.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Interval:      "5",
		Lookback:      100,
		EMAFast:       8,
		EMASlow:       14,
		EMALong:       50,
		RSIPeriod:     14,
		OversoldMin:   20,
		OversoldMax:   40,
		OverboughtMin: 60,
		OverboughtMax: 80,
		BBPeriod:      20,
		BBStd:         2.0,
		ATRPeriod:     14,
		SLMultiplier:  1.0,
		MinStrength:   50,
	}
}

// Scorer is a confluence-scoring signal provider. Each evaluation scores five
// independent conditions per side (EMA alignment, price vs EMAs, RSI band,
// Bollinger breach, last-candle momentum) and emits a signal only when one
// side clears the strength threshold and beats the other.
type Scorer struct {
	gateway broker.Gateway
	log     *logger.Logger
	config  ScorerConfig
}

// NewScorer creates the scoring provider.
func NewScorer(gateway broker.Gateway, log *logger.Logger, config ScorerConfig) *Scorer {
	if config.Lookback == 0 {
		config = DefaultScorerConfig()
	}
	return &Scorer{gateway: gateway, log: log, config: config}
}

const scorerMaxScore = 5

// Evaluate scores the symbol and returns a signal with the stop attached, or
// nil when neither side is strong enough.
func (s *Scorer) Evaluate(ctx context.Context, symbol string) (*Signal, error) {
	klines, err := s.gateway.GetKlines(ctx, symbol, s.config.Interval, s.config.Lookback)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}
	if len(klines) < s.config.BBPeriod+1 || len(klines) < s.config.RSIPeriod+2 {
		return nil, nil
	}

	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}
	lastClose := closes[len(closes)-1]

	emaFast := emaOf(closes, s.config.EMAFast)
	emaSlow := emaOf(closes, s.config.EMASlow)
	emaLong := emaOf(closes, s.config.EMALong)

	var buyScore, sellScore int

	// EMA alignment
	if emaFast > emaSlow && emaSlow > emaLong {
		buyScore++
	} else if emaFast < emaSlow && emaSlow < emaLong {
		sellScore++
	}

	// Price vs EMAs
	if lastClose > emaFast && lastClose > emaSlow {
		buyScore++
	} else if lastClose < emaFast && lastClose < emaSlow {
		sellScore++
	}

	// RSI band with direction of travel
	rsi := indicators.NewRSI(s.config.RSIPeriod)
	rsiNow, errNow := rsi.Calculate(closes)
	rsiPrev, errPrev := rsi.Calculate(closes[:len(closes)-1])
	if errNow == nil && errPrev == nil {
		if rsiNow >= s.config.OversoldMin && rsiNow <= s.config.OversoldMax && rsiNow > rsiPrev {
			buyScore++
		} else if rsiNow >= s.config.OverboughtMin && rsiNow <= s.config.OverboughtMax && rsiNow < rsiPrev {
			sellScore++
		}
	}

	// Bollinger band breach
	mid, dev := meanStdDev(closes[len(closes)-s.config.BBPeriod:])
	if lastClose < mid-s.config.BBStd*dev {
		buyScore++
	} else if lastClose > mid+s.config.BBStd*dev {
		sellScore++
	}

	// Last-candle momentum
	last := klines[len(klines)-1]
	if last.Close > last.Open {
		buyScore++
	} else if last.Close < last.Open {
		sellScore++
	}

	buyStrength := float64(buyScore) / scorerMaxScore * 100
	sellStrength := float64(sellScore) / scorerMaxScore * 100
	s.log.LogDebugOnly("%s signal scores: buy %d/%d (%.0f%%) sell %d/%d (%.0f%%)",
		symbol, buyScore, scorerMaxScore, buyStrength, sellScore, scorerMaxScore, sellStrength)

	var direction broker.Direction
	switch {
	case buyStrength >= s.config.MinStrength && buyStrength > sellStrength:
		direction = broker.DirectionBuy
	case sellStrength >= s.config.MinStrength && sellStrength > buyStrength:
		direction = broker.DirectionSell
	default:
		return nil, nil
	}

	atr := indicators.NewATR(s.config.ATRPeriod)
	atrValue, err := atr.Calculate(klines)
	if err != nil {
		return nil, fmt.Errorf("calculate ATR: %w", err)
	}

	quote, err := s.gateway.GetQuote(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}

	stop := quote.Bid - atrValue*s.config.SLMultiplier
	if direction == broker.DirectionSell {
		stop = quote.Ask + atrValue*s.config.SLMultiplier
	}

	return &Signal{
		Symbol:    symbol,
		Direction: direction,
		StopPrice: stop,
	}, nil
}

func emaOf(values []float64, period int) float64 {
	ema := indicators.NewEMA(period)
	for _, v := range values {
		ema.Update(v)
	}
	return ema.Value()
}

func meanStdDev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	return mean, math.Sqrt(variance)
}
