package signal

import (
	"context"
	"fmt"

	"fx-scalper-bot/internal/broker"
)

// Signal is the normalized output every provider produces: a direction plus
// protective price levels. TakeProfitPrice may be zero, in which case the
// consumer derives it from the stop distance.
type Signal struct {
	Symbol          string
	Direction       broker.Direction
	StopPrice       float64
	TakeProfitPrice float64
}

// Provider is the capability interface for signal sources. A nil signal with
// a nil error means "no opinion on this symbol right now".
type Provider interface {
	Evaluate(ctx context.Context, symbol string) (*Signal, error)
}

// SentimentSource scores a symbol in [-1, 1]; positive favors longs.
type SentimentSource interface {
	Score(ctx context.Context, symbol string) (float64, error)
}

// Validate checks the signal invariant against the intended entry price: the
// stop must sit on the losing side, and the take profit (when set) on the
// winning side. A violation is an upstream provider bug and must be caught
// before sizing.
func Validate(sig *Signal, entryPrice float64) error {
	if sig == nil {
		return fmt.Errorf("nil signal")
	}
	if sig.StopPrice <= 0 {
		return fmt.Errorf("%s: signal has no stop price", sig.Symbol)
	}

	if sig.Direction == broker.DirectionBuy {
		if sig.StopPrice >= entryPrice {
			return fmt.Errorf("%s BUY: stop %.5f not below entry %.5f", sig.Symbol, sig.StopPrice, entryPrice)
		}
		if sig.TakeProfitPrice != 0 && sig.TakeProfitPrice <= entryPrice {
			return fmt.Errorf("%s BUY: take profit %.5f not above entry %.5f", sig.Symbol, sig.TakeProfitPrice, entryPrice)
		}
		return nil
	}

	if sig.StopPrice <= entryPrice {
		return fmt.Errorf("%s SELL: stop %.5f not above entry %.5f", sig.Symbol, sig.StopPrice, entryPrice)
	}
	if sig.TakeProfitPrice != 0 && sig.TakeProfitPrice >= entryPrice {
		return fmt.Errorf("%s SELL: take profit %.5f not below entry %.5f", sig.Symbol, sig.TakeProfitPrice, entryPrice)
	}
	return nil
}

// DeriveTakeProfit fills in a missing take profit from the stop distance,
// scaled by the configured reward-to-risk ratio (tpMult / slMult). Signals
// that already carry a take profit are returned unchanged.
func DeriveTakeProfit(sig *Signal, entryPrice, tpMult, slMult float64) *Signal {
	if sig == nil || sig.TakeProfitPrice != 0 || slMult <= 0 {
		return sig
	}

	stopDistance := (entryPrice - sig.StopPrice) * sig.Direction.Sign()
	if stopDistance <= 0 {
		return sig
	}

	derived := *sig
	derived.TakeProfitPrice = entryPrice + stopDistance*(tpMult/slMult)*sig.Direction.Sign()
	return &derived
}
