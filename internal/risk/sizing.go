package risk

import (
	"fmt"
	"math"
	"strings"

	"fx-scalper-bot/internal/broker"
)

// SizingError marks sizing inputs the engine refuses to trade on. The caller
// must not submit an order when sizing fails.
type SizingError struct {
	Symbol string
	Reason string
}

func (e *SizingError) Error() string {
	return fmt.Sprintf("cannot size position for %s: %s", e.Symbol, e.Reason)
}

// CalculatePositionSize converts account equity, the per-trade risk percent
// and a stop distance (in price units) into a lot size bounded by the
// instrument's volume constraints.
//
// The stop distance is converted to pips (10 points) and priced via the
// instrument's contract size. Quote currencies that are not the account
// currency need price-based conversion; JPY-quoted pairs are the only
// special case in the supported symbol set.
func CalculatePositionSize(meta *broker.InstrumentMeta, equity, riskPercent, stopDistance, price float64) (float64, error) {
	if meta == nil || meta.Point <= 0 || meta.ContractSize <= 0 || meta.VolumeStep <= 0 {
		return 0, &SizingError{Symbol: symbolOf(meta), Reason: "incomplete instrument metadata"}
	}
	if equity <= 0 {
		return 0, &SizingError{Symbol: meta.Symbol, Reason: fmt.Sprintf("non-positive equity %.2f", equity)}
	}
	if stopDistance <= 0 {
		return 0, &SizingError{Symbol: meta.Symbol, Reason: fmt.Sprintf("non-positive stop distance %.5f", stopDistance)}
	}
	if riskPercent <= 0 {
		return 0, &SizingError{Symbol: meta.Symbol, Reason: fmt.Sprintf("non-positive risk percent %.2f", riskPercent)}
	}

	riskAmount := equity * riskPercent / 100

	pipSize := meta.Point * 10
	stopPips := stopDistance / pipSize

	pipValue := pipSize * meta.ContractSize
	if quoteNeedsPriceConversion(meta.Symbol) {
		if price <= 0 {
			return 0, &SizingError{Symbol: meta.Symbol, Reason: "price required for quote-currency conversion"}
		}
		pipValue /= price
	}

	var volume float64
	if stopPips > 0 && pipValue > 0 {
		volume = riskAmount / (stopPips * pipValue)
	} else {
		// Degenerate denominator: fall back to the smallest tradable size.
		volume = meta.VolumeMin
	}

	return NormalizeVolume(meta, volume), nil
}

// NormalizeVolume rounds a raw volume to the instrument's step and clamps it
// to the tradable range.
func NormalizeVolume(meta *broker.InstrumentMeta, volume float64) float64 {
	normalized := math.Round(volume/meta.VolumeStep) * meta.VolumeStep

	if normalized < meta.VolumeMin {
		normalized = meta.VolumeMin
	}
	if meta.VolumeMax > 0 && normalized > meta.VolumeMax {
		normalized = meta.VolumeMax
	}
	return normalized
}

// quoteNeedsPriceConversion reports whether the symbol's quote currency needs
// a price-based pip-value conversion into the account currency.
func quoteNeedsPriceConversion(symbol string) bool {
	return strings.HasSuffix(strings.ToUpper(symbol), "JPY")
}

func symbolOf(meta *broker.InstrumentMeta) string {
	if meta == nil {
		return "?"
	}
	return meta.Symbol
}
