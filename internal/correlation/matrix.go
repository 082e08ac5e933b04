package correlation

import (
	"math"

	"fx-scalper-bot/pkg/types"
)

// Matrix holds pairwise Pearson correlation coefficients between symbols,
// computed over aligned close-to-close returns.
type Matrix struct {
	coeffs map[string]map[string]float64
}

// NewMatrix computes the correlation matrix from per-symbol candle history.
// Each pair is correlated over the overlap of their return series; pairs
// with fewer than three overlapping returns get no entry.
func NewMatrix(history map[string][]types.OHLCV) *Matrix {
	returns := make(map[string][]float64, len(history))
	for symbol, candles := range history {
		returns[symbol] = closeReturns(candles)
	}

	m := &Matrix{coeffs: make(map[string]map[string]float64)}
	symbols := make([]string, 0, len(returns))
	for s := range returns {
		symbols = append(symbols, s)
	}

	for i, a := range symbols {
		for _, b := range symbols[i+1:] {
			r, ok := pearson(returns[a], returns[b])
			if !ok {
				continue
			}
			m.set(a, b, r)
			m.set(b, a, r)
		}
	}
	return m
}

func (m *Matrix) set(a, b string, r float64) {
	if m.coeffs[a] == nil {
		m.coeffs[a] = make(map[string]float64)
	}
	m.coeffs[a][b] = r
}

// Coefficient returns the correlation between two symbols. The second return
// is false when no coefficient could be computed for the pair.
func (m *Matrix) Coefficient(a, b string) (float64, bool) {
	if a == b {
		return 1.0, true
	}
	r, ok := m.coeffs[a][b]
	return r, ok
}

// closeReturns converts candles to simple close-to-close returns.
func closeReturns(candles []types.OHLCV) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			continue
		}
		out = append(out, (candles[i].Close-prev)/prev)
	}
	return out
}

// pearson computes the Pearson correlation over the common prefix of two
// return series. Degenerate series (too short or zero variance) yield ok=false.
func pearson(x, y []float64) (float64, bool) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n < 3 {
		return 0, false
	}
	x, y = x[:n], y[:n]

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}
