package correlation

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"fx-scalper-bot/internal/broker"
	"fx-scalper-bot/internal/logger"
	"fx-scalper-bot/internal/position"
	"fx-scalper-bot/pkg/types"
)

// PositionSource exposes the currently tracked open positions. The gate only
// reads the snapshot; the supervisor remains the sole writer.
type PositionSource interface {
	Snapshot() []position.Tracked
}

// Config holds the gate policy constants.
type Config struct {
	MaxExposure     float64       // Cap on total correlated exposure in lots
	RefreshInterval time.Duration // Minimum time between matrix recomputations
	Lookback        int           // Candles per symbol for the return series
	Interval        string        // Kline interval used for history
}

// Gate rejects new trades whose combined exposure with existing correlated
// positions exceeds the configured cap. The matrix is refreshed lazily when
// a check finds the refresh interval elapsed; it is never recomputed per
// cycle. A missing or failed matrix admits everything: this gate is a
// secondary control on top of the risk manager's admission checks.
type Gate struct {
	gateway   broker.Gateway
	positions PositionSource
	log       *logger.Logger
	config    Config
	symbols   []string

	mu          sync.Mutex
	matrix      *Matrix
	lastRefresh time.Time

	now func() time.Time
}

// NewGate creates a correlation gate over the given tradable symbols.
func NewGate(gateway broker.Gateway, positions PositionSource, log *logger.Logger, config Config, symbols []string) *Gate {
	return &Gate{
		gateway:   gateway,
		positions: positions,
		log:       log,
		config:    config,
		symbols:   symbols,
		now:       time.Now,
	}
}

// CheckCorrelationRisk reports whether a new trade in the given symbol and
// direction is admissible, along with the correlated exposure it would join.
func (g *Gate) CheckCorrelationRisk(ctx context.Context, symbol string, direction broker.Direction) (bool, float64) {
	matrix := g.currentMatrix(ctx)
	if matrix == nil {
		// Fail open: no data means no basis for rejection.
		return true, 0
	}

	total := 0.0
	for _, p := range g.positions.Snapshot() {
		if p.Symbol == symbol {
			continue
		}
		coeff, ok := matrix.Coefficient(symbol, p.Symbol)
		if !ok {
			continue
		}
		effective := coeff * p.Direction.Sign() * direction.Sign()
		total += math.Abs(effective) * p.Volume
	}

	if total > g.config.MaxExposure {
		g.log.LogSkip(symbol, fmt.Sprintf("correlated exposure %.2f exceeds cap %.2f", total, g.config.MaxExposure))
		return false, total
	}
	return true, total
}

// currentMatrix returns the matrix, recomputing it first when the refresh
// interval has elapsed. A failed refresh keeps the previous matrix.
func (g *Gate) currentMatrix(ctx context.Context) *Matrix {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.matrix != nil && g.now().Sub(g.lastRefresh) < g.config.RefreshInterval {
		return g.matrix
	}
	// Record the attempt regardless of outcome so a broken history feed does
	// not turn every check into a full refetch.
	g.lastRefresh = g.now()

	fresh, err := g.computeMatrix(ctx)
	if err != nil {
		g.log.LogWarning("Correlation", "matrix refresh failed: %v", err)
		return g.matrix
	}
	g.matrix = fresh
	return g.matrix
}

// computeMatrix pulls recent history for every tradable symbol and builds a
// fresh matrix. Symbols without history are left out and fail open per pair.
func (g *Gate) computeMatrix(ctx context.Context) (*Matrix, error) {
	history := make(map[string][]types.OHLCV, len(g.symbols))
	for _, symbol := range g.symbols {
		candles, err := g.gateway.GetKlines(ctx, symbol, g.config.Interval, g.config.Lookback)
		if err != nil {
			return nil, fmt.Errorf("history for %s: %w", symbol, err)
		}
		history[symbol] = candles
	}
	return NewMatrix(history), nil
}
