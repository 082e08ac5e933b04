package risk

// RejectReason identifies which admission check refused a new trade.
// Rejections are expected control-flow outcomes, not errors: the orchestrator
// reports them as skip reasons.
type RejectReason string

const (
	RejectNone         RejectReason = ""
	RejectDailyLoss    RejectReason = "daily loss limit reached"
	RejectMaxTrades    RejectReason = "maximum open trades reached"
	RejectSymbolTrades RejectReason = "maximum trades for symbol reached"
	RejectDrawdown     RejectReason = "maximum drawdown reached"
)

// Config holds the risk policy constants. The thresholds are externally
// supplied policy, not derived values.
type Config struct {
	RiskPercent        float64 // Percent of equity risked per trade
	MaxDailyLoss       float64 // Absolute daily realized-loss cap (account currency)
	MaxDrawdownPercent float64 // Drawdown-from-peak cap in percent
	MaxTotalTrades     int     // Engine-wide open position cap
	MaxTradesPerSymbol int     // Per-symbol open position cap
}

// PositionCounter is the read-only view of the supervisor's tracked set that
// the admission checks consult. The risk engine never mutates positions.
type PositionCounter interface {
	TotalOpen() int
	OpenForSymbol(symbol string) int
}

// Manager runs the trade admission checks against the daily ledger and the
// currently open positions.
type Manager struct {
	config    Config
	ledger    *DailyLedger
	positions PositionCounter
}

// NewManager creates a risk manager bound to the given ledger and position view
func NewManager(config Config, ledger *DailyLedger, positions PositionCounter) *Manager {
	return &Manager{
		config:    config,
		ledger:    ledger,
		positions: positions,
	}
}

// Ledger returns the daily ledger the manager reads.
func (m *Manager) Ledger() *DailyLedger {
	return m.ledger
}

// RiskPercent returns the per-trade risk percent from the policy config.
func (m *Manager) RiskPercent() float64 {
	return m.config.RiskPercent
}

// CanOpenTrade runs the admission checks in a fixed order so the first
// failing check always names the rejection. It is a pure function of ledger,
// position and config state.
//
// Order: daily loss cap, total open cap, per-symbol cap, drawdown cap.
func (m *Manager) CanOpenTrade(symbol string, equity float64) (bool, RejectReason) {
	snap := m.ledger.Snapshot()

	if m.config.MaxDailyLoss > 0 && snap.Loss >= m.config.MaxDailyLoss {
		return false, RejectDailyLoss
	}

	if m.config.MaxTotalTrades > 0 && m.positions.TotalOpen() >= m.config.MaxTotalTrades {
		return false, RejectMaxTrades
	}

	if m.config.MaxTradesPerSymbol > 0 && m.positions.OpenForSymbol(symbol) >= m.config.MaxTradesPerSymbol {
		return false, RejectSymbolTrades
	}

	if m.config.MaxDrawdownPercent > 0 && m.ledger.Drawdown(equity) >= m.config.MaxDrawdownPercent {
		return false, RejectDrawdown
	}

	return true, RejectNone
}
