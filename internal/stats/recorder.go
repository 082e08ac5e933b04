package stats

import "time"

// TradeEvent is one realized trade outcome, appended when the supervisor
// settles a closed position.
type TradeEvent struct {
	Ticket    string
	Symbol    string
	Direction string
	Volume    float64
	Profit    float64
	OpenedAt  time.Time
	ClosedAt  time.Time
}

// Summary aggregates realized trades over a window.
type Summary struct {
	Period       string // "daily", "weekly", "monthly"
	From         time.Time
	To           time.Time
	Trades       int
	Wins         int
	Losses       int
	GrossProfit  float64
	GrossLoss    float64 // Positive magnitude
	NetProfit    float64
	WinRate      float64 // Percent
	ProfitFactor float64 // GrossProfit / GrossLoss; 0 when no losses
}

// Recorder persists trade history for analysis and reporting.
type Recorder interface {
	RecordTrade(evt *TradeEvent) error
	Summarize(period string, at time.Time) (*Summary, error)
	Close() error
}
