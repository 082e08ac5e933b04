package risk

import (
	"sync"
	"time"
)

// DailyLedger tracks realized results and peak equity for the current
// calendar day. It is an explicitly owned state object: the orchestrator
// rolls it at the top of each cycle, the risk manager reads it for admission
// checks, and trade open/close events mutate it.
type DailyLedger struct {
	mu         sync.RWMutex
	day        time.Time // Midnight of the day the ledger covers
	trades     int
	profit     float64
	loss       float64
	peakEquity float64
}

// LedgerSnapshot is a consistent read of the ledger state.
type LedgerSnapshot struct {
	Day        time.Time
	Trades     int
	Profit     float64
	Loss       float64
	PeakEquity float64
}

// NewDailyLedger creates a ledger for the day containing now, seeded with the
// current account equity as the initial peak.
func NewDailyLedger(now time.Time, equity float64) *DailyLedger {
	return &DailyLedger{
		day:        midnight(now),
		peakEquity: equity,
	}
}

// Roll resets the ledger when the calendar day has advanced past the day the
// ledger covers. Returns true when a reset happened.
func (l *DailyLedger) Roll(now time.Time, equity float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := midnight(now)
	if !today.After(l.day) {
		return false
	}

	l.day = today
	l.trades = 0
	l.profit = 0
	l.loss = 0
	l.peakEquity = equity
	return true
}

// RecordOpen increments the daily trade count.
func (l *DailyLedger) RecordOpen() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trades++
}

// RecordClose books a realized result into the daily profit or loss bucket.
func (l *DailyLedger) RecordClose(profit float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if profit > 0 {
		l.profit += profit
	} else {
		l.loss += -profit
	}
}

// ObserveEquity updates the peak equity watermark. Peak equity is
// monotonically non-decreasing within a day.
func (l *DailyLedger) ObserveEquity(equity float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if equity > l.peakEquity {
		l.peakEquity = equity
	}
}

// Drawdown returns the current drawdown from peak equity in percent,
// clamped at 0.
func (l *DailyLedger) Drawdown(equity float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.peakEquity <= 0 {
		return 0
	}
	dd := (l.peakEquity - equity) / l.peakEquity * 100
	if dd < 0 {
		return 0
	}
	return dd
}

// Snapshot returns a consistent copy of the ledger state.
func (l *DailyLedger) Snapshot() LedgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return LedgerSnapshot{
		Day:        l.day,
		Trades:     l.trades,
		Profit:     l.profit,
		Loss:       l.loss,
		PeakEquity: l.peakEquity,
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
