package orchestrator

import (
	"time"

	"fx-scalper-bot/internal/broker"
)

// SessionWindow is a trading-hours window in UTC. A window covers
// [StartHour, EndHour) on every weekday.
type SessionWindow struct {
	Name      string `json:"name" yaml:"name"`
	StartHour int    `json:"start_hour" yaml:"start_hour"`
	EndHour   int    `json:"end_hour" yaml:"end_hour"`
}

// DefaultSessions returns the standard FX session windows (UTC).
func DefaultSessions() []SessionWindow {
	return []SessionWindow{
		{Name: "asian", StartHour: 1, EndHour: 9},
		{Name: "european", StartHour: 7, EndHour: 16},
		{Name: "american", StartHour: 13, EndHour: 22},
	}
}

// FilterConfig controls the pre-signal market condition checks.
type FilterConfig struct {
	SessionsEnabled bool            `json:"sessions_enabled" yaml:"sessions_enabled"`
	Sessions        []SessionWindow `json:"sessions" yaml:"sessions"`
	MaxSpreadPoints float64         `json:"max_spread_points" yaml:"max_spread_points"` // 0 disables the spread guard
}

// inTradingSession reports whether now (UTC) falls inside any session window.
// An empty session list means trading is always allowed.
func inTradingSession(sessions []SessionWindow, now time.Time) bool {
	if len(sessions) == 0 {
		return true
	}
	hour := now.UTC().Hour()
	for _, s := range sessions {
		if hour >= s.StartHour && hour < s.EndHour {
			return true
		}
	}
	return false
}

// spreadPoints converts the quote's spread into instrument points.
func spreadPoints(q *broker.Quote, meta *broker.InstrumentMeta) float64 {
	if meta == nil || meta.Point <= 0 {
		return 0
	}
	return q.Spread() / meta.Point
}
