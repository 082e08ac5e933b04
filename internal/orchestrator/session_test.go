package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fx-scalper-bot/internal/broker"
)

func TestInTradingSession(t *testing.T) {
	sessions := DefaultSessions()

	at := func(hour int) time.Time {
		return time.Date(2026, 3, 10, hour, 30, 0, 0, time.UTC)
	}

	assert.True(t, inTradingSession(sessions, at(2)), "asian session")
	assert.True(t, inTradingSession(sessions, at(8)), "asian/european overlap")
	assert.True(t, inTradingSession(sessions, at(15)), "european/american overlap")
	assert.True(t, inTradingSession(sessions, at(21)), "american session")

	assert.False(t, inTradingSession(sessions, at(0)), "before asian open")
	assert.False(t, inTradingSession(sessions, at(23)), "after american close")
}

func TestInTradingSession_EmptyListAlwaysAllows(t *testing.T) {
	assert.True(t, inTradingSession(nil, time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)))
}

func TestInTradingSession_ConvertsToUTC(t *testing.T) {
	sessions := []SessionWindow{{Name: "european", StartHour: 7, EndHour: 16}}

	// 09:00 UTC+5 is 04:00 UTC, outside the window.
	loc := time.FixedZone("UTC+5", 5*3600)
	assert.False(t, inTradingSession(sessions, time.Date(2026, 3, 10, 9, 0, 0, 0, loc)))

	// 13:00 UTC+5 is 08:00 UTC, inside.
	assert.True(t, inTradingSession(sessions, time.Date(2026, 3, 10, 13, 0, 0, 0, loc)))
}

func TestSpreadPoints(t *testing.T) {
	meta := &broker.InstrumentMeta{Symbol: "EURUSD", Point: 0.00001}
	q := &broker.Quote{Bid: 1.09990, Ask: 1.10000}

	assert.InDelta(t, 10.0, spreadPoints(q, meta), 1e-6)
	assert.Zero(t, spreadPoints(q, nil))
	assert.Zero(t, spreadPoints(q, &broker.InstrumentMeta{}))
}
