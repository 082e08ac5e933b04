package stats

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })
	return rec
}

func TestSQLiteRecorder_DailySummary(t *testing.T) {
	rec := openTestRecorder(t)

	day := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	trades := []struct {
		profit float64
		closed time.Time
	}{
		{25.0, day},
		{-10.0, day.Add(time.Hour)},
		{15.0, day.Add(2 * time.Hour)},
		{100.0, day.AddDate(0, 0, -1)}, // Previous day, excluded
	}
	for i, tr := range trades {
		require.NoError(t, rec.RecordTrade(&TradeEvent{
			Ticket:    "T" + string(rune('1'+i)),
			Symbol:    "EURUSD",
			Direction: "BUY",
			Volume:    0.10,
			Profit:    tr.profit,
			OpenedAt:  tr.closed.Add(-time.Hour),
			ClosedAt:  tr.closed,
		}))
	}

	s, err := rec.Summarize("daily", day)
	require.NoError(t, err)

	assert.Equal(t, 3, s.Trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 40.0, s.GrossProfit, 1e-9)
	assert.InDelta(t, 10.0, s.GrossLoss, 1e-9)
	assert.InDelta(t, 30.0, s.NetProfit, 1e-9)
	assert.InDelta(t, 66.67, s.WinRate, 0.01)
	assert.InDelta(t, 4.0, s.ProfitFactor, 1e-9)
}

func TestSQLiteRecorder_WeeklyBoundsStartMonday(t *testing.T) {
	rec := openTestRecorder(t)

	// 2026-03-11 is a Wednesday; its week runs Mon 09 to Mon 16.
	wednesday := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

	require.NoError(t, rec.RecordTrade(&TradeEvent{
		Ticket: "1", Symbol: "EURUSD", Direction: "BUY", Volume: 0.1,
		Profit: 5.0, ClosedAt: time.Date(2026, 3, 9, 1, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, rec.RecordTrade(&TradeEvent{
		Ticket: "2", Symbol: "EURUSD", Direction: "BUY", Volume: 0.1,
		Profit: 7.0, ClosedAt: time.Date(2026, 3, 8, 23, 0, 0, 0, time.UTC), // Sunday before
	}))

	s, err := rec.Summarize("weekly", wednesday)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Trades)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), s.From)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), s.To)
}

func TestSQLiteRecorder_EmptyPeriod(t *testing.T) {
	rec := openTestRecorder(t)

	s, err := rec.Summarize("monthly", time.Now())
	require.NoError(t, err)

	assert.Zero(t, s.Trades)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.ProfitFactor)
}

func TestSQLiteRecorder_UnknownPeriod(t *testing.T) {
	rec := openTestRecorder(t)

	_, err := rec.Summarize("hourly", time.Now())
	assert.Error(t, err)
}

func TestExportSummaries(t *testing.T) {
	rec := openTestRecorder(t)
	now := time.Now()

	require.NoError(t, rec.RecordTrade(&TradeEvent{
		Ticket: "1", Symbol: "EURUSD", Direction: "SELL", Volume: 0.2,
		Profit: 12.5, OpenedAt: now.Add(-time.Hour), ClosedAt: now,
	}))

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, ExportSummaries(rec, now, path))
	assert.FileExists(t, path)
}

func TestNoopRecorder(t *testing.T) {
	rec := NewNoopRecorder()

	require.NoError(t, rec.RecordTrade(&TradeEvent{Ticket: "1"}))

	s, err := rec.Summarize("daily", time.Now())
	require.NoError(t, err)
	assert.Zero(t, s.Trades)

	assert.NoError(t, rec.Close())
}
