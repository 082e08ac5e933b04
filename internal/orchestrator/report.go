package orchestrator

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// OpenedTrade records a position opened during a cycle.
type OpenedTrade struct {
	Ticket     string
	Symbol     string
	Direction  string
	Volume     float64
	Entry      float64
	Stop       float64
	TakeProfit float64
}

// SkippedSymbol records a symbol that was evaluated but not traded, with the
// reason the pipeline refused it.
type SkippedSymbol struct {
	Symbol string
	Reason string
}

// CycleReport summarizes one orchestration cycle.
type CycleReport struct {
	StartedAt     time.Time
	Duration      time.Duration
	Opened        []OpenedTrade
	Skipped       []SkippedSymbol
	Errors        int
	OpenPositions int
	Equity        float64
	Drawdown      float64
	Reconnected   bool
	Aborted       bool // Cycle cut short by connection loss or stop request
}

// Render formats the report as a console table.
func (r *CycleReport) Render() string {
	t := table.NewWriter()
	t.SetTitle("CYCLE REPORT")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"⏰ Started", r.StartedAt.Format("15:04:05")},
		{"⏱ Duration", r.Duration.Round(time.Millisecond).String()},
		{"💰 Equity", fmt.Sprintf("%.2f", r.Equity)},
		{"📉 Drawdown", fmt.Sprintf("%.2f%%", r.Drawdown)},
		{"📊 Open positions", r.OpenPositions},
	})

	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"✅ Opened", len(r.Opened)},
		{"⏭ Skipped", len(r.Skipped)},
		{"🚨 Errors", r.Errors},
	})

	if len(r.Opened) > 0 {
		t.AppendSeparator()
		for _, o := range r.Opened {
			t.AppendRow(table.Row{
				fmt.Sprintf("➕ %s %s", o.Direction, o.Symbol),
				fmt.Sprintf("%.2f @ %.5f SL %.5f TP %.5f", o.Volume, o.Entry, o.Stop, o.TakeProfit),
			})
		}
	}

	if len(r.Skipped) > 0 {
		t.AppendSeparator()
		for _, s := range r.Skipped {
			t.AppendRow(table.Row{fmt.Sprintf("⏭ %s", s.Symbol), s.Reason})
		}
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 48, Align: text.AlignLeft},
	})

	return t.Render()
}

func (r *CycleReport) skip(symbol, reason string) {
	r.Skipped = append(r.Skipped, SkippedSymbol{Symbol: symbol, Reason: reason})
}
