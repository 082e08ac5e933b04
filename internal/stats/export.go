package stats

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportSummaries writes the daily, weekly and monthly aggregates for the
// reference time to an Excel workbook.
func ExportSummaries(rec Recorder, at time.Time, path string) error {
	fx := excelize.NewFile()
	defer fx.Close()

	sheet := "Performance"
	fx.SetSheetName("Sheet1", sheet)

	headStyle, _ := fx.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	headers := []string{"Period", "From", "To", "Trades", "Wins", "Losses", "Win Rate %", "Gross Profit", "Gross Loss", "Net Profit", "Profit Factor"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheet, cell, h)
		fx.SetCellStyle(sheet, cell, cell, headStyle)
	}

	row := 2
	for _, period := range []string{"daily", "weekly", "monthly"} {
		s, err := rec.Summarize(period, at)
		if err != nil {
			return fmt.Errorf("summarize %s: %w", period, err)
		}

		values := []interface{}{
			s.Period,
			s.From.Format("2006-01-02"),
			s.To.Format("2006-01-02"),
			s.Trades,
			s.Wins,
			s.Losses,
			s.WinRate,
			s.GrossProfit,
			s.GrossLoss,
			s.NetProfit,
			s.ProfitFactor,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			fx.SetCellValue(sheet, cell, v)
		}
		row++
	}

	return fx.SaveAs(path)
}
