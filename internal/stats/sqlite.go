package stats

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists realized trades to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so report reads don't block trade writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			ticket    TEXT NOT NULL,
			symbol    TEXT NOT NULL,
			direction TEXT NOT NULL,
			volume    REAL NOT NULL,
			profit    REAL NOT NULL,
			opened_at INTEGER NOT NULL,
			closed_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_closed ON trades(closed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordTrade appends one realized trade.
func (r *SQLiteRecorder) RecordTrade(evt *TradeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO trades
		(ticket, symbol, direction, volume, profit, opened_at, closed_at)
		VALUES (?,?,?,?,?,?,?)`,
		evt.Ticket, evt.Symbol, evt.Direction, evt.Volume, evt.Profit,
		evt.OpenedAt.Unix(), evt.ClosedAt.Unix(),
	)
	return err
}

// Summarize aggregates the trades whose close time falls inside the period
// containing the reference time.
func (r *SQLiteRecorder) Summarize(period string, at time.Time) (*Summary, error) {
	from, to, err := periodBounds(period, at)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(
		`SELECT profit FROM trades WHERE closed_at >= ? AND closed_at < ?`,
		from.Unix(), to.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var profits []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan profit: %w", err)
		}
		profits = append(profits, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return buildSummary(period, from, to, profits), nil
}

// Close releases the database handle.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

// periodBounds returns the half-open window [from, to) containing at.
func periodBounds(period string, at time.Time) (time.Time, time.Time, error) {
	year, month, day := at.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, at.Location())

	switch period {
	case "daily":
		return midnight, midnight.AddDate(0, 0, 1), nil
	case "weekly":
		// Weeks start Monday.
		offset := (int(midnight.Weekday()) + 6) % 7
		start := midnight.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7), nil
	case "monthly":
		start := time.Date(year, month, 1, 0, 0, 0, 0, at.Location())
		return start, start.AddDate(0, 1, 0), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unknown period %q", period)
}

func buildSummary(period string, from, to time.Time, profits []float64) *Summary {
	s := &Summary{Period: period, From: from, To: to}
	for _, p := range profits {
		s.Trades++
		s.NetProfit += p
		if p >= 0 {
			s.Wins++
			s.GrossProfit += p
		} else {
			s.Losses++
			s.GrossLoss += -p
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	return s
}
