package broker

import (
	"context"
	"time"

	"fx-scalper-bot/pkg/types"
)

// Gateway defines the interface to the broker terminal.
// This abstracts broker-specific implementations for the trading engine.
type Gateway interface {
	// Broker identification
	GetName() string
	IsDemo() bool

	// Account and instrument data
	GetAccountSnapshot(ctx context.Context) (*AccountSnapshot, error)
	GetInstrumentMeta(ctx context.Context, symbol string) (*InstrumentMeta, error)
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]types.OHLCV, error)

	// Trading operations
	SubmitMarketOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	ModifyStop(ctx context.Context, ticket string, symbol string, newStop float64) error
	ClosePosition(ctx context.Context, ticket string, symbol string) error

	// Position and history enumeration
	ListOpenPositions(ctx context.Context) ([]Position, error)
	ListClosedDeals(ctx context.Context, from, to time.Time) ([]Deal, error)

	// Connection management
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
}

// Direction represents the side of a trade.
type Direction int

const (
	DirectionBuy Direction = iota
	DirectionSell
)

// String returns the string representation of the direction
func (d Direction) String() string {
	if d == DirectionSell {
		return "SELL"
	}
	return "BUY"
}

// Sign returns +1 for BUY and -1 for SELL
func (d Direction) Sign() float64 {
	if d == DirectionSell {
		return -1
	}
	return 1
}

// AccountSnapshot holds account equity and balance read fresh at decision time.
// Never cache a snapshot across cycles for sizing decisions.
type AccountSnapshot struct {
	Equity  float64
	Balance float64
}

// InstrumentMeta holds the contract parameters needed for position sizing.
type InstrumentMeta struct {
	Symbol       string
	ContractSize float64 // Units of base currency per 1.0 lot
	Point        float64 // Smallest price increment
	VolumeMin    float64
	VolumeMax    float64
	VolumeStep   float64
}

// Quote holds the current bid/ask for a symbol.
type Quote struct {
	Bid       float64
	Ask       float64
	Timestamp time.Time
}

// Spread returns the current spread in price units.
func (q *Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// OrderRequest represents a market order with protective levels attached.
type OrderRequest struct {
	Symbol          string
	Direction       Direction
	Volume          float64
	StopPrice       float64
	TakeProfitPrice float64
	Tag             string // Identifies this engine's orders on a shared account
}

// OrderResult is the broker's confirmation of a filled market order.
type OrderResult struct {
	Ticket     string
	Symbol     string
	Direction  Direction
	Volume     float64
	EntryPrice float64
	FilledAt   time.Time
}

// Position is the broker's view of an open position.
type Position struct {
	Ticket          string
	Symbol          string
	Direction       Direction
	Volume          float64
	EntryPrice      float64
	StopPrice       float64 // 0 when no stop is set
	TakeProfitPrice float64
	UnrealizedPnL   float64
	OpenedAt        time.Time
}

// Deal is a realized (closed) trade from the broker's history.
type Deal struct {
	Ticket    string // Ticket of the position this deal closed
	Symbol    string
	Direction Direction
	Volume    float64
	Price     float64
	Profit    float64
	ClosedAt  time.Time
	Tag       string
}
