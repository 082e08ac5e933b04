package position

import (
	"context"
	"sync"
	"time"

	"fx-scalper-bot/internal/broker"
	"fx-scalper-bot/internal/logger"
)

// Tracked is a position owned by the supervisor from fill confirmation until
// the broker reports it closed. The stop price only ever moves in the
// direction that reduces risk: toward entry for breakeven, further into
// profit for trailing.
type Tracked struct {
	Ticket          string
	Symbol          string
	Direction       broker.Direction
	Volume          float64
	EntryPrice      float64
	StopPrice       float64
	TakeProfitPrice float64
	OpenedAt        time.Time

	BreakevenApplied bool
	TrailingActive   bool
}

// ATRSource provides the current average true range for a symbol, used as
// the volatility unit for breakeven and trailing thresholds.
type ATRSource interface {
	ATR(ctx context.Context, symbol string) (float64, error)
}

// Config holds the lifecycle policy constants.
type Config struct {
	BreakevenActivation float64       // Profit in ATR units before the stop moves to entry
	TrailingActivation  float64       // Profit in ATR units before trailing starts
	TrailMultiplier     float64       // Trail distance in ATR units
	MaxAge              time.Duration // Maximum position age before force close
	CloseStale          bool          // Whether the age policy force-closes
}

// Supervisor advances every tracked position's stop through breakeven and
// trailing transitions each cycle, and retires positions the broker no
// longer reports open.
type Supervisor struct {
	gateway  broker.Gateway
	atr      ATRSource
	log      *logger.Logger
	config   Config
	submitMu *sync.Mutex // Shared with the orchestrator's order submission

	mu        sync.RWMutex
	positions map[string]*Tracked

	onClosed func(t Tracked, profit float64)

	now func() time.Time
}

// NewSupervisor creates a new position supervisor. submitMu is the global
// submission lock shared with the orchestrator: stop modifications and order
// submissions both mutate broker-side order state and must not interleave.
func NewSupervisor(gateway broker.Gateway, atr ATRSource, log *logger.Logger, config Config, submitMu *sync.Mutex) *Supervisor {
	return &Supervisor{
		gateway:   gateway,
		atr:       atr,
		log:       log,
		config:    config,
		submitMu:  submitMu,
		positions: make(map[string]*Tracked),
		now:       time.Now,
	}
}

// SetOnClosed registers the callback invoked with the realized profit when a
// position leaves the tracked set.
func (s *Supervisor) SetOnClosed(fn func(t Tracked, profit float64)) {
	s.onClosed = fn
}

// Register adds a confirmed fill to the tracked set.
func (s *Supervisor) Register(t Tracked) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := t
	s.positions[t.Ticket] = &copied

	s.log.LogTradeOpened(t.Ticket, t.Symbol, t.Direction.String(), t.Volume, t.EntryPrice, t.StopPrice, t.TakeProfitPrice)
}

// TotalOpen returns the number of tracked open positions.
func (s *Supervisor) TotalOpen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// OpenForSymbol returns the number of tracked open positions for a symbol.
func (s *Supervisor) OpenForSymbol(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, t := range s.positions {
		if t.Symbol == symbol {
			count++
		}
	}
	return count
}

// Snapshot returns a copy of the tracked set for read-only consumers
// (correlation gate, reporting). The supervisor remains the only writer.
func (s *Supervisor) Snapshot() []Tracked {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Tracked, 0, len(s.positions))
	for _, t := range s.positions {
		out = append(out, *t)
	}
	return out
}

// ManageAll runs one supervision pass over every tracked position. Broker
// failures degrade to "try again next cycle"; nothing here is fatal to the
// loop.
func (s *Supervisor) ManageAll(ctx context.Context) {
	open, err := s.gateway.ListOpenPositions(ctx)
	if err != nil {
		s.log.LogWarning("Supervisor", "could not list open positions: %v", err)
		return
	}

	openByTicket := make(map[string]broker.Position, len(open))
	for _, p := range open {
		openByTicket[p.Ticket] = p
	}

	for _, t := range s.Snapshot() {
		live, stillOpen := openByTicket[t.Ticket]
		if !stillOpen {
			s.settle(ctx, t)
			continue
		}
		s.supervise(ctx, t.Ticket, live)
	}
}

// supervise evaluates the breakeven and trailing transitions for one open
// position and issues at most one stop modification.
func (s *Supervisor) supervise(ctx context.Context, ticket string, live broker.Position) {
	s.mu.Lock()
	t, ok := s.positions[ticket]
	if !ok {
		s.mu.Unlock()
		return
	}
	// The broker's stop is authoritative; a modification may have been
	// applied out of band or rejected after we recorded it.
	t.StopPrice = live.StopPrice
	current := *t
	s.mu.Unlock()

	if s.config.CloseStale && s.config.MaxAge > 0 && s.now().Sub(current.OpenedAt) > s.config.MaxAge {
		s.forceClose(ctx, current)
		return
	}

	quote, err := s.gateway.GetQuote(ctx, current.Symbol)
	if err != nil {
		s.log.LogWarning("Supervisor", "no quote for %s: %v", current.Symbol, err)
		return
	}

	atr, err := s.atr.ATR(ctx, current.Symbol)
	if err != nil || atr <= 0 {
		s.log.LogWarning("Supervisor", "no ATR for %s: %v", current.Symbol, err)
		return
	}

	marketPrice := quote.Bid
	if current.Direction == broker.DirectionSell {
		marketPrice = quote.Ask
	}

	profitATR := (marketPrice - current.EntryPrice) * current.Direction.Sign() / atr

	candidate, reason := s.desiredStop(current, marketPrice, atr, profitATR)
	if reason == "" || !stopImproves(current.Direction, candidate, current.StopPrice) {
		return
	}

	s.submitMu.Lock()
	err = s.gateway.ModifyStop(ctx, current.Ticket, current.Symbol, candidate)
	s.submitMu.Unlock()

	if err != nil {
		// Keep the prior stop; the same candidate is recomputed next cycle.
		s.log.LogWarning("Supervisor", "stop modification rejected for #%s: %v", current.Ticket, err)
		return
	}

	s.mu.Lock()
	if t, ok := s.positions[ticket]; ok {
		oldStop := t.StopPrice
		t.StopPrice = candidate
		switch reason {
		case "breakeven":
			t.BreakevenApplied = true
		case "trailing":
			t.TrailingActive = true
		}
		s.log.LogStopModified(t.Ticket, t.Symbol, reason, oldStop, candidate)
	}
	s.mu.Unlock()
}

// desiredStop picks the single stop target for this cycle. Breakeven and
// trailing are evaluated independently; when both produce a candidate the
// tighter one wins.
func (s *Supervisor) desiredStop(t Tracked, marketPrice, atr, profitATR float64) (float64, string) {
	candidate := 0.0
	reason := ""

	if profitATR >= s.config.BreakevenActivation && stopWorseThanEntry(t.Direction, t.StopPrice, t.EntryPrice) {
		candidate = t.EntryPrice
		reason = "breakeven"
	}

	if profitATR >= s.config.TrailingActivation {
		trail := marketPrice - atr*s.config.TrailMultiplier*t.Direction.Sign()
		if reason == "" || stopImproves(t.Direction, trail, candidate) {
			candidate = trail
			reason = "trailing"
		}
	}

	return candidate, reason
}

// forceClose retires a position that exceeded the maximum age.
func (s *Supervisor) forceClose(ctx context.Context, t Tracked) {
	s.log.LogWarning("Supervisor", "position #%s older than %s, force closing", t.Ticket, s.config.MaxAge)

	s.submitMu.Lock()
	err := s.gateway.ClosePosition(ctx, t.Ticket, t.Symbol)
	s.submitMu.Unlock()

	if err != nil {
		s.log.Error("Failed to force close position #%s: %v", t.Ticket, err)
		return
	}
	// The broker stops reporting the position; settlement happens on the
	// next supervision pass.
}

// settle books the realized result for a position the broker no longer
// reports open and removes it from the tracked set.
func (s *Supervisor) settle(ctx context.Context, t Tracked) {
	profit := 0.0

	deals, err := s.gateway.ListClosedDeals(ctx, t.OpenedAt, s.now())
	if err != nil {
		s.log.LogWarning("Supervisor", "could not load closed deals for #%s: %v", t.Ticket, err)
	} else {
		for _, d := range deals {
			if d.Ticket == t.Ticket {
				profit += d.Profit
			}
		}
	}

	s.mu.Lock()
	delete(s.positions, t.Ticket)
	s.mu.Unlock()

	s.log.LogPositionClosed(t.Ticket, t.Symbol, profit)

	if s.onClosed != nil {
		s.onClosed(t, profit)
	}
}

// CloseAll force-closes every tracked position. Used during shutdown when
// the close-on-stop policy is enabled.
func (s *Supervisor) CloseAll(ctx context.Context) {
	for _, t := range s.Snapshot() {
		s.submitMu.Lock()
		err := s.gateway.ClosePosition(ctx, t.Ticket, t.Symbol)
		s.submitMu.Unlock()

		if err != nil {
			s.log.Error("Failed to close position #%s during shutdown: %v", t.Ticket, err)
			continue
		}
		s.settle(ctx, t)
	}
}

// stopImproves reports whether candidate is strictly better than current for
// the given direction. A zero current stop means no stop is set.
func stopImproves(dir broker.Direction, candidate, current float64) bool {
	if candidate <= 0 {
		return false
	}
	if current == 0 {
		return true
	}
	if dir == broker.DirectionBuy {
		return candidate > current
	}
	return candidate < current
}

// stopWorseThanEntry reports whether the current stop still leaves risk on
// the table relative to entry. This is the breakeven idempotence guard: once
// the stop sits at or beyond entry the condition fails.
func stopWorseThanEntry(dir broker.Direction, stop, entry float64) bool {
	if stop == 0 {
		return true
	}
	if dir == broker.DirectionBuy {
		return stop < entry
	}
	return stop > entry
}
