package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"fx-scalper-bot/internal/broker"
	"fx-scalper-bot/internal/correlation"
	"fx-scalper-bot/internal/logger"
	"fx-scalper-bot/internal/monitoring"
	"fx-scalper-bot/internal/notifications"
	"fx-scalper-bot/internal/position"
	"fx-scalper-bot/internal/risk"
	"fx-scalper-bot/internal/signal"
	"fx-scalper-bot/internal/stats"
)

// Config holds the orchestration parameters.
type Config struct {
	Symbols         []string
	TPMultiplier    float64 // ATR multiple for derived take profit
	SLMultiplier    float64 // ATR multiple the provider used for the stop
	Filter          FilterConfig
	CloseOnShutdown bool
}

// Deps collects the engine's collaborators. Gateway, Signals, Risk,
// Supervisor, ATR, Log and SubmitMu are required; the rest degrade to no-ops
// when nil.
type Deps struct {
	Gateway     broker.Gateway
	Signals     signal.Provider
	Risk        *risk.Manager
	Supervisor  *position.Supervisor
	Correlation *correlation.Gate
	ATR         position.ATRSource
	Log         *logger.Logger
	Notifier    notifications.Notifier
	Recorder    stats.Recorder
	Health      *monitoring.HealthChecker
	Reconnector *broker.Reconnector
	SubmitMu    *sync.Mutex
}

// Engine drives the per-cycle trading pipeline: supervise open positions,
// then for each symbol run session filter, signal evaluation, correlation
// gate, risk admission, sizing and submission.
type Engine struct {
	gateway     broker.Gateway
	signals     signal.Provider
	risk        *risk.Manager
	supervisor  *position.Supervisor
	gate        *correlation.Gate
	atr         position.ATRSource
	log         *logger.Logger
	notifier    notifications.Notifier
	recorder    stats.Recorder
	health      *monitoring.HealthChecker
	reconnector *broker.Reconnector
	config      Config

	// Serializes order submission with the supervisor's stop modifications.
	submitMu *sync.Mutex

	mu            sync.Mutex
	stopRequested bool
	haltNotified  time.Time // Midnight of the day a risk-halt alert went out

	now func() time.Time
}

// NewEngine wires the trading engine together and hooks position settlement
// into the ledger, the stats recorder and the notifier.
func NewEngine(deps Deps, config Config) (*Engine, error) {
	switch {
	case deps.Gateway == nil:
		return nil, fmt.Errorf("orchestrator: gateway is required")
	case deps.Signals == nil:
		return nil, fmt.Errorf("orchestrator: signal provider is required")
	case deps.Risk == nil:
		return nil, fmt.Errorf("orchestrator: risk manager is required")
	case deps.Supervisor == nil:
		return nil, fmt.Errorf("orchestrator: position supervisor is required")
	case deps.ATR == nil:
		return nil, fmt.Errorf("orchestrator: ATR source is required")
	case deps.Log == nil:
		return nil, fmt.Errorf("orchestrator: logger is required")
	case deps.SubmitMu == nil:
		return nil, fmt.Errorf("orchestrator: submission lock is required")
	}
	if deps.Reconnector == nil {
		deps.Reconnector = broker.NewReconnector(broker.DefaultReconnectConfig())
	}

	e := &Engine{
		gateway:     deps.Gateway,
		signals:     deps.Signals,
		risk:        deps.Risk,
		supervisor:  deps.Supervisor,
		gate:        deps.Correlation,
		atr:         deps.ATR,
		log:         deps.Log,
		notifier:    deps.Notifier,
		recorder:    deps.Recorder,
		health:      deps.Health,
		reconnector: deps.Reconnector,
		config:      config,
		submitMu:    deps.SubmitMu,
		now:         time.Now,
	}

	e.supervisor.SetOnClosed(e.onPositionClosed)
	return e, nil
}

// RequestStop flags the engine to stop. The current cycle finishes; the next
// RunCycle returns immediately.
func (e *Engine) RequestStop() {
	e.mu.Lock()
	e.stopRequested = true
	e.mu.Unlock()
}

func (e *Engine) stopping() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopRequested
}

// RunCycle executes one orchestration pass. Transient gateway failures trigger
// the bounded reconnect sequence; exhausting it aborts the cycle, never the
// process.
func (e *Engine) RunCycle(ctx context.Context) *CycleReport {
	started := e.now()
	report := &CycleReport{StartedAt: started}

	if e.stopping() || ctx.Err() != nil {
		report.Aborted = true
		return report
	}

	snap, err := e.gateway.GetAccountSnapshot(ctx)
	if err != nil {
		report.Errors++
		if !e.handleGatewayError(ctx, err, report) {
			report.Aborted = true
			report.Duration = e.now().Sub(started)
			return report
		}
		if snap, err = e.gateway.GetAccountSnapshot(ctx); err != nil {
			report.Errors++
			report.Aborted = true
			report.Duration = e.now().Sub(started)
			return report
		}
	}

	ledger := e.risk.Ledger()
	if ledger.Roll(started, snap.Equity) {
		e.log.Status("Daily ledger rolled, peak equity reset to %.2f", snap.Equity)
	}
	ledger.ObserveEquity(snap.Equity)

	drawdown := ledger.Drawdown(snap.Equity)
	monitoring.UpdateAccount(snap.Equity, drawdown)

	e.supervisor.ManageAll(ctx)

	for _, symbol := range e.config.Symbols {
		if e.stopping() || ctx.Err() != nil {
			report.Aborted = true
			break
		}
		if err := e.tradeSymbol(ctx, symbol, snap.Equity, report); err != nil {
			report.Errors++
			if !e.handleGatewayError(ctx, err, report) {
				report.Aborted = true
				break
			}
		}
	}

	report.OpenPositions = e.supervisor.TotalOpen()
	report.Equity = snap.Equity
	report.Drawdown = drawdown
	report.Duration = e.now().Sub(started)

	monitoring.UpdateOpenPositions(report.OpenPositions)
	monitoring.ObserveCycleDuration(report.Duration.Seconds())
	if e.health != nil {
		e.health.RecordCycle()
	}

	snapLedger := ledger.Snapshot()
	e.log.LogCycleSummary(len(report.Opened), len(report.Skipped), report.Errors, report.Duration)
	e.log.LogDailyLedger(snapLedger.Trades, snapLedger.Profit, snapLedger.Loss, snapLedger.PeakEquity, drawdown)

	return report
}

// tradeSymbol runs the admission pipeline for one symbol. It returns an error
// only for transient gateway failures; every other outcome is recorded as a
// skip or an opened trade.
func (e *Engine) tradeSymbol(ctx context.Context, symbol string, equity float64, report *CycleReport) error {
	if e.config.Filter.SessionsEnabled && !inTradingSession(e.config.Filter.Sessions, e.now()) {
		e.recordSkip(report, symbol, "outside trading session")
		return nil
	}

	quote, err := e.gateway.GetQuote(ctx, symbol)
	if err != nil {
		if broker.IsTransient(err) {
			return err
		}
		e.log.LogWarning("MARKET", "quote unavailable for %s: %v", symbol, err)
		e.recordSkip(report, symbol, "quote unavailable")
		return nil
	}

	meta, err := e.gateway.GetInstrumentMeta(ctx, symbol)
	if err != nil {
		if broker.IsTransient(err) {
			return err
		}
		e.log.LogWarning("MARKET", "instrument meta unavailable for %s: %v", symbol, err)
		e.recordSkip(report, symbol, "instrument meta unavailable")
		return nil
	}

	if maxSpread := e.config.Filter.MaxSpreadPoints; maxSpread > 0 {
		if pts := spreadPoints(quote, meta); pts > maxSpread {
			e.recordSkip(report, symbol, fmt.Sprintf("spread %.1f points exceeds %.1f", pts, maxSpread))
			return nil
		}
	}

	sig, err := e.signals.Evaluate(ctx, symbol)
	if err != nil {
		if broker.IsTransient(err) {
			return err
		}
		e.log.LogWarning("SIGNAL", "provider failed for %s: %v", symbol, err)
		e.recordSkip(report, symbol, "signal provider error")
		return nil
	}
	if sig == nil {
		return nil
	}

	entry := quote.Ask
	if sig.Direction == broker.DirectionSell {
		entry = quote.Bid
	}

	if err := signal.Validate(sig, entry); err != nil {
		e.log.LogWarning("SIGNAL", "rejected signal for %s: %v", symbol, err)
		e.recordSkip(report, symbol, "invalid signal")
		return nil
	}
	sig = signal.DeriveTakeProfit(sig, entry, e.config.TPMultiplier, e.config.SLMultiplier)

	if e.gate != nil {
		if ok, exposure := e.gate.CheckCorrelationRisk(ctx, symbol, sig.Direction); !ok {
			// The gate logs the rejection itself with the exposure detail.
			report.skip(symbol, fmt.Sprintf("correlated exposure %.2f over cap", exposure))
			monitoring.RecordSkip("correlation exposure cap")
			return nil
		}
	}

	if ok, reason := e.risk.CanOpenTrade(symbol, equity); !ok {
		e.recordSkip(report, symbol, string(reason))
		if reason == risk.RejectDailyLoss || reason == risk.RejectDrawdown {
			e.notifyHalt(string(reason))
		}
		return nil
	}

	stopDistance := math.Abs(entry - sig.StopPrice)
	volume, err := risk.CalculatePositionSize(meta, equity, e.risk.RiskPercent(), stopDistance, entry)
	if err != nil {
		e.log.LogWarning("RISK", "%v", err)
		e.recordSkip(report, symbol, "sizing failed")
		return nil
	}

	req := broker.OrderRequest{
		Symbol:          symbol,
		Direction:       sig.Direction,
		Volume:          volume,
		StopPrice:       sig.StopPrice,
		TakeProfitPrice: sig.TakeProfitPrice,
	}

	e.submitMu.Lock()
	result, err := e.gateway.SubmitMarketOrder(ctx, req)
	e.submitMu.Unlock()
	if err != nil {
		if broker.IsTransient(err) {
			return err
		}
		e.log.Error("Order rejected for %s: %v", symbol, err)
		monitoring.RecordError("order_rejected")
		e.recordSkip(report, symbol, "order rejected")
		return nil
	}

	e.supervisor.Register(position.Tracked{
		Ticket:          result.Ticket,
		Symbol:          result.Symbol,
		Direction:       result.Direction,
		Volume:          result.Volume,
		EntryPrice:      result.EntryPrice,
		StopPrice:       sig.StopPrice,
		TakeProfitPrice: sig.TakeProfitPrice,
		OpenedAt:        result.FilledAt,
	})
	e.risk.Ledger().RecordOpen()

	monitoring.RecordTrade(result.Symbol, result.Direction.String())
	notifications.NotifyTradeOpened(e.notifier, result.Symbol, result.Direction.String(),
		result.Volume, result.EntryPrice, sig.StopPrice, sig.TakeProfitPrice)

	report.Opened = append(report.Opened, OpenedTrade{
		Ticket:     result.Ticket,
		Symbol:     result.Symbol,
		Direction:  result.Direction.String(),
		Volume:     result.Volume,
		Entry:      result.EntryPrice,
		Stop:       sig.StopPrice,
		TakeProfit: sig.TakeProfitPrice,
	})
	return nil
}

// handleGatewayError runs the bounded reconnect sequence for transient
// failures. Returns true when the connection was restored.
func (e *Engine) handleGatewayError(ctx context.Context, err error, report *CycleReport) bool {
	if !broker.IsTransient(err) {
		e.log.Error("Gateway error: %v", err)
		monitoring.RecordError("gateway")
		return true
	}

	e.log.LogWarning("CONNECTION", "transient gateway failure: %v", err)
	monitoring.RecordError("transient")
	if e.health != nil {
		e.health.SetConnected(false)
	}

	if rerr := e.reconnector.Run(ctx, e.gateway); rerr != nil {
		e.log.Error("Reconnect exhausted: %v", rerr)
		notifications.NotifyConnectionLost(e.notifier, e.reconnector.Attempts())
		return false
	}

	e.log.Status("Gateway connection restored after %d attempt(s)", e.reconnector.Attempts())
	monitoring.RecordReconnect()
	if e.health != nil {
		e.health.SetConnected(true)
	}
	report.Reconnected = true
	return true
}

// onPositionClosed books a settled position into the ledger, the stats
// recorder and the notifier.
func (e *Engine) onPositionClosed(t position.Tracked, profit float64) {
	e.risk.Ledger().RecordClose(profit)

	if e.recorder != nil {
		evt := &stats.TradeEvent{
			Ticket:    t.Ticket,
			Symbol:    t.Symbol,
			Direction: t.Direction.String(),
			Volume:    t.Volume,
			Profit:    profit,
			OpenedAt:  t.OpenedAt,
			ClosedAt:  e.now(),
		}
		if err := e.recorder.RecordTrade(evt); err != nil {
			e.log.LogWarning("STATS", "failed to record trade %s: %v", t.Ticket, err)
		}
	}

	notifications.NotifyTradeClosed(e.notifier, t.Symbol, profit)
}

// notifyHalt sends the risk-halt alert at most once per calendar day.
func (e *Engine) notifyHalt(reason string) {
	today := e.now().Truncate(24 * time.Hour)

	e.mu.Lock()
	already := e.haltNotified.Equal(today)
	if !already {
		e.haltNotified = today
	}
	e.mu.Unlock()

	if already {
		return
	}
	e.log.LogWarning("RISK", "trading halted: %s", reason)
	notifications.NotifyRiskHalt(e.notifier, reason)
}

func (e *Engine) recordSkip(report *CycleReport, symbol, reason string) {
	report.skip(symbol, reason)
	e.log.LogSkip(symbol, reason)
	monitoring.RecordSkip(reason)
}

// Shutdown stops the engine, optionally flattening every tracked position
// before disconnecting from the gateway.
func (e *Engine) Shutdown(ctx context.Context, closeOpenPositions bool) {
	e.RequestStop()

	if closeOpenPositions {
		e.log.Status("Closing %d open position(s) on shutdown", e.supervisor.TotalOpen())
		e.supervisor.CloseAll(ctx)
		// A follow-up pass settles whatever the broker reports as closed.
		e.supervisor.ManageAll(ctx)
	}

	if err := e.gateway.Disconnect(); err != nil {
		e.log.LogWarning("CONNECTION", "disconnect failed: %v", err)
	}
	if e.health != nil {
		e.health.SetConnected(false)
	}
	e.log.Status("Engine shut down")
}
