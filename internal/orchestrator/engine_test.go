package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-scalper-bot/internal/broker"
	"fx-scalper-bot/internal/logger"
	"fx-scalper-bot/internal/position"
	"fx-scalper-bot/internal/risk"
	"fx-scalper-bot/internal/signal"
	"fx-scalper-bot/pkg/types"
)

type fakeGateway struct {
	mu sync.Mutex

	quotes    map[string]broker.Quote
	metas     map[string]broker.InstrumentMeta
	positions []broker.Position
	deals     []broker.Deal

	quoteErr   error
	submitErr  error
	connectErr error

	connected   bool
	connects    int
	disconnects int
	submitted   []broker.OrderRequest
	closed      []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		quotes: map[string]broker.Quote{
			"EURUSD": {Bid: 1.09990, Ask: 1.10000, Timestamp: time.Now()},
		},
		metas: map[string]broker.InstrumentMeta{
			"EURUSD": {Symbol: "EURUSD", ContractSize: 100000, Point: 0.00001, VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01},
		},
		connected: true,
	}
}

func (g *fakeGateway) GetName() string { return "fake" }
func (g *fakeGateway) IsDemo() bool    { return true }

func (g *fakeGateway) GetAccountSnapshot(ctx context.Context) (*broker.AccountSnapshot, error) {
	return &broker.AccountSnapshot{Equity: 10000, Balance: 10000}, nil
}

func (g *fakeGateway) GetInstrumentMeta(ctx context.Context, symbol string) (*broker.InstrumentMeta, error) {
	m, ok := g.metas[symbol]
	if !ok {
		return nil, &broker.DataError{Symbol: symbol, Op: "GetInstrumentMeta", Err: errors.New("unknown symbol")}
	}
	return &m, nil
}

func (g *fakeGateway) GetQuote(ctx context.Context, symbol string) (*broker.Quote, error) {
	if g.quoteErr != nil {
		return nil, g.quoteErr
	}
	q, ok := g.quotes[symbol]
	if !ok {
		return nil, &broker.DataError{Symbol: symbol, Op: "GetQuote", Err: errors.New("no quote")}
	}
	return &q, nil
}

func (g *fakeGateway) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	return nil, &broker.DataError{Symbol: symbol, Op: "GetKlines", Err: errors.New("no klines")}
}

func (g *fakeGateway) SubmitMarketOrder(ctx context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	g.submitted = append(g.submitted, req)

	entry := g.quotes[req.Symbol].Ask
	if req.Direction == broker.DirectionSell {
		entry = g.quotes[req.Symbol].Bid
	}
	result := &broker.OrderResult{
		Ticket:     req.Symbol,
		Symbol:     req.Symbol,
		Direction:  req.Direction,
		Volume:     req.Volume,
		EntryPrice: entry,
		FilledAt:   time.Now(),
	}
	g.positions = append(g.positions, broker.Position{
		Ticket:     req.Symbol,
		Symbol:     req.Symbol,
		Direction:  req.Direction,
		Volume:     req.Volume,
		EntryPrice: entry,
		StopPrice:  req.StopPrice,
	})
	return result, nil
}

func (g *fakeGateway) ModifyStop(ctx context.Context, ticket, symbol string, newStop float64) error {
	return nil
}

func (g *fakeGateway) ClosePosition(ctx context.Context, ticket, symbol string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = append(g.closed, ticket)
	return nil
}

func (g *fakeGateway) ListOpenPositions(ctx context.Context) ([]broker.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]broker.Position, len(g.positions))
	copy(out, g.positions)
	return out, nil
}

func (g *fakeGateway) ListClosedDeals(ctx context.Context, from, to time.Time) ([]broker.Deal, error) {
	return g.deals, nil
}

func (g *fakeGateway) Connect(ctx context.Context) error {
	g.connects++
	if g.connectErr != nil {
		return g.connectErr
	}
	g.connected = true
	return nil
}

func (g *fakeGateway) Disconnect() error {
	g.disconnects++
	g.connected = false
	return nil
}

func (g *fakeGateway) IsConnected() bool { return g.connected }

type fakeProvider struct {
	fn func(symbol string) (*signal.Signal, error)
}

func (p *fakeProvider) Evaluate(ctx context.Context, symbol string) (*signal.Signal, error) {
	if p.fn == nil {
		return nil, nil
	}
	return p.fn(symbol)
}

type fakeATR struct{ value float64 }

func (f *fakeATR) ATR(ctx context.Context, symbol string) (float64, error) {
	return f.value, nil
}

type captureNotifier struct {
	mu     sync.Mutex
	alerts []string
}

func (n *captureNotifier) SendAlert(level, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, level+": "+message)
	return nil
}

func (n *captureNotifier) contains(substr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, a := range n.alerts {
		if strings.Contains(a, substr) {
			return true
		}
	}
	return false
}

func buySignal(symbol string) (*signal.Signal, error) {
	return &signal.Signal{Symbol: symbol, Direction: broker.DirectionBuy, StopPrice: 1.09700}, nil
}

type engineFixture struct {
	engine   *Engine
	gateway  *fakeGateway
	notifier *captureNotifier
}

func newTestEngine(t *testing.T, gw *fakeGateway, provider signal.Provider, riskCfg risk.Config, cfg Config) *engineFixture {
	t.Helper()
	t.Chdir(t.TempDir())

	log, err := logger.NewLogger("test")
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	var submitMu sync.Mutex
	supervisor := position.NewSupervisor(gw, &fakeATR{value: 0.0020}, log, position.Config{
		BreakevenActivation: 1.5,
		TrailingActivation:  2.5,
		TrailMultiplier:     2.0,
	}, &submitMu)

	ledger := risk.NewDailyLedger(time.Now(), 10000)
	manager := risk.NewManager(riskCfg, ledger, supervisor)

	reconnector := broker.NewReconnector(broker.ReconnectConfig{MaxAttempts: 2, InitialDelay: time.Millisecond})
	reconnector.SetSleepFunc(func(ctx context.Context, d time.Duration) error { return nil })

	notifier := &captureNotifier{}

	engine, err := NewEngine(Deps{
		Gateway:     gw,
		Signals:     provider,
		Risk:        manager,
		Supervisor:  supervisor,
		ATR:         &fakeATR{value: 0.0020},
		Log:         log,
		Notifier:    notifier,
		Reconnector: reconnector,
		SubmitMu:    &submitMu,
	}, cfg)
	require.NoError(t, err)

	return &engineFixture{engine: engine, gateway: gw, notifier: notifier}
}

func defaultRiskConfig() risk.Config {
	return risk.Config{
		RiskPercent:        1.0,
		MaxDailyLoss:       500,
		MaxDrawdownPercent: 10,
		MaxTotalTrades:     5,
		MaxTradesPerSymbol: 2,
	}
}

func defaultEngineConfig() Config {
	return Config{
		Symbols:      []string{"EURUSD"},
		TPMultiplier: 2.0,
		SLMultiplier: 1.0,
	}
}

func TestRunCycle_OpensTradeOnValidSignal(t *testing.T) {
	gw := newFakeGateway()
	fx := newTestEngine(t, gw, &fakeProvider{fn: buySignal}, defaultRiskConfig(), defaultEngineConfig())

	report := fx.engine.RunCycle(context.Background())

	require.Len(t, report.Opened, 1)
	opened := report.Opened[0]
	assert.Equal(t, "EURUSD", opened.Symbol)
	assert.Equal(t, "BUY", opened.Direction)

	// 1% of 10000 = 100 at risk; 30 pip stop at $10/pip sizes 0.33 lots.
	assert.InDelta(t, 0.33, opened.Volume, 1e-9)

	// The derived take profit doubles the stop distance above entry.
	assert.InDelta(t, 1.10600, opened.TakeProfit, 1e-9)

	assert.Equal(t, 1, report.OpenPositions)
	assert.False(t, report.Aborted)
	require.Len(t, gw.submitted, 1)
	assert.InDelta(t, 1.09700, gw.submitted[0].StopPrice, 1e-9)
}

func TestRunCycle_NoSignalNoTrade(t *testing.T) {
	gw := newFakeGateway()
	fx := newTestEngine(t, gw, &fakeProvider{}, defaultRiskConfig(), defaultEngineConfig())

	report := fx.engine.RunCycle(context.Background())

	assert.Empty(t, report.Opened)
	assert.Empty(t, report.Skipped)
	assert.Empty(t, gw.submitted)
}

func TestRunCycle_InvalidSignalSkipped(t *testing.T) {
	gw := newFakeGateway()
	provider := &fakeProvider{fn: func(symbol string) (*signal.Signal, error) {
		// Stop above entry on a BUY is a provider bug.
		return &signal.Signal{Symbol: symbol, Direction: broker.DirectionBuy, StopPrice: 1.10500}, nil
	}}
	fx := newTestEngine(t, gw, provider, defaultRiskConfig(), defaultEngineConfig())

	report := fx.engine.RunCycle(context.Background())

	assert.Empty(t, report.Opened)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "invalid signal", report.Skipped[0].Reason)
}

func TestRunCycle_RiskRejectionSkips(t *testing.T) {
	gw := newFakeGateway()
	riskCfg := defaultRiskConfig()
	riskCfg.MaxTotalTrades = 1
	fx := newTestEngine(t, gw, &fakeProvider{fn: buySignal}, riskCfg, defaultEngineConfig())

	first := fx.engine.RunCycle(context.Background())
	require.Len(t, first.Opened, 1)

	second := fx.engine.RunCycle(context.Background())
	assert.Empty(t, second.Opened)
	require.Len(t, second.Skipped, 1)
	assert.Equal(t, string(risk.RejectMaxTrades), second.Skipped[0].Reason)
}

func TestRunCycle_DailyLossHaltNotifiesOnce(t *testing.T) {
	gw := newFakeGateway()
	riskCfg := defaultRiskConfig()
	riskCfg.MaxDailyLoss = 100
	fx := newTestEngine(t, gw, &fakeProvider{fn: buySignal}, riskCfg, defaultEngineConfig())

	fx.engine.risk.Ledger().RecordClose(-150)

	fx.engine.RunCycle(context.Background())
	fx.engine.RunCycle(context.Background())

	assert.True(t, fx.notifier.contains("halted"))
	count := 0
	for _, a := range fx.notifier.alerts {
		if strings.Contains(a, "halted") {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRunCycle_SpreadGuardSkips(t *testing.T) {
	gw := newFakeGateway()
	gw.quotes["EURUSD"] = broker.Quote{Bid: 1.09950, Ask: 1.10000, Timestamp: time.Now()} // 50 points

	cfg := defaultEngineConfig()
	cfg.Filter.MaxSpreadPoints = 30
	fx := newTestEngine(t, gw, &fakeProvider{fn: buySignal}, defaultRiskConfig(), cfg)

	report := fx.engine.RunCycle(context.Background())

	assert.Empty(t, report.Opened)
	require.Len(t, report.Skipped, 1)
	assert.Contains(t, report.Skipped[0].Reason, "spread")
}

func TestRunCycle_SessionFilterSkips(t *testing.T) {
	gw := newFakeGateway()
	cfg := defaultEngineConfig()
	cfg.Filter.SessionsEnabled = true
	cfg.Filter.Sessions = DefaultSessions()
	fx := newTestEngine(t, gw, &fakeProvider{fn: buySignal}, defaultRiskConfig(), cfg)

	// 23:30 UTC is outside every session window.
	fx.engine.now = func() time.Time {
		return time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	}

	report := fx.engine.RunCycle(context.Background())

	assert.Empty(t, report.Opened)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "outside trading session", report.Skipped[0].Reason)
}

func TestRunCycle_TransientQuoteFailureReconnects(t *testing.T) {
	gw := newFakeGateway()
	fx := newTestEngine(t, gw, &fakeProvider{fn: buySignal}, defaultRiskConfig(), defaultEngineConfig())

	gw.quoteErr = &broker.TransientError{Op: "GetQuote", Err: context.DeadlineExceeded}

	report := fx.engine.RunCycle(context.Background())

	assert.True(t, report.Reconnected)
	assert.False(t, report.Aborted)
	assert.GreaterOrEqual(t, gw.connects, 1)
}

func TestRunCycle_ReconnectExhaustedAbortsCycle(t *testing.T) {
	gw := newFakeGateway()
	fx := newTestEngine(t, gw, &fakeProvider{fn: buySignal}, defaultRiskConfig(), defaultEngineConfig())

	gw.quoteErr = &broker.TransientError{Op: "GetQuote", Err: context.DeadlineExceeded}
	gw.connectErr = &broker.TransientError{Op: "Connect", Err: context.DeadlineExceeded}

	report := fx.engine.RunCycle(context.Background())

	assert.True(t, report.Aborted)
	assert.Empty(t, report.Opened)
	assert.True(t, fx.notifier.contains("connection lost"))
}

func TestRunCycle_StopRequestAborts(t *testing.T) {
	gw := newFakeGateway()
	fx := newTestEngine(t, gw, &fakeProvider{fn: buySignal}, defaultRiskConfig(), defaultEngineConfig())

	fx.engine.RequestStop()
	report := fx.engine.RunCycle(context.Background())

	assert.True(t, report.Aborted)
	assert.Empty(t, gw.submitted)
}

func TestShutdown_ClosesOpenPositions(t *testing.T) {
	gw := newFakeGateway()
	fx := newTestEngine(t, gw, &fakeProvider{fn: buySignal}, defaultRiskConfig(), defaultEngineConfig())

	report := fx.engine.RunCycle(context.Background())
	require.Len(t, report.Opened, 1)

	fx.engine.Shutdown(context.Background(), true)

	assert.Equal(t, []string{"EURUSD"}, gw.closed)
	assert.GreaterOrEqual(t, gw.disconnects, 1)
}

func TestCycleReport_Render(t *testing.T) {
	report := &CycleReport{
		StartedAt:     time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		Duration:      1200 * time.Millisecond,
		Equity:        10250.50,
		Drawdown:      1.25,
		OpenPositions: 2,
		Opened: []OpenedTrade{
			{Ticket: "EURUSD", Symbol: "EURUSD", Direction: "BUY", Volume: 0.33, Entry: 1.1, Stop: 1.097, TakeProfit: 1.106},
		},
		Skipped: []SkippedSymbol{{Symbol: "GBPUSD", Reason: "spread too wide"}},
	}

	out := report.Render()
	assert.Contains(t, out, "CYCLE REPORT")
	assert.Contains(t, out, "EURUSD")
	assert.Contains(t, out, "spread too wide")
}
