package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"fx-scalper-bot/internal/broker"
	"fx-scalper-bot/internal/broker/bybit"
	"fx-scalper-bot/internal/config"
	"fx-scalper-bot/internal/correlation"
	"fx-scalper-bot/internal/logger"
	"fx-scalper-bot/internal/monitoring"
	"fx-scalper-bot/internal/notifications"
	"fx-scalper-bot/internal/orchestrator"
	"fx-scalper-bot/internal/position"
	"fx-scalper-bot/internal/risk"
	tradesignal "fx-scalper-bot/internal/signal"
	"fx-scalper-bot/internal/stats"
)

func main() {
	var (
		configFile = flag.String("config", "bot.json", "Configuration file (JSON or YAML)")
		envFile    = flag.String("env", ".env", "Environment file path")
		demo       = flag.Bool("demo", false, "Force demo trading environment")
		symbols    = flag.String("symbols", "", "Comma-separated symbol override")
	)
	flag.Parse()

	if err := loadEnvFile(*envFile); err != nil {
		log.Printf("Warning: could not load %s (%v), using process environment", *envFile, err)
	}

	fmt.Println("🚀 FX Scalper Bot starting...")

	cfg, err := config.LoadBotConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *demo {
		cfg.Broker.Demo = true
		cfg.Broker.Testnet = false
	}
	if *symbols != "" {
		cfg.Trading.Symbols = strings.Split(*symbols, ",")
		fmt.Printf("🔧 Symbols overridden to: %s\n", *symbols)
	}

	fileLogger, err := logger.NewLogger("fxscalper")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer fileLogger.Close()
	fmt.Printf("📝 Logging to %s\n", fileLogger.GetLogPath())

	gateway := bybit.NewGateway(bybit.Config{
		APIKey:       cfg.Broker.APIKey,
		APISecret:    cfg.Broker.APISecret,
		Testnet:      cfg.Broker.Testnet,
		Demo:         cfg.Broker.Demo,
		EngineTag:    cfg.Broker.EngineTag,
		Symbols:      cfg.Trading.Symbols,
		StreamQuotes: true,
	}, fileLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gateway.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to %s: %v", gateway.GetName(), err)
	}
	defer gateway.Disconnect()

	snap, err := gateway.GetAccountSnapshot(ctx)
	if err != nil {
		log.Fatalf("Failed to read account snapshot: %v", err)
	}

	recorder := newRecorder(cfg.Stats.DatabasePath)
	defer recorder.Close()

	var notifier notifications.Notifier = notifications.NoopNotifier{}
	if cfg.Notifications.Enabled {
		notifier = notifications.NewTelegramNotifier(cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChat)
	}

	health := monitoring.NewHealthChecker()
	health.SetConnected(true)
	startServers(cfg.Monitoring, health)

	engine := buildEngine(cfg, gateway, fileLogger, notifier, recorder, health, snap.Equity)

	scheduler := cron.New()
	registerDailySummary(scheduler, cfg.Stats.ExportDir, recorder, notifier, fileLogger)
	scheduler.Start()
	defer scheduler.Stop()

	printStartup(cfg, gateway, snap.Equity)
	runLoop(ctx, cancel, engine, cfg)

	engine.Shutdown(context.Background(), cfg.Position.CloseOnShutdown)
	fmt.Println("👋 FX Scalper Bot stopped")
}

// buildEngine wires the trading engine from configuration.
func buildEngine(
	cfg *config.BotConfig,
	gateway broker.Gateway,
	fileLogger *logger.Logger,
	notifier notifications.Notifier,
	recorder stats.Recorder,
	health *monitoring.HealthChecker,
	equity float64,
) *orchestrator.Engine {
	submitMu := &sync.Mutex{}

	atrCache := orchestrator.NewATRCache(gateway, cfg.Trading.Interval, cfg.Trading.ATRPeriod,
		time.Duration(cfg.Trading.CycleSeconds)*time.Second)

	supervisor := position.NewSupervisor(gateway, atrCache, fileLogger, position.Config{
		BreakevenActivation: cfg.Position.BreakevenActivation,
		TrailingActivation:  cfg.Position.TrailingActivation,
		TrailMultiplier:     cfg.Position.TrailMultiplier,
		MaxAge:              time.Duration(cfg.Position.MaxAgeHours) * time.Hour,
		CloseStale:          cfg.Position.CloseStale,
	}, submitMu)

	ledger := risk.NewDailyLedger(time.Now(), equity)
	riskManager := risk.NewManager(risk.Config{
		RiskPercent:        cfg.Risk.RiskPercent,
		MaxDailyLoss:       cfg.Risk.MaxDailyLoss,
		MaxDrawdownPercent: cfg.Risk.MaxDrawdownPercent,
		MaxTotalTrades:     cfg.Risk.MaxTotalTrades,
		MaxTradesPerSymbol: cfg.Risk.MaxTradesPerSymbol,
	}, ledger, supervisor)

	var gate *correlation.Gate
	if cfg.Correlation.Enabled {
		gate = correlation.NewGate(gateway, supervisor, fileLogger, correlation.Config{
			MaxExposure:     cfg.Correlation.MaxExposure,
			RefreshInterval: time.Duration(cfg.Correlation.RefreshMinutes) * time.Minute,
			Lookback:        cfg.Correlation.Lookback,
			Interval:        cfg.Trading.Interval,
		}, cfg.Trading.Symbols)
	}

	scorerCfg := tradesignal.DefaultScorerConfig()
	scorerCfg.Interval = cfg.Trading.Interval
	scorerCfg.ATRPeriod = cfg.Trading.ATRPeriod
	scorerCfg.SLMultiplier = cfg.Trading.SLMultiplier
	provider := tradesignal.NewScorer(gateway, fileLogger, scorerCfg)

	engine, err := orchestrator.NewEngine(orchestrator.Deps{
		Gateway:     gateway,
		Signals:     provider,
		Risk:        riskManager,
		Supervisor:  supervisor,
		Correlation: gate,
		ATR:         atrCache,
		Log:         fileLogger,
		Notifier:    notifier,
		Recorder:    recorder,
		Health:      health,
		SubmitMu:    submitMu,
	}, orchestrator.Config{
		Symbols:      cfg.Trading.Symbols,
		TPMultiplier: cfg.Trading.TPMultiplier,
		SLMultiplier: cfg.Trading.SLMultiplier,
		Filter: orchestrator.FilterConfig{
			SessionsEnabled: cfg.Filter.SessionsEnabled,
			Sessions:        cfg.Filter.Sessions,
			MaxSpreadPoints: cfg.Filter.MaxSpreadPoints,
		},
		CloseOnShutdown: cfg.Position.CloseOnShutdown,
	})
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}
	return engine
}

// runLoop drives the orchestration cycle until a shutdown signal arrives.
func runLoop(ctx context.Context, cancel context.CancelFunc, engine *orchestrator.Engine, cfg *config.BotConfig) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.Trading.CycleSeconds) * time.Second)
	defer ticker.Stop()

	fmt.Printf("▶️  Trading %d symbol(s) every %ds. Press Ctrl+C to stop.\n",
		len(cfg.Trading.Symbols), cfg.Trading.CycleSeconds)

	for {
		select {
		case <-sigCh:
			fmt.Println("\n🛑 Shutdown signal received")
			engine.RequestStop()
			cancel()
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := engine.RunCycle(ctx)
			if len(report.Opened) > 0 || len(report.Skipped) > 0 || report.Errors > 0 {
				fmt.Println(report.Render())
			}
		}
	}
}

// newRecorder opens the SQLite trade recorder, degrading to a no-op when the
// database cannot be opened.
func newRecorder(dbPath string) stats.Recorder {
	if dbPath == "" {
		return stats.NewNoopRecorder()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("Warning: cannot create %s, trade history disabled: %v", dir, err)
			return stats.NewNoopRecorder()
		}
	}
	rec, err := stats.NewSQLiteRecorder(dbPath)
	if err != nil {
		log.Printf("Warning: sqlite recorder unavailable, trade history disabled: %v", err)
		return stats.NewNoopRecorder()
	}
	return rec
}

// registerDailySummary schedules the midnight performance snapshot: summaries
// logged, sent to Telegram and exported to a spreadsheet.
func registerDailySummary(scheduler *cron.Cron, exportDir string, recorder stats.Recorder,
	notifier notifications.Notifier, fileLogger *logger.Logger) {
	_, err := scheduler.AddFunc("5 0 * * *", func() {
		yesterday := time.Now().AddDate(0, 0, -1)

		summary, err := recorder.Summarize("daily", yesterday)
		if err != nil {
			fileLogger.LogWarning("STATS", "daily summary failed: %v", err)
			return
		}
		fileLogger.Status("Daily summary: %d trades, net %.2f, win rate %.1f%%",
			summary.Trades, summary.NetProfit, summary.WinRate)

		if summary.Trades > 0 {
			msg := fmt.Sprintf("Daily summary %s\nTrades: %d\nNet P/L: %.2f\nWin rate: %.1f%%",
				yesterday.Format("2006-01-02"), summary.Trades, summary.NetProfit, summary.WinRate)
			_ = notifier.SendAlert("info", msg)
		}

		if err := os.MkdirAll(exportDir, 0o755); err != nil {
			fileLogger.LogWarning("STATS", "cannot create export dir: %v", err)
			return
		}
		path := filepath.Join(exportDir, fmt.Sprintf("performance_%s.xlsx", yesterday.Format("2006-01-02")))
		if err := stats.ExportSummaries(recorder, yesterday, path); err != nil {
			fileLogger.LogWarning("STATS", "export failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule daily summary: %v", err)
	}
}

// startServers exposes the Prometheus metrics and health endpoints.
func startServers(cfg config.MonitoringConfig, health *monitoring.HealthChecker) {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", monitoring.NewMetricsHandler())
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.MetricsPort), metricsMux); err != nil {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()

	healthMux := http.NewServeMux()
	healthMux.Handle("/health", health)
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.HealthPort), healthMux); err != nil {
			log.Printf("Health server stopped: %v", err)
		}
	}()
}

// printStartup renders the initialization tables.
func printStartup(cfg *config.BotConfig, gateway broker.Gateway, equity float64) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("BOT INITIALIZATION")
	t.SetStyle(table.StyleRounded)

	env := "mainnet"
	if cfg.Broker.Demo {
		env = "demo"
	} else if cfg.Broker.Testnet {
		env = "testnet"
	}

	t.AppendRows([]table.Row{
		{"📊 Symbols", strings.Join(cfg.Trading.Symbols, ", ")},
		{"⏰ Interval", cfg.Trading.Interval + "m"},
		{"🏪 Broker", gateway.GetName()},
		{"🔧 Environment", env},
		{"💰 Equity", fmt.Sprintf("%.2f", equity)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 15, WidthMax: 15, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 45, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Println()

	t = table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("RISK POLICY")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"🎯 Risk per trade", fmt.Sprintf("%.2f%%", cfg.Risk.RiskPercent)},
		{"🛑 Max daily loss", fmt.Sprintf("%.2f", cfg.Risk.MaxDailyLoss)},
		{"📉 Max drawdown", fmt.Sprintf("%.2f%%", cfg.Risk.MaxDrawdownPercent)},
		{"🔢 Max trades", fmt.Sprintf("%d total, %d per symbol", cfg.Risk.MaxTotalTrades, cfg.Risk.MaxTradesPerSymbol)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"⚖️ Breakeven", fmt.Sprintf("%.1f ATR", cfg.Position.BreakevenActivation)},
		{"📈 Trailing", fmt.Sprintf("%.1f ATR start, %.1fx trail", cfg.Position.TrailingActivation, cfg.Position.TrailMultiplier)},
		{"🔗 Correlation gate", onOff(cfg.Correlation.Enabled)},
		{"🕑 Session filter", onOff(cfg.Filter.SessionsEnabled)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 40, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Println()
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// loadEnvFile loads environment variables from the given file if it exists.
func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return fmt.Errorf("env file %s not found", envFile)
	}
	return godotenv.Load(envFile)
}
