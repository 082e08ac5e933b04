package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"fx-scalper-bot/internal/orchestrator"
)

// BotConfig is the complete engine configuration.
type BotConfig struct {
	Broker        BrokerConfig       `json:"broker" yaml:"broker"`
	Trading       TradingConfig      `json:"trading" yaml:"trading"`
	Risk          RiskConfig         `json:"risk" yaml:"risk"`
	Position      PositionConfig     `json:"position" yaml:"position"`
	Correlation   CorrelationConfig  `json:"correlation" yaml:"correlation"`
	Filter        FilterConfig       `json:"filter" yaml:"filter"`
	Monitoring    MonitoringConfig   `json:"monitoring" yaml:"monitoring"`
	Notifications NotificationConfig `json:"notifications" yaml:"notifications"`
	Stats         StatsConfig        `json:"stats" yaml:"stats"`
}

// BrokerConfig holds gateway credentials and environment selection.
type BrokerConfig struct {
	APIKey    string `json:"api_key" yaml:"api_key"`
	APISecret string `json:"api_secret" yaml:"api_secret"`
	Testnet   bool   `json:"testnet" yaml:"testnet"`
	Demo      bool   `json:"demo" yaml:"demo"`
	EngineTag string `json:"engine_tag" yaml:"engine_tag"` // Marks this engine's orders on a shared account
}

// TradingConfig holds the symbol universe and the cycle parameters.
type TradingConfig struct {
	Symbols      []string `json:"symbols" yaml:"symbols"`
	Interval     string   `json:"interval" yaml:"interval"`           // Kline interval for ATR and correlation
	CycleSeconds int      `json:"cycle_seconds" yaml:"cycle_seconds"` // Orchestration cycle period
	ATRPeriod    int      `json:"atr_period" yaml:"atr_period"`
	TPMultiplier float64  `json:"tp_multiplier" yaml:"tp_multiplier"` // ATR multiple for derived take profit
	SLMultiplier float64  `json:"sl_multiplier" yaml:"sl_multiplier"` // ATR multiple behind provider stops
}

// RiskConfig holds the admission policy thresholds.
type RiskConfig struct {
	RiskPercent        float64 `json:"risk_percent" yaml:"risk_percent"`
	MaxDailyLoss       float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent" yaml:"max_drawdown_percent"`
	MaxTotalTrades     int     `json:"max_total_trades" yaml:"max_total_trades"`
	MaxTradesPerSymbol int     `json:"max_trades_per_symbol" yaml:"max_trades_per_symbol"`
}

// PositionConfig holds the stop supervision policy.
type PositionConfig struct {
	BreakevenActivation float64 `json:"breakeven_activation" yaml:"breakeven_activation"` // In ATR multiples of open profit
	TrailingActivation  float64 `json:"trailing_activation" yaml:"trailing_activation"`
	TrailMultiplier     float64 `json:"trail_multiplier" yaml:"trail_multiplier"`
	MaxAgeHours         int     `json:"max_age_hours" yaml:"max_age_hours"`
	CloseStale          bool    `json:"close_stale" yaml:"close_stale"`
	CloseOnShutdown     bool    `json:"close_on_shutdown" yaml:"close_on_shutdown"`
}

// CorrelationConfig holds the correlated-exposure gate parameters.
type CorrelationConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	MaxExposure    float64 `json:"max_exposure" yaml:"max_exposure"`
	RefreshMinutes int     `json:"refresh_minutes" yaml:"refresh_minutes"`
	Lookback       int     `json:"lookback" yaml:"lookback"`
}

// FilterConfig mirrors the orchestrator's pre-signal filters.
type FilterConfig struct {
	SessionsEnabled bool                         `json:"sessions_enabled" yaml:"sessions_enabled"`
	Sessions        []orchestrator.SessionWindow `json:"sessions" yaml:"sessions"`
	MaxSpreadPoints float64                      `json:"max_spread_points" yaml:"max_spread_points"`
}

// MonitoringConfig holds the metrics and health server ports.
type MonitoringConfig struct {
	MetricsPort int `json:"metrics_port" yaml:"metrics_port"`
	HealthPort  int `json:"health_port" yaml:"health_port"`
}

// NotificationConfig holds Telegram alert settings.
type NotificationConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	TelegramToken string `json:"telegram_token,omitempty" yaml:"telegram_token,omitempty"`
	TelegramChat  string `json:"telegram_chat,omitempty" yaml:"telegram_chat,omitempty"`
}

// StatsConfig holds trade history persistence settings.
type StatsConfig struct {
	DatabasePath string `json:"database_path" yaml:"database_path"`
	ExportDir    string `json:"export_dir" yaml:"export_dir"`
}

// LoadBotConfig loads configuration from a JSON or YAML file (by extension),
// applies environment overrides for secrets, fills defaults and validates.
func LoadBotConfig(configFile string) (*BotConfig, error) {
	if !strings.ContainsAny(configFile, "/\\") {
		configFile = filepath.Join("configs", configFile)
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var config BotConfig
	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}

	config.applyEnvOverrides()
	config.setDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides pulls secrets from the environment so they never need to
// live in the config file.
func (c *BotConfig) applyEnvOverrides() {
	c.Broker.APIKey = getEnv("BYBIT_API_KEY", c.Broker.APIKey)
	c.Broker.APISecret = getEnv("BYBIT_API_SECRET", c.Broker.APISecret)
	c.Notifications.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.Notifications.TelegramToken)
	c.Notifications.TelegramChat = getEnv("TELEGRAM_CHAT_ID", c.Notifications.TelegramChat)
}

func (c *BotConfig) setDefaults() {
	if c.Broker.EngineTag == "" {
		c.Broker.EngineTag = "fxscalper"
	}

	if c.Trading.Interval == "" {
		c.Trading.Interval = "5"
	}
	if c.Trading.CycleSeconds == 0 {
		c.Trading.CycleSeconds = 30
	}
	if c.Trading.ATRPeriod == 0 {
		c.Trading.ATRPeriod = 14
	}
	if c.Trading.TPMultiplier == 0 {
		c.Trading.TPMultiplier = 2.0
	}
	if c.Trading.SLMultiplier == 0 {
		c.Trading.SLMultiplier = 1.0
	}

	if c.Risk.RiskPercent == 0 {
		c.Risk.RiskPercent = 1.0
	}
	if c.Risk.MaxTotalTrades == 0 {
		c.Risk.MaxTotalTrades = 5
	}
	if c.Risk.MaxTradesPerSymbol == 0 {
		c.Risk.MaxTradesPerSymbol = 2
	}
	if c.Risk.MaxDrawdownPercent == 0 {
		c.Risk.MaxDrawdownPercent = 10.0
	}

	if c.Position.BreakevenActivation == 0 {
		c.Position.BreakevenActivation = 1.5
	}
	if c.Position.TrailingActivation == 0 {
		c.Position.TrailingActivation = 1.0
	}
	if c.Position.TrailMultiplier == 0 {
		c.Position.TrailMultiplier = 2.0
	}
	if c.Position.MaxAgeHours == 0 {
		c.Position.MaxAgeHours = 24
	}

	if c.Correlation.MaxExposure == 0 {
		c.Correlation.MaxExposure = 1.0
	}
	if c.Correlation.RefreshMinutes == 0 {
		c.Correlation.RefreshMinutes = 60
	}
	if c.Correlation.Lookback == 0 {
		c.Correlation.Lookback = 100
	}

	if c.Filter.SessionsEnabled && len(c.Filter.Sessions) == 0 {
		c.Filter.Sessions = orchestrator.DefaultSessions()
	}

	if c.Monitoring.MetricsPort == 0 {
		c.Monitoring.MetricsPort = 8080
	}
	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = 8081
	}

	if c.Stats.DatabasePath == "" {
		c.Stats.DatabasePath = "data/trades.db"
	}
	if c.Stats.ExportDir == "" {
		c.Stats.ExportDir = "reports"
	}
}

func (c *BotConfig) validate() error {
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("at least one trading symbol is required")
	}
	if c.Risk.RiskPercent <= 0 || c.Risk.RiskPercent > 10 {
		return fmt.Errorf("risk percent must be in (0, 10], got %.2f", c.Risk.RiskPercent)
	}
	if c.Risk.MaxDailyLoss < 0 {
		return fmt.Errorf("max daily loss cannot be negative")
	}
	if c.Position.TrailMultiplier <= 0 {
		return fmt.Errorf("trail multiplier must be positive")
	}
	if c.Trading.SLMultiplier <= 0 || c.Trading.TPMultiplier <= 0 {
		return fmt.Errorf("TP and SL multipliers must be positive")
	}
	if c.Correlation.Enabled && c.Correlation.MaxExposure <= 0 {
		return fmt.Errorf("correlation max exposure must be positive when the gate is enabled")
	}
	for _, s := range c.Filter.Sessions {
		if s.StartHour < 0 || s.EndHour > 24 || s.StartHour >= s.EndHour {
			return fmt.Errorf("invalid session window %q: hours %d-%d", s.Name, s.StartHour, s.EndHour)
		}
	}
	if c.Notifications.Enabled && (c.Notifications.TelegramToken == "" || c.Notifications.TelegramChat == "") {
		return fmt.Errorf("telegram token and chat ID are required when notifications are enabled")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
