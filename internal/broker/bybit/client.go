package bybit

import (
	"context"
	"fmt"
	"sync"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"fx-scalper-bot/internal/broker"
	"fx-scalper-bot/internal/logger"
	"fx-scalper-bot/internal/safety"
)

// Config holds the connection and identity settings for the Bybit gateway.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool // Demo trading environment

	Category  string // Product category, "linear" for USDT perps
	EngineTag string // orderLinkId prefix marking orders as ours

	Symbols      []string      // Symbols the quote stream subscribes to
	StreamQuotes bool          // Keep a websocket quote cache warm
	QuoteMaxAge  time.Duration // Staleness bound before falling back to REST
}

// Gateway implements broker.Gateway against Bybit's v5 unified trading API.
type Gateway struct {
	httpClient *bybit_api.Client
	config     Config
	log        *logger.Logger

	limiter     *safety.Limiter
	dataBreaker *safety.Breaker

	stream *quoteStream

	metaMu    sync.RWMutex
	metaCache map[string]*broker.InstrumentMeta

	mu        sync.Mutex
	connected bool
}

// NewGateway creates a Bybit gateway. Connect must be called before use.
func NewGateway(config Config, log *logger.Logger) *Gateway {
	var baseURL string
	if config.Demo {
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	if config.Category == "" {
		config.Category = "linear"
	}
	if config.EngineTag == "" {
		config.EngineTag = "fxscalper"
	}
	if config.QuoteMaxAge == 0 {
		config.QuoteMaxAge = 5 * time.Second
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	g := &Gateway{
		httpClient:  httpClient,
		config:      config,
		log:         log,
		limiter:     safety.NewLimiter("bybit-api", 10, 5),
		dataBreaker: safety.NewBreaker("bybit-data", safety.BreakerConfig{}),
		metaCache:   make(map[string]*broker.InstrumentMeta),
	}
	if config.StreamQuotes {
		g.stream = newQuoteStream(streamURL(config), config.Symbols, log)
	}
	return g
}

func streamURL(config Config) string {
	// Demo accounts share the mainnet public stream.
	if config.Testnet && !config.Demo {
		return "wss://stream-testnet.bybit.com/v5/public/" + config.Category
	}
	return "wss://stream.bybit.com/v5/public/" + config.Category
}

// GetName identifies the gateway in logs and reports.
func (g *Gateway) GetName() string {
	env := "mainnet"
	if g.config.Demo {
		env = "demo"
	} else if g.config.Testnet {
		env = "testnet"
	}
	return fmt.Sprintf("bybit-%s", env)
}

// IsDemo reports whether the gateway trades against the demo environment.
func (g *Gateway) IsDemo() bool {
	return g.config.Demo
}

// Connect verifies API credentials with an account read and starts the quote
// stream when enabled.
func (g *Gateway) Connect(ctx context.Context) error {
	if _, err := g.GetAccountSnapshot(ctx); err != nil {
		return fmt.Errorf("connectivity probe: %w", err)
	}

	if g.stream != nil {
		if err := g.stream.Start(); err != nil {
			// Degraded but workable: GetQuote falls back to REST.
			g.log.LogWarning("Bybit", "quote stream unavailable, using REST quotes: %v", err)
		}
	}

	g.mu.Lock()
	g.connected = true
	g.mu.Unlock()

	g.log.Info("Connected to %s", g.GetName())
	return nil
}

// Disconnect stops the quote stream and marks the gateway disconnected.
func (g *Gateway) Disconnect() error {
	if g.stream != nil {
		g.stream.Stop()
	}

	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()
	return nil
}

// IsConnected reports whether Connect has succeeded since the last Disconnect.
func (g *Gateway) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

// call runs one API invocation through the rate limiter.
func (g *Gateway) call(ctx context.Context, fn func() error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return &broker.TransientError{Op: "rate limit wait", Err: err}
	}
	return fn()
}
