package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fx_bot_trades_total",
			Help: "Total number of positions opened",
		},
		[]string{"symbol", "direction"},
	)

	skipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fx_bot_skips_total",
			Help: "Symbols skipped per cycle by reason",
		},
		[]string{"reason"},
	)

	stopModificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fx_bot_stop_modifications_total",
			Help: "Stop-loss modifications by lifecycle phase",
		},
		[]string{"phase"},
	)

	// Account metrics
	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fx_bot_open_positions",
			Help: "Number of currently tracked open positions",
		},
	)

	accountEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fx_bot_account_equity",
			Help: "Current account equity",
		},
	)

	drawdownPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fx_bot_drawdown_percent",
			Help: "Drawdown from the daily peak equity",
		},
	)

	// Loop metrics
	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fx_bot_cycle_duration_seconds",
			Help:    "Duration of one orchestration cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	reconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fx_bot_reconnects_total",
			Help: "Gateway reconnection sequences triggered",
		},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fx_bot_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(skipsTotal)
	prometheus.MustRegister(stopModificationsTotal)
	prometheus.MustRegister(openPositions)
	prometheus.MustRegister(accountEquity)
	prometheus.MustRegister(drawdownPercent)
	prometheus.MustRegister(cycleDuration)
	prometheus.MustRegister(reconnectsTotal)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles the Prometheus metrics endpoint
type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTrade records an opened position
func RecordTrade(symbol, direction string) {
	tradesTotal.WithLabelValues(symbol, direction).Inc()
}

// RecordSkip records a skipped symbol by reason
func RecordSkip(reason string) {
	skipsTotal.WithLabelValues(reason).Inc()
}

// RecordStopModification records a breakeven or trailing stop move
func RecordStopModification(phase string) {
	stopModificationsTotal.WithLabelValues(phase).Inc()
}

// UpdateOpenPositions updates the tracked position count
func UpdateOpenPositions(count int) {
	openPositions.Set(float64(count))
}

// UpdateAccount updates equity and drawdown gauges
func UpdateAccount(equity, drawdown float64) {
	accountEquity.Set(equity)
	drawdownPercent.Set(drawdown)
}

// ObserveCycleDuration records one cycle's wall time
func ObserveCycleDuration(seconds float64) {
	cycleDuration.Observe(seconds)
}

// RecordReconnect records a reconnection sequence
func RecordReconnect() {
	reconnectsTotal.Inc()
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
