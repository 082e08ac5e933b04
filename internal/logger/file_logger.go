package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger represents a file logger for trading activities
type Logger struct {
	tag       string
	logFile   *os.File
	logger    *log.Logger
	mu        sync.Mutex
	logDir    string
	logPath   string
	debugMode bool
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
	LogLevelDebug   LogLevel = "DEBUG"
)

// NewLogger creates a new file logger tagged with the engine identifier
func NewLogger(tag string) (*Logger, error) {
	return NewLoggerWithDebug(tag, false)
}

// NewLoggerWithDebug creates a new file logger with optional debug output
func NewLoggerWithDebug(tag string, debugMode bool) (*Logger, error) {
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", tag, timestamp)
	logPath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		tag:       tag,
		logFile:   file,
		logger:    log.New(file, "", 0),
		logDir:    logDir,
		logPath:   logPath,
		debugMode: debugMode,
	}

	l.writeSessionHeader()

	return l, nil
}

// writeSessionHeader writes a session start header to the log
func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
🚀 TRADING SESSION STARTED
================================================================================
Engine Tag: %s
Started: %s
================================================================================
`, l.tag, time.Now().Format("2006-01-02 15:04:05"))

	l.logger.Print(header)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	l.logger.Println(fmt.Sprintf("[%s] [%s] %s", timestamp, level, message))
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs market status information
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogWarning logs a warning with a component prefix
func (l *Logger) LogWarning(component, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.Log(LogLevelWarning, "%s: %s", component, message)
}

// LogDebugOnly logs only when debug mode is enabled
func (l *Logger) LogDebugOnly(format string, args ...interface{}) {
	if !l.debugMode {
		return
	}
	l.Log(LogLevelDebug, format, args...)
}

// LogTradeOpened logs the full details of a newly opened position
func (l *Logger) LogTradeOpened(ticket, symbol, direction string, volume, entry, stop, takeProfit float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	entry2 := fmt.Sprintf(`
[%s] [TRADE] ==================== TRADE OPENED ====================
📈 %s %s | Volume: %.2f lots
💵 Entry: %.5f | SL: %.5f | TP: %.5f
🎫 Ticket: %s`,
		timestamp, symbol, direction, volume, entry, stop, takeProfit, ticket)

	l.logger.Println(entry2)
}

// LogStopModified logs a stop-loss move with its trigger
func (l *Logger) LogStopModified(ticket, symbol, reason string, oldStop, newStop float64) {
	l.Trade("🛡️ Stop moved for #%s (%s): %.5f → %.5f [%s]", ticket, symbol, oldStop, newStop, reason)
}

// LogPositionClosed logs a position leaving the tracked set
func (l *Logger) LogPositionClosed(ticket, symbol string, profit float64) {
	if profit >= 0 {
		l.Trade("✅ Position #%s (%s) closed: +$%.2f", ticket, symbol, profit)
	} else {
		l.Trade("🔻 Position #%s (%s) closed: -$%.2f", ticket, symbol, -profit)
	}
}

// LogSkip logs a per-symbol skip decision for the cycle
func (l *Logger) LogSkip(symbol, reason string) {
	l.Info("⏸️ %s skipped: %s", symbol, reason)
}

// LogCycleSummary logs the outcome counts for a completed cycle
func (l *Logger) LogCycleSummary(opened, skipped, errored int, duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	summary := fmt.Sprintf(`
[%s] [STATUS] ==================== CYCLE COMPLETE ====================
🟢 Opened: %d | ⏸️ Skipped: %d | 🔴 Errors: %d
⏱️ Duration: %s`,
		timestamp, opened, skipped, errored, duration.Round(time.Millisecond))

	l.logger.Println(summary)
}

// LogDailyLedger logs the current daily risk ledger state
func (l *Logger) LogDailyLedger(trades int, profit, loss, peakEquity, drawdown float64) {
	l.Status("📒 Daily ledger: trades=%d profit=$%.2f loss=$%.2f peak=$%.2f drawdown=%.2f%%",
		trades, profit, loss, peakEquity, drawdown)
}

// GetLogPath returns the path of the current log file
func (l *Logger) GetLogPath() string {
	return l.logPath
}

// Close closes the underlying log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}
