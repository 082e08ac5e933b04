package notifications

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type TelegramNotifier struct {
	token  string
	chatID string
	client *http.Client
	apiURL string
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
		apiURL: "https://api.telegram.org",
	}
}

func (t *TelegramNotifier) SendAlert(level, message string) error {
	emoji := "ℹ️"
	switch level {
	case "warning":
		emoji = "⚠️"
	case "error":
		emoji = "🚨"
	case "success":
		emoji = "✅"
	}

	text := fmt.Sprintf("%s *FX Scalper Alert*\n\n%s", emoji, message)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)

	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", text)
	data.Set("parse_mode", "Markdown")

	resp, err := t.client.Post(endpoint, "application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// NotifyTradeOpened sends a success alert describing a freshly opened position.
func NotifyTradeOpened(n Notifier, symbol, direction string, volume, entry, stop, takeProfit float64) {
	if n == nil {
		return
	}
	msg := fmt.Sprintf("Opened %s %s\nVolume: %.2f\nEntry: %.5f\nStop: %.5f\nTake profit: %.5f",
		direction, symbol, volume, entry, stop, takeProfit)
	_ = n.SendAlert("success", msg)
}

// NotifyTradeClosed sends an alert for a settled position.
func NotifyTradeClosed(n Notifier, symbol string, profit float64) {
	if n == nil {
		return
	}
	level := "success"
	if profit < 0 {
		level = "warning"
	}
	_ = n.SendAlert(level, fmt.Sprintf("Closed %s with P/L %.2f", symbol, profit))
}

// NotifyRiskHalt sends an error alert when trading is halted by a risk limit.
func NotifyRiskHalt(n Notifier, reason string) {
	if n == nil {
		return
	}
	_ = n.SendAlert("error", fmt.Sprintf("Trading halted: %s", reason))
}

// NotifyConnectionLost sends an error alert when reconnection attempts run out.
func NotifyConnectionLost(n Notifier, attempts int) {
	if n == nil {
		return
	}
	_ = n.SendAlert("error", fmt.Sprintf("Broker connection lost after %d reconnect attempts", attempts))
}
