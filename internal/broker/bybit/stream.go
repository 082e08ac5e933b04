package bybit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fx-scalper-bot/internal/broker"
	"fx-scalper-bot/internal/logger"
)

// quoteStream keeps a last-quote cache warm from Bybit's public ticker
// stream so the supervisor does not burn REST quota every cycle.
type quoteStream struct {
	url     string
	symbols []string
	log     *logger.Logger

	mu     sync.RWMutex
	quotes map[string]broker.Quote

	conn     *websocket.Conn
	stopChan chan struct{}
	running  bool
}

func newQuoteStream(url string, symbols []string, log *logger.Logger) *quoteStream {
	return &quoteStream{
		url:     url,
		symbols: symbols,
		log:     log,
		quotes:  make(map[string]broker.Quote),
	}
}

// Start dials the public stream and subscribes to tickers for all symbols.
func (s *quoteStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(s.url, nil)
	if err != nil {
		return fmt.Errorf("dial quote stream: %w", err)
	}

	args := make([]string, 0, len(s.symbols))
	for _, symbol := range s.symbols {
		args = append(args, "tickers."+symbol)
	}
	sub := map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe tickers: %w", err)
	}

	s.conn = conn
	s.stopChan = make(chan struct{})
	s.running = true

	go s.readLoop(conn, s.stopChan)
	go s.pingLoop(conn, s.stopChan)
	return nil
}

// Stop closes the connection and halts the read loop. Cached quotes remain
// readable but age out through the staleness bound.
func (s *quoteStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopChan)
	s.conn.Close()
	s.conn = nil
}

// Quote returns the cached quote for a symbol, if any.
func (s *quoteStream) Quote(symbol string) (*broker.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return nil, false
	}
	copied := q
	return &copied, true
}

func (s *quoteStream) readLoop(conn *websocket.Conn, stop chan struct{}) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-stop:
				return
			default:
			}
			s.log.LogWarning("QuoteStream", "read failed, reconnecting: %v", err)
			s.reconnect()
			return
		}
		s.handleMessage(message)
	}
}

func (s *quoteStream) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ping := map[string]interface{}{"op": "ping"}
			if err := conn.WriteJSON(ping); err != nil {
				return
			}
		}
	}
}

func (s *quoteStream) reconnect() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.conn.Close()
	s.conn = nil
	s.mu.Unlock()

	time.Sleep(5 * time.Second)
	if err := s.Start(); err != nil {
		s.log.LogWarning("QuoteStream", "reconnect failed: %v", err)
	}
}

// tickerMessage is the subset of the tickers topic payload the cache needs.
// Snapshot frames carry all fields; delta frames omit unchanged ones.
type tickerMessage struct {
	Topic string `json:"topic"`
	Data  struct {
		Symbol    string `json:"symbol"`
		Bid1Price string `json:"bid1Price"`
		Ask1Price string `json:"ask1Price"`
	} `json:"data"`
}

func (s *quoteStream) handleMessage(message []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if msg.Data.Symbol == "" {
		return
	}

	bid := parseFloat(msg.Data.Bid1Price)
	ask := parseFloat(msg.Data.Ask1Price)

	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.quotes[msg.Data.Symbol]
	if bid > 0 {
		q.Bid = bid
	}
	if ask > 0 {
		q.Ask = ask
	}
	if q.Bid > 0 && q.Ask > 0 {
		q.Timestamp = time.Now()
		s.quotes[msg.Data.Symbol] = q
	}
}
