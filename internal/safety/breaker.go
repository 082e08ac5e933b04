package safety

import (
	"fmt"
	"sync"
	"time"

	"fx-scalper-bot/internal/broker"
)

// BreakerState represents the state of a circuit breaker
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig holds circuit breaker tuning.
type BreakerConfig struct {
	FailureThreshold uint32        // Consecutive trips before opening
	SuccessThreshold uint32        // Successes in half-open before closing
	Cooldown         time.Duration // Time open before allowing a probe
}

// Breaker protects broker calls from hammering a broken connection. Only
// transport-level failures trip it: policy rejections and bad-data errors
// are normal outcomes and pass through without counting.
type Breaker struct {
	config BreakerConfig
	name   string
	trips  func(error) bool

	mu          sync.Mutex
	state       BreakerState
	failures    uint32
	successes   uint32
	nextAttempt time.Time

	onStateChange func(from, to BreakerState)
	now           func() time.Time
}

// NewBreaker creates a circuit breaker. Zero config fields get defaults.
// By default only transient gateway errors count as failures.
func NewBreaker(name string, config BreakerConfig) *Breaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}
	if config.Cooldown == 0 {
		config.Cooldown = 30 * time.Second
	}
	return &Breaker{
		config: config,
		name:   name,
		state:  BreakerClosed,
		trips:  broker.IsTransient,
		now:    time.Now,
	}
}

// SetStateChangeCallback registers a callback fired on state transitions.
func (b *Breaker) SetStateChangeCallback(fn func(from, to BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Call runs fn under breaker protection. When the breaker is open the call
// is refused with a transient error so the caller's reconnect/skip handling
// applies.
func (b *Breaker) Call(fn func() error) error {
	if !b.allow() {
		return &broker.TransientError{
			Op:  b.name,
			Err: fmt.Errorf("circuit breaker open until %s", b.nextProbe().Format(time.RFC3339)),
		}
	}

	err := fn()
	if err != nil && b.trips(err) {
		b.recordFailure()
		return err
	}
	if err == nil {
		b.recordSuccess()
	}
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) nextProbe() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextAttempt
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if b.now().After(b.nextAttempt) {
			b.transition(BreakerHalfOpen)
			b.successes = 0
			return true
		}
		return false
	}
	return false
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == BreakerHalfOpen {
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transition(BreakerClosed)
		}
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.state {
	case BreakerClosed:
		if b.failures >= b.config.FailureThreshold {
			b.open()
		}
	case BreakerHalfOpen:
		// A failed probe reopens immediately.
		b.open()
	case BreakerOpen:
		b.nextAttempt = b.now().Add(b.config.Cooldown)
	}
}

func (b *Breaker) open() {
	b.transition(BreakerOpen)
	b.nextAttempt = b.now().Add(b.config.Cooldown)
	b.successes = 0
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == BreakerClosed {
		b.failures = 0
		b.successes = 0
	}
	if b.onStateChange != nil {
		// Fired in a goroutine so callbacks cannot deadlock on the breaker.
		go b.onStateChange(from, to)
	}
}
