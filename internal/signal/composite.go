package signal

import (
	"context"
	"fmt"
	"math"
)

// Composite wraps a primary provider with a sentiment gate: signals are
// dropped when the sentiment score is too weak or disagrees with the signal
// direction. A failing sentiment source does not block the primary signal.
type Composite struct {
	primary   Provider
	sentiment SentimentSource
	threshold float64 // Minimum |score| for a signal to pass
}

// NewComposite builds a sentiment-gated provider. A nil sentiment source
// passes every primary signal through.
func NewComposite(primary Provider, sentiment SentimentSource, threshold float64) *Composite {
	return &Composite{primary: primary, sentiment: sentiment, threshold: threshold}
}

// Evaluate pulls the primary signal and applies the sentiment gate.
func (c *Composite) Evaluate(ctx context.Context, symbol string) (*Signal, error) {
	sig, err := c.primary.Evaluate(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("primary provider: %w", err)
	}
	if sig == nil || c.sentiment == nil {
		return sig, nil
	}

	score, err := c.sentiment.Score(ctx, symbol)
	if err != nil {
		// Sentiment is a secondary opinion; when it is unavailable the
		// primary signal stands on its own.
		return sig, nil
	}

	if math.Abs(score) < c.threshold {
		return nil, nil
	}
	if score*sig.Direction.Sign() < 0 {
		// Sentiment actively disagrees with the direction.
		return nil, nil
	}
	return sig, nil
}
