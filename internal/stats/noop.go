package stats

import "time"

// NoopRecorder is used when persistence is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordTrade(_ *TradeEvent) error { return nil }

func (n *NoopRecorder) Summarize(period string, at time.Time) (*Summary, error) {
	from, to, err := periodBounds(period, at)
	if err != nil {
		return nil, err
	}
	return &Summary{Period: period, From: from, To: to}, nil
}

func (n *NoopRecorder) Close() error { return nil }
