package signal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-scalper-bot/internal/broker"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		sig     *Signal
		entry   float64
		wantErr bool
	}{
		{
			name:  "valid buy",
			sig:   &Signal{Symbol: "EURUSD", Direction: broker.DirectionBuy, StopPrice: 1.0970, TakeProfitPrice: 1.1060},
			entry: 1.1000,
		},
		{
			name:  "valid sell",
			sig:   &Signal{Symbol: "EURUSD", Direction: broker.DirectionSell, StopPrice: 1.1030, TakeProfitPrice: 1.0940},
			entry: 1.1000,
		},
		{
			name:  "valid buy without take profit",
			sig:   &Signal{Symbol: "EURUSD", Direction: broker.DirectionBuy, StopPrice: 1.0970},
			entry: 1.1000,
		},
		{
			name:    "buy stop above entry",
			sig:     &Signal{Symbol: "EURUSD", Direction: broker.DirectionBuy, StopPrice: 1.1030},
			entry:   1.1000,
			wantErr: true,
		},
		{
			name:    "buy stop equals entry",
			sig:     &Signal{Symbol: "EURUSD", Direction: broker.DirectionBuy, StopPrice: 1.1000},
			entry:   1.1000,
			wantErr: true,
		},
		{
			name:    "sell stop below entry",
			sig:     &Signal{Symbol: "EURUSD", Direction: broker.DirectionSell, StopPrice: 1.0970},
			entry:   1.1000,
			wantErr: true,
		},
		{
			name:    "buy take profit below entry",
			sig:     &Signal{Symbol: "EURUSD", Direction: broker.DirectionBuy, StopPrice: 1.0970, TakeProfitPrice: 1.0990},
			entry:   1.1000,
			wantErr: true,
		},
		{
			name:    "missing stop",
			sig:     &Signal{Symbol: "EURUSD", Direction: broker.DirectionBuy},
			entry:   1.1000,
			wantErr: true,
		},
		{
			name:    "nil signal",
			sig:     nil,
			entry:   1.1000,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.sig, tt.entry)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeriveTakeProfit_Buy(t *testing.T) {
	sig := &Signal{Symbol: "EURUSD", Direction: broker.DirectionBuy, StopPrice: 1.0970}

	// Stop distance 30 pips, reward ratio 4.0/2.0 = 2x.
	out := DeriveTakeProfit(sig, 1.1000, 4.0, 2.0)

	require.NotNil(t, out)
	assert.InDelta(t, 1.1060, out.TakeProfitPrice, 1e-9)
	assert.Zero(t, sig.TakeProfitPrice, "input signal must not be mutated")
}

func TestDeriveTakeProfit_Sell(t *testing.T) {
	sig := &Signal{Symbol: "EURUSD", Direction: broker.DirectionSell, StopPrice: 1.1030}

	out := DeriveTakeProfit(sig, 1.1000, 4.0, 2.0)

	require.NotNil(t, out)
	assert.InDelta(t, 1.0940, out.TakeProfitPrice, 1e-9)
}

func TestDeriveTakeProfit_ExistingTakeProfitKept(t *testing.T) {
	sig := &Signal{Symbol: "EURUSD", Direction: broker.DirectionBuy, StopPrice: 1.0970, TakeProfitPrice: 1.1100}

	out := DeriveTakeProfit(sig, 1.1000, 4.0, 2.0)
	assert.InDelta(t, 1.1100, out.TakeProfitPrice, 1e-9)
}

type stubProvider struct {
	sig *Signal
	err error
}

func (s *stubProvider) Evaluate(ctx context.Context, symbol string) (*Signal, error) {
	return s.sig, s.err
}

type stubSentiment struct {
	score float64
	err   error
}

func (s *stubSentiment) Score(ctx context.Context, symbol string) (float64, error) {
	return s.score, s.err
}

func TestComposite_PassesAgreeingSentiment(t *testing.T) {
	buy := &Signal{Symbol: "EURUSD", Direction: broker.DirectionBuy, StopPrice: 1.0970}
	c := NewComposite(&stubProvider{sig: buy}, &stubSentiment{score: 0.6}, 0.3)

	out, err := c.Evaluate(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, buy, out)
}

func TestComposite_DropsWeakSentiment(t *testing.T) {
	buy := &Signal{Symbol: "EURUSD", Direction: broker.DirectionBuy, StopPrice: 1.0970}
	c := NewComposite(&stubProvider{sig: buy}, &stubSentiment{score: 0.1}, 0.3)

	out, err := c.Evaluate(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestComposite_DropsDisagreeingSentiment(t *testing.T) {
	buy := &Signal{Symbol: "EURUSD", Direction: broker.DirectionBuy, StopPrice: 1.0970}
	c := NewComposite(&stubProvider{sig: buy}, &stubSentiment{score: -0.8}, 0.3)

	out, err := c.Evaluate(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestComposite_SentimentFailureDoesNotBlockSignal(t *testing.T) {
	buy := &Signal{Symbol: "EURUSD", Direction: broker.DirectionBuy, StopPrice: 1.0970}
	c := NewComposite(&stubProvider{sig: buy}, &stubSentiment{err: errors.New("feed down")}, 0.3)

	out, err := c.Evaluate(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, buy, out)
}

func TestComposite_PropagatesPrimaryError(t *testing.T) {
	c := NewComposite(&stubProvider{err: errors.New("boom")}, &stubSentiment{score: 0.9}, 0.3)

	out, err := c.Evaluate(context.Background(), "EURUSD")
	assert.Error(t, err)
	assert.Nil(t, out)
}

func TestComposite_NoOpinionPassesThrough(t *testing.T) {
	c := NewComposite(&stubProvider{}, &stubSentiment{score: 0.9}, 0.3)

	out, err := c.Evaluate(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Nil(t, out)
}
