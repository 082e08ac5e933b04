package bybit

import (
	"context"
	"strconv"

	"fx-scalper-bot/internal/broker"
)

// GetAccountSnapshot reads the unified account's current equity and wallet
// balance. Read fresh every cycle; sizing must never work from a stale
// snapshot.
func (g *Gateway) GetAccountSnapshot(ctx context.Context) (*broker.AccountSnapshot, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
	}

	var snapshot *broker.AccountSnapshot
	err := g.call(ctx, func() error {
		return withRetry(ctx, defaultRetryConfig(), func() error {
			result, err := g.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
			if err != nil {
				return err
			}
			serverResp, err := checkResponse(result)
			if err != nil {
				return err
			}

			var walletResult struct {
				List []struct {
					TotalEquity        string `json:"totalEquity"`
					TotalWalletBalance string `json:"totalWalletBalance"`
				} `json:"list"`
			}
			if err := decodeResult(serverResp, &walletResult); err != nil {
				return err
			}
			if len(walletResult.List) == 0 {
				return &apiError{Code: -1, Msg: "no account data in wallet response"}
			}

			account := walletResult.List[0]
			snapshot = &broker.AccountSnapshot{
				Equity:  parseFloat(account.TotalEquity),
				Balance: parseFloat(account.TotalWalletBalance),
			}
			return nil
		})
	})
	if err != nil {
		return nil, classifyDataErr("account snapshot", "", err)
	}
	return snapshot, nil
}

// parseFloat converts Bybit's string-encoded numbers; empty strings are zero.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseMillis converts a millisecond-epoch string to a time value.
func parseMillis(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
