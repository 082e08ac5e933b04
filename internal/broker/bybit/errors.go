package bybit

import (
	"encoding/json"
	"fmt"
	"strings"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"fx-scalper-bot/internal/broker"
)

// Bybit v5 return codes the gateway branches on.
const (
	codeRateLimitExceeded   = 10006
	codeOrderNotFound       = 110001
	codeInsufficientBalance = 110007
	codeSymbolNotFound      = 110009
	codeInvalidQuantity     = 110020
	codeInvalidPrice        = 110021
	codeMarketClosed        = 110043
	codeStopUnchanged       = 34040
)

// apiError carries a non-zero Bybit return code.
type apiError struct {
	Code int
	Msg  string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("bybit API error %d: %s", e.Code, e.Msg)
}

func isRetryableCode(code int) bool {
	switch code {
	case codeRateLimitExceeded, 500, 502, 503, 504:
		return true
	}
	return false
}

// checkResponse asserts the SDK response shape and turns a non-zero return
// code into an apiError.
func checkResponse(response interface{}) (*bybit_api.ServerResponse, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type %T", response)
	}
	if serverResp.RetCode != 0 {
		return nil, &apiError{Code: serverResp.RetCode, Msg: serverResp.RetMsg}
	}
	return serverResp, nil
}

// decodeResult unpacks the untyped Result payload into v. The SDK hands back
// map[string]interface{}, so this goes through json once.
func decodeResult(serverResp *bybit_api.ServerResponse, v interface{}) error {
	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(resultBytes, v); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return nil
}

// classifyDataErr maps a market/account read failure onto the gateway error
// taxonomy: connectivity problems are transient, everything else is bad data
// for the symbol.
func classifyDataErr(op, symbol string, err error) error {
	if err == nil {
		return nil
	}
	if isTransportErr(err) {
		return &broker.TransientError{Op: op, Err: err}
	}
	return &broker.DataError{Symbol: symbol, Op: op, Err: err}
}

// isTransportErr reports whether err looks like a connectivity or rate-limit
// failure rather than a broker-side refusal.
func isTransportErr(err error) bool {
	if apiErr, ok := err.(*apiError); ok {
		return isRetryableCode(apiErr.Code)
	}
	msg := err.Error()
	for _, marker := range []string{"timeout", "connection refused", "connection reset", "EOF", "no such host", "context deadline"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
