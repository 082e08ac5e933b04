package broker

import (
	"errors"
	"fmt"
)

// TransientError marks a gateway failure that the orchestrator may recover
// from by reconnecting (timeouts, dropped connections, rate limits).
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient gateway error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// DataError marks missing or malformed broker data (no quote, unknown symbol,
// bad history). The affected symbol is skipped for the cycle, never fatal.
type DataError struct {
	Symbol string
	Op     string
	Err    error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error for %s during %s: %v", e.Symbol, e.Op, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// OrderRejectedError carries the full request and the broker's response for an
// order the broker refused. Not retried within the same cycle.
type OrderRejectedError struct {
	Request  OrderRequest
	Code     int
	Response string
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("order rejected for %s %s vol=%.2f sl=%.5f: code=%d %s",
		e.Request.Symbol, e.Request.Direction, e.Request.Volume, e.Request.StopPrice, e.Code, e.Response)
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsDataError reports whether err is (or wraps) a DataError.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// IsOrderRejected reports whether err is (or wraps) an OrderRejectedError.
func IsOrderRejected(err error) bool {
	var re *OrderRejectedError
	return errors.As(err, &re)
}
