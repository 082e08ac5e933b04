package bybit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fx-scalper-bot/internal/broker"
)

// One-way position mode: Bybit keeps at most one position per symbol, so the
// symbol doubles as the position ticket across the gateway surface.

func sideFor(d broker.Direction) string {
	if d == broker.DirectionSell {
		return "Sell"
	}
	return "Buy"
}

func directionFromSide(side string) broker.Direction {
	if side == "Sell" {
		return broker.DirectionSell
	}
	return broker.DirectionBuy
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SubmitMarketOrder places a market order with the protective stop and take
// profit attached, then reads the resulting position back for the confirmed
// entry price.
func (g *Gateway) SubmitMarketOrder(ctx context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	tag := req.Tag
	if tag == "" {
		tag = g.config.EngineTag
	}
	orderLinkID := fmt.Sprintf("%s-%s-%d", tag, req.Symbol, time.Now().UnixNano())

	params := map[string]interface{}{
		"category":    g.config.Category,
		"symbol":      req.Symbol,
		"side":        sideFor(req.Direction),
		"orderType":   "Market",
		"qty":         formatQty(req.Volume),
		"orderLinkId": orderLinkID,
	}
	if req.StopPrice > 0 {
		params["stopLoss"] = formatPrice(req.StopPrice)
	}
	if req.TakeProfitPrice > 0 {
		params["takeProfit"] = formatPrice(req.TakeProfitPrice)
	}

	err := g.call(ctx, func() error {
		result, err := g.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
		if err != nil {
			return err
		}
		_, err = checkResponse(result)
		return err
	})
	if err != nil {
		if isTransportErr(err) {
			return nil, &broker.TransientError{Op: "place order", Err: err}
		}
		code := 0
		msg := err.Error()
		if apiErr, ok := err.(*apiError); ok {
			code = apiErr.Code
			msg = apiErr.Msg
		}
		return nil, &broker.OrderRejectedError{Request: req, Code: code, Response: msg}
	}

	// The fill confirmation comes from the position the order created.
	pos, err := g.positionForSymbol(ctx, req.Symbol)
	if err != nil {
		return nil, &broker.TransientError{Op: "confirm fill", Err: err}
	}
	if pos == nil {
		return nil, &broker.OrderRejectedError{Request: req, Response: "order accepted but no position reported"}
	}

	return &broker.OrderResult{
		Ticket:     pos.Ticket,
		Symbol:     pos.Symbol,
		Direction:  pos.Direction,
		Volume:     pos.Volume,
		EntryPrice: pos.EntryPrice,
		FilledAt:   time.Now(),
	}, nil
}

// ModifyStop moves the position's stop loss. Bybit reports an unchanged stop
// as an error code; that case is treated as success since the desired state
// already holds.
func (g *Gateway) ModifyStop(ctx context.Context, ticket string, symbol string, newStop float64) error {
	params := map[string]interface{}{
		"category":    g.config.Category,
		"symbol":      symbol,
		"positionIdx": 0,
		"stopLoss":    formatPrice(newStop),
	}

	err := g.call(ctx, func() error {
		result, err := g.httpClient.NewUtaBybitServiceWithParams(params).SetPositionTradingStop(ctx)
		if err != nil {
			return err
		}
		_, err = checkResponse(result)
		return err
	})
	if err != nil {
		if apiErr, ok := err.(*apiError); ok && apiErr.Code == codeStopUnchanged {
			return nil
		}
		if isTransportErr(err) {
			return &broker.TransientError{Op: "modify stop", Err: err}
		}
		return fmt.Errorf("modify stop for %s: %w", symbol, err)
	}
	return nil
}

// ClosePosition flattens the position with a reduce-only market order in the
// opposite direction.
func (g *Gateway) ClosePosition(ctx context.Context, ticket string, symbol string) error {
	pos, err := g.positionForSymbol(ctx, symbol)
	if err != nil {
		return &broker.TransientError{Op: "close position", Err: err}
	}
	if pos == nil {
		// Already flat.
		return nil
	}

	closeSide := "Sell"
	if pos.Direction == broker.DirectionSell {
		closeSide = "Buy"
	}

	params := map[string]interface{}{
		"category":   g.config.Category,
		"symbol":     symbol,
		"side":       closeSide,
		"orderType":  "Market",
		"qty":        formatQty(pos.Volume),
		"reduceOnly": true,
	}

	err = g.call(ctx, func() error {
		result, err := g.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
		if err != nil {
			return err
		}
		_, err = checkResponse(result)
		return err
	})
	if err != nil {
		if isTransportErr(err) {
			return &broker.TransientError{Op: "close position", Err: err}
		}
		return fmt.Errorf("close position %s: %w", symbol, err)
	}
	return nil
}

// ListOpenPositions returns every non-flat position in the category.
func (g *Gateway) ListOpenPositions(ctx context.Context) ([]broker.Position, error) {
	params := map[string]interface{}{
		"category":   g.config.Category,
		"settleCoin": "USDT",
	}

	var positions []broker.Position
	err := g.call(ctx, func() error {
		return withRetry(ctx, defaultRetryConfig(), func() error {
			result, err := g.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
			if err != nil {
				return err
			}
			serverResp, err := checkResponse(result)
			if err != nil {
				return err
			}

			var positionResult struct {
				List []positionRow `json:"list"`
			}
			if err := decodeResult(serverResp, &positionResult); err != nil {
				return err
			}

			positions = positions[:0]
			for _, row := range positionResult.List {
				size := parseFloat(row.Size)
				if size <= 0 {
					continue
				}
				positions = append(positions, row.toPosition(size))
			}
			return nil
		})
	})
	if err != nil {
		return nil, classifyDataErr("list positions", "", err)
	}
	return positions, nil
}

type positionRow struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	AvgPrice      string `json:"avgPrice"`
	StopLoss      string `json:"stopLoss"`
	TakeProfit    string `json:"takeProfit"`
	UnrealisedPnl string `json:"unrealisedPnl"`
	CreatedTime   string `json:"createdTime"`
}

func (row positionRow) toPosition(size float64) broker.Position {
	return broker.Position{
		Ticket:          row.Symbol,
		Symbol:          row.Symbol,
		Direction:       directionFromSide(row.Side),
		Volume:          size,
		EntryPrice:      parseFloat(row.AvgPrice),
		StopPrice:       parseFloat(row.StopLoss),
		TakeProfitPrice: parseFloat(row.TakeProfit),
		UnrealizedPnL:   parseFloat(row.UnrealisedPnl),
		OpenedAt:        time.UnixMilli(parseMillis(row.CreatedTime)),
	}
}

// positionForSymbol returns the open position for one symbol, or nil when
// flat.
func (g *Gateway) positionForSymbol(ctx context.Context, symbol string) (*broker.Position, error) {
	params := map[string]interface{}{
		"category": g.config.Category,
		"symbol":   symbol,
	}

	var pos *broker.Position
	err := g.call(ctx, func() error {
		return withRetry(ctx, defaultRetryConfig(), func() error {
			result, err := g.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
			if err != nil {
				return err
			}
			serverResp, err := checkResponse(result)
			if err != nil {
				return err
			}

			var positionResult struct {
				List []positionRow `json:"list"`
			}
			if err := decodeResult(serverResp, &positionResult); err != nil {
				return err
			}

			pos = nil
			for _, row := range positionResult.List {
				size := parseFloat(row.Size)
				if size <= 0 {
					continue
				}
				p := row.toPosition(size)
				pos = &p
				return nil
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return pos, nil
}

// ListClosedDeals returns realized results from the closed P&L history in
// the given window.
func (g *Gateway) ListClosedDeals(ctx context.Context, from, to time.Time) ([]broker.Deal, error) {
	params := map[string]interface{}{
		"category":  g.config.Category,
		"startTime": from.UnixMilli(),
		"endTime":   to.UnixMilli(),
		"limit":     100,
	}

	var deals []broker.Deal
	err := g.call(ctx, func() error {
		return withRetry(ctx, defaultRetryConfig(), func() error {
			result, err := g.httpClient.NewUtaBybitServiceWithParams(params).GetClosePnl(ctx)
			if err != nil {
				return err
			}
			serverResp, err := checkResponse(result)
			if err != nil {
				return err
			}

			var pnlResult struct {
				List []struct {
					Symbol       string `json:"symbol"`
					Side         string `json:"side"`
					Qty          string `json:"qty"`
					AvgExitPrice string `json:"avgExitPrice"`
					ClosedPnl    string `json:"closedPnl"`
					UpdatedTime  string `json:"updatedTime"`
					OrderLinkId  string `json:"orderLinkId"`
				} `json:"list"`
			}
			if err := decodeResult(serverResp, &pnlResult); err != nil {
				return err
			}

			deals = deals[:0]
			for _, row := range pnlResult.List {
				// Closed P&L rows report the closing side; the opened
				// direction is the opposite.
				openedDir := broker.DirectionBuy
				if directionFromSide(row.Side) == broker.DirectionBuy {
					openedDir = broker.DirectionSell
				}
				deals = append(deals, broker.Deal{
					Ticket:    row.Symbol,
					Symbol:    row.Symbol,
					Direction: openedDir,
					Volume:    parseFloat(row.Qty),
					Price:     parseFloat(row.AvgExitPrice),
					Profit:    parseFloat(row.ClosedPnl),
					ClosedAt:  time.UnixMilli(parseMillis(row.UpdatedTime)),
					Tag:       row.OrderLinkId,
				})
			}
			return nil
		})
	})
	if err != nil {
		return nil, classifyDataErr("closed deals", "", err)
	}
	return deals, nil
}
