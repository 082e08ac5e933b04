package bybit

import (
	"context"
	"time"

	"fx-scalper-bot/internal/broker"
	"fx-scalper-bot/pkg/types"
)

// GetQuote returns the current bid/ask for a symbol, served from the
// websocket cache when fresh and from the REST ticker otherwise.
func (g *Gateway) GetQuote(ctx context.Context, symbol string) (*broker.Quote, error) {
	if g.stream != nil {
		if q, ok := g.stream.Quote(symbol); ok && time.Since(q.Timestamp) < g.config.QuoteMaxAge {
			return q, nil
		}
	}

	params := map[string]interface{}{
		"category": g.config.Category,
		"symbol":   symbol,
	}

	var quote *broker.Quote
	err := g.dataBreaker.Call(func() error {
		return g.call(ctx, func() error {
			return withRetry(ctx, defaultRetryConfig(), func() error {
				result, err := g.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
				if err != nil {
					return err
				}
				serverResp, err := checkResponse(result)
				if err != nil {
					return err
				}

				var tickerResult struct {
					List []struct {
						Symbol    string `json:"symbol"`
						Bid1Price string `json:"bid1Price"`
						Ask1Price string `json:"ask1Price"`
					} `json:"list"`
				}
				if err := decodeResult(serverResp, &tickerResult); err != nil {
					return err
				}
				if len(tickerResult.List) == 0 {
					return &apiError{Code: -1, Msg: "empty ticker list"}
				}

				t := tickerResult.List[0]
				quote = &broker.Quote{
					Bid:       parseFloat(t.Bid1Price),
					Ask:       parseFloat(t.Ask1Price),
					Timestamp: time.Now(),
				}
				return nil
			})
		})
	})
	if err != nil {
		return nil, classifyDataErr("quote", symbol, err)
	}
	if quote.Bid <= 0 || quote.Ask <= 0 {
		return nil, &broker.DataError{Symbol: symbol, Op: "quote", Err: &apiError{Code: -1, Msg: "zero bid or ask"}}
	}
	return quote, nil
}

// GetKlines fetches recent candles in chronological order. Bybit returns
// newest first, so the list is reversed before handing it out.
func (g *Gateway) GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]types.OHLCV, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}

	params := map[string]interface{}{
		"category": g.config.Category,
		"symbol":   symbol,
		"interval": interval,
		"limit":    limit,
	}

	var candles []types.OHLCV
	err := g.dataBreaker.Call(func() error {
		return g.call(ctx, func() error {
			return withRetry(ctx, defaultRetryConfig(), func() error {
				result, err := g.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
				if err != nil {
					return err
				}
				serverResp, err := checkResponse(result)
				if err != nil {
					return err
				}

				var klineResult struct {
					List [][]string `json:"list"`
				}
				if err := decodeResult(serverResp, &klineResult); err != nil {
					return err
				}

				candles = candles[:0]
				// Format: [startTime, open, high, low, close, volume, turnover]
				for i := len(klineResult.List) - 1; i >= 0; i-- {
					row := klineResult.List[i]
					if len(row) < 6 {
						continue
					}
					candles = append(candles, types.OHLCV{
						Timestamp: time.UnixMilli(parseMillis(row[0])),
						Open:      parseFloat(row[1]),
						High:      parseFloat(row[2]),
						Low:       parseFloat(row[3]),
						Close:     parseFloat(row[4]),
						Volume:    parseFloat(row[5]),
					})
				}
				return nil
			})
		})
	})
	if err != nil {
		return nil, classifyDataErr("klines", symbol, err)
	}
	if len(candles) == 0 {
		return nil, &broker.DataError{Symbol: symbol, Op: "klines", Err: &apiError{Code: -1, Msg: "empty kline list"}}
	}
	return candles, nil
}

// GetInstrumentMeta returns the contract parameters for sizing. Instrument
// filters change rarely, so results are cached for the process lifetime.
func (g *Gateway) GetInstrumentMeta(ctx context.Context, symbol string) (*broker.InstrumentMeta, error) {
	g.metaMu.RLock()
	if meta, ok := g.metaCache[symbol]; ok {
		g.metaMu.RUnlock()
		return meta, nil
	}
	g.metaMu.RUnlock()

	params := map[string]interface{}{
		"category": g.config.Category,
		"symbol":   symbol,
	}

	var meta *broker.InstrumentMeta
	err := g.call(ctx, func() error {
		return withRetry(ctx, defaultRetryConfig(), func() error {
			result, err := g.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
			if err != nil {
				return err
			}
			serverResp, err := checkResponse(result)
			if err != nil {
				return err
			}

			var infoResult struct {
				List []struct {
					Symbol      string `json:"symbol"`
					PriceFilter struct {
						TickSize string `json:"tickSize"`
					} `json:"priceFilter"`
					LotSizeFilter struct {
						MinOrderQty string `json:"minOrderQty"`
						MaxOrderQty string `json:"maxOrderQty"`
						QtyStep     string `json:"qtyStep"`
					} `json:"lotSizeFilter"`
				} `json:"list"`
			}
			if err := decodeResult(serverResp, &infoResult); err != nil {
				return err
			}
			if len(infoResult.List) == 0 {
				return &apiError{Code: codeSymbolNotFound, Msg: "instrument not found: " + symbol}
			}

			info := infoResult.List[0]
			meta = &broker.InstrumentMeta{
				Symbol: info.Symbol,
				// Linear contracts are quoted per unit of base currency.
				ContractSize: 1,
				Point:        parseFloat(info.PriceFilter.TickSize),
				VolumeMin:    parseFloat(info.LotSizeFilter.MinOrderQty),
				VolumeMax:    parseFloat(info.LotSizeFilter.MaxOrderQty),
				VolumeStep:   parseFloat(info.LotSizeFilter.QtyStep),
			}
			return nil
		})
	})
	if err != nil {
		return nil, classifyDataErr("instrument meta", symbol, err)
	}

	g.metaMu.Lock()
	g.metaCache[symbol] = meta
	g.metaMu.Unlock()
	return meta, nil
}
