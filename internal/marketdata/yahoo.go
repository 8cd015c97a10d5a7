package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/reversal/internal/contracts"
	"github.com/wonny/reversal/pkg/config"
	"github.com/wonny/reversal/pkg/httputil"
	"github.com/wonny/reversal/pkg/logger"
	"github.com/wonny/reversal/pkg/redis"
)

// YahooClient fetches calendar, history and company data from Yahoo
// Finance. All Yahoo calls go through this client.
type YahooClient struct {
	httpClient *httputil.Client
	cache      *redis.Cache
	logger     *logger.Logger
	cfg        config.YahooConfig
}

// NewYahooClient creates a Yahoo Finance client.
func NewYahooClient(httpClient *httputil.Client, cache *redis.Cache, log *logger.Logger, cfg config.YahooConfig) *YahooClient {
	return &YahooClient{
		httpClient: httpClient,
		cache:      cache,
		logger:     log,
		cfg:        cfg,
	}
}

// chartResponse mirrors the chart API envelope. Only closes are used.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetHistory fetches daily closes for the most recent lookback
// sessions, oldest first. Null closes (halted sessions) are skipped.
func (c *YahooClient) GetHistory(ctx context.Context, symbol string, lookbackSessions int) ([]contracts.Bar, error) {
	// Over-fetch by calendar days so weekends and holidays still leave
	// enough sessions.
	rangeDays := lookbackSessions*2 + 5
	fullURL := fmt.Sprintf("%s/%s?range=%dd&interval=1d", c.cfg.ChartBaseURL, symbol, rangeDays)

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("chart request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var parsed chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode chart response: %w", err)
	}

	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error for %s: %s", symbol, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, ErrNoData
	}

	result := parsed.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close

	var bars []contracts.Bar
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		bars = append(bars, contracts.Bar{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *closes[i],
		})
	}

	if len(bars) == 0 {
		return nil, ErrNoData
	}
	if len(bars) > lookbackSessions {
		bars = bars[len(bars)-lookbackSessions:]
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(bars),
	}).Debug("Fetched price history")
	return bars, nil
}

// quoteSummaryResponse mirrors the quoteSummary price module.
type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				MarketCap struct {
					Raw float64 `json:"raw"`
				} `json:"marketCap"`
				RegularMarketPrice struct {
					Raw float64 `json:"raw"`
				} `json:"regularMarketPrice"`
				RegularMarketVolume struct {
					Raw float64 `json:"raw"`
				} `json:"regularMarketVolume"`
			} `json:"price"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

// CompanySnapshot holds the slow-moving company stats used for
// calendar filtering.
type CompanySnapshot struct {
	Symbol    string  `json:"symbol"`
	MarketCap float64 `json:"market_cap"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
}

// GetCompanySnapshot fetches market cap, last price and volume for a
// symbol. Results are cached per calendar day since market cap moves
// slowly relative to how often the calendar is rebuilt.
func (c *YahooClient) GetCompanySnapshot(ctx context.Context, symbol string, asOf time.Time) (*CompanySnapshot, error) {
	cacheKey := redis.MarketCapKey(symbol, asOf.Format("20060102"))

	var snap CompanySnapshot
	if found, err := c.cache.Get(ctx, cacheKey, &snap); err == nil && found {
		return &snap, nil
	}

	fullURL := fmt.Sprintf("%s/%s?modules=price", c.cfg.QuoteBaseURL, symbol)
	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("quoteSummary request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var parsed quoteSummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode quoteSummary response: %w", err)
	}

	if len(parsed.QuoteSummary.Result) == 0 {
		return nil, ErrNoData
	}

	price := parsed.QuoteSummary.Result[0].Price
	snap = CompanySnapshot{
		Symbol:    symbol,
		MarketCap: price.MarketCap.Raw,
		Price:     price.RegularMarketPrice.Raw,
		Volume:    int64(price.RegularMarketVolume.Raw),
	}

	if err := c.cache.Set(ctx, cacheKey, snap, redis.TTLDaily); err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to cache company snapshot")
	}

	return &snap, nil
}
