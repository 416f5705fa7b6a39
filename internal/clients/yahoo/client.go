// Package yahoo provides a keyless client for the Yahoo Finance quote and chart endpoints
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/models"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 5 // requests per second
	userAgent        = "Mozilla/5.0 (compatible; pulse/1.0)"
)

// Client implements the MarketDataClient interface against Yahoo Finance
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Yahoo Finance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies the provider
func (c *Client) Name() string {
	return "yahoo"
}

// APIError represents a non-2xx response
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Yahoo Finance API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", reqURL).Msg("Yahoo Finance request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string  `json:"symbol"`
			ShortName                  string  `json:"shortName"`
			LongName                   string  `json:"longName"`
			Currency                   string  `json:"currency"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketChange        float64 `json:"regularMarketChange"`
			RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
			RegularMarketVolume        int64   `json:"regularMarketVolume"`
			RegularMarketTime          int64   `json:"regularMarketTime"`
			MarketCap                  float64 `json:"marketCap"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
				RegularMarketVol   int64   `json:"regularMarketVolume"`
				LongName           string  `json:"longName"`
			} `json:"meta"`
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

// GetQuote retrieves the current quote from /v7/finance/quote
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Snapshot, error) {
	params := url.Values{}
	params.Set("symbols", symbol)

	var resp quoteResponse
	if err := c.get(ctx, "/v7/finance/quote", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote returned for %s", symbol)
	}

	q := resp.QuoteResponse.Result[0]
	name := q.LongName
	if name == "" {
		name = q.ShortName
	}
	return &models.Snapshot{
		Symbol:        symbol,
		Name:          name,
		Price:         q.RegularMarketPrice,
		Currency:      q.Currency,
		Change:        q.RegularMarketChange,
		ChangePercent: q.RegularMarketChangePercent,
		MarketCap:     q.MarketCap,
		Volume:        q.RegularMarketVolume,
		Timestamp:     time.Unix(q.RegularMarketTime, 0),
		Source:        c.Name(),
	}, nil
}

// getChart fetches /v8/finance/chart/{symbol}
func (c *Client) getChart(ctx context.Context, symbol, interval, rangeParam string) (*chartResponse, error) {
	params := url.Values{}
	params.Set("interval", interval)
	params.Set("range", rangeParam)

	var resp chartResponse
	if err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), params, &resp); err != nil {
		return nil, err
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart error for %s: %s", symbol, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart returned for %s", symbol)
	}
	return &resp, nil
}

// GetSnapshot implements MarketDataClient. The quote endpoint is tried first;
// when it is refused the chart metadata supplies the price.
func (c *Client) GetSnapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	snap, err := c.GetQuote(ctx, symbol)
	if err == nil && snap.Price > 0 {
		return snap, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.logger.Debug().Str("symbol", symbol).Msg("Quote endpoint unavailable, falling back to chart metadata")

	chart, chartErr := c.getChart(ctx, symbol, "1d", "1d")
	if chartErr != nil {
		if err != nil {
			return nil, fmt.Errorf("quote: %v; chart: %w", err, chartErr)
		}
		return nil, chartErr
	}

	meta := chart.Chart.Result[0].Meta
	out := &models.Snapshot{
		Symbol:    symbol,
		Name:      meta.LongName,
		Price:     meta.RegularMarketPrice,
		Currency:  meta.Currency,
		Volume:    meta.RegularMarketVol,
		Timestamp: time.Unix(meta.RegularMarketTime, 0),
		Source:    c.Name(),
	}
	if meta.ChartPreviousClose > 0 {
		out.Change = meta.RegularMarketPrice - meta.ChartPreviousClose
		out.ChangePercent = out.Change / meta.ChartPreviousClose * 100
	}
	return out, nil
}

// GetHistory implements MarketDataClient with hourly closes. Null and
// non-positive closes are dropped.
func (c *Client) GetHistory(ctx context.Context, symbol string, window time.Duration) ([]models.PricePoint, error) {
	chart, err := c.getChart(ctx, symbol, "1h", rangeFor(window))
	if err != nil {
		return nil, err
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	closes := result.Indicators.Quote[0].Close

	points := make([]models.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		points = append(points, models.PricePoint{
			Time:  time.Unix(ts, 0),
			Price: *closes[i],
		})
	}
	return points, nil
}

// rangeFor maps a lookback window onto the nearest Yahoo range token.
func rangeFor(window time.Duration) string {
	days := int(window.Hours() / 24)
	switch {
	case days <= 1:
		return "1d"
	case days <= 5:
		return "5d"
	case days <= 30:
		return "1mo"
	default:
		return "3mo"
	}
}
