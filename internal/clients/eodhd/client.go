// Package eodhd provides a client for the EODHD market data API
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" || s == "NA" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

// flexInt64 handles JSON integers that may arrive as strings.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	var num int64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexInt64(num)
		return nil
	}
	var fl float64
	if err := json.Unmarshal(data, &fl); err == nil {
		*f = flexInt64(fl)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" || s == "NA" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexInt64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into int64", string(data))
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client implements the MarketDataClient interface against EODHD
type Client struct {
	baseURL    string
	apiKey     string
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

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
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
	return "eodhd"
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
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

type realTimeResponse struct {
	Code          string      `json:"code"`
	Timestamp     flexInt64   `json:"timestamp"`
	Open          flexFloat64 `json:"open"`
	High          flexFloat64 `json:"high"`
	Low           flexFloat64 `json:"low"`
	Close         flexFloat64 `json:"close"`
	Volume        flexInt64   `json:"volume"`
	PreviousClose flexFloat64 `json:"previousClose"`
	Change        flexFloat64 `json:"change"`
	ChangePct     flexFloat64 `json:"change_p"`
}

// tickerMatches reports whether the code EODHD echoed back belongs to the
// requested ticker. The API sometimes strips the exchange suffix.
func tickerMatches(requested, returned string) bool {
	if requested == "" || returned == "" {
		return false
	}
	reqBase, reqExch := splitTicker(requested)
	retBase, retExch := splitTicker(returned)
	if !strings.EqualFold(reqBase, retBase) {
		return false
	}
	if retExch == "" {
		return true
	}
	return strings.EqualFold(reqExch, retExch)
}

func splitTicker(ticker string) (base, exchange string) {
	if i := strings.LastIndex(ticker, "."); i > 0 {
		return ticker[:i], ticker[i+1:]
	}
	return ticker, ""
}

// currencyFor infers the quote currency from the exchange suffix.
func currencyFor(symbol string) string {
	_, exch := splitTicker(symbol)
	switch strings.ToUpper(exch) {
	case "KO", "KQ":
		return "KRW"
	case "AU":
		return "AUD"
	default:
		return "USD"
	}
}

// GetRealTimeQuote retrieves a delayed real-time quote
func (c *Client) GetRealTimeQuote(ctx context.Context, symbol string) (*models.Snapshot, error) {
	path := fmt.Sprintf("/real-time/%s", symbol)

	var resp realTimeResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Code != "" && !tickerMatches(symbol, resp.Code) {
		return nil, fmt.Errorf("EODHD returned quote for %s, requested %s", resp.Code, symbol)
	}

	return &models.Snapshot{
		Symbol:        symbol,
		Price:         float64(resp.Close),
		Currency:      currencyFor(symbol),
		Change:        float64(resp.Change),
		ChangePercent: float64(resp.ChangePct),
		Volume:        int64(resp.Volume),
		Timestamp:     time.Unix(int64(resp.Timestamp), 0),
		Source:        c.Name(),
	}, nil
}

// GetSnapshot implements MarketDataClient
func (c *Client) GetSnapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	return c.GetRealTimeQuote(ctx, symbol)
}

type intradayBar struct {
	Timestamp flexInt64    `json:"timestamp"`
	Close     *flexFloat64 `json:"close"`
}

// GetIntraday retrieves hourly bars between from and to
func (c *Client) GetIntraday(ctx context.Context, symbol string, from, to time.Time) ([]models.PricePoint, error) {
	params := url.Values{}
	params.Set("interval", "1h")
	params.Set("from", strconv.FormatInt(from.Unix(), 10))
	params.Set("to", strconv.FormatInt(to.Unix(), 10))

	var bars []intradayBar
	if err := c.get(ctx, fmt.Sprintf("/intraday/%s", symbol), params, &bars); err != nil {
		return nil, err
	}

	points := make([]models.PricePoint, 0, len(bars))
	for _, bar := range bars {
		if bar.Close == nil || *bar.Close <= 0 {
			continue
		}
		points = append(points, models.PricePoint{
			Time:  time.Unix(int64(bar.Timestamp), 0),
			Price: float64(*bar.Close),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })

	return points, nil
}

// GetHistory implements MarketDataClient
func (c *Client) GetHistory(ctx context.Context, symbol string, window time.Duration) ([]models.PricePoint, error) {
	to := time.Now()
	return c.GetIntraday(ctx, symbol, to.Add(-window), to)
}
