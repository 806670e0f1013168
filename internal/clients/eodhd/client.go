// Package eodhd provides a client for the EODHD API
package eodhd

import (
	"bytes"
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

	"golang.org/x/time/rate"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/interfaces"
	"github.com/bobmcallan/digest/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
// EODHD returns "NA" for missing real-time fields.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	if string(data) == "null" {
		*f = 0
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client is an EODHD market data client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
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
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string      `json:"date"`
	Open          flexFloat64 `json:"open"`
	High          flexFloat64 `json:"high"`
	Low           flexFloat64 `json:"low"`
	Close         flexFloat64 `json:"close"`
	AdjustedClose flexFloat64 `json:"adjusted_close"`
	Volume        flexFloat64 `json:"volume"`
}

// GetEOD retrieves end-of-day bars for an EODHD ticker, oldest first
func (c *Client) GetEOD(ctx context.Context, ticker string, opts ...interfaces.EODOption) ([]models.PriceBar, error) {
	params := &interfaces.EODParams{
		Period: "d",
		Order:  "a",
	}
	for _, opt := range opts {
		opt(params)
	}

	urlParams := url.Values{}
	urlParams.Set("period", params.Period)
	urlParams.Set("order", params.Order)
	if !params.From.IsZero() {
		urlParams.Set("from", params.From.Format("2006-01-02"))
	}
	if !params.To.IsZero() {
		urlParams.Set("to", params.To.Format("2006-01-02"))
	}

	var raw []eodBarResponse
	if err := c.get(ctx, "/eod/"+ticker, urlParams, &raw); err != nil {
		return nil, err
	}

	bars := make([]models.PriceBar, 0, len(raw))
	for _, b := range raw {
		date, err := time.Parse("2006-01-02", b.Date)
		if err != nil || b.Close <= 0 {
			continue
		}
		bars = append(bars, models.PriceBar{
			Date:   date,
			Open:   float64(b.Open),
			High:   float64(b.High),
			Low:    float64(b.Low),
			Close:  float64(b.Close),
			Volume: int64(b.Volume),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	if params.Limit > 0 && len(bars) > params.Limit {
		bars = bars[len(bars)-params.Limit:]
	}
	return bars, nil
}

// RealTimeQuote is one entry of the real-time (delayed) endpoint
type RealTimeQuote struct {
	Code          string      `json:"code"`
	Timestamp     flexFloat64 `json:"timestamp"`
	Open          flexFloat64 `json:"open"`
	High          flexFloat64 `json:"high"`
	Low           flexFloat64 `json:"low"`
	Close         flexFloat64 `json:"close"`
	PreviousClose flexFloat64 `json:"previousClose"`
	Volume        flexFloat64 `json:"volume"`
	ChangePct     flexFloat64 `json:"change_p"`
}

// Time returns the quote timestamp, or the zero time when unknown
func (q RealTimeQuote) Time() time.Time {
	if q.Timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(q.Timestamp), 0).UTC()
}

// GetRealTime retrieves real-time quotes for one or more EODHD tickers in a
// single request. The API answers with an object for one ticker and an array
// for several.
func (c *Client) GetRealTime(ctx context.Context, tickers []string) ([]RealTimeQuote, error) {
	if len(tickers) == 0 {
		return nil, nil
	}

	params := url.Values{}
	if len(tickers) > 1 {
		params.Set("s", strings.Join(tickers[1:], ","))
	}

	var raw json.RawMessage
	if err := c.get(ctx, "/real-time/"+tickers[0], params, &raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var quotes []RealTimeQuote
		if err := json.Unmarshal(trimmed, &quotes); err != nil {
			return nil, fmt.Errorf("failed to decode real-time quotes: %w", err)
		}
		return quotes, nil
	}

	var quote RealTimeQuote
	if err := json.Unmarshal(trimmed, &quote); err != nil {
		return nil, fmt.Errorf("failed to decode real-time quote: %w", err)
	}
	return []RealTimeQuote{quote}, nil
}

// Fundamentals is the subset of the fundamentals endpoint the digest uses
type Fundamentals struct {
	General struct {
		Code         string `json:"Code"`
		Name         string `json:"Name"`
		Type         string `json:"Type"`
		Exchange     string `json:"Exchange"`
		CurrencyCode string `json:"CurrencyCode"`
	} `json:"General"`
	Highlights struct {
		MarketCapitalization flexFloat64 `json:"MarketCapitalization"`
	} `json:"Highlights"`
	Components map[string]Component `json:"Components"` // index fundamentals only
}

// Component is one index constituent
type Component struct {
	Code     string `json:"Code"`
	Exchange string `json:"Exchange"`
	Name     string `json:"Name"`
}

// GetFundamentals retrieves fundamental data for an EODHD ticker
func (c *Client) GetFundamentals(ctx context.Context, ticker string) (*Fundamentals, error) {
	var resp Fundamentals
	if err := c.get(ctx, "/fundamentals/"+ticker, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
