package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/t77yq/txservice/internal/metrics"
)

const (
	// DefaultTimeout bounds a single price request
	DefaultTimeout = 10 * time.Second

	EWTPriceURL = "https://api.kucoin.com/api/v1/market/orderbook/level1?symbol=EWT-USDT"
	XDCPriceURL = "https://api.kucoin.com/api/v1/market/orderbook/level1?symbol=XDC-USDT"

	maxBodySize = 1 << 20
)

// ErrPriceUnavailable is the single failure kind returned by the client
var ErrPriceUnavailable = errors.New("cannot get price")

// PriceError reports a failed price request. It always matches ErrPriceUnavailable
// and unwraps to the underlying cause.
type PriceError struct {
	URL string
	Err error
}

func (e *PriceError) Error() string {
	return fmt.Sprintf("%s from %s: %v", ErrPriceUnavailable, e.URL, e.Err)
}

func (e *PriceError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrPriceUnavailable) hold for every PriceError
func (e *PriceError) Is(target error) bool {
	return target == ErrPriceUnavailable
}

// Endpoints holds the fixed price URLs
type Endpoints struct {
	EWT string
	XDC string
}

// Client fetches spot prices from an exchange orderbook endpoint
type Client struct {
	logger     *zap.Logger
	httpClient *http.Client
	timeout    time.Duration
	endpoints  Endpoints
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The client is never
// modified; the per-request timeout is applied through the request context.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the per-request timeout; non-positive values keep DefaultTimeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithEndpoints overrides the fixed price URLs; empty fields keep the defaults
func WithEndpoints(endpoints Endpoints) Option {
	return func(c *Client) {
		if endpoints.EWT != "" {
			c.endpoints.EWT = endpoints.EWT
		}
		if endpoints.XDC != "" {
			c.endpoints.XDC = endpoints.XDC
		}
	}
}

// NewClient creates a new quote client. The same HTTP client is reused for every call.
func NewClient(logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		logger:     logger.Named("quote"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		endpoints: Endpoints{
			EWT: EWTPriceURL,
			XDC: XDCPriceURL,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type priceResponse struct {
	Data *struct {
		Price *decimal.Decimal `json:"price"`
	} `json:"data"`
}

// FetchPrice performs a single GET against url and returns data.price as a float
func (c *Client) FetchPrice(ctx context.Context, url string) (float64, error) {
	return c.fetch(ctx, "custom", url)
}

// FetchEWTPrice returns the EWT/USDT price
func (c *Client) FetchEWTPrice(ctx context.Context) (float64, error) {
	return c.fetch(ctx, "EWT", c.endpoints.EWT)
}

// FetchXDCPrice returns the XDC/USDT price
func (c *Client) FetchXDCPrice(ctx context.Context) (float64, error) {
	return c.fetch(ctx, "XDC", c.endpoints.XDC)
}

func (c *Client) fetch(ctx context.Context, symbol, url string) (float64, error) {
	start := time.Now()
	price, err := c.getPrice(ctx, url)
	metrics.PriceFetchDuration.WithLabelValues(symbol).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.PriceFetchTotal.WithLabelValues(symbol, "failure").Inc()
		c.logger.Warn("Cannot get price",
			zap.String("symbol", symbol),
			zap.String("url", url),
			zap.Error(err))
		return 0, &PriceError{URL: url, Err: err}
	}

	metrics.PriceFetchTotal.WithLabelValues(symbol, "success").Inc()
	c.logger.Debug("Fetched price",
		zap.String("symbol", symbol),
		zap.Float64("price", price))
	return price, nil
}

func (c *Client) getPrice(ctx context.Context, url string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("request failed with status: %d", resp.StatusCode)
	}

	var result priceResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Data == nil || result.Data.Price == nil {
		return 0, errors.New("response has no data.price")
	}

	price, _ := result.Data.Price.Float64()
	return price, nil
}
