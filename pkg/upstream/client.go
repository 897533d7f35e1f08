// Package upstream performs single-item product lookups against the upstream
// product-search API and classifies every failure.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/scorebill/productfetch/pkg/credentials"
	"github.com/scorebill/productfetch/pkg/logging"
)

// Prometheus metrics for upstream calls.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "productfetch_upstream_requests_total",
		Help: "Total upstream product requests by HTTP status",
	}, []string{"status"})

	upstreamRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "productfetch_upstream_request_duration_seconds",
		Help:    "Upstream product request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "productfetch_upstream_errors_total",
		Help: "Total failed upstream fetches by error kind",
	}, []string{"kind"})
)

// maxDrain bounds how much of a rejected response body is read before closing.
const maxDrain = 64 << 10

// Config holds the upstream client configuration.
type Config struct {
	// BaseURL is the scheme and host of the upstream API.
	BaseURL string

	// SearchPath is the product-search endpoint path.
	SearchPath string

	// Action is sent as the _action query parameter.
	Action string

	// Timeouts
	ConnectTimeout time.Duration // dial + TLS handshake
	Timeout        time.Duration // whole call, including body read

	// Connection pool shared by all batches
	MaxIdleConns    int
	MaxConnsPerHost int

	// DefaultHeaders are used when a credential bundle carries no headers.
	DefaultHeaders map[string]string
}

// DefaultHeaders returns the browser-like header set used when callers send none.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
		"Referer":         "https://sell.smartstore.naver.com/",
	}
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "https://sell.smartstore.naver.com",
		SearchPath:      "/api/product/shared/product-search-popular",
		Action:          "productSearchPopularByCategory",
		ConnectTimeout:  10 * time.Second,
		Timeout:         30 * time.Second,
		MaxIdleConns:    500,
		MaxConnsPerHost: 250,
		DefaultHeaders:  DefaultHeaders(),
	}
}

// Client fetches one product per call.
type Client struct {
	httpClient *http.Client
	endpoint   *url.URL
	config     Config
	logger     zerolog.Logger
}

// New creates a new upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Action == "" {
		return nil, fmt.Errorf("action is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	if cfg.ConnectTimeout <= 0 || cfg.ConnectTimeout > cfg.Timeout {
		cfg.ConnectTimeout = cfg.Timeout
	}

	endpoint, err := url.Parse(cfg.BaseURL + cfg.SearchPath)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     30 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		endpoint: endpoint,
		config:   cfg,
		logger:   logging.NewLogger("upstream-client"),
	}, nil
}

// Fetch looks up one identifier. It never returns an error: every failure,
// including a panic below this frame, comes back as a classified Outcome.
func (c *Client) Fetch(ctx context.Context, id string, creds credentials.Bundle) (out Outcome) {
	start := time.Now()
	defer func() {
		upstreamRequestDuration.Observe(time.Since(start).Seconds())
	}()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Str("nvmid", id).Interface("panic", r).Msg("Fetch panicked")
			out = c.fail(id, &FetchError{Kind: KindTransport, Detail: fmt.Sprintf("panic: %v", r)})
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(id), nil)
	if err != nil {
		return c.fail(id, &FetchError{Kind: KindTransport, Err: fmt.Errorf("create request: %w", err)})
	}

	headers := creds.Headers
	if len(headers) == 0 {
		headers = c.config.DefaultHeaders
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Cookie", creds.Cookie)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		upstreamRequestsTotal.WithLabelValues("transport_error").Inc()
		return c.fail(id, &FetchError{Kind: KindTransport, Err: err})
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
		return c.fail(id, &FetchError{
			Kind:       KindHTTPStatus,
			Detail:     fmt.Sprintf("status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(id, &FetchError{Kind: KindTransport, Err: fmt.Errorf("read body: %w", err)})
	}

	product, ferr := decodeProduct(body)
	if ferr != nil {
		return c.fail(id, ferr)
	}

	c.logger.Debug().Str("nvmid", id).Dur("duration", time.Since(start)).Msg("Fetched product")
	return Succeeded(id, product)
}

func (c *Client) fail(id string, err *FetchError) Outcome {
	upstreamErrorsTotal.WithLabelValues(string(err.Kind)).Inc()

	evt := c.logger.Debug().
		Str("nvmid", id).
		Str("error_kind", string(err.Kind))
	if err.Err != nil {
		evt = evt.AnErr("cause", err.Err)
	}
	evt.Msg(err.Error())

	return Failed(id, err)
}

func (c *Client) searchURL(id string) string {
	u := *c.endpoint
	q := url.Values{}
	q.Set("_action", c.config.Action)
	q.Set("nvMid", id)
	u.RawQuery = q.Encode()
	return u.String()
}

// decodeProduct validates the response envelope and extracts the result object.
func decodeProduct(body []byte) (Product, *FetchError) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &FetchError{Kind: KindParse, Detail: "invalid JSON", Err: err}
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &FetchError{Kind: KindShape, Detail: "response is not an object"}
	}

	raw, ok := obj[ResultKey]
	if !ok {
		return nil, &FetchError{Kind: KindShape, Detail: "missing result"}
	}

	inner, ok := raw.(map[string]any)
	if !ok || len(inner) == 0 {
		return nil, &FetchError{Kind: KindShape, Detail: "empty result"}
	}

	return NewProduct(inner), nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}
