// Package client provides the HTTP layer shared by the IAM token exchange
// and the resource fetcher, with request metrics and error classification.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/icse/api-cache/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for outbound requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicache_requests_total",
		Help: "Total outbound requests by host and status",
	}, []string{"host", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apicache_request_duration_seconds",
		Help:    "Outbound request duration in seconds by host",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"host"})
)

// Client wraps an http.Client with the headers and bookkeeping every
// IBM Cloud call needs.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// User-Agent header sent on every request
	UserAgent string

	// Timeout for a single request; zero means no timeout
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent: userAgent,
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logging.NewLogger("http-client"),
	}, nil
}

// Do executes req. A request that fails before a response arrives is
// returned as an *APIError of class transport. HTTP error statuses are
// not errors at this layer; callers decide what a status means.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	host := req.URL.Host
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(host).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("User-Agent", c.config.UserAgent)

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", redactURL(req.URL)).
		Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(host, "network_error").Inc()
		c.logger.Error().Err(err).Str("url", redactURL(req.URL)).Msg("HTTP request failed")
		return nil, &APIError{
			Class: ErrorClassTransport,
			URL:   redactURL(req.URL),
			Err:   err,
		}
	}

	requestsTotal.WithLabelValues(host, strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.Debug().
		Str("url", redactURL(req.URL)).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("Request completed")

	return resp, nil
}

// Get performs an authenticated GET request for a JSON resource.
func (c *Client) Get(ctx context.Context, rawURL, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	return c.Do(req)
}

// PostForm performs a form-encoded POST request expecting a JSON answer.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	return c.Do(req)
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// redactURL drops credentials that may be embedded in a URL before it is logged.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Redacted()
}
