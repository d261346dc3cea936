// Package apiclient talks to the property backend over its REST contract.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"property-search/internal/logging"
	"property-search/internal/metrics"
	"property-search/internal/models"
	"property-search/internal/retry"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      *retry.Policy
	breaker    *Breaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRetry retries transient failures (network, 5xx, 429) under p.
// p.Retryable is replaced by IsRetryable when unset.
func WithRetry(p retry.Policy) Option {
	return func(c *Client) {
		if p.Retryable == nil {
			p.Retryable = IsRetryable
		}
		c.retry = &p
	}
}

// WithBreaker makes the client fail fast while b is open.
func WithBreaker(b *Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// New creates a client for the backend at baseURL (e.g. http://localhost:8000).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Breaker returns the circuit breaker set by WithBreaker, or nil.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListProperties fetches properties matching filters.
func (c *Client) ListProperties(ctx context.Context, filters PropertyFilters) ([]models.Property, error) {
	path := "/properties/"
	if q := filters.Encode(); q != "" {
		path += "?" + q
	}

	var properties []models.Property
	if _, err := c.getJSON(ctx, "properties", "list properties", path, &properties); err != nil {
		return nil, err
	}
	if properties == nil {
		properties = []models.Property{}
	}
	return properties, nil
}

// GetProperty fetches one property. A 404 is an error like any other non-2xx.
func (c *Client) GetProperty(ctx context.Context, id int64) (*models.Property, error) {
	var property models.Property
	if _, err := c.getJSON(ctx, "property", "get property", "/properties/"+strconv.FormatInt(id, 10), &property); err != nil {
		return nil, err
	}
	return &property, nil
}

// GetInternetProvider fetches the surveyed internet plans of a property.
// It returns (nil, nil) when the backend answers 404: the property was not surveyed yet.
func (c *Client) GetInternetProvider(ctx context.Context, propertyID int64) (*models.InternetProvider, error) {
	var provider models.InternetProvider
	status, err := c.getJSON(ctx, "internet_provider", "get internet provider",
		"/internet-providers/"+strconv.FormatInt(propertyID, 10), &provider)
	if err != nil {
		if status == http.StatusNotFound {
			logging.FromContext(ctx).Debug("internet provider not surveyed",
				"component", "apiclient", "property_id", propertyID)
			metrics.Degradations.WithLabelValues("internet_provider", "not_found").Inc()
			return nil, nil
		}
		return nil, err
	}
	return &provider, nil
}

// GetBikeParkings fetches the bike parkings near a property. It never returns a nil slice on success.
func (c *Client) GetBikeParkings(ctx context.Context, propertyID int64) ([]models.BikeParking, error) {
	var parkings []models.BikeParking
	if _, err := c.getJSON(ctx, "bike_parkings", "get bike parkings",
		"/bike-parkings/property/"+strconv.FormatInt(propertyID, 10), &parkings); err != nil {
		return nil, err
	}
	if parkings == nil {
		parkings = []models.BikeParking{}
	}
	return parkings, nil
}

// Ping checks that the backend answers at all. Any HTTP response below 500 counts as up.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, "ping", "ping", "/")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode >= 500 {
		return &TransportError{Op: "ping", Method: http.MethodGet, URL: c.baseURL + "/", StatusCode: resp.StatusCode}
	}
	return nil
}

// getJSON performs GET path (with retries when configured) and decodes a 2xx body into out.
// The returned status is the last HTTP status seen, 0 when no response arrived.
func (c *Client) getJSON(ctx context.Context, endpoint, op, path string, out any) (int, error) {
	attempt := func(ctx context.Context) (int, error) {
		return c.getJSONOnce(ctx, endpoint, op, path, out)
	}
	if c.retry == nil {
		return attempt(ctx)
	}

	policy := *c.retry
	userHook := policy.OnRetry
	policy.OnRetry = func(n int, delay time.Duration, err error) {
		metrics.Retries.WithLabelValues(endpoint).Inc()
		logging.FromContext(ctx).Info("retrying backend request",
			"component", "apiclient", "op", op, "attempt", n+1, "max_retries", policy.MaxRetries,
			"delay", delay, "error", err)
		if userHook != nil {
			userHook(n, delay, err)
		}
	}
	r := retry.NewRetrier(policy, attempt)
	status, err := r.Run(ctx)
	if err != nil {
		if n := r.Attempts(); n > 0 {
			logging.FromContext(ctx).Warn("backend request gave up",
				"component", "apiclient", "op", op, "retries", n, "error", err)
		}
		return StatusCode(err), err
	}
	return status, nil
}

func (c *Client) getJSONOnce(ctx context.Context, endpoint, op, path string, out any) (int, error) {
	resp, err := c.do(ctx, endpoint, op, path)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	target := c.baseURL + path
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &TransportError{
			Op:         op,
			Method:     http.MethodGet,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, &TransportError{
			Op:         op,
			Method:     http.MethodGet,
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        &decodeError{err: err},
		}
	}
	return resp.StatusCode, nil
}

// do sends one GET and feeds the breaker and metrics. Non-2xx responses are returned, not converted.
func (c *Client) do(ctx context.Context, endpoint, op, path string) (*http.Response, error) {
	target := c.baseURL + path

	if c.breaker != nil && !c.breaker.CanProceed() {
		metrics.BackendRequests.WithLabelValues(endpoint, "rejected").Inc()
		return nil, &TransportError{Op: op, Method: http.MethodGet, URL: target, Err: ErrCircuitOpen}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &TransportError{Op: op, Method: http.MethodGet, URL: target, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if id := logging.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(logging.RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveBackend(endpoint, 0, time.Since(start))
		// a cancelled page request is not the backend's fault
		if c.breaker != nil && !errors.Is(err, context.Canceled) {
			c.breaker.RecordFailure(0)
		}
		logging.FromContext(ctx).Warn("backend request failed",
			"component", "apiclient", "op", op, "url", target, "error", err)
		return nil, &TransportError{Op: op, Method: http.MethodGet, URL: target, Err: err}
	}
	metrics.ObserveBackend(endpoint, resp.StatusCode, time.Since(start))

	if c.breaker != nil {
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			c.breaker.RecordFailure(resp.StatusCode)
		} else {
			c.breaker.RecordSuccess()
		}
	}
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		slog.Debug("backend returned error status",
			"component", "apiclient", "op", op, "url", target, "status", resp.StatusCode)
	}
	return resp, nil
}
