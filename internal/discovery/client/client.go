// Package client provides the HTTP client for the live discovery service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadgen_backend/platform/logger"
	"leadgen_backend/platform/metrics"
)

const (
	maxResponseBytes = 8 << 20
	healthBodyLimit  = 200
	retryDelay       = 250 * time.Millisecond

	opSearch   = "search"
	opDiscover = "discover"
	opHealth   = "health"
)

// ErrCircuitOpen is returned without a network call while the breaker is open.
var ErrCircuitOpen = errors.New("discovery circuit open")

// StatusError is a non-2xx answer from the discovery service.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("discovery %s: status %d", e.Op, e.Status)
}

// Request is the body of /search and /discover.
type Request struct {
	Query   string   `json:"query"`
	Limit   int      `json:"limit"`
	Exclude []string `json:"exclude"`
}

// HealthStatus mirrors what /healthz answered.
type HealthStatus struct {
	OK     bool   `json:"ok"`
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// Client is the HTTP client for the discovery service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *Breaker
	metrics    metrics.Recorder
	log        *logger.Logger
}

// New creates a discovery client. Deadlines come from the caller's context;
// timeout is only a ceiling for calls made without one.
func New(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    NewBreaker(),
		metrics:    metrics.Nop{},
		log:        log,
	}
}

// SetMetrics wires call counters and latency histograms.
func (c *Client) SetMetrics(m metrics.Recorder) {
	if m != nil {
		c.metrics = m
	}
}

// SetBreaker replaces the default circuit breaker.
func (c *Client) SetBreaker(b *Breaker) {
	if b != nil {
		c.breaker = b
	}
}

// Search asks the discovery service for up to req.Limit live profiles.
func (c *Client) Search(ctx context.Context, req Request) ([]Profile, error) {
	start := time.Now()
	body, err := c.guardedPost(ctx, opSearch, "/search", req)
	if err != nil {
		c.observe(opSearch, err, start)
		return nil, err
	}

	profiles, err := decodeProfiles(body)
	if err != nil {
		err = fmt.Errorf("decode discovery response: %w", err)
	}
	c.observe(opSearch, err, start)
	return profiles, err
}

// Discover asks the discovery service to backfill the cache. The response body
// is ignored.
func (c *Client) Discover(ctx context.Context, req Request) error {
	start := time.Now()
	_, err := c.guardedPost(ctx, opDiscover, "/discover", req)
	c.observe(opDiscover, err, start)
	return err
}

// Health calls /healthz. It bypasses the breaker so operators always see the
// real upstream state.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	c.setAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(opHealth, err, start)
		return HealthStatus{}, fmt.Errorf("discovery health: %w", err)
	}
	defer resp.Body.Close()

	text, _ := io.ReadAll(io.LimitReader(resp.Body, healthBodyLimit))
	status := HealthStatus{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
		Body:   string(text),
	}
	var statusErr error
	if !status.OK {
		statusErr = &StatusError{Op: opHealth, Status: resp.StatusCode}
	}
	c.observe(opHealth, statusErr, start)
	return status, nil
}

func (c *Client) guardedPost(ctx context.Context, op, path string, payload Request) ([]byte, error) {
	if !c.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	body, err := c.postWithRetry(ctx, op, path, payload)
	if err != nil {
		// A caller that went away says nothing about upstream health.
		if errors.Is(err, context.Canceled) {
			c.breaker.RecordCancelled()
		} else {
			c.breaker.RecordFailure()
		}
		return nil, err
	}
	c.breaker.RecordSuccess()
	return body, nil
}

// postWithRetry makes at most two attempts. Only transport errors and 5xx
// answers are retried.
func (c *Client) postWithRetry(ctx context.Context, op, path string, payload Request) ([]byte, error) {
	if payload.Exclude == nil {
		payload.Exclude = []string{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode discovery request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		body, retryable, err := c.post(ctx, op, path, data)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable || attempt == 2 {
			break
		}

		c.log.Warn("discovery call failed, retrying", "operation", op, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, op, path string, data []byte) ([]byte, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	c.setAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("discovery %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, resp.StatusCode >= 500, &StatusError{Op: op, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, false, fmt.Errorf("read discovery response: %w", err)
	}
	return body, false, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) observe(op string, err error, start time.Time) {
	c.metrics.RecordDiscoveryCall(op, outcome(err), time.Since(start))
}

func outcome(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &statusErr):
		return "status_error"
	default:
		return "error"
	}
}
