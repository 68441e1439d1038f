// Package api is the client SDK's view of the caskhouse backend. Every call
// is fire-and-forget: failures are logged and never returned to callers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"caskhouse/contracts/consent"
	"caskhouse/contracts/tracking"
)

const (
	PathConsentLog   = "/api/consent/log"
	PathErasure      = "/api/gdpr/delete"
	PathVisitor      = "/api/tracking/visitor"
	PathEvent        = "/api/tracking/event"
	PathCaptureField = "/api/tracking/capture-field"

	DefaultTimeout       = 10 * time.Second
	DefaultBeaconTimeout = 2 * time.Second

	// beaconContentType matches what navigator.sendBeacon sends for a string body.
	beaconContentType = "text/plain;charset=UTF-8"
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client posts to the backend on background goroutines. Flush waits for
// everything dispatched so far; Close additionally rejects new sends.
type Client struct {
	baseURL       string
	http          HTTPDoer
	logger        *slog.Logger
	userAgent     string
	timeout       time.Duration
	beaconTimeout time.Duration

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	sent   atomic.Int64
	failed atomic.Int64
}

type Option func(*Client)

func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithBeaconTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.beaconTimeout = timeout
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          http.DefaultClient,
		logger:        slog.Default(),
		timeout:       DefaultTimeout,
		beaconTimeout: DefaultBeaconTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post sends body as JSON in the background. The request outlives ctx
// cancellation; only ctx values are carried over. It reports whether the
// request was dispatched.
func (c *Client) Post(ctx context.Context, path string, body any) bool {
	return c.dispatch(context.WithoutCancel(ctx), path, body, "application/json", c.timeout)
}

// Beacon sends body as a text/plain JSON string with a short timeout, the
// way a browser sends data while a page unloads. It reports whether the
// beacon was queued.
func (c *Client) Beacon(path string, body any) bool {
	return c.dispatch(context.Background(), path, body, beaconContentType, c.beaconTimeout)
}

func (c *Client) dispatch(ctx context.Context, path string, body any, contentType string, timeout time.Duration) bool {
	payload, err := json.Marshal(body)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to encode request", "path", path, "error", err)
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.logger.DebugContext(ctx, "client closed, request dropped", "path", path)
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := c.send(reqCtx, path, payload, contentType); err != nil {
			c.failed.Add(1)
			c.logger.WarnContext(ctx, "backend request failed", "path", path, "error", err)
			return
		}
		c.sent.Add(1)
	}()
	return true
}

func (c *Client) send(ctx context.Context, path string, payload []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Stats returns the number of completed and failed requests.
func (c *Client) Stats() (sent, failed int64) {
	return c.sent.Load(), c.failed.Load()
}

// Flush blocks until every dispatched request has finished.
func (c *Client) Flush() {
	c.wg.Wait()
}

// Close rejects further sends and drains in-flight ones.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Client) LogConsent(ctx context.Context, req *consent.LogRequest) bool {
	return c.Post(ctx, PathConsentLog, req)
}

func (c *Client) RequestErasure(ctx context.Context, visitorID string) bool {
	return c.Post(ctx, PathErasure, consent.ErasureRequest{VisitorID: visitorID})
}

func (c *Client) SendVisitor(ctx context.Context, snapshot *tracking.VisitorSnapshot) bool {
	return c.Post(ctx, PathVisitor, snapshot)
}

// SendVisitorBeacon transmits the snapshot on page unload.
func (c *Client) SendVisitorBeacon(snapshot *tracking.VisitorSnapshot) bool {
	return c.Beacon(PathVisitor, snapshot)
}

func (c *Client) SendEvent(ctx context.Context, req *tracking.EventRequest) bool {
	return c.Post(ctx, PathEvent, req)
}

func (c *Client) CaptureField(ctx context.Context, req *tracking.CaptureFieldRequest) bool {
	return c.Post(ctx, PathCaptureField, req)
}
