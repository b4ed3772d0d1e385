// Package remote talks to the records endpoint: form-encoded POSTs for
// writes and query-string GETs for reads, every call carrying the shared
// key and an action name.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/camlog/internal/config"
)

const (
	ActionSave    = "simpanData"
	ActionPending = "getPendingFotoMaterial"
	ActionSearch  = "searchByPO"

	// HistoryLimit caps the pending-photo rows returned to callers.
	HistoryLimit = 50

	maxResponseBytes = 8 << 20
)

// ErrNotConfigured is returned when the endpoint or key is missing.
var ErrNotConfigured = errors.New("remote endpoint or api key not configured")

// ResponseError is a well-formed reply that reports failure, or an HTTP
// error status.
type ResponseError struct {
	Action     string
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("%s: http %d: %s", e.Action, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// Client calls the remote endpoint.
type Client struct {
	endpoint string
	key      string
	http     *http.Client
	logger   *zap.Logger
}

// New creates a client from cfg. A client with missing settings is valid
// but every call fails with ErrNotConfigured.
func New(cfg config.RemoteConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint: strings.TrimSpace(cfg.Endpoint),
		key:      strings.TrimSpace(cfg.APIKey),
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Configured reports whether both endpoint and key are set.
func (c *Client) Configured() bool {
	return c.endpoint != "" && c.key != ""
}

// Endpoint returns the configured URL.
func (c *Client) Endpoint() string { return c.endpoint }

func (c *Client) post(ctx context.Context, action string, data any, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", action, err)
	}
	form := url.Values{}
	form.Set("action", action)
	form.Set("key", c.key)
	form.Set("data", string(payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	req.Header.Set("Cache-Control", "no-store")
	return c.do(req, action, out)
}

func (c *Client) get(ctx context.Context, action string, params url.Values, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("action", action)
	params.Set("key", c.key)

	sep := "?"
	if strings.Contains(c.endpoint, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+sep+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Cache-Control", "no-store")
	return c.do(req, action, out)
}

func (c *Client) do(req *http.Request, action string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", action, err)
	}
	c.logger.Debug("remote call",
		zap.String("action", action),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ResponseError{Action: action, StatusCode: resp.StatusCode, Message: snippet(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ResponseError{Action: action, StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		s = "empty body"
	}
	return s
}
