// Package client talks to a running minikeyboard server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/hunterino/MiniKeybaord/internal/auth"
	apperrors "github.com/hunterino/MiniKeybaord/internal/errors"
	"github.com/hunterino/MiniKeybaord/internal/server/handlers"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 10 * time.Second

// Client is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
}

// New parses baseURL ("http://host:port"). A nil httpClient uses one
// with DefaultTimeout.
func New(baseURL, apiKey string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: u, apiKey: apiKey, http: httpClient}, nil
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// Status fetches GET /status.
func (c *Client) Status(ctx context.Context) (*handlers.StatusResponse, error) {
	var out handlers.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health fetches GET /health. An unhealthy server answers with an
// error envelope.
func (c *Client) Health(ctx context.Context) (*handlers.HealthResponse, error) {
	var out handlers.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Version fetches GET /version.
func (c *Client) Version(ctx context.Context) (*handlers.VersionResponse, error) {
	var out handlers.VersionResponse
	if err := c.do(ctx, http.MethodGet, "/version", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Type queues text for typing.
func (c *Client) Type(ctx context.Context, text string) (*handlers.AcceptedResponse, error) {
	q := url.Values{}
	q.Set("msg", text)
	var out handlers.AcceptedResponse
	if err := c.do(ctx, http.MethodPost, "/type", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CtrlAltDel sends Ctrl+Alt+Delete.
func (c *Client) CtrlAltDel(ctx context.Context) (*handlers.SuccessResponse, error) {
	return c.command(ctx, "/ctrlaltdel")
}

// Sleep sends the sleep sequence.
func (c *Client) Sleep(ctx context.Context) (*handlers.SuccessResponse, error) {
	return c.command(ctx, "/sleep")
}

// ToggleLED flips the LED.
func (c *Client) ToggleLED(ctx context.Context) (*handlers.SuccessResponse, error) {
	return c.command(ctx, "/led/toggle")
}

func (c *Client) command(ctx context.Context, path string) (*handlers.SuccessResponse, error) {
	var out handlers.SuccessResponse
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(auth.HeaderName, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.WrapServiceUnavailable(ctx, err, "server unreachable at "+c.baseURL.String())
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// decodeError turns an error body back into an envelope carrying the
// server's code, message and request ID.
func decodeError(resp *http.Response, body []byte) error {
	var parsed apperrors.HTTPErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Code == "" {
		msg := strings.TrimSpace(string(bytes.TrimSpace(body)))
		if msg == "" {
			msg = resp.Status
		}
		envelope := errors.NewErrorEnvelope(apperrors.CodeInternal, msg)
		envelope, _ = envelope.WithContext(map[string]interface{}{"http_status": resp.StatusCode})
		return envelope
	}

	envelope := errors.NewErrorEnvelope(parsed.Error.Code, parsed.Error.Message).
		WithCorrelationID(parsed.Error.RequestID)
	contextData := map[string]interface{}{"http_status": resp.StatusCode}
	if retry := resp.Header.Get("Retry-After"); retry != "" {
		contextData["retry_after"] = retry
	}
	envelope, _ = envelope.WithContext(contextData)
	return envelope
}
