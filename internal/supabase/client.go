// Package supabase is a thin PostgREST client for the hosted database the
// mobile client talks to, plus a subscription store built on it.
package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Config configures the Supabase client.
type Config struct {
	ProjectURL string
	APIKey     string
	// Optional additional headers to send on every request.
	DefaultHeaders map[string]string
	Timeout        time.Duration
}

// Client performs Supabase REST calls.
type Client struct {
	http    *http.Client
	cfg     Config
	prefix  string
	headers map[string]string
}

// APIError is a non-2xx PostgREST response.
type APIError struct {
	Status  int
	Code    string
	Message string
	Hint    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("supabase: status %d", e.Status)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Hint != "" {
		msg += " [hint: " + e.Hint + "]"
	}
	return msg
}

// New creates a Supabase client.
func New(cfg Config) (*Client, error) {
	if cfg.ProjectURL == "" {
		return nil, fmt.Errorf("project URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if _, err := url.Parse(cfg.ProjectURL); err != nil {
		return nil, fmt.Errorf("invalid project URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		cfg:    cfg,
		prefix: strings.TrimRight(cfg.ProjectURL, "/") + "/rest/v1",
		headers: map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/json",
		},
	}, nil
}

// Select performs a GET on a table with an encoded query string.
func (c *Client) Select(ctx context.Context, table string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, table, query, nil, nil)
}

// Insert performs a POST and returns the inserted rows.
func (c *Client) Insert(ctx context.Context, table string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, table, nil, body, map[string]string{"Prefer": "return=representation"})
}

// Update performs a PATCH on the rows matched by query and returns them.
func (c *Client) Update(ctx context.Context, table string, query url.Values, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPatch, table, query, body, map[string]string{"Prefer": "return=representation"})
}

// Delete removes the rows matched by query and returns them.
func (c *Client) Delete(ctx context.Context, table string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, table, query, nil, map[string]string{"Prefer": "return=representation"})
}

func (c *Client) do(ctx context.Context, method, table string, query url.Values, body []byte, extra map[string]string) ([]byte, error) {
	if table == "" {
		return nil, fmt.Errorf("table is required")
	}
	u := c.prefix + "/" + url.PathEscape(table)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.mergeHeaders(extra) {
		req.Header.Set(k, v)
	}
	req.Header.Set("apikey", c.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase %s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, data)
	}
	return data, nil
}

func decodeError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		apiErr.Code = parsed.Get("code").String()
		apiErr.Message = parsed.Get("message").String()
		apiErr.Hint = parsed.Get("hint").String()
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func (c *Client) mergeHeaders(h map[string]string) map[string]string {
	merged := make(map[string]string, len(c.cfg.DefaultHeaders)+len(c.headers)+len(h))
	for k, v := range c.headers {
		if v != "" {
			merged[k] = v
		}
	}
	for k, v := range c.cfg.DefaultHeaders {
		if v != "" {
			merged[k] = v
		}
	}
	for k, v := range h {
		if v != "" {
			merged[k] = v
		}
	}
	return merged
}
