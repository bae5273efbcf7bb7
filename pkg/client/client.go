// Package client talks to a running energyview server over its /v1 API.
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

	"github.com/nicktill/energyview/pkg/httpx"
	"github.com/nicktill/energyview/pkg/query"
	"github.com/nicktill/energyview/pkg/results"
	"github.com/nicktill/energyview/pkg/tracing"
)

// DefaultEndpoint is used when ClientConfig.Endpoint is empty.
const DefaultEndpoint = "http://localhost:8080"

// ClientConfig holds configuration for the client
type ClientConfig struct {
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
}

// Client is an HTTP client for the session API.
type Client struct {
	base string
	http *http.Client
}

// Session mirrors the session description returned by the server.
type Session struct {
	ID       string           `json:"id"`
	Source   string           `json:"source"`
	Digest   string           `json:"digest"`
	LoadedAt time.Time        `json:"loaded_at"`
	LastUsed time.Time        `json:"last_used"`
	Tables   []results.Shape  `json:"tables"`
	Topology results.Topology `json:"topology"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// New creates a client. Loads decode the whole archive before the server
// answers, so the default timeout is generous.
func New(cfg ClientConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q", cfg.Endpoint)
	}
	return &Client{
		base: strings.TrimRight(cfg.Endpoint, "/"),
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Load asks the server to decode the archive at path, which must be
// readable by the server process.
func (c *Client) Load(ctx context.Context, path string) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", map[string]string{"path": path}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Session returns one session.
func (c *Client) Session(ctx context.Context, id string) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Sessions lists the loaded sessions.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	var out struct {
		Sessions []Session `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// Delete drops a session.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(id), nil, nil)
}

// Table fetches up to limit rows of a table; limit <= 0 uses the server default.
func (c *Client) Table(ctx context.Context, id, table string, indexed bool, limit int) (*query.ResultData, error) {
	q := url.Values{}
	if indexed {
		q.Set("index", "true")
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/v1/sessions/" + url.PathEscape(id) + "/tables/" + url.PathEscape(table)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out query.ResultData
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Query evaluates expr against a session.
func (c *Client) Query(ctx context.Context, id, expr string) (*query.ResultData, error) {
	var out query.Response
	err := c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(id)+"/query", query.Request{Query: expr}, &out)
	if err != nil {
		return nil, err
	}
	if out.Status != "success" || out.Data == nil {
		return nil, &APIError{Status: http.StatusOK, Message: out.Error}
	}
	return out.Data, nil
}

// Export streams a table export into w. format is csv, json or xlsx.
func (c *Client) Export(ctx context.Context, id, table, format string, w io.Writer) error {
	path := "/v1/sessions/" + url.PathEscape(id) + "/export/" + url.PathEscape(table)
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}
	return nil
}

// Trace returns the load trace of a session.
func (c *Client) Trace(ctx context.Context, id string) (*tracing.Trace, error) {
	var tr tracing.Trace
	if err := c.do(ctx, http.MethodGet, "/v1/traces/"+url.PathEscape(id), nil, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	resp, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// send performs a request and turns non-2xx answers into *APIError. The
// caller closes the body of a successful response.
func (c *Client) send(ctx context.Context, method, path string, in interface{}) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		apiErr := &APIError{Status: resp.StatusCode}
		var e httpx.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil {
			apiErr.Message = e.Message
			if apiErr.Message == "" {
				apiErr.Message = e.Error
			}
		}
		return nil, apiErr
	}
	return resp, nil
}
