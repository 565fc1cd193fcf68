package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vidtranslate/internal/services"
)

const defaultClientTimeout = 15 * time.Second

// HTTPError is returned when the daemon answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code back onto the service error markers so callers
// can use errors.Is(err, services.ErrNotFound).
func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return services.ErrNotFound
	case http.StatusBadRequest, http.StatusConflict:
		return services.ErrValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return services.ErrConfiguration
	}
	return services.ErrTransient
}

// Client talks to the daemon HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client for the daemon at baseURL. token is sent as a
// bearer token when non-empty.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURLFromBind turns a listen address into a URL a local client can dial.
// Wildcard hosts are replaced with the loopback address.
func BaseURLFromBind(bind string) string {
	bind = strings.TrimSpace(bind)
	if strings.HasPrefix(bind, "http://") || strings.HasPrefix(bind, "https://") {
		return strings.TrimRight(bind, "/")
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Submit enqueues a translation job.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (JobReport, error) {
	var resp JobResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", nil, req, &resp); err != nil {
		return JobReport{}, err
	}
	return resp.Job, nil
}

// Job fetches the report for one job.
func (c *Client) Job(ctx context.Context, id string) (JobReport, error) {
	var resp JobResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, nil, &resp); err != nil {
		return JobReport{}, err
	}
	return resp.Job, nil
}

// Jobs lists jobs, optionally filtered by status names.
func (c *Client) Jobs(ctx context.Context, statuses ...string) ([]JobReport, error) {
	query := url.Values{}
	for _, s := range statuses {
		if s = strings.TrimSpace(s); s != "" {
			query.Add("status", s)
		}
	}
	var resp JobListResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Remove deletes a finished job and its delivered output.
func (c *Client) Remove(ctx context.Context, id string) error {
	var resp RemoveResponse
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, nil, &resp)
}

// Status fetches daemon runtime status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var resp DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &resp); err != nil {
		return DaemonStatus{}, err
	}
	return resp, nil
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) (NotificationResponse, error) {
	var resp NotificationResponse
	if err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, nil, &resp); err != nil {
		return NotificationResponse{}, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode}
		var payload ErrorResponse
		if json.Unmarshal(data, &payload) == nil {
			httpErr.Message = payload.Error
			httpErr.Kind = payload.Kind
		}
		if httpErr.Message == "" {
			httpErr.Message = strings.TrimSpace(string(data))
		}
		return httpErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
