package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the ElevenLabs v1 API root.
	DefaultBaseURL = "https://api.elevenlabs.io/v1"
	// DefaultModel is the multilingual synthesis model.
	DefaultModel = "eleven_multilingual_v1"

	defaultHTTPTimeout = 5 * time.Minute
	maxErrorBody       = 64 << 10
)

// Config captures the runtime settings required to talk to the provider.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client calls the speech provider.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:   strings.TrimSpace(cfg.Model),
		},
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = DefaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = DefaultModel
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Model returns the synthesis model id.
func (c *Client) Model() string {
	return c.cfg.Model
}

// CloneVoice uploads sample and returns the new voice id.
func (c *Client) CloneVoice(ctx context.Context, name, samplePath string) (string, error) {
	if err := c.requireKey("clone voice"); err != nil {
		return "", err
	}
	file, err := os.Open(samplePath)
	if err != nil {
		return "", fmt.Errorf("clone voice: open sample: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("name", name); err != nil {
		return "", fmt.Errorf("clone voice: encode form: %w", err)
	}
	if err := writer.WriteField("description", "temporary voice for a translation job"); err != nil {
		return "", fmt.Errorf("clone voice: encode form: %w", err)
	}
	part, err := writer.CreateFormFile("files", filepath.Base(samplePath))
	if err != nil {
		return "", fmt.Errorf("clone voice: encode form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("clone voice: read sample: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("clone voice: encode form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "voices/add", &body)
	if err != nil {
		return "", fmt.Errorf("clone voice: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("clone voice: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		VoiceID string `json:"voice_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("clone voice: decode response: %w", err)
	}
	if strings.TrimSpace(payload.VoiceID) == "" {
		return "", errors.New("clone voice: response missing voice_id")
	}
	return payload.VoiceID, nil
}

// DeleteVoice removes a cloned voice. Deleting an unknown voice is not an error.
func (c *Client) DeleteVoice(ctx context.Context, voiceID string) error {
	if err := c.requireKey("delete voice"); err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "voices/"+url.PathEscape(voiceID), nil)
	if err != nil {
		return fmt.Errorf("delete voice: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("delete voice: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

// Synthesize renders text with voiceID and writes the MP3 audio to dest.
// It returns the number of bytes written.
func (c *Client) Synthesize(ctx context.Context, voiceID, text, dest string) (int64, error) {
	if err := c.requireKey("synthesize"); err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		return 0, errors.New("synthesize: text required")
	}
	encoded, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": c.cfg.Model,
	})
	if err != nil {
		return 0, fmt.Errorf("synthesize: encode body: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "text-to-speech/"+url.PathEscape(voiceID), bytes.NewReader(encoded))
	if err != nil {
		return 0, fmt.Errorf("synthesize: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.do(req)
	if err != nil {
		return 0, fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Body.Close()

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("synthesize: create output: %w", err)
	}
	written, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		return written, fmt.Errorf("synthesize: write audio: %w", copyErr)
	}
	if closeErr != nil {
		return written, fmt.Errorf("synthesize: write audio: %w", closeErr)
	}
	return written, nil
}

// HealthCheck verifies the API key by fetching the account subscription.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.requireKey("voice health"); err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodGet, "user/subscription", nil)
	if err != nil {
		return fmt.Errorf("voice health: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("voice health: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) requireKey(op string) error {
	if !c.Configured() {
		return fmt.Errorf("%s: api key required", op)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, path)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	return req, nil
}

// do sends req and converts non-2xx responses into *APIError. The caller owns
// the returned body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return resp, nil
}
