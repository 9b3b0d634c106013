package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aretw0/mesa/pkg/domain"
)

// Client is a minimal JSON-RPC client for a mesa server.
type Client struct {
	BaseURL    string
	APIKey     string
	Instance   string
	HTTPClient *http.Client
	Timeout    time.Duration

	seq atomic.Int64
}

// NewClient creates a client with sane defaults.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		Instance: "default",
		Timeout:  10 * time.Second,
	}
}

// APIError is returned when the server answers with something other than an envelope.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Call sends method to agentType and returns the response envelope.
// Error envelopes are returned as responses, not as Go errors.
func (c *Client) Call(ctx context.Context, agentType, method string, params any) (domain.Response, error) {
	req := domain.NewRequest(fmt.Sprintf("cli-%d", c.seq.Add(1)), method, params)
	return c.Send(ctx, agentType, req)
}

// Send posts a prepared request envelope.
func (c *Client) Send(ctx context.Context, agentType string, req domain.Request) (domain.Response, error) {
	instance := c.Instance
	if instance == "" {
		instance = "default"
	}
	endpoint := fmt.Sprintf("agents/%s/%s", url.PathEscape(agentType), url.PathEscape(instance))

	var out domain.Response
	if err := c.do(ctx, http.MethodPost, endpoint, req, &out); err != nil {
		return domain.Response{}, err
	}
	return out, nil
}

// Info fetches the server description from GET /info.
func (c *Client) Info(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "info", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set(APIKeyHeader, c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	// Error envelopes come with 4xx/5xx statuses; anything that decodes is handed back.
	if err := json.Unmarshal(b, out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if resp.StatusCode >= 300 {
		if r, ok := out.(*domain.Response); ok && r.Error != nil {
			return nil
		}
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
