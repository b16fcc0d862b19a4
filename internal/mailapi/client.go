package mailapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// HTTPDoer is the interface for executing HTTP requests; *http.Client
// satisfies it. It exists so tests can substitute a fake transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client sends batch emails through the external API. There is no retry
// layer: every batch and the confirmation copy are attempted exactly once,
// so a retrying transport would turn one campaign into several.
type Client struct {
	endpoint   string
	httpClient HTTPDoer
}

// NewClient creates a client for the given endpoint. The timeout bounds
// each call so one hung request cannot stall the whole run.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client HTTPDoer) {
	c.httpClient = client
}

// Send posts one batch to the API. It returns nil on success, *APIError
// when the API rejected the send, and *TransportError for everything that
// kept a verdict from coming back.
func (c *Client) Send(ctx context.Context, sendReq *SendRequest) error {
	payload, err := json.Marshal(sendReq)
	if err != nil {
		return &TransportError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &TransportError{Err: err}
	}
	if parsed.Status != "success" {
		return &APIError{StatusCode: resp.StatusCode, Status: parsed.Status, Body: string(body)}
	}
	return nil
}
