package connection

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPClient reads the registry's admin endpoints.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*http.Transport)

// WithTLSConfig sets the TLS config used for https URLs.
func WithTLSConfig(cfg *tls.Config) HTTPOption {
	return func(t *http.Transport) {
		t.TLSClientConfig = cfg
	}
}

// NewHTTPClient creates a new HTTP client. A server without a scheme is
// reached over plain http.
func NewHTTPClient(server string, opts ...HTTPOption) *HTTPClient {
	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	for _, opt := range opts {
		opt(transport)
	}

	return &HTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "svcreg-cli/1.0")
	req.Header.Set("Accept", "application/json")
	return c.client.Do(req)
}

// GetJSON performs a GET request and decodes the envelope's data into target.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, target any) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return ParseResponse(resp, target)
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// ParseResponse parses an admin response envelope and decodes its data
// field into target.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	var envelope struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&envelope)

	if resp.StatusCode >= 400 {
		if decodeErr == nil && envelope.Message != "" {
			return fmt.Errorf("[%s] %s", envelope.Code, envelope.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("parse response: %w", decodeErr)
	}

	if target != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, target); err != nil {
			return fmt.Errorf("parse response data: %w", err)
		}
	}
	return nil
}
