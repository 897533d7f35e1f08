package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// APIError is a non-200 answer from productd.
type APIError struct {
	StatusCode int
	Message    string
	NVMID      string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("productd returned %d: %s", e.StatusCode, e.Message)
}

// Client calls a productd instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the productd instance at baseURL. A batch
// can run for minutes, so timeout should cover the slowest expected batch.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("server url is required")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// ExtractMulti runs a batch on the server.
func (c *Client) ExtractMulti(ctx context.Context, req MultiRequest) (MultiResponse, error) {
	var resp MultiResponse
	err := c.post(ctx, "/extract_productdata_multi", req, &resp)
	return resp, err
}

// ExtractOne fetches a single identifier through the server.
func (c *Client) ExtractOne(ctx context.Context, req SingleRequest) (SingleResponse, error) {
	var resp SingleResponse
	err := c.post(ctx, "/extract_productdata", req, &resp)
	return resp, err
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var er ErrorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			apiErr.Message = er.Error
			apiErr.NVMID = er.NVMID
		}
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
