package a55

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"a55pay-sdk/models"
	"a55pay-sdk/types"
)

const (
	ProductionBaseURL = "https://core-manager.a55.tech/api/v1/bank/public"
	SandboxBaseURL    = "https://core-manager.sandbox.a55.tech/api/v1/bank/public"
	RequestTimeout    = 30 * time.Second
)

// APIError is a non-success response from the core-manager API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("a55 api returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("a55 api returned %d", e.StatusCode)
}

// Client talks to the public core-manager endpoints.
type Client struct {
	baseURL   string
	client    *http.Client
	transport *http.Transport
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = ProductionBaseURL
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: transport,
		client: &http.Client{
			Timeout:   RequestTimeout,
			Transport: transport,
		},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs a GET on path and returns the raw body of a 2xx response.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, endpoint, nil)
}

// PostJSON marshals payload, posts it to path and returns the raw body of a
// 2xx response.
func (c *Client) PostJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %v", err)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+path, jsonPayload)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %v", err)
	}
	log.Printf("A55 %s %s answered %d in %v", method, redact(endpoint), resp.StatusCode, time.Since(startTime))

	// Remove BOM se presente
	respBody = bytes.TrimPrefix(respBody, []byte("\ufeff"))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: respBody}
		var backendErr models.BackendError
		if json.Unmarshal(respBody, &backendErr) == nil {
			apiErr.Message = backendErr.Message
		}
		return nil, apiErr
	}
	return respBody, nil
}

// AsNetworkError maps a client failure to the flow error taxonomy, keeping
// the backend's message when it sent one.
func AsNetworkError(err error, fallback string) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return types.NewNetworkError(apiErr.Message, nil)
		}
		return types.NewNetworkError(fallback, nil)
	}
	return types.NewNetworkError(fallback, err)
}

// redact drops the query string so charge ids do not end up in logs twice.
func redact(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}
