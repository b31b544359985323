// Package client is the caller side of the sentimentgate HTTP API: a thin
// Client for the three endpoints plus the Pipeline that sequences
// upload-target request, direct upload and inference.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ineyio/sentimentgate"
)

// DefaultTimeout bounds one HTTP exchange when no client is supplied.
const DefaultTimeout = 5 * time.Minute

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Target is the upload-url response.
type Target struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string // server-provided {error}, may be empty
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("sentimentgate/client: status %d", e.StatusCode)
	}
	return fmt.Sprintf("sentimentgate/client: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code onto the error taxonomy.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return sentimentgate.ErrUnauthorized
	case http.StatusBadRequest:
		return sentimentgate.ErrInvalidInput
	case http.StatusTooManyRequests:
		return sentimentgate.ErrQuotaExceeded
	case http.StatusNotFound:
		return sentimentgate.ErrNotFound
	case http.StatusBadGateway:
		return sentimentgate.ErrEngine
	default:
		return sentimentgate.ErrTransport
	}
}

// Client talks to one sentimentgate server with one secret key.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for API calls and uploads.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// New creates a Client. baseURL is e.g. "http://localhost:8080".
func New(baseURL, secretKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestUploadTarget asks the server for a presigned write target.
func (c *Client) RequestUploadTarget(ctx context.Context, fileType string) (Target, error) {
	var t Target
	err := c.call(ctx, http.MethodPost, "/api/upload-url", map[string]string{"fileType": fileType}, &t)
	return t, err
}

// Upload PUTs body to the target URL. The object store is contacted directly;
// no API credential is sent. Every failure, including a rejection by the
// store, matches ErrTransport.
func (c *Client) Upload(ctx context.Context, target Target, contentType string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.URL, body)
	if err != nil {
		return fmt.Errorf("%w: build upload request: %v", sentimentgate.ErrTransport, err)
	}
	if size > 0 {
		req.ContentLength = size
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: upload: %v", sentimentgate.ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: object store returned status %d", sentimentgate.ErrTransport, resp.StatusCode)
	}
	return nil
}

// Analyze runs inference on an uploaded key.
func (c *Client) Analyze(ctx context.Context, key string) (sentimentgate.Analysis, error) {
	var a sentimentgate.Analysis
	err := c.call(ctx, http.MethodPost, "/api/sentiment-inference", map[string]string{"key": key}, &a)
	return a, err
}

// Usage returns the account's quota counters.
func (c *Client) Usage(ctx context.Context) (sentimentgate.Usage, error) {
	var u sentimentgate.Usage
	err := c.call(ctx, http.MethodGet, "/api/quota", nil, &u)
	return u, err
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("sentimentgate/client: marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("sentimentgate/client: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", sentimentgate.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", sentimentgate.ErrTransport, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &envelope); err == nil {
		apiErr.Message = envelope.Error
	}
	return apiErr
}

// ServerMessage returns the server-provided message carried by err, if any.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
