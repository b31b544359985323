// Package httpengine calls a sentiment inference engine exposed over HTTP.
//
// The engine receives {"video_path": "<location>", "key": "<key>"} and answers
// with the raw utterance document that sentimentgate.NormalizeResponse expects.
package httpengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ineyio/sentimentgate"
)

// maxResponseBytes bounds the engine response read into memory.
const maxResponseBytes = 16 << 20

// Engine is an HTTP inference engine adapter.
type Engine struct {
	name       string
	endpoint   string
	apiKey     string
	signingKey string
	httpClient *http.Client
}

var _ sentimentgate.Engine = (*Engine)(nil)

// Option configures the engine.
type Option func(*Engine)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpClient = c }
}

// WithName overrides the engine name reported to meters (default "http").
func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(key string) Option {
	return func(e *Engine) { e.apiKey = key }
}

// WithSigningKey signs every request body with the given hex-encoded
// secp256k1 private key.
func WithSigningKey(hexKey string) Option {
	return func(e *Engine) { e.signingKey = hexKey }
}

// New creates an engine posting to endpoint.
func New(endpoint string, opts ...Option) (*Engine, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("httpengine: endpoint is required")
	}
	e := &Engine{
		name:       "http",
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.signingKey != "" {
		key, err := parsePrivateKey(e.signingKey)
		if err != nil {
			return nil, err
		}
		client := *e.httpClient
		client.Transport = newSigningTransport(e.httpClient.Transport, key)
		e.httpClient = &client
	}
	return e, nil
}

func (e *Engine) Name() string { return e.name }

type apiRequest struct {
	VideoPath string `json:"video_path"`
	Key       string `json:"key"`
}

func (e *Engine) Classify(ctx context.Context, req sentimentgate.EngineRequest) (sentimentgate.EngineResponse, error) {
	jsonBody, err := json.Marshal(apiRequest{VideoPath: req.Location, Key: req.Key})
	if err != nil {
		return sentimentgate.EngineResponse{}, fmt.Errorf("%w: marshal request: %v", sentimentgate.ErrEngine, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return sentimentgate.EngineResponse{}, fmt.Errorf("%w: create request: %v", sentimentgate.ErrEngine, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return sentimentgate.EngineResponse{}, fmt.Errorf("%w: %s unreachable: %v", sentimentgate.ErrEngine, e.name, err)
	}
	defer resp.Body.Close()

	if err := mapHTTPError(resp); err != nil {
		return sentimentgate.EngineResponse{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return sentimentgate.EngineResponse{}, fmt.Errorf("%w: read response: %v", sentimentgate.ErrEngine, err)
	}
	if len(body) > maxResponseBytes {
		return sentimentgate.EngineResponse{}, fmt.Errorf("%w: response exceeds %d bytes", sentimentgate.ErrEngine, maxResponseBytes)
	}
	return sentimentgate.EngineResponse{Body: body}, nil
}

func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read body for error context, but don't fail if we can't.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: engine could not read object", sentimentgate.ErrNotFound)
	default:
		return fmt.Errorf("%w: status %d: %s", sentimentgate.ErrEngine, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
