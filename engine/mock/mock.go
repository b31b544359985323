// Package mock provides a scriptable inference engine for tests and local runs.
package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ineyio/sentimentgate"
)

// DefaultBody is the response returned when no other behavior is configured.
const DefaultBody = `{"utterances":[` +
	`{"start_time":0,"end_time":2.5,"text":"I love this","sentiments":[{"label":"positive","confidence":0.92},{"label":"neutral","confidence":0.06}],"emotions":[{"label":"joy","confidence":0.81}]},` +
	`{"start_time":2.5,"end_time":4,"text":"it is fine","sentiments":[{"label":"neutral","confidence":0.7}]}` +
	`]}`

// Engine is a mock inference engine.
type Engine struct {
	name         string
	latency      time.Duration
	failAfter    int
	callCount    atomic.Int64
	staticErr    error
	body         []byte
	responseFunc func(sentimentgate.EngineRequest) (sentimentgate.EngineResponse, error)

	mu       sync.Mutex
	requests []sentimentgate.EngineRequest
}

var _ sentimentgate.Engine = (*Engine)(nil)

// Option configures a mock Engine.
type Option func(*Engine)

// New creates a mock engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		name: "mock",
		body: []byte(DefaultBody),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithName sets the engine name.
func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// WithLatency adds simulated latency to each call.
func WithLatency(d time.Duration) Option {
	return func(e *Engine) { e.latency = d }
}

// WithFailAfter makes the engine fail after N successful calls.
func WithFailAfter(n int) Option {
	return func(e *Engine) { e.failAfter = n }
}

// WithError makes the engine always return this error.
func WithError(err error) Option {
	return func(e *Engine) { e.staticErr = err }
}

// WithBody sets the raw response body.
func WithBody(body string) Option {
	return func(e *Engine) { e.body = []byte(body) }
}

// WithResponseFunc sets a custom response function.
func WithResponseFunc(fn func(sentimentgate.EngineRequest) (sentimentgate.EngineResponse, error)) Option {
	return func(e *Engine) { e.responseFunc = fn }
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) Classify(ctx context.Context, req sentimentgate.EngineRequest) (sentimentgate.EngineResponse, error) {
	if e.latency > 0 {
		select {
		case <-time.After(e.latency):
		case <-ctx.Done():
			return sentimentgate.EngineResponse{}, ctx.Err()
		}
	}

	count := e.callCount.Add(1)
	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.mu.Unlock()

	if e.staticErr != nil {
		return sentimentgate.EngineResponse{}, e.staticErr
	}
	if e.failAfter > 0 && int(count) > e.failAfter {
		return sentimentgate.EngineResponse{}, fmt.Errorf("%w: mock failing after %d calls", sentimentgate.ErrEngine, e.failAfter)
	}
	if e.responseFunc != nil {
		return e.responseFunc(req)
	}
	return sentimentgate.EngineResponse{Body: append([]byte(nil), e.body...)}, nil
}

// CallCount returns the number of calls made to the engine.
func (e *Engine) CallCount() int64 { return e.callCount.Load() }

// Requests returns a copy of the requests received so far.
func (e *Engine) Requests() []sentimentgate.EngineRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sentimentgate.EngineRequest(nil), e.requests...)
}
