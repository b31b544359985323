// Package sagemaker runs sentiment inference on an Amazon SageMaker endpoint.
package sagemaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime/types"

	"github.com/ineyio/sentimentgate"
)

// InvokeAPI is the subset of the SageMaker runtime client used by Engine.
type InvokeAPI interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// Engine invokes a SageMaker endpoint with {"video_path": "<location>"}.
type Engine struct {
	name     string
	endpoint string
	client   InvokeAPI
}

var _ sentimentgate.Engine = (*Engine)(nil)

// Option configures the engine.
type Option func(*Engine)

// WithName overrides the engine name (default "sagemaker").
func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// New creates an engine for the named SageMaker endpoint.
func New(client InvokeAPI, endpointName string, opts ...Option) (*Engine, error) {
	if endpointName == "" {
		return nil, fmt.Errorf("sagemaker: endpoint name is required")
	}
	e := &Engine{name: "sagemaker", endpoint: endpointName, client: client}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewFromConfig creates an engine using an AWS config.
func NewFromConfig(cfg aws.Config, endpointName string, opts ...Option) (*Engine, error) {
	return New(sagemakerruntime.NewFromConfig(cfg), endpointName, opts...)
}

func (e *Engine) Name() string { return e.name }

type invokeRequest struct {
	VideoPath string `json:"video_path"`
}

func (e *Engine) Classify(ctx context.Context, req sentimentgate.EngineRequest) (sentimentgate.EngineResponse, error) {
	payload, err := json.Marshal(invokeRequest{VideoPath: req.Location})
	if err != nil {
		return sentimentgate.EngineResponse{}, fmt.Errorf("%w: marshal request: %v", sentimentgate.ErrEngine, err)
	}

	out, err := e.client.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(e.endpoint),
		Body:         payload,
		ContentType:  aws.String("application/json"),
		Accept:       aws.String("application/json"),
	})
	if err != nil {
		return sentimentgate.EngineResponse{}, mapError(err)
	}
	return sentimentgate.EngineResponse{Body: out.Body}, nil
}

func mapError(err error) error {
	var modelErr *types.ModelError
	if errors.As(err, &modelErr) && modelErr.OriginalStatusCode != nil && *modelErr.OriginalStatusCode == 404 {
		return fmt.Errorf("%w: model could not read object: %s", sentimentgate.ErrNotFound, aws.ToString(modelErr.OriginalMessage))
	}
	return fmt.Errorf("%w: sagemaker: %v", sentimentgate.ErrEngine, err)
}
