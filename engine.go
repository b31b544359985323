package sentimentgate

import "context"

// Engine is the interface that inference engine adapters must implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "sagemaker").
	Name() string

	// Classify asks the engine to analyze the object at req.Location and returns
	// its raw JSON output. Adapters return ErrNotFound when the engine reports
	// the object missing and wrap every other failure with ErrEngine.
	Classify(ctx context.Context, req EngineRequest) (EngineResponse, error)
}

// EngineRequest is the request sent to an engine adapter.
type EngineRequest struct {
	Key      string
	Location string
}

// EngineResponse is the raw engine output, normalized by the Invoker.
type EngineResponse struct {
	Body []byte
}
