package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/ineyio/sentimentgate"
)

// State is the observable phase of a Pipeline.
type State int

const (
	StateIdle State = iota
	StateUploading
	StateAnalyzing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateAnalyzing:
		return "analyzing"
	default:
		return "unknown"
	}
}

// Fallback messages used when the server gives none.
const (
	MsgUploadTarget = "Failed to get upload URL"
	MsgUpload       = "Failed to upload file"
	MsgAnalyze      = "Failed to analyze video"
)

// ErrBusy is returned when Run is called while another run is in progress.
var ErrBusy = errors.New("sentimentgate/client: pipeline is busy")

// Upload is the file handed to Run.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// StageError is a failed run. Message is what a user should see; Err matches
// one of the sentimentgate sentinels.
type StageError struct {
	Stage   sentimentgate.Stage
	Message string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("sentimentgate/client: %s: %s: %v", e.Stage, e.Message, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline sequences one upload-and-analyze run at a time. There are no
// retries; after a failure the caller starts again from Idle.
type Pipeline struct {
	client   *Client
	onChange func(from, to State)

	mu    sync.Mutex
	state State
}

// PipelineOption configures Pipeline.
type PipelineOption func(*Pipeline)

// OnStateChange registers a callback invoked on every transition.
func OnStateChange(fn func(from, to State)) PipelineOption {
	return func(p *Pipeline) { p.onChange = fn }
}

// NewPipeline creates an idle Pipeline over c.
func NewPipeline(c *Client, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{client: c}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current phase.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) transition(to State) {
	p.mu.Lock()
	from := p.state
	p.state = to
	p.mu.Unlock()
	if p.onChange != nil && from != to {
		p.onChange(from, to)
	}
}

// Run uploads u and returns its analysis. The pipeline is Idle again when Run
// returns, whatever the outcome.
func (p *Pipeline) Run(ctx context.Context, u Upload) (sentimentgate.Analysis, error) {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return sentimentgate.Analysis{}, ErrBusy
	}
	p.state = StateUploading
	p.mu.Unlock()
	if p.onChange != nil {
		p.onChange(StateIdle, StateUploading)
	}
	defer p.transition(StateIdle)

	target, err := p.client.RequestUploadTarget(ctx, filepath.Ext(u.Name))
	if err != nil {
		return sentimentgate.Analysis{}, stageError(sentimentgate.StageIssue, MsgUploadTarget, err, true)
	}

	if err := p.client.Upload(ctx, target, u.ContentType, u.Body, u.Size); err != nil {
		if !errors.Is(err, sentimentgate.ErrTransport) {
			err = fmt.Errorf("%w: %v", sentimentgate.ErrTransport, err)
		}
		return sentimentgate.Analysis{}, stageError(sentimentgate.StageUpload, MsgUpload, err, false)
	}

	p.transition(StateAnalyzing)

	analysis, err := p.client.Analyze(ctx, target.Key)
	if err != nil {
		return sentimentgate.Analysis{}, stageError(sentimentgate.StageAnalyze, MsgAnalyze, err, true)
	}
	return analysis, nil
}

func stageError(stage sentimentgate.Stage, fallback string, err error, useServerMessage bool) *StageError {
	msg := fallback
	if useServerMessage {
		if m := ServerMessage(err); m != "" {
			msg = m
		}
	}
	if !errors.Is(err, sentimentgate.ErrTransport) && !isTaxonomy(err) {
		err = fmt.Errorf("%w: %v", sentimentgate.ErrTransport, err)
	}
	return &StageError{Stage: stage, Message: msg, Err: err}
}

func isTaxonomy(err error) bool {
	for _, target := range []error{
		sentimentgate.ErrUnauthorized,
		sentimentgate.ErrInvalidInput,
		sentimentgate.ErrQuotaExceeded,
		sentimentgate.ErrNotFound,
		sentimentgate.ErrEngine,
		sentimentgate.ErrTransport,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
