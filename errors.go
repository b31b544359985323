package sentimentgate

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrUnauthorized    = errors.New("sentimentgate: unauthorized")
	ErrInvalidInput    = errors.New("sentimentgate: invalid input")
	ErrQuotaExceeded   = errors.New("sentimentgate: quota exceeded")
	ErrNotFound        = errors.New("sentimentgate: object not found")
	ErrEngine          = errors.New("sentimentgate: inference engine failed")
	ErrTransport       = errors.New("sentimentgate: transport failure")
	ErrAccountNotFound = errors.New("sentimentgate: account not found")

	// ErrReservationMismatch is a programming error: a Reservation was passed
	// to Invoke for a different account.
	ErrReservationMismatch = errors.New("sentimentgate: reservation belongs to another account")
)

// ErrQuotaConflict is returned by Ledger.Commit when a concurrent request took
// the last slot between CheckAndReserve and Commit. It matches ErrQuotaExceeded.
var ErrQuotaConflict = fmt.Errorf("%w: lost commit race", ErrQuotaExceeded)

// Stage names a step of the pipeline.
type Stage string

const (
	StageAuth    Stage = "auth"
	StageIssue   Stage = "issue"
	StageUpload  Stage = "upload"
	StageAnalyze Stage = "analyze"
)

// PipelineError wraps an error with pipeline context.
type PipelineError struct {
	Err       error
	Stage     Stage
	AccountID string
	Key       string
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("sentimentgate: stage=%s account=%s key=%s: %v",
		e.Stage, e.AccountID, e.Key, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if re-running the pipeline cannot change the outcome.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrQuotaExceeded)
}

// IsRetryable returns true if a fresh pipeline run may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEngine) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrNotFound)
}
