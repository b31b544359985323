package sentimentgate

import (
	"context"
	"fmt"
	"time"
)

// Ledger is the single consistency authority for per-account request quota.
type Ledger interface {
	// CheckAndReserve reports whether the account may make one more request.
	// It returns ErrQuotaExceeded when RequestsUsed >= MaxRequests and never mutates.
	CheckAndReserve(ctx context.Context, accountID string) (Reservation, error)

	// Commit atomically increments RequestsUsed by one, re-validating the cap.
	// It returns ErrQuotaConflict when the cap was reached since CheckAndReserve.
	Commit(ctx context.Context, res Reservation) error

	// Usage returns the current counters for an account.
	Usage(ctx context.Context, accountID string) (Usage, error)
}

// AccountStore resolves bearer credentials to accounts.
type AccountStore interface {
	// FindBySecretKey returns the account whose secret key equals secretKey exactly.
	// It returns ErrAccountNotFound when there is none.
	FindBySecretKey(ctx context.Context, secretKey string) (Account, error)
}

// Provisioner is optionally implemented by stores that can create or update
// quota records, e.g. from the accounts seed in Config.
type Provisioner interface {
	// Provision upserts the record. Existing usage is preserved.
	Provision(ctx context.Context, rec Record) error
}

// Store is what the storage backends in quota/ implement.
type Store interface {
	Ledger
	AccountStore
	Provisioner
}

// Record is the persistent per-account quota record.
type Record struct {
	AccountID    string
	SecretKey    string
	RequestsUsed int64
	MaxRequests  int64
}

// Validate checks the fields a Provisioner needs.
func (r Record) Validate() error {
	if r.AccountID == "" {
		return fmt.Errorf("sentimentgate: record: account id is required")
	}
	if r.SecretKey == "" {
		return fmt.Errorf("sentimentgate: record (%s): secret key is required", r.AccountID)
	}
	if r.MaxRequests <= 0 {
		return fmt.Errorf("sentimentgate: record (%s): max requests must be positive", r.AccountID)
	}
	if r.RequestsUsed < 0 || r.RequestsUsed > r.MaxRequests {
		return fmt.Errorf("sentimentgate: record (%s): requests used %d outside [0, %d]", r.AccountID, r.RequestsUsed, r.MaxRequests)
	}
	return nil
}

// Reservation is the proof that CheckAndReserve allowed a request. No state is
// held for it; the ID only correlates log lines.
type Reservation struct {
	ID        string
	AccountID string
	CreatedAt time.Time
}

// Usage is a read-only view of a quota record.
type Usage struct {
	RequestsUsed int64 `json:"requestsUsed"`
	MaxRequests  int64 `json:"maxRequests"`
}

// Remaining returns the number of requests left in the period.
func (u Usage) Remaining() int64 {
	if u.RequestsUsed >= u.MaxRequests {
		return 0
	}
	return u.MaxRequests - u.RequestsUsed
}
