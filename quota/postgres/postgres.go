// Package postgres provides a PostgreSQL-backed quota store for sentimentgate.
//
// Commits are a single conditional UPDATE, so concurrent requests for the same
// account cannot push usage past the cap, across any number of processes.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ineyio/sentimentgate"
)

const uniqueViolation = "23505"

// Store is a PostgreSQL-backed quota store.
type Store struct {
	pool        *pgxpool.Pool
	tablePrefix string
}

var _ sentimentgate.Store = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithTablePrefix sets the table name prefix (default "sentimentgate_").
func WithTablePrefix(prefix string) Option {
	return func(s *Store) { s.tablePrefix = prefix }
}

// New creates a new PostgreSQL-backed quota store.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:        pool,
		tablePrefix: "sentimentgate_",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) quotasTable() string { return s.tablePrefix + "quotas" }

// EnsureSchema creates the required table if it doesn't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			account_id TEXT PRIMARY KEY,
			secret_key TEXT NOT NULL UNIQUE,
			requests_used BIGINT NOT NULL DEFAULT 0,
			max_requests BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (max_requests > 0),
			CHECK (requests_used >= 0 AND requests_used <= max_requests)
		);
	`, s.quotasTable())
	_, err := s.pool.Exec(ctx, q)
	if err != nil {
		return fmt.Errorf("sentimentgate/postgres: ensure schema: %w", err)
	}
	return nil
}

// Provision upserts a quota record. Usage of an existing account is preserved;
// lowering the cap below current usage is refused.
func (s *Store) Provision(ctx context.Context, rec sentimentgate.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	var ok bool
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %[1]s AS q (account_id, secret_key, requests_used, max_requests)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (account_id) DO UPDATE
				SET secret_key = EXCLUDED.secret_key, max_requests = EXCLUDED.max_requests, updated_at = now()
				WHERE q.requests_used <= EXCLUDED.max_requests
			RETURNING true`, s.quotasTable()),
		rec.AccountID, rec.SecretKey, rec.RequestsUsed, rec.MaxRequests,
	).Scan(&ok)

	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("sentimentgate/postgres: provision %s: usage exceeds cap %d", rec.AccountID, rec.MaxRequests)
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return fmt.Errorf("sentimentgate/postgres: provision %s: secret key already assigned", rec.AccountID)
	case err != nil:
		return fmt.Errorf("sentimentgate/postgres: provision: %w", err)
	}
	return nil
}

// FindBySecretKey returns the account owning secretKey.
func (s *Store) FindBySecretKey(ctx context.Context, secretKey string) (sentimentgate.Account, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT account_id FROM %s WHERE secret_key = $1`, s.quotasTable()),
		secretKey,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return sentimentgate.Account{}, sentimentgate.ErrAccountNotFound
	}
	if err != nil {
		return sentimentgate.Account{}, fmt.Errorf("sentimentgate/postgres: find account: %w", err)
	}
	return sentimentgate.Account{ID: id}, nil
}

// CheckAndReserve returns ErrQuotaExceeded if the account is at its cap.
func (s *Store) CheckAndReserve(ctx context.Context, accountID string) (sentimentgate.Reservation, error) {
	u, err := s.Usage(ctx, accountID)
	if err != nil {
		return sentimentgate.Reservation{}, err
	}
	if u.RequestsUsed >= u.MaxRequests {
		return sentimentgate.Reservation{}, sentimentgate.ErrQuotaExceeded
	}
	return sentimentgate.Reservation{
		ID:        uuid.New().String(),
		AccountID: accountID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Commit increments usage by one unless the cap was reached meanwhile.
func (s *Store) Commit(ctx context.Context, res sentimentgate.Reservation) error {
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET requests_used = requests_used + 1, updated_at = now()
			WHERE account_id = $1 AND requests_used < max_requests`, s.quotasTable()),
		res.AccountID,
	)
	if err != nil {
		return fmt.Errorf("sentimentgate/postgres: commit: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Nothing updated: either the cap was hit or the account is gone.
	if _, err := s.Usage(ctx, res.AccountID); err != nil {
		return err
	}
	return sentimentgate.ErrQuotaConflict
}

// Usage returns the current counters for an account.
func (s *Store) Usage(ctx context.Context, accountID string) (sentimentgate.Usage, error) {
	var u sentimentgate.Usage
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT requests_used, max_requests FROM %s WHERE account_id = $1`, s.quotasTable()),
		accountID,
	).Scan(&u.RequestsUsed, &u.MaxRequests)
	if errors.Is(err, pgx.ErrNoRows) {
		return sentimentgate.Usage{}, sentimentgate.ErrAccountNotFound
	}
	if err != nil {
		return sentimentgate.Usage{}, fmt.Errorf("sentimentgate/postgres: usage: %w", err)
	}
	return u, nil
}
