// Package sqlite provides a SQLite-backed quota store for single-node
// deployments. The schema is managed with goose migrations embedded in the
// binary.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ineyio/sentimentgate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const driver = "sqlite"

// Store is a SQLite-backed quota store.
type Store struct {
	db *sql.DB
}

var _ sentimentgate.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates it.
// The ".sqlite" suffix is appended to path.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "data/quota"
	}
	db, err := sql.Open(driver, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sentimentgate/sqlite: open: %w", err)
	}
	// SQLite allows a single writer; serialize on one connection.
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("sentimentgate/sqlite: set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sentimentgate/sqlite: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func dsn(path string) string {
	values := url.Values{}
	values.Add("_pragma", "journal_mode(WAL)")
	values.Add("_pragma", "synchronous(NORMAL)")
	values.Add("_pragma", "busy_timeout(5000)")
	values.Add("_pragma", "temp_store(MEMORY)")
	return fmt.Sprintf("file:%s.sqlite?%s", strings.TrimSuffix(path, ".sqlite"), values.Encode())
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Provision upserts a quota record. Usage of an existing account is preserved;
// lowering the cap below current usage is refused.
func (s *Store) Provision(ctx context.Context, rec sentimentgate.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO quotas (account_id, secret_key, requests_used, max_requests)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (account_id) DO UPDATE
			SET secret_key = excluded.secret_key,
			    max_requests = excluded.max_requests,
			    updated_at = CURRENT_TIMESTAMP
			WHERE quotas.requests_used <= excluded.max_requests`,
		rec.AccountID, rec.SecretKey, rec.RequestsUsed, rec.MaxRequests,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("sentimentgate/sqlite: provision %s: secret key already assigned", rec.AccountID)
	}
	if err != nil {
		return fmt.Errorf("sentimentgate/sqlite: provision: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sentimentgate/sqlite: provision: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sentimentgate/sqlite: provision %s: usage exceeds cap %d", rec.AccountID, rec.MaxRequests)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
}

// FindBySecretKey returns the account owning secretKey.
func (s *Store) FindBySecretKey(ctx context.Context, secretKey string) (sentimentgate.Account, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT account_id FROM quotas WHERE secret_key = ?`, secretKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return sentimentgate.Account{}, sentimentgate.ErrAccountNotFound
	}
	if err != nil {
		return sentimentgate.Account{}, fmt.Errorf("sentimentgate/sqlite: find account: %w", err)
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
	result, err := s.db.ExecContext(ctx, `
		UPDATE quotas SET requests_used = requests_used + 1, updated_at = CURRENT_TIMESTAMP
		WHERE account_id = ? AND requests_used < max_requests`,
		res.AccountID,
	)
	if err != nil {
		return fmt.Errorf("sentimentgate/sqlite: commit: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sentimentgate/sqlite: commit: %w", err)
	}
	if n == 1 {
		return nil
	}

	if _, err := s.Usage(ctx, res.AccountID); err != nil {
		return err
	}
	return sentimentgate.ErrQuotaConflict
}

// Usage returns the current counters for an account.
func (s *Store) Usage(ctx context.Context, accountID string) (sentimentgate.Usage, error) {
	var u sentimentgate.Usage
	err := s.db.QueryRowContext(ctx,
		`SELECT requests_used, max_requests FROM quotas WHERE account_id = ?`, accountID,
	).Scan(&u.RequestsUsed, &u.MaxRequests)
	if errors.Is(err, sql.ErrNoRows) {
		return sentimentgate.Usage{}, sentimentgate.ErrAccountNotFound
	}
	if err != nil {
		return sentimentgate.Usage{}, fmt.Errorf("sentimentgate/sqlite: usage: %w", err)
	}
	return u, nil
}
