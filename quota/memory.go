package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ineyio/sentimentgate"
)

// MemoryStore is an in-memory quota store. A single mutex serializes every
// check and commit, so it is only suitable for one process.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*accountQuota
	secrets  map[string]string // secret key -> account id
}

type accountQuota struct {
	SecretKey    string
	RequestsUsed int64
	MaxRequests  int64
}

var _ sentimentgate.Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory quota store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*accountQuota),
		secrets:  make(map[string]string),
	}
}

// Provision upserts a quota record. Usage of an existing account is preserved.
func (s *MemoryStore) Provision(_ context.Context, rec sentimentgate.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.secrets[rec.SecretKey]; ok && owner != rec.AccountID {
		return fmt.Errorf("sentimentgate/quota: secret key already assigned")
	}

	aq, ok := s.accounts[rec.AccountID]
	if !ok {
		aq = &accountQuota{RequestsUsed: rec.RequestsUsed}
	}
	if aq.RequestsUsed < 0 || aq.RequestsUsed > rec.MaxRequests {
		return fmt.Errorf("sentimentgate/quota: usage %d does not fit cap %d", aq.RequestsUsed, rec.MaxRequests)
	}
	s.accounts[rec.AccountID] = aq

	if aq.SecretKey != "" && aq.SecretKey != rec.SecretKey {
		delete(s.secrets, aq.SecretKey)
	}
	aq.SecretKey = rec.SecretKey
	aq.MaxRequests = rec.MaxRequests
	s.secrets[rec.SecretKey] = rec.AccountID
	return nil
}

// FindBySecretKey returns the account owning secretKey.
func (s *MemoryStore) FindBySecretKey(_ context.Context, secretKey string) (sentimentgate.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.secrets[secretKey]
	if !ok {
		return sentimentgate.Account{}, sentimentgate.ErrAccountNotFound
	}
	return sentimentgate.Account{ID: id}, nil
}

// CheckAndReserve returns ErrQuotaExceeded if the account is at its cap.
func (s *MemoryStore) CheckAndReserve(_ context.Context, accountID string) (sentimentgate.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	aq, ok := s.accounts[accountID]
	if !ok {
		return sentimentgate.Reservation{}, sentimentgate.ErrAccountNotFound
	}
	if aq.RequestsUsed >= aq.MaxRequests {
		return sentimentgate.Reservation{}, sentimentgate.ErrQuotaExceeded
	}

	return sentimentgate.Reservation{
		ID:        uuid.New().String(),
		AccountID: accountID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Commit increments usage by one unless the cap was reached meanwhile.
func (s *MemoryStore) Commit(_ context.Context, res sentimentgate.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	aq, ok := s.accounts[res.AccountID]
	if !ok {
		return sentimentgate.ErrAccountNotFound
	}
	if aq.RequestsUsed >= aq.MaxRequests {
		return sentimentgate.ErrQuotaConflict
	}

	aq.RequestsUsed++
	return nil
}

// Usage returns the current counters for an account.
func (s *MemoryStore) Usage(_ context.Context, accountID string) (sentimentgate.Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	aq, ok := s.accounts[accountID]
	if !ok {
		return sentimentgate.Usage{}, sentimentgate.ErrAccountNotFound
	}
	return sentimentgate.Usage{RequestsUsed: aq.RequestsUsed, MaxRequests: aq.MaxRequests}, nil
}
