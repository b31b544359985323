package quota

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ineyio/sentimentgate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func provisioned(t *testing.T, used, max int64) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	require.NoError(t, s.Provision(context.Background(), sentimentgate.Record{
		AccountID: "acct1", SecretKey: "sk-1", RequestsUsed: used, MaxRequests: max,
	}))
	return s
}

func TestMemoryStore_ReserveAndCommit(t *testing.T) {
	s := provisioned(t, 0, 2)
	ctx := context.Background()

	for range 2 {
		res, err := s.CheckAndReserve(ctx, "acct1")
		require.NoError(t, err)
		require.NoError(t, s.Commit(ctx, res))
	}

	_, err := s.CheckAndReserve(ctx, "acct1")
	assert.ErrorIs(t, err, sentimentgate.ErrQuotaExceeded)

	err = s.Commit(ctx, sentimentgate.Reservation{AccountID: "acct1"})
	assert.ErrorIs(t, err, sentimentgate.ErrQuotaConflict)

	u, err := s.Usage(ctx, "acct1")
	require.NoError(t, err)
	assert.Equal(t, sentimentgate.Usage{RequestsUsed: 2, MaxRequests: 2}, u)
	assert.Equal(t, int64(0), u.Remaining())
}

func TestMemoryStore_Provision(t *testing.T) {
	s := provisioned(t, 3, 10)
	ctx := context.Background()

	// Rotation keeps usage and drops the old secret.
	require.NoError(t, s.Provision(ctx, sentimentgate.Record{AccountID: "acct1", SecretKey: "sk-2", MaxRequests: 4}))
	_, err := s.FindBySecretKey(ctx, "sk-1")
	assert.ErrorIs(t, err, sentimentgate.ErrAccountNotFound)
	acct, err := s.FindBySecretKey(ctx, "sk-2")
	require.NoError(t, err)
	assert.Equal(t, "acct1", acct.ID)
	u, _ := s.Usage(ctx, "acct1")
	assert.Equal(t, sentimentgate.Usage{RequestsUsed: 3, MaxRequests: 4}, u)

	assert.Error(t, s.Provision(ctx, sentimentgate.Record{AccountID: "acct1", SecretKey: "sk-2", MaxRequests: 2}), "cap below usage")
	assert.Error(t, s.Provision(ctx, sentimentgate.Record{AccountID: "acct2", SecretKey: "sk-2", MaxRequests: 2}), "foreign secret")
	assert.Error(t, s.Provision(ctx, sentimentgate.Record{AccountID: "acct3", SecretKey: "sk-3"}), "zero cap")

	u, _ = s.Usage(ctx, "acct1")
	assert.Equal(t, int64(4), u.MaxRequests)
}

func TestMemoryStore_UnknownAccount(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.CheckAndReserve(ctx, "ghost")
	assert.ErrorIs(t, err, sentimentgate.ErrAccountNotFound)
	assert.ErrorIs(t, s.Commit(ctx, sentimentgate.Reservation{AccountID: "ghost"}), sentimentgate.ErrAccountNotFound)
	_, err = s.Usage(ctx, "ghost")
	assert.ErrorIs(t, err, sentimentgate.ErrAccountNotFound)
}

func TestMemoryStore_ConcurrentCommits(t *testing.T) {
	s := provisioned(t, 0, 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	var ok, conflicts atomic.Int64
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Commit(ctx, sentimentgate.Reservation{AccountID: "acct1"})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, sentimentgate.ErrQuotaExceeded):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), ok.Load())
	assert.Equal(t, int64(40), conflicts.Load())
}
