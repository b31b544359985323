//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ineyio/sentimentgate"
	quotapg "github.com/ineyio/sentimentgate/quota/postgres"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "postgres://localhost:5432/sentimentgate_test?sslmode=disable"
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		t.Fatalf("postgres not available: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func newTestStore(t *testing.T, pool *pgxpool.Pool) *quotapg.Store {
	t.Helper()
	// Use a unique prefix per test to avoid collisions.
	prefix := fmt.Sprintf("test_%s_", strings.ToLower(t.Name()))
	s := quotapg.New(pool, quotapg.WithTablePrefix(prefix))

	ctx := context.Background()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %squotas", prefix))
	})
	return s
}

func provision(t *testing.T, s *quotapg.Store, id, secret string, used, max int64) {
	t.Helper()
	err := s.Provision(context.Background(), sentimentgate.Record{
		AccountID: id, SecretKey: secret, RequestsUsed: used, MaxRequests: max,
	})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
}

func TestReserveAndCommit(t *testing.T) {
	pool := newTestPool(t)
	store := newTestStore(t, pool)
	ctx := context.Background()

	provision(t, store, "acct1", "sk-1", 0, 10)

	res, err := store.CheckAndReserve(ctx, "acct1")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if res.AccountID != "acct1" || res.ID == "" {
		t.Fatalf("unexpected reservation: %+v", res)
	}

	if err := store.Commit(ctx, res); err != nil {
		t.Fatalf("commit: %v", err)
	}

	u, err := store.Usage(ctx, "acct1")
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if u.RequestsUsed != 1 || u.MaxRequests != 10 {
		t.Fatalf("expected 1/10, got %d/%d", u.RequestsUsed, u.MaxRequests)
	}
}

func TestReserveExceeded(t *testing.T) {
	pool := newTestPool(t)
	store := newTestStore(t, pool)
	ctx := context.Background()

	provision(t, store, "acct1", "sk-1", 5, 5)

	_, err := store.CheckAndReserve(ctx, "acct1")
	if !errors.Is(err, sentimentgate.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	u, _ := store.Usage(ctx, "acct1")
	if u.RequestsUsed != 5 {
		t.Fatalf("expected usage unchanged at 5, got %d", u.RequestsUsed)
	}
}

func TestFindBySecretKeyIsExact(t *testing.T) {
	pool := newTestPool(t)
	store := newTestStore(t, pool)
	ctx := context.Background()

	provision(t, store, "acct1", "sk-Secret", 0, 5)

	acct, err := store.FindBySecretKey(ctx, "sk-Secret")
	if err != nil || acct.ID != "acct1" {
		t.Fatalf("expected acct1, got %+v (%v)", acct, err)
	}
	for _, probe := range []string{"sk-secret", "sk-Secre", "sk-Secret "} {
		if _, err := store.FindBySecretKey(ctx, probe); !errors.Is(err, sentimentgate.ErrAccountNotFound) {
			t.Fatalf("probe %q: expected ErrAccountNotFound, got %v", probe, err)
		}
	}
}

func TestProvisionPreservesUsage(t *testing.T) {
	pool := newTestPool(t)
	store := newTestStore(t, pool)
	ctx := context.Background()

	provision(t, store, "acct1", "sk-1", 3, 10)
	provision(t, store, "acct1", "sk-1", 0, 20)

	u, _ := store.Usage(ctx, "acct1")
	if u.RequestsUsed != 3 || u.MaxRequests != 20 {
		t.Fatalf("expected 3/20, got %d/%d", u.RequestsUsed, u.MaxRequests)
	}

	err := store.Provision(ctx, sentimentgate.Record{AccountID: "acct1", SecretKey: "sk-1", MaxRequests: 2})
	if err == nil {
		t.Fatal("expected lowering cap below usage to be refused")
	}
}

func TestConcurrentCommitsLastSlot(t *testing.T) {
	pool := newTestPool(t)
	store := newTestStore(t, pool)
	ctx := context.Background()

	provision(t, store, "acct1", "sk-1", 2, 3)

	r1, err := store.CheckAndReserve(ctx, "acct1")
	if err != nil {
		t.Fatalf("reserve 1: %v", err)
	}
	r2, err := store.CheckAndReserve(ctx, "acct1")
	if err != nil {
		t.Fatalf("reserve 2: %v", err)
	}

	var wg sync.WaitGroup
	var ok, conflicts atomic.Int64
	for _, r := range []sentimentgate.Reservation{r1, r2} {
		wg.Add(1)
		go func(r sentimentgate.Reservation) {
			defer wg.Done()
			err := store.Commit(ctx, r)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, sentimentgate.ErrQuotaExceeded):
				conflicts.Add(1)
			}
		}(r)
	}
	wg.Wait()

	if ok.Load() != 1 || conflicts.Load() != 1 {
		t.Fatalf("expected 1 commit and 1 conflict, got %d and %d", ok.Load(), conflicts.Load())
	}
	u, _ := store.Usage(ctx, "acct1")
	if u.RequestsUsed != 3 {
		t.Fatalf("expected usage 3, got %d", u.RequestsUsed)
	}
}

func TestConcurrentCommitsNoOverAllocation(t *testing.T) {
	pool := newTestPool(t)
	store := newTestStore(t, pool)
	ctx := context.Background()

	provision(t, store, "acct1", "sk-1", 0, 10)

	var wg sync.WaitGroup
	var successCount atomic.Int64

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Commit(ctx, sentimentgate.Reservation{AccountID: "acct1"}); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != 10 {
		t.Fatalf("expected exactly 10 successful commits, got %d", successCount.Load())
	}
}

func TestTablePrefixIsolation(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	s1 := quotapg.New(pool, quotapg.WithTablePrefix("test_iso1_"))
	s2 := quotapg.New(pool, quotapg.WithTablePrefix("test_iso2_"))

	if err := s1.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema s1: %v", err)
	}
	if err := s2.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema s2: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, "DROP TABLE IF EXISTS test_iso1_quotas, test_iso2_quotas")
	})

	provision(t, s1, "acct1", "sk-1", 0, 100)
	provision(t, s2, "acct1", "sk-1", 0, 200)

	u1, _ := s1.Usage(ctx, "acct1")
	u2, _ := s2.Usage(ctx, "acct1")

	if u1.MaxRequests != 100 {
		t.Fatalf("s1 expected 100, got %d", u1.MaxRequests)
	}
	if u2.MaxRequests != 200 {
		t.Fatalf("s2 expected 200, got %d", u2.MaxRequests)
	}
}
