// Package redis provides a Redis-backed quota store for sentimentgate.
//
// Quota records are Redis hashes; commits and provisioning run as Lua scripts
// so they are atomic per account. This makes it safe for multi-instance
// deployments.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ineyio/sentimentgate"
)

// Store is a Redis-backed quota store.
type Store struct {
	client    goredis.Cmdable
	keyPrefix string
}

var _ sentimentgate.Store = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithKeyPrefix sets the Redis key prefix (default "sentimentgate:quota:").
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// New creates a new Redis-backed quota store.
// The client must be a connected *goredis.Client; provisioning touches the
// secret index outside its declared keys, so cluster clients are not supported.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: "sentimentgate:quota:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) accountKey(accountID string) string {
	return s.keyPrefix + "account:" + accountID
}

func (s *Store) secretPrefix() string {
	return s.keyPrefix + "secret:"
}

func (s *Store) secretKey(secret string) string {
	return s.secretPrefix() + secret
}

// commitScript atomically increments usage if below the cap.
// KEYS[1] = account hash key
//
// Returns:
//
//	1  = committed
//	0  = cap reached
//	-1 = account not found
var commitScript = goredis.NewScript(`
local account_key = KEYS[1]
if redis.call("EXISTS", account_key) == 0 then
    return -1
end
local used = tonumber(redis.call("HGET", account_key, "requests_used") or "0")
local max = tonumber(redis.call("HGET", account_key, "max_requests") or "0")
if used >= max then
    return 0
end
redis.call("HINCRBY", account_key, "requests_used", 1)
return 1
`)

// provisionScript atomically upserts a record and its secret index.
// KEYS[1] = account hash key
// KEYS[2] = secret index key
// ARGV[1] = account id
// ARGV[2] = secret key
// ARGV[3] = initial requests used
// ARGV[4] = max requests
// ARGV[5] = secret index prefix
//
// Returns:
//
//	1  = provisioned
//	0  = existing usage exceeds the new cap
//	-1 = secret key owned by another account
var provisionScript = goredis.NewScript(`
local account_key = KEYS[1]
local secret_index = KEYS[2]
local account_id = ARGV[1]
local secret = ARGV[2]
local max = tonumber(ARGV[4])

local owner = redis.call("GET", secret_index)
if owner and owner ~= account_id then
    return -1
end

local used = tonumber(ARGV[3])
local old_secret = false
if redis.call("EXISTS", account_key) == 1 then
    used = tonumber(redis.call("HGET", account_key, "requests_used") or "0")
    old_secret = redis.call("HGET", account_key, "secret_key")
end
if used > max then
    return 0
end

if old_secret and old_secret ~= secret then
    redis.call("DEL", ARGV[5] .. old_secret)
end
redis.call("HSET", account_key, "secret_key", secret, "requests_used", used, "max_requests", max)
redis.call("SET", secret_index, account_id)
return 1
`)

// Provision upserts a quota record. Usage of an existing account is preserved;
// lowering the cap below current usage is refused.
func (s *Store) Provision(ctx context.Context, rec sentimentgate.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	result, err := provisionScript.Run(ctx, s.client,
		[]string{s.accountKey(rec.AccountID), s.secretKey(rec.SecretKey)},
		rec.AccountID, rec.SecretKey, rec.RequestsUsed, rec.MaxRequests, s.secretPrefix(),
	).Int64()
	if err != nil {
		return fmt.Errorf("sentimentgate/redis: provision: %w", err)
	}

	switch result {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("sentimentgate/redis: provision %s: usage exceeds cap %d", rec.AccountID, rec.MaxRequests)
	case -1:
		return fmt.Errorf("sentimentgate/redis: provision %s: secret key already assigned", rec.AccountID)
	default:
		return fmt.Errorf("sentimentgate/redis: unexpected provision result: %d", result)
	}
}

// FindBySecretKey returns the account owning secretKey.
func (s *Store) FindBySecretKey(ctx context.Context, secretKey string) (sentimentgate.Account, error) {
	id, err := s.client.Get(ctx, s.secretKey(secretKey)).Result()
	if errors.Is(err, goredis.Nil) {
		return sentimentgate.Account{}, sentimentgate.ErrAccountNotFound
	}
	if err != nil {
		return sentimentgate.Account{}, fmt.Errorf("sentimentgate/redis: find account: %w", err)
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
	result, err := commitScript.Run(ctx, s.client,
		[]string{s.accountKey(res.AccountID)},
	).Int64()
	if err != nil {
		return fmt.Errorf("sentimentgate/redis: commit: %w", err)
	}

	switch result {
	case 1:
		return nil
	case 0:
		return sentimentgate.ErrQuotaConflict
	case -1:
		return sentimentgate.ErrAccountNotFound
	default:
		return fmt.Errorf("sentimentgate/redis: unexpected commit result: %d", result)
	}
}

// Usage returns the current counters for an account.
func (s *Store) Usage(ctx context.Context, accountID string) (sentimentgate.Usage, error) {
	vals, err := s.client.HMGet(ctx, s.accountKey(accountID), "requests_used", "max_requests").Result()
	if err != nil {
		return sentimentgate.Usage{}, fmt.Errorf("sentimentgate/redis: usage: %w", err)
	}

	// Account not found.
	if vals[1] == nil {
		return sentimentgate.Usage{}, sentimentgate.ErrAccountNotFound
	}

	used, err := parseCounter(vals[0])
	if err != nil {
		return sentimentgate.Usage{}, fmt.Errorf("sentimentgate/redis: usage: requests_used: %w", err)
	}
	max, err := parseCounter(vals[1])
	if err != nil {
		return sentimentgate.Usage{}, fmt.Errorf("sentimentgate/redis: usage: max_requests: %w", err)
	}
	return sentimentgate.Usage{RequestsUsed: used, MaxRequests: max}, nil
}

func parseCounter(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	str, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected type %T", v)
	}
	return strconv.ParseInt(str, 10, 64)
}
