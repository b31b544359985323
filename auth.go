package sentimentgate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const bearerPrefix = "Bearer "

// Gate resolves bearer credentials to accounts.
type Gate struct {
	store AccountStore
}

// NewGate creates a Gate backed by store.
func NewGate(store AccountStore) *Gate {
	return &Gate{store: store}
}

// Resolve parses an Authorization header value and resolves its credential.
// Malformed headers and unknown credentials both return ErrUnauthorized.
func (g *Gate) Resolve(ctx context.Context, header string) (Account, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return Account{}, ErrUnauthorized
	}
	return g.ResolveCredential(ctx, strings.TrimPrefix(header, bearerPrefix))
}

// ResolveCredential looks up the account whose secret key equals credential.
func (g *Gate) ResolveCredential(ctx context.Context, credential string) (Account, error) {
	if credential == "" {
		return Account{}, ErrUnauthorized
	}

	acct, err := g.store.FindBySecretKey(ctx, credential)
	if errors.Is(err, ErrAccountNotFound) {
		return Account{}, ErrUnauthorized
	}
	if err != nil {
		return Account{}, fmt.Errorf("sentimentgate: resolve credential: %w", err)
	}
	return acct, nil
}
