package sentimentgate

import (
	"context"
	"time"
)

// Presigner issues time-limited, single-object write authorizations on the
// external object store.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}

// ObjectChecker reports whether an object exists in the external store.
type ObjectChecker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// ObjectLocator turns an object key into the location the engine reads from,
// e.g. "s3://bucket/key".
type ObjectLocator interface {
	Locate(key string) string
}
