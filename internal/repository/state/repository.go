package state

import (
	"context"
)

// Repository persists small per-session values (current cart id, cached
// orders, checkout guards). Missing or expired keys return domain.ErrNotFound.
type Repository interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, error)
	Set(ctx context.Context, sessionID, key string, value []byte) error
	// SetIfAbsent stores value only when key is missing or expired and reports whether it did.
	SetIfAbsent(ctx context.Context, sessionID, key string, value []byte) (bool, error)
	Delete(ctx context.Context, sessionID, key string) error
	Ping(ctx context.Context) error
}
