package storage

import "context"

// Storage is a keyed record store used by the in-memory backend.
type Storage interface {
	Create(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string) (any, error)
	Update(ctx context.Context, key string, value any) error
	Upsert(ctx context.Context, key string, value any) error
	// List returns every value ordered by key.
	List(ctx context.Context) ([]any, error)
	Delete(ctx context.Context, key string) error
}
