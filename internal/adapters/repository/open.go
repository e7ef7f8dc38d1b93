package repository

import (
	"context"
	"fmt"
)

// Store kinds accepted by Open.
const (
	KindMemory   = "memory"
	KindPostgres = "postgres"
)

// Open builds the Store selected by kind, migrated and wrapped with read
// retries. The returned close func releases any connection pool.
func Open(ctx context.Context, kind, dsn string, opts ...RetryOption) (Store, func() error, error) {
	switch kind {
	case KindMemory, "":
		return NewRetrying(NewMemoryStore(ctx), opts...), func() error { return nil }, nil
	case KindPostgres:
		db, err := OpenPostgres(dsn)
		if err != nil {
			return nil, nil, err
		}
		gs := NewGormStore(db)
		if err := gs.Migrate(ctx); err != nil {
			_ = gs.Close()
			return nil, nil, fmt.Errorf("%w: migrate: %v", ErrUnavailable, err)
		}
		return NewRetrying(gs, opts...), gs.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
