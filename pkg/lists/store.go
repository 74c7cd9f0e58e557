package lists

import (
	"context"
	"fmt"
	"sort"
)

// Store persists saved lists. Implementations are safe for concurrent use.
type Store interface {
	Create(ctx context.Context, l *SavedList) error
	Get(ctx context.Context, id string) (*SavedList, error)
	Update(ctx context.Context, l *SavedList) error
	Delete(ctx context.Context, id string) error
	// ListByOwner returns the owner's lists, newest first.
	ListByOwner(ctx context.Context, owner string) ([]*SavedList, error)
	Close() error
}

type StoreConfig struct {
	Backend string // "sqlite" | "blob"
	DBPath  string // sqlite file, ":memory:" for a throwaway store
	BlobURL string // mem://, file:///dir, gs://bucket, s3://bucket
	Prefix  string // key prefix inside the bucket
}

// NewStore opens the backend named by cfg.Backend.
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		if cfg.DBPath == "" || cfg.DBPath == ":memory:" {
			return NewSQLiteInMemory()
		}
		return OpenSQLite(cfg.DBPath)
	case "blob":
		if cfg.BlobURL == "" {
			return nil, fmt.Errorf("blob store needs a bucket URL")
		}
		return OpenBlobStore(ctx, cfg.BlobURL, cfg.Prefix)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, cfg.Backend)
	}
}

func newestFirst(ls []*SavedList) {
	sort.SliceStable(ls, func(i, j int) bool {
		return ls[i].CreatedAt.After(ls[j].CreatedAt)
	})
}
