package store

import (
	"context"

	"docentgo/pkg/model"
)

// CacheStore handles generic key-value caching.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// OverrideStore holds the per-item video override map.
type OverrideStore interface {
	GetOverride(ctx context.Context, itemID string) (string, bool)
	SetOverride(ctx context.Context, itemID, url string) error
	DeleteOverride(ctx context.Context, itemID string) error
	ListOverrides(ctx context.Context) (map[string]string, error)
}

// SubmissionStore is the append-only prize-claim log.
type SubmissionStore interface {
	AppendSubmission(ctx context.Context, sub *model.Submission) error
	ListSubmissions(ctx context.Context) ([]model.Submission, error)
}
