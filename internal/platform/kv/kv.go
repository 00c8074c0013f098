// Package kv holds the keyed record stores every domain store is built on.
//
// A Store is constructed once per process and injected; there are no
// package-level maps. Values are JSON documents keyed by a string ID.
package kv

import (
	"context"
)

// Store is a keyed collection of T.
//
// Error contract:
//   - Get and Delete return sentinel.ErrNotFound (possibly wrapped) for missing keys
//   - Set overwrites unconditionally
//   - Clear returns the number of removed records
type Store[T any] interface {
	Get(ctx context.Context, id string) (T, error)
	Set(ctx context.Context, id string, value T) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]T, error)
	Clear(ctx context.Context) (int, error)
}
