// Package store defines the push-subscribable tree store that rooms live in,
// plus the pieces shared by its backends: paths, key ordering, tree edits and
// subscription fan-out.
package store

import (
	"context"
	"errors"
)

var (
	ErrInvalidPath = errors.New("invalid store path")
	ErrClosed      = errors.New("store closed")
)

// SubscriptionID identifies one registered listener. The zero value is never issued.
type SubscriptionID uint64

// Listener receives the full current subtree on every change. A non-nil err
// means the subtree could not be read; snap is then empty.
type Listener func(snap Snapshot, err error)

// RemoteStore is the canonical source of room state. Paths are slash-delimited
// and rooted at "rooms". Writes are last-write-wins.
type RemoteStore interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	// Subscribe delivers the current subtree right away and again after every
	// change under, at or above path, until Unsubscribe. Deliveries for one
	// subscription never overlap.
	Subscribe(ctx context.Context, path string, fn Listener) (SubscriptionID, error)
	Unsubscribe(id SubscriptionID)
	Set(ctx context.Context, path string, value any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Append(ctx context.Context, path string, value any) (string, error)
	Remove(ctx context.Context, path string) error
	Close() error
}
