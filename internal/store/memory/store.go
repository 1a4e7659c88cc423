// Package memory is an in-process tree store. It keeps the whole tree as one
// value and replaces the edited branch on every write, so snapshots handed
// to listeners never change underneath them.
package memory

import (
	"context"
	"sync"

	"github.com/cwrk-planet/qaroom/internal/store"
)

var _ store.RemoteStore = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	root   any
	closed bool
	watch  *store.Watchers
}

func New() *Store {
	s := &Store{}
	s.watch = store.NewWatchers(s.load)
	return s
}

func (s *Store) load(_ context.Context, segs []string) (store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.Snapshot{}, store.ErrClosed
	}
	return store.NewSnapshot(segs, store.GetAt(s.root, segs)), nil
}

func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	segs, err := store.Split(path)
	if err != nil {
		return store.Snapshot{}, err
	}
	return s.load(ctx, segs)
}

func (s *Store) Subscribe(_ context.Context, path string, fn store.Listener) (store.SubscriptionID, error) {
	segs, err := store.Split(path)
	if err != nil {
		return 0, err
	}
	return s.watch.Add(segs, fn)
}

func (s *Store) Unsubscribe(id store.SubscriptionID) {
	s.watch.Remove(id)
}

func (s *Store) Set(_ context.Context, path string, value any) error {
	segs, err := store.Split(path)
	if err != nil {
		return err
	}
	v, err := store.Normalize(value)
	if err != nil {
		return err
	}
	return s.apply(segs, func(root any) (any, error) {
		return store.SetAt(root, segs, v), nil
	})
}

func (s *Store) Update(_ context.Context, path string, fields map[string]any) error {
	segs, err := store.Split(path)
	if err != nil {
		return err
	}
	return s.apply(segs, func(root any) (any, error) {
		return store.UpdateAt(root, segs, fields)
	})
}

func (s *Store) Append(ctx context.Context, path string, value any) (string, error) {
	key := store.NewKey()
	if err := s.Set(ctx, store.Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.watch.Close()
	return nil
}

// Subscribers reports how many listeners are registered.
func (s *Store) Subscribers() int {
	return s.watch.Len()
}

func (s *Store) apply(segs []string, edit func(root any) (any, error)) error {
	if len(segs) == 0 {
		return store.ErrInvalidPath
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}
	next, err := edit(s.root)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.root = next
	s.mu.Unlock()

	s.watch.Notify(segs)
	return nil
}
