package service

import (
	"context"
	"errors"
	"sync"

	"github.com/cwrk-planet/qaroom/internal/store"
	"github.com/cwrk-planet/qaroom/internal/store/memory"
)

// recordingStore пишет в memory-стор и запоминает вызовы; fail, если задан,
// возвращается из всех записей.
type recordingStore struct {
	*memory.Store

	mu    sync.Mutex
	calls []string
	fail  error
}

var errStoreDown = errors.New("store down")

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: memory.New()}
}

func (r *recordingStore) record(op, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, op+" "+path)
	return r.fail
}

func (r *recordingStore) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingStore) Set(ctx context.Context, path string, value any) error {
	if err := r.record("set", path); err != nil {
		return err
	}
	return r.Store.Set(ctx, path, value)
}

func (r *recordingStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := r.record("update", path); err != nil {
		return err
	}
	return r.Store.Update(ctx, path, fields)
}

func (r *recordingStore) Append(ctx context.Context, path string, value any) (string, error) {
	if err := r.record("append", path); err != nil {
		return "", err
	}
	return r.Store.Append(ctx, path, value)
}

func (r *recordingStore) Remove(ctx context.Context, path string) error {
	if err := r.record("remove", path); err != nil {
		return err
	}
	return r.Store.Remove(ctx, path)
}

var _ store.RemoteStore = (*recordingStore)(nil)
