package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/qaroom/internal/store"
	"github.com/cwrk-planet/qaroom/internal/store/sqlite"
	"github.com/cwrk-planet/qaroom/internal/store/sqlstore"
	"github.com/cwrk-planet/qaroom/internal/store/storetest"
)

func open(t *testing.T, path string) *sqlstore.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.RemoteStore {
		return open(t, filepath.Join(t.TempDir(), "qaroom.db"))
	})
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "qaroom.db")
	ctx := context.Background()

	s := open(t, path)
	key, err := s.Append(ctx, store.Root, map[string]any{"title": "Go", "authorId": "u1"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = open(t, path)
	defer func() { _ = s.Close() }()
	snap, err := s.Get(ctx, store.RoomPath(key, "title"))
	require.NoError(t, err)
	assert.Equal(t, "Go", snap.Value())
}

func TestReadsOutsideRoomsRejected(t *testing.T) {
	s := open(t, ":memory:")
	defer func() { _ = s.Close() }()

	_, err := s.Get(context.Background(), "users/u1")
	assert.ErrorIs(t, err, store.ErrInvalidPath)
	assert.ErrorIs(t, s.Set(context.Background(), store.Root, "x"), store.ErrInvalidPath)
}
