// Package storetest holds the behaviour every RemoteStore backend must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/qaroom/internal/store"
)

// Run exercises a backend. newStore must return an empty store; Run closes it.
func Run(t *testing.T, newStore func(t *testing.T) store.RemoteStore) {
	t.Run("SetGet", func(t *testing.T) { testSetGet(t, newStore(t)) })
	t.Run("AppendOrder", func(t *testing.T) { testAppendOrder(t, newStore(t)) })
	t.Run("UpdateRemove", func(t *testing.T) { testUpdateRemove(t, newStore(t)) })
	t.Run("Subscribe", func(t *testing.T) { testSubscribe(t, newStore(t)) })
	t.Run("InvalidPath", func(t *testing.T) { testInvalidPath(t, newStore(t)) })
}

func testSetGet(t *testing.T, s store.RemoteStore) {
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	snap, err := s.Get(ctx, store.RoomPath("r1"))
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	require.NoError(t, s.Set(ctx, store.RoomPath("r1"), map[string]any{"title": "Go", "authorId": "u1"}))

	snap, err = s.Get(ctx, store.RoomPath("r1", "title"))
	require.NoError(t, err)
	assert.Equal(t, "Go", snap.Value())

	all, err := s.Get(ctx, store.Root)
	require.NoError(t, err)
	assert.True(t, all.Child("r1").Exists())
}

func testAppendOrder(t *testing.T, s store.RemoteStore) {
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	var want []string
	for _, content := range []string{"first", "second", "third"} {
		key, err := s.Append(ctx, store.RoomPath("r1", "questions"), map[string]any{"content": content})
		require.NoError(t, err)
		want = append(want, key)
	}

	snap, err := s.Get(ctx, store.RoomPath("r1", "questions"))
	require.NoError(t, err)
	var got []string
	for _, c := range snap.Children() {
		got = append(got, c.Key())
	}
	assert.Equal(t, want, got)
	assert.Equal(t, "first", snap.Child(want[0]).Child("content").Value())
}

func testUpdateRemove(t *testing.T, s store.RemoteStore) {
	defer func() { _ = s.Close() }()
	ctx := context.Background()
	q := store.RoomPath("r1", "questions", "q1")

	require.NoError(t, s.Set(ctx, q, map[string]any{"content": "hi", "isAnswered": false}))
	require.NoError(t, s.Update(ctx, q, map[string]any{"isHighlighted": true, "likes/l1": map[string]any{"authorId": "u1"}}))

	snap, err := s.Get(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, true, snap.Child("isHighlighted").Value())
	assert.Equal(t, "u1", snap.Child("likes").Child("l1").Child("authorId").Value())

	require.NoError(t, s.Remove(ctx, store.Join(q, "likes", "l1")))
	snap, err = s.Get(ctx, store.Join(q, "likes"))
	require.NoError(t, err)
	assert.False(t, snap.Exists(), "empty likes map must vanish")

	require.NoError(t, s.Remove(ctx, q))
	snap, err = s.Get(ctx, store.RoomPath("r1"))
	require.NoError(t, err)
	assert.False(t, snap.Exists(), "room with no data left must vanish")
}

func testSubscribe(t *testing.T, s store.RemoteStore) {
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	snaps := make(chan store.Snapshot, 16)
	id, err := s.Subscribe(ctx, store.RoomPath("r1"), func(snap store.Snapshot, err error) {
		assert.NoError(t, err)
		snaps <- snap
	})
	require.NoError(t, err)

	first := next(t, snaps)
	assert.False(t, first.Exists())

	require.NoError(t, s.Set(ctx, store.RoomPath("r1", "title"), "Go"))
	var last store.Snapshot
	assert.Eventually(t, func() bool {
		last = latest(snaps, last)
		return last.Child("title").Value() == "Go"
	}, 2*time.Second, 10*time.Millisecond)

	s.Unsubscribe(id)
	drain(snaps)
	require.NoError(t, s.Set(ctx, store.RoomPath("r1", "title"), "Rust"))
	select {
	case snap := <-snaps:
		t.Fatalf("delivery after unsubscribe: %v", snap.Value())
	case <-time.After(100 * time.Millisecond):
	}
}

func testInvalidPath(t *testing.T, s store.RemoteStore) {
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	assert.ErrorIs(t, s.Set(ctx, "rooms/a.b", "x"), store.ErrInvalidPath)
	_, err := s.Get(ctx, "rooms/[x]")
	assert.ErrorIs(t, err, store.ErrInvalidPath)
}

func next(t *testing.T, ch <-chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return store.Snapshot{}
}

// latest drains ch and returns the newest snapshot, or prev if none arrived.
func latest(ch <-chan store.Snapshot, prev store.Snapshot) store.Snapshot {
	for {
		select {
		case s := <-ch:
			prev = s
		default:
			return prev
		}
	}
}

func drain(ch <-chan store.Snapshot) {
	for {
		select {
		case <-ch:
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}
