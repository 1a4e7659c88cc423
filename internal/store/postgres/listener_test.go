package postgres

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = 2 * time.Second

type fakeEvent struct {
	payload string
	err     error
}

type fakeConn struct {
	events chan fakeEvent
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan fakeEvent), closed: make(chan struct{})}
}

func (c *fakeConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev := <-c.events:
		if ev.err != nil {
			return nil, ev.err
		}
		return &pgconn.Notification{Channel: Channel, Payload: ev.payload}, nil
	}
}

func (c *fakeConn) Close() { c.once.Do(func() { close(c.closed) }) }

type touches struct {
	mu    sync.Mutex
	paths []string
}

func (tc *touches) touch(path string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.paths = append(tc.paths, path)
}

func (tc *touches) get() []string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]string(nil), tc.paths...)
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(wait):
		t.Fatalf("%s not closed", what)
	}
}

func TestListenerReconnectsAndResyncs(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	release := make(chan struct{})

	var (
		mu       sync.Mutex
		attempts int
	)
	connect := func(ctx context.Context) (notifyConn, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			return nil, errors.New("connection refused")
		}
		select {
		case <-release:
			return second, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	attemptCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return attempts
	}

	var tc touches
	l := newListener(connect, tc.touch)
	l.minBackoff, l.maxBackoff = time.Millisecond, 5*time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.run(ctx, first)
		close(done)
	}()

	first.events <- fakeEvent{payload: "rooms/a"}
	require.Eventually(t, func() bool { return len(tc.get()) == 1 }, wait, time.Millisecond)
	assert.NoError(t, l.err())

	first.events <- fakeEvent{err: io.ErrUnexpectedEOF}
	waitClosed(t, first.closed, "broken conn")

	// второй коннект висит на release: слушатель пока лежит
	require.Eventually(t, func() bool { return attemptCount() == 2 }, wait, time.Millisecond)
	assert.ErrorIs(t, l.err(), ErrListenerDown)

	close(release)
	require.Eventually(t, func() bool { return len(tc.get()) == 2 }, wait, time.Millisecond)
	assert.NoError(t, l.err())

	second.events <- fakeEvent{payload: "rooms/b"}
	require.Eventually(t, func() bool { return len(tc.get()) == 3 }, wait, time.Millisecond)
	assert.Equal(t, []string{"rooms/a", "rooms", "rooms/b"}, tc.get())

	cancel()
	waitClosed(t, done, "run")
	waitClosed(t, second.closed, "listening conn")
}

func TestListenerStopsWhileReconnecting(t *testing.T) {
	first := newFakeConn()
	connect := func(context.Context) (notifyConn, error) {
		return nil, errors.New("connection refused")
	}

	var tc touches
	l := newListener(connect, tc.touch)
	l.minBackoff, l.maxBackoff = time.Millisecond, 2*time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.run(ctx, first)
		close(done)
	}()

	first.events <- fakeEvent{err: io.ErrUnexpectedEOF}
	require.Eventually(t, func() bool { return errors.Is(l.err(), ErrListenerDown) }, wait, time.Millisecond)

	cancel()
	waitClosed(t, done, "run")
	assert.Empty(t, tc.get())
}
