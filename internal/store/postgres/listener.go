package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cwrk-planet/qaroom/internal/store"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrListenerDown is reported by Ping while the LISTEN connection is being
// re-established. Writes from other processes do not reach watchers meanwhile.
var ErrListenerDown = errors.New("postgres: change listener is down")

type notifyConn interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close()
}

type pgListenConn struct {
	conn *pgxpool.Conn
}

func (c pgListenConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	return c.conn.Conn().WaitForNotification(ctx)
}

// Close discards the connection: it still has LISTEN active, so it must not go
// back to the pool.
func (c pgListenConn) Close() {
	_ = c.conn.Hijack().Close(context.Background())
}

func listenOn(pool *pgxpool.Pool) func(ctx context.Context) (notifyConn, error) {
	return func(ctx context.Context) (notifyConn, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire listener conn: %w", err)
		}
		if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
			pgListenConn{conn: conn}.Close()
			return nil, fmt.Errorf("listen %s: %w", Channel, err)
		}
		return pgListenConn{conn: conn}, nil
	}
}

type listener struct {
	connect    func(ctx context.Context) (notifyConn, error)
	touch      func(path string)
	minBackoff time.Duration
	maxBackoff time.Duration

	up atomic.Bool
}

func newListener(connect func(ctx context.Context) (notifyConn, error), touch func(string)) *listener {
	return &listener{
		connect:    connect,
		touch:      touch,
		minBackoff: 100 * time.Millisecond,
		maxBackoff: 10 * time.Second,
	}
}

func (l *listener) err() error {
	if !l.up.Load() {
		return ErrListenerDown
	}
	return nil
}

// run relays notifications until ctx is cancelled. A lost connection is
// re-established with exponential backoff, then the whole store.Root is
// touched since notifications sent in between are gone.
func (l *listener) run(ctx context.Context, conn notifyConn) {
	l.up.Store(true)
	for {
		err := l.drain(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		l.up.Store(false)
		slog.Warn("postgres listener lost", "module", "store.postgres", "err", err)

		conn = l.reconnect(ctx)
		if conn == nil {
			return
		}
		l.up.Store(true)
		slog.Info("postgres listener restored", "module", "store.postgres")
		l.touch(store.Root)
	}
}

func (l *listener) drain(ctx context.Context, conn notifyConn) error {
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.touch(n.Payload)
	}
}

// reconnect returns nil only when ctx is cancelled.
func (l *listener) reconnect(ctx context.Context) notifyConn {
	delay := l.minBackoff
	for {
		if !sleepCtx(ctx, delay) {
			return nil
		}
		conn, err := l.connect(ctx)
		if err == nil {
			return conn
		}
		if ctx.Err() != nil {
			return nil
		}
		delay = min(delay*2, l.maxBackoff)
		slog.Warn("postgres listener reconnect failed", "module", "store.postgres", "retry_in", delay, "err", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
