// Package postgres stores rooms as JSONB documents and relays change
// notifications between processes with LISTEN/NOTIFY.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/cwrk-planet/qaroom/internal/store/sqlstore"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Channel carries changed paths between processes sharing the database.
const Channel = "qaroom_changes"

var Dialect = sqlstore.Dialect{
	Name: "postgres",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id         TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	SelectDoc:          `SELECT doc::text FROM rooms WHERE id = $1`,
	SelectDocForUpdate: `SELECT doc::text FROM rooms WHERE id = $1 FOR UPDATE`,
	SelectAll:          `SELECT id, doc::text FROM rooms ORDER BY id`,
	UpsertDoc: `INSERT INTO rooms (id, doc) VALUES ($1, $2::jsonb)
		ON CONFLICT (id) DO UPDATE SET doc = excluded.doc, updated_at = now()`,
	DeleteDoc: `DELETE FROM rooms WHERE id = $1`,
}

type Store struct {
	*sqlstore.Store
	pool     *pgxpool.Pool
	listener *listener

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open connects, applies the schema and starts the notification listener.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	inner := sqlstore.New(db, Dialect, sqlstore.WithNotify(notify))
	if err := inner.Migrate(ctx); err != nil {
		_ = db.Close()
		pool.Close()
		return nil, err
	}

	connect := listenOn(pool)
	conn, err := connect(ctx)
	if err != nil {
		_ = inner.Close()
		pool.Close()
		return nil, err
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		Store:    inner,
		pool:     pool,
		listener: newListener(connect, inner.Touch),
		cancel:   cancel,
	}
	s.listener.up.Store(true)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.listener.run(listenCtx, conn)
	}()
	return s, nil
}

func notify(ctx context.Context, tx *sql.Tx, path string) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, Channel, path)
	return err
}

// Ping fails when either the pool or the change listener is down.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return err
	}
	return s.listener.err()
}

func (s *Store) Close() error {
	s.cancel()
	s.wg.Wait()
	err := s.Store.Close()
	s.pool.Close()
	return err
}
