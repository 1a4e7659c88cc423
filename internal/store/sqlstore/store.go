// Package sqlstore keeps the room tree in a SQL table, one JSON document per
// room. Writes read the document, edit it with the shared tree helpers and
// write it back inside one transaction, which serializes writers per room.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cwrk-planet/qaroom/internal/store"
)

var _ store.RemoteStore = (*Store)(nil)

// Dialect carries the statements that differ between SQL engines.
type Dialect struct {
	Name string

	// Schema is applied in order by Migrate; statements must be idempotent.
	Schema []string

	// SelectDoc and SelectDocForUpdate take the room id; the latter locks the row.
	SelectDoc          string
	SelectDocForUpdate string

	// SelectAll returns (id, doc) rows. UpsertDoc takes (id, doc).
	SelectAll string
	UpsertDoc string
	DeleteDoc string
}

// NotifyFunc runs inside the write transaction after the document is saved.
// Backends shared between processes use it to broadcast the changed path.
type NotifyFunc func(ctx context.Context, tx *sql.Tx, path string) error

type Store struct {
	db      *sql.DB
	dialect Dialect
	notify  NotifyFunc
	watch   *store.Watchers

	// local writers queue here; cross-process writers are serialized by row locks
	writeMu sync.Mutex
}

type Option func(*Store)

func WithNotify(fn NotifyFunc) Option {
	return func(s *Store) { s.notify = fn }
}

func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{db: db, dialect: dialect}
	for _, opt := range opts {
		opt(s)
	}
	s.watch = store.NewWatchers(s.load)
	return s
}

func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the documents table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s migrate: %w", s.dialect.Name, err)
		}
	}
	return nil
}

// Touch wakes local subscribers for a path changed by another process.
func (s *Store) Touch(path string) {
	segs, err := store.Split(path)
	if err != nil {
		slog.Warn("sqlstore touch: bad path", "module", "store.sql", "path", path, "err", err)
		return
	}
	s.watch.Notify(segs)
}

func (s *Store) Subscribers() int {
	return s.watch.Len()
}

func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	segs, err := store.Split(path)
	if err != nil {
		return store.Snapshot{}, err
	}
	return s.load(ctx, segs)
}

func (s *Store) load(ctx context.Context, segs []string) (store.Snapshot, error) {
	if len(segs) == 0 || segs[0] != store.Root {
		return store.Snapshot{}, fmt.Errorf("%w: reads must start at %q", store.ErrInvalidPath, store.Root)
	}
	if len(segs) == 1 {
		all, err := s.loadAll(ctx)
		if err != nil {
			return store.Snapshot{}, err
		}
		return store.NewSnapshot(segs, all), nil
	}
	doc, err := s.loadDoc(ctx, s.db, s.dialect.SelectDoc, segs[1])
	if err != nil {
		return store.Snapshot{}, err
	}
	return store.NewSnapshot(segs, store.GetAt(doc, segs[2:])), nil
}

func (s *Store) Subscribe(_ context.Context, path string, fn store.Listener) (store.SubscriptionID, error) {
	segs, err := store.Split(path)
	if err != nil {
		return 0, err
	}
	if len(segs) == 0 || segs[0] != store.Root {
		return 0, fmt.Errorf("%w: subscriptions must start at %q", store.ErrInvalidPath, store.Root)
	}
	return s.watch.Add(segs, fn)
}

func (s *Store) Unsubscribe(id store.SubscriptionID) {
	s.watch.Remove(id)
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	v, err := store.Normalize(value)
	if err != nil {
		return err
	}
	return s.mutate(ctx, path, func(doc any, rest []string) (any, error) {
		return store.SetAt(doc, rest, v), nil
	})
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	return s.mutate(ctx, path, func(doc any, rest []string) (any, error) {
		return store.UpdateAt(doc, rest, fields)
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
	s.watch.Close()
	return s.db.Close()
}

func (s *Store) mutate(ctx context.Context, path string, edit func(doc any, rest []string) (any, error)) (retErr error) {
	segs, err := store.Split(path)
	if err != nil {
		return err
	}
	if len(segs) < 2 || segs[0] != store.Root {
		return fmt.Errorf("%w: writes must target %s/{id}", store.ErrInvalidPath, store.Root)
	}
	roomID := segs[1]

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s begin: %w", s.dialect.Name, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	doc, err := s.loadDoc(ctx, tx, s.dialect.SelectDocForUpdate, roomID)
	if err != nil {
		return err
	}
	next, err := edit(doc, segs[2:])
	if err != nil {
		return err
	}

	if next == nil {
		if _, err := tx.ExecContext(ctx, s.dialect.DeleteDoc, roomID); err != nil {
			return fmt.Errorf("%s delete room %s: %w", s.dialect.Name, roomID, err)
		}
	} else {
		b, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode room %s: %w", roomID, err)
		}
		if _, err := tx.ExecContext(ctx, s.dialect.UpsertDoc, roomID, string(b)); err != nil {
			return fmt.Errorf("%s upsert room %s: %w", s.dialect.Name, roomID, err)
		}
	}

	if s.notify != nil {
		if err := s.notify(ctx, tx, store.Join(segs...)); err != nil {
			return fmt.Errorf("%s notify: %w", s.dialect.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s commit: %w", s.dialect.Name, err)
	}

	s.watch.Notify(segs)
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) loadDoc(ctx context.Context, q queryer, query, roomID string) (any, error) {
	var raw string
	err := q.QueryRowContext(ctx, query, roomID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s load room %s: %w", s.dialect.Name, roomID, err)
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return doc, nil
}

func (s *Store) loadAll(ctx context.Context) (any, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.SelectAll)
	if err != nil {
		return nil, fmt.Errorf("%s list rooms: %w", s.dialect.Name, err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]any)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("%s scan room: %w", s.dialect.Name, err)
		}
		var doc any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode room %s: %w", id, err)
		}
		out[id] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
