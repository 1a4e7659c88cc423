// Package sqlite stores rooms in a local SQLite file. Change notifications
// stay inside the process, so every reader of the file must share one Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwrk-planet/qaroom/internal/store/sqlstore"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const defaultPath = "qaroom.db"

var Dialect = sqlstore.Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		)`,
	},
	SelectDoc:          `SELECT doc FROM rooms WHERE id = ?`,
	SelectDocForUpdate: `SELECT doc FROM rooms WHERE id = ?`,
	SelectAll:          `SELECT id, doc FROM rooms ORDER BY id`,
	UpsertDoc:          `INSERT INTO rooms (id, doc) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET doc = excluded.doc`,
	DeleteDoc:          `DELETE FROM rooms WHERE id = ?`,
}

// Open opens (creating if needed) the database at path and applies the schema.
// ":memory:" gives a private throwaway database.
func Open(ctx context.Context, path string) (*sqlstore.Store, error) {
	if path == "" {
		path = defaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: keeps :memory: databases alive and avoids SQLITE_BUSY between our own writers
	db.SetMaxOpenConns(1)

	s := sqlstore.New(db, Dialect)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
