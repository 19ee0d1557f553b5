// Package sqlite provides the embedded SQLite-backed garden store. Owner
// scoping is applied in every statement and the sentinel owner is refused,
// mirroring the hosted store's row policies.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqldocs "gardenkeep/docs/schema/sql"
	"gardenkeep/internal/infra/persistence/sqlstore"
	"gardenkeep/pkg/domain"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "gardenkeep.db"

// Store is the SQLite persistent store.
type Store struct {
	*sqlstore.Store
	path string
}

// Dialect returns the SQLite flavour of the shared SQL store.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:            "sqlite",
		RejectNullOwner: true,
		TranslateError:  translateError,
		Timestamp: func(t time.Time) any {
			return t.UTC().Format(time.RFC3339Nano)
		},
		TableExistsQuery: `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`,
	}
}

// NewStore opens (creating if needed) the database at path and applies the
// garden schema.
func NewStore(path string, opts ...sqlstore.Option) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; a single connection avoids SQLITE_BUSY between
	// pooled connections.
	db.SetMaxOpenConns(1)
	ctx := context.Background()
	if err := sqlstore.ApplyDDL(ctx, func(ctx context.Context, q string) error {
		_, err := db.ExecContext(ctx, q)
		return err
	}, sqldocs.SQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{Store: sqlstore.New(db, Dialect(), opts...), path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

func translateError(err error) error {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return err
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	default:
		return err
	}
}
