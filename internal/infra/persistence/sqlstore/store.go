// Package sqlstore implements domain.PersistentStore over database/sql. The
// sqlite and postgres packages supply a Dialect and the schema; everything
// else (queries, owner scoping, row mapping) lives here.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gardenkeep/pkg/domain"
)

// Compile-time contract assertion ensuring Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

// Dialect captures the differences between SQL backends.
type Dialect struct {
	// Name prefixes wrapped errors.
	Name string
	// NumberedPlaceholders rewrites ? placeholders to $1, $2, ...
	NumberedPlaceholders bool
	// RejectNullOwner refuses the sentinel owner before any statement runs.
	// Backends with row-level policies leave it to the database.
	RejectNullOwner bool
	// SetOwner runs at the start of every transaction.
	SetOwner func(ctx context.Context, tx *sql.Tx, owner domain.UserID) error
	// TranslateError maps driver errors onto the domain taxonomy.
	TranslateError func(err error) error
	// Timestamp converts a time into the bind value for timestamp columns.
	Timestamp func(t time.Time) any
	// TableExistsQuery takes one table name argument and returns a row when
	// the table exists.
	TableExistsQuery string
}

// Store is a domain.PersistentStore backed by a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the timestamp source.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New wraps db. The schema must already be applied.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	if dialect.Timestamp == nil {
		dialect.Timestamp = func(t time.Time) any { return t }
	}
	s := &Store{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) translate(err error) error {
	if err == nil || s.dialect.TranslateError == nil {
		return err
	}
	return s.dialect.TranslateError(err)
}

func (s *Store) begin(ctx context.Context, owner domain.UserID) (*sql.Tx, error) {
	if owner == "" || (s.dialect.RejectNullOwner && owner.IsNull()) {
		return nil, domain.ErrAccessDenied
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", s.dialect.Name, s.translate(err))
	}
	if s.dialect.SetOwner != nil {
		if err := s.dialect.SetOwner(ctx, tx, owner); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("%s: set owner: %w", s.dialect.Name, s.translate(err))
		}
	}
	return tx, nil
}

// RunInTransaction runs fn inside a database transaction scoped to owner and
// commits when fn succeeds.
func (s *Store) RunInTransaction(ctx context.Context, owner domain.UserID, fn func(domain.Transaction) error) error {
	tx, err := s.begin(ctx, owner)
	if err != nil {
		return err
	}
	if err := fn(&transaction{ctx: ctx, store: s, tx: tx, owner: owner}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", s.dialect.Name, s.translate(err))
	}
	return nil
}

// View runs fn inside a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, owner domain.UserID, fn func(domain.TransactionView) error) error {
	tx, err := s.begin(ctx, owner)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&transaction{ctx: ctx, store: s, tx: tx, owner: owner, readOnly: true})
}

// Tables reports which of the named tables exist.
func (s *Store) Tables(ctx context.Context, names ...string) (map[string]bool, error) {
	out := make(map[string]bool, len(names))
	for _, name := range names {
		var found string
		err := s.db.QueryRowContext(ctx, s.rebind(s.dialect.TableExistsQuery), name).Scan(&found)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			out[name] = false
		case err != nil:
			return nil, fmt.Errorf("%s: inspect table %s: %w", s.dialect.Name, name, s.translate(err))
		default:
			out[name] = true
		}
	}
	return out, nil
}

func (s *Store) rebind(query string) string {
	if !s.dialect.NumberedPlaceholders {
		return query
	}
	return Rebind(query)
}

// Rebind rewrites ? placeholders to the numbered $n form.
func Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
