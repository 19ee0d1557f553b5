// Package postgres provides the hosted Postgres-backed garden store. Owner
// scoping is enforced by the row-level security policies shipped in the
// schema; every transaction publishes its owner through app.user_id.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	sqldocs "gardenkeep/docs/schema/sql"
	"gardenkeep/internal/infra/persistence/sqlstore"
	"gardenkeep/pkg/domain"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	// DefaultDSN keeps parity with the storage defaults while allowing overrides via env.
	DefaultDSN = "postgres://localhost/gardenkeep?sslmode=disable"
)

// Postgres SQLSTATE codes translated into the domain taxonomy.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInsufficientPriv    = "42501"
	codeUndefinedTable      = "42P01"
	codeInvalidTextRepr     = "22P02"
)

// ErrSchemaMissing reports that the garden tables have not been created.
var ErrSchemaMissing = errors.New("garden schema missing: apply docs/schema/sql/postgres.sql")

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is the Postgres persistent store.
type Store struct {
	*sqlstore.Store
}

// Dialect returns the Postgres flavour of the shared SQL store.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:                 "postgres",
		NumberedPlaceholders: true,
		SetOwner:             setOwner,
		TranslateError:       translateError,
		TableExistsQuery:     `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?`,
	}
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to
// DefaultDSN) and applies the garden DDL, including the owner policies.
func NewStore(ctx context.Context, dsn string, opts ...sqlstore.Option) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := applySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: sqlstore.New(db, Dialect(), opts...)}, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	err := sqlstore.ApplyDDL(ctx, func(ctx context.Context, q string) error {
		_, err := db.ExecContext(ctx, q)
		return err
	}, sqldocs.Postgres)
	if err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

func setOwner(ctx context.Context, tx *sql.Tx, owner domain.UserID) error {
	_, err := tx.ExecContext(ctx, `SELECT set_config('app.user_id', $1, true)`, string(owner))
	return err
}

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	case codeInsufficientPriv:
		return fmt.Errorf("%w: %v", domain.ErrAccessDenied, err)
	case codeForeignKeyViolation, codeInvalidTextRepr:
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	case codeUndefinedTable:
		return fmt.Errorf("%w: %v", ErrSchemaMissing, err)
	default:
		return err
	}
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
