package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	sqldocs "gardenkeep/docs/schema/sql"
	"gardenkeep/internal/infra/persistence/sqlstore"
	"gardenkeep/pkg/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

const alice domain.UserID = "11111111-1111-4111-8111-111111111111"

// stubConn records statements and answers queries from canned rows keyed by
// a substring of the SQL text.
type stubConn struct {
	mu        sync.Mutex
	execs     []string
	execArgs  [][]driver.NamedValue
	execErr   map[string]error
	rows      map[string][][]driver.Value
	pingErr   error
	commits   int
	rollbacks int
}

type stubDriver struct{ conn *stubConn }

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func newStubDB(t *testing.T) (*sql.DB, *stubConn) {
	t.Helper()
	conn := &stubConn{execErr: map[string]error{}, rows: map[string][][]driver.Value{}}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		t.Fatalf("open stub: %v", err)
	}
	db.SetMaxOpenConns(1)
	return db, conn
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}
func (c *stubConn) Ping(context.Context) error { return c.pingErr }

func (c *stubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return &stubTx{conn: c}, nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, query)
	c.execArgs = append(c.execArgs, args)
	for fragment, err := range c.execErr {
		if strings.Contains(query, fragment) {
			return nil, err
		}
	}
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for fragment, rows := range c.rows {
		if strings.Contains(query, fragment) {
			cols := make([]string, 0)
			if len(rows) > 0 {
				for i := range rows[0] {
					cols = append(cols, fmt.Sprintf("c%d", i))
				}
			}
			return &stubRows{cols: cols, rows: rows}, nil
		}
	}
	return &stubRows{cols: []string{"c0"}}, nil
}

type stubTx struct{ conn *stubConn }

func (t *stubTx) Commit() error   { t.conn.commits++; return nil }
func (t *stubTx) Rollback() error { t.conn.rollbacks++; return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }
func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func openStubStore(t *testing.T) (*Store, *stubConn) {
	t.Helper()
	db, conn := newStubDB(t)
	restore := OverrideSQLOpen(func(driverName, _ string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Fatalf("unexpected driver %s", driverName)
		}
		return db, nil
	})
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreAppliesSchema(t *testing.T) {
	_, conn := openStubStore(t)
	want := sqlstore.SplitStatements(sqldocs.Postgres)
	if len(conn.execs) != len(want) {
		t.Fatalf("expected %d DDL statements, got %d", len(want), len(conn.execs))
	}
	for i, stmt := range want {
		if strings.TrimSpace(conn.execs[i]) != strings.TrimSpace(stmt) {
			t.Fatalf("statement %d mismatch:\nwant: %s\ngot:  %s", i, stmt, conn.execs[i])
		}
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := newStubDB(t)
	conn.pingErr = errors.New("down")
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://x"); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping failure, got %v", err)
	}
}

func TestTransactionsPublishOwnerAndRebind(t *testing.T) {
	store, conn := openStubStore(t)
	ddl := len(conn.execs)
	err := store.RunInTransaction(context.Background(), alice, func(tx domain.Transaction) error {
		_, err := tx.CreatePlant(domain.Plant{Name: "Lavender"})
		return err
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	execs := conn.execs[ddl:]
	if len(execs) != 2 {
		t.Fatalf("expected set_config and insert, got %v", execs)
	}
	if !strings.Contains(execs[0], "set_config('app.user_id', $1, true)") {
		t.Fatalf("owner not published: %s", execs[0])
	}
	if got := conn.execArgs[ddl][0].Value; got != string(alice) {
		t.Fatalf("unexpected owner arg %v", got)
	}
	if strings.Contains(execs[1], "?") || !strings.Contains(execs[1], "$11") {
		t.Fatalf("insert not rebound: %s", execs[1])
	}
	if conn.commits != 1 {
		t.Fatalf("expected commit, got %d", conn.commits)
	}
}

func TestNullOwnerIsLeftToPolicies(t *testing.T) {
	store, conn := openStubStore(t)
	conn.execErr["INSERT INTO favorites"] = &pgconn.PgError{Code: "42501", Message: "new row violates row-level security policy"}
	err := store.RunInTransaction(context.Background(), domain.NullUserID, func(tx domain.Transaction) error {
		_, err := tx.CreateFavorite(domain.Favorite{SpeciesID: "1", BotanicalName: "Probe"})
		return err
	})
	if !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected access denied from the policy, got %v", err)
	}
	if conn.rollbacks == 0 {
		t.Fatalf("expected rollback")
	}
}

func TestDuplicateFavoriteTranslates(t *testing.T) {
	store, conn := openStubStore(t)
	conn.execErr["INSERT INTO favorites"] = &pgconn.PgError{Code: "23505", ConstraintName: "favorites_user_id_species_id_key"}
	err := store.RunInTransaction(context.Background(), alice, func(tx domain.Transaction) error {
		_, err := tx.CreateFavorite(domain.Favorite{SpeciesID: "1", BotanicalName: "Ficus"})
		return err
	})
	if !errors.Is(err, domain.ErrAlreadyFavorited) {
		t.Fatalf("expected already favorited, got %v", err)
	}
}

func TestDeleteMissingPlantIsNotFound(t *testing.T) {
	store, _ := openStubStore(t)
	err := store.RunInTransaction(context.Background(), alice, func(tx domain.Transaction) error {
		return tx.DeletePlant("8f0e7f38-37a4-4a0e-bd59-6b0f6fb1b2b1")
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTablesQueriesInformationSchema(t *testing.T) {
	store, conn := openStubStore(t)
	conn.rows["information_schema.tables"] = [][]driver.Value{{"plants"}}
	got, err := store.Tables(context.Background(), "plants")
	if err != nil || !got["plants"] {
		t.Fatalf("unexpected tables %v %v", got, err)
	}
	delete(conn.rows, "information_schema.tables")
	got, err = store.Tables(context.Background(), "favorites")
	if err != nil || got["favorites"] {
		t.Fatalf("expected missing table, got %v %v", got, err)
	}
}

func TestTranslateError(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{"23505", domain.ErrConflict},
		{"42501", domain.ErrAccessDenied},
		{"23503", domain.ErrNotFound},
		{"22P02", domain.ErrNotFound},
		{"42P01", ErrSchemaMissing},
	}
	for _, tc := range cases {
		got := translateError(&pgconn.PgError{Code: tc.code})
		if !errors.Is(got, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.code, got, tc.want)
		}
	}
	plain := errors.New("plain")
	if translateError(plain) != plain {
		t.Fatalf("non-postgres errors pass through")
	}
	other := &pgconn.PgError{Code: "40001"}
	if !errors.Is(translateError(other), other) {
		t.Fatalf("unknown codes pass through")
	}
}
