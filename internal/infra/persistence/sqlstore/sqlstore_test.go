package sqlstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sqldocs "gardenkeep/docs/schema/sql"
	"gardenkeep/pkg/domain"
)

func TestSplitStatements(t *testing.T) {
	for name, ddl := range map[string]string{"sqlite": sqldocs.SQLite, "postgres": sqldocs.Postgres} {
		stmts := SplitStatements(ddl)
		if len(stmts) == 0 {
			t.Fatalf("%s: expected DDL to produce statements", name)
		}
		for _, stmt := range stmts {
			if strings.HasPrefix(strings.TrimSpace(stmt), "--") {
				t.Fatalf("%s: statement unexpectedly starts with comment: %q", name, stmt)
			}
			if !strings.HasSuffix(strings.TrimSpace(stmt), ";") {
				t.Fatalf("%s: statement missing semicolon terminator: %q", name, stmt)
			}
		}
		for _, table := range domain.TableNames {
			if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS "+table+" (") {
				t.Fatalf("%s: missing table %s", name, table)
			}
		}
	}
	if got := SplitStatements("SELECT 1"); len(got) != 1 || got[0] != "SELECT 1" {
		t.Fatalf("unterminated tail should be kept: %v", got)
	}
}

func TestPostgresDDLForcesOwnerPolicies(t *testing.T) {
	for _, table := range domain.TableNames {
		if !strings.Contains(sqldocs.Postgres, "ALTER TABLE "+table+" FORCE ROW LEVEL SECURITY;") {
			t.Fatalf("expected forced RLS on %s", table)
		}
		if !strings.Contains(sqldocs.Postgres, "CREATE POLICY "+table+"_owner ON "+table) {
			t.Fatalf("expected owner policy on %s", table)
		}
	}
}

func TestApplyDDLStopsAtFirstFailure(t *testing.T) {
	var seen []string
	boom := errors.New("boom")
	err := ApplyDDL(context.Background(), func(_ context.Context, q string) error {
		seen = append(seen, q)
		if len(seen) == 2 {
			return boom
		}
		return nil
	}, "CREATE TABLE a (x INT);\nCREATE TABLE b (x INT);\nCREATE TABLE c (x INT);\n")
	if !errors.Is(err, boom) || len(seen) != 2 {
		t.Fatalf("expected failure on second statement, got %v after %d", err, len(seen))
	}
	if !strings.Contains(err.Error(), "statement 2") {
		t.Fatalf("error should name the statement: %v", err)
	}
}

func TestRebind(t *testing.T) {
	got := Rebind(`UPDATE t SET a = ?, b = ? WHERE id = ?`)
	want := `UPDATE t SET a = $1, b = $2 WHERE id = $3`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	s := New(nil, Dialect{Name: "x"})
	if s.rebind("a = ?") != "a = ?" {
		t.Fatalf("question-mark dialect must not rebind")
	}
}

func TestTimestampScan(t *testing.T) {
	want := time.Date(2024, 6, 1, 8, 30, 0, 123, time.UTC)
	for _, src := range []any{want, want.Format(time.RFC3339Nano), []byte(want.Format(time.RFC3339Nano)), want.In(time.FixedZone("x", 3600)).Format("2006-01-02 15:04:05.999999999-07:00")} {
		var got time.Time
		if err := (timestamp{&got}).Scan(src); err != nil {
			t.Fatalf("scan %T: %v", src, err)
		}
		if !got.Equal(want) || got.Location() != time.UTC {
			t.Fatalf("scan %T: got %v", src, got)
		}
	}
	var bad time.Time
	if err := (timestamp{&bad}).Scan(42); err == nil {
		t.Fatalf("expected error for int source")
	}

	ptr := &want
	if err := (nullTimestamp{&ptr}).Scan(nil); err != nil || ptr != nil {
		t.Fatalf("null should clear the pointer: %v %v", ptr, err)
	}
	if err := (nullTimestamp{&ptr}).Scan(want.Format(time.RFC3339Nano)); err != nil || ptr == nil || !ptr.Equal(want) {
		t.Fatalf("unexpected null timestamp scan %v %v", ptr, err)
	}
}

func TestArgsHelpers(t *testing.T) {
	if dateArg(nil) != nil || dateArg(&domain.Date{}) != nil {
		t.Fatalf("empty dates bind as NULL")
	}
	d := domain.MustParseDate("2024-02-29")
	if dateArg(&d) != "2024-02-29" {
		t.Fatalf("unexpected date arg %v", dateArg(&d))
	}
	if stringArg(nil) != nil {
		t.Fatalf("nil strings bind as NULL")
	}
	s := "x"
	if stringArg(&s) != "x" {
		t.Fatalf("unexpected string arg")
	}
}

func TestBeginRejectsOwner(t *testing.T) {
	s := New(nil, Dialect{Name: "x", RejectNullOwner: true})
	if err := s.RunInTransaction(context.Background(), domain.NullUserID, func(domain.Transaction) error { return nil }); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	relaxed := New(nil, Dialect{Name: "y"})
	if err := relaxed.View(context.Background(), "", func(domain.TransactionView) error { return nil }); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("empty owner is always rejected, got %v", err)
	}
}
