package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"gardenkeep/internal/infra/persistence/memory"
	"gardenkeep/pkg/domain"
)

type deniedStore struct {
	domain.PersistentStore
	err error
}

func (s deniedStore) RunInTransaction(context.Context, domain.UserID, func(domain.Transaction) error) error {
	return s.err
}

func TestCheckTablesReportsEveryTable(t *testing.T) {
	statuses, err := CheckTables(context.Background(), memory.NewStore())
	if err != nil {
		t.Fatalf("check tables: %v", err)
	}
	if len(statuses) != len(domain.TableNames) {
		t.Fatalf("expected %d statuses, got %+v", len(domain.TableNames), statuses)
	}
	if missing := MissingTables(statuses); len(missing) != 0 {
		t.Fatalf("memory store has every table, missing %v", missing)
	}
	if got := MissingTables([]TableStatus{{Name: "plants", Exists: true}, {Name: "favorites"}}); len(got) != 1 || got[0] != "favorites" {
		t.Fatalf("unexpected missing %v", got)
	}
}

type recordingStore struct {
	domain.PersistentStore
	owners []domain.UserID
}

func (s *recordingStore) RunInTransaction(ctx context.Context, owner domain.UserID, fn func(domain.Transaction) error) error {
	s.owners = append(s.owners, owner)
	return s.PersistentStore.RunInTransaction(ctx, owner, fn)
}

func TestProbeFavoritesPolicy(t *testing.T) {
	ctx := context.Background()
	mem := &recordingStore{PersistentStore: memory.NewStore()}
	probe, err := ProbeFavoritesPolicy(ctx, mem)
	if err != nil || !probe.InsertAllowed || probe.BlockedByRLS {
		t.Fatalf("healthy store should allow the insert: %+v (%v)", probe, err)
	}
	if len(mem.owners) != 1 || mem.owners[0].IsNull() {
		t.Fatalf("probe must run as a real throwaway owner, got %v", mem.owners)
	}
	_ = mem.View(ctx, mem.owners[0], func(v domain.TransactionView) error {
		favs, err := v.ListFavorites()
		if err != nil || len(favs) != 0 {
			t.Fatalf("probe must leave no rows: %+v (%v)", favs, err)
		}
		return nil
	})

	probe, err = ProbeFavoritesPolicy(ctx, deniedStore{err: fmt.Errorf("insert favorite: %w", domain.ErrAccessDenied)})
	if err != nil || !probe.BlockedByRLS || probe.InsertAllowed {
		t.Fatalf("policy rejection should be reported as blocked: %+v (%v)", probe, err)
	}

	boom := errors.New("connection reset")
	probe, err = ProbeFavoritesPolicy(ctx, deniedStore{err: boom})
	if !errors.Is(err, boom) || probe.Error == "" {
		t.Fatalf("unexpected failures are returned: %+v (%v)", probe, err)
	}
}

func TestProbeFavoritesPolicyOnMigratedSQLite(t *testing.T) {
	ctx := context.Background()
	lite, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "garden.db")})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer lite.Close()
	probe, err := ProbeFavoritesPolicy(ctx, lite)
	if err != nil || !probe.InsertAllowed || probe.BlockedByRLS {
		t.Fatalf("migrated sqlite store should allow the insert: %+v (%v)", probe, err)
	}
}

func TestOpenPersistentStore(t *testing.T) {
	ctx := context.Background()
	mem, err := OpenPersistentStore(ctx, StorageConfig{Driver: "Memory"})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	_ = mem.Close()

	lite, err := OpenPersistentStore(ctx, StorageConfig{SQLitePath: filepath.Join(t.TempDir(), "garden.db")})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	statuses, err := CheckTables(ctx, lite)
	if err != nil || len(MissingTables(statuses)) != 0 {
		t.Fatalf("sqlite schema incomplete: %+v (%v)", statuses, err)
	}
	_ = lite.Close()

	if _, err := OpenPersistentStore(ctx, StorageConfig{Driver: "oracle"}); !domain.IsConfig(err) {
		t.Fatalf("unknown driver should be a config error, got %v", err)
	}
}
