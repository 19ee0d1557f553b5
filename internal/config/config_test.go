package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gardenkeep/internal/blob"
	"gardenkeep/internal/core"
	"gardenkeep/pkg/domain"
)

func TestResolveDefaults(t *testing.T) {
	cfg, err := Resolve(New())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Storage.Driver != core.StorageSQLite || cfg.Blob.Driver != blob.DriverFilesystem {
		t.Fatalf("unexpected drivers %+v", cfg)
	}
	if cfg.HTTPAddr != ":8080" || cfg.BotanicalTimeout != 15*time.Second || cfg.RecurrenceInterval != 0 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
}

func TestResolveFromEnvironment(t *testing.T) {
	t.Setenv("GARDEN_STORAGE_DRIVER", "MEMORY")
	t.Setenv("BOTANICAL_API_TOKEN", "tok")
	t.Setenv("GARDEN_BOTANICAL_TIMEOUT", "3s")
	t.Setenv("GARDEN_RECURRENCE_INTERVAL", "30m")
	t.Setenv("GARDEN_RECURRENCE_USERS", " a , b ,,")
	t.Setenv("GARDEN_CORS_ORIGINS", "http://localhost:3000, https://garden.example")

	cfg, err := Resolve(New())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Storage.Driver != core.StorageMemory || cfg.BotanicalToken != "tok" || cfg.BotanicalTimeout != 3*time.Second {
		t.Fatalf("environment not applied: %+v", cfg)
	}
	if cfg.RecurrenceInterval != 30*time.Minute || len(cfg.RecurrenceUsers) != 2 || cfg.RecurrenceUsers[1] != "b" {
		t.Fatalf("recurrence settings: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("cors origins: %v", cfg.CORSOrigins)
	}
	if !cfg.Botanical().Configured() {
		t.Fatalf("botanical client should carry the token")
	}
}

func TestPrefixedTokenWins(t *testing.T) {
	t.Setenv("GARDEN_BOTANICAL_API_TOKEN", "prefixed")
	t.Setenv("BOTANICAL_API_TOKEN", "plain")
	cfg, err := Resolve(New())
	if err != nil || cfg.BotanicalToken != "prefixed" {
		t.Fatalf("expected prefixed token, got %q (%v)", cfg.BotanicalToken, err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"STORAGE_DRIVER":      {"GARDEN_STORAGE_DRIVER": "mysql"},
		"BLOB_DRIVER":         {"GARDEN_BLOB_DRIVER": "gcs"},
		"BLOB_S3_BUCKET":      {"GARDEN_BLOB_DRIVER": "s3"},
		"RECURRENCE_USERS":    {"GARDEN_RECURRENCE_USERS": string(domain.NullUserID)},
		"RECURRENCE_INTERVAL": {"GARDEN_RECURRENCE_INTERVAL": "-1m"},
	}
	for setting, env := range cases {
		t.Run(setting, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Resolve(New())
			cerr, ok := err.(*domain.ConfigError)
			if !ok || cerr.Setting != setting {
				t.Fatalf("expected config error for %s, got %v", setting, err)
			}
		})
	}
}

func TestLoadDotEnvOrder(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env.local"), []byte("GARDEN_HTTP_ADDR=:9999\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GARDEN_HTTP_ADDR=:7777\nGARDEN_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("GARDEN_HTTP_ADDR", "")
	os.Unsetenv("GARDEN_HTTP_ADDR")
	t.Setenv("GARDEN_LOG_LEVEL", "")
	os.Unsetenv("GARDEN_LOG_LEVEL")

	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg, err := Resolve(New())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.HTTPAddr != ":9999" || cfg.LogLevel != "debug" {
		t.Fatalf(".env.local should win over .env: %+v", cfg)
	}
	if err := LoadDotEnv(t.TempDir()); err != nil {
		t.Fatalf("missing files are not an error: %v", err)
	}
}

func TestConfiguredStoreOpens(t *testing.T) {
	t.Setenv("GARDEN_STORAGE_DRIVER", "sqlite")
	t.Setenv("GARDEN_SQLITE_PATH", filepath.Join(t.TempDir(), "g.db"))
	cfg, err := Resolve(New())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	store, err := core.OpenPersistentStore(context.Background(), cfg.Storage)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = store.Close()
}
