package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"gardenkeep/internal/blob"
	"gardenkeep/internal/config"
	"gardenkeep/internal/core"
)

func TestCheckMigrationMemory(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"check-migration", "--storage-driver", "memory"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	var report migrationReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, stdout.String())
	}
	if len(report.Tables) != 4 || len(report.Missing) != 0 {
		t.Fatalf("unexpected tables %+v", report)
	}
	if !report.Probe.InsertAllowed || report.Probe.BlockedByRLS {
		t.Fatalf("memory store should accept the probe insert: %+v", report.Probe)
	}
}

func TestCheckMigrationSQLiteCreatesSchema(t *testing.T) {
	var stdout, stderr bytes.Buffer
	path := t.TempDir() + "/garden.db"
	code := run([]string{"check-migration", "--storage-driver", "sqlite", "--sqlite-path", path}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), `"garden_chores"`) {
		t.Fatalf("report missing tables: %s", stdout.String())
	}
	var report migrationReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !report.Probe.InsertAllowed {
		t.Fatalf("fresh sqlite schema should accept the probe insert: %+v", report.Probe)
	}
}

func TestUnknownDriverFails(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"check-migration", "--storage-driver", "mongo"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "STORAGE_DRIVER") {
		t.Fatalf("error must name the setting: %s", stderr.String())
	}
}

func TestRecurRequiresUsers(t *testing.T) {
	t.Setenv("GARDEN_RECURRENCE_USERS", "")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"recur", "--storage-driver", "memory", "--log-level", "error"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "RECURRENCE_USERS") {
		t.Fatalf("unexpected stderr %s", stderr.String())
	}

	stdout.Reset()
	stderr.Reset()
	code := run([]string{"recur", "--storage-driver", "memory", "--log-level", "error", "--user", "4c1d2e3f-0a9b-4c8d-9e7f-6a5b4c3d2e1f"}, &stdout, &stderr)
	if code != 0 || !strings.Contains(stdout.String(), "emitted 0 recurring chores") {
		t.Fatalf("exit %d stdout %q stderr %q", code, stdout.String(), stderr.String())
	}
}

func TestServeAndShutdown(t *testing.T) {
	cfg, err := config.Resolve(config.New())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	cfg.Storage = core.StorageConfig{Driver: core.StorageMemory}
	cfg.Blob = blob.Config{Driver: blob.DriverMemory}
	cfg.RecurrenceInterval = time.Hour
	cfg.RecurrenceUsers = nil

	a, err := newApp(context.Background(), cfg, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()
	if a.worker() != nil {
		t.Fatalf("worker must stay off without users")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, ln) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, base+"/api/plants", strings.NewReader(`{"name":"Thyme"}`))
	req.Header.Set("X-Garden-User", "4c1d2e3f-0a9b-4c8d-9e7f-6a5b4c3d2e1f")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create plant: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", resp.StatusCode)
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "go_goroutines") || !strings.Contains(string(body), `operation="create_plant"`) {
		t.Fatalf("metrics output incomplete:\n%s", body)
	}
	traced := false
	for _, sp := range a.tracer.Spans() {
		traced = traced || sp.Operation == "create_plant"
	}
	if !traced {
		t.Fatalf("expected a create_plant span, got %+v", a.tracer.Spans())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}
}

func TestWorkerEnabledWithUsers(t *testing.T) {
	cfg, err := config.Resolve(config.New())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	cfg.Storage = core.StorageConfig{Driver: core.StorageMemory}
	cfg.Blob = blob.Config{Driver: blob.DriverMemory}
	cfg.RecurrenceInterval = time.Minute
	cfg.RecurrenceUsers = nil
	a, err := newApp(context.Background(), cfg, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()
	a.cfg.RecurrenceUsers = append(a.cfg.RecurrenceUsers, "4c1d2e3f-0a9b-4c8d-9e7f-6a5b4c3d2e1f")
	if a.worker() == nil {
		t.Fatalf("expected a worker")
	}
}
