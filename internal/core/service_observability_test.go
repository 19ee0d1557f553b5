package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gardenkeep/pkg/domain"
)

const testUser domain.UserID = "7d0c2a8e-4c55-4d7a-9a4e-6f1c1f3f2b11"

type captureAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

type logRecord struct {
	level string
	msg   string
}

type captureLogger struct {
	records []logRecord
}

func (l *captureLogger) add(level, msg string) {
	l.records = append(l.records, logRecord{level: level, msg: msg})
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *captureLogger) count(level string) int {
	n := 0
	for _, r := range l.records {
		if r.level == level {
			n++
		}
	}
	return n
}

func fixedClock(ts string) Clock {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return ClockFunc(func() time.Time { return t })
}

func TestServiceObservabilityForMutations(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc := NewInMemoryService(WithAuditRecorder(audit), WithMetricsRecorder(metrics), WithTracer(tracer))

	plant, err := svc.CreatePlant(ctx, testUser, PlantInput{Name: "Fiddle Leaf Fig"})
	if err != nil {
		t.Fatalf("create plant: %v", err)
	}
	if !audit.has("create_plant", AuditStatusSuccess, func(e AuditEntry) bool {
		return e.EntityID == plant.ID && e.Entity == domain.EntityPlant && e.Action == ActionCreate && e.UserID == testUser
	}) {
		t.Fatalf("expected create_plant audit entry, got %+v", audit.entries)
	}
	if !metrics.has("create_plant", true) {
		t.Fatalf("expected create_plant success metric")
	}

	if _, err := svc.ListPlants(ctx, testUser); err != nil {
		t.Fatalf("list plants: %v", err)
	}
	if audit.has("list_plants", AuditStatusSuccess, nil) {
		t.Fatalf("reads must not be audited")
	}
	if !metrics.has("list_plants", true) {
		t.Fatalf("reads are still measured")
	}

	err = svc.DeletePlant(ctx, testUser, "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !audit.has("delete_plant", AuditStatusError, func(e AuditEntry) bool { return e.Error != "" }) {
		t.Fatalf("expected delete_plant error audit entry")
	}
	if !metrics.has("delete_plant", false) {
		t.Fatalf("expected delete_plant failure metric")
	}
	if len(tracer.started) != len(tracer.ended) {
		t.Fatalf("every span must end: started=%v ended=%d", tracer.started, len(tracer.ended))
	}
}

func TestServiceLogsBenignDuplicateAsInfo(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	metrics := &captureMetricsRecorder{}
	svc := NewInMemoryService(WithLogger(logger), WithMetricsRecorder(metrics))

	species := domain.SpeciesSummary{ID: "123", ScientificName: "Ficus lyrata"}
	if _, err := svc.AddFavorite(ctx, testUser, species); err != nil {
		t.Fatalf("first favorite: %v", err)
	}
	if _, err := svc.AddFavorite(ctx, testUser, species); err != domain.ErrAlreadyFavorited {
		t.Fatalf("expected bare ErrAlreadyFavorited, got %v", err)
	}
	if logger.count("error") != 0 {
		t.Fatalf("duplicate favorite must not log an error: %+v", logger.records)
	}
	if logger.count("info") != 1 {
		t.Fatalf("expected one info record, got %+v", logger.records)
	}
	for _, call := range metrics.calls {
		if call.op == "add_favorite" && !call.success {
			t.Fatalf("duplicate favorite counted as a failure")
		}
	}
}

func TestServiceOptionsIgnoreNil(t *testing.T) {
	svc := NewInMemoryService(WithClock(nil), WithLogger(nil), WithMetricsRecorder(nil), WithTracer(nil), WithAuditRecorder(nil))
	if svc.clock == nil || svc.logger == nil || svc.metrics == nil || svc.tracer == nil || svc.audit == nil {
		t.Fatalf("nil options must keep defaults")
	}
	frozen := NewInMemoryService(WithClock(fixedClock("2024-06-01T10:00:00Z")))
	if got := frozen.Today().String(); got != "2024-06-01" {
		t.Fatalf("unexpected today %s", got)
	}
}

func TestRecordAuditIgnoresUnknownOperations(t *testing.T) {
	audit := &captureAuditRecorder{}
	svc := NewInMemoryService(WithAuditRecorder(audit))
	err := svc.run(context.Background(), "not_registered", testUser, func(context.Context) (string, error) {
		return "x", fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatalf("run must return the operation error")
	}
	if len(audit.entries) != 0 {
		t.Fatalf("unknown operations are not audited: %+v", audit.entries)
	}
}
