package core

import (
	"context"
	"time"

	"gardenkeep/pkg/domain"
)

// Clock abstracts time so tests can freeze it.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Logger is the structured logging surface the service writes to. Arguments
// are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder observes operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan is ended exactly once with the operation's error.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopSpan) End(error) {}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

// AuditStatus is the outcome recorded in an audit entry.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditAction classifies a mutation.
type AuditAction string

const (
	ActionCreate   AuditAction = "create"
	ActionUpdate   AuditAction = "update"
	ActionDelete   AuditAction = "delete"
	ActionEvaluate AuditAction = "evaluate"
)

// AuditEntry describes one mutating operation.
type AuditEntry struct {
	Operation string            `json:"operation"`
	Entity    domain.EntityType `json:"entity"`
	Action    AuditAction       `json:"action"`
	EntityID  string            `json:"entity_id,omitempty"`
	UserID    domain.UserID     `json:"user_id"`
	Status    AuditStatus       `json:"status"`
	Error     string            `json:"error,omitempty"`
	Duration  time.Duration     `json:"duration"`
	Timestamp time.Time         `json:"timestamp"`
}

// AuditRecorder receives audit entries for mutations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditEntry) {}

type operationMeta struct {
	entity domain.EntityType
	action AuditAction
}

// auditedOperations lists the mutations that produce audit entries. Reads are
// traced and measured but not audited.
var auditedOperations = map[string]operationMeta{
	"create_plant":         {domain.EntityPlant, ActionCreate},
	"delete_plant":         {domain.EntityPlant, ActionDelete},
	"add_favorite":         {domain.EntityFavorite, ActionCreate},
	"remove_favorite":      {domain.EntityFavorite, ActionDelete},
	"create_chore":         {domain.EntityChore, ActionCreate},
	"toggle_chore":         {domain.EntityChore, ActionUpdate},
	"delete_chore":         {domain.EntityChore, ActionDelete},
	"create_schedule":      {domain.EntitySchedule, ActionCreate},
	"complete_schedule":    {domain.EntitySchedule, ActionUpdate},
	"delete_schedule":      {domain.EntitySchedule, ActionDelete},
	"evaluate_recurrences": {domain.EntitySchedule, ActionEvaluate},
	"upload_image":         {domain.EntityImage, ActionCreate},
	"delete_image":         {domain.EntityImage, ActionDelete},
}
