package observability

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gardenkeep/internal/core"
)

// AuditLogger writes audit entries as structured zap records under the
// "audit" logger name.
type AuditLogger struct {
	l *zap.Logger
}

var _ core.AuditRecorder = (*AuditLogger)(nil)

// NewAuditLogger derives an audit logger from l.
func NewAuditLogger(l *zap.Logger) *AuditLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &AuditLogger{l: l.Named("audit")}
}

// Record implements core.AuditRecorder.
func (a *AuditLogger) Record(_ context.Context, e core.AuditEntry) {
	fields := []zap.Field{
		zap.String("operation", e.Operation),
		zap.String("entity", string(e.Entity)),
		zap.String("action", string(e.Action)),
		zap.String("entity_id", e.EntityID),
		zap.String("user_id", e.UserID.String()),
		zap.String("status", string(e.Status)),
		zap.Duration("duration", e.Duration),
		zap.Time("at", e.Timestamp),
	}
	if e.Status == core.AuditStatusError {
		a.l.Warn("mutation failed", append(fields, zap.String("error", e.Error))...)
		return
	}
	a.l.Info("mutation", fields...)
}

// AuditTrail keeps entries in memory, newest last, bounded by capacity.
type AuditTrail struct {
	mu       sync.Mutex
	entries  []core.AuditEntry
	capacity int
}

var _ core.AuditRecorder = (*AuditTrail)(nil)

// NewAuditTrail returns a trail holding at most capacity entries (default 512).
func NewAuditTrail(capacity int) *AuditTrail {
	if capacity <= 0 {
		capacity = 512
	}
	return &AuditTrail{capacity: capacity}
}

// Record implements core.AuditRecorder.
func (a *AuditTrail) Record(_ context.Context, e core.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	if over := len(a.entries) - a.capacity; over > 0 {
		a.entries = append(a.entries[:0], a.entries[over:]...)
	}
}

// Entries returns a copy of the retained entries.
func (a *AuditTrail) Entries() []core.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.AuditEntry(nil), a.entries...)
}

// MultiAudit records to several recorders in order.
type MultiAudit []core.AuditRecorder

// Record implements core.AuditRecorder.
func (m MultiAudit) Record(ctx context.Context, e core.AuditEntry) {
	for _, r := range m {
		if r != nil {
			r.Record(ctx, e)
		}
	}
}
