package observability

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"gardenkeep/internal/core"
)

type spanKey struct{}

// Span is one finished service operation.
type Span struct {
	ID         string    `json:"span_id"`
	ParentID   string    `json:"parent_id,omitempty"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMS float64   `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
}

// JSONTracer writes finished spans as JSON lines and keeps the most recent
// ones in memory.
type JSONTracer struct {
	mu     sync.Mutex
	enc    *json.Encoder
	spans  []Span
	retain int
}

var _ core.Tracer = (*JSONTracer)(nil)

// DefaultSpanRetention bounds the in-memory span buffer.
const DefaultSpanRetention = 256

// NewJSONTracer writes to w (nil disables output). retain <= 0 uses
// DefaultSpanRetention.
func NewJSONTracer(w io.Writer, retain int) *JSONTracer {
	if retain <= 0 {
		retain = DefaultSpanRetention
	}
	t := &JSONTracer{retain: retain}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Spans returns the retained spans, oldest first.
func (t *JSONTracer) Spans() []Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Span(nil), t.spans...)
}

// Start implements core.Tracer. Nested operations record their parent.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, core.TraceSpan) {
	s := &jsonSpan{tracer: t, span: Span{ID: uuid.NewString(), Operation: operation, StartedAt: time.Now().UTC()}}
	if parent, ok := ctx.Value(spanKey{}).(string); ok {
		s.span.ParentID = parent
	}
	return context.WithValue(ctx, spanKey{}, s.span.ID), s
}

type jsonSpan struct {
	tracer *JSONTracer
	span   Span
	once   sync.Once
}

func (s *jsonSpan) End(err error) {
	s.once.Do(func() {
		span := s.span
		span.Status = "success"
		if err != nil {
			span.Status = "error"
			span.Error = err.Error()
		}
		span.DurationMS = float64(time.Since(span.StartedAt)) / float64(time.Millisecond)
		s.tracer.record(span)
	})
}

func (t *JSONTracer) record(span Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = append(t.spans, span)
	if over := len(t.spans) - t.retain; over > 0 {
		t.spans = append(t.spans[:0], t.spans[over:]...)
	}
	if t.enc != nil {
		_ = t.enc.Encode(span)
	}
}
