package observability

import (
	"context"
	"expvar"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"gardenkeep/internal/core"
)

var expvarSeq uint64

// OperationStats aggregates one operation's outcomes.
type OperationStats struct {
	Success   int64   `json:"success"`
	Error     int64   `json:"error"`
	TotalMS   float64 `json:"total_ms"`
	SlowestMS float64 `json:"slowest_ms"`
}

// ExpvarSnapshot is a read-only copy of the recorded stats.
type ExpvarSnapshot struct {
	Operations map[string]OperationStats `json:"operations"`
	RecordedAt time.Time                 `json:"recorded_at"`
}

// ExpvarRecorder publishes per-operation counters under /debug/vars.
type ExpvarRecorder struct {
	name string
	mu   sync.Mutex
	ops  map[string]OperationStats
}

var _ core.MetricsRecorder = (*ExpvarRecorder)(nil)

// NewExpvarRecorder publishes a recorder under name, or under a generated
// unique name when name is empty. expvar names are process-global, so a
// name may only be used once.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		name = fmt.Sprintf("gardenkeep_operations_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	r := &ExpvarRecorder{name: name, ops: make(map[string]OperationStats)}
	expvar.Publish(name, expvar.Func(func() any { return r.Snapshot() }))
	return r
}

// Name returns the expvar key.
func (r *ExpvarRecorder) Name() string { return r.name }

// Snapshot copies the current stats.
func (r *ExpvarRecorder) Snapshot() ExpvarSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ExpvarSnapshot{Operations: maps.Clone(r.ops), RecordedAt: time.Now().UTC()}
}

// Observe implements core.MetricsRecorder.
func (r *ExpvarRecorder) Observe(_ context.Context, operation string, success bool, d time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(d) / float64(time.Millisecond)
	r.mu.Lock()
	st := r.ops[operation]
	if success {
		st.Success++
	} else {
		st.Error++
	}
	st.TotalMS += ms
	st.SlowestMS = max(st.SlowestMS, ms)
	r.ops[operation] = st
	r.mu.Unlock()
}
