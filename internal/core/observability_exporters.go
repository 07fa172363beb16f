package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq atomic.Uint64

type opStats struct {
	totalMS float64
	byState map[string]int64
	byError map[string]int64
}

// ExpvarMetricsRecorder publishes per-operation registry counters through
// expvar for processes that do not run a Prometheus registry. It implements
// MetricsRecorder, CacheObserver and the error classification hook.
type ExpvarMetricsRecorder struct {
	name   string
	mu     sync.Mutex
	ops    map[string]*opStats
	cached int
}

// ExpvarMetricsSnapshot is a copy of the recorder state at RecordedAt.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Results     map[string]map[string]int64 `json:"results_total"`
	ErrorTypes  map[string]map[string]int64 `json:"error_types_total,omitempty"`
	Cached      int                         `json:"cached_models"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated modelcore_registry_metrics_N when name is empty.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("modelcore_registry_metrics_%d", expvarSeq.Add(1))
	}
	rec := &ExpvarMetricsRecorder{name: name, ops: make(map[string]*opStats)}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name is the expvar key.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

func (r *ExpvarMetricsRecorder) statsLocked(op string) *opStats {
	st, ok := r.ops[op]
	if !ok {
		st = &opStats{byState: make(map[string]int64, 2)}
		r.ops[op] = st
	}
	return st
}

// Snapshot copies the counters.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := ExpvarMetricsSnapshot{
		DurationsMS: make(map[string]float64, len(r.ops)),
		Results:     make(map[string]map[string]int64, len(r.ops)),
		Cached:      r.cached,
		RecordedAt:  time.Now().UTC(),
	}
	for op, st := range r.ops {
		snap.DurationsMS[op] = st.totalMS
		snap.Results[op] = maps.Clone(st.byState)
		if len(st.byError) > 0 {
			if snap.ErrorTypes == nil {
				snap.ErrorTypes = make(map[string]map[string]int64)
			}
			snap.ErrorTypes[op] = maps.Clone(st.byError)
		}
	}
	return snap
}

// Observe counts one finished operation. Unnamed operations are ignored.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	state := "success"
	if !success {
		state = "error"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.statsLocked(operation)
	st.totalMS += float64(duration) / float64(time.Millisecond)
	st.byState[state]++
}

// RecordError counts a failed operation by taxonomy name.
func (r *ExpvarMetricsRecorder) RecordError(_ context.Context, operation, errorType string) {
	if operation == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.statsLocked(operation)
	if st.byError == nil {
		st.byError = make(map[string]int64)
	}
	st.byError[errorType]++
}

// CachedModels implements CacheObserver.
func (r *ExpvarMetricsRecorder) CachedModels(n int) {
	r.mu.Lock()
	r.cached = n
	r.mu.Unlock()
}

// JSONTraceEntry is one finished span as written by JSONTraceTracer.
type JSONTraceEntry struct {
	Seq        uint64    `json:"seq"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes each finished span as a JSON line and keeps every
// entry in memory. Entries are numbered in the order their spans end.
type JSONTraceTracer struct {
	mu      sync.Mutex
	seq     uint64
	entries []JSONTraceEntry
	enc     *json.Encoder
	now     func() time.Time
}

// NewJSONTracer returns a tracer writing to w; a nil w only retains entries.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{entries: []JSONTraceEntry{}, now: func() time.Time { return time.Now().UTC() }}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of the finished spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry{}, t.entries...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, operation: operation, started: t.now()}
}

func (t *JSONTraceTracer) finish(entry JSONTraceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	entry.Seq = t.seq
	t.entries = append(t.entries, entry)
	if t.enc != nil {
		_ = t.enc.Encode(entry)
	}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
	ended     atomic.Bool
}

// End records the span once; later calls are ignored.
func (s *jsonTraceSpan) End(err error) {
	if !s.ended.CompareAndSwap(false, true) {
		return
	}
	ended := s.tracer.now()
	entry := JSONTraceEntry{
		Operation:  s.operation,
		Status:     "success",
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status, entry.Error = "error", err.Error()
	}
	s.tracer.finish(entry)
}
