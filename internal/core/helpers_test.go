package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"modelcore/internal/infra/persistence/memory"
	"modelcore/internal/modelstore"
	"modelcore/pkg/domain"
)

const (
	tboxIRI  domain.IRI = "http://example.org/go"
	classA   domain.IRI = "GO:A"
	classB   domain.IRI = "GO:B"
	classC   domain.IRI = "GO:C"
	partOf   domain.IRI = "BFO:partOf"
	enables  domain.IRI = "RO:enables"
	comment  domain.IRI = "rdfs:comment"
	evidence domain.IRI = "ECO:evidence"
)

const testActor = "orcid:0000-0001"

func testTBox(t testing.TB) *domain.TBox {
	t.Helper()
	tbox, err := domain.NewTBox(domain.TBoxSpec{
		IRI: tboxIRI,
		Classes: []domain.ClassDef{
			{IRI: classA},
			{IRI: classB, Parents: []domain.IRI{classA}},
			{IRI: classC},
		},
		Properties: []domain.PropertyDef{
			{IRI: partOf},
			{IRI: enables},
			{IRI: comment, Annotation: true},
			{IRI: evidence, Annotation: true},
		},
		Disjoint: [][2]domain.IRI{{classB, classC}},
	})
	if err != nil {
		t.Fatalf("tbox: %v", err)
	}
	return tbox
}

type fixture struct {
	parts *memory.Store
	store *modelstore.Store
	reg   *UndoAwareRegistry
}

func newFixture(t testing.TB, opts ...Option) *fixture {
	t.Helper()
	parts := memory.NewStore()
	store := modelstore.New(parts)
	reg := NewUndoAwareRegistry(testTBox(t), store, opts...)
	t.Cleanup(reg.Close)
	return &fixture{parts: parts, store: store, reg: reg}
}

func (f *fixture) blank(t testing.TB) domain.ModelID {
	t.Helper()
	inst, err := f.reg.GenerateBlankModel(context.Background(), domain.Metadata{ActorID: testActor})
	if err != nil {
		t.Fatalf("generate blank model: %v", err)
	}
	return inst.ID()
}

func (f *fixture) mutate(t testing.TB, id domain.ModelID, produce EditProducer) MutationResult {
	t.Helper()
	res, err := f.reg.ApplyMutation(context.Background(), id, produce, false, domain.Metadata{ActorID: testActor})
	if err != nil {
		t.Fatalf("apply mutation: %v", err)
	}
	return res
}

func (f *fixture) seed(t testing.TB, id domain.ModelID, facts ...domain.Fact) {
	t.Helper()
	if err := f.store.Save(context.Background(), id, facts); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func graphOf(t testing.TB, reg *UndoAwareRegistry, id domain.ModelID) *domain.Graph {
	t.Helper()
	inst, err := reg.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return inst.Snapshot()
}

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
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	mu     sync.Mutex
	calls  []metricsCall
	errs   []string
	cached []int
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.mu.Lock()
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
	c.mu.Unlock()
}

func (c *captureMetricsRecorder) RecordError(_ context.Context, op, errType string) {
	c.mu.Lock()
	c.errs = append(c.errs, op+":"+errType)
	c.mu.Unlock()
}

func (c *captureMetricsRecorder) CachedModels(n int) {
	c.mu.Lock()
	c.cached = append(c.cached, n)
	c.mu.Unlock()
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	mu    sync.Mutex
	ended []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.mu.Lock()
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
	s.tracer.mu.Unlock()
}
