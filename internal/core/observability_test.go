package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"modelcore/internal/logging"
	"modelcore/internal/metrics"
	"modelcore/pkg/domain"
)

func TestRegistryObservabilityCapture(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	rec := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t,
		WithAuditRecorder(audit),
		WithMetricsRecorder(rec),
		WithTracer(tracer),
		WithClock(ClockFunc(func() time.Time { return fixed })),
	)

	id := f.blank(t)
	if !audit.has("create_blank_model", AuditStatusSuccess, func(e AuditEntry) bool {
		return e.ModelID == id && e.ActorID == testActor && e.Timestamp.Equal(fixed)
	}) {
		t.Fatalf("expected audit entry for create_blank_model")
	}
	f.mutate(t, id, AddIndividual(f.reg.TBox(), "i1"))
	if !rec.has("apply_mutation", true) || !tracer.has("apply_mutation", true) {
		t.Fatalf("expected metrics and trace for apply_mutation")
	}
	undo, _ := f.reg.UndoRedoState(id)
	if !undo[0].Timestamp.Equal(fixed) {
		t.Fatalf("expected change event stamped by the injected clock")
	}

	if _, err := f.reg.Get(ctx, "http://model.example.org/missing"); err == nil {
		t.Fatalf("expected unknown model error")
	}
	if !audit.has("get", AuditStatusError, func(e AuditEntry) bool { return e.ErrorType == domain.ErrTypeUnknownIdentifier }) {
		t.Fatalf("expected classified audit error entry for get")
	}
	if !rec.has("get", false) || !tracer.has("get", false) {
		t.Fatalf("expected failed metrics and trace for get")
	}
	rec.mu.Lock()
	errs := append([]string(nil), rec.errs...)
	cached := append([]int(nil), rec.cached...)
	rec.mu.Unlock()
	if len(errs) != 1 || errs[0] != "get:unknown_identifier" {
		t.Fatalf("unexpected error records %v", errs)
	}
	if len(cached) == 0 || cached[len(cached)-1] != 1 {
		t.Fatalf("expected cache gauge updates, got %v", cached)
	}
}

func TestRegistryLogsFailuresBySeverity(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	f := newFixture(t, WithLogger(logging.NewZap(zap.New(core))))
	ctx := context.Background()

	if _, err := f.reg.Get(ctx, "http://model.example.org/missing"); err == nil {
		t.Fatalf("expected error")
	}
	if n := logs.FilterMessage("operation failed").FilterLevelExact(zap.WarnLevel).Len(); n != 1 {
		t.Fatalf("expected one warn entry for unknown id, got %d", n)
	}

	id := f.blank(t)
	f.parts.FailNextCommit(errors.New("io"))
	if err := f.reg.Save(ctx, id, SaveOptions{}, domain.Metadata{}); err == nil {
		t.Fatalf("expected save failure")
	}
	entries := logs.FilterMessage("operation failed").FilterLevelExact(zap.ErrorLevel).All()
	if len(entries) != 1 || entries[0].ContextMap()["error_type"] != domain.ErrTypeDurableIO {
		t.Fatalf("expected one error entry for durable failure, got %v", entries)
	}
	if logs.FilterMessage("operation completed").Len() == 0 {
		t.Fatalf("expected debug entries for successful operations")
	}
}

func TestPrometheusRecorderReceivesCacheGauge(t *testing.T) {
	rec := metrics.NewRecorder()
	f := newFixture(t, WithMetricsRecorder(rec))
	f.blank(t)
	f.blank(t)
	families, err := rec.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "modelcore_cached_models" {
			if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 2 {
				t.Fatalf("expected 2 cached models, got %v", v)
			}
			return
		}
	}
	t.Fatalf("cached models gauge not exported")
}

func TestDefaultOptionsAreNoops(t *testing.T) {
	o := defaultOptions()
	ctx, span := o.tracer.Start(context.Background(), "op")
	span.End(errors.New("ignored"))
	o.metrics.Observe(ctx, "op", false, time.Second)
	o.audit.Record(ctx, AuditEntry{})
	o.logger.Info("quiet")
	if now := o.clock.Now(); now.Location() != time.UTC {
		t.Fatalf("expected default clock in UTC, got %v", now.Location())
	}
	if o.idPrefix != DefaultIDPrefix || o.cache != nil {
		t.Fatalf("unexpected defaults %+v", o)
	}

	WithLogger(nil)(&o)
	WithClock(nil)(&o)
	WithMetricsRecorder(nil)(&o)
	WithTracer(nil)(&o)
	WithAuditRecorder(nil)(&o)
	WithReasonerFactory(nil)(&o)
	WithValidator(nil)(&o)
	WithIDPrefix("")(&o)
	if o.logger == nil || o.clock == nil || o.metrics == nil || o.tracer == nil || o.audit == nil || o.reasoners == nil || o.validator == nil || o.idPrefix == "" {
		t.Fatalf("nil options must keep defaults")
	}
}

func TestExpvarMetricsRecorderSnapshot(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if expvar.Get(rec.Name()) == nil {
		t.Fatalf("expected recorder published under %s", rec.Name())
	}
	f := newFixture(t, WithMetricsRecorder(rec))
	f.blank(t)
	_, _ = f.reg.Get(context.Background(), "http://model.example.org/missing")
	rec.Observe(context.Background(), "", true, time.Second)

	snap := rec.Snapshot()
	if snap.Results["create_blank_model"]["success"] != 1 || snap.Results["get"]["error"] != 1 {
		t.Fatalf("unexpected results %+v", snap.Results)
	}
	if snap.ErrorTypes["get"][domain.ErrTypeUnknownIdentifier] != 1 {
		t.Fatalf("expected classified get error, got %+v", snap.ErrorTypes)
	}
	if snap.Cached != 1 {
		t.Fatalf("expected cached gauge 1, got %d", snap.Cached)
	}
	if _, ok := snap.Results[""]; ok {
		t.Fatalf("empty operation must be ignored")
	}
	if !strings.Contains(expvar.Get(rec.Name()).String(), "cached_models") {
		t.Fatalf("expected expvar export to include cache gauge")
	}
}

func TestJSONTracerWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	f := newFixture(t, WithTracer(tracer))
	f.blank(t)
	_, _ = f.reg.Get(context.Background(), "http://model.example.org/missing")

	entries := tracer.Entries()
	if len(entries) != 2 || entries[0].Operation != "create_blank_model" || entries[1].Status != "error" {
		t.Fatalf("unexpected spans %+v", entries)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two encoded spans, got %d", len(lines))
	}
	var decoded JSONTraceEntry
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("decode span: %v", err)
	}
	if decoded.Error == "" || decoded.Seq != 2 {
		t.Fatalf("expected second span with error text, got %+v", decoded)
	}
	if NewJSONTracer(nil).Entries() == nil {
		t.Fatalf("expected empty, non-nil entries")
	}
}
