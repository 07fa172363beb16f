package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderObserve(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()
	rec.Observe(ctx, "save", true, 10*time.Millisecond)
	rec.Observe(ctx, "save", true, 20*time.Millisecond)
	rec.Observe(ctx, "save", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	if got := testutil.ToFloat64(rec.operationsTotal.WithLabelValues("save", "success")); got != 2 {
		t.Fatalf("expected 2 successful saves, got %f", got)
	}
	if got := testutil.ToFloat64(rec.operationsTotal.WithLabelValues("save", "error")); got != 1 {
		t.Fatalf("expected 1 failed save, got %f", got)
	}
	if got := testutil.CollectAndCount(rec.operationsTotal); got != 2 {
		t.Fatalf("expected 2 series, got %d", got)
	}
}

func TestRecorderGaugeAndErrors(t *testing.T) {
	rec := NewRecorder()
	rec.CachedModels(7)
	rec.RecordError(context.Background(), "get", "unknown_identifier")
	if got := testutil.ToFloat64(rec.cachedModels); got != 7 {
		t.Fatalf("expected gauge 7, got %f", got)
	}
	if got := testutil.ToFloat64(rec.errorsTotal.WithLabelValues("get", "unknown_identifier")); got != 1 {
		t.Fatalf("expected 1 error, got %f", got)
	}
}

func TestRecorderHandlerServesOwnRegistry(t *testing.T) {
	rec := NewRecorder()
	rec.CachedModels(1)
	other := NewRecorder()
	other.CachedModels(99)

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "modelcore_cached_models 1") {
		t.Fatalf("expected gauge in output:\n%s", body)
	}
}
