package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/dvidales/appliq/internal/adapter/otel"
	"github.com/dvidales/appliq/internal/domain"
)

// --- Test tracer setup ---

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

// --- Mock repository ---

type mockRepo struct {
	apps map[string]domain.Application
}

func newMockRepo() *mockRepo {
	return &mockRepo{apps: make(map[string]domain.Application)}
}

func (m *mockRepo) Create(_ context.Context, app domain.Application, _ domain.HistoryRecord) error {
	m.apps[app.ID] = app
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (domain.Application, error) {
	app, ok := m.apps[id]
	if !ok {
		return domain.Application{}, &domain.NotFoundError{Kind: "application", ID: id}
	}
	return app, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, app domain.Application, _ domain.HistoryRecord) error {
	if _, ok := m.apps[app.ID]; !ok {
		return &domain.NotFoundError{Kind: "application", ID: app.ID}
	}
	m.apps[app.ID] = app
	return nil
}

func (m *mockRepo) ReplaceTags(_ context.Context, app domain.Application) error {
	m.apps[app.ID] = app
	return nil
}

func (m *mockRepo) ReplaceFiles(_ context.Context, app domain.Application) error {
	m.apps[app.ID] = app
	return nil
}

func (m *mockRepo) FirstPage(_ context.Context, limit int) ([]domain.Application, error) {
	out := make([]domain.Application, 0, len(m.apps))
	for _, app := range m.apps {
		out = append(out, app)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRepo) PageAfter(_ context.Context, _ time.Time, _ string, _ int) ([]domain.Application, error) {
	return nil, nil
}

func (m *mockRepo) LoadRefs(_ context.Context, ids []string) (map[string]domain.Refs, error) {
	out := make(map[string]domain.Refs, len(ids))
	for _, id := range ids {
		out[id] = domain.Refs{}
	}
	return out, nil
}

func (m *mockRepo) FindIDsByApplicant(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (m *mockRepo) FindIDsByProduct(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (m *mockRepo) DeleteCascade(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(m.apps, id)
	}
	return nil
}

// --- Tests ---

func TestTracingRepository_Create_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	app := domain.NewApplication("a-1", "u-1", "p-1", nil, nil)
	if err := repo.Create(context.Background(), app, domain.HistoryRecord{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "ApplicationRepository.Create" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "ApplicationRepository.Create")
	}

	assertAttribute(t, spans[0], "application.id", "a-1")
	assertAttribute(t, spans[0], "application.applicant_id", "u-1")
	assertAttribute(t, spans[0], "application.product_id", "p-1")
}

func TestTracingRepository_GetByID_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	repo := adapter.NewTracingRepository(newMockRepo())

	_, err := repo.GetByID(context.Background(), "nonexistent")
	var notFound *domain.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
}

func TestTracingRepository_FirstPage_RecordsResultCount(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	inner.apps["a-1"] = domain.NewApplication("a-1", "u-1", "p-1", nil, nil)
	inner.apps["a-2"] = domain.NewApplication("a-2", "u-2", "p-1", nil, nil)

	apps, err := repo.FirstPage(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(apps) != 2 {
		t.Errorf("got %d applications, want 2", len(apps))
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "result.count", "2")
}

func TestTracingRepository_UpdateStatus_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	app := domain.NewApplication("a-1", "u-1", "p-1", nil, nil)
	inner.apps["a-1"] = app

	app.Status = domain.StatusApproved
	if err := repo.UpdateStatus(context.Background(), app, domain.HistoryRecord{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "ApplicationRepository.UpdateStatus" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "ApplicationRepository.UpdateStatus")
	}
	assertAttribute(t, spans[0], "application.status", "APPROVED")
}

func TestTracingRepository_DeleteCascade_RecordsBatchSize(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	inner.apps["a-1"] = domain.NewApplication("a-1", "u-1", "p-1", nil, nil)
	inner.apps["a-2"] = domain.NewApplication("a-2", "u-1", "p-1", nil, nil)

	if err := repo.DeleteCascade(context.Background(), []string{"a-1", "a-2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "batch.size", "2")

	if len(inner.apps) != 0 {
		t.Errorf("apps remaining = %d, want 0", len(inner.apps))
	}
}

// assertAttribute checks that a span has an attribute with the given key and string value.
func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			got := attr.Value.Emit()
			if got != want {
				t.Errorf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}
