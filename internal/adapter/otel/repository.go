package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dvidales/appliq/internal/domain"
)

const tracerName = "github.com/dvidales/appliq/internal/adapter/otel"

// TracingRepository wraps a domain.ApplicationRepository with OpenTelemetry
// tracing. Each method creates a span with semantic attributes and records
// errors.
type TracingRepository struct {
	next   domain.ApplicationRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.ApplicationRepository.
var _ domain.ApplicationRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.ApplicationRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) Create(ctx context.Context, app domain.Application, seed domain.HistoryRecord) error {
	ctx, span := r.tracer.Start(ctx, "ApplicationRepository.Create",
		trace.WithAttributes(
			attribute.String("application.id", app.ID),
			attribute.String("application.applicant_id", app.ApplicantID),
			attribute.String("application.product_id", app.ProductID),
		),
	)
	defer span.End()

	return r.record(span, r.next.Create(ctx, app, seed))
}

func (r *TracingRepository) GetByID(ctx context.Context, id string) (domain.Application, error) {
	ctx, span := r.tracer.Start(ctx, "ApplicationRepository.GetByID",
		trace.WithAttributes(attribute.String("application.id", id)),
	)
	defer span.End()

	app, err := r.next.GetByID(ctx, id)
	return app, r.record(span, err)
}

func (r *TracingRepository) UpdateStatus(ctx context.Context, app domain.Application, record domain.HistoryRecord) error {
	ctx, span := r.tracer.Start(ctx, "ApplicationRepository.UpdateStatus",
		trace.WithAttributes(
			attribute.String("application.id", app.ID),
			attribute.String("application.status", string(app.Status)),
			attribute.Int64("application.version", app.Version),
		),
	)
	defer span.End()

	return r.record(span, r.next.UpdateStatus(ctx, app, record))
}

func (r *TracingRepository) ReplaceTags(ctx context.Context, app domain.Application) error {
	ctx, span := r.tracer.Start(ctx, "ApplicationRepository.ReplaceTags",
		trace.WithAttributes(
			attribute.String("application.id", app.ID),
			attribute.Int("tags.count", len(app.Tags)),
		),
	)
	defer span.End()

	return r.record(span, r.next.ReplaceTags(ctx, app))
}

func (r *TracingRepository) ReplaceFiles(ctx context.Context, app domain.Application) error {
	ctx, span := r.tracer.Start(ctx, "ApplicationRepository.ReplaceFiles",
		trace.WithAttributes(
			attribute.String("application.id", app.ID),
			attribute.Int("files.count", len(app.Files)),
		),
	)
	defer span.End()

	return r.record(span, r.next.ReplaceFiles(ctx, app))
}

func (r *TracingRepository) FirstPage(ctx context.Context, limit int) ([]domain.Application, error) {
	ctx, span := r.tracer.Start(ctx, "ApplicationRepository.FirstPage",
		trace.WithAttributes(attribute.Int("page.limit", limit)),
	)
	defer span.End()

	apps, err := r.next.FirstPage(ctx, limit)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(apps)))
	}
	return apps, r.record(span, err)
}

func (r *TracingRepository) PageAfter(ctx context.Context, createdAt time.Time, id string, limit int) ([]domain.Application, error) {
	ctx, span := r.tracer.Start(ctx, "ApplicationRepository.PageAfter",
		trace.WithAttributes(
			attribute.String("page.after_id", id),
			attribute.Int("page.limit", limit),
		),
	)
	defer span.End()

	apps, err := r.next.PageAfter(ctx, createdAt, id, limit)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(apps)))
	}
	return apps, r.record(span, err)
}

func (r *TracingRepository) LoadRefs(ctx context.Context, ids []string) (map[string]domain.Refs, error) {
	ctx, span := r.tracer.Start(ctx, "ApplicationRepository.LoadRefs",
		trace.WithAttributes(attribute.Int("batch.size", len(ids))),
	)
	defer span.End()

	refs, err := r.next.LoadRefs(ctx, ids)
	return refs, r.record(span, err)
}

func (r *TracingRepository) FindIDsByApplicant(ctx context.Context, applicantID string) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "ApplicationRepository.FindIDsByApplicant",
		trace.WithAttributes(attribute.String("applicant.id", applicantID)),
	)
	defer span.End()

	ids, err := r.next.FindIDsByApplicant(ctx, applicantID)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(ids)))
	}
	return ids, r.record(span, err)
}

func (r *TracingRepository) FindIDsByProduct(ctx context.Context, productID string) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "ApplicationRepository.FindIDsByProduct",
		trace.WithAttributes(attribute.String("product.id", productID)),
	)
	defer span.End()

	ids, err := r.next.FindIDsByProduct(ctx, productID)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(ids)))
	}
	return ids, r.record(span, err)
}

func (r *TracingRepository) DeleteCascade(ctx context.Context, ids []string) error {
	ctx, span := r.tracer.Start(ctx, "ApplicationRepository.DeleteCascade",
		trace.WithAttributes(attribute.Int("batch.size", len(ids))),
	)
	defer span.End()

	return r.record(span, r.next.DeleteCascade(ctx, ids))
}

func (r *TracingRepository) record(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
