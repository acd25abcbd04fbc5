package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/propertiq/internal/domain"
)

const tracerName = "github.com/neomorfeo/propertiq/internal/adapter/otel"

// TracingInterventionRepository wraps a domain.InterventionRepository with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingInterventionRepository struct {
	next   domain.InterventionRepository
	tracer trace.Tracer
}

// Compile-time check: TracingInterventionRepository implements domain.InterventionRepository.
var _ domain.InterventionRepository = (*TracingInterventionRepository)(nil)

// NewTracingInterventionRepository creates a tracing decorator around the given repository.
func NewTracingInterventionRepository(next domain.InterventionRepository) *TracingInterventionRepository {
	return &TracingInterventionRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingInterventionRepository) Create(ctx context.Context, iv domain.Intervention) error {
	ctx, span := r.tracer.Start(ctx, "InterventionRepository.Create",
		trace.WithAttributes(interventionAttributes(iv)...),
	)
	defer span.End()

	err := r.next.Create(ctx, iv)
	recordError(span, err)
	return err
}

func (r *TracingInterventionRepository) GetByID(ctx context.Context, id string) (domain.Intervention, error) {
	ctx, span := r.tracer.Start(ctx, "InterventionRepository.GetByID",
		trace.WithAttributes(attribute.String("intervention.id", id)),
	)
	defer span.End()

	iv, err := r.next.GetByID(ctx, id)
	recordError(span, err)
	return iv, err
}

func (r *TracingInterventionRepository) List(ctx context.Context, filter domain.InterventionFilter) ([]domain.Intervention, error) {
	ctx, span := r.tracer.Start(ctx, "InterventionRepository.List",
		trace.WithAttributes(
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer span.End()

	if filter.Status != nil {
		span.SetAttributes(attribute.String("filter.status", string(*filter.Status)))
	}
	if filter.TeamID != "" {
		span.SetAttributes(attribute.String("filter.team_id", filter.TeamID))
	}
	if filter.AssigneeID != "" {
		span.SetAttributes(attribute.String("filter.assignee_id", filter.AssigneeID))
	}

	interventions, err := r.next.List(ctx, filter)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Int("result.count", len(interventions)))
	}
	return interventions, err
}

func (r *TracingInterventionRepository) Update(ctx context.Context, iv domain.Intervention) error {
	ctx, span := r.tracer.Start(ctx, "InterventionRepository.Update",
		trace.WithAttributes(interventionAttributes(iv)...),
	)
	defer span.End()

	err := r.next.Update(ctx, iv)
	recordError(span, err)
	return err
}

func (r *TracingInterventionRepository) Delete(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "InterventionRepository.Delete",
		trace.WithAttributes(attribute.String("intervention.id", id)),
	)
	defer span.End()

	err := r.next.Delete(ctx, id)
	recordError(span, err)
	return err
}

func (r *TracingInterventionRepository) CountByStatus(ctx context.Context, teamID string) (map[domain.Status]int, error) {
	ctx, span := r.tracer.Start(ctx, "InterventionRepository.CountByStatus",
		trace.WithAttributes(attribute.String("team.id", teamID)),
	)
	defer span.End()

	counts, err := r.next.CountByStatus(ctx, teamID)
	recordError(span, err)
	return counts, err
}

func interventionAttributes(iv domain.Intervention) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("intervention.id", iv.ID),
		attribute.String("intervention.status", string(iv.Status)),
		attribute.String("building.id", iv.BuildingID),
	}
}

func recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
