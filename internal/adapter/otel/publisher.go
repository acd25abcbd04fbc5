package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/propertiq/internal/domain"
)

// TracingPublisher wraps a domain.EventPublisher with OpenTelemetry tracing.
type TracingPublisher struct {
	next   domain.EventPublisher
	tracer trace.Tracer
}

// Compile-time check: TracingPublisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*TracingPublisher)(nil)

// NewTracingPublisher creates a tracing decorator around the given publisher.
func NewTracingPublisher(next domain.EventPublisher) *TracingPublisher {
	return &TracingPublisher{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (p *TracingPublisher) Publish(ctx context.Context, event domain.Event, iv domain.Intervention) error {
	ctx, span := p.tracer.Start(ctx, "EventPublisher.Publish",
		trace.WithAttributes(
			append(interventionAttributes(iv), attribute.String("event.type", string(event)))...,
		),
	)
	defer span.End()

	err := p.next.Publish(ctx, event, iv)
	recordError(span, err)
	return err
}

// TracingInvitationSender wraps a domain.InvitationSender with OpenTelemetry tracing.
type TracingInvitationSender struct {
	next   domain.InvitationSender
	tracer trace.Tracer
}

var _ domain.InvitationSender = (*TracingInvitationSender)(nil)

// NewTracingInvitationSender creates a tracing decorator around the given sender.
func NewTracingInvitationSender(next domain.InvitationSender) *TracingInvitationSender {
	return &TracingInvitationSender{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingInvitationSender) SendInvitation(ctx context.Context, inv domain.Invitation) error {
	ctx, span := s.tracer.Start(ctx, "InvitationSender.SendInvitation",
		trace.WithAttributes(
			attribute.String("user.id", inv.UserID),
			attribute.String("team.id", inv.TeamID),
			attribute.String("user.role", string(inv.Role)),
		),
	)
	defer span.End()

	err := s.next.SendInvitation(ctx, inv)
	recordError(span, err)
	return err
}
