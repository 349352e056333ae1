package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/delayguard/internal/domain"
)

// TracingPublisher wraps a domain.EventPublisher with OpenTelemetry tracing
// and counts published notifications by kind.
type TracingPublisher struct {
	next      domain.EventPublisher
	tracer    trace.Tracer
	published metric.Int64Counter
}

// Compile-time check: TracingPublisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*TracingPublisher)(nil)

// NewTracingPublisher creates a tracing decorator around the given publisher.
func NewTracingPublisher(next domain.EventPublisher) (*TracingPublisher, error) {
	published, err := otel.Meter(tracerName).Int64Counter("delayguard.notifications.published",
		metric.WithDescription("Ledger notifications handed to the publisher."),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}
	return &TracingPublisher{
		next:      next,
		tracer:    otel.Tracer(tracerName),
		published: published,
	}, nil
}

func (p *TracingPublisher) Publish(ctx context.Context, n domain.Notification) error {
	kind := attribute.String("notification.kind", string(n.Kind))
	ctx, span := p.tracer.Start(ctx, "EventPublisher.Publish",
		trace.WithAttributes(
			kind,
			attribute.Int64("policy.id", int64(n.PolicyID)),
		),
	)
	defer span.End()

	err := p.next.Publish(ctx, n)
	if err != nil {
		recordErr(span, err)
		return err
	}
	p.published.Add(ctx, 1, metric.WithAttributes(kind))
	return nil
}
