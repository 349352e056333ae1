package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/delayguard/internal/domain"
)

const tracerName = "github.com/neomorfeo/delayguard/internal/adapter/otel"

// TracingRepository wraps a domain.LedgerRepository with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingRepository struct {
	next   domain.LedgerRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.LedgerRepository.
var _ domain.LedgerRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.LedgerRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func recordErr(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// WithinFrame spans the whole frame; the spans of calls made inside it are
// its children.
func (r *TracingRepository) WithinFrame(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "LedgerRepository.WithinFrame")
	defer span.End()

	err := r.next.WithinFrame(ctx, fn)
	recordErr(span, err)
	return err
}

func (r *TracingRepository) LoadConfig(ctx context.Context) (domain.Config, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerRepository.LoadConfig")
	defer span.End()

	cfg, err := r.next.LoadConfig(ctx)
	recordErr(span, err)
	return cfg, err
}

func (r *TracingRepository) SaveConfig(ctx context.Context, cfg domain.Config) error {
	ctx, span := r.tracer.Start(ctx, "LedgerRepository.SaveConfig",
		trace.WithAttributes(
			attribute.String("ledger.admin", cfg.Admin.String()),
			attribute.Int64("ledger.next_policy_id", int64(cfg.NextPolicyID)),
			attribute.Int("ledger.lock", int(cfg.Lock)),
		),
	)
	defer span.End()

	err := r.next.SaveConfig(ctx, cfg)
	recordErr(span, err)
	return err
}

func (r *TracingRepository) GetPolicy(ctx context.Context, id uint64) (domain.Policy, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerRepository.GetPolicy",
		trace.WithAttributes(attribute.Int64("policy.id", int64(id))),
	)
	defer span.End()

	p, err := r.next.GetPolicy(ctx, id)
	recordErr(span, err)
	return p, err
}

func (r *TracingRepository) SavePolicy(ctx context.Context, p domain.Policy) error {
	ctx, span := r.tracer.Start(ctx, "LedgerRepository.SavePolicy",
		trace.WithAttributes(
			attribute.Int64("policy.id", int64(p.ID)),
			attribute.String("policy.status", p.Status.String()),
			attribute.Int64("policy.claimed_days", int64(p.ClaimedDays)),
		),
	)
	defer span.End()

	err := r.next.SavePolicy(ctx, p)
	recordErr(span, err)
	return err
}

func (r *TracingRepository) ListPolicies(ctx context.Context, filter domain.ListFilter) ([]domain.Policy, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerRepository.ListPolicies",
		trace.WithAttributes(
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer span.End()

	if filter.Status != nil {
		span.SetAttributes(attribute.String("filter.status", filter.Status.String()))
	}
	if filter.Insured != nil {
		span.SetAttributes(attribute.String("filter.insured", filter.Insured.String()))
	}

	policies, err := r.next.ListPolicies(ctx, filter)
	if err != nil {
		recordErr(span, err)
	} else {
		span.SetAttributes(attribute.Int("result.count", len(policies)))
	}
	return policies, err
}
