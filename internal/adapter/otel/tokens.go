package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/delayguard/internal/domain"
)

// TracingTokens wraps a domain.TokenDirectory so every call made through the
// clients it resolves is traced.
type TracingTokens struct {
	next   domain.TokenDirectory
	tracer trace.Tracer
}

// Compile-time check: TracingTokens implements domain.TokenDirectory.
var _ domain.TokenDirectory = (*TracingTokens)(nil)

func NewTracingTokens(next domain.TokenDirectory) *TracingTokens {
	return &TracingTokens{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (d *TracingTokens) Client(ctx context.Context, token, caller domain.Address) (domain.TokenService, error) {
	svc, err := d.next.Client(ctx, token, caller)
	if err != nil {
		return nil, err
	}
	return &tracingTokenClient{
		next:   svc,
		tracer: d.tracer,
		attrs: []attribute.KeyValue{
			attribute.String("token.address", token.String()),
			attribute.String("token.caller", caller.String()),
		},
	}, nil
}

type tracingTokenClient struct {
	next   domain.TokenService
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

func (c *tracingTokenClient) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(append(attrs, c.attrs...)...))
}

func (c *tracingTokenClient) BalanceOf(ctx context.Context, holder domain.Address) (domain.Amount, error) {
	ctx, span := c.start(ctx, "TokenService.BalanceOf", attribute.String("token.holder", holder.String()))
	defer span.End()

	balance, err := c.next.BalanceOf(ctx, holder)
	recordErr(span, err)
	return balance, err
}

func (c *tracingTokenClient) Transfer(ctx context.Context, to domain.Address, amount domain.Amount) (bool, error) {
	ctx, span := c.start(ctx, "TokenService.Transfer",
		attribute.String("token.to", to.String()),
		attribute.String("token.amount", amount.String()),
	)
	defer span.End()

	ok, err := c.next.Transfer(ctx, to, amount)
	recordErr(span, err)
	span.SetAttributes(attribute.Bool("result.ok", ok))
	return ok, err
}

func (c *tracingTokenClient) TransferFrom(ctx context.Context, from, to domain.Address, amount domain.Amount) (bool, error) {
	ctx, span := c.start(ctx, "TokenService.TransferFrom",
		attribute.String("token.from", from.String()),
		attribute.String("token.to", to.String()),
		attribute.String("token.amount", amount.String()),
	)
	defer span.End()

	ok, err := c.next.TransferFrom(ctx, from, to, amount)
	recordErr(span, err)
	span.SetAttributes(attribute.Bool("result.ok", ok))
	return ok, err
}
