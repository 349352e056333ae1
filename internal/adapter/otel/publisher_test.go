package otel_test

import (
	"context"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	adapter "github.com/neomorfeo/delayguard/internal/adapter/otel"
	"github.com/neomorfeo/delayguard/internal/domain"
)

// --- Mock publisher ---

type mockPublisher struct {
	published []domain.Notification
}

func (m *mockPublisher) Publish(_ context.Context, n domain.Notification) error {
	m.published = append(m.published, n)
	return nil
}

type failingPublisher struct{}

func (p *failingPublisher) Publish(_ context.Context, _ domain.Notification) error {
	return fmt.Errorf("publish failed")
}

func setupTestMeter(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader
}

func newTracingPublisher(t *testing.T, next domain.EventPublisher) *adapter.TracingPublisher {
	t.Helper()
	pub, err := adapter.NewTracingPublisher(next)
	if err != nil {
		t.Fatalf("NewTracingPublisher: %v", err)
	}
	return pub
}

// --- Tests ---

func TestTracingPublisher_Publish_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &mockPublisher{}
	pub := newTracingPublisher(t, inner)

	if err := pub.Publish(context.Background(), domain.PolicyPurchased(3, buyer)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "EventPublisher.Publish" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "EventPublisher.Publish")
	}

	assertAttribute(t, spans[0], "notification.kind", "policy_purchased")
	assertAttribute(t, spans[0], "policy.id", "3")

	if len(inner.published) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(inner.published))
	}
}

func TestTracingPublisher_Publish_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	pub := newTracingPublisher(t, &failingPublisher{})

	err := pub.Publish(context.Background(), domain.DelayStatusSet(1, true))
	if err == nil {
		t.Fatal("expected error")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
}

func TestTracingPublisher_Publish_CountsByKind(t *testing.T) {
	setupTestTracer(t)
	reader := setupTestMeter(t)
	pub := newTracingPublisher(t, &mockPublisher{})
	ctx := context.Background()

	for _, n := range []domain.Notification{
		domain.PolicyPurchased(1, buyer),
		domain.PolicyPurchased(2, buyer),
		domain.DelayStatusSet(1, true),
	} {
		if err := pub.Publish(ctx, n); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "delayguard.notifications.published" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric data is %T, want Sum[int64]", m.Data)
			}
			for _, dp := range sum.DataPoints {
				kind, _ := dp.Attributes.Value("notification.kind")
				counts[kind.AsString()] = dp.Value
			}
		}
	}

	if counts["policy_purchased"] != 2 || counts["delay_status_set"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
