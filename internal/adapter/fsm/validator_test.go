package fsm_test

import (
	"context"
	"errors"
	"testing"

	adapter "github.com/neomorfeo/delayguard/internal/adapter/fsm"
	"github.com/neomorfeo/delayguard/internal/domain"
)

func TestValidator_AllTransitions(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	for _, tr := range domain.Transitions {
		dst, err := v.Apply(ctx, tr.Src, tr.Event)
		if err != nil {
			t.Errorf("Apply(%q, %q) unexpected error: %v", tr.Src, tr.Event, err)
			continue
		}
		if dst != tr.Dst {
			t.Errorf("Apply(%q, %q) = %q, want %q", tr.Src, tr.Event, dst, tr.Dst)
		}
	}
}

func TestValidator_InvalidTransition(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	// An active policy has not paid anything out, so it cannot be exhausted.
	_, err := v.Apply(ctx, domain.StatusActive, domain.EventExhaust)
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if trErr.Event != domain.EventExhaust {
		t.Errorf("event = %q, want %q", trErr.Event, domain.EventExhaust)
	}
	if trErr.Current != domain.StatusActive {
		t.Errorf("current = %q, want %q", trErr.Current, domain.StatusActive)
	}
}

func TestValidator_UnknownEvent(t *testing.T) {
	v := adapter.New()

	_, err := v.Apply(context.Background(), domain.StatusActive, domain.Event("refund"))
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestValidator_SameStateIsNoop(t *testing.T) {
	v := adapter.New()

	got, err := v.Apply(context.Background(), domain.StatusDelayed, domain.EventReportDelay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.StatusDelayed {
		t.Errorf("got %q, want %q", got, domain.StatusDelayed)
	}
}

func TestValidator_FullLifecycle(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	steps := []struct {
		from  domain.Status
		event domain.Event
		want  domain.Status
	}{
		{domain.StatusActive, domain.EventReportDelay, domain.StatusDelayed},
		{domain.StatusDelayed, domain.EventClearDelay, domain.StatusActive},
		{domain.StatusActive, domain.EventConfirmDelivery, domain.StatusDelivered},
		{domain.StatusDelivered, domain.EventRevokeDelivery, domain.StatusActive},
		{domain.StatusActive, domain.EventReportDelay, domain.StatusDelayed},
		{domain.StatusDelayed, domain.EventExhaust, domain.StatusInactive},
	}

	for _, step := range steps {
		got, err := v.Apply(ctx, step.from, step.event)
		if err != nil {
			t.Fatalf("Apply(%q, %q) error: %v", step.from, step.event, err)
		}
		if got != step.want {
			t.Errorf("Apply(%q, %q) = %q, want %q", step.from, step.event, got, step.want)
		}
	}
}

func TestValidator_DeliveredCanBeOverriddenByDelayReport(t *testing.T) {
	v := adapter.New()

	got, err := v.Apply(context.Background(), domain.StatusDelivered, domain.EventClearDelay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.StatusActive {
		t.Errorf("got %q, want %q", got, domain.StatusActive)
	}
}
