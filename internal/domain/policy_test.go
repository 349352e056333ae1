package domain_test

import (
	"testing"
	"time"

	"github.com/neomorfeo/delayguard/internal/domain"
)

var buyer = domain.MustParseAddress("0x00000000000000000000000000000000000000b1")

func TestNewPolicy(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := domain.NewPolicy(4, buyer, 1_800_000_000, now)

	if p.ID != 4 {
		t.Errorf("ID = %d, want 4", p.ID)
	}
	if p.Insured != buyer {
		t.Errorf("Insured = %s, want %s", p.Insured, buyer)
	}
	if p.Status != domain.StatusActive {
		t.Errorf("Status = %q, want %q", p.Status, domain.StatusActive)
	}
	if p.ActualArrival != 0 || p.ClaimedDays != 0 {
		t.Errorf("ActualArrival = %d, ClaimedDays = %d, want zeros", p.ActualArrival, p.ClaimedDays)
	}
	if !p.CreatedAt.Equal(now) || p.UpdatedAt != p.CreatedAt {
		t.Errorf("CreatedAt = %v, UpdatedAt = %v, want both %v", p.CreatedAt, p.UpdatedAt, now)
	}
	if !p.Exists() {
		t.Error("purchased policy should exist")
	}
	if (domain.Policy{}).Exists() {
		t.Error("zero policy should not exist")
	}
}

func TestDefaultConfig(t *testing.T) {
	admin := domain.MustParseAddress("0x00000000000000000000000000000000000000a1")
	token := domain.MustParseAddress("0x00000000000000000000000000000000000000c1")
	cfg := domain.DefaultConfig(admin, token)

	if !cfg.Initialized() {
		t.Error("default config should be initialized")
	}
	if cfg.NextPolicyID != 1 {
		t.Errorf("NextPolicyID = %d, want 1", cfg.NextPolicyID)
	}
	if cfg.Lock != domain.LockIdle {
		t.Errorf("Lock = %d, want idle", cfg.Lock)
	}
	if cfg.MaxPayoutDays != 10 {
		t.Errorf("MaxPayoutDays = %d, want 10", cfg.MaxPayoutDays)
	}
	if got, want := cfg.PremiumAmount.String(), "1000000000000000000000"; got != want {
		t.Errorf("PremiumAmount = %s, want %s", got, want)
	}
	if got, want := cfg.PayoutPerDay.String(), "10000000000000000000"; got != want {
		t.Errorf("PayoutPerDay = %s, want %s", got, want)
	}
}

func TestStatus_RoundTripNames(t *testing.T) {
	for _, s := range []domain.Status{domain.StatusInactive, domain.StatusActive, domain.StatusDelayed, domain.StatusDelivered} {
		got, err := domain.ParseStatus(s.String())
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", s, err)
		}
		if got != s {
			t.Errorf("ParseStatus(%q) = %d, want %d", s, got, s)
		}
	}
	if _, err := domain.ParseStatus("cancelled"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestStatus_Claimable(t *testing.T) {
	want := map[domain.Status]bool{
		domain.StatusInactive:  false,
		domain.StatusActive:    false,
		domain.StatusDelayed:   true,
		domain.StatusDelivered: true,
	}
	for s, w := range want {
		if got := s.Claimable(); got != w {
			t.Errorf("%s.Claimable() = %v, want %v", s, got, w)
		}
	}
}

func TestTransitions_AllEventsHaveEntries(t *testing.T) {
	events := []domain.Event{
		domain.EventReportDelay,
		domain.EventClearDelay,
		domain.EventConfirmDelivery,
		domain.EventRevokeDelivery,
		domain.EventExhaust,
	}

	for _, event := range events {
		found := false
		for _, tr := range domain.Transitions {
			if tr.Event == event {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("event %q has no transition defined", event)
		}
	}
}

func TestTransitions_ValidPaths(t *testing.T) {
	cases := []struct {
		event domain.Event
		src   domain.Status
		dst   domain.Status
	}{
		{domain.EventReportDelay, domain.StatusActive, domain.StatusDelayed},
		{domain.EventClearDelay, domain.StatusDelayed, domain.StatusActive},
		{domain.EventConfirmDelivery, domain.StatusActive, domain.StatusDelivered},
		{domain.EventConfirmDelivery, domain.StatusDelayed, domain.StatusDelivered},
		{domain.EventRevokeDelivery, domain.StatusDelivered, domain.StatusActive},
		// Reports override a delivery without a guard.
		{domain.EventReportDelay, domain.StatusDelivered, domain.StatusDelayed},
		{domain.EventClearDelay, domain.StatusDelivered, domain.StatusActive},
		{domain.EventExhaust, domain.StatusDelayed, domain.StatusInactive},
		{domain.EventExhaust, domain.StatusDelivered, domain.StatusInactive},
	}

	for _, tc := range cases {
		found := false
		for _, tr := range domain.Transitions {
			if tr.Event == tc.event && tr.Src == tc.src && tr.Dst == tc.dst {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing transition: %q from %q → %q", tc.event, tc.src, tc.dst)
		}
	}
}

func TestTransitions_InvalidPaths(t *testing.T) {
	invalid := []struct {
		event domain.Event
		src   domain.Status
	}{
		{domain.EventExhaust, domain.StatusActive},
		{domain.EventExhaust, domain.StatusInactive},
	}

	for _, tc := range invalid {
		for _, tr := range domain.Transitions {
			if tr.Event == tc.event && tr.Src == tc.src {
				t.Errorf("unexpected transition: %q from %q should not exist", tc.event, tc.src)
			}
		}
	}
}
