package domain

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a policy. The numeric values are
// part of the persisted schema.
type Status uint8

const (
	StatusInactive  Status = 0
	StatusActive    Status = 1
	StatusDelayed   Status = 2
	StatusDelivered Status = 3
)

var statusNames = map[Status]string{
	StatusInactive:  "inactive",
	StatusActive:    "active",
	StatusDelayed:   "delayed",
	StatusDelivered: "delivered",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// ParseStatus maps a status name back to its Status.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown policy status %q", name)
}

// Claimable reports whether a claim may be attempted in this status.
func (s Status) Claimable() bool {
	return s == StatusDelayed || s == StatusDelivered
}

// Event represents an action that triggers a state transition.
type Event string

const (
	EventReportDelay     Event = "report_delay"
	EventClearDelay      Event = "clear_delay"
	EventConfirmDelivery Event = "confirm_delivery"
	EventRevokeDelivery  Event = "revoke_delivery"
	EventExhaust         Event = "exhaust"
)

// Transition defines a valid state change: an event moves a policy from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid state changes in the policy lifecycle.
// The administrator's reports are trusted without a guard on the current
// status, so every report event is accepted from every state. Only the
// payout path can retire a policy.
var Transitions = buildTransitions()

func buildTransitions() []Transition {
	all := []Status{StatusInactive, StatusActive, StatusDelayed, StatusDelivered}
	reports := []struct {
		event Event
		dst   Status
	}{
		{EventReportDelay, StatusDelayed},
		{EventClearDelay, StatusActive},
		{EventConfirmDelivery, StatusDelivered},
		{EventRevokeDelivery, StatusActive},
	}

	var out []Transition
	for _, r := range reports {
		for _, src := range all {
			out = append(out, Transition{Event: r.event, Src: src, Dst: r.dst})
		}
	}
	out = append(out,
		Transition{Event: EventExhaust, Src: StatusDelayed, Dst: StatusInactive},
		Transition{Event: EventExhaust, Src: StatusDelivered, Dst: StatusInactive},
	)
	return out
}

// Lock is the stored reentrancy flag guarding claims.
type Lock uint8

const (
	LockIdle Lock = 1
	LockBusy Lock = 2
)

// Config is the ledger's singleton configuration record.
type Config struct {
	Admin         Address
	Token         Address
	PremiumAmount Amount
	PayoutPerDay  Amount
	MaxPayoutDays uint64
	NextPolicyID  uint64
	Lock          Lock
}

// Initialized reports whether initialize has bound an administrator.
func (c Config) Initialized() bool { return !c.Admin.IsZero() }

// DefaultConfig returns the configuration written by initialize:
// 1000 tokens premium, 10 tokens per delayed day, at most 10 days.
func DefaultConfig(admin, token Address) Config {
	return Config{
		Admin:         admin,
		Token:         token,
		PremiumAmount: WholeTokens(1000),
		PayoutPerDay:  WholeTokens(10),
		MaxPayoutDays: 10,
		NextPolicyID:  1,
		Lock:          LockIdle,
	}
}

// Policy is a single purchased cover. Insured is never zero for a stored
// policy; the zero Policy stands in for an ID that was never purchased.
type Policy struct {
	ID              uint64
	Insured         Address
	ExpectedArrival uint64
	ActualArrival   uint64
	ClaimedDays     uint64
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewPolicy creates a policy in the initial "active" state.
func NewPolicy(id uint64, insured Address, expectedArrival uint64, now time.Time) Policy {
	now = now.UTC()
	return Policy{
		ID:              id,
		Insured:         insured,
		ExpectedArrival: expectedArrival,
		Status:          StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Exists reports whether the record belongs to a purchased policy.
func (p Policy) Exists() bool { return !p.Insured.IsZero() }

// Pricing is the administrator-controlled rate card.
type Pricing struct {
	Premium       Amount
	PayoutPerDay  Amount
	MaxPayoutDays uint64
}
