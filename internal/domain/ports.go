package domain

import (
	"context"
	"time"
)

// LedgerRepository defines the persistence contract for the ledger's
// configuration and policy registry.
type LedgerRepository interface {
	// WithinFrame runs fn so that either all of its writes persist or none do.
	// A call made with a context derived from an open frame joins it as a
	// nested frame that is discarded on its own failure.
	WithinFrame(ctx context.Context, fn func(ctx context.Context) error) error

	// LoadConfig returns ErrNotInitialized if no configuration was saved.
	LoadConfig(ctx context.Context) (Config, error)
	SaveConfig(ctx context.Context, cfg Config) error

	// GetPolicy returns ErrPolicyNotFound for IDs never purchased.
	GetPolicy(ctx context.Context, id uint64) (Policy, error)
	SavePolicy(ctx context.Context, policy Policy) error
	ListPolicies(ctx context.Context, filter ListFilter) ([]Policy, error)
}

// ListFilter holds optional criteria for listing policies.
type ListFilter struct {
	Insured *Address
	Status  *Status
	Limit   int
	Offset  int
}

// TokenService is the external value transfer service, acting on behalf of
// the account it was resolved for. A false result is a logical failure.
type TokenService interface {
	BalanceOf(ctx context.Context, holder Address) (Amount, error)
	Transfer(ctx context.Context, to Address, amount Amount) (bool, error)
	TransferFrom(ctx context.Context, from, to Address, amount Amount) (bool, error)
}

// TokenDirectory resolves a token identity to a client acting for caller.
type TokenDirectory interface {
	Client(ctx context.Context, token, caller Address) (TokenService, error)
}

// EventPublisher defines the contract for emitting notifications. Publishing
// happens inside the caller's frame.
type EventPublisher interface {
	Publish(ctx context.Context, n Notification) error
}

// TransitionValidator applies a lifecycle event to a status.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}
