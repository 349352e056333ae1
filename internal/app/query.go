package app

import (
	"context"
	"errors"

	"github.com/neomorfeo/delayguard/internal/domain"
)

// Config returns the current configuration. Before initialization every
// field is zero.
func (l *PolicyLedger) Config(ctx context.Context) (domain.Config, error) {
	var cfg domain.Config
	err := l.exec(ctx, func(ctx context.Context) error {
		var err error
		cfg, err = l.config(ctx)
		if errors.Is(err, domain.ErrNotInitialized) {
			cfg, err = domain.Config{}, nil
		}
		return err
	})
	return cfg, err
}

func (l *PolicyLedger) Admin(ctx context.Context) (domain.Address, error) {
	cfg, err := l.Config(ctx)
	return cfg.Admin, err
}

func (l *PolicyLedger) Token(ctx context.Context) (domain.Address, error) {
	cfg, err := l.Config(ctx)
	return cfg.Token, err
}

func (l *PolicyLedger) PremiumAmount(ctx context.Context) (domain.Amount, error) {
	cfg, err := l.Config(ctx)
	return cfg.PremiumAmount, err
}

func (l *PolicyLedger) PayoutPerDay(ctx context.Context) (domain.Amount, error) {
	cfg, err := l.Config(ctx)
	return cfg.PayoutPerDay, err
}

func (l *PolicyLedger) MaxPayoutDays(ctx context.Context) (uint64, error) {
	cfg, err := l.Config(ctx)
	return cfg.MaxPayoutDays, err
}

func (l *PolicyLedger) NextPolicyID(ctx context.Context) (uint64, error) {
	cfg, err := l.Config(ctx)
	return cfg.NextPolicyID, err
}

// GetPolicy returns a purchased policy.
func (l *PolicyLedger) GetPolicy(ctx context.Context, id uint64) (domain.Policy, error) {
	var p domain.Policy
	err := l.exec(ctx, func(ctx context.Context) error {
		var err error
		p, err = l.existingPolicy(ctx, id)
		return err
	})
	return p, err
}

// ListPolicies returns policies matching the given filter.
func (l *PolicyLedger) ListPolicies(ctx context.Context, filter domain.ListFilter) ([]domain.Policy, error) {
	var out []domain.Policy
	err := l.exec(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.repo.ListPolicies(ctx, filter)
		return err
	})
	return out, err
}

// ClaimableDays returns how many days a claim would pay right now. It never
// fails for a policy that cannot claim; it reports zero instead.
func (l *PolicyLedger) ClaimableDays(ctx context.Context, id uint64) (uint64, error) {
	var days uint64
	err := l.exec(ctx, func(ctx context.Context) error {
		p, err := l.repo.GetPolicy(ctx, id)
		if errors.Is(err, domain.ErrPolicyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cfg, err := l.config(ctx)
		if errors.Is(err, domain.ErrNotInitialized) {
			return nil
		}
		if err != nil {
			return err
		}
		days = p.ClaimableDays(domain.Unix(l.now()), cfg.MaxPayoutDays)
		return nil
	})
	return days, err
}

// ClaimableAmount prices ClaimableDays at the current payout rate. Both are
// read in one call.
func (l *PolicyLedger) ClaimableAmount(ctx context.Context, id uint64) (uint64, domain.Amount, error) {
	var days uint64
	var amount domain.Amount
	err := l.exec(ctx, func(ctx context.Context) error {
		var err error
		if days, err = l.ClaimableDays(ctx, id); err != nil {
			return err
		}
		perDay, err := l.PayoutPerDay(ctx)
		if err != nil {
			return err
		}
		amount = domain.PayoutFor(days, perDay)
		return nil
	})
	if err != nil {
		return 0, domain.Amount{}, err
	}
	return days, amount, nil
}

// EscrowBalance reports the token balance held by the escrow.
func (l *PolicyLedger) EscrowBalance(ctx context.Context) (domain.Amount, error) {
	var balance domain.Amount
	err := l.exec(ctx, func(ctx context.Context) error {
		cfg, err := l.config(ctx)
		if err != nil {
			return err
		}
		token, err := l.token(ctx, cfg, "balance query")
		if err != nil {
			return err
		}
		if balance, err = token.BalanceOf(ctx, l.escrow); err != nil {
			return &domain.TransferError{Op: "balance query", Err: err}
		}
		return nil
	})
	return balance, err
}
