package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/neomorfeo/delayguard/internal/domain"
)

// Initialize binds caller as administrator and token as the escrow asset,
// and writes the default pricing. It can run only once.
func (l *PolicyLedger) Initialize(ctx context.Context, caller, token domain.Address) error {
	return l.exec(ctx, func(ctx context.Context) error {
		cfg, err := l.config(ctx)
		if err == nil && cfg.Initialized() {
			return domain.ErrAlreadyInitialized
		}
		if err != nil && !errors.Is(err, domain.ErrNotInitialized) {
			return err
		}
		if token.IsZero() {
			return &domain.ArgumentError{Argument: "token", Reason: "must not be the zero address"}
		}
		if caller.IsZero() {
			return &domain.ArgumentError{Argument: "caller", Reason: "must not be the zero address"}
		}

		if err := l.repo.SaveConfig(ctx, domain.DefaultConfig(caller, token)); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		l.logger.InfoContext(ctx, "ledger initialized", "admin", caller, "token", token)
		return nil
	})
}

// SetPricing replaces the rate card. The new payout rate and cap apply to
// every future claim, including claims on existing policies.
func (l *PolicyLedger) SetPricing(ctx context.Context, caller domain.Address, pricing domain.Pricing) error {
	return l.exec(ctx, func(ctx context.Context) error {
		cfg, err := l.adminConfig(ctx, caller)
		if err != nil {
			return err
		}
		if pricing.MaxPayoutDays == 0 {
			return &domain.ArgumentError{Argument: "max_payout_days", Reason: "must be positive"}
		}

		cfg.PremiumAmount = pricing.Premium
		cfg.PayoutPerDay = pricing.PayoutPerDay
		cfg.MaxPayoutDays = pricing.MaxPayoutDays
		if err := l.repo.SaveConfig(ctx, cfg); err != nil {
			return fmt.Errorf("saving pricing: %w", err)
		}

		l.logger.InfoContext(ctx, "pricing updated",
			"premium", pricing.Premium,
			"payout_per_day", pricing.PayoutPerDay,
			"max_payout_days", pricing.MaxPayoutDays,
		)
		return nil
	})
}

// SetAdmin hands the administrator role to newAdmin.
func (l *PolicyLedger) SetAdmin(ctx context.Context, caller, newAdmin domain.Address) error {
	return l.exec(ctx, func(ctx context.Context) error {
		cfg, err := l.adminConfig(ctx, caller)
		if err != nil {
			return err
		}
		if newAdmin.IsZero() {
			return &domain.ArgumentError{Argument: "new_admin", Reason: "must not be the zero address"}
		}

		cfg.Admin = newAdmin
		if err := l.repo.SaveConfig(ctx, cfg); err != nil {
			return fmt.Errorf("saving admin: %w", err)
		}

		l.logger.InfoContext(ctx, "admin changed", "from", caller, "to", newAdmin)
		return nil
	})
}

// WithdrawTokens moves escrowed funds to the given account.
func (l *PolicyLedger) WithdrawTokens(ctx context.Context, caller, to domain.Address, amount domain.Amount) error {
	return l.exec(ctx, func(ctx context.Context) error {
		cfg, err := l.adminConfig(ctx, caller)
		if err != nil {
			return err
		}

		const op = "withdraw"
		token, err := l.token(ctx, cfg, op)
		if err != nil {
			return err
		}
		ok, err := token.Transfer(ctx, to, amount)
		if err != nil {
			return &domain.TransferError{Op: op, Err: err}
		}
		if !ok {
			return &domain.TransferError{Op: op}
		}

		l.logger.InfoContext(ctx, "escrow withdrawn", "to", to, "amount", amount)
		return nil
	})
}

// SetDelayedStatus records the administrator's report that a shipment is
// (or is no longer) delayed. The report overrides any current status.
func (l *PolicyLedger) SetDelayedStatus(ctx context.Context, caller domain.Address, policyID uint64, delayed bool) (domain.Policy, error) {
	var out domain.Policy
	err := l.exec(ctx, func(ctx context.Context) error {
		if _, err := l.adminConfig(ctx, caller); err != nil {
			return err
		}
		p, err := l.existingPolicy(ctx, policyID)
		if err != nil {
			return err
		}

		event := domain.EventClearDelay
		if delayed {
			event = domain.EventReportDelay
		}
		if p, err = l.transition(ctx, p, event); err != nil {
			return err
		}

		if err := l.publisher.Publish(ctx, domain.DelayStatusSet(policyID, delayed)); err != nil {
			return fmt.Errorf("publishing delay status: %w", err)
		}

		l.logger.InfoContext(ctx, "delay status set", "policy_id", policyID, "delayed", delayed)
		out = p
		return nil
	})
	return out, err
}

// SetDeliveryStatus records a delivery at actualArrival, or clears a prior
// delivery when delivered is false.
func (l *PolicyLedger) SetDeliveryStatus(ctx context.Context, caller domain.Address, policyID uint64, delivered bool, actualArrival uint64) (domain.Policy, error) {
	var out domain.Policy
	err := l.exec(ctx, func(ctx context.Context) error {
		if _, err := l.adminConfig(ctx, caller); err != nil {
			return err
		}
		p, err := l.existingPolicy(ctx, policyID)
		if err != nil {
			return err
		}

		event := domain.EventRevokeDelivery
		p.ActualArrival = 0
		if delivered {
			if actualArrival == 0 {
				return &domain.ArgumentError{Argument: "actual_arrival", Reason: "must not be zero"}
			}
			if actualArrival > domain.MaxTimestamp {
				return &domain.ArgumentError{Argument: "actual_arrival", Reason: "out of range"}
			}
			event = domain.EventConfirmDelivery
			p.ActualArrival = actualArrival
		}
		if p, err = l.transition(ctx, p, event); err != nil {
			return err
		}

		if err := l.publisher.Publish(ctx, domain.DeliveryUpdated(policyID, delivered, p.ActualArrival)); err != nil {
			return fmt.Errorf("publishing delivery update: %w", err)
		}

		l.logger.InfoContext(ctx, "delivery status set",
			"policy_id", policyID,
			"delivered", delivered,
			"actual_arrival", p.ActualArrival,
		)
		out = p
		return nil
	})
	return out, err
}

// existingPolicy loads a purchased policy or fails with ErrPolicyNotFound.
func (l *PolicyLedger) existingPolicy(ctx context.Context, id uint64) (domain.Policy, error) {
	p, err := l.repo.GetPolicy(ctx, id)
	if err != nil {
		return domain.Policy{}, err
	}
	if !p.Exists() {
		return domain.Policy{}, domain.ErrPolicyNotFound
	}
	return p, nil
}

// transition applies event to p and persists the result.
func (l *PolicyLedger) transition(ctx context.Context, p domain.Policy, event domain.Event) (domain.Policy, error) {
	status, err := l.validator.Apply(ctx, p.Status, event)
	if err != nil {
		return domain.Policy{}, err
	}

	p.Status = status
	p.UpdatedAt = l.now()
	if err := l.repo.SavePolicy(ctx, p); err != nil {
		return domain.Policy{}, fmt.Errorf("updating policy: %w", err)
	}
	return p, nil
}
