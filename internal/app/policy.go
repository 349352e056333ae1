package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/neomorfeo/delayguard/internal/domain"
)

// ClaimReceipt describes a successful payout.
type ClaimReceipt struct {
	PolicyID    uint64
	Insured     domain.Address
	DaysClaimed uint64
	Amount      domain.Amount
	// ClaimedDays is the policy's running total after this claim.
	ClaimedDays uint64
	Status      domain.Status
}

// BuyPolicy collects the premium from caller and opens a policy covering a
// shipment expected at expectedArrival.
func (l *PolicyLedger) BuyPolicy(ctx context.Context, caller domain.Address, expectedArrival uint64) (uint64, error) {
	var id uint64
	err := l.exec(ctx, func(ctx context.Context) error {
		now := l.now()
		if expectedArrival > domain.MaxTimestamp {
			return &domain.ArgumentError{Argument: "expected_arrival", Reason: "out of range"}
		}
		if expectedArrival <= domain.Unix(now) {
			return &domain.ArgumentError{Argument: "expected_arrival", Reason: "must be in the future"}
		}
		if caller.IsZero() {
			return &domain.ArgumentError{Argument: "caller", Reason: "must not be the zero address"}
		}

		cfg, err := l.config(ctx)
		if err != nil {
			return err
		}

		const op = "premium transfer"
		token, err := l.token(ctx, cfg, op)
		if err != nil {
			return err
		}
		ok, err := token.TransferFrom(ctx, caller, l.escrow, cfg.PremiumAmount)
		if err != nil {
			return &domain.TransferError{Op: op, Err: err}
		}
		if !ok {
			return &domain.TransferError{Op: op}
		}

		// Reload: a nested call made during the transfer may have moved the counter.
		if cfg, err = l.config(ctx); err != nil {
			return err
		}
		id = cfg.NextPolicyID
		cfg.NextPolicyID++
		if err := l.repo.SaveConfig(ctx, cfg); err != nil {
			return fmt.Errorf("advancing policy id: %w", err)
		}

		if err := l.repo.SavePolicy(ctx, domain.NewPolicy(id, caller, expectedArrival, now)); err != nil {
			return fmt.Errorf("creating policy: %w", err)
		}

		if err := l.publisher.Publish(ctx, domain.PolicyPurchased(id, caller)); err != nil {
			return fmt.Errorf("publishing purchase: %w", err)
		}

		l.logger.InfoContext(ctx, "policy purchased",
			"policy_id", id,
			"insured", caller,
			"expected_arrival", expectedArrival,
			"premium", cfg.PremiumAmount,
		)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Claim pays caller for every whole delayed day accrued on the policy since
// the previous claim, up to the payout cap. Claims are guarded against
// reentry through the token transfer.
func (l *PolicyLedger) Claim(ctx context.Context, caller domain.Address, policyID uint64) (ClaimReceipt, error) {
	// A claim arriving from outside the frame while another claim is paying
	// out would queue behind it forever; reject it like a nested one.
	if ctx.Value(callKey{}) == nil && l.claiming.Load() {
		return ClaimReceipt{}, domain.ErrReentrancy
	}

	var receipt ClaimReceipt
	err := l.exec(ctx, func(ctx context.Context) error {
		return l.nonReentrant(ctx, func(ctx context.Context) error {
			r, err := l.claim(ctx, caller, policyID)
			receipt = r
			return err
		})
	})
	if err != nil {
		return ClaimReceipt{}, err
	}
	return receipt, nil
}

func (l *PolicyLedger) claim(ctx context.Context, caller domain.Address, policyID uint64) (ClaimReceipt, error) {
	p, err := l.repo.GetPolicy(ctx, policyID)
	if err != nil && !errors.Is(err, domain.ErrPolicyNotFound) {
		return ClaimReceipt{}, err
	}
	if caller.IsZero() || p.Insured != caller {
		return ClaimReceipt{}, domain.ErrUnauthorized
	}
	if !p.Status.Claimable() {
		return ClaimReceipt{}, &domain.StateError{PolicyID: policyID, Status: p.Status}
	}

	cfg, err := l.config(ctx)
	if err != nil {
		return ClaimReceipt{}, err
	}

	capped := p.CappedDays(domain.Unix(l.now()), cfg.MaxPayoutDays)
	if capped <= p.ClaimedDays {
		return ClaimReceipt{}, domain.ErrNothingToClaim
	}
	days := capped - p.ClaimedDays
	payout := domain.PayoutFor(days, cfg.PayoutPerDay)

	const op = "payout transfer"
	token, err := l.token(ctx, cfg, op)
	if err != nil {
		return ClaimReceipt{}, err
	}
	balance, err := token.BalanceOf(ctx, l.escrow)
	if err != nil {
		return ClaimReceipt{}, &domain.TransferError{Op: "balance query", Err: err}
	}
	if balance.Cmp(payout) < 0 {
		return ClaimReceipt{}, fmt.Errorf("%w: escrow holds %s, payout is %s", domain.ErrInsufficientFunds, balance, payout)
	}

	// Commit the claim before paying out. A failing transfer fails the call,
	// which discards this write with everything else in the frame.
	p.ClaimedDays = capped
	if capped >= cfg.MaxPayoutDays {
		if p, err = l.transition(ctx, p, domain.EventExhaust); err != nil {
			return ClaimReceipt{}, err
		}
	} else {
		p.UpdatedAt = l.now()
		if err := l.repo.SavePolicy(ctx, p); err != nil {
			return ClaimReceipt{}, fmt.Errorf("recording claim: %w", err)
		}
	}

	ok, err := token.Transfer(ctx, p.Insured, payout)
	if err != nil {
		return ClaimReceipt{}, &domain.TransferError{Op: op, Err: err}
	}
	if !ok {
		return ClaimReceipt{}, &domain.TransferError{Op: op}
	}

	if err := l.publisher.Publish(ctx, domain.Claimed(policyID, p.Insured, days, payout)); err != nil {
		return ClaimReceipt{}, fmt.Errorf("publishing claim: %w", err)
	}

	l.logger.InfoContext(ctx, "claim paid",
		"policy_id", policyID,
		"insured", p.Insured,
		"days", days,
		"amount", payout,
		"claimed_days", p.ClaimedDays,
		"status", p.Status,
	)

	return ClaimReceipt{
		PolicyID:    policyID,
		Insured:     p.Insured,
		DaysClaimed: days,
		Amount:      payout,
		ClaimedDays: p.ClaimedDays,
		Status:      p.Status,
	}, nil
}

// nonReentrant holds the stored lock for the duration of fn. Entering while
// the lock is busy fails with ErrReentrancy. The lock is released on every
// exit path after a successful acquire; on failure the enclosing frame
// discards the release together with the acquire.
func (l *PolicyLedger) nonReentrant(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	cfg, err := l.config(ctx)
	if err != nil {
		return err
	}
	if cfg.Lock != domain.LockIdle {
		return domain.ErrReentrancy
	}
	cfg.Lock = domain.LockBusy
	if err := l.repo.SaveConfig(ctx, cfg); err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}

	l.claiming.Store(true)
	defer l.claiming.Store(false)
	defer func() {
		if relErr := l.release(ctx); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()

	return fn(ctx)
}

func (l *PolicyLedger) release(ctx context.Context) error {
	cfg, err := l.config(ctx)
	if err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	cfg.Lock = domain.LockIdle
	if err := l.repo.SaveConfig(ctx, cfg); err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}
