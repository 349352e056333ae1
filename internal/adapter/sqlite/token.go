package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/neomorfeo/delayguard/internal/domain"
)

// Compile-time check: TokenLedger implements domain.TokenDirectory.
var _ domain.TokenDirectory = (*TokenLedger)(nil)

// TokenLedger is a fungible token with ERC-20 style balances and allowances,
// stored next to the policy ledger. Its writes join the caller's frame, so a
// premium pull or payout commits or rolls back together with the ledger call
// that made it.
type TokenLedger struct {
	db      *sql.DB
	address domain.Address
}

// NewTokenLedger returns the token identified by address, stored in db.
// The schema is created by Migrate.
func NewTokenLedger(db *sql.DB, address domain.Address) *TokenLedger {
	return &TokenLedger{db: db, address: address}
}

// Address returns the token's identity.
func (l *TokenLedger) Address() domain.Address { return l.address }

// Client returns a TokenService acting on behalf of caller.
func (l *TokenLedger) Client(_ context.Context, token, caller domain.Address) (domain.TokenService, error) {
	if token != l.address {
		return nil, fmt.Errorf("no token deployed at %s", token)
	}
	return &tokenClient{ledger: l, caller: caller}, nil
}

// Mint credits amount to holder.
func (l *TokenLedger) Mint(ctx context.Context, holder domain.Address, amount domain.Amount) error {
	return withinFrame(ctx, l.db, func(ctx context.Context) error {
		balance, err := l.BalanceOf(ctx, holder)
		if err != nil {
			return err
		}
		return l.setBalance(ctx, holder, balance.Add(amount))
	})
}

// Approve sets the amount spender may move out of owner's balance.
func (l *TokenLedger) Approve(ctx context.Context, owner, spender domain.Address, amount domain.Amount) error {
	_, err := conn(ctx, l.db).ExecContext(ctx,
		`INSERT INTO token_allowances (token, owner, spender, allowance) VALUES (?, ?, ?, ?)
		 ON CONFLICT (token, owner, spender) DO UPDATE SET allowance = excluded.allowance`,
		l.address, owner, spender, amount,
	)
	if err != nil {
		return fmt.Errorf("approving %s for %s: %w", spender, owner, err)
	}
	return nil
}

func (l *TokenLedger) BalanceOf(ctx context.Context, holder domain.Address) (domain.Amount, error) {
	var balance domain.Amount
	err := conn(ctx, l.db).QueryRowContext(ctx,
		`SELECT balance FROM token_balances WHERE token = ? AND holder = ?`, l.address, holder,
	).Scan(&balance)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.Amount{}, fmt.Errorf("reading balance of %s: %w", holder, err)
	}
	return balance, nil
}

func (l *TokenLedger) Allowance(ctx context.Context, owner, spender domain.Address) (domain.Amount, error) {
	var allowance domain.Amount
	err := conn(ctx, l.db).QueryRowContext(ctx,
		`SELECT allowance FROM token_allowances WHERE token = ? AND owner = ? AND spender = ?`,
		l.address, owner, spender,
	).Scan(&allowance)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.Amount{}, fmt.Errorf("reading allowance of %s for %s: %w", spender, owner, err)
	}
	return allowance, nil
}

// transfer moves amount from one holder to another. It reports false
// without writing anything when from cannot cover amount.
func (l *TokenLedger) transfer(ctx context.Context, from, to domain.Address, amount domain.Amount) (bool, error) {
	var ok bool
	err := withinFrame(ctx, l.db, func(ctx context.Context) error {
		fromBalance, err := l.BalanceOf(ctx, from)
		if err != nil {
			return err
		}
		if fromBalance.Cmp(amount) < 0 {
			return nil
		}
		if err := l.setBalance(ctx, from, fromBalance.Sub(amount)); err != nil {
			return err
		}
		toBalance, err := l.BalanceOf(ctx, to)
		if err != nil {
			return err
		}
		if err := l.setBalance(ctx, to, toBalance.Add(amount)); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return ok, err
}

func (l *TokenLedger) setBalance(ctx context.Context, holder domain.Address, balance domain.Amount) error {
	_, err := conn(ctx, l.db).ExecContext(ctx,
		`INSERT INTO token_balances (token, holder, balance) VALUES (?, ?, ?)
		 ON CONFLICT (token, holder) DO UPDATE SET balance = excluded.balance`,
		l.address, holder, balance,
	)
	if err != nil {
		return fmt.Errorf("writing balance of %s: %w", holder, err)
	}
	return nil
}

// tokenClient binds the token to the account whose authority it uses.
type tokenClient struct {
	ledger *TokenLedger
	caller domain.Address
}

func (c *tokenClient) BalanceOf(ctx context.Context, holder domain.Address) (domain.Amount, error) {
	return c.ledger.BalanceOf(ctx, holder)
}

func (c *tokenClient) Transfer(ctx context.Context, to domain.Address, amount domain.Amount) (bool, error) {
	return c.ledger.transfer(ctx, c.caller, to, amount)
}

// TransferFrom spends caller's allowance on from's balance.
func (c *tokenClient) TransferFrom(ctx context.Context, from, to domain.Address, amount domain.Amount) (bool, error) {
	var ok bool
	err := withinFrame(ctx, c.ledger.db, func(ctx context.Context) error {
		allowance, err := c.ledger.Allowance(ctx, from, c.caller)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return nil
		}
		moved, err := c.ledger.transfer(ctx, from, to, amount)
		if err != nil || !moved {
			return err
		}
		if err := c.ledger.Approve(ctx, from, c.caller, allowance.Sub(amount)); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return ok, err
}
