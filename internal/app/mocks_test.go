package app_test

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/neomorfeo/delayguard/internal/domain"
)

// world is an in-memory ledger store, token and publisher sharing one
// snapshot, so a failed frame discards token movements and notifications
// along with ledger writes.
type world struct {
	state

	// Hooks run inside the token call, before any balance moves.
	onTransfer     func(ctx context.Context)
	onTransferFrom func(ctx context.Context)
	failTransfer   bool
	transferErr    error
}

type state struct {
	cfg        *domain.Config
	policies   map[uint64]domain.Policy
	balances   map[domain.Address]domain.Amount
	allowances map[[2]domain.Address]domain.Amount
	published  []domain.Notification
}

func newWorld() *world {
	return &world{state: state{
		policies:   make(map[uint64]domain.Policy),
		balances:   make(map[domain.Address]domain.Amount),
		allowances: make(map[[2]domain.Address]domain.Amount),
	}}
}

func (s state) clone() state {
	out := state{
		policies:   maps.Clone(s.policies),
		balances:   maps.Clone(s.balances),
		allowances: maps.Clone(s.allowances),
		published:  slices.Clone(s.published),
	}
	if s.cfg != nil {
		cfg := *s.cfg
		out.cfg = &cfg
	}
	return out
}

// --- LedgerRepository ---

func (w *world) WithinFrame(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := w.state.clone()
	if err := fn(ctx); err != nil {
		w.state = snapshot
		return err
	}
	return nil
}

func (w *world) LoadConfig(_ context.Context) (domain.Config, error) {
	if w.cfg == nil {
		return domain.Config{}, domain.ErrNotInitialized
	}
	return *w.cfg, nil
}

func (w *world) SaveConfig(_ context.Context, cfg domain.Config) error {
	w.cfg = &cfg
	return nil
}

func (w *world) GetPolicy(_ context.Context, id uint64) (domain.Policy, error) {
	p, ok := w.policies[id]
	if !ok {
		return domain.Policy{}, domain.ErrPolicyNotFound
	}
	return p, nil
}

func (w *world) SavePolicy(_ context.Context, p domain.Policy) error {
	w.policies[p.ID] = p
	return nil
}

func (w *world) ListPolicies(_ context.Context, filter domain.ListFilter) ([]domain.Policy, error) {
	var out []domain.Policy
	for _, id := range slices.Sorted(maps.Keys(w.policies)) {
		p := w.policies[id]
		if filter.Insured != nil && p.Insured != *filter.Insured {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		out = append(out, p)
	}
	out = out[min(filter.Offset, len(out)):]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// --- EventPublisher ---

func (w *world) Publish(_ context.Context, n domain.Notification) error {
	w.published = append(w.published, n)
	return nil
}

func (w *world) kinds() []domain.NotificationKind {
	out := make([]domain.NotificationKind, 0, len(w.published))
	for _, n := range w.published {
		out = append(out, n.Kind)
	}
	return out
}

// --- TokenDirectory / TokenService ---

var errUnknownToken = errors.New("unknown token")

func (w *world) Client(_ context.Context, token, caller domain.Address) (domain.TokenService, error) {
	if token != tokenAddr {
		return nil, errUnknownToken
	}
	return &tokenClient{world: w, caller: caller}, nil
}

func (w *world) fund(holder domain.Address, amount uint64) {
	w.balances[holder] = w.balances[holder].Add(domain.NewAmount(amount))
}

func (w *world) approve(owner, spender domain.Address, amount uint64) {
	w.allowances[[2]domain.Address{owner, spender}] = domain.NewAmount(amount)
}

func (w *world) balance(holder domain.Address) uint64 {
	return w.balances[holder].BigInt().Uint64()
}

func (w *world) move(from, to domain.Address, amount domain.Amount) bool {
	if w.balances[from].Cmp(amount) < 0 {
		return false
	}
	w.balances[from] = w.balances[from].Sub(amount)
	w.balances[to] = w.balances[to].Add(amount)
	return true
}

type tokenClient struct {
	world  *world
	caller domain.Address
}

func (c *tokenClient) BalanceOf(_ context.Context, holder domain.Address) (domain.Amount, error) {
	return c.world.balances[holder], nil
}

func (c *tokenClient) Transfer(ctx context.Context, to domain.Address, amount domain.Amount) (bool, error) {
	w := c.world
	if hook := w.onTransfer; hook != nil {
		w.onTransfer = nil
		hook(ctx)
	}
	if w.transferErr != nil {
		return false, w.transferErr
	}
	if w.failTransfer {
		return false, nil
	}
	return w.move(c.caller, to, amount), nil
}

func (c *tokenClient) TransferFrom(ctx context.Context, from, to domain.Address, amount domain.Amount) (bool, error) {
	w := c.world
	if hook := w.onTransferFrom; hook != nil {
		w.onTransferFrom = nil
		hook(ctx)
	}
	key := [2]domain.Address{from, c.caller}
	if w.allowances[key].Cmp(amount) < 0 {
		return false, nil
	}
	if !w.move(from, to, amount) {
		return false, nil
	}
	w.allowances[key] = w.allowances[key].Sub(amount)
	return true, nil
}

// --- Clock ---

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) at(unix uint64) { c.now = time.Unix(int64(unix), 0).UTC() }
