package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neomorfeo/delayguard/internal/domain"
)

// PolicyLedger orchestrates the policy lifecycle and its escrowed payouts.
//
// Calls run one at a time. A call made synchronously by a collaborator while
// another call is in progress (a token calling back into the ledger during a
// transfer) must pass on the context it was given; it then runs inline as a
// nested frame of the enclosing call.
type PolicyLedger struct {
	escrow    domain.Address
	repo      domain.LedgerRepository
	tokens    domain.TokenDirectory
	publisher domain.EventPublisher
	validator domain.TransitionValidator
	clock     domain.Clock
	logger    *slog.Logger

	mu sync.Mutex
	// claiming mirrors the stored lock for callers outside the frame.
	claiming atomic.Bool
}

// Option configures a PolicyLedger.
type Option func(*PolicyLedger)

// WithClock replaces the system clock.
func WithClock(c domain.Clock) Option {
	return func(l *PolicyLedger) { l.clock = c }
}

// WithLogger sets the logger for state-changing calls.
func WithLogger(logger *slog.Logger) Option {
	return func(l *PolicyLedger) { l.logger = logger }
}

// NewPolicyLedger creates a ledger whose escrowed funds are held by escrow.
func NewPolicyLedger(
	escrow domain.Address,
	repo domain.LedgerRepository,
	tokens domain.TokenDirectory,
	publisher domain.EventPublisher,
	validator domain.TransitionValidator,
	opts ...Option,
) *PolicyLedger {
	l := &PolicyLedger{
		escrow:    escrow,
		repo:      repo,
		tokens:    tokens,
		publisher: publisher,
		validator: validator,
		clock:     SystemClock{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Escrow returns the identity holding premiums and paying claims.
func (l *PolicyLedger) Escrow() domain.Address { return l.escrow }

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type callKey struct{}

// exec runs fn as one all-or-nothing call. Top-level calls are serialized;
// nested calls reuse the enclosing call's slot and frame.
func (l *PolicyLedger) exec(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(callKey{}) == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		ctx = context.WithValue(ctx, callKey{}, struct{}{})
	}
	return l.repo.WithinFrame(ctx, fn)
}

// config loads the configuration, failing when initialize has not run.
func (l *PolicyLedger) config(ctx context.Context) (domain.Config, error) {
	return l.repo.LoadConfig(ctx)
}

// adminConfig loads the configuration and checks caller is its admin.
func (l *PolicyLedger) adminConfig(ctx context.Context, caller domain.Address) (domain.Config, error) {
	cfg, err := l.config(ctx)
	if errors.Is(err, domain.ErrNotInitialized) {
		// Nobody holds the admin role yet.
		return domain.Config{}, domain.ErrUnauthorized
	}
	if err != nil {
		return domain.Config{}, err
	}
	if caller.IsZero() || caller != cfg.Admin {
		return domain.Config{}, domain.ErrUnauthorized
	}
	return cfg, nil
}

// token resolves the configured token acting on behalf of the escrow.
func (l *PolicyLedger) token(ctx context.Context, cfg domain.Config, op string) (domain.TokenService, error) {
	svc, err := l.tokens.Client(ctx, cfg.Token, l.escrow)
	if err != nil {
		return nil, &domain.TransferError{Op: op, Err: err}
	}
	return svc, nil
}

func (l *PolicyLedger) now() time.Time { return l.clock.Now() }
