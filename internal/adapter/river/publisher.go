package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/delayguard/internal/adapter/sqlite"
	"github.com/neomorfeo/delayguard/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// NotificationJobArgs carries a ledger notification to the worker. River
// serializes it as JSON into its job table; amounts and addresses travel as
// strings so no precision is lost.
type NotificationJobArgs struct {
	NotificationKind string `json:"kind"`
	PolicyID         uint64 `json:"policy_id"`
	Insured          string `json:"insured,omitempty"`
	Delivered        bool   `json:"delivered,omitempty"`
	Delayed          bool   `json:"delayed,omitempty"`
	ActualArrival    uint64 `json:"actual_arrival,omitempty"`
	DaysClaimed      uint64 `json:"days_claimed,omitempty"`
	Amount           string `json:"amount,omitempty"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (NotificationJobArgs) Kind() string { return "notification.published" }

// NewNotificationJobArgs flattens n into job arguments.
func NewNotificationJobArgs(n domain.Notification) NotificationJobArgs {
	args := NotificationJobArgs{
		NotificationKind: string(n.Kind),
		PolicyID:         n.PolicyID,
		Delivered:        n.Delivered,
		Delayed:          n.Delayed,
		ActualArrival:    n.ActualArrival,
		DaysClaimed:      n.DaysClaimed,
	}
	if !n.Insured.IsZero() {
		args.Insured = n.Insured.String()
	}
	if n.Kind == domain.NotificationClaimed {
		args.Amount = n.Amount.String()
	}
	return args
}

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues n as an async job. Inside a ledger frame the job is
// inserted in the frame's transaction, so it exists only if the call that
// produced it commits.
func (p *Publisher) Publish(ctx context.Context, n domain.Notification) error {
	args := NewNotificationJobArgs(n)

	var err error
	if tx, ok := sqlite.TxFromContext(ctx); ok {
		_, err = p.client.InsertTx(ctx, tx, args, nil)
	} else {
		_, err = p.client.Insert(ctx, args, nil)
	}
	if err != nil {
		return fmt.Errorf("enqueuing %s notification: %w", n.Kind, err)
	}
	return nil
}
