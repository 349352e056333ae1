package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/delayguard/internal/domain"
)

// NotificationWorker delivers ledger notifications. Delivery is a structured
// log line; downstream consumers tail it.
type NotificationWorker struct {
	river.WorkerDefaults[NotificationJobArgs]

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Work processes a single notification job.
func (w *NotificationWorker) Work(ctx context.Context, job *river.Job[NotificationJobArgs]) error {
	args := job.Args
	attrs := []any{
		"kind", args.NotificationKind,
		"policy_id", args.PolicyID,
		"job_id", job.ID,
		"attempt", job.Attempt,
	}

	switch domain.NotificationKind(args.NotificationKind) {
	case domain.NotificationPolicyPurchased:
		attrs = append(attrs, "insured", args.Insured)
	case domain.NotificationDeliveryUpdated:
		attrs = append(attrs, "delivered", args.Delivered, "actual_arrival", args.ActualArrival)
	case domain.NotificationDelayStatusSet:
		attrs = append(attrs, "delayed", args.Delayed)
	case domain.NotificationClaimed:
		attrs = append(attrs, "insured", args.Insured, "days", args.DaysClaimed, "amount", args.Amount)
	}

	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "ledger notification", attrs...)
	return nil
}
