package river

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"
)

const (
	DefaultMaxWorkers  = 2
	DefaultMaxAttempts = 5
	DefaultJobTimeout  = 30 * time.Second
)

// Options tunes the notification queue. Zero values select the defaults.
type Options struct {
	MaxWorkers  int
	MaxAttempts int
	JobTimeout  time.Duration
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = DefaultJobTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Migrate applies River's own schema (river_job, river_leader, ...). It is
// separate from the ledger's goose migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	migrator, err := rivermigrate.New(riversqlite.New(db), nil)
	if err != nil {
		return fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("running river migrations: %w", err)
	}
	return nil
}

// Setup migrates River's schema and returns a client with the notification
// worker registered. The caller starts the client and stops it on shutdown.
func Setup(ctx context.Context, db *sql.DB, opts Options) (*Client, error) {
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	workers := river.NewWorkers()
	river.AddWorker(workers, &NotificationWorker{Logger: opts.Logger})

	client, err := river.NewClient(riversqlite.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: opts.MaxWorkers},
		},
		Workers:     workers,
		MaxAttempts: opts.MaxAttempts,
		JobTimeout:  opts.JobTimeout,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}
	return client, nil
}
