package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/neomorfeo/delayguard/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time check: LedgerRepository implements domain.LedgerRepository.
var _ domain.LedgerRepository = (*LedgerRepository)(nil)

// LedgerRepository implements domain.LedgerRepository using SQLite.
type LedgerRepository struct {
	db *sql.DB
}

// Open opens a SQLite database with the pragmas the adapters rely on.
func Open(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := Configure(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Configure applies the connection limits and pragmas to a database opened
// elsewhere (e.g., through otelsql).
func Configure(db *sql.DB) error {
	// A frame holds its transaction across nested calls; one connection keeps
	// every query of a call on that transaction and keeps ":memory:" shared.
	// It also avoids SQLITE_BUSY with River sharing the database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}
	return nil
}

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*LedgerRepository, error) {
	db, err := Open(dataSourceName)
	if err != nil {
		return nil, err
	}

	repo, err := NewFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready repository.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*LedgerRepository, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}

	return &LedgerRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *LedgerRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (r *LedgerRepository) DB() *sql.DB {
	return r.db
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"

func (r *LedgerRepository) WithinFrame(ctx context.Context, fn func(ctx context.Context) error) error {
	return withinFrame(ctx, r.db, fn)
}

func (r *LedgerRepository) LoadConfig(ctx context.Context) (domain.Config, error) {
	var cfg domain.Config
	var lock uint8

	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT admin, token, premium_amount, payout_per_day, max_payout_days, next_policy_id, lock
		 FROM ledger_config WHERE id = 1`,
	).Scan(&cfg.Admin, &cfg.Token, &cfg.PremiumAmount, &cfg.PayoutPerDay,
		&cfg.MaxPayoutDays, &cfg.NextPolicyID, &lock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Config{}, domain.ErrNotInitialized
		}
		return domain.Config{}, fmt.Errorf("loading config: %w", err)
	}

	cfg.Lock = domain.Lock(lock)
	return cfg, nil
}

func (r *LedgerRepository) SaveConfig(ctx context.Context, cfg domain.Config) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO ledger_config (id, admin, token, premium_amount, payout_per_day, max_payout_days, next_policy_id, lock)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   admin = excluded.admin,
		   token = excluded.token,
		   premium_amount = excluded.premium_amount,
		   payout_per_day = excluded.payout_per_day,
		   max_payout_days = excluded.max_payout_days,
		   next_policy_id = excluded.next_policy_id,
		   lock = excluded.lock`,
		cfg.Admin, cfg.Token, cfg.PremiumAmount, cfg.PayoutPerDay,
		cfg.MaxPayoutDays, cfg.NextPolicyID, uint8(cfg.Lock),
	)
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}

const policyColumns = `id, insured, expected_arrival, actual_arrival, claimed_days, status, created_at, updated_at`

func (r *LedgerRepository) GetPolicy(ctx context.Context, id uint64) (domain.Policy, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE id = ?`, id,
	)
	p, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Policy{}, domain.ErrPolicyNotFound
		}
		return domain.Policy{}, fmt.Errorf("scanning policy: %w", err)
	}
	return p, nil
}

func (r *LedgerRepository) SavePolicy(ctx context.Context, p domain.Policy) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO policies (`+policyColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   insured = excluded.insured,
		   expected_arrival = excluded.expected_arrival,
		   actual_arrival = excluded.actual_arrival,
		   claimed_days = excluded.claimed_days,
		   status = excluded.status,
		   updated_at = excluded.updated_at`,
		p.ID, p.Insured, p.ExpectedArrival, p.ActualArrival, p.ClaimedDays, uint8(p.Status),
		p.CreatedAt.UTC().Format(timeFormat),
		p.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("saving policy %d: %w", p.ID, err)
	}
	return nil
}

func (r *LedgerRepository) ListPolicies(ctx context.Context, filter domain.ListFilter) ([]domain.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE 1 = 1`
	var args []any

	if filter.Insured != nil {
		query += ` AND insured = ?`
		args = append(args, *filter.Insured)
	}

	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, uint8(*filter.Status))
	}

	query += ` ORDER BY id ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite requires a LIMIT clause before OFFSET.
		query += ` LIMIT -1`
	}

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing policies: %w", err)
	}
	defer rows.Close()

	var policies []domain.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning policy row: %w", err)
		}
		policies = append(policies, p)
	}

	return policies, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPolicy(s scanner) (domain.Policy, error) {
	var p domain.Policy
	var status uint8
	var createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.Insured, &p.ExpectedArrival, &p.ActualArrival, &p.ClaimedDays,
		&status, &createdAt, &updatedAt)
	if err != nil {
		return domain.Policy{}, err
	}

	p.Status = domain.Status(status)
	p.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	p.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return p, nil
}
