package otel

import (
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/neomorfeo/delayguard/internal/adapter/sqlite"
)

// spanOptions drop the per-row and session-reset spans; a claim touches few
// rows and River's polling would otherwise dominate the traces.
var spanOptions = otelsql.SpanOptions{
	DisableErrSkip:       true,
	OmitConnResetSession: true,
	OmitRows:             true,
}

// OpenDB opens the ledger database with every statement traced and pool
// statistics exported as metrics. The returned handle is configured like
// sqlite.Open.
func OpenDB(dataSourceName string) (*sql.DB, error) {
	attrs := otelsql.WithAttributes(semconv.DBSystemSqlite)

	db, err := otelsql.Open("sqlite", dataSourceName, attrs, otelsql.WithSpanOptions(spanOptions))
	if err != nil {
		return nil, fmt.Errorf("opening instrumented database: %w", err)
	}
	if err := sqlite.Configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := otelsql.RegisterDBStatsMetrics(db, attrs); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering db stats metrics: %w", err)
	}
	return db, nil
}
