package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

// Dialect selects SQL driver and placeholder style.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS monthly_metrics (
    district_code               TEXT NOT NULL,
    month                       TEXT NOT NULL,
    job_cards_issued            BIGINT NOT NULL,
    active_workers              BIGINT NOT NULL,
    person_days_generated       BIGINT NOT NULL,
    average_days_per_household  DOUBLE PRECISION NOT NULL,
    works_completed             BIGINT NOT NULL,
    works_ongoing               BIGINT NOT NULL,
    expenditure_crores          DOUBLE PRECISION NOT NULL,
    women_participation_percent DOUBLE PRECISION NOT NULL,
    sc_st_participation_percent DOUBLE PRECISION NOT NULL,
    ingested_at                 BIGINT NOT NULL,
    PRIMARY KEY (district_code, month)
)`

const columns = `district_code, month, job_cards_issued, active_workers, person_days_generated,
    average_days_per_household, works_completed, works_ongoing, expenditure_crores,
    women_participation_percent, sc_st_participation_percent, ingested_at`

// The WHERE clause on the update keeps an older ingestion from replacing a newer one.
const upsertSQL = `INSERT INTO monthly_metrics (` + columns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (district_code, month) DO UPDATE SET
    job_cards_issued            = excluded.job_cards_issued,
    active_workers              = excluded.active_workers,
    person_days_generated       = excluded.person_days_generated,
    average_days_per_household  = excluded.average_days_per_household,
    works_completed             = excluded.works_completed,
    works_ongoing               = excluded.works_ongoing,
    expenditure_crores          = excluded.expenditure_crores,
    women_participation_percent = excluded.women_participation_percent,
    sc_st_participation_percent = excluded.sc_st_participation_percent,
    ingested_at                 = excluded.ingested_at
WHERE excluded.ingested_at >= monthly_metrics.ingested_at`

const (
	getSQL    = `SELECT ` + columns + ` FROM monthly_metrics WHERE district_code = $1 AND month = $2`
	latestSQL = `SELECT ` + columns + ` FROM monthly_metrics WHERE district_code = $1 ORDER BY month DESC LIMIT 1`
	rangeSQL  = `SELECT ` + columns + ` FROM monthly_metrics WHERE district_code = $1 AND month >= $2 AND month <= $3 ORDER BY month ASC`
	recentSQL = `SELECT ` + columns + ` FROM monthly_metrics WHERE district_code = $1 ORDER BY month DESC LIMIT $2`
)

var placeholderRe = regexp.MustCompile(`\$\d+`)

// SQLBackend stores metrics in Postgres or SQLite. Months are stored as
// "YYYY-MM" text so lexical order is chronological; ingestion timestamps as
// Unix nanoseconds.
type SQLBackend struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL opens the database, applies the schema and returns the backend.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLBackend, error) {
	driver := string(dialect)
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported SQL dialect %q", dialect)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// Single writer; also keeps ":memory:" databases on one connection.
		db.SetMaxOpenConns(1)
	}
	b, err := NewSQLBackend(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// NewSQLBackend wraps an open database and creates the schema if needed.
func NewSQLBackend(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLBackend, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLBackend{db: db, dialect: dialect}, nil
}

func (b *SQLBackend) query(q string) string {
	if b.dialect == DialectSQLite {
		return placeholderRe.ReplaceAllString(q, "?")
	}
	return q
}

func (b *SQLBackend) Get(ctx context.Context, code string, month domain.Month) (domain.MonthlyMetric, error) {
	row := b.db.QueryRowContext(ctx, b.query(getSQL), code, month.String())
	return scanOne(row)
}

func (b *SQLBackend) Latest(ctx context.Context, code string) (domain.MonthlyMetric, error) {
	row := b.db.QueryRowContext(ctx, b.query(latestSQL), code)
	return scanOne(row)
}

func (b *SQLBackend) Range(ctx context.Context, code string, from, to domain.Month) ([]domain.MonthlyMetric, error) {
	rows, err := b.db.QueryContext(ctx, b.query(rangeSQL), code, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	return scanAll(rows)
}

func (b *SQLBackend) Recent(ctx context.Context, code string, n int) ([]domain.MonthlyMetric, error) {
	rows, err := b.db.QueryContext(ctx, b.query(recentSQL), code, n)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	out, err := scanAll(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (b *SQLBackend) Put(ctx context.Context, m domain.MonthlyMetric) error {
	_, err := b.db.ExecContext(ctx, b.query(upsertSQL),
		m.DistrictCode,
		m.Month.String(),
		m.JobCardsIssued,
		m.ActiveWorkers,
		m.PersonDaysGenerated,
		m.AverageDaysPerHousehold,
		m.WorksCompleted,
		m.WorksOngoing,
		m.ExpenditureCrores,
		m.WomenParticipationPercent,
		m.ScStParticipationPercent,
		m.IngestedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert metric: %w", err)
	}
	return nil
}

func (b *SQLBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *SQLBackend) Close() error {
	return b.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMetric(s scanner) (domain.MonthlyMetric, error) {
	var (
		m        domain.MonthlyMetric
		month    string
		ingested int64
	)
	err := s.Scan(
		&m.DistrictCode,
		&month,
		&m.JobCardsIssued,
		&m.ActiveWorkers,
		&m.PersonDaysGenerated,
		&m.AverageDaysPerHousehold,
		&m.WorksCompleted,
		&m.WorksOngoing,
		&m.ExpenditureCrores,
		&m.WomenParticipationPercent,
		&m.ScStParticipationPercent,
		&ingested,
	)
	if err != nil {
		return domain.MonthlyMetric{}, err
	}
	if m.Month, err = domain.ParseMonth(month); err != nil {
		return domain.MonthlyMetric{}, err
	}
	m.IngestedAt = time.Unix(0, ingested).UTC()
	return m, nil
}

func scanOne(row *sql.Row) (domain.MonthlyMetric, error) {
	m, err := scanMetric(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MonthlyMetric{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.MonthlyMetric{}, fmt.Errorf("scan metric: %w", err)
	}
	return m, nil
}

func scanAll(rows *sql.Rows) ([]domain.MonthlyMetric, error) {
	defer rows.Close()

	var out []domain.MonthlyMetric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}
	return out, nil
}
