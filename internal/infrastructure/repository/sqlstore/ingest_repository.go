package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// IngestRepository is the ingestion ledger: one row per source file processed by
// the batch job.
type IngestRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewIngestRepository(db *sql.DB, dialect Dialect) *IngestRepository {
	return &IngestRepository{db: db, dialect: dialect}
}

// DialectForDSN treats postgres:// URLs as Postgres and anything else as a
// SQLite file path.
func DialectForDSN(dsn string) Dialect {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

func OpenDB(dsn string) (*sql.DB, Dialect, error) {
	dialect := DialectForDSN(dsn)
	driver := "pgx"
	if dialect == DialectSQLite {
		driver = "sqlite"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("sql open: %w", err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("db ping: %w", err)
	}
	return db, dialect, nil
}

func (r *IngestRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	timeType := "TEXT"
	if r.dialect == DialectPostgres {
		// Serialize bootstrap DDL across concurrent ingest runs.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}
		timeType = "TIMESTAMPTZ"
	} else {
		timeType = "DATETIME"
	}

	query := `
CREATE TABLE IF NOT EXISTS ingest_records (
	id TEXT PRIMARY KEY,
	source_path TEXT NOT NULL,
	status TEXT NOT NULL,
	pages INTEGER NOT NULL DEFAULT 0,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at ` + timeType + ` NOT NULL,
	updated_at ` + timeType + ` NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingest_records_status ON ingest_records(status);
CREATE INDEX IF NOT EXISTS idx_ingest_records_created_at ON ingest_records(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *IngestRepository) Create(ctx context.Context, rec *domain.IngestRecord) error {
	_, err := r.db.ExecContext(ctx, r.rebind(`
INSERT INTO ingest_records (
	id, source_path, status, pages, chunk_count, error_message, created_at, updated_at
) VALUES (?,?,?,?,?,?,?,?)
`),
		rec.ID, rec.SourcePath, string(rec.Status), rec.Pages, rec.ChunkCount, rec.Error, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ingest record: %w", err)
	}
	return nil
}

func (r *IngestRepository) Finish(ctx context.Context, rec *domain.IngestRecord) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`
UPDATE ingest_records
SET status = ?, pages = ?, chunk_count = ?, error_message = ?, updated_at = ?
WHERE id = ?
`), string(rec.Status), rec.Pages, rec.ChunkCount, rec.Error, rec.UpdatedAt, rec.ID)
	if err != nil {
		return fmt.Errorf("update ingest record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ingest record rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "finish ingest record", fmt.Errorf("id %s", rec.ID))
	}
	return nil
}

func (r *IngestRepository) List(ctx context.Context, limit int) ([]domain.IngestRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, r.rebind(`
SELECT id, source_path, status, pages, chunk_count, error_message, created_at, updated_at
FROM ingest_records
ORDER BY created_at DESC
LIMIT ?
`), limit)
	if err != nil {
		return nil, fmt.Errorf("list ingest records: %w", err)
	}
	defer rows.Close()

	var out []domain.IngestRecord
	for rows.Next() {
		var rec domain.IngestRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.SourcePath, &status, &rec.Pages, &rec.ChunkCount, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ingest record: %w", err)
		}
		rec.Status = domain.IngestStatus(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingest records: %w", err)
	}
	return out, nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (r *IngestRepository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
