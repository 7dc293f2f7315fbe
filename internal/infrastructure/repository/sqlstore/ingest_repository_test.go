package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

func newRepoWithMock(t *testing.T, dialect Dialect) (*IngestRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewIngestRepository(db, dialect), mock, func() { _ = db.Close() }
}

func TestDialectForDSN(t *testing.T) {
	cases := map[string]Dialect{
		"postgres://u:p@localhost:5432/intake":   DialectPostgres,
		"POSTGRESQL://localhost/intake":          DialectPostgres,
		"chroma_db/ledger.db":                    DialectSQLite,
		"file:ledger.db?_pragma=busy_timeout(1)": DialectSQLite,
	}
	for dsn, want := range cases {
		if got := DialectForDSN(dsn); got != want {
			t.Fatalf("DialectForDSN(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestRebindPostgresPlaceholders(t *testing.T) {
	repo := NewIngestRepository(nil, DialectPostgres)
	if got := repo.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Fatalf("unexpected rebind: %q", got)
	}
	sqliteRepo := NewIngestRepository(nil, DialectSQLite)
	if got := sqliteRepo.rebind("a = ?"); got != "a = ?" {
		t.Fatalf("sqlite query must stay unchanged, got %q", got)
	}
}

func TestCreateInsertsRecord(t *testing.T) {
	repo, mock, done := newRepoWithMock(t, DialectPostgres)
	defer done()

	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO ingest_records .* VALUES \(\$1,\$2,\$3,\$4,\$5,\$6,\$7,\$8\)`).
		WithArgs("rec-1", "data/a.pdf", string(domain.IngestStatusProcessing), 0, 0, "", now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &domain.IngestRecord{
		ID:         "rec-1",
		SourcePath: "data/a.pdf",
		Status:     domain.IngestStatusProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFinishReturnsNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t, DialectPostgres)
	defer done()

	mock.ExpectExec("UPDATE ingest_records").
		WithArgs(string(domain.IngestStatusReady), 2, 5, "", sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Finish(context.Background(), &domain.IngestRecord{
		ID:         "missing",
		Status:     domain.IngestStatusReady,
		Pages:      2,
		ChunkCount: 5,
		UpdatedAt:  time.Now().UTC(),
	})
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListScansRows(t *testing.T) {
	repo, mock, done := newRepoWithMock(t, DialectSQLite)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "source_path", "status", "pages", "chunk_count", "error_message", "created_at", "updated_at"}).
		AddRow("rec-2", "data/b.pdf", "failed", 0, 0, "extract source: boom", now, now).
		AddRow("rec-1", "data/a.pdf", "ready", 3, 7, "", now, now)
	mock.ExpectQuery("SELECT id, source_path, status").WithArgs(10).WillReturnRows(rows)

	records, err := repo.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Status != domain.IngestStatusFailed || records[0].Error != "extract source: boom" {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[1].ChunkCount != 7 || records[1].Pages != 3 {
		t.Fatalf("unexpected second record: %+v", records[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLiteLedgerLifecycle(t *testing.T) {
	db, dialect, err := OpenDB(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	repo := NewIngestRepository(db, dialect)
	ctx := context.Background()
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	rec := &domain.IngestRecord{ID: "rec-1", SourcePath: "data/a.pdf", Status: domain.IngestStatusProcessing, CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	rec.Status = domain.IngestStatusReady
	rec.Pages = 2
	rec.ChunkCount = 4
	if err := repo.Finish(ctx, rec); err != nil {
		t.Fatalf("finish: %v", err)
	}

	records, err := repo.List(ctx, 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Status != domain.IngestStatusReady || records[0].ChunkCount != 4 {
		t.Fatalf("unexpected records: %+v", records)
	}
}
