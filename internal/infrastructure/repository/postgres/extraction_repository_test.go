package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*ExtractionRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewExtractionRepository(db), mock, func() { _ = db.Close() }
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(int64(2026101801)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS extractions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordInsertsRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	publishedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := domain.ExtractionRecord{
		ID:          "id-1",
		Bucket:      "bills",
		Key:         "k",
		ModelID:     "m",
		Endpoint:    "bills.extracted",
		Payload:     `{"amount":1}`,
		PublishedAt: publishedAt,
	}
	mock.ExpectExec("INSERT INTO extractions").
		WithArgs("id-1", "bills", "k", "m", "bills.extracted", `{"amount":1}`, publishedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordWrapsDriverError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	driverErr := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO extractions").WillReturnError(driverErr)

	err := repo.Record(context.Background(), domain.ExtractionRecord{ID: "x"})
	if !errors.Is(err, driverErr) {
		t.Fatalf("expected driver error, got %v", err)
	}
}

func TestLatestReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, bucket, object_key").
		WithArgs("bills", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Latest(context.Background(), "bills", "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLatestScansRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	publishedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "bucket", "object_key", "model_id", "endpoint", "payload", "published_at"}).
		AddRow("id-1", "bills", "k", "m", "bills.extracted", `{"amount":1}`, publishedAt)
	mock.ExpectQuery("SELECT id, bucket, object_key").
		WithArgs("bills", "k").
		WillReturnRows(rows)

	rec, err := repo.Latest(context.Background(), "bills", "k")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if rec.ID != "id-1" || rec.Payload != `{"amount":1}` || !rec.PublishedAt.Equal(publishedAt) {
		t.Fatalf("unexpected record %+v", rec)
	}
}
