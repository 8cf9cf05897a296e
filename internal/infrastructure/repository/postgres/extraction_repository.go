package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
)

// ExtractionRepository keeps an append-only log of published extractions.
type ExtractionRepository struct {
	db *sql.DB
}

func NewExtractionRepository(db *sql.DB) *ExtractionRepository {
	return &ExtractionRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ExtractionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS extractions (
	id TEXT PRIMARY KEY,
	bucket TEXT NOT NULL,
	object_key TEXT NOT NULL,
	model_id TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	payload TEXT NOT NULL,
	published_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_extractions_location ON extractions(bucket, object_key);
CREATE INDEX IF NOT EXISTS idx_extractions_published_at ON extractions(published_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ExtractionRepository) Record(ctx context.Context, rec domain.ExtractionRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO extractions (id, bucket, object_key, model_id, endpoint, payload, published_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING
`,
		rec.ID, rec.Bucket, rec.Key, rec.ModelID, rec.Endpoint, rec.Payload, rec.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert extraction: %w", err)
	}
	return nil
}

// Latest returns the most recent extraction recorded for bucket/key.
func (r *ExtractionRepository) Latest(ctx context.Context, bucket, key string) (*domain.ExtractionRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, bucket, object_key, model_id, endpoint, payload, published_at
FROM extractions
WHERE bucket = $1 AND object_key = $2
ORDER BY published_at DESC
LIMIT 1
`, bucket, key)

	var rec domain.ExtractionRecord
	err := row.Scan(&rec.ID, &rec.Bucket, &rec.Key, &rec.ModelID, &rec.Endpoint, &rec.Payload, &rec.PublishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "latest extraction", fmt.Errorf("%s/%s", bucket, key))
		}
		return nil, fmt.Errorf("scan extraction: %w", err)
	}
	return &rec, nil
}
