package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/analysis"
)

const schema = `
CREATE TABLE IF NOT EXISTS analysis_jobs (
  id                TEXT PRIMARY KEY,
  upload_id         TEXT        NOT NULL,
  status            TEXT        NOT NULL,
  total_blocks      INTEGER     NOT NULL DEFAULT 0,
  processed_blocks  INTEGER     NOT NULL DEFAULT 0,
  analysis_filename TEXT        NOT NULL DEFAULT '',
  callback_url      TEXT        NOT NULL,
  created_at        TIMESTAMPTZ NOT NULL,
  updated_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_jobs_upload ON analysis_jobs (upload_id);`

type JobRepository struct{ db *sql.DB }

func NewJobRepository(db *sql.DB) *JobRepository { return &JobRepository{db: db} }

func (r *JobRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Save insert/update Job record
func (r *JobRepository) Save(ctx context.Context, j *domain.Job) error {
	const q = `
INSERT INTO analysis_jobs
(id, upload_id, status, total_blocks, processed_blocks, analysis_filename, callback_url, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
 status = EXCLUDED.status,
 processed_blocks = EXCLUDED.processed_blocks,
 analysis_filename = EXCLUDED.analysis_filename,
 updated_at = EXCLUDED.updated_at;`

	created := j.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := j.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	_, err := r.db.ExecContext(ctx, q,
		j.ID, j.UploadID, j.Status, j.TotalBlocks, j.ProcessedBlocks,
		j.AnalysisFilename, j.CallbackURL, created, updated,
	)
	return err
}

func (r *JobRepository) UpdateProgress(ctx context.Context, id domain.JobID, status domain.Status, processed int) error {
	const q = `UPDATE analysis_jobs SET status=$1, processed_blocks=$2, updated_at=$3 WHERE id=$4;`
	res, err := r.db.ExecContext(ctx, q, status, processed, time.Now(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// Get by ID
func (r *JobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	const q = `
SELECT id, upload_id, status, total_blocks, processed_blocks, analysis_filename, callback_url, created_at, updated_at
FROM analysis_jobs
WHERE id=$1
LIMIT 1;`
	var j domain.Job
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&j.ID, &j.UploadID, &j.Status, &j.TotalBlocks, &j.ProcessedBlocks,
		&j.AnalysisFilename, &j.CallbackURL, &j.CreatedAt, &j.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}
