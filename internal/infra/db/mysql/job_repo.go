package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/analysis"
)

const schema = `
CREATE TABLE IF NOT EXISTS analysis_jobs (
  id                VARCHAR(191) NOT NULL PRIMARY KEY,
  upload_id         VARCHAR(191) NOT NULL,
  status            VARCHAR(32)  NOT NULL,
  total_blocks      INT          NOT NULL DEFAULT 0,
  processed_blocks  INT          NOT NULL DEFAULT 0,
  analysis_filename VARCHAR(255) NOT NULL DEFAULT '',
  callback_url      TEXT         NOT NULL,
  created_at        DATETIME(6)  NOT NULL,
  updated_at        DATETIME(6)  NOT NULL,
  KEY idx_analysis_jobs_upload (upload_id)
);`

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Migrate creates the analysis_jobs table when missing
func (r *JobRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Save insert/update Job record
func (r *JobRepository) Save(ctx context.Context, j *domain.Job) error {
	const q = `
INSERT INTO analysis_jobs
(id, upload_id, status, total_blocks, processed_blocks, analysis_filename, callback_url, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 status=VALUES(status),
 processed_blocks=VALUES(processed_blocks),
 analysis_filename=VALUES(analysis_filename),
 updated_at=VALUES(updated_at);
`
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
	const q = `UPDATE analysis_jobs SET status=?, processed_blocks=?, updated_at=? WHERE id=?;`
	res, err := r.db.ExecContext(ctx, q, status, processed, time.Now(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 when values are unchanged, so confirm the row exists
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM analysis_jobs WHERE id=? LIMIT 1;`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrJobNotFound
		}
		return err
	}
	return nil
}

// Get by ID
func (r *JobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	const q = `
SELECT id, upload_id, status, total_blocks, processed_blocks, analysis_filename, callback_url, created_at, updated_at
FROM analysis_jobs
WHERE id=? LIMIT 1;
`
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
