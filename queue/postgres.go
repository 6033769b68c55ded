package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jupark12/go-content-queue/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS content_jobs (
    id         TEXT PRIMARY KEY,
    kind       TEXT NOT NULL,
    status     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    document   JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS content_jobs_status_idx ON content_jobs (status, created_at);
`

const (
	insertJobSQL = `
INSERT INTO content_jobs (id, kind, status, created_at, updated_at, document)
VALUES ($1, $2, $3, $4, $5, $6)
`
	selectJobSQL = `SELECT document FROM content_jobs WHERE id = $1`

	lockJobSQL = `SELECT document FROM content_jobs WHERE id = $1 FOR UPDATE`

	updateJobSQL = `
UPDATE content_jobs SET status = $2, updated_at = $3, document = $4
WHERE id = $1
`
	listJobsSQL = `
SELECT document FROM content_jobs
WHERE ($1::text = '' OR status = $1::text)
ORDER BY created_at, id
`
)

// uniqueViolation is the PostgreSQL error code for a duplicate primary key.
const uniqueViolation = "23505"

// PostgresStore persists jobs as JSONB documents.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the jobs table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create content_jobs schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, job *models.Job) error {
	doc, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}

	_, err = s.pool.Exec(ctx, insertJobSQL, job.ID, string(job.Kind), string(job.Status), job.CreatedAt, job.UpdatedAt, doc)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("create job %s: %w", job.ID, ErrDuplicateJob)
		}
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Job, error) {
	var doc []byte
	if err := s.pool.QueryRow(ctx, selectJobSQL, id).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("select job %s: %w", id, err)
	}
	return decodeJob(doc)
}

func (s *PostgresStore) List(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx, listJobsSQL, string(status))
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*models.Job, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job, err := decodeJob(doc)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Update locks the row for the duration of fn.
func (s *PostgresStore) Update(ctx context.Context, id string, fn UpdateFunc) (*models.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update of job %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var doc []byte
	if err := tx.QueryRow(ctx, lockJobSQL, id).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("lock job %s: %w", id, err)
	}

	job, err := decodeJob(doc)
	if err != nil {
		return nil, err
	}
	if err := fn(job); err != nil {
		return nil, err
	}

	next, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job %s: %w", id, err)
	}
	if _, err := tx.Exec(ctx, updateJobSQL, id, string(job.Status), job.UpdatedAt, next); err != nil {
		return nil, fmt.Errorf("update job %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit job %s: %w", id, err)
	}
	return job, nil
}

func decodeJob(doc []byte) (*models.Job, error) {
	var job models.Job
	if err := json.Unmarshal(doc, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if job.Results == nil {
		job.Results = make([]models.ItemResult, 0)
	}
	return &job, nil
}
