package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prodshot/internal/httpkit"
	"prodshot/internal/models"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobExists   = errors.New("job already exists")
)

// JobRepository persists jobs and their pipeline results.
type JobRepository struct {
	db *pgxpool.Pool
}

func NewJobRepository(db *pgxpool.Pool) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, j *models.Job) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO jobs (id, video_url, status, created_at)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, j.ID, j.VideoURL, j.Status, time.Now().UTC()).Scan(&j.CreatedAt)
	if httpkit.IsUniqueViolation(err) {
		return ErrJobExists
	}
	return err
}

func (r *JobRepository) Get(ctx context.Context, jobID string) (*models.Job, error) {
	var (
		j          models.Job
		resultJSON []byte
	)

	err := r.db.QueryRow(ctx, `
		SELECT id, video_url, status, COALESCE(error_text,''), result_json, created_at, started_at, finished_at
		FROM jobs WHERE id=$1
	`, jobID).Scan(&j.ID, &j.VideoURL, &j.Status, &j.ErrorText, &resultJSON, &j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	if len(resultJSON) > 0 {
		var res models.JobResult
		if err := json.Unmarshal(resultJSON, &res); err == nil {
			j.Result = &res
		}
	}

	return &j, nil
}

func (r *JobRepository) List(ctx context.Context, status string, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	if status != "" {
		rows, err = r.db.Query(ctx, `
			SELECT id, video_url, status, created_at
			FROM jobs WHERE status=$1
			ORDER BY created_at DESC
			LIMIT $2
		`, status, limit)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT id, video_url, status, created_at
			FROM jobs
			ORDER BY created_at DESC
			LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Job, 0, limit)
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.VideoURL, &j.Status, &j.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *JobRepository) MarkRunning(ctx context.Context, jobID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE jobs SET status=$2, started_at=NOW(), finished_at=NULL, error_text=NULL
		WHERE id=$1
	`, jobID, models.JobStatusRunning)
	return err
}

func (r *JobRepository) MarkDone(ctx context.Context, jobID string, result *models.JobResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		UPDATE jobs SET status=$2, finished_at=NOW(), result_json=$3
		WHERE id=$1
	`, jobID, models.JobStatusDone, resultJSON)
	return err
}

func (r *JobRepository) MarkFailed(ctx context.Context, jobID string, errText string) error {
	if len(errText) > 2000 {
		errText = errText[:2000]
	}
	_, err := r.db.Exec(ctx, `
		UPDATE jobs SET status=$2, finished_at=NOW(), error_text=$3
		WHERE id=$1
	`, jobID, models.JobStatusFailed, errText)
	return err
}
