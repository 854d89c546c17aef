package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mario-guerra/translation-service/internal/domain/entity"
)

var ErrJobNotFound = errors.New("translation job not found")

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.TranslationJob) error {
	query := `
		INSERT INTO translation_jobs (
			id, user_id, container_name, file_name, status,
			attempt, error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.ContainerName, job.FileName, string(job.Status),
		job.Attempt, job.ErrorMessage, job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert translation job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.TranslationJob) error {
	query := `
		UPDATE translation_jobs SET
			status=$2, attempt=$3, error_message=$4, updated_at=$5, completed_at=$6
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.Attempt, job.ErrorMessage,
		job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update translation job: %w", err)
	}
	return nil
}

func (r *JobRepository) FindByUpload(ctx context.Context, containerName, fileName string) (*entity.TranslationJob, error) {
	query := `
		SELECT id, user_id, container_name, file_name, status,
			attempt, error_message, created_at, updated_at, completed_at
		FROM translation_jobs
		WHERE container_name=$1 AND file_name=$2
		ORDER BY created_at DESC
		LIMIT 1`

	job := &entity.TranslationJob{}
	var status string
	err := r.pool.QueryRow(ctx, query, containerName, fileName).Scan(
		&job.ID, &job.UserID, &job.ContainerName, &job.FileName, &status,
		&job.Attempt, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("find translation job: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}
