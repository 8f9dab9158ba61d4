package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fiapx/fiapx-album-harvester/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrJobNotFound is returned by FindByID for unknown ids.
var ErrJobNotFound = errors.New("album job not found")

type AlbumJobRepository struct {
	pool *pgxpool.Pool
}

func NewAlbumJobRepository(pool *pgxpool.Pool) *AlbumJobRepository {
	return &AlbumJobRepository{pool: pool}
}

func (r *AlbumJobRepository) Create(ctx context.Context, job *entity.AlbumJob) error {
	query := `
		INSERT INTO album_jobs (
			id, album_url, album_id, extract_frames, status, item_count,
			downloaded_count, extracted_count, failed_count, frames_saved,
			archive_key, attempt, max_attempts, error_message,
			created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.AlbumURL, job.AlbumID, job.ExtractFrames, string(job.Status), job.ItemCount,
		job.DownloadedCount, job.ExtractedCount, job.FailedCount, job.FramesSaved,
		job.ArchiveKey, job.Attempt, job.MaxAttempts, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert album job: %w", err)
	}
	return nil
}

func (r *AlbumJobRepository) Update(ctx context.Context, job *entity.AlbumJob) error {
	query := `
		UPDATE album_jobs SET
			status=$2, album_id=$3, item_count=$4, downloaded_count=$5,
			extracted_count=$6, failed_count=$7, frames_saved=$8, archive_key=$9,
			attempt=$10, error_message=$11, updated_at=$12, completed_at=$13
		WHERE id=$1`

	tag, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.AlbumID, job.ItemCount, job.DownloadedCount,
		job.ExtractedCount, job.FailedCount, job.FramesSaved, job.ArchiveKey,
		job.Attempt, job.ErrorMessage, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update album job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *AlbumJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.AlbumJob, error) {
	query := `
		SELECT id, album_url, album_id, extract_frames, status, item_count,
			downloaded_count, extracted_count, failed_count, frames_saved,
			archive_key, attempt, max_attempts, error_message,
			created_at, updated_at, completed_at
		FROM album_jobs WHERE id=$1`

	job := &entity.AlbumJob{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.AlbumURL, &job.AlbumID, &job.ExtractFrames, &status, &job.ItemCount,
		&job.DownloadedCount, &job.ExtractedCount, &job.FailedCount, &job.FramesSaved,
		&job.ArchiveKey, &job.Attempt, &job.MaxAttempts, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find album job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}

// RecordFailures replaces the permanent failures stored for a job.
func (r *AlbumJobRepository) RecordFailures(ctx context.Context, jobID uuid.UUID, failures []entity.FailureRecord) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM album_job_failures WHERE job_id=$1`, jobID); err != nil {
			return fmt.Errorf("clear failures: %w", err)
		}
		if len(failures) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, f := range failures {
			batch.Queue(`
				INSERT INTO album_job_failures (job_id, item_index, filename, download_link)
				VALUES ($1,$2,$3,$4)`, jobID, f.ItemIndex, f.Filename, f.DownloadLink)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert failures: %w", err)
		}
		return nil
	})
}

func (r *AlbumJobRepository) ListFailures(ctx context.Context, jobID uuid.UUID) ([]entity.FailureRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT item_index, filename, download_link
		FROM album_job_failures WHERE job_id=$1 ORDER BY item_index`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[entity.FailureRecord])
	if err != nil {
		return nil, fmt.Errorf("scan failures: %w", err)
	}
	return out, nil
}
