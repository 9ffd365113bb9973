package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kiwicoders/sessions-api/internal/models"
)

// RegisterJobRepository persists asynchronous register export jobs.
type RegisterJobRepository struct {
	db *sqlx.DB
}

// NewRegisterJobRepository constructs the repository.
func NewRegisterJobRepository(db *sqlx.DB) *RegisterJobRepository {
	return &RegisterJobRepository{db: db}
}

// Create inserts a new export job in QUEUED state.
func (r *RegisterJobRepository) Create(ctx context.Context, job *models.RegisterJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.RegisterStatusQueued
	}
	const query = `INSERT INTO register_jobs (id, session_id, format, status, file_path, error, requested_by, created_at, updated_at)
        VALUES (:id, :session_id, :format, :status, :file_path, :error, :requested_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create register job: %w", err)
	}
	return nil
}

// FindByID fetches an export job by ID.
func (r *RegisterJobRepository) FindByID(ctx context.Context, id string) (*models.RegisterJob, error) {
	const query = `SELECT id, session_id, format, status, file_path, error, requested_by, created_at, updated_at
        FROM register_jobs WHERE id = $1`
	var job models.RegisterJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns export jobs for a session, most recent first.
func (r *RegisterJobRepository) List(ctx context.Context, sessionID string, limit int) ([]models.RegisterJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT id, session_id, format, status, file_path, error, requested_by, created_at, updated_at
        FROM register_jobs WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`
	var jobs []models.RegisterJob
	if err := r.db.SelectContext(ctx, &jobs, query, sessionID, limit); err != nil {
		return nil, fmt.Errorf("list register jobs: %w", err)
	}
	return jobs, nil
}

// UpdateStatus moves a job to the given status, recording the produced file
// or the failure message.
func (r *RegisterJobRepository) UpdateStatus(ctx context.Context, id string, status models.RegisterStatus, filePath, errMsg *string) error {
	const query = `UPDATE register_jobs SET status = $2, file_path = $3, error = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, filePath, errMsg, time.Now().UTC()); err != nil {
		return fmt.Errorf("update register job: %w", err)
	}
	return nil
}
