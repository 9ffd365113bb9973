package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kiwicoders/sessions-api/internal/models"
)

// ParticipantRepository handles persistence for signup participants.
type ParticipantRepository struct {
	db *sqlx.DB
}

// NewParticipantRepository constructs the repository.
func NewParticipantRepository(db *sqlx.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// FindByID fetches a participant by ID.
func (r *ParticipantRepository) FindByID(ctx context.Context, id string) (*models.Participant, error) {
	const query = `SELECT id, full_name, email, school_year, parent_name, parent_phone, needs_device, medical_info, created_at
        FROM participants WHERE id = $1`
	var participant models.Participant
	if err := r.db.GetContext(ctx, &participant, query, id); err != nil {
		return nil, err
	}
	return &participant, nil
}

// FindByEmail fetches a participant by email, used to dedupe repeat signups.
func (r *ParticipantRepository) FindByEmail(ctx context.Context, email string) (*models.Participant, error) {
	const query = `SELECT id, full_name, email, school_year, parent_name, parent_phone, needs_device, medical_info, created_at
        FROM participants WHERE LOWER(email) = LOWER($1)`
	var participant models.Participant
	if err := r.db.GetContext(ctx, &participant, query, email); err != nil {
		return nil, err
	}
	return &participant, nil
}

// Create inserts a participant record.
func (r *ParticipantRepository) Create(ctx context.Context, participant *models.Participant) error {
	if participant.ID == "" {
		participant.ID = uuid.NewString()
	}
	if participant.CreatedAt.IsZero() {
		participant.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO participants (id, full_name, email, school_year, parent_name, parent_phone, needs_device, medical_info, created_at)
        VALUES (:id, :full_name, :email, :school_year, :parent_name, :parent_phone, :needs_device, :medical_info, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, participant); err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}
