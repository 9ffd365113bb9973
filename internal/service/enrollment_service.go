package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kiwicoders/sessions-api/internal/models"
	"github.com/kiwicoders/sessions-api/internal/repository"
	appErrors "github.com/kiwicoders/sessions-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	ExistsForParticipant(ctx context.Context, sessionID, participantID string) (bool, error)
	Summary(ctx context.Context, sessionID string) (*models.EnrollmentSummary, error)
	BulkTransition(ctx context.Context, sessionID string, enrollmentIDs []string, target models.EnrollmentStatus) error
}

type participantRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Participant, error)
	Create(ctx context.Context, participant *models.Participant) error
}

type enrollmentSessionLookup interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

// SignupRequest is the public signup payload. A participant is matched by
// email, so repeated signups reuse the same participant record.
type SignupRequest struct {
	SessionID   string  `json:"session_id" validate:"required"`
	FullName    string  `json:"full_name" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	SchoolYear  string  `json:"school_year" validate:"required"`
	ParentName  string  `json:"parent_name" validate:"required"`
	ParentPhone string  `json:"parent_phone" validate:"required"`
	NeedsDevice bool    `json:"needs_device"`
	MedicalInfo *string `json:"medical_info"`
}

// BulkTransitionRequest moves a batch of enrollments to one target status.
type BulkTransitionRequest struct {
	EnrollmentIDs []string                `json:"enrollment_ids" validate:"required,min=1,dive,required"`
	Status        models.EnrollmentStatus `json:"status" validate:"required"`
}

// EnrollmentService manages the admission lifecycle of enrollments.
type EnrollmentService struct {
	repo         enrollmentRepository
	participants participantRepository
	sessions     enrollmentSessionLookup
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, participants participantRepository, sessions enrollmentSessionLookup, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, participants: participants, sessions: sessions, validator: validate, logger: logger}
}

// Signup registers a participant for a session. New enrollments always start
// WAITLISTED; admission is a separate staff action.
func (s *EnrollmentService) Signup(ctx context.Context, req SignupRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup payload")
	}

	if _, err := s.sessions.FindByID(ctx, req.SessionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	participant, err := s.participants.FindByEmail(ctx, req.Email)
	if err != nil {
		if err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up participant")
		}
		participant = &models.Participant{
			FullName:    req.FullName,
			Email:       req.Email,
			SchoolYear:  req.SchoolYear,
			ParentName:  req.ParentName,
			ParentPhone: req.ParentPhone,
			NeedsDevice: req.NeedsDevice,
			MedicalInfo: req.MedicalInfo,
		}
		if err := s.participants.Create(ctx, participant); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create participant")
		}
	}

	exists, err := s.repo.ExistsForParticipant(ctx, req.SessionID, participant.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "participant already signed up for this session")
	}

	enrollment := &models.Enrollment{
		SessionID:     req.SessionID,
		ParticipantID: participant.ID,
		Status:        models.EnrollmentStatusWaitlisted,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment, nil
}

// List returns a session's enrollments with participant details.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns an enrollment by ID.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Summary returns per-status enrollment counts for a session.
func (s *EnrollmentService) Summary(ctx context.Context, sessionID string) (*models.EnrollmentSummary, error) {
	summary, err := s.repo.Summary(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise enrollments")
	}
	return summary, nil
}

// BulkTransition moves the listed enrollments to the requested status. Any
// status may move to any other; admissions are capacity-checked atomically,
// so an oversized batch changes nothing and reports the open places.
func (s *EnrollmentService) BulkTransition(ctx context.Context, sessionID string, req BulkTransitionRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}
	if !req.Status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "status must be WAITLISTED, ADMITTED or WITHDRAWN")
	}
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	ids := uniqueStrings(req.EnrollmentIDs)
	if err := s.repo.BulkTransition(ctx, sessionID, ids, req.Status); err != nil {
		var capErr *repository.CapacityError
		if errors.As(err, &capErr) {
			return appErrors.CapacityExceeded(capErr.Available)
		}
		var missErr *repository.MissingEnrollmentsError
		if errors.As(err, &missErr) {
			return appErrors.Clone(appErrors.ErrNotFound, missErr.Error())
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition enrollments")
	}
	return nil
}
