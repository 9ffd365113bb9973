package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kiwicoders/sessions-api/internal/models"
	appErrors "github.com/kiwicoders/sessions-api/pkg/errors"
)

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error)
	ListAll(ctx context.Context) ([]models.Session, error)
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Create(ctx context.Context, session *models.Session, termIDs []string) error
	Update(ctx context.Context, session *models.Session, termIDs []string) error
	Delete(ctx context.Context, id string) error
}

type sessionTermLookup interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Term, error)
}

type calendarInvalidator interface {
	InvalidateCalendar(ctx context.Context) error
}

// SessionRequest is the payload for creating or updating a session. TermIDs
// order is significant: it becomes the session's term order.
type SessionRequest struct {
	Title       string   `json:"title" validate:"required"`
	Weekday     int      `json:"weekday" validate:"gte=0,lte=6"`
	StartTime   string   `json:"start_time" validate:"required"`
	EndTime     string   `json:"end_time" validate:"required"`
	Location    string   `json:"location" validate:"required"`
	City        string   `json:"city" validate:"required"`
	LocationURL *string  `json:"location_url"`
	Capacity    int      `json:"capacity" validate:"required,gte=1"`
	MinAge      int      `json:"min_age" validate:"gte=0"`
	MaxAge      int      `json:"max_age" validate:"gte=1"`
	TermIDs     []string `json:"term_ids" validate:"required,min=1,dive,required"`
}

// SessionService orchestrates session workflows.
type SessionService struct {
	repo      sessionRepository
	terms     sessionTermLookup
	calendar  calendarInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService creates a session service. The calendar invalidator may
// be nil when no calendar cache is wired.
func NewSessionService(repo sessionRepository, terms sessionTermLookup, calendar calendarInvalidator, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, terms: terms, calendar: calendar, validator: validate, logger: logger}
}

// List returns paginated sessions with their ordered terms.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, *models.Pagination, error) {
	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a session by ID.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// Create validates and stores a new session with its term order.
func (s *SessionService) Create(ctx context.Context, req SessionRequest) (*models.Session, error) {
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}
	session := req.toModel()
	if err := s.repo.Create(ctx, session, req.TermIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	s.invalidateCalendar(ctx)
	return s.Get(ctx, session.ID)
}

// Update validates and stores changes to a session, replacing its term order.
func (s *SessionService) Update(ctx context.Context, id string, req SessionRequest) (*models.Session, error) {
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	session := req.toModel()
	session.ID = existing.ID
	session.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, session, req.TermIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	s.invalidateCalendar(ctx)
	return s.Get(ctx, id)
}

// Delete removes a session and its term associations.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	s.invalidateCalendar(ctx)
	return nil
}

func (s *SessionService) validateRequest(ctx context.Context, req SessionRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	start, err := time.Parse("15:04", req.StartTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must use HH:MM format")
	}
	end, err := time.Parse("15:04", req.EndTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must use HH:MM format")
	}
	if !end.After(start) {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	if req.MinAge >= req.MaxAge {
		return appErrors.Clone(appErrors.ErrValidation, "min_age must be less than max_age")
	}

	terms, err := s.terms.FindByIDs(ctx, req.TermIDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve terms")
	}
	if len(terms) != len(uniqueStrings(req.TermIDs)) {
		return appErrors.Clone(appErrors.ErrValidation, "one or more term_ids do not exist")
	}
	return nil
}

func (s *SessionService) invalidateCalendar(ctx context.Context) {
	if s.calendar == nil {
		return
	}
	if err := s.calendar.InvalidateCalendar(ctx); err != nil {
		s.logger.Warn("failed to invalidate calendar cache", zap.Error(err))
	}
}

func (r SessionRequest) toModel() *models.Session {
	return &models.Session{
		Title:       r.Title,
		Weekday:     r.Weekday,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Location:    r.Location,
		City:        r.City,
		LocationURL: r.LocationURL,
		Capacity:    r.Capacity,
		MinAge:      r.MinAge,
		MaxAge:      r.MaxAge,
	}
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
