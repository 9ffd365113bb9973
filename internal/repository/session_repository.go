package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kiwicoders/sessions-api/internal/models"
)

// SessionRepository manages persistence for recurring sessions and their
// term associations.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// List returns sessions matching the provided filters. Term associations are
// loaded separately per session, ordered by attachment position.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	base := "FROM sessions s"
	var conditions []string
	var args []interface{}

	if filter.TermID != "" {
		base += " JOIN session_terms st ON st.session_id = s.id"
		conditions = append(conditions, fmt.Sprintf("st.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.City != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(s.city) = $%d", len(args)+1))
		args = append(args, strings.ToLower(filter.City))
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.title) LIKE $%d OR LOWER(s.location) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"title":      "s.title",
		"city":       "s.city",
		"weekday":    "s.weekday",
		"created_at": "s.created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.title"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.title, s.weekday, s.start_time, s.end_time, s.location, s.city, s.location_url,
        s.capacity, s.min_age, s.max_age, s.created_at, s.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, column, order, size, offset)

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(DISTINCT s.id) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	for i := range sessions {
		terms, err := r.termsFor(ctx, r.db, sessions[i].ID)
		if err != nil {
			return nil, 0, err
		}
		sessions[i].Terms = terms
	}
	return sessions, total, nil
}

// ListAll returns every session with its ordered terms, for calendar feeds.
func (r *SessionRepository) ListAll(ctx context.Context) ([]models.Session, error) {
	const query = `SELECT id, title, weekday, start_time, end_time, location, city, location_url,
        capacity, min_age, max_age, created_at, updated_at FROM sessions ORDER BY title ASC`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, fmt.Errorf("list all sessions: %w", err)
	}
	for i := range sessions {
		terms, err := r.termsFor(ctx, r.db, sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].Terms = terms
	}
	return sessions, nil
}

// FindByID fetches a session with its ordered terms.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT id, title, weekday, start_time, end_time, location, city, location_url,
        capacity, min_age, max_age, created_at, updated_at FROM sessions WHERE id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	terms, err := r.termsFor(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	session.Terms = terms
	return &session, nil
}

// Create inserts a session and its term associations in attachment order.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session, termIDs []string) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create session: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO sessions (id, title, weekday, start_time, end_time, location, city, location_url, capacity, min_age, max_age, created_at, updated_at)
        VALUES (:id, :title, :weekday, :start_time, :end_time, :location, :city, :location_url, :capacity, :min_age, :max_age, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if err := r.replaceTerms(ctx, tx, session.ID, termIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create session: %w", err)
	}
	committed = true
	return nil
}

// Update modifies a session and replaces its term associations. The new
// term order becomes the session's term order.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session, termIDs []string) error {
	session.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update session: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE sessions SET title = :title, weekday = :weekday, start_time = :start_time, end_time = :end_time,
        location = :location, city = :city, location_url = :location_url, capacity = :capacity,
        min_age = :min_age, max_age = :max_age, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM session_terms WHERE session_id = $1", session.ID); err != nil {
		return fmt.Errorf("clear session terms: %w", err)
	}
	if err := r.replaceTerms(ctx, tx, session.ID, termIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update session: %w", err)
	}
	committed = true
	return nil
}

// Delete removes a session together with its term associations.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete session: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, "DELETE FROM session_terms WHERE session_id = $1", id); err != nil {
		return fmt.Errorf("delete session terms: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session: %w", err)
	}
	committed = true
	return nil
}

type queryer interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (r *SessionRepository) termsFor(ctx context.Context, q queryer, sessionID string) ([]models.Term, error) {
	const query = `SELECT t.id, t.name, t.start_date, t.end_date, t.year, t.created_at, t.updated_at
        FROM session_terms st
        JOIN terms t ON t.id = st.term_id
        WHERE st.session_id = $1
        ORDER BY st.position ASC`
	var terms []models.Term
	if err := q.SelectContext(ctx, &terms, query, sessionID); err != nil {
		return nil, fmt.Errorf("load session terms: %w", err)
	}
	return terms, nil
}

func (r *SessionRepository) replaceTerms(ctx context.Context, tx *sqlx.Tx, sessionID string, termIDs []string) error {
	const query = `INSERT INTO session_terms (session_id, term_id, position) VALUES ($1, $2, $3)`
	for i, termID := range termIDs {
		if _, err := tx.ExecContext(ctx, query, sessionID, termID, i); err != nil {
			return fmt.Errorf("attach term %s: %w", termID, err)
		}
	}
	return nil
}
