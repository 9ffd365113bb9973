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

// CapacityError signals that a bulk admission would exceed session capacity.
// Available is the number of places still open; it is never negative.
type CapacityError struct {
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("session capacity exceeded: %d place(s) available", e.Available)
}

// MissingEnrollmentsError reports enrollment IDs from a bulk transition that
// do not exist or belong to a different session.
type MissingEnrollmentsError struct {
	IDs []string
}

func (e *MissingEnrollmentsError) Error() string {
	return fmt.Sprintf("enrollments not found in session: %s", strings.Join(e.IDs, ", "))
}

// EnrollmentRepository handles persistence of session enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments with participant details, filtered by the
// provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN participants p ON p.id = e.participant_id`
	var conditions []string
	var args []interface{}

	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("e.session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.ParticipantID != "" {
		conditions = append(conditions, fmt.Sprintf("e.participant_id = $%d", len(args)+1))
		args = append(args, filter.ParticipantID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":       "e.created_at",
		"participant_name": "p.full_name",
		"status":           "e.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
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
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.session_id, e.participant_id, e.status, e.created_at, e.updated_at,
        p.full_name AS participant_name, p.email AS participant_email, p.school_year,
        p.parent_name, p.parent_phone, p.needs_device
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, session_id, participant_id, status, created_at, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListBySession returns every enrollment of a session with the given status.
// An empty status returns all of them.
func (r *EnrollmentRepository) ListBySession(ctx context.Context, sessionID string, status models.EnrollmentStatus) ([]models.Enrollment, error) {
	query := `SELECT id, session_id, participant_id, status, created_at, updated_at FROM enrollments WHERE session_id = $1`
	args := []interface{}{sessionID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at ASC"
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list session enrollments: %w", err)
	}
	return enrollments, nil
}

// ListDetailsBySession returns every enrollment of a session with participant
// details, ordered by participant name. Unlike List it is not paginated, so
// attendance sheets and register exports see every row no matter how large
// the session's waitlist has grown. An empty status returns all enrollments.
func (r *EnrollmentRepository) ListDetailsBySession(ctx context.Context, sessionID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	query := `SELECT e.id, e.session_id, e.participant_id, e.status, e.created_at, e.updated_at,
        p.full_name AS participant_name, p.email AS participant_email, p.school_year,
        p.parent_name, p.parent_phone, p.needs_device
        FROM enrollments e
        JOIN participants p ON p.id = e.participant_id
        WHERE e.session_id = $1`
	args := []interface{}{sessionID}
	if status != "" {
		query += " AND e.status = $2"
		args = append(args, status)
	}
	query += " ORDER BY p.full_name ASC"
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list session enrollment details: %w", err)
	}
	return enrollments, nil
}

// ExistsForParticipant checks whether the participant already has an
// enrollment in the session.
func (r *EnrollmentRepository) ExistsForParticipant(ctx context.Context, sessionID, participantID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE session_id = $1 AND participant_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sessionID, participantID); err != nil {
		return false, fmt.Errorf("check enrollment exists: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new enrollment. The creation timestamp anchors attendance
// eligibility and is never updated afterwards.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusWaitlisted
	}
	const query = `INSERT INTO enrollments (id, session_id, participant_id, status, created_at, updated_at)
        VALUES (:id, :session_id, :participant_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Summary returns per-status counts for a session.
func (r *EnrollmentRepository) Summary(ctx context.Context, sessionID string) (*models.EnrollmentSummary, error) {
	const query = `SELECT
        COUNT(*) AS total,
        COUNT(*) FILTER (WHERE status = 'WAITLISTED') AS waitlisted,
        COUNT(*) FILTER (WHERE status = 'ADMITTED') AS admitted,
        COUNT(*) FILTER (WHERE status = 'WITHDRAWN') AS withdrawn
        FROM enrollments WHERE session_id = $1`
	var summary models.EnrollmentSummary
	if err := r.db.QueryRowxContext(ctx, query, sessionID).Scan(&summary.Total, &summary.Waitlisted, &summary.Admitted, &summary.Withdrawn); err != nil {
		return nil, fmt.Errorf("enrollment summary: %w", err)
	}
	return &summary, nil
}

// BulkTransition moves all listed enrollments of a session to the target
// status in one transaction. Admissions are capacity-checked against the
// session row under a row lock: when the batch does not fit, nothing is
// changed and a CapacityError carries the number of places still open.
func (r *EnrollmentRepository) BulkTransition(ctx context.Context, sessionID string, enrollmentIDs []string, target models.EnrollmentStatus) error {
	if len(enrollmentIDs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk transition: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var capacity int
	if err := tx.GetContext(ctx, &capacity, "SELECT capacity FROM sessions WHERE id = $1 FOR UPDATE", sessionID); err != nil {
		return fmt.Errorf("lock session: %w", err)
	}

	placeholders := make([]string, len(enrollmentIDs))
	args := []interface{}{sessionID}
	for i, id := range enrollmentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	query := fmt.Sprintf("SELECT id FROM enrollments WHERE session_id = $1 AND id IN (%s)", strings.Join(placeholders, ", "))
	var found []string
	if err := tx.SelectContext(ctx, &found, query, args...); err != nil {
		return fmt.Errorf("load enrollments: %w", err)
	}
	if len(found) != len(enrollmentIDs) {
		present := make(map[string]bool, len(found))
		for _, id := range found {
			present[id] = true
		}
		var missing []string
		for _, id := range enrollmentIDs {
			if !present[id] {
				missing = append(missing, id)
			}
		}
		return &MissingEnrollmentsError{IDs: missing}
	}

	if target == models.EnrollmentStatusAdmitted {
		// admitted_outside drives the fit check (batch members already
		// admitted keep their place); available reports the true free
		// places against the full admitted count.
		countQuery := fmt.Sprintf(`SELECT COUNT(*) AS admitted,
            COUNT(*) FILTER (WHERE id NOT IN (%s)) AS admitted_outside
            FROM enrollments WHERE session_id = $1 AND status = 'ADMITTED'`, strings.Join(placeholders, ", "))
		var admitted, admittedOutside int
		if err := tx.QueryRowxContext(ctx, countQuery, args...).Scan(&admitted, &admittedOutside); err != nil {
			return fmt.Errorf("count admitted: %w", err)
		}
		if admittedOutside+len(enrollmentIDs) > capacity {
			available := capacity - admitted
			if available < 0 {
				available = 0
			}
			return &CapacityError{Available: available}
		}
	}

	updateQuery := fmt.Sprintf("UPDATE enrollments SET status = $%d, updated_at = $%d WHERE session_id = $1 AND id IN (%s)",
		len(args)+1, len(args)+2, strings.Join(placeholders, ", "))
	updateArgs := append(args, target, time.Now().UTC())
	if _, err := tx.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk transition: %w", err)
	}
	committed = true
	return nil
}
