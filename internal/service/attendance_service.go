package service

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kiwicoders/sessions-api/internal/models"
	appErrors "github.com/kiwicoders/sessions-api/pkg/errors"
)

type attendanceRepository interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AttendanceRecord, error)
	BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error
}

type attendanceEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ListBySession(ctx context.Context, sessionID string, status models.EnrollmentStatus) ([]models.Enrollment, error)
	ListDetailsBySession(ctx context.Context, sessionID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
}

// AttendanceEntry is one mark in a bulk save.
type AttendanceEntry struct {
	EnrollmentID string    `json:"enrollment_id" validate:"required"`
	Date         time.Time `json:"date" validate:"required"`
	Present      bool      `json:"present"`
}

// BulkSaveRequest carries the marks of one attendance-taking pass.
type BulkSaveRequest struct {
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// BulkSaveResult reports what a bulk save persisted and what it refused.
type BulkSaveResult struct {
	Saved   int                        `json:"saved"`
	Skipped []models.SkippedAttendance `json:"skipped"`
}

// AttendanceService keeps the attendance ledger for sessions.
type AttendanceService struct {
	repo        attendanceRepository
	enrollments attendanceEnrollmentRepository
	sessions    enrollmentSessionLookup
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceRepository, enrollments attendanceEnrollmentRepository, sessions enrollmentSessionLookup, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, enrollments: enrollments, sessions: sessions, validator: validate, logger: logger}
}

// BulkSave persists attendance marks for a session. Entries for unknown
// enrollments, non-occurrence dates, or dates before an enrollment joined
// are dropped and reported; everything else is written in one transaction,
// overwriting earlier marks for the same enrollment and date.
func (s *AttendanceService) BulkSave(ctx context.Context, sessionID string, req BulkSaveRequest) (*BulkSaveResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	occurrenceDates := make(map[time.Time]bool)
	for _, occ := range GenerateOccurrences(*session, session.Terms) {
		occurrenceDates[occ.Date] = true
	}

	enrollments, err := s.enrollments.ListBySession(ctx, sessionID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	byID := make(map[string]models.Enrollment, len(enrollments))
	for _, e := range enrollments {
		byID[e.ID] = e
	}

	result := &BulkSaveResult{Skipped: []models.SkippedAttendance{}}
	type recordKey struct {
		enrollmentID string
		date         time.Time
	}
	accepted := make(map[recordKey]models.AttendanceRecord)
	var order []recordKey

	for _, entry := range req.Entries {
		date := NormalizeDate(entry.Date)
		enrollment, ok := byID[entry.EnrollmentID]
		if !ok {
			result.Skipped = append(result.Skipped, models.SkippedAttendance{EnrollmentID: entry.EnrollmentID, Date: date, Reason: "enrollment not found in session"})
			continue
		}
		if !occurrenceDates[date] {
			result.Skipped = append(result.Skipped, models.SkippedAttendance{EnrollmentID: entry.EnrollmentID, Date: date, Reason: "date is not a session occurrence"})
			continue
		}
		if !EligibleOn(enrollment, date) {
			result.Skipped = append(result.Skipped, models.SkippedAttendance{EnrollmentID: entry.EnrollmentID, Date: date, Reason: "enrollment joined after this date"})
			continue
		}
		key := recordKey{enrollmentID: entry.EnrollmentID, date: date}
		if _, seen := accepted[key]; !seen {
			order = append(order, key)
		}
		accepted[key] = models.AttendanceRecord{
			SessionID:    sessionID,
			EnrollmentID: entry.EnrollmentID,
			Date:         date,
			Present:      entry.Present,
		}
	}

	records := make([]models.AttendanceRecord, 0, len(order))
	for _, key := range order {
		records = append(records, accepted[key])
	}
	if err := s.repo.BulkUpsert(ctx, records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}
	result.Saved = len(records)
	return result, nil
}

// Sheet builds the attendance grid for a session: one column block per term
// in the session's term order, one row per admitted enrollment.
func (s *AttendanceService) Sheet(ctx context.Context, sessionID string) (*models.AttendanceSheet, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	occurrences := GenerateOccurrences(*session, session.Terms)
	termNames := make(map[string]string, len(session.Terms))
	for _, term := range session.Terms {
		termNames[term.ID] = term.Name
	}

	var blocks []models.SheetTermBlock
	for _, occ := range occurrences {
		if len(blocks) == 0 || blocks[len(blocks)-1].TermID != occ.TermID {
			blocks = append(blocks, models.SheetTermBlock{TermID: occ.TermID, TermName: termNames[occ.TermID]})
		}
		blocks[len(blocks)-1].Dates = append(blocks[len(blocks)-1].Dates, occ.Date)
	}

	details, err := s.enrollments.ListDetailsBySession(ctx, sessionID, models.EnrollmentStatusAdmitted)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	records, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	present := make(map[string]map[time.Time]bool)
	for _, rec := range records {
		if present[rec.EnrollmentID] == nil {
			present[rec.EnrollmentID] = make(map[time.Time]bool)
		}
		present[rec.EnrollmentID][NormalizeDate(rec.Date)] = rec.Present
	}

	sheet := &models.AttendanceSheet{SessionID: sessionID, Blocks: blocks, Rows: []models.SheetRow{}}
	for _, detail := range details {
		row := models.SheetRow{
			EnrollmentID:    detail.ID,
			ParticipantName: detail.ParticipantName,
			SchoolYear:      detail.SchoolYear,
		}
		for _, occ := range occurrences {
			eligible := EligibleOn(detail.Enrollment, occ.Date)
			cell := models.SheetCell{Date: occ.Date, Editable: eligible}
			if eligible {
				cell.Present = present[detail.ID][occ.Date]
			}
			row.Cells = append(row.Cells, cell)
		}
		row.Stats = computeStats(detail.Enrollment, occurrences, present[detail.ID])
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// Stats summarises one enrollment's attendance across its eligible dates.
// Dates with no stored record count as absences.
func (s *AttendanceService) Stats(ctx context.Context, enrollmentID string) (*models.AttendanceStats, error) {
	enrollment, session, err := s.loadEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	records, err := s.repo.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	present := make(map[time.Time]bool, len(records))
	for _, rec := range records {
		present[NormalizeDate(rec.Date)] = rec.Present
	}

	stats := computeStats(*enrollment, GenerateOccurrences(*session, session.Terms), present)
	return &stats, nil
}

// EligibleDates returns the occurrence dates an enrollment may have
// attendance recorded for.
func (s *AttendanceService) EligibleDates(ctx context.Context, enrollmentID string) ([]time.Time, error) {
	enrollment, session, err := s.loadEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	dates := EligibleDates(*session, session.Terms, *enrollment)
	if dates == nil {
		dates = []time.Time{}
	}
	return dates, nil
}

func (s *AttendanceService) loadSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *AttendanceService) loadEnrollment(ctx context.Context, enrollmentID string) (*models.Enrollment, *models.Session, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	session, err := s.loadSession(ctx, enrollment.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return enrollment, session, nil
}

func computeStats(enrollment models.Enrollment, occurrences []models.Occurrence, present map[time.Time]bool) models.AttendanceStats {
	stats := models.AttendanceStats{}
	for _, occ := range occurrences {
		if !EligibleOn(enrollment, occ.Date) {
			continue
		}
		stats.Total++
		if present[occ.Date] {
			stats.Present++
		}
	}
	if stats.Total > 0 {
		stats.Percent = int(math.Round(float64(stats.Present) / float64(stats.Total) * 100))
	}
	return stats
}
