package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/kiwicoders/sessions-api/internal/models"
	appErrors "github.com/kiwicoders/sessions-api/pkg/errors"
)

// NormalizeDate truncates a timestamp to UTC midnight. All occurrence and
// eligibility comparisons happen on normalized dates so that wall-clock time
// and zone offsets never influence the outcome.
func NormalizeDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// TermWindows maps a session's terms to their date windows, preserving the
// order the terms were attached in.
func TermWindows(terms []models.Term) []models.DateWindow {
	windows := make([]models.DateWindow, 0, len(terms))
	for _, term := range terms {
		windows = append(windows, term.Window())
	}
	return windows
}

// GenerateOccurrences expands a session's weekly recurrence across its term
// windows. Each term contributes a contiguous block of dates; blocks follow
// the session's term order and are never re-sorted, so a later-attached term
// with earlier dates yields a non-chronological sequence on purpose.
func GenerateOccurrences(session models.Session, terms []models.Term) []models.Occurrence {
	var occurrences []models.Occurrence
	for _, term := range terms {
		window := term.Window()
		start := NormalizeDate(window.Start)
		end := NormalizeDate(window.End)
		if end.Before(start) {
			continue
		}

		date := start
		for date.Weekday() != session.WeekdayValue() {
			date = date.AddDate(0, 0, 1)
		}
		for !date.After(end) {
			occurrences = append(occurrences, occurrenceOn(session, term.ID, date))
			date = date.AddDate(0, 0, 7)
		}
	}
	return occurrences
}

func occurrenceOn(session models.Session, termID string, date time.Time) models.Occurrence {
	return models.Occurrence{
		SessionID: session.ID,
		TermID:    termID,
		Date:      date,
		StartsAt:  combineClock(date, session.StartTime),
		EndsAt:    combineClock(date, session.EndTime),
	}
}

// combineClock applies an "HH:MM" wall clock to a normalized date. A
// malformed clock falls back to midnight rather than failing generation.
func combineClock(date time.Time, clock string) time.Time {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return date
	}
	return date.Add(time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute)
}

// logMalformedClocks surfaces stored sessions whose clocks no longer parse.
// Session validation rejects such values on write, so a hit here means the
// row predates validation or was changed outside the API.
func logMalformedClocks(logger *zap.Logger, session models.Session) {
	for _, clock := range []string{session.StartTime, session.EndTime} {
		if _, err := time.Parse("15:04", clock); err != nil {
			logger.Debug("session clock is malformed, occurrences default to midnight",
				zap.String("session_id", session.ID), zap.String("clock", clock))
		}
	}
}

// EligibleOn reports whether an enrollment may have attendance recorded for
// the given occurrence date: the date must not precede the day the
// enrollment was created.
func EligibleOn(enrollment models.Enrollment, date time.Time) bool {
	return !NormalizeDate(date).Before(NormalizeDate(enrollment.CreatedAt))
}

// EligibleDates filters a session's occurrence dates down to those the
// enrollment is eligible for, preserving occurrence order.
func EligibleDates(session models.Session, terms []models.Term, enrollment models.Enrollment) []time.Time {
	var dates []time.Time
	for _, occ := range GenerateOccurrences(session, terms) {
		if EligibleOn(enrollment, occ.Date) {
			dates = append(dates, occ.Date)
		}
	}
	return dates
}

type occurrenceSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

// OccurrenceService resolves a stored session into its concrete occurrences.
type OccurrenceService struct {
	sessions occurrenceSessionRepository
	logger   *zap.Logger
}

// NewOccurrenceService constructs an OccurrenceService.
func NewOccurrenceService(sessions occurrenceSessionRepository, logger *zap.Logger) *OccurrenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OccurrenceService{sessions: sessions, logger: logger}
}

// ForSession returns the session's occurrences in term-attachment order.
func (s *OccurrenceService) ForSession(ctx context.Context, sessionID string) ([]models.Occurrence, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	logMalformedClocks(s.logger, *session)
	return GenerateOccurrences(*session, session.Terms), nil
}
