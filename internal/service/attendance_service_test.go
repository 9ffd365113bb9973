package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiwicoders/sessions-api/internal/models"
)

type mockAttendanceRepo struct {
	records map[string]models.AttendanceRecord
	saves   int
}

func attendanceKey(enrollmentID string, date time.Time) string {
	return enrollmentID + "|" + date.Format("2006-01-02")
}

func (m *mockAttendanceRepo) BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error {
	if m.records == nil {
		m.records = make(map[string]models.AttendanceRecord)
	}
	m.saves++
	for _, rec := range records {
		m.records[attendanceKey(rec.EnrollmentID, rec.Date)] = rec
	}
	return nil
}

func (m *mockAttendanceRepo) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, rec := range m.records {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockAttendanceRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, rec := range m.records {
		if rec.EnrollmentID == enrollmentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func termedSession() models.Session {
	session := wednesdaySession()
	session.Terms = []models.Term{
		{ID: "term-1", Name: "Term 1", StartDate: date(2025, 1, 6), EndDate: date(2025, 1, 24)},
	}
	return session
}

func newAttendanceFixture(enrollments map[string]models.Enrollment) (*AttendanceService, *mockAttendanceRepo) {
	repo := &mockAttendanceRepo{}
	enrollmentRepo := &mockEnrollmentRepo{enrollments: enrollments}
	sessions := &stubSessionRepo{sessions: map[string]models.Session{"ses-1": termedSession()}}
	return NewAttendanceService(repo, enrollmentRepo, sessions, nil, nil), repo
}

func TestBulkSaveDropsIneligibleEntries(t *testing.T) {
	svc, repo := newAttendanceFixture(map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", SessionID: "ses-1", Status: models.EnrollmentStatusAdmitted, CreatedAt: date(2025, 1, 10)},
	})

	result, err := svc.BulkSave(context.Background(), "ses-1", BulkSaveRequest{Entries: []AttendanceEntry{
		{EnrollmentID: "enr-1", Date: date(2025, 1, 8), Present: true},
		{EnrollmentID: "enr-1", Date: date(2025, 1, 15), Present: true},
	}})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Saved)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, date(2025, 1, 8), result.Skipped[0].Date)
	assert.Equal(t, "enrollment joined after this date", result.Skipped[0].Reason)
	_, stored := repo.records[attendanceKey("enr-1", date(2025, 1, 15))]
	assert.True(t, stored)
}

func TestBulkSaveSkipsUnknownEnrollmentAndBadDate(t *testing.T) {
	svc, _ := newAttendanceFixture(map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", SessionID: "ses-1", CreatedAt: date(2025, 1, 1)},
	})

	result, err := svc.BulkSave(context.Background(), "ses-1", BulkSaveRequest{Entries: []AttendanceEntry{
		{EnrollmentID: "enr-x", Date: date(2025, 1, 15), Present: true},
		{EnrollmentID: "enr-1", Date: date(2025, 1, 16), Present: true},
	}})

	require.NoError(t, err)
	assert.Equal(t, 0, result.Saved)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, "enrollment not found in session", result.Skipped[0].Reason)
	assert.Equal(t, "date is not a session occurrence", result.Skipped[1].Reason)
}

func TestBulkSaveIsIdempotent(t *testing.T) {
	svc, repo := newAttendanceFixture(map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", SessionID: "ses-1", CreatedAt: date(2025, 1, 1)},
	})
	entries := []AttendanceEntry{{EnrollmentID: "enr-1", Date: date(2025, 1, 8), Present: true}}

	first, err := svc.BulkSave(context.Background(), "ses-1", BulkSaveRequest{Entries: entries})
	require.NoError(t, err)
	entries[0].Present = false
	second, err := svc.BulkSave(context.Background(), "ses-1", BulkSaveRequest{Entries: entries})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Saved)
	assert.Equal(t, 1, second.Saved)
	require.Len(t, repo.records, 1)
	assert.False(t, repo.records[attendanceKey("enr-1", date(2025, 1, 8))].Present)
}

func TestBulkSaveLastEntryWinsWithinBatch(t *testing.T) {
	svc, repo := newAttendanceFixture(map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", SessionID: "ses-1", CreatedAt: date(2025, 1, 1)},
	})

	result, err := svc.BulkSave(context.Background(), "ses-1", BulkSaveRequest{Entries: []AttendanceEntry{
		{EnrollmentID: "enr-1", Date: date(2025, 1, 8), Present: true},
		{EnrollmentID: "enr-1", Date: date(2025, 1, 8), Present: false},
	}})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Saved)
	assert.False(t, repo.records[attendanceKey("enr-1", date(2025, 1, 8))].Present)
}

func TestBulkSaveReachesEnrollmentsBeyondOnePage(t *testing.T) {
	// 250 enrollments is more than any listing page; marks for the latest
	// signups must still be saved, not skipped as unknown.
	enrollments := make(map[string]models.Enrollment, 250)
	for i := 0; i < 250; i++ {
		id := fmt.Sprintf("enr-%03d", i)
		enrollments[id] = models.Enrollment{ID: id, SessionID: "ses-1", Status: models.EnrollmentStatusWaitlisted, CreatedAt: date(2025, 1, 1)}
	}
	svc, repo := newAttendanceFixture(enrollments)

	result, err := svc.BulkSave(context.Background(), "ses-1", BulkSaveRequest{Entries: []AttendanceEntry{
		{EnrollmentID: "enr-249", Date: date(2025, 1, 8), Present: true},
	}})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Saved)
	assert.Empty(t, result.Skipped)
	assert.True(t, repo.records[attendanceKey("enr-249", date(2025, 1, 8))].Present)
}

func TestSheetIncludesAllAdmittedBeyondOnePage(t *testing.T) {
	enrollments := make(map[string]models.Enrollment, 250)
	for i := 0; i < 250; i++ {
		id := fmt.Sprintf("enr-%03d", i)
		enrollments[id] = models.Enrollment{ID: id, SessionID: "ses-1", Status: models.EnrollmentStatusAdmitted, CreatedAt: date(2025, 1, 1)}
	}
	svc, _ := newAttendanceFixture(enrollments)

	sheet, err := svc.Sheet(context.Background(), "ses-1")

	require.NoError(t, err)
	assert.Len(t, sheet.Rows, 250)
}

func TestStatsCountsMissingRecordsAsAbsent(t *testing.T) {
	svc, repo := newAttendanceFixture(map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", SessionID: "ses-1", CreatedAt: date(2025, 1, 1)},
	})
	require.NoError(t, repo.BulkUpsert(context.Background(), []models.AttendanceRecord{
		{SessionID: "ses-1", EnrollmentID: "enr-1", Date: date(2025, 1, 8), Present: true},
		{SessionID: "ses-1", EnrollmentID: "enr-1", Date: date(2025, 1, 15), Present: true},
	}))

	stats, err := svc.Stats(context.Background(), "enr-1")

	require.NoError(t, err)
	// Three eligible occurrences, two marked present, the third unrecorded.
	assert.Equal(t, 2, stats.Present)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 67, stats.Percent)
}

func TestStatsZeroEligibleDates(t *testing.T) {
	svc, _ := newAttendanceFixture(map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", SessionID: "ses-1", CreatedAt: date(2025, 2, 1)},
	})

	stats, err := svc.Stats(context.Background(), "enr-1")

	require.NoError(t, err)
	assert.Equal(t, 0, stats.Present)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.Percent)
}

func TestEligibleDatesForEnrollment(t *testing.T) {
	svc, _ := newAttendanceFixture(map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", SessionID: "ses-1", CreatedAt: date(2025, 1, 10)},
	})

	dates, err := svc.EligibleDates(context.Background(), "enr-1")

	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, date(2025, 1, 15), dates[0])
	assert.Equal(t, date(2025, 1, 22), dates[1])
}

func TestSheetMarksPreJoinCellsNotEditable(t *testing.T) {
	svc, repo := newAttendanceFixture(map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", SessionID: "ses-1", Status: models.EnrollmentStatusAdmitted, CreatedAt: date(2025, 1, 10)},
	})
	require.NoError(t, repo.BulkUpsert(context.Background(), []models.AttendanceRecord{
		{SessionID: "ses-1", EnrollmentID: "enr-1", Date: date(2025, 1, 15), Present: true},
	}))

	sheet, err := svc.Sheet(context.Background(), "ses-1")

	require.NoError(t, err)
	require.Len(t, sheet.Blocks, 1)
	assert.Equal(t, "term-1", sheet.Blocks[0].TermID)
	assert.Equal(t, []time.Time{date(2025, 1, 8), date(2025, 1, 15), date(2025, 1, 22)}, sheet.Blocks[0].Dates)

	require.Len(t, sheet.Rows, 1)
	row := sheet.Rows[0]
	require.Len(t, row.Cells, 3)
	assert.False(t, row.Cells[0].Editable)
	assert.True(t, row.Cells[1].Editable)
	assert.True(t, row.Cells[1].Present)
	assert.True(t, row.Cells[2].Editable)
	assert.False(t, row.Cells[2].Present)
	assert.Equal(t, 1, row.Stats.Present)
	assert.Equal(t, 2, row.Stats.Total)
	assert.Equal(t, 50, row.Stats.Percent)
}
