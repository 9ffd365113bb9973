package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/kiwicoders/sessions-api/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)
	records := []models.AttendanceRecord{
		{SessionID: "ses-1", EnrollmentID: "enr-1", Date: date, Present: true},
		{SessionID: "ses-1", EnrollmentID: "enr-2", Date: date, Present: false},
	}

	upsert := regexp.QuoteMeta("INSERT INTO attendance_records (id, session_id, enrollment_id, date, present, created_at, updated_at)")
	mock.ExpectBegin()
	mock.ExpectExec(upsert).
		WithArgs(sqlmock.AnyArg(), "ses-1", "enr-1", date, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(upsert).
		WithArgs(sqlmock.AnyArg(), "ses-1", "enr-2", date, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.BulkUpsert(context.Background(), records)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkUpsertRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)
	records := []models.AttendanceRecord{
		{SessionID: "ses-1", EnrollmentID: "enr-1", Date: date, Present: true},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WithArgs(sqlmock.AnyArg(), "ses-1", "enr-1", date, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.BulkUpsert(context.Background(), records)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListByEnrollment(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"id", "session_id", "enrollment_id", "date", "present", "created_at", "updated_at"}).
		AddRow("att-1", "ses-1", "enr-1", time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_records WHERE enrollment_id = $1 ORDER BY date ASC")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	records, err := repo.ListByEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.True(t, records[0].Present)
	require.NoError(t, mock.ExpectationsWereMet())
}
