package service

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiwicoders/sessions-api/internal/models"
	appErrors "github.com/kiwicoders/sessions-api/pkg/errors"
	"github.com/kiwicoders/sessions-api/pkg/jobs"
	"github.com/kiwicoders/sessions-api/pkg/storage"
)

type mockRegisterJobRepo struct {
	jobs     map[string]*models.RegisterJob
	statuses []models.RegisterStatus
	filePath *string
	errMsg   *string
}

func newMockRegisterJobRepo() *mockRegisterJobRepo {
	return &mockRegisterJobRepo{jobs: map[string]*models.RegisterJob{}}
}

func (m *mockRegisterJobRepo) Create(ctx context.Context, job *models.RegisterJob) error {
	job.ID = "job-1"
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt
	stored := *job
	m.jobs[job.ID] = &stored
	return nil
}

func (m *mockRegisterJobRepo) FindByID(ctx context.Context, id string) (*models.RegisterJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (m *mockRegisterJobRepo) List(ctx context.Context, sessionID string, limit int) ([]models.RegisterJob, error) {
	var out []models.RegisterJob
	for _, job := range m.jobs {
		if job.SessionID == sessionID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *mockRegisterJobRepo) UpdateStatus(ctx context.Context, id string, status models.RegisterStatus, filePath, errMsg *string) error {
	m.statuses = append(m.statuses, status)
	m.filePath = filePath
	m.errMsg = errMsg
	if job, ok := m.jobs[id]; ok {
		job.Status = status
		job.FilePath = filePath
		job.Error = errMsg
	}
	return nil
}

type recordingEnqueuer struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingEnqueuer) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type stubSheetBuilder struct {
	sheet *models.AttendanceSheet
}

func (s *stubSheetBuilder) Sheet(ctx context.Context, sessionID string) (*models.AttendanceSheet, error) {
	return s.sheet, nil
}

func registerSheet() *models.AttendanceSheet {
	return &models.AttendanceSheet{
		SessionID: "ses-1",
		Blocks: []models.SheetTermBlock{
			{TermID: "term-1", TermName: "Term 1", Dates: []time.Time{date(2025, 1, 8), date(2025, 1, 15)}},
		},
		Rows: []models.SheetRow{
			{
				EnrollmentID:    "enr-1",
				ParticipantName: "Alice Example",
				SchoolYear:      "Year 7",
				Cells: []models.SheetCell{
					{Date: date(2025, 1, 8), Present: true, Editable: true},
					{Date: date(2025, 1, 15), Present: false, Editable: false},
				},
				Stats: models.AttendanceStats{Present: 1, Total: 1, Percent: 100},
			},
		},
	}
}

func exportFixture(t *testing.T) (*RegisterExportService, *mockRegisterJobRepo, *recordingEnqueuer) {
	t.Helper()
	repo := newMockRegisterJobRepo()
	sessions := &stubSessionRepo{sessions: map[string]models.Session{"ses-1": wednesdaySession()}}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewDownloadTokenSigner("test-secret", time.Hour)
	svc := NewRegisterExportService(repo, sessions, &stubSheetBuilder{sheet: registerSheet()}, store, signer, nil)
	queue := &recordingEnqueuer{}
	svc.SetQueue(queue)
	return svc, repo, queue
}

func TestCreateJobQueuesExport(t *testing.T) {
	svc, repo, queue := exportFixture(t)

	job, err := svc.CreateJob(context.Background(), "ses-1", RegisterExportRequest{Format: models.RegisterFormatCSV}, "user-1")

	require.NoError(t, err)
	assert.Equal(t, models.RegisterStatusQueued, job.Status)
	assert.Equal(t, "user-1", job.RequestedBy)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, RegisterExportJobType, queue.jobs[0].Type)
	assert.Equal(t, job.ID, queue.jobs[0].Ref)
	assert.Empty(t, repo.statuses)
}

func TestCreateJobRejectsUnknownFormat(t *testing.T) {
	svc, _, queue := exportFixture(t)

	_, err := svc.CreateJob(context.Background(), "ses-1", RegisterExportRequest{Format: "xlsx"}, "")

	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, queue.jobs)
}

func TestCreateJobUnknownSession(t *testing.T) {
	svc, _, _ := exportFixture(t)

	_, err := svc.CreateJob(context.Background(), "missing", RegisterExportRequest{Format: models.RegisterFormatCSV}, "")

	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCreateJobFullQueueMarksJobFailed(t *testing.T) {
	svc, repo, queue := exportFixture(t)
	queue.err = assert.AnError

	_, err := svc.CreateJob(context.Background(), "ses-1", RegisterExportRequest{Format: models.RegisterFormatPDF}, "")

	require.Error(t, err)
	require.Len(t, repo.statuses, 1)
	assert.Equal(t, models.RegisterStatusFailed, repo.statuses[0])
	require.NotNil(t, repo.errMsg)
}

func TestProcessRendersCSVAndFinishes(t *testing.T) {
	svc, repo, _ := exportFixture(t)
	job, err := svc.CreateJob(context.Background(), "ses-1", RegisterExportRequest{Format: models.RegisterFormatCSV}, "")
	require.NoError(t, err)

	err = svc.Process(context.Background(), jobs.Job{ID: job.ID, Type: RegisterExportJobType, Ref: job.ID})

	require.NoError(t, err)
	require.Equal(t, []models.RegisterStatus{models.RegisterStatusProcessing, models.RegisterStatusFinished}, repo.statuses)
	require.NotNil(t, repo.filePath)

	stored, err := repo.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FilePath)

	status, err := svc.GetStatus(context.Background(), job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, status.DownloadToken)
	require.NotNil(t, status.ExpiresAt)

	file, downloaded, err := svc.ResolveDownload(context.Background(), status.DownloadToken)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, job.ID, downloaded.ID)

	content, err := os.ReadFile(file.Name())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Participant,School year,2025-01-08,2025-01-15,Present,Total,Percent", lines[0])
	assert.Equal(t, "Alice Example,Year 7,P,,1,1,100", lines[1])
}

func TestProcessMissingRecordReference(t *testing.T) {
	svc, _, _ := exportFixture(t)

	err := svc.Process(context.Background(), jobs.Job{Type: RegisterExportJobType})

	require.Error(t, err)
}

func TestResolveDownloadRejectsTamperedToken(t *testing.T) {
	svc, _, _ := exportFixture(t)
	job, err := svc.CreateJob(context.Background(), "ses-1", RegisterExportRequest{Format: models.RegisterFormatCSV}, "")
	require.NoError(t, err)
	require.NoError(t, svc.Process(context.Background(), jobs.Job{ID: job.ID, Ref: job.ID}))

	status, err := svc.GetStatus(context.Background(), job.ID)
	require.NoError(t, err)

	_, _, err = svc.ResolveDownload(context.Background(), status.DownloadToken+"x")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
