package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kiwicoders/sessions-api/internal/models"
	appErrors "github.com/kiwicoders/sessions-api/pkg/errors"
	"github.com/kiwicoders/sessions-api/pkg/export"
	"github.com/kiwicoders/sessions-api/pkg/jobs"
)

type registerJobRepository interface {
	Create(ctx context.Context, job *models.RegisterJob) error
	FindByID(ctx context.Context, id string) (*models.RegisterJob, error)
	List(ctx context.Context, sessionID string, limit int) ([]models.RegisterJob, error)
	UpdateStatus(ctx context.Context, id string, status models.RegisterStatus, filePath, errMsg *string) error
}

type sheetBuilder interface {
	Sheet(ctx context.Context, sessionID string) (*models.AttendanceSheet, error)
}

type registerStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type urlSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// RegisterExportJobType identifies register export jobs on the queue.
const RegisterExportJobType = "register_export"

// RegisterExportRequest asks for an asynchronous register export.
type RegisterExportRequest struct {
	Format models.RegisterFormat `json:"format" validate:"required"`
}

// RegisterJobStatus is the polling view of an export job. DownloadURL is
// set once the job has finished.
type RegisterJobStatus struct {
	models.RegisterJob
	DownloadToken string     `json:"download_token,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// RegisterExportService renders session attendance registers to CSV or PDF
// in the background and hands results out through signed download tokens.
type RegisterExportService struct {
	repo     registerJobRepository
	sessions enrollmentSessionLookup
	sheets   sheetBuilder
	store    registerStorage
	signer   urlSigner
	queue    jobEnqueuer
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewRegisterExportService constructs a RegisterExportService. The queue is
// attached later via SetQueue since the queue handler needs the service.
func NewRegisterExportService(repo registerJobRepository, sessions enrollmentSessionLookup, sheets sheetBuilder, store registerStorage, signer urlSigner, logger *zap.Logger) *RegisterExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegisterExportService{
		repo:     repo,
		sessions: sessions,
		sheets:   sheets,
		store:    store,
		signer:   signer,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// SetQueue wires the background queue used for processing.
func (s *RegisterExportService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// CreateJob queues a register export for a session.
func (s *RegisterExportService) CreateJob(ctx context.Context, sessionID string, req RegisterExportRequest, requestedBy string) (*models.RegisterJob, error) {
	if !req.Format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	job := &models.RegisterJob{
		SessionID:   sessionID,
		Format:      req.Format,
		Status:      models.RegisterStatusQueued,
		RequestedBy: requestedBy,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue is not running")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: RegisterExportJobType, Ref: job.ID}); err != nil {
		msg := "failed to queue export"
		if errors.Is(err, jobs.ErrBacklogFull) {
			msg = "export queue is full"
		}
		if updErr := s.repo.UpdateStatus(ctx, job.ID, models.RegisterStatusFailed, nil, &msg); updErr != nil {
			s.logger.Error("failed to mark export job failed", zap.Error(updErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export job")
	}
	return job, nil
}

// Process renders one queued export. It is the queue handler; returning an
// error makes the queue retry up to its configured limit.
func (s *RegisterExportService) Process(ctx context.Context, job jobs.Job) error {
	jobID := job.Ref
	if jobID == "" {
		return fmt.Errorf("register export job missing record reference")
	}

	record, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}
	if err := s.repo.UpdateStatus(ctx, jobID, models.RegisterStatusProcessing, nil, nil); err != nil {
		return fmt.Errorf("mark export job processing: %w", err)
	}

	if err := s.render(ctx, record); err != nil {
		msg := err.Error()
		if updErr := s.repo.UpdateStatus(ctx, jobID, models.RegisterStatusFailed, nil, &msg); updErr != nil {
			s.logger.Error("failed to mark export job failed", zap.String("job_id", jobID), zap.Error(updErr))
		}
		return err
	}
	return nil
}

func (s *RegisterExportService) render(ctx context.Context, record *models.RegisterJob) error {
	sheet, err := s.sheets.Sheet(ctx, record.SessionID)
	if err != nil {
		return fmt.Errorf("build attendance sheet: %w", err)
	}
	session, err := s.sessions.FindByID(ctx, record.SessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	dataset := registerDataset(sheet)
	var payload []byte
	var ext string
	switch record.Format {
	case models.RegisterFormatPDF:
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("Attendance register - %s", session.Title))
		ext = "pdf"
	default:
		payload, err = s.csv.Render(dataset)
		ext = "csv"
	}
	if err != nil {
		return fmt.Errorf("render register: %w", err)
	}

	filename := fmt.Sprintf("register_%s_%s.%s", record.SessionID, record.ID, ext)
	if _, err := s.store.Save(filename, payload); err != nil {
		return fmt.Errorf("store register: %w", err)
	}
	if err := s.repo.UpdateStatus(ctx, record.ID, models.RegisterStatusFinished, &filename, nil); err != nil {
		return fmt.Errorf("mark export job finished: %w", err)
	}
	return nil
}

// registerDataset flattens the sheet grid into tabular form: one row per
// enrollment, one column per occurrence date in term order, ineligible
// cells left blank.
func registerDataset(sheet *models.AttendanceSheet) export.Dataset {
	headers := []string{"Participant", "School year"}
	var dates []time.Time
	for _, block := range sheet.Blocks {
		for _, date := range block.Dates {
			headers = append(headers, date.Format("2006-01-02"))
			dates = append(dates, date)
		}
	}
	headers = append(headers, "Present", "Total", "Percent")

	rows := make([]map[string]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make(map[time.Time]models.SheetCell, len(row.Cells))
		for _, cell := range row.Cells {
			cells[cell.Date] = cell
		}
		record := map[string]string{
			"Participant": row.ParticipantName,
			"School year": row.SchoolYear,
			"Present":     fmt.Sprintf("%d", row.Stats.Present),
			"Total":       fmt.Sprintf("%d", row.Stats.Total),
			"Percent":     fmt.Sprintf("%d", row.Stats.Percent),
		}
		for _, date := range dates {
			cell, ok := cells[date]
			if !ok || !cell.Editable {
				record[date.Format("2006-01-02")] = ""
				continue
			}
			if cell.Present {
				record[date.Format("2006-01-02")] = "P"
			} else {
				record[date.Format("2006-01-02")] = "A"
			}
		}
		rows = append(rows, record)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// GetStatus returns the current state of an export job, including a signed
// download token when the file is ready.
func (s *RegisterExportService) GetStatus(ctx context.Context, jobID string) (*RegisterJobStatus, error) {
	record, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}

	status := &RegisterJobStatus{RegisterJob: *record}
	if record.Status == models.RegisterStatusFinished && record.FilePath != nil {
		token, expiresAt, err := s.signer.Generate(record.ID, *record.FilePath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
		}
		status.DownloadToken = token
		status.ExpiresAt = &expiresAt
	}
	return status, nil
}

// List returns recent export jobs for a session.
func (s *RegisterExportService) List(ctx context.Context, sessionID string, limit int) ([]models.RegisterJob, error) {
	records, err := s.repo.List(ctx, sessionID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	return records, nil
}

// ResolveDownload validates a signed token and opens the exported file.
func (s *RegisterExportService) ResolveDownload(ctx context.Context, token string) (*os.File, *models.RegisterJob, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link is invalid or expired")
	}
	record, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if record.Status != models.RegisterStatusFinished || record.FilePath == nil || *record.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link does not match a finished export")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return file, record, nil
}
