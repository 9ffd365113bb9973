package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiwicoders/sessions-api/internal/models"
	"github.com/kiwicoders/sessions-api/internal/repository"
	appErrors "github.com/kiwicoders/sessions-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments   map[string]models.Enrollment
	names         map[string]string
	existing      map[string]bool
	created       *models.Enrollment
	transitionErr error
	transitioned  []string
	target        models.EnrollmentStatus
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var details []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if filter.SessionID != "" && e.SessionID != filter.SessionID {
			continue
		}
		details = append(details, models.EnrollmentDetail{Enrollment: e})
	}
	return details, len(details), nil
}

func (m *mockEnrollmentRepo) ListBySession(ctx context.Context, sessionID string, status models.EnrollmentStatus) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.SessionID != sessionID {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockEnrollmentRepo) ListDetailsBySession(ctx context.Context, sessionID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	enrollments, err := m.ListBySession(ctx, sessionID, status)
	if err != nil {
		return nil, err
	}
	details := make([]models.EnrollmentDetail, 0, len(enrollments))
	for _, e := range enrollments {
		details = append(details, models.EnrollmentDetail{Enrollment: e, ParticipantName: m.names[e.ID]})
	}
	sort.Slice(details, func(i, j int) bool { return details[i].ParticipantName < details[j].ParticipantName })
	return details, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = "enr-new"
	}
	enrollment.CreatedAt = time.Now().UTC()
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) ExistsForParticipant(ctx context.Context, sessionID, participantID string) (bool, error) {
	return m.existing[sessionID+participantID], nil
}

func (m *mockEnrollmentRepo) Summary(ctx context.Context, sessionID string) (*models.EnrollmentSummary, error) {
	return &models.EnrollmentSummary{Total: len(m.enrollments)}, nil
}

func (m *mockEnrollmentRepo) BulkTransition(ctx context.Context, sessionID string, enrollmentIDs []string, target models.EnrollmentStatus) error {
	if m.transitionErr != nil {
		return m.transitionErr
	}
	m.transitioned = enrollmentIDs
	m.target = target
	return nil
}

type mockParticipantRepo struct {
	byEmail map[string]models.Participant
	created *models.Participant
}

func (m *mockParticipantRepo) FindByEmail(ctx context.Context, email string) (*models.Participant, error) {
	if p, ok := m.byEmail[email]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockParticipantRepo) Create(ctx context.Context, participant *models.Participant) error {
	if participant.ID == "" {
		participant.ID = "par-new"
	}
	m.created = participant
	return nil
}

func newEnrollmentService(repo *mockEnrollmentRepo, participants *mockParticipantRepo, sessions *stubSessionRepo) *EnrollmentService {
	return NewEnrollmentService(repo, participants, sessions, nil, nil)
}

func validSignup() SignupRequest {
	return SignupRequest{
		SessionID:   "ses-1",
		FullName:    "Jamie Example",
		Email:       "jamie@example.com",
		SchoolYear:  "Year 7",
		ParentName:  "Alex Example",
		ParentPhone: "021 000 0000",
	}
}

func TestSignupCreatesWaitlistedEnrollment(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	participants := &mockParticipantRepo{}
	sessions := &stubSessionRepo{sessions: map[string]models.Session{"ses-1": wednesdaySession()}}
	svc := newEnrollmentService(repo, participants, sessions)

	enrollment, err := svc.Signup(context.Background(), validSignup())

	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, enrollment.Status)
	require.NotNil(t, participants.created)
	assert.Equal(t, "jamie@example.com", participants.created.Email)
	assert.Equal(t, participants.created.ID, enrollment.ParticipantID)
}

func TestSignupReusesParticipantByEmail(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	participants := &mockParticipantRepo{byEmail: map[string]models.Participant{
		"jamie@example.com": {ID: "par-1", Email: "jamie@example.com"},
	}}
	sessions := &stubSessionRepo{sessions: map[string]models.Session{"ses-1": wednesdaySession()}}
	svc := newEnrollmentService(repo, participants, sessions)

	enrollment, err := svc.Signup(context.Background(), validSignup())

	require.NoError(t, err)
	assert.Nil(t, participants.created)
	assert.Equal(t, "par-1", enrollment.ParticipantID)
}

func TestSignupRejectsDuplicateEnrollment(t *testing.T) {
	repo := &mockEnrollmentRepo{existing: map[string]bool{"ses-1par-1": true}}
	participants := &mockParticipantRepo{byEmail: map[string]models.Participant{
		"jamie@example.com": {ID: "par-1", Email: "jamie@example.com"},
	}}
	sessions := &stubSessionRepo{sessions: map[string]models.Session{"ses-1": wednesdaySession()}}
	svc := newEnrollmentService(repo, participants, sessions)

	_, err := svc.Signup(context.Background(), validSignup())

	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestSignupUnknownSession(t *testing.T) {
	svc := newEnrollmentService(&mockEnrollmentRepo{}, &mockParticipantRepo{}, &stubSessionRepo{})

	_, err := svc.Signup(context.Background(), validSignup())

	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestBulkTransitionMapsCapacityError(t *testing.T) {
	repo := &mockEnrollmentRepo{transitionErr: &repository.CapacityError{Available: 1}}
	sessions := &stubSessionRepo{sessions: map[string]models.Session{"ses-1": wednesdaySession()}}
	svc := newEnrollmentService(repo, &mockParticipantRepo{}, sessions)

	err := svc.BulkTransition(context.Background(), "ses-1", BulkTransitionRequest{
		EnrollmentIDs: []string{"enr-1", "enr-2"},
		Status:        models.EnrollmentStatusAdmitted,
	})

	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, "CAPACITY_EXCEEDED", appErr.Code)
	details, ok := appErr.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1, details["available"])
	assert.Nil(t, repo.transitioned)
}

func TestBulkTransitionMapsMissingEnrollments(t *testing.T) {
	repo := &mockEnrollmentRepo{transitionErr: &repository.MissingEnrollmentsError{IDs: []string{"enr-x"}}}
	sessions := &stubSessionRepo{sessions: map[string]models.Session{"ses-1": wednesdaySession()}}
	svc := newEnrollmentService(repo, &mockParticipantRepo{}, sessions)

	err := svc.BulkTransition(context.Background(), "ses-1", BulkTransitionRequest{
		EnrollmentIDs: []string{"enr-x"},
		Status:        models.EnrollmentStatusWithdrawn,
	})

	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestBulkTransitionAllowsAnyDirection(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	sessions := &stubSessionRepo{sessions: map[string]models.Session{"ses-1": wednesdaySession()}}
	svc := newEnrollmentService(repo, &mockParticipantRepo{}, sessions)

	for _, target := range []models.EnrollmentStatus{
		models.EnrollmentStatusAdmitted,
		models.EnrollmentStatusWaitlisted,
		models.EnrollmentStatusWithdrawn,
	} {
		err := svc.BulkTransition(context.Background(), "ses-1", BulkTransitionRequest{
			EnrollmentIDs: []string{"enr-1"},
			Status:        target,
		})
		require.NoError(t, err)
		assert.Equal(t, target, repo.target)
	}
}

func TestBulkTransitionRejectsUnknownStatus(t *testing.T) {
	sessions := &stubSessionRepo{sessions: map[string]models.Session{"ses-1": wednesdaySession()}}
	svc := newEnrollmentService(&mockEnrollmentRepo{}, &mockParticipantRepo{}, sessions)

	err := svc.BulkTransition(context.Background(), "ses-1", BulkTransitionRequest{
		EnrollmentIDs: []string{"enr-1"},
		Status:        models.EnrollmentStatus("EXPELLED"),
	})

	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestBulkTransitionDeduplicatesIDs(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	sessions := &stubSessionRepo{sessions: map[string]models.Session{"ses-1": wednesdaySession()}}
	svc := newEnrollmentService(repo, &mockParticipantRepo{}, sessions)

	err := svc.BulkTransition(context.Background(), "ses-1", BulkTransitionRequest{
		EnrollmentIDs: []string{"enr-1", "enr-1", "enr-2"},
		Status:        models.EnrollmentStatusAdmitted,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"enr-1", "enr-2"}, repo.transitioned)
}
