package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiwicoders/sessions-api/internal/models"
	appErrors "github.com/kiwicoders/sessions-api/pkg/errors"
)

type mockSessionRepo struct {
	sessions map[string]models.Session
	termIDs  []string
	deleted  []string
}

func (m *mockSessionRepo) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	var out []models.Session
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockSessionRepo) ListAll(ctx context.Context) ([]models.Session, error) {
	sessions, _, err := m.List(ctx, models.SessionFilter{})
	return sessions, err
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session, termIDs []string) error {
	if session.ID == "" {
		session.ID = "ses-new"
	}
	if m.sessions == nil {
		m.sessions = make(map[string]models.Session)
	}
	m.sessions[session.ID] = *session
	m.termIDs = termIDs
	return nil
}

func (m *mockSessionRepo) Update(ctx context.Context, session *models.Session, termIDs []string) error {
	m.sessions[session.ID] = *session
	m.termIDs = termIDs
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.sessions, id)
	return nil
}

type mockTermLookup struct {
	terms map[string]models.Term
}

func (m *mockTermLookup) FindByIDs(ctx context.Context, ids []string) ([]models.Term, error) {
	var out []models.Term
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if term, ok := m.terms[id]; ok {
			out = append(out, term)
		}
	}
	return out, nil
}

type recordingInvalidator struct {
	calls int
}

func (r *recordingInvalidator) InvalidateCalendar(ctx context.Context) error {
	r.calls++
	return nil
}

func validSessionRequest() SessionRequest {
	return SessionRequest{
		Title:     "Coding Club",
		Weekday:   3,
		StartTime: "16:00",
		EndTime:   "17:30",
		Location:  "Community Hall",
		City:      "Wellington",
		Capacity:  20,
		MinAge:    8,
		MaxAge:    12,
		TermIDs:   []string{"term-1"},
	}
}

func newSessionFixture() (*SessionService, *mockSessionRepo, *recordingInvalidator) {
	repo := &mockSessionRepo{}
	terms := &mockTermLookup{terms: map[string]models.Term{
		"term-1": {ID: "term-1", Name: "Term 1"},
	}}
	invalidator := &recordingInvalidator{}
	return NewSessionService(repo, terms, invalidator, nil, nil), repo, invalidator
}

func TestSessionCreateStoresTermOrder(t *testing.T) {
	svc, repo, invalidator := newSessionFixture()

	session, err := svc.Create(context.Background(), validSessionRequest())

	require.NoError(t, err)
	assert.Equal(t, "Coding Club", session.Title)
	assert.Equal(t, []string{"term-1"}, repo.termIDs)
	assert.Equal(t, 1, invalidator.calls)
}

func TestSessionCreateRejectsBadClock(t *testing.T) {
	svc, _, _ := newSessionFixture()
	req := validSessionRequest()
	req.StartTime = "4pm"

	_, err := svc.Create(context.Background(), req)

	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSessionCreateRejectsUnknownTerm(t *testing.T) {
	svc, _, _ := newSessionFixture()
	req := validSessionRequest()
	req.TermIDs = []string{"term-1", "term-missing"}

	_, err := svc.Create(context.Background(), req)

	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSessionCreateRejectsEndBeforeStart(t *testing.T) {
	svc, _, _ := newSessionFixture()
	req := validSessionRequest()
	req.StartTime = "17:00"
	req.EndTime = "16:00"

	_, err := svc.Create(context.Background(), req)

	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSessionCreateRejectsEqualClocks(t *testing.T) {
	svc, _, _ := newSessionFixture()
	req := validSessionRequest()
	req.StartTime = "16:00"
	req.EndTime = "16:00"

	_, err := svc.Create(context.Background(), req)

	require.Error(t, err)
}

func TestSessionCreateRejectsAgeRange(t *testing.T) {
	svc, _, _ := newSessionFixture()

	for _, ages := range []struct{ min, max int }{
		{14, 10},
		{10, 10},
	} {
		req := validSessionRequest()
		req.MinAge = ages.min
		req.MaxAge = ages.max

		_, err := svc.Create(context.Background(), req)

		require.Error(t, err)
		appErr, ok := err.(*appErrors.Error)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}
}

func TestSessionUpdateKeepsCreatedAt(t *testing.T) {
	svc, repo, _ := newSessionFixture()
	created, err := svc.Create(context.Background(), validSessionRequest())
	require.NoError(t, err)

	req := validSessionRequest()
	req.Title = "Coding Club (updated)"
	updated, err := svc.Update(context.Background(), created.ID, req)

	require.NoError(t, err)
	assert.Equal(t, "Coding Club (updated)", updated.Title)
	assert.Equal(t, created.CreatedAt, repo.sessions[created.ID].CreatedAt)
}

func TestSessionDeleteInvalidatesCalendar(t *testing.T) {
	svc, repo, invalidator := newSessionFixture()
	created, err := svc.Create(context.Background(), validSessionRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))

	assert.Equal(t, []string{created.ID}, repo.deleted)
	assert.Equal(t, 2, invalidator.calls)
}
