package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiwicoders/sessions-api/internal/models"
	appErrors "github.com/kiwicoders/sessions-api/pkg/errors"
)

type mockTermRepo struct {
	terms   map[string]models.Term
	inUse   map[string]bool
	deleted []string
}

func (m *mockTermRepo) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	var out []models.Term
	for _, term := range m.terms {
		out = append(out, term)
	}
	return out, len(out), nil
}

func (m *mockTermRepo) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if term, ok := m.terms[id]; ok {
		return &term, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermRepo) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = "term-new"
	}
	if m.terms == nil {
		m.terms = make(map[string]models.Term)
	}
	m.terms[term.ID] = *term
	return nil
}

func (m *mockTermRepo) Update(ctx context.Context, term *models.Term) error {
	m.terms[term.ID] = *term
	return nil
}

func (m *mockTermRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.terms, id)
	return nil
}

func (m *mockTermRepo) InUse(ctx context.Context, id string) (bool, error) {
	return m.inUse[id], nil
}

func TestTermCreateNormalizesDates(t *testing.T) {
	repo := &mockTermRepo{}
	svc := NewTermService(repo, nil, nil)

	term, err := svc.Create(context.Background(), CreateTermRequest{
		Name:      "Term 1 2025",
		StartDate: date(2025, 1, 6).Add(9 * time.Hour),
		EndDate:   date(2025, 4, 11).Add(17 * time.Hour),
		Year:      2025,
	})

	require.NoError(t, err)
	assert.Equal(t, date(2025, 1, 6), term.StartDate)
	assert.Equal(t, date(2025, 4, 11), term.EndDate)
}

func TestTermCreateRejectsInvertedWindow(t *testing.T) {
	svc := NewTermService(&mockTermRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateTermRequest{
		Name:      "Backwards",
		StartDate: date(2025, 4, 11),
		EndDate:   date(2025, 1, 6),
		Year:      2025,
	})

	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestTermDeleteBlockedWhenAttached(t *testing.T) {
	repo := &mockTermRepo{
		terms: map[string]models.Term{"term-1": {ID: "term-1", Name: "Term 1"}},
		inUse: map[string]bool{"term-1": true},
	}
	svc := NewTermService(repo, nil, nil)

	err := svc.Delete(context.Background(), "term-1")

	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Empty(t, repo.deleted)
}

func TestTermDeleteRemovesUnattachedTerm(t *testing.T) {
	repo := &mockTermRepo{
		terms: map[string]models.Term{"term-1": {ID: "term-1", Name: "Term 1"}},
	}
	svc := NewTermService(repo, nil, nil)

	err := svc.Delete(context.Background(), "term-1")

	require.NoError(t, err)
	assert.Equal(t, []string{"term-1"}, repo.deleted)
}

func TestTermGetNotFound(t *testing.T) {
	svc := NewTermService(&mockTermRepo{}, nil, nil)

	_, err := svc.Get(context.Background(), "missing")

	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
