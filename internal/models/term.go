package models

import "time"

// Term models an administratively-defined date window (e.g. "Term 1 2025")
// against which sessions are scheduled.
type Term struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	Year      int       `db:"year" json:"year"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DateWindow is the inclusive date range a term contributes to a session.
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Window returns the term's date window.
func (t Term) Window() DateWindow {
	return DateWindow{Start: t.StartDate, End: t.EndDate}
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	Year      int
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
