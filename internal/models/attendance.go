package models

import "time"

// AttendanceRecord stores one presence boolean per (enrollment, occurrence
// date). Records are only ever created or overwritten, never deleted, and
// only for dates on or after the enrollment's creation date.
type AttendanceRecord struct {
	ID           string    `db:"id" json:"id"`
	SessionID    string    `db:"session_id" json:"session_id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Date         time.Time `db:"date" json:"date"`
	Present      bool      `db:"present" json:"present"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AttendanceStats summarises presence for one enrollment. Total counts the
// eligible occurrence dates; dates with no stored record count as absent.
type AttendanceStats struct {
	Present int `json:"present"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// SheetCell is one date cell in the attendance grid. Editable is false for
// occurrences before the enrollment joined.
type SheetCell struct {
	Date     time.Time `json:"date"`
	Present  bool      `json:"present"`
	Editable bool      `json:"editable"`
}

// SheetRow is one admitted enrollment's row in the attendance grid.
type SheetRow struct {
	EnrollmentID    string          `json:"enrollment_id"`
	ParticipantName string          `json:"participant_name"`
	SchoolYear      string          `json:"school_year"`
	Cells           []SheetCell     `json:"cells"`
	Stats           AttendanceStats `json:"stats"`
}

// SheetTermBlock groups a sheet's date columns by the term that produced
// them, preserving the session's term ordering.
type SheetTermBlock struct {
	TermID   string      `json:"term_id"`
	TermName string      `json:"term_name"`
	Dates    []time.Time `json:"dates"`
}

// AttendanceSheet is the full grid for a session.
type AttendanceSheet struct {
	SessionID string           `json:"session_id"`
	Blocks    []SheetTermBlock `json:"blocks"`
	Rows      []SheetRow       `json:"rows"`
}

// SkippedAttendance reports a bulk-save entry the ledger refused to persist.
type SkippedAttendance struct {
	EnrollmentID string    `json:"enrollment_id"`
	Date         time.Time `json:"date"`
	Reason       string    `json:"reason"`
}
