package models

import "time"

// EnrollmentStatus represents the admission state of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Transitions are free in every direction;
// WAITLISTED is the initial state and there is no terminal state.
const (
	EnrollmentStatusWaitlisted EnrollmentStatus = "WAITLISTED"
	EnrollmentStatusAdmitted   EnrollmentStatus = "ADMITTED"
	EnrollmentStatusWithdrawn  EnrollmentStatus = "WITHDRAWN"
)

// Valid returns true when the status is a supported value.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusWaitlisted, EnrollmentStatusAdmitted, EnrollmentStatusWithdrawn:
		return true
	default:
		return false
	}
}

// Enrollment captures a participant's relationship to a session. CreatedAt
// is the anchor for attendance eligibility and is immutable once set: status
// transitions, including re-admission, never touch it.
type Enrollment struct {
	ID            string           `db:"id" json:"id"`
	SessionID     string           `db:"session_id" json:"session_id"`
	ParticipantID string           `db:"participant_id" json:"participant_id"`
	Status        EnrollmentStatus `db:"status" json:"status"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with participant info for listings.
type EnrollmentDetail struct {
	Enrollment
	ParticipantName  string `db:"participant_name" json:"participant_name"`
	ParticipantEmail string `db:"participant_email" json:"participant_email"`
	SchoolYear       string `db:"school_year" json:"school_year"`
	ParentName       string `db:"parent_name" json:"parent_name"`
	ParentPhone      string `db:"parent_phone" json:"parent_phone"`
	NeedsDevice      bool   `db:"needs_device" json:"needs_device"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	SessionID     string
	ParticipantID string
	Status        EnrollmentStatus
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// EnrollmentSummary carries per-status counts for a session's waitlist view.
type EnrollmentSummary struct {
	Total      int `json:"total"`
	Waitlisted int `json:"waitlisted"`
	Admitted   int `json:"admitted"`
	Withdrawn  int `json:"withdrawn"`
}
