package models

import "time"

// Participant captures the person a signup is for, together with the
// guardian contact details collected on the public signup form.
type Participant struct {
	ID          string    `db:"id" json:"id"`
	FullName    string    `db:"full_name" json:"full_name"`
	Email       string    `db:"email" json:"email"`
	SchoolYear  string    `db:"school_year" json:"school_year"`
	ParentName  string    `db:"parent_name" json:"parent_name"`
	ParentPhone string    `db:"parent_phone" json:"parent_phone"`
	NeedsDevice bool      `db:"needs_device" json:"needs_device"`
	MedicalInfo *string   `db:"medical_info" json:"medical_info,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
