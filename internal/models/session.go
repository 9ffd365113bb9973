package models

import "time"

// Session models a recurring weekly session. Terms carries the session's
// term associations in the order an admin attached them; occurrence
// generation and register exports preserve that ordering.
type Session struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Weekday     int       `db:"weekday" json:"weekday"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	Location    string    `db:"location" json:"location"`
	City        string    `db:"city" json:"city"`
	LocationURL *string   `db:"location_url" json:"location_url,omitempty"`
	Capacity    int       `db:"capacity" json:"capacity"`
	MinAge      int       `db:"min_age" json:"min_age"`
	MaxAge      int       `db:"max_age" json:"max_age"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	Terms []Term `db:"-" json:"terms,omitempty"`
}

// WeekdayValue converts the stored 0-6 weekday (Sunday = 0) to time.Weekday.
func (s Session) WeekdayValue() time.Weekday {
	return time.Weekday(s.Weekday)
}

// Occurrence is one concrete calendar instance of a recurring session.
// Occurrences are derived from the session and its terms on demand and
// never persisted.
type Occurrence struct {
	SessionID string    `json:"session_id"`
	TermID    string    `json:"term_id"`
	Date      time.Time `json:"date"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
}

// CalendarEntry is an occurrence enriched with session display info for the
// admin calendar feed.
type CalendarEntry struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Location  string    `json:"location"`
	City      string    `json:"city"`
	Date      time.Time `json:"date"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
}

// SessionFilter provides filters for listing sessions.
type SessionFilter struct {
	TermID    string
	City      string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
