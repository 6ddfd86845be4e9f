package models

import "time"

// SessionStatus is the lifecycle state of a dated class occurrence.
type SessionStatus string

const (
	SessionNotCompleted SessionStatus = "not_completed"
	SessionCompleted    SessionStatus = "completed"
	SessionCancelled    SessionStatus = "cancelled"
	SessionRescheduled  SessionStatus = "rescheduled"
)

// Terminal reports whether no further transitions are allowed.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled || s == SessionRescheduled
}

// ClassSession is one dated occurrence of a timetable slot, or a standalone
// session created by rescheduling. Sessions are never physically deleted;
// status is the terminal marker preserving the audit trail.
type ClassSession struct {
	ID              string        `db:"id" json:"id"`
	FacultyID       string        `db:"faculty_id" json:"faculty_id"`
	GroupID         string        `db:"group_id" json:"group_id"`
	Subject         string        `db:"subject" json:"subject"`
	StartsAt        time.Time     `db:"starts_at" json:"starts_at"`
	DurationHours   int           `db:"duration_hours" json:"duration_hours"`
	Status          SessionStatus `db:"status" json:"status"`
	Topic           string        `db:"topic" json:"topic,omitempty"`
	Notes           string        `db:"notes" json:"notes,omitempty"`
	RescheduledFrom *string       `db:"rescheduled_from" json:"rescheduled_from,omitempty"`
	RescheduledTo   *string       `db:"rescheduled_to" json:"rescheduled_to,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// EndsAt returns the exclusive end instant of the session window.
func (s ClassSession) EndsAt() time.Time {
	hours := s.DurationHours
	if hours <= 0 {
		hours = 1
	}
	return s.StartsAt.Add(time.Duration(hours) * time.Hour)
}

// ClassSessionFilter narrows session listings.
type ClassSessionFilter struct {
	FacultyID string
	GroupID   string
	Status    SessionStatus
	From      *time.Time
	To        *time.Time
}

// LineageViolation describes a rescheduled session whose successor link is
// missing or dangling.
type LineageViolation struct {
	SessionID     string  `db:"session_id" json:"session_id"`
	FacultyID     string  `db:"faculty_id" json:"faculty_id"`
	RescheduledTo *string `db:"rescheduled_to" json:"rescheduled_to,omitempty"`
	Problem       string  `db:"problem" json:"problem"`
}
