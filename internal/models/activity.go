package models

import "time"

// ActivityType classifies ad-hoc busy blocks.
type ActivityType string

const (
	ActivityMeeting         ActivityType = "meeting"
	ActivityPaperCorrection ActivityType = "paper_correction"
	ActivityAdministrative  ActivityType = "administrative"
	ActivityResearch        ActivityType = "research"
	ActivityOther           ActivityType = "other"
)

// KnownActivityType reports whether t is one of the supported types.
func KnownActivityType(t ActivityType) bool {
	switch t {
	case ActivityMeeting, ActivityPaperCorrection, ActivityAdministrative, ActivityResearch, ActivityOther:
		return true
	}
	return false
}

// Activity is an ad-hoc busy block for a faculty member, independent of the
// weekly template. MeetingID back-references the meeting that derived it,
// when the activity was created by the meeting workflow.
type Activity struct {
	ID           string       `db:"id" json:"id"`
	FacultyID    string       `db:"faculty_id" json:"faculty_id"`
	ActivityType ActivityType `db:"activity_type" json:"activity_type"`
	Title        string       `db:"title" json:"title"`
	Description  string       `db:"description" json:"description,omitempty"`
	StartsAt     time.Time    `db:"starts_at" json:"starts_at"`
	EndsAt       time.Time    `db:"ends_at" json:"ends_at"`
	MeetingID    *string      `db:"meeting_id" json:"meeting_id,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// ActivityFilter narrows activity listings.
type ActivityFilter struct {
	FacultyID    string
	ActivityType ActivityType
	From         *time.Time
	To           *time.Time
}
