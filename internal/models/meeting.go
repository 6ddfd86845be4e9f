package models

import "time"

// MeetingStatus is the lifecycle state of a student meeting request.
type MeetingStatus string

const (
	MeetingPending   MeetingStatus = "pending"
	MeetingApproved  MeetingStatus = "approved"
	MeetingRejected  MeetingStatus = "rejected"
	MeetingCompleted MeetingStatus = "completed"
	MeetingCancelled MeetingStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s MeetingStatus) Terminal() bool {
	return s == MeetingRejected || s == MeetingCancelled || s == MeetingCompleted
}

// MeetingAction is a workflow transition requested by an actor.
type MeetingAction string

const (
	MeetingActionApprove  MeetingAction = "approve"
	MeetingActionReject   MeetingAction = "reject"
	MeetingActionCancel   MeetingAction = "cancel"
	MeetingActionComplete MeetingAction = "complete"
)

// DefaultMeetingDurationMinutes applies when a request omits the duration.
const DefaultMeetingDurationMinutes = 30

// Meeting is a student's request for a time slot with a faculty member.
// Meetings are never physically deleted. While approved, exactly one
// activity carries meeting_id = ID; zero otherwise.
type Meeting struct {
	ID              string        `db:"id" json:"id"`
	StudentID       string        `db:"student_id" json:"student_id"`
	FacultyID       string        `db:"faculty_id" json:"faculty_id"`
	PreferredAt     time.Time     `db:"preferred_at" json:"preferred_at"`
	DurationMinutes int           `db:"duration_minutes" json:"duration_minutes"`
	Reason          string        `db:"reason" json:"reason"`
	Status          MeetingStatus `db:"status" json:"status"`
	ResponseMessage *string       `db:"response_message" json:"response_message,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// Window returns the half-open [start, end) interval the meeting occupies.
func (m Meeting) Window() (time.Time, time.Time) {
	minutes := m.DurationMinutes
	if minutes <= 0 {
		minutes = DefaultMeetingDurationMinutes
	}
	return m.PreferredAt, m.PreferredAt.Add(time.Duration(minutes) * time.Minute)
}

// MeetingFilter narrows meeting listings.
type MeetingFilter struct {
	FacultyID string
	StudentID string
	Status    MeetingStatus
	From      *time.Time
	To        *time.Time
}

// MeetingSyncViolation describes an approved meeting whose derived activity
// count breaks the one-activity-per-approved-meeting invariant.
type MeetingSyncViolation struct {
	MeetingID     string `db:"meeting_id" json:"meeting_id"`
	FacultyID     string `db:"faculty_id" json:"faculty_id"`
	ActivityCount int    `db:"activity_count" json:"activity_count"`
}
