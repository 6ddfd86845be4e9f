package models

import "time"

// NotificationKind tags the event that produced a notification.
type NotificationKind string

const (
	NotificationSystem  NotificationKind = "system"
	NotificationMeeting NotificationKind = "meeting"
	NotificationClass   NotificationKind = "class"
)

// Notification is a persisted, best-effort message to a user. Delivery
// beyond persistence (SMS, push) is out of scope; readers poll.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Message   string           `db:"message" json:"message"`
	Kind      NotificationKind `db:"kind" json:"kind"`
	RelatedID *string          `db:"related_id" json:"related_id,omitempty"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
