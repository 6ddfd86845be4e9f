package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday names used as keys in a weekly schedule. Sunday is accepted but
// unused by the default institution calendar.
var Weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// WeekdayName returns the lowercase schedule key for a weekday.
func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// Slot is a single recurring teaching block inside a weekly schedule.
type Slot struct {
	GroupID       string `json:"group_id" validate:"required"`
	Subject       string `json:"subject" validate:"required"`
	DurationHours int    `json:"duration,omitempty"`
	Topic         string `json:"topic,omitempty"`
}

// Duration returns the slot length, defaulting to one hour.
func (s Slot) Duration() time.Duration {
	hours := s.DurationHours
	if hours <= 0 {
		hours = 1
	}
	return time.Duration(hours) * time.Hour
}

// DaySchedule maps a period (hour-of-day, as a decimal string key) to a slot.
type DaySchedule map[string]Slot

// WeeklySchedule maps weekday name to that day's period slots. At most one
// slot may occupy a (day, period) pair.
type WeeklySchedule map[string]DaySchedule

// Value implements driver.Valuer so the schedule persists as JSONB.
func (w WeeklySchedule) Value() (driver.Value, error) {
	if w == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(w)
}

// Scan implements sql.Scanner.
func (w *WeeklySchedule) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*w = WeeklySchedule{}
		return nil
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	default:
		return fmt.Errorf("unsupported weekly schedule source type %T", src)
	}
}

// Validate checks weekday keys, period bounds and slot payloads.
func (w WeeklySchedule) Validate() error {
	for day, periods := range w {
		if _, ok := Weekdays[day]; !ok {
			return fmt.Errorf("unknown weekday %q", day)
		}
		for period, slot := range periods {
			hour, err := strconv.Atoi(period)
			if err != nil || hour < 0 || hour > 23 {
				return fmt.Errorf("invalid period %q on %s", period, day)
			}
			if slot.GroupID == "" {
				return fmt.Errorf("slot %s %s is missing a group", day, period)
			}
			if slot.Subject == "" {
				return fmt.Errorf("slot %s %s is missing a subject", day, period)
			}
			if slot.DurationHours < 0 {
				return fmt.Errorf("slot %s %s has a negative duration", day, period)
			}
		}
	}
	return nil
}

// Timetable is the recurring weekly template owned 1:1 by a faculty member.
type Timetable struct {
	ID             string         `db:"id" json:"id"`
	FacultyID      string         `db:"faculty_id" json:"faculty_id"`
	WeeklySchedule WeeklySchedule `db:"weekly_schedule" json:"weekly_schedule"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// StudentTimetable is a read model composed from every faculty timetable
// slot addressed to the student's group.
type StudentTimetable struct {
	StudentID      string                        `json:"student_id"`
	GroupID        string                        `json:"group_id"`
	WeeklySchedule map[string]map[string]GroupSlot `json:"weekly_schedule"`
}

// GroupSlot is a slot annotated with the owning faculty identity.
type GroupSlot struct {
	Slot
	FacultyID string `json:"faculty_id"`
}

// AvailableSlot is a free one-hour block in a faculty's upcoming schedule.
type AvailableSlot struct {
	Date string `json:"date"`
	Day  string `json:"day"`
	Time string `json:"time"`
}
