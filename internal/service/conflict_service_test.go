package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/faculty-api/internal/models"
)

type stubTimetableFinder struct {
	timetable *models.Timetable
}

func (s *stubTimetableFinder) FindByFaculty(ctx context.Context, facultyID string) (*models.Timetable, error) {
	if s.timetable == nil {
		return nil, sql.ErrNoRows
	}
	return s.timetable, nil
}

type stubActivityOverlaps struct {
	activities []models.Activity
	gotExclude string
}

func (s *stubActivityOverlaps) ListOverlapping(ctx context.Context, facultyID string, start, end time.Time, excludeID string) ([]models.Activity, error) {
	s.gotExclude = excludeID
	var out []models.Activity
	for _, a := range s.activities {
		if a.ID == excludeID {
			continue
		}
		if a.StartsAt.Before(end) && a.EndsAt.After(start) {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubHolidayChecker struct {
	dates []time.Time
}

func (s *stubHolidayChecker) ExistsInRange(ctx context.Context, from, to time.Time) (bool, error) {
	for _, d := range s.dates {
		day := models.NormalizeDate(d)
		if !day.Before(models.NormalizeDate(from)) && !day.After(models.NormalizeDate(to)) {
			return true, nil
		}
	}
	return false, nil
}

type stubSessionOverlaps struct {
	sessions   []models.ClassSession
	gotExclude string
}

func (s *stubSessionOverlaps) ListOverlapping(ctx context.Context, facultyID string, start, end time.Time, excludeID string) ([]models.ClassSession, error) {
	s.gotExclude = excludeID
	var out []models.ClassSession
	for _, sess := range s.sessions {
		if sess.ID == excludeID || sess.Status.Terminal() && sess.Status != models.SessionCompleted {
			continue
		}
		if sess.StartsAt.Before(end) && sess.EndsAt().After(start) {
			out = append(out, sess)
		}
	}
	return out, nil
}

func newConflictFixture() (*ConflictService, *stubTimetableFinder, *stubActivityOverlaps, *stubHolidayChecker, *stubSessionOverlaps) {
	timetables := &stubTimetableFinder{}
	activities := &stubActivityOverlaps{}
	holidays := &stubHolidayChecker{}
	sessions := &stubSessionOverlaps{}
	svc := NewConflictService(timetables, activities, holidays, sessions, nil, nil)
	return svc, timetables, activities, holidays, sessions
}

// Monday 2026-03-02.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func TestConflictCheckClearWhenNothingOverlaps(t *testing.T) {
	svc, _, activities, _, _ := newConflictFixture()
	activities.activities = []models.Activity{{
		ID:       "a1",
		StartsAt: monday.Add(14 * time.Hour),
		EndsAt:   monday.Add(15 * time.Hour),
	}}

	conflict, reason, err := svc.Check(context.Background(), "f1", monday.Add(10*time.Hour), monday.Add(11*time.Hour), ConflictOptions{})
	require.NoError(t, err)
	assert.False(t, conflict)
	assert.Empty(t, reason)
}

func TestConflictCheckRejectsEmptyInterval(t *testing.T) {
	svc, _, _, _, _ := newConflictFixture()
	_, _, err := svc.Check(context.Background(), "f1", monday, monday, ConflictOptions{})
	require.Error(t, err)
}

func TestConflictCheckTemplateSlot(t *testing.T) {
	svc, timetables, _, _, _ := newConflictFixture()
	timetables.timetable = &models.Timetable{
		FacultyID: "f1",
		WeeklySchedule: models.WeeklySchedule{
			"monday": {"10": {GroupID: "g1", Subject: "Algorithms"}},
		},
	}

	conflict, reason, err := svc.Check(context.Background(), "f1", monday.Add(10*time.Hour+30*time.Minute), monday.Add(11*time.Hour), ConflictOptions{})
	require.NoError(t, err)
	assert.True(t, conflict)
	assert.Contains(t, reason, "weekly timetable")

	// Same slot on a different day is free.
	tuesday := monday.Add(24 * time.Hour)
	conflict, _, err = svc.Check(context.Background(), "f1", tuesday.Add(10*time.Hour), tuesday.Add(11*time.Hour), ConflictOptions{})
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestConflictCheckTemplateSlotDuration(t *testing.T) {
	svc, timetables, _, _, _ := newConflictFixture()
	timetables.timetable = &models.Timetable{
		FacultyID: "f1",
		WeeklySchedule: models.WeeklySchedule{
			"monday": {"10": {GroupID: "g1", Subject: "Lab", DurationHours: 2}},
		},
	}

	// 11:00-12:00 falls inside the two-hour lab block.
	conflict, _, err := svc.Check(context.Background(), "f1", monday.Add(11*time.Hour), monday.Add(12*time.Hour), ConflictOptions{})
	require.NoError(t, err)
	assert.True(t, conflict)

	// 12:00-13:00 starts exactly at block end; half-open intervals do not touch.
	conflict, _, err = svc.Check(context.Background(), "f1", monday.Add(12*time.Hour), monday.Add(13*time.Hour), ConflictOptions{})
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestConflictCheckActivityOverlap(t *testing.T) {
	svc, _, activities, _, _ := newConflictFixture()
	activities.activities = []models.Activity{{
		ID:       "a1",
		StartsAt: monday.Add(10 * time.Hour),
		EndsAt:   monday.Add(12 * time.Hour),
	}}

	conflict, reason, err := svc.Check(context.Background(), "f1", monday.Add(11*time.Hour), monday.Add(13*time.Hour), ConflictOptions{})
	require.NoError(t, err)
	assert.True(t, conflict)
	assert.Contains(t, reason, "activity")
}

func TestConflictCheckHoliday(t *testing.T) {
	svc, _, _, holidays, _ := newConflictFixture()
	holidays.dates = []time.Time{monday}

	conflict, reason, err := svc.Check(context.Background(), "f1", monday.Add(10*time.Hour), monday.Add(11*time.Hour), ConflictOptions{})
	require.NoError(t, err)
	assert.True(t, conflict)
	assert.Contains(t, reason, "holiday")
}

func TestConflictCheckSessionOverlap(t *testing.T) {
	svc, _, _, _, sessions := newConflictFixture()
	sessions.sessions = []models.ClassSession{{
		ID:            "s1",
		StartsAt:      monday.Add(10 * time.Hour),
		DurationHours: 1,
		Status:        models.SessionNotCompleted,
	}}

	conflict, reason, err := svc.Check(context.Background(), "f1", monday.Add(10*time.Hour), monday.Add(11*time.Hour), ConflictOptions{})
	require.NoError(t, err)
	assert.True(t, conflict)
	assert.Contains(t, reason, "class session")
}

func TestConflictCheckReportsFirstSourceInOrder(t *testing.T) {
	svc, timetables, activities, _, _ := newConflictFixture()
	timetables.timetable = &models.Timetable{
		FacultyID: "f1",
		WeeklySchedule: models.WeeklySchedule{
			"monday": {"10": {GroupID: "g1", Subject: "Algorithms"}},
		},
	}
	activities.activities = []models.Activity{{
		ID:       "a1",
		StartsAt: monday.Add(10 * time.Hour),
		EndsAt:   monday.Add(11 * time.Hour),
	}}

	_, reason, err := svc.Check(context.Background(), "f1", monday.Add(10*time.Hour), monday.Add(11*time.Hour), ConflictOptions{})
	require.NoError(t, err)
	assert.Contains(t, reason, "weekly timetable")
}

func TestConflictCheckExclusionsPassThrough(t *testing.T) {
	svc, _, activities, _, sessions := newConflictFixture()
	activities.activities = []models.Activity{{
		ID:       "a1",
		StartsAt: monday.Add(10 * time.Hour),
		EndsAt:   monday.Add(11 * time.Hour),
	}}
	sessions.sessions = []models.ClassSession{{
		ID:            "s1",
		StartsAt:      monday.Add(10 * time.Hour),
		DurationHours: 1,
		Status:        models.SessionNotCompleted,
	}}

	conflict, _, err := svc.Check(context.Background(), "f1", monday.Add(10*time.Hour), monday.Add(11*time.Hour), ConflictOptions{
		ExcludeActivityID: "a1",
		ExcludeSessionID:  "s1",
	})
	require.NoError(t, err)
	assert.False(t, conflict)
	assert.Equal(t, "a1", activities.gotExclude)
	assert.Equal(t, "s1", sessions.gotExclude)
}
