package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/faculty-api/internal/models"
)

type stubSessionWriter struct {
	existing []time.Time
	created  []models.ClassSession
}

func (s *stubSessionWriter) ListStartTimes(ctx context.Context, facultyID string, from, to time.Time) ([]time.Time, error) {
	return s.existing, nil
}

func (s *stubSessionWriter) BulkCreate(ctx context.Context, sessions []models.ClassSession) error {
	s.created = append(s.created, sessions...)
	return nil
}

type stubHolidayDates struct {
	dates []time.Time
}

func (s *stubHolidayDates) ListDates(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	return s.dates, nil
}

func newMaterializerFixture(tt *models.Timetable) (*MaterializerService, *stubSessionWriter, *stubHolidayDates) {
	sessions := &stubSessionWriter{}
	holidays := &stubHolidayDates{}
	svc := NewMaterializerService(&stubTimetableFinder{timetable: tt}, sessions, holidays, NewFacultyLocks(), nil, 100, nil)
	return svc, sessions, holidays
}

func mondaySlotTimetable() *models.Timetable {
	return &models.Timetable{
		FacultyID: "f1",
		WeeklySchedule: models.WeeklySchedule{
			"monday": {"10": {GroupID: "g1", Subject: "Algorithms"}},
		},
	}
}

func TestMaterializeTwoWeeksCreatesBothMondays(t *testing.T) {
	svc, sessions, _ := newMaterializerFixture(mondaySlotTimetable())

	result, err := svc.Generate(context.Background(), "f1", monday, monday.Add(13*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	require.Len(t, sessions.created, 2)
	assert.Equal(t, monday.Add(10*time.Hour), sessions.created[0].StartsAt)
	assert.Equal(t, monday.Add(7*24*time.Hour+10*time.Hour), sessions.created[1].StartsAt)
	for _, s := range sessions.created {
		assert.Equal(t, models.SessionNotCompleted, s.Status)
		assert.Equal(t, "g1", s.GroupID)
		assert.Equal(t, 1, s.DurationHours)
	}
}

func TestMaterializeSkipsHolidays(t *testing.T) {
	svc, sessions, holidays := newMaterializerFixture(mondaySlotTimetable())
	holidays.dates = []time.Time{monday}

	result, err := svc.Generate(context.Background(), "f1", monday, monday.Add(13*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	require.Len(t, sessions.created, 1)
	assert.Equal(t, monday.Add(7*24*time.Hour+10*time.Hour), sessions.created[0].StartsAt)
}

func TestMaterializeIsIdempotent(t *testing.T) {
	svc, sessions, _ := newMaterializerFixture(mondaySlotTimetable())
	sessions.existing = []time.Time{monday.Add(10 * time.Hour)}

	result, err := svc.Generate(context.Background(), "f1", monday, monday.Add(6*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, sessions.created)
}

func TestMaterializeRequiresTimetable(t *testing.T) {
	svc, _, _ := newMaterializerFixture(nil)

	_, err := svc.Generate(context.Background(), "f1", monday, monday.Add(24*time.Hour))
	require.Error(t, err)
}

func TestMaterializeRejectsInvertedRange(t *testing.T) {
	svc, _, _ := newMaterializerFixture(mondaySlotTimetable())

	_, err := svc.Generate(context.Background(), "f1", monday.Add(24*time.Hour), monday)
	require.Error(t, err)
}
