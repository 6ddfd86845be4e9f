package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/faculty-api/internal/models"
	appErrors "github.com/campusdesk/faculty-api/pkg/errors"
)

type stubTimetableStore struct {
	byFaculty map[string]*models.Timetable
	created   int
	updated   int
}

func (s *stubTimetableStore) FindByFaculty(ctx context.Context, facultyID string) (*models.Timetable, error) {
	tt, ok := s.byFaculty[facultyID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *tt
	return &clone, nil
}

func (s *stubTimetableStore) ListAll(ctx context.Context) ([]models.Timetable, error) {
	var out []models.Timetable
	for _, tt := range s.byFaculty {
		out = append(out, *tt)
	}
	return out, nil
}

func (s *stubTimetableStore) Create(ctx context.Context, tt *models.Timetable) error {
	if tt.ID == "" {
		tt.ID = "tt-" + tt.FacultyID
	}
	if s.byFaculty == nil {
		s.byFaculty = make(map[string]*models.Timetable)
	}
	clone := *tt
	s.byFaculty[tt.FacultyID] = &clone
	s.created++
	return nil
}

func (s *stubTimetableStore) Update(ctx context.Context, tt *models.Timetable) error {
	if _, ok := s.byFaculty[tt.FacultyID]; !ok {
		return sql.ErrNoRows
	}
	clone := *tt
	s.byFaculty[tt.FacultyID] = &clone
	s.updated++
	return nil
}

type stubUserFinder struct {
	users map[string]*models.User
}

func (s *stubUserFinder) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

type memoryCache struct {
	values  map[string][]models.AvailableSlot
	deleted []string
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := c.values[key]
	if !ok {
		return sql.ErrNoRows
	}
	*(dest.(*[]models.AvailableSlot)) = v
	return nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.values == nil {
		c.values = make(map[string][]models.AvailableSlot)
	}
	c.values[key] = value.([]models.AvailableSlot)
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) {
	c.deleted = append(c.deleted, keys...)
	for _, key := range keys {
		delete(c.values, key)
	}
}

func newTimetableFixture() (*TimetableService, *stubTimetableStore, *stubUserFinder, *stubConflicts, *memoryCache) {
	store := &stubTimetableStore{byFaculty: map[string]*models.Timetable{}}
	users := &stubUserFinder{users: map[string]*models.User{}}
	conflicts := &stubConflicts{}
	cache := &memoryCache{}
	svc := NewTimetableService(store, users, conflicts, cache, nil, AvailabilityConfig{WindowDays: 1, DayStartHour: 9, DayEndHour: 11}, nil)
	return svc, store, users, conflicts, cache
}

func validSchedule() models.WeeklySchedule {
	return models.WeeklySchedule{
		"monday": models.DaySchedule{
			"10": {GroupID: "g1", Subject: "Algorithms"},
		},
	}
}

func TestCreateTimetableOncePerFaculty(t *testing.T) {
	svc, store, _, _, cache := newTimetableFixture()
	actor := models.Actor{ID: "fac1", Role: models.RoleFaculty}

	tt, err := svc.Create(context.Background(), actor, "fac1", validSchedule())
	require.NoError(t, err)
	assert.Equal(t, 1, store.created)
	assert.Equal(t, "fac1", tt.FacultyID)
	assert.Contains(t, cache.deleted, "availability:fac1")

	_, err = svc.Create(context.Background(), actor, "fac1", validSchedule())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyExists.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 1, store.created)
}

func TestUpdateReplacesSchedule(t *testing.T) {
	svc, store, _, _, cache := newTimetableFixture()
	actor := models.Actor{ID: "fac1", Role: models.RoleFaculty}

	_, err := svc.Update(context.Background(), actor, "fac1", validSchedule())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), actor, "fac1", validSchedule())
	require.NoError(t, err)

	schedule := validSchedule()
	schedule["tuesday"] = models.DaySchedule{"14": {GroupID: "g2", Subject: "Databases"}}
	tt, err := svc.Update(context.Background(), actor, "fac1", schedule)
	require.NoError(t, err)
	assert.Equal(t, 1, store.updated)
	assert.Contains(t, tt.WeeklySchedule, "tuesday")
	assert.Contains(t, cache.deleted, "availability:fac1")
}

func TestUpdateSlotKeepsRestOfSchedule(t *testing.T) {
	svc, store, _, _, _ := newTimetableFixture()
	actor := models.Actor{ID: "fac1", Role: models.RoleFaculty}

	_, err := svc.Create(context.Background(), actor, "fac1", validSchedule())
	require.NoError(t, err)

	tt, err := svc.UpdateSlot(context.Background(), actor, "fac1", "monday", "14", models.Slot{GroupID: "g2", Subject: "Databases"})
	require.NoError(t, err)
	assert.Equal(t, "Algorithms", tt.WeeklySchedule["monday"]["10"].Subject)
	assert.Equal(t, "Databases", tt.WeeklySchedule["monday"]["14"].Subject)
	assert.Equal(t, "Databases", store.byFaculty["fac1"].WeeklySchedule["monday"]["14"].Subject)

	_, err = svc.UpdateSlot(context.Background(), actor, "fac1", "monday", "25", models.Slot{GroupID: "g2", Subject: "Databases"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableWritesRejectForeignFaculty(t *testing.T) {
	svc, _, _, _, _ := newTimetableFixture()
	stranger := models.Actor{ID: "fac2", Role: models.RoleFaculty}

	_, err := svc.Create(context.Background(), stranger, "fac1", validSchedule())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), stranger, "fac1", validSchedule())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateSlot(context.Background(), stranger, "fac1", "monday", "10", models.Slot{GroupID: "g1", Subject: "X"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCreateTimetableValidatesSchedule(t *testing.T) {
	svc, _, _, _, _ := newTimetableFixture()
	actor := models.Actor{ID: "fac1", Role: models.RoleFaculty}

	bad := models.WeeklySchedule{"funday": models.DaySchedule{"10": {GroupID: "g1", Subject: "X"}}}
	_, err := svc.Create(context.Background(), actor, "fac1", bad)
	require.Error(t, err)

	bad = models.WeeklySchedule{"monday": models.DaySchedule{"25": {GroupID: "g1", Subject: "X"}}}
	_, err = svc.Create(context.Background(), actor, "fac1", bad)
	require.Error(t, err)

	bad = models.WeeklySchedule{"monday": models.DaySchedule{"10": {Subject: "X"}}}
	_, err = svc.Create(context.Background(), actor, "fac1", bad)
	require.Error(t, err)
}

func TestStudentTimetableComposesGroupSlots(t *testing.T) {
	svc, store, users, _, _ := newTimetableFixture()
	groupID := "g1"
	users.users["stu1"] = &models.User{ID: "stu1", Role: models.RoleStudent, GroupID: &groupID}

	store.byFaculty["fac1"] = &models.Timetable{
		ID:        "tt1",
		FacultyID: "fac1",
		WeeklySchedule: models.WeeklySchedule{
			"monday": models.DaySchedule{
				"10": {GroupID: "g1", Subject: "Algorithms"},
				"11": {GroupID: "g2", Subject: "Databases"},
			},
		},
	}
	store.byFaculty["fac2"] = &models.Timetable{
		ID:        "tt2",
		FacultyID: "fac2",
		WeeklySchedule: models.WeeklySchedule{
			"tuesday": models.DaySchedule{
				"9": {GroupID: "g1", Subject: "Networks"},
			},
		},
	}

	view, err := svc.StudentTimetable(context.Background(), "stu1")
	require.NoError(t, err)
	assert.Equal(t, "g1", view.GroupID)

	require.Contains(t, view.WeeklySchedule, "monday")
	require.Contains(t, view.WeeklySchedule["monday"], "10")
	assert.Equal(t, "fac1", view.WeeklySchedule["monday"]["10"].FacultyID)
	assert.NotContains(t, view.WeeklySchedule["monday"], "11")

	require.Contains(t, view.WeeklySchedule, "tuesday")
	assert.Equal(t, "Networks", view.WeeklySchedule["tuesday"]["9"].Subject)
}

func TestStudentTimetableRequiresGroup(t *testing.T) {
	svc, _, users, _, _ := newTimetableFixture()
	users.users["fac1"] = &models.User{ID: "fac1", Role: models.RoleFaculty}

	_, err := svc.StudentTimetable(context.Background(), "fac1")
	require.Error(t, err)

	_, err = svc.StudentTimetable(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAvailableSlotsSkipsBusyBlocksAndCaches(t *testing.T) {
	svc, _, _, conflicts, cache := newTimetableFixture()

	slots, err := svc.AvailableSlots(context.Background(), "fac1")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[0].Time)
	assert.Equal(t, "10:00", slots[1].Time)
	assert.Contains(t, cache.values, "availability:fac1")

	// Second call must come from the cache, unaffected by the checker.
	conflicts.conflict = true
	cached, err := svc.AvailableSlots(context.Background(), "fac1")
	require.NoError(t, err)
	assert.Equal(t, slots, cached)

	svc.InvalidateAvailability(context.Background(), "fac1")
	fresh, err := svc.AvailableSlots(context.Background(), "fac1")
	require.NoError(t, err)
	assert.Empty(t, fresh)
}
