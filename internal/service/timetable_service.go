package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusdesk/faculty-api/internal/models"
	appErrors "github.com/campusdesk/faculty-api/pkg/errors"
)

type timetableStore interface {
	FindByFaculty(ctx context.Context, facultyID string) (*models.Timetable, error)
	ListAll(ctx context.Context) ([]models.Timetable, error)
	Create(ctx context.Context, tt *models.Timetable) error
	Update(ctx context.Context, tt *models.Timetable) error
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type availabilityCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string)
}

type conflictChecker interface {
	Check(ctx context.Context, facultyID string, start, end time.Time, opts ConflictOptions) (bool, string, error)
}

// AvailabilityConfig mirrors the availability section of the app config.
type AvailabilityConfig struct {
	WindowDays   int
	DayStartHour int
	DayEndHour   int
	CacheTTL     time.Duration
}

// TimetableService manages weekly templates and the read models derived
// from them: the per-group student view and faculty free-slot lookups.
type TimetableService struct {
	timetables timetableStore
	users      userFinder
	conflicts  conflictChecker
	cache      availabilityCache
	metrics    *MetricsService
	avail      AvailabilityConfig
	logger     *zap.Logger
}

// NewTimetableService builds the service.
func NewTimetableService(timetables timetableStore, users userFinder, conflicts conflictChecker, cache availabilityCache, metrics *MetricsService, avail AvailabilityConfig, logger *zap.Logger) *TimetableService {
	if avail.WindowDays <= 0 {
		avail.WindowDays = 7
	}
	if avail.DayStartHour <= 0 {
		avail.DayStartHour = 9
	}
	if avail.DayEndHour <= avail.DayStartHour {
		avail.DayEndHour = avail.DayStartHour + 8
	}
	if avail.CacheTTL <= 0 {
		avail.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		timetables: timetables,
		users:      users,
		conflicts:  conflicts,
		cache:      cache,
		metrics:    metrics,
		avail:      avail,
		logger:     logger,
	}
}

// GetByFaculty loads the faculty's weekly template.
func (s *TimetableService) GetByFaculty(ctx context.Context, facultyID string) (*models.Timetable, error) {
	tt, err := s.timetables.FindByFaculty(ctx, facultyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return tt, nil
}

// Create stores a new weekly template for the faculty. A faculty owns at
// most one timetable; a second create fails with AlreadyExists.
// Faculty may only write their own template; admins may write any.
func (s *TimetableService) Create(ctx context.Context, actor models.Actor, facultyID string, schedule models.WeeklySchedule) (*models.Timetable, error) {
	if err := s.checkWrite(actor, facultyID, schedule); err != nil {
		return nil, err
	}

	_, err := s.timetables.FindByFaculty(ctx, facultyID)
	if err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "timetable already exists for this faculty")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	tt := &models.Timetable{FacultyID: facultyID, WeeklySchedule: schedule}
	if err := s.timetables.Create(ctx, tt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
	}

	s.InvalidateAvailability(ctx, facultyID)
	s.logger.Info("timetable created", zap.String("faculty_id", facultyID))
	return tt, nil
}

// Update replaces the whole weekly schedule of an existing timetable.
func (s *TimetableService) Update(ctx context.Context, actor models.Actor, facultyID string, schedule models.WeeklySchedule) (*models.Timetable, error) {
	if err := s.checkWrite(actor, facultyID, schedule); err != nil {
		return nil, err
	}

	existing, err := s.GetByFaculty(ctx, facultyID)
	if err != nil {
		return nil, err
	}
	existing.WeeklySchedule = schedule
	if err := s.timetables.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable")
	}

	s.InvalidateAvailability(ctx, facultyID)
	s.logger.Info("timetable updated", zap.String("faculty_id", facultyID))
	return existing, nil
}

// UpdateSlot writes a single (day, period) slot into an existing timetable,
// leaving the rest of the schedule untouched.
func (s *TimetableService) UpdateSlot(ctx context.Context, actor models.Actor, facultyID, day, period string, slot models.Slot) (*models.Timetable, error) {
	if actor.Role != models.RoleAdmin && actor.ID != facultyID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify another faculty's timetable")
	}

	existing, err := s.GetByFaculty(ctx, facultyID)
	if err != nil {
		return nil, err
	}
	if existing.WeeklySchedule == nil {
		existing.WeeklySchedule = models.WeeklySchedule{}
	}
	if existing.WeeklySchedule[day] == nil {
		existing.WeeklySchedule[day] = models.DaySchedule{}
	}
	existing.WeeklySchedule[day][period] = slot
	if err := existing.WeeklySchedule.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := s.timetables.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable")
	}

	s.InvalidateAvailability(ctx, facultyID)
	s.logger.Info("timetable slot updated",
		zap.String("faculty_id", facultyID),
		zap.String("day", day),
		zap.String("period", period))
	return existing, nil
}

func (s *TimetableService) checkWrite(actor models.Actor, facultyID string, schedule models.WeeklySchedule) error {
	if actor.Role != models.RoleAdmin && actor.ID != facultyID {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot modify another faculty's timetable")
	}
	if err := schedule.Validate(); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return nil
}

// StudentTimetable composes the student's weekly view from every faculty
// slot addressed to the student's group.
func (s *TimetableService) StudentTimetable(ctx context.Context, studentID string) (*models.StudentTimetable, error) {
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent || student.GroupID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user has no group timetable")
	}

	timetables, err := s.timetables.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}

	view := &models.StudentTimetable{
		StudentID:      student.ID,
		GroupID:        *student.GroupID,
		WeeklySchedule: make(map[string]map[string]models.GroupSlot),
	}
	for _, tt := range timetables {
		for day, periods := range tt.WeeklySchedule {
			for period, slot := range periods {
				if slot.GroupID != *student.GroupID {
					continue
				}
				if view.WeeklySchedule[day] == nil {
					view.WeeklySchedule[day] = make(map[string]models.GroupSlot)
				}
				view.WeeklySchedule[day][period] = models.GroupSlot{Slot: slot, FacultyID: tt.FacultyID}
			}
		}
	}
	return view, nil
}

// AvailableSlots returns the free one-hour blocks for a faculty over the
// configured upcoming window, within working hours and outside every busy
// source. Results are cached briefly; mutations on the faculty's schedule
// invalidate the entry.
func (s *TimetableService) AvailableSlots(ctx context.Context, facultyID string) ([]models.AvailableSlot, error) {
	key := availabilityKey(facultyID)
	if s.cache != nil {
		var cached []models.AvailableSlot
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.ObserveCache(true)
			}
			return cached, nil
		}
		if s.metrics != nil {
			s.metrics.ObserveCache(false)
		}
	}

	now := time.Now().UTC()
	start := models.NormalizeDate(now).Add(24 * time.Hour)

	var slots []models.AvailableSlot
	for d := 0; d < s.avail.WindowDays; d++ {
		day := start.Add(time.Duration(d) * 24 * time.Hour)
		for hour := s.avail.DayStartHour; hour < s.avail.DayEndHour; hour++ {
			blockStart := day.Add(time.Duration(hour) * time.Hour)
			blockEnd := blockStart.Add(time.Hour)
			conflict, _, err := s.conflicts.Check(ctx, facultyID, blockStart, blockEnd, ConflictOptions{})
			if err != nil {
				return nil, err
			}
			if conflict {
				continue
			}
			slots = append(slots, models.AvailableSlot{
				Date: day.Format("2006-01-02"),
				Day:  models.WeekdayName(day.Weekday()),
				Time: fmt.Sprintf("%02d:00", hour),
			})
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, slots, s.avail.CacheTTL); err != nil {
			s.logger.Warn("failed to cache availability", zap.String("faculty_id", facultyID), zap.Error(err))
		}
	}
	return slots, nil
}

// InvalidateAvailability drops the cached free-slot view for a faculty.
// Called by mutation paths that change the faculty's busy time.
func (s *TimetableService) InvalidateAvailability(ctx context.Context, facultyID string) {
	if s.cache != nil {
		s.cache.Delete(ctx, availabilityKey(facultyID))
	}
}

func availabilityKey(facultyID string) string {
	return "availability:" + facultyID
}
