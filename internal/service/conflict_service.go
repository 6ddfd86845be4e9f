package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/campusdesk/faculty-api/internal/models"
	appErrors "github.com/campusdesk/faculty-api/pkg/errors"
)

// Conflict reasons, in check order. The order fixes which reason is
// reported when several sources overlap; callers must not depend on it for
// anything else.
const (
	reasonTemplate = "class scheduled in the weekly timetable at this time"
	reasonActivity = "activity scheduled at this time"
	reasonHoliday  = "holiday on this date"
	reasonSession  = "class session scheduled at this time"
)

type timetableFinder interface {
	FindByFaculty(ctx context.Context, facultyID string) (*models.Timetable, error)
}

type activityOverlapLister interface {
	ListOverlapping(ctx context.Context, facultyID string, start, end time.Time, excludeID string) ([]models.Activity, error)
}

type holidayRangeChecker interface {
	ExistsInRange(ctx context.Context, from, to time.Time) (bool, error)
}

type sessionOverlapLister interface {
	ListOverlapping(ctx context.Context, facultyID string, start, end time.Time, excludeID string) ([]models.ClassSession, error)
}

// ConflictOptions tune a single conflict check. Exclusions let reschedules
// and activity updates check against everything but themselves without
// touching the store.
type ConflictOptions struct {
	ExcludeSessionID  string
	ExcludeActivityID string
}

// ConflictService answers whether a candidate interval overlaps any of the
// four busy-time sources for a faculty: weekly template, ad-hoc activities,
// holidays, and live class sessions.
type ConflictService struct {
	timetables timetableFinder
	activities activityOverlapLister
	holidays   holidayRangeChecker
	sessions   sessionOverlapLister
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewConflictService constructs the detector.
func NewConflictService(timetables timetableFinder, activities activityOverlapLister, holidays holidayRangeChecker, sessions sessionOverlapLister, metrics *MetricsService, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{
		timetables: timetables,
		activities: activities,
		holidays:   holidays,
		sessions:   sessions,
		metrics:    metrics,
		logger:     logger,
	}
}

// Check reports whether [start, end) collides with existing busy time for
// the faculty, returning the first human-readable reason encountered.
func (s *ConflictService) Check(ctx context.Context, facultyID string, start, end time.Time, opts ConflictOptions) (bool, string, error) {
	if !end.After(start) {
		return false, "", appErrors.Clone(appErrors.ErrValidation, "interval end must be after start")
	}

	conflict, reason, err := s.check(ctx, facultyID, start, end, opts)
	if err != nil {
		return false, "", err
	}
	if s.metrics != nil {
		s.metrics.ObserveConflictCheck(conflict)
	}
	return conflict, reason, nil
}

func (s *ConflictService) check(ctx context.Context, facultyID string, start, end time.Time, opts ConflictOptions) (bool, string, error) {
	hit, err := s.templateConflict(ctx, facultyID, start, end)
	if err != nil {
		return false, "", err
	}
	if hit {
		return true, reasonTemplate, nil
	}

	overlapping, err := s.activities.ListOverlapping(ctx, facultyID, start, end, opts.ExcludeActivityID)
	if err != nil {
		return false, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check activity overlaps")
	}
	if len(overlapping) > 0 {
		return true, reasonActivity, nil
	}

	holiday, err := s.holidays.ExistsInRange(ctx, start, end)
	if err != nil {
		return false, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check holidays")
	}
	if holiday {
		return true, reasonHoliday, nil
	}

	sessions, err := s.sessions.ListOverlapping(ctx, facultyID, start, end, opts.ExcludeSessionID)
	if err != nil {
		return false, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check session overlaps")
	}
	if len(sessions) > 0 {
		return true, reasonSession, nil
	}

	return false, "", nil
}

// templateConflict checks the weekly schedule for the weekday of the
// candidate start against [start, end).
func (s *ConflictService) templateConflict(ctx context.Context, facultyID string, start, end time.Time) (bool, error) {
	tt, err := s.timetables.FindByFaculty(ctx, facultyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	day := tt.WeeklySchedule[models.WeekdayName(start.Weekday())]
	for period, slot := range day {
		hour, err := strconv.Atoi(period)
		if err != nil {
			s.logger.Warn("skipping malformed timetable period",
				zap.String("faculty_id", facultyID),
				zap.String("period", period))
			continue
		}
		periodStart := time.Date(start.Year(), start.Month(), start.Day(), hour, 0, 0, 0, start.Location())
		periodEnd := periodStart.Add(slot.Duration())
		if periodStart.Before(end) && periodEnd.After(start) {
			return true, nil
		}
	}
	return false, nil
}

// ConflictError builds the typed error reported to callers of mutation
// paths when the detector fires.
func ConflictError(reason string) error {
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("schedule conflict: %s", reason))
}
