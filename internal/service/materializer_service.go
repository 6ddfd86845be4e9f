package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/campusdesk/faculty-api/internal/models"
	appErrors "github.com/campusdesk/faculty-api/pkg/errors"
)

type sessionStartLister interface {
	ListStartTimes(ctx context.Context, facultyID string, from, to time.Time) ([]time.Time, error)
	BulkCreate(ctx context.Context, sessions []models.ClassSession) error
}

type holidayDateLister interface {
	ListDates(ctx context.Context, from, to time.Time) ([]time.Time, error)
}

// MaterializationResult summarizes one generation run.
type MaterializationResult struct {
	FacultyID string    `json:"faculty_id"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Created   int       `json:"created"`
	Skipped   int       `json:"skipped"`
}

// MaterializerService turns a weekly timetable into dated class sessions
// over a requested range. Generation is idempotent per (faculty, start
// instant): reruns over an already-covered range create nothing, and a
// slot whose date carries an existing session of any status is skipped so
// cancellations and reschedules survive a rerun.
type MaterializerService struct {
	timetables timetableFinder
	sessions   sessionStartLister
	holidays   holidayDateLister
	locks      *FacultyLocks
	metrics    *MetricsService
	chunkSize  int
	logger     *zap.Logger
}

// NewMaterializerService constructs the generator.
func NewMaterializerService(timetables timetableFinder, sessions sessionStartLister, holidays holidayDateLister, locks *FacultyLocks, metrics *MetricsService, chunkSize int, logger *zap.Logger) *MaterializerService {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaterializerService{
		timetables: timetables,
		sessions:   sessions,
		holidays:   holidays,
		locks:      locks,
		metrics:    metrics,
		chunkSize:  chunkSize,
		logger:     logger,
	}
}

// Generate materializes sessions for one faculty over [from, to] inclusive
// of both dates. Holidays are skipped entirely.
func (s *MaterializerService) Generate(ctx context.Context, facultyID string, from, to time.Time) (*MaterializationResult, error) {
	from = models.NormalizeDate(from)
	to = models.NormalizeDate(to)
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end must not precede range start")
	}

	tt, err := s.timetables.FindByFaculty(ctx, facultyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty has no timetable")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	unlock := s.locks.Lock(facultyID)
	defer unlock()

	rangeEnd := to.Add(24 * time.Hour)
	existing, err := s.sessions.ListStartTimes(ctx, facultyID, from, rangeEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing sessions")
	}
	occupied := make(map[time.Time]struct{}, len(existing))
	for _, t := range existing {
		occupied[t.UTC()] = struct{}{}
	}

	holidayDates, err := s.holidays.ListDates(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holidays")
	}
	offDays := make(map[time.Time]struct{}, len(holidayDates))
	for _, d := range holidayDates {
		offDays[models.NormalizeDate(d)] = struct{}{}
	}

	result := &MaterializationResult{FacultyID: facultyID, From: from, To: to}
	var batch []models.ClassSession

	for day := from; !day.After(to); day = day.Add(24 * time.Hour) {
		if _, off := offDays[day]; off {
			continue
		}
		periods, ok := tt.WeeklySchedule[models.WeekdayName(day.Weekday())]
		if !ok {
			continue
		}
		for period, slot := range periods {
			hour, err := strconv.Atoi(period)
			if err != nil {
				s.logger.Warn("skipping malformed timetable period",
					zap.String("faculty_id", facultyID),
					zap.String("period", period))
				continue
			}
			startsAt := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, time.UTC)
			if _, taken := occupied[startsAt]; taken {
				result.Skipped++
				continue
			}
			occupied[startsAt] = struct{}{}

			duration := slot.DurationHours
			if duration <= 0 {
				duration = 1
			}
			batch = append(batch, models.ClassSession{
				FacultyID:     facultyID,
				GroupID:       slot.GroupID,
				Subject:       slot.Subject,
				StartsAt:      startsAt,
				DurationHours: duration,
				Status:        models.SessionNotCompleted,
				Topic:         slot.Topic,
			})

			if len(batch) >= s.chunkSize {
				if err := s.flush(ctx, batch, result); err != nil {
					return nil, err
				}
				batch = batch[:0]
			}
		}
	}

	if err := s.flush(ctx, batch, result); err != nil {
		return nil, err
	}

	s.logger.Info("materialized class sessions",
		zap.String("faculty_id", facultyID),
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *MaterializerService) flush(ctx context.Context, batch []models.ClassSession, result *MaterializationResult) error {
	if len(batch) == 0 {
		return nil
	}
	if err := s.sessions.BulkCreate(ctx, batch); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store generated sessions")
	}
	result.Created += len(batch)
	if s.metrics != nil {
		s.metrics.AddMaterialized(len(batch))
	}
	return nil
}
