package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusdesk/faculty-api/internal/models"
	appErrors "github.com/campusdesk/faculty-api/pkg/errors"
)

type activityStore interface {
	FindByID(ctx context.Context, id string) (*models.Activity, error)
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, error)
	Create(ctx context.Context, activity *models.Activity) error
	Update(ctx context.Context, activity *models.Activity) error
	Delete(ctx context.Context, id string) error
}

// CreateActivityRequest is the payload for booking an ad-hoc busy block.
type CreateActivityRequest struct {
	FacultyID    string              `json:"faculty_id"`
	ActivityType models.ActivityType `json:"activity_type" validate:"required"`
	Title        string              `json:"title" validate:"required,max=200"`
	Description  string              `json:"description" validate:"max=2000"`
	StartsAt     time.Time           `json:"starts_at" validate:"required"`
	EndsAt       time.Time           `json:"ends_at" validate:"required"`
}

// UpdateActivityRequest carries the mutable activity fields.
type UpdateActivityRequest struct {
	ActivityType models.ActivityType `json:"activity_type" validate:"required"`
	Title        string              `json:"title" validate:"required,max=200"`
	Description  string              `json:"description" validate:"max=2000"`
	StartsAt     time.Time           `json:"starts_at" validate:"required"`
	EndsAt       time.Time           `json:"ends_at" validate:"required"`
}

// ActivityService books and manages ad-hoc busy blocks. Every write runs a
// conflict check under the faculty's advisory lock so concurrent bookings
// cannot both land. Activities derived from meetings are owned by the
// meeting workflow and rejected here.
type ActivityService struct {
	activities activityStore
	conflicts  conflictChecker
	timetables *TimetableService
	locks      *FacultyLocks
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewActivityService builds the service.
func NewActivityService(activities activityStore, conflicts conflictChecker, timetables *TimetableService, locks *FacultyLocks, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		activities: activities,
		conflicts:  conflicts,
		timetables: timetables,
		locks:      locks,
		validator:  validator.New(),
		logger:     logger,
	}
}

// Create books a new busy block for a faculty. Faculty book for themselves;
// admins may book on behalf of any faculty.
func (s *ActivityService) Create(ctx context.Context, actor models.Actor, req CreateActivityRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	facultyID := req.FacultyID
	if facultyID == "" {
		facultyID = actor.ID
	}
	if actor.Role != models.RoleAdmin && facultyID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot book activities for another faculty")
	}
	if !models.KnownActivityType(req.ActivityType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown activity type")
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "activity end must be after start")
	}

	unlock := s.locks.Lock(facultyID)
	defer unlock()

	conflict, reason, err := s.conflicts.Check(ctx, facultyID, req.StartsAt, req.EndsAt, ConflictOptions{})
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ConflictError(reason)
	}

	activity := &models.Activity{
		FacultyID:    facultyID,
		ActivityType: req.ActivityType,
		Title:        req.Title,
		Description:  req.Description,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
	}
	if err := s.activities.Create(ctx, activity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create activity")
	}

	s.timetables.InvalidateAvailability(ctx, facultyID)
	s.logger.Info("activity created",
		zap.String("activity_id", activity.ID),
		zap.String("faculty_id", facultyID),
		zap.String("type", string(activity.ActivityType)))
	return activity, nil
}

// GetByID loads a single activity.
func (s *ActivityService) GetByID(ctx context.Context, id string) (*models.Activity, error) {
	activity, err := s.activities.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	return activity, nil
}

// List returns activities matching the filter.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, error) {
	activities, err := s.activities.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	return activities, nil
}

// Update rewrites an activity's fields, re-running the conflict check with
// the activity itself excluded so an unchanged window still passes.
func (s *ActivityService) Update(ctx context.Context, actor models.Actor, id string, req UpdateActivityRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if !models.KnownActivityType(req.ActivityType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown activity type")
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "activity end must be after start")
	}

	activity, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && activity.FacultyID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify another faculty's activity")
	}
	if activity.MeetingID != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "meeting activities are managed through the meeting workflow")
	}

	unlock := s.locks.Lock(activity.FacultyID)
	defer unlock()

	conflict, reason, err := s.conflicts.Check(ctx, activity.FacultyID, req.StartsAt, req.EndsAt, ConflictOptions{ExcludeActivityID: id})
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ConflictError(reason)
	}

	activity.ActivityType = req.ActivityType
	activity.Title = req.Title
	activity.Description = req.Description
	activity.StartsAt = req.StartsAt
	activity.EndsAt = req.EndsAt
	if err := s.activities.Update(ctx, activity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update activity")
	}

	s.timetables.InvalidateAvailability(ctx, activity.FacultyID)
	return activity, nil
}

// Delete removes an activity, freeing its window.
func (s *ActivityService) Delete(ctx context.Context, actor models.Actor, id string) error {
	activity, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin && activity.FacultyID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete another faculty's activity")
	}
	if activity.MeetingID != nil {
		return appErrors.Clone(appErrors.ErrValidation, "meeting activities are managed through the meeting workflow")
	}

	if err := s.activities.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete activity")
	}
	s.timetables.InvalidateAvailability(ctx, activity.FacultyID)
	s.logger.Info("activity deleted", zap.String("activity_id", id), zap.String("faculty_id", activity.FacultyID))
	return nil
}
