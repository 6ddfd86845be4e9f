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

type holidayStore interface {
	FindByID(ctx context.Context, id string) (*models.Holiday, error)
	List(ctx context.Context, from, to *time.Time) ([]models.Holiday, error)
	ExistsInRange(ctx context.Context, from, to time.Time) (bool, error)
	Create(ctx context.Context, holiday *models.Holiday) error
	Update(ctx context.Context, holiday *models.Holiday) error
	Delete(ctx context.Context, id string) error
}

// HolidayRequest is the payload for creating or updating a holiday.
type HolidayRequest struct {
	Name string    `json:"name" validate:"required,max=200"`
	Date time.Time `json:"date" validate:"required"`
}

// HolidayService manages the institutional calendar. Holidays are global:
// a date on the calendar blocks every faculty's schedule for that day.
type HolidayService struct {
	holidays  holidayStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHolidayService builds the service.
func NewHolidayService(holidays holidayStore, logger *zap.Logger) *HolidayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HolidayService{holidays: holidays, validator: validator.New(), logger: logger}
}

// Create adds a calendar date. A second holiday on the same date is
// rejected.
func (s *HolidayService) Create(ctx context.Context, req HolidayRequest) (*models.Holiday, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	date := models.NormalizeDate(req.Date)
	taken, err := s.holidays.ExistsInRange(ctx, date, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check holiday date")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "a holiday already exists on this date")
	}

	holiday := &models.Holiday{Name: req.Name, Date: date}
	if err := s.holidays.Create(ctx, holiday); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create holiday")
	}
	s.logger.Info("holiday created", zap.String("holiday_id", holiday.ID), zap.Time("date", holiday.Date))
	return holiday, nil
}

// GetByID loads a holiday.
func (s *HolidayService) GetByID(ctx context.Context, id string) (*models.Holiday, error) {
	holiday, err := s.holidays.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holiday")
	}
	return holiday, nil
}

// List returns holidays, optionally bounded by a date range.
func (s *HolidayService) List(ctx context.Context, from, to *time.Time) ([]models.Holiday, error) {
	holidays, err := s.holidays.List(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list holidays")
	}
	return holidays, nil
}

// Update renames or moves a holiday.
func (s *HolidayService) Update(ctx context.Context, id string, req HolidayRequest) (*models.Holiday, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	holiday, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	date := models.NormalizeDate(req.Date)
	if !date.Equal(holiday.Date) {
		taken, err := s.holidays.ExistsInRange(ctx, date, date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check holiday date")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "a holiday already exists on this date")
		}
	}

	holiday.Name = req.Name
	holiday.Date = date
	if err := s.holidays.Update(ctx, holiday); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update holiday")
	}
	return holiday, nil
}

// Delete removes a holiday, reopening the date for scheduling. Sessions
// already materialized around it are unaffected.
func (s *HolidayService) Delete(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.holidays.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete holiday")
	}
	s.logger.Info("holiday deleted", zap.String("holiday_id", id))
	return nil
}
