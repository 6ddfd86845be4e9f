package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusdesk/faculty-api/internal/models"
)

// HolidayRepository provides persistence for institutional holidays.
type HolidayRepository struct {
	db *sqlx.DB
}

// NewHolidayRepository creates a new holiday repository.
func NewHolidayRepository(db *sqlx.DB) *HolidayRepository {
	return &HolidayRepository{db: db}
}

// FindByID loads a holiday by id.
func (r *HolidayRepository) FindByID(ctx context.Context, id string) (*models.Holiday, error) {
	const query = `SELECT id, name, holiday_date, created_at, updated_at FROM holidays WHERE id = $1`
	var holiday models.Holiday
	if err := r.db.GetContext(ctx, &holiday, query, id); err != nil {
		return nil, err
	}
	return &holiday, nil
}

// List returns holidays, optionally bounded by a date range.
func (r *HolidayRepository) List(ctx context.Context, from, to *time.Time) ([]models.Holiday, error) {
	base := `SELECT id, name, holiday_date, created_at, updated_at FROM holidays WHERE 1=1`
	var conditions []string
	var args []interface{}

	if from != nil {
		conditions = append(conditions, fmt.Sprintf("holiday_date >= $%d", len(args)+1))
		args = append(args, models.NormalizeDate(*from))
	}
	if to != nil {
		conditions = append(conditions, fmt.Sprintf("holiday_date <= $%d", len(args)+1))
		args = append(args, models.NormalizeDate(*to))
	}

	query := base
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY holiday_date ASC"

	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, query, args...); err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}

// ListDates returns the normalized holiday dates inside [from, to].
func (r *HolidayRepository) ListDates(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	const query = `SELECT holiday_date FROM holidays WHERE holiday_date >= $1 AND holiday_date <= $2 ORDER BY holiday_date ASC`
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, models.NormalizeDate(from), models.NormalizeDate(to)); err != nil {
		return nil, fmt.Errorf("list holiday dates: %w", err)
	}
	return dates, nil
}

// ExistsInRange reports whether any holiday date is touched by the interval,
// compared at day granularity. A non-degenerate interval is half-open: an end
// exactly at midnight leaves that day untouched.
func (r *HolidayRepository) ExistsInRange(ctx context.Context, from, to time.Time) (bool, error) {
	lower := models.NormalizeDate(from)
	upper := models.NormalizeDate(to)
	if to.After(from) && to.Equal(upper) {
		upper = upper.AddDate(0, 0, -1)
	}

	const query = `SELECT COUNT(*) FROM holidays WHERE holiday_date >= $1 AND holiday_date <= $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, lower, upper); err != nil {
		return false, fmt.Errorf("count holidays in range: %w", err)
	}
	return count > 0, nil
}

// Create stores a new holiday.
func (r *HolidayRepository) Create(ctx context.Context, holiday *models.Holiday) error {
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	holiday.Date = models.NormalizeDate(holiday.Date)
	now := time.Now().UTC()
	if holiday.CreatedAt.IsZero() {
		holiday.CreatedAt = now
	}
	holiday.UpdatedAt = now

	const query = `INSERT INTO holidays (id, name, holiday_date, created_at, updated_at) VALUES (:id, :name, :holiday_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, holiday); err != nil {
		return fmt.Errorf("create holiday: %w", err)
	}
	return nil
}

// Update modifies a holiday.
func (r *HolidayRepository) Update(ctx context.Context, holiday *models.Holiday) error {
	holiday.Date = models.NormalizeDate(holiday.Date)
	holiday.UpdatedAt = time.Now().UTC()
	const query = `UPDATE holidays SET name = :name, holiday_date = :holiday_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, holiday); err != nil {
		return fmt.Errorf("update holiday: %w", err)
	}
	return nil
}

// Delete removes a holiday by id.
func (r *HolidayRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM holidays WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	return nil
}
