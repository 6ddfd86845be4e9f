package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusdesk/faculty-api/internal/models"
)

// TimetableRepository provides persistence for weekly timetables.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a new timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// FindByFaculty loads the timetable owned by a faculty member.
func (r *TimetableRepository) FindByFaculty(ctx context.Context, facultyID string) (*models.Timetable, error) {
	const query = `SELECT id, faculty_id, weekly_schedule, created_at, updated_at FROM timetables WHERE faculty_id = $1`
	var tt models.Timetable
	if err := r.db.GetContext(ctx, &tt, query, facultyID); err != nil {
		return nil, err
	}
	return &tt, nil
}

// ListAll returns every timetable, used when composing group timetables.
func (r *TimetableRepository) ListAll(ctx context.Context) ([]models.Timetable, error) {
	const query = `SELECT id, faculty_id, weekly_schedule, created_at, updated_at FROM timetables ORDER BY created_at ASC`
	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query); err != nil {
		return nil, fmt.Errorf("list timetables: %w", err)
	}
	return timetables, nil
}

// Create stores a new timetable record.
func (r *TimetableRepository) Create(ctx context.Context, tt *models.Timetable) error {
	if tt.ID == "" {
		tt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tt.CreatedAt.IsZero() {
		tt.CreatedAt = now
	}
	tt.UpdatedAt = now

	const query = `INSERT INTO timetables (id, faculty_id, weekly_schedule, created_at, updated_at) VALUES (:id, :faculty_id, :weekly_schedule, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tt); err != nil {
		return fmt.Errorf("create timetable: %w", err)
	}
	return nil
}

// Update replaces the weekly schedule of an existing timetable.
func (r *TimetableRepository) Update(ctx context.Context, tt *models.Timetable) error {
	tt.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetables SET weekly_schedule = :weekly_schedule, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, tt); err != nil {
		return fmt.Errorf("update timetable: %w", err)
	}
	return nil
}
