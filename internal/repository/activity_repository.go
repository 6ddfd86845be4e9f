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

const activityColumns = "id, faculty_id, activity_type, title, description, starts_at, ends_at, meeting_id, created_at, updated_at"

// ActivityRepository provides persistence for ad-hoc busy blocks.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new activity repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// FindByID loads an activity by id.
func (r *ActivityRepository) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	query := fmt.Sprintf("SELECT %s FROM activities WHERE id = $1", activityColumns)
	var activity models.Activity
	if err := r.db.GetContext(ctx, &activity, query, id); err != nil {
		return nil, err
	}
	return &activity, nil
}

// List returns activities matching the filter ordered by start instant.
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, error) {
	base := fmt.Sprintf("SELECT %s FROM activities WHERE 1=1", activityColumns)
	var conditions []string
	var args []interface{}

	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.ActivityType != "" {
		conditions = append(conditions, fmt.Sprintf("activity_type = $%d", len(args)+1))
		args = append(args, filter.ActivityType)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("starts_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("starts_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	query := base
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY starts_at ASC"

	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query, args...); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return activities, nil
}

// ListOverlapping returns activities intersecting the half-open interval
// [start, end) for a faculty. excludeID omits one activity so an update can
// check against everything but itself.
func (r *ActivityRepository) ListOverlapping(ctx context.Context, facultyID string, start, end time.Time, excludeID string) ([]models.Activity, error) {
	query := fmt.Sprintf(`SELECT %s FROM activities WHERE faculty_id = $1 AND starts_at < $2 AND ends_at > $3`, activityColumns)
	args := []interface{}{facultyID, end, start}
	if excludeID != "" {
		query += " AND id != $4"
		args = append(args, excludeID)
	}

	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query, args...); err != nil {
		return nil, fmt.Errorf("list overlapping activities: %w", err)
	}
	return activities, nil
}

// FindByMeeting loads the activity derived from a meeting, if any.
func (r *ActivityRepository) FindByMeeting(ctx context.Context, meetingID string) (*models.Activity, error) {
	query := fmt.Sprintf("SELECT %s FROM activities WHERE meeting_id = $1", activityColumns)
	var activity models.Activity
	if err := r.db.GetContext(ctx, &activity, query, meetingID); err != nil {
		return nil, err
	}
	return &activity, nil
}

// Create stores a new activity record.
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = now
	}
	activity.UpdatedAt = now

	const query = `INSERT INTO activities (id, faculty_id, activity_type, title, description, starts_at, ends_at, meeting_id, created_at, updated_at) VALUES (:id, :faculty_id, :activity_type, :title, :description, :starts_at, :ends_at, :meeting_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// Update modifies an activity record.
func (r *ActivityRepository) Update(ctx context.Context, activity *models.Activity) error {
	activity.UpdatedAt = time.Now().UTC()
	const query = `UPDATE activities SET activity_type = :activity_type, title = :title, description = :description, starts_at = :starts_at, ends_at = :ends_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	return nil
}

// Delete removes an activity by id.
func (r *ActivityRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return nil
}

// DeleteByMeeting removes every activity derived from a meeting.
func (r *ActivityRepository) DeleteByMeeting(ctx context.Context, meetingID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE meeting_id = $1`, meetingID); err != nil {
		return fmt.Errorf("delete activities for meeting: %w", err)
	}
	return nil
}
