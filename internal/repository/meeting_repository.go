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

const meetingColumns = "id, student_id, faculty_id, preferred_at, duration_minutes, reason, status, response_message, created_at, updated_at"

// MeetingRepository provides persistence for meeting requests.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository creates a new meeting repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// FindByID loads a meeting by id.
func (r *MeetingRepository) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	query := fmt.Sprintf("SELECT %s FROM meetings WHERE id = $1", meetingColumns)
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, query, id); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// List returns meetings matching the filter ordered by preferred time.
func (r *MeetingRepository) List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error) {
	base := fmt.Sprintf("SELECT %s FROM meetings WHERE 1=1", meetingColumns)
	var conditions []string
	var args []interface{}

	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("preferred_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("preferred_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	query := base
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY preferred_at ASC"

	var meetings []models.Meeting
	if err := r.db.SelectContext(ctx, &meetings, query, args...); err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return meetings, nil
}

// Create stores a new meeting request.
func (r *MeetingRepository) Create(ctx context.Context, meeting *models.Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	if meeting.Status == "" {
		meeting.Status = models.MeetingPending
	}
	if meeting.DurationMinutes <= 0 {
		meeting.DurationMinutes = models.DefaultMeetingDurationMinutes
	}
	now := time.Now().UTC()
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = now
	}
	meeting.UpdatedAt = now

	const query = `INSERT INTO meetings (id, student_id, faculty_id, preferred_at, duration_minutes, reason, status, response_message, created_at, updated_at) VALUES (:id, :student_id, :faculty_id, :preferred_at, :duration_minutes, :reason, :status, :response_message, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, meeting); err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	return nil
}

// UpdateStatus transitions a meeting, optionally recording a response.
func (r *MeetingRepository) UpdateStatus(ctx context.Context, id string, status models.MeetingStatus, responseMessage *string) error {
	const query = `UPDATE meetings SET status = $2, response_message = COALESCE($3, response_message), updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, responseMessage, time.Now().UTC()); err != nil {
		return fmt.Errorf("update meeting status: %w", err)
	}
	return nil
}

// ListApprovedEndedBefore returns approved meetings whose window ended
// before the cutoff, candidates for auto-completion.
func (r *MeetingRepository) ListApprovedEndedBefore(ctx context.Context, cutoff time.Time) ([]models.Meeting, error) {
	query := fmt.Sprintf(`SELECT %s FROM meetings WHERE status = 'approved' AND preferred_at + (duration_minutes * interval '1 minute') <= $1`, meetingColumns)
	var meetings []models.Meeting
	if err := r.db.SelectContext(ctx, &meetings, query, cutoff); err != nil {
		return nil, fmt.Errorf("list approved ended meetings: %w", err)
	}
	return meetings, nil
}

// ListSyncViolations reports approved meetings whose derived activity count
// is not exactly one.
func (r *MeetingRepository) ListSyncViolations(ctx context.Context) ([]models.MeetingSyncViolation, error) {
	const query = `
SELECT
	m.id AS meeting_id,
	m.faculty_id AS faculty_id,
	COUNT(a.id) AS activity_count
FROM meetings m
LEFT JOIN activities a ON a.meeting_id = m.id
WHERE m.status = 'approved'
GROUP BY m.id, m.faculty_id
HAVING COUNT(a.id) != 1`
	var violations []models.MeetingSyncViolation
	if err := r.db.SelectContext(ctx, &violations, query); err != nil {
		return nil, fmt.Errorf("list meeting sync violations: %w", err)
	}
	return violations, nil
}
