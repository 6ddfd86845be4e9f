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

const classSessionColumns = "id, faculty_id, group_id, subject, starts_at, duration_hours, status, topic, notes, rescheduled_from, rescheduled_to, created_at, updated_at"

// ClassSessionRepository provides persistence for dated class occurrences.
type ClassSessionRepository struct {
	db *sqlx.DB
}

// NewClassSessionRepository creates a new class session repository.
func NewClassSessionRepository(db *sqlx.DB) *ClassSessionRepository {
	return &ClassSessionRepository{db: db}
}

// FindByID loads a session by id.
func (r *ClassSessionRepository) FindByID(ctx context.Context, id string) (*models.ClassSession, error) {
	query := fmt.Sprintf("SELECT %s FROM class_sessions WHERE id = $1", classSessionColumns)
	var session models.ClassSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns sessions matching the filter ordered by start instant.
func (r *ClassSessionRepository) List(ctx context.Context, filter models.ClassSessionFilter) ([]models.ClassSession, error) {
	base := fmt.Sprintf("SELECT %s FROM class_sessions WHERE 1=1", classSessionColumns)
	var conditions []string
	var args []interface{}

	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
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

	var sessions []models.ClassSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list class sessions: %w", err)
	}
	return sessions, nil
}

// ListOverlapping returns live sessions intersecting the half-open interval
// [start, end) for a faculty. Cancelled and rescheduled sessions do not
// occupy time. excludeID omits one session, used for self-excluded checks.
func (r *ClassSessionRepository) ListOverlapping(ctx context.Context, facultyID string, start, end time.Time, excludeID string) ([]models.ClassSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM class_sessions
WHERE faculty_id = $1
  AND status NOT IN ('cancelled', 'rescheduled')
  AND starts_at < $2
  AND starts_at + (duration_hours * interval '1 hour') > $3`, classSessionColumns)
	args := []interface{}{facultyID, end, start}
	if excludeID != "" {
		query += " AND id != $4"
		args = append(args, excludeID)
	}

	var sessions []models.ClassSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list overlapping class sessions: %w", err)
	}
	return sessions, nil
}

// ListStartTimes returns the start instants of every session for a faculty
// in [from, to], regardless of status. Used to keep materialization
// idempotent per (faculty, start instant).
func (r *ClassSessionRepository) ListStartTimes(ctx context.Context, facultyID string, from, to time.Time) ([]time.Time, error) {
	const query = `SELECT starts_at FROM class_sessions WHERE faculty_id = $1 AND starts_at >= $2 AND starts_at <= $3`
	var starts []time.Time
	if err := r.db.SelectContext(ctx, &starts, query, facultyID, from, to); err != nil {
		return nil, fmt.Errorf("list session start times: %w", err)
	}
	return starts, nil
}

// Create stores a single session record.
func (r *ClassSessionRepository) Create(ctx context.Context, session *models.ClassSession) error {
	prepareSession(session)
	if _, err := r.db.NamedExecContext(ctx, insertClassSessionQuery, session); err != nil {
		return fmt.Errorf("create class session: %w", err)
	}
	return nil
}

// BulkCreate inserts many sessions within a single transaction.
func (r *ClassSessionRepository) BulkCreate(ctx context.Context, sessions []models.ClassSession) (err error) {
	if len(sessions) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create sessions: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range sessions {
		prepareSession(&sessions[i])
		if _, err = tx.NamedExecContext(ctx, insertClassSessionQuery, &sessions[i]); err != nil {
			return fmt.Errorf("bulk insert class session: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create sessions: %w", err)
	}
	return nil
}

// Update modifies a session record.
func (r *ClassSessionRepository) Update(ctx context.Context, session *models.ClassSession) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_sessions SET status = :status, topic = :topic, notes = :notes, rescheduled_to = :rescheduled_to, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update class session: %w", err)
	}
	return nil
}

// Reschedule applies the two-record lineage write as a unit: the original is
// marked rescheduled pointing at its successor, and the successor is
// inserted pointing back.
func (r *ClassSessionRepository) Reschedule(ctx context.Context, original, successor *models.ClassSession) (err error) {
	prepareSession(successor)
	original.Status = models.SessionRescheduled
	original.RescheduledTo = &successor.ID
	original.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reschedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const markQuery = `UPDATE class_sessions SET status = :status, notes = :notes, rescheduled_to = :rescheduled_to, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, markQuery, original); err != nil {
		return fmt.Errorf("mark session rescheduled: %w", err)
	}
	if _, err = tx.NamedExecContext(ctx, insertClassSessionQuery, successor); err != nil {
		return fmt.Errorf("insert rescheduled session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reschedule: %w", err)
	}
	return nil
}

// ListLineageViolations reports rescheduled sessions whose successor link is
// null or points at a session that does not reference them back.
func (r *ClassSessionRepository) ListLineageViolations(ctx context.Context) ([]models.LineageViolation, error) {
	const query = `
SELECT
	s.id AS session_id,
	s.faculty_id AS faculty_id,
	s.rescheduled_to AS rescheduled_to,
	CASE
		WHEN s.rescheduled_to IS NULL THEN 'missing successor link'
		WHEN n.id IS NULL THEN 'dangling successor link'
		ELSE 'successor does not reference original'
	END AS problem
FROM class_sessions s
LEFT JOIN class_sessions n ON n.id = s.rescheduled_to
WHERE s.status = 'rescheduled'
	AND (s.rescheduled_to IS NULL OR n.id IS NULL OR n.rescheduled_from IS DISTINCT FROM s.id)`
	var violations []models.LineageViolation
	if err := r.db.SelectContext(ctx, &violations, query); err != nil {
		return nil, fmt.Errorf("list lineage violations: %w", err)
	}
	return violations, nil
}

const insertClassSessionQuery = `INSERT INTO class_sessions (id, faculty_id, group_id, subject, starts_at, duration_hours, status, topic, notes, rescheduled_from, rescheduled_to, created_at, updated_at) VALUES (:id, :faculty_id, :group_id, :subject, :starts_at, :duration_hours, :status, :topic, :notes, :rescheduled_from, :rescheduled_to, :created_at, :updated_at)`

func prepareSession(session *models.ClassSession) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = models.SessionNotCompleted
	}
	if session.DurationHours <= 0 {
		session.DurationHours = 1
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
}
