package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusdesk/faculty-api/internal/models"
	appErrors "github.com/campusdesk/faculty-api/pkg/errors"
)

type sessionStore interface {
	FindByID(ctx context.Context, id string) (*models.ClassSession, error)
	List(ctx context.Context, filter models.ClassSessionFilter) ([]models.ClassSession, error)
	Create(ctx context.Context, session *models.ClassSession) error
	Update(ctx context.Context, session *models.ClassSession) error
	Reschedule(ctx context.Context, original, successor *models.ClassSession) error
}

// CreateSessionRequest books a one-off class session outside the weekly
// template.
type CreateSessionRequest struct {
	FacultyID     string    `json:"faculty_id"`
	GroupID       string    `json:"group_id" validate:"required"`
	Subject       string    `json:"subject" validate:"required,max=200"`
	StartsAt      time.Time `json:"starts_at" validate:"required"`
	DurationHours int       `json:"duration_hours" validate:"omitempty,min=1,max=8"`
	Topic         string    `json:"topic" validate:"max=500"`
}

// RescheduleSessionRequest moves a session to a new window.
type RescheduleSessionRequest struct {
	StartsAt      time.Time `json:"starts_at" validate:"required"`
	DurationHours int       `json:"duration_hours" validate:"omitempty,min=1,max=8"`
	Reason        string    `json:"reason" validate:"max=1000"`
}

// CompleteSessionRequest records the outcome of a held class.
type CompleteSessionRequest struct {
	Topic string `json:"topic" validate:"max=500"`
	Notes string `json:"notes" validate:"max=2000"`
}

// SessionService manages dated class occurrences: one-off creation,
// completion, cancellation and the reschedule lineage. Sessions are never
// deleted; terminal statuses preserve the audit trail.
type SessionService struct {
	sessions   sessionStore
	conflicts  conflictChecker
	timetables *TimetableService
	locks      *FacultyLocks
	notify     groupNotifier
	validator  *validator.Validate
	logger     *zap.Logger
}

type groupNotifier interface {
	NotifyGroup(groupID, message string, kind models.NotificationKind, relatedID *string)
}

// NewSessionService builds the service.
func NewSessionService(sessions sessionStore, conflicts conflictChecker, timetables *TimetableService, locks *FacultyLocks, notify groupNotifier, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions:   sessions,
		conflicts:  conflicts,
		timetables: timetables,
		locks:      locks,
		notify:     notify,
		validator:  validator.New(),
		logger:     logger,
	}
}

// Create books a one-off session after a conflict check under the faculty
// lock.
func (s *SessionService) Create(ctx context.Context, actor models.Actor, req CreateSessionRequest) (*models.ClassSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	facultyID := req.FacultyID
	if facultyID == "" {
		facultyID = actor.ID
	}
	if actor.Role != models.RoleAdmin && facultyID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot book sessions for another faculty")
	}

	duration := req.DurationHours
	if duration <= 0 {
		duration = 1
	}
	end := req.StartsAt.Add(time.Duration(duration) * time.Hour)

	unlock := s.locks.Lock(facultyID)
	defer unlock()

	conflict, reason, err := s.conflicts.Check(ctx, facultyID, req.StartsAt, end, ConflictOptions{})
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ConflictError(reason)
	}

	session := &models.ClassSession{
		FacultyID:     facultyID,
		GroupID:       req.GroupID,
		Subject:       req.Subject,
		StartsAt:      req.StartsAt,
		DurationHours: duration,
		Status:        models.SessionNotCompleted,
		Topic:         req.Topic,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	s.timetables.InvalidateAvailability(ctx, facultyID)
	if s.notify != nil {
		s.notify.NotifyGroup(session.GroupID, fmt.Sprintf("Extra %s class scheduled", session.Subject), models.NotificationClass, &session.ID)
	}
	return session, nil
}

// GetByID loads a single session.
func (s *SessionService) GetByID(ctx context.Context, id string) (*models.ClassSession, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// List returns sessions matching the filter. Students are scoped to their
// group by the handler.
func (s *SessionService) List(ctx context.Context, filter models.ClassSessionFilter) ([]models.ClassSession, error) {
	sessions, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// Complete marks a held class as completed, recording what was covered.
func (s *SessionService) Complete(ctx context.Context, actor models.Actor, id string, req CompleteSessionRequest) (*models.ClassSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	session, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionNotCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot complete a %s session", session.Status))
	}

	session.Status = models.SessionCompleted
	if req.Topic != "" {
		session.Topic = req.Topic
	}
	if req.Notes != "" {
		session.Notes = req.Notes
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	return session, nil
}

// Reopen reverts a completed session to not completed, for correcting a
// mistaken completion.
func (s *SessionService) Reopen(ctx context.Context, actor models.Actor, id string) (*models.ClassSession, error) {
	session, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot reopen a %s session", session.Status))
	}

	session.Status = models.SessionNotCompleted
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	return session, nil
}

// Cancel marks a session cancelled, freeing its window. Cancelling an
// already-cancelled session is a no-op success; other terminal statuses
// reject the transition.
func (s *SessionService) Cancel(ctx context.Context, actor models.Actor, id, reason string) (*models.ClassSession, error) {
	session, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionCancelled {
		return session, nil
	}
	if session.Status != models.SessionNotCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot cancel a %s session", session.Status))
	}

	session.Status = models.SessionCancelled
	if reason != "" {
		session.Notes = reason
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}

	s.timetables.InvalidateAvailability(ctx, session.FacultyID)
	if s.notify != nil {
		s.notify.NotifyGroup(session.GroupID, fmt.Sprintf("%s class on %s was cancelled", session.Subject, session.StartsAt.Format("2006-01-02")), models.NotificationClass, &session.ID)
	}
	s.logger.Info("session cancelled", zap.String("session_id", id), zap.String("faculty_id", session.FacultyID))
	return session, nil
}

// Reschedule moves a session to a new window. The original becomes a
// terminal rescheduled record pointing at a fresh successor; both sides of
// the lineage are written in one transaction. The conflict check excludes
// the original so moving within its own window still passes.
func (s *SessionService) Reschedule(ctx context.Context, actor models.Actor, id string, req RescheduleSessionRequest) (*models.ClassSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	session, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionNotCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot reschedule a %s session", session.Status))
	}

	duration := req.DurationHours
	if duration <= 0 {
		duration = session.DurationHours
	}
	end := req.StartsAt.Add(time.Duration(duration) * time.Hour)

	unlock := s.locks.Lock(session.FacultyID)
	defer unlock()

	conflict, reason, err := s.conflicts.Check(ctx, session.FacultyID, req.StartsAt, end, ConflictOptions{ExcludeSessionID: id})
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ConflictError(reason)
	}

	successor := &models.ClassSession{
		FacultyID:       session.FacultyID,
		GroupID:         session.GroupID,
		Subject:         session.Subject,
		StartsAt:        req.StartsAt,
		DurationHours:   duration,
		Status:          models.SessionNotCompleted,
		Topic:           session.Topic,
		RescheduledFrom: &session.ID,
	}
	if req.Reason != "" {
		session.Notes = req.Reason
	}
	if err := s.sessions.Reschedule(ctx, session, successor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule session")
	}

	s.timetables.InvalidateAvailability(ctx, session.FacultyID)
	if s.notify != nil {
		s.notify.NotifyGroup(session.GroupID, fmt.Sprintf("%s class moved to %s", session.Subject, successor.StartsAt.Format("2006-01-02 15:04")), models.NotificationClass, &successor.ID)
	}
	s.logger.Info("session rescheduled",
		zap.String("original_id", session.ID),
		zap.String("successor_id", successor.ID),
		zap.Time("starts_at", successor.StartsAt))
	return successor, nil
}

func (s *SessionService) owned(ctx context.Context, actor models.Actor, id string) (*models.ClassSession, error) {
	session, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && session.FacultyID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify another faculty's session")
	}
	return session, nil
}
