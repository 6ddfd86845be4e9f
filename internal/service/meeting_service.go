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

type meetingStore interface {
	FindByID(ctx context.Context, id string) (*models.Meeting, error)
	List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error)
	Create(ctx context.Context, meeting *models.Meeting) error
	UpdateStatus(ctx context.Context, id string, status models.MeetingStatus, responseMessage *string) error
}

type meetingActivityStore interface {
	Create(ctx context.Context, activity *models.Activity) error
	DeleteByMeeting(ctx context.Context, meetingID string) error
}

type notifier interface {
	NotifyUser(userID, message string, kind models.NotificationKind, relatedID *string)
}

// RequestMeetingRequest is a student's ask for faculty time.
type RequestMeetingRequest struct {
	FacultyID       string    `json:"faculty_id" validate:"required"`
	PreferredAt     time.Time `json:"preferred_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,min=5,max=240"`
	Reason          string    `json:"reason" validate:"required,max=1000"`
}

// MeetingService runs the meeting request workflow. Approval is the only
// transition guarded by the conflict detector: a clash leaves the request
// pending and untouched. While a meeting is approved exactly one activity
// carries its id; leaving the approved state removes that activity.
type MeetingService struct {
	meetings   meetingStore
	activities meetingActivityStore
	conflicts  conflictChecker
	timetables *TimetableService
	locks      *FacultyLocks
	notify     notifier
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewMeetingService builds the service.
func NewMeetingService(meetings meetingStore, activities meetingActivityStore, conflicts conflictChecker, timetables *TimetableService, locks *FacultyLocks, notify notifier, metrics *MetricsService, logger *zap.Logger) *MeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeetingService{
		meetings:   meetings,
		activities: activities,
		conflicts:  conflicts,
		timetables: timetables,
		locks:      locks,
		notify:     notify,
		metrics:    metrics,
		validator:  validator.New(),
		logger:     logger,
	}
}

// Request files a new pending meeting request. No conflict check runs here;
// the faculty decides at approval time.
func (s *MeetingService) Request(ctx context.Context, actor models.Actor, req RequestMeetingRequest) (*models.Meeting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may request meetings")
	}
	if !req.PreferredAt.After(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "preferred time must be in the future")
	}

	meeting := &models.Meeting{
		StudentID:       actor.ID,
		FacultyID:       req.FacultyID,
		PreferredAt:     req.PreferredAt,
		DurationMinutes: req.DurationMinutes,
		Reason:          req.Reason,
		Status:          models.MeetingPending,
	}
	if err := s.meetings.Create(ctx, meeting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create meeting request")
	}

	if s.notify != nil {
		s.notify.NotifyUser(meeting.FacultyID, "New meeting request awaiting your review", models.NotificationMeeting, &meeting.ID)
	}
	s.logger.Info("meeting requested",
		zap.String("meeting_id", meeting.ID),
		zap.String("student_id", meeting.StudentID),
		zap.String("faculty_id", meeting.FacultyID))
	return meeting, nil
}

// GetByID loads a meeting visible to the actor.
func (s *MeetingService) GetByID(ctx context.Context, actor models.Actor, id string) (*models.Meeting, error) {
	meeting, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canView(actor, meeting) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this meeting")
	}
	return meeting, nil
}

// List returns meetings scoped to the actor: students see their own,
// faculty see requests addressed to them, admins see everything.
func (s *MeetingService) List(ctx context.Context, actor models.Actor, filter models.MeetingFilter) ([]models.Meeting, error) {
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.ID
	case models.RoleFaculty:
		filter.FacultyID = actor.ID
	}
	meetings, err := s.meetings.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list meetings")
	}
	return meetings, nil
}

// Transition applies a workflow action to a meeting.
func (s *MeetingService) Transition(ctx context.Context, actor models.Actor, id string, action models.MeetingAction, responseMessage string) (*models.Meeting, error) {
	meeting, err := s.transition(ctx, actor, id, action, responseMessage)
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(action), err)
	}
	return meeting, err
}

func (s *MeetingService) transition(ctx context.Context, actor models.Actor, id string, action models.MeetingAction, responseMessage string) (*models.Meeting, error) {
	meeting, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	switch action {
	case models.MeetingActionApprove:
		return s.approve(ctx, actor, meeting, responseMessage)
	case models.MeetingActionReject:
		return s.reject(ctx, actor, meeting, responseMessage)
	case models.MeetingActionCancel:
		return s.cancel(ctx, actor, meeting, responseMessage)
	case models.MeetingActionComplete:
		return s.complete(ctx, actor, meeting, responseMessage)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown meeting action %q", action))
	}
}

// approve moves pending -> approved. The conflict check and the activity
// insert run under the faculty lock; a clash returns the conflict error and
// leaves the request pending with nothing created.
func (s *MeetingService) approve(ctx context.Context, actor models.Actor, meeting *models.Meeting, responseMessage string) (*models.Meeting, error) {
	if err := s.requireFaculty(actor, meeting); err != nil {
		return nil, err
	}
	if meeting.Status != models.MeetingPending {
		return nil, s.invalidTransition(meeting.Status, models.MeetingActionApprove)
	}

	unlock := s.locks.Lock(meeting.FacultyID)
	defer unlock()

	start, end := meeting.Window()
	conflict, reason, err := s.conflicts.Check(ctx, meeting.FacultyID, start, end, ConflictOptions{})
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ConflictError(reason)
	}

	activity := &models.Activity{
		FacultyID:    meeting.FacultyID,
		ActivityType: models.ActivityMeeting,
		Title:        "Meeting with student",
		Description:  meeting.Reason,
		StartsAt:     start,
		EndsAt:       end,
		MeetingID:    &meeting.ID,
	}
	if err := s.activities.Create(ctx, activity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create meeting activity")
	}

	if err := s.updateStatus(ctx, meeting, models.MeetingApproved, responseMessage); err != nil {
		// Roll the busy block back so a failed transition leaves no trace.
		if delErr := s.activities.DeleteByMeeting(ctx, meeting.ID); delErr != nil {
			s.logger.Error("failed to undo meeting activity after status error",
				zap.String("meeting_id", meeting.ID), zap.Error(delErr))
		}
		return nil, err
	}

	s.timetables.InvalidateAvailability(ctx, meeting.FacultyID)
	if s.notify != nil {
		s.notify.NotifyUser(meeting.StudentID, "Your meeting request was approved", models.NotificationMeeting, &meeting.ID)
	}
	s.logger.Info("meeting approved", zap.String("meeting_id", meeting.ID), zap.String("faculty_id", meeting.FacultyID))
	return meeting, nil
}

// reject moves pending or approved -> rejected. Withdrawing an approved
// meeting removes its derived activity, freeing the window.
func (s *MeetingService) reject(ctx context.Context, actor models.Actor, meeting *models.Meeting, responseMessage string) (*models.Meeting, error) {
	if err := s.requireFaculty(actor, meeting); err != nil {
		return nil, err
	}
	if meeting.Status != models.MeetingPending && meeting.Status != models.MeetingApproved {
		return nil, s.invalidTransition(meeting.Status, models.MeetingActionReject)
	}

	wasApproved := meeting.Status == models.MeetingApproved
	if wasApproved {
		if err := s.activities.DeleteByMeeting(ctx, meeting.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove meeting activity")
		}
	}
	if err := s.updateStatus(ctx, meeting, models.MeetingRejected, responseMessage); err != nil {
		return nil, err
	}

	if wasApproved {
		s.timetables.InvalidateAvailability(ctx, meeting.FacultyID)
	}
	if s.notify != nil {
		s.notify.NotifyUser(meeting.StudentID, "Your meeting request was declined", models.NotificationMeeting, &meeting.ID)
	}
	return meeting, nil
}

// cancel moves pending or approved -> cancelled. Only the requesting
// student may cancel. Cancelling an approved meeting removes its derived
// activity, freeing the window.
func (s *MeetingService) cancel(ctx context.Context, actor models.Actor, meeting *models.Meeting, responseMessage string) (*models.Meeting, error) {
	if actor.Role != models.RoleAdmin && actor.ID != meeting.StudentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requesting student may cancel")
	}
	if meeting.Status != models.MeetingPending && meeting.Status != models.MeetingApproved {
		return nil, s.invalidTransition(meeting.Status, models.MeetingActionCancel)
	}

	wasApproved := meeting.Status == models.MeetingApproved
	if wasApproved {
		if err := s.activities.DeleteByMeeting(ctx, meeting.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove meeting activity")
		}
	}
	if err := s.updateStatus(ctx, meeting, models.MeetingCancelled, responseMessage); err != nil {
		return nil, err
	}

	if wasApproved {
		s.timetables.InvalidateAvailability(ctx, meeting.FacultyID)
	}
	if s.notify != nil {
		s.notify.NotifyUser(meeting.FacultyID, "A meeting was cancelled", models.NotificationMeeting, &meeting.ID)
	}
	return meeting, nil
}

// complete moves approved -> completed and retires the derived activity.
func (s *MeetingService) complete(ctx context.Context, actor models.Actor, meeting *models.Meeting, responseMessage string) (*models.Meeting, error) {
	if err := s.requireFaculty(actor, meeting); err != nil {
		return nil, err
	}
	if meeting.Status != models.MeetingApproved {
		return nil, s.invalidTransition(meeting.Status, models.MeetingActionComplete)
	}
	if err := s.activities.DeleteByMeeting(ctx, meeting.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove meeting activity")
	}
	if err := s.updateStatus(ctx, meeting, models.MeetingCompleted, responseMessage); err != nil {
		return nil, err
	}
	s.timetables.InvalidateAvailability(ctx, meeting.FacultyID)
	return meeting, nil
}

func (s *MeetingService) find(ctx context.Context, id string) (*models.Meeting, error) {
	meeting, err := s.meetings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meeting")
	}
	return meeting, nil
}

func (s *MeetingService) updateStatus(ctx context.Context, meeting *models.Meeting, status models.MeetingStatus, responseMessage string) error {
	var msg *string
	if responseMessage != "" {
		msg = &responseMessage
	}
	if err := s.meetings.UpdateStatus(ctx, meeting.ID, status, msg); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update meeting status")
	}
	meeting.Status = status
	if msg != nil {
		meeting.ResponseMessage = msg
	}
	return nil
}

func (s *MeetingService) requireFaculty(actor models.Actor, meeting *models.Meeting) error {
	if actor.Role == models.RoleAdmin || actor.ID == meeting.FacultyID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "only the requested faculty may respond")
}

func (s *MeetingService) canView(actor models.Actor, meeting *models.Meeting) bool {
	return actor.Role == models.RoleAdmin || actor.ID == meeting.FacultyID || actor.ID == meeting.StudentID
}

func (s *MeetingService) invalidTransition(from models.MeetingStatus, action models.MeetingAction) error {
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot %s a %s meeting", action, from))
}
