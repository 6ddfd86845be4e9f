package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusdesk/faculty-api/internal/models"
	appErrors "github.com/campusdesk/faculty-api/pkg/errors"
	"github.com/campusdesk/faculty-api/pkg/jobs"
)

const (
	jobNotifyUser  = "notify_user"
	jobNotifyGroup = "notify_group"
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	CountUnread(ctx context.Context, userID string) (int, error)
}

type groupMemberLister interface {
	ListIDsByGroup(ctx context.Context, groupID string) ([]string, error)
}

// notifyPayload is the queue payload for both user and group jobs. For
// group jobs Target is the group id and fan-out happens in the worker.
type notifyPayload struct {
	Target    string
	Message   string
	Kind      models.NotificationKind
	RelatedID *string
}

// NotificationService persists notifications through a background queue so
// scheduling mutations never block on notification writes. Delivery is
// best-effort.
type NotificationService struct {
	store  notificationStore
	users  groupMemberLister
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService builds the service and its dispatch queue.
func NewNotificationService(store notificationStore, users groupMemberLister, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		store:  store,
		users:  users,
		logger: logger,
	}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.process, cfg)
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// NotifyUser enqueues a notification addressed to a single user. Failures
// are logged, not returned; callers never fail a mutation over a missed
// notification.
func (s *NotificationService) NotifyUser(userID, message string, kind models.NotificationKind, relatedID *string) {
	s.enqueue(jobNotifyUser, notifyPayload{Target: userID, Message: message, Kind: kind, RelatedID: relatedID})
}

// NotifyGroup enqueues a notification fanned out to every active student in
// a group.
func (s *NotificationService) NotifyGroup(groupID, message string, kind models.NotificationKind, relatedID *string) {
	s.enqueue(jobNotifyGroup, notifyPayload{Target: groupID, Message: message, Kind: kind, RelatedID: relatedID})
}

func (s *NotificationService) enqueue(jobType string, payload notifyPayload) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobType,
		Payload: payload,
	})
	if err != nil {
		s.logger.Warn("dropping notification",
			zap.String("type", jobType),
			zap.String("target", payload.Target),
			zap.Error(err))
	}
}

func (s *NotificationService) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notifyPayload)
	if !ok {
		s.logger.Error("unexpected notification payload type", zap.String("job_id", job.ID))
		return nil
	}

	switch job.Type {
	case jobNotifyUser:
		return s.deliver(ctx, payload.Target, payload)
	case jobNotifyGroup:
		ids, err := s.users.ListIDsByGroup(ctx, payload.Target)
		if err != nil {
			return fmt.Errorf("resolve group %s: %w", payload.Target, err)
		}
		for _, id := range ids {
			if err := s.deliver(ctx, id, payload); err != nil {
				return err
			}
		}
		return nil
	default:
		s.logger.Error("unknown notification job type", zap.String("type", job.Type))
		return nil
	}
}

func (s *NotificationService) deliver(ctx context.Context, userID string, payload notifyPayload) error {
	return s.store.Create(ctx, &models.Notification{
		UserID:    userID,
		Message:   payload.Message,
		Kind:      payload.Kind,
		RelatedID: payload.RelatedID,
	})
}

// List returns the recent notifications for a user.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	notifications, err := s.store.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.store.MarkRead(ctx, id, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// CountUnread returns the user's unread badge count.
func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int, error) {
	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}
