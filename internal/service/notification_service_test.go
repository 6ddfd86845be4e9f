package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/faculty-api/internal/models"
	"github.com/campusdesk/faculty-api/pkg/jobs"
)

type stubNotificationStore struct {
	mu      sync.Mutex
	created []models.Notification
	signal  chan struct{}
}

func (s *stubNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	s.created = append(s.created, *n)
	s.mu.Unlock()
	if s.signal != nil {
		s.signal <- struct{}{}
	}
	return nil
}

func (s *stubNotificationStore) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.created {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *stubNotificationStore) MarkRead(ctx context.Context, id, userID string) error {
	return nil
}

func (s *stubNotificationStore) CountUnread(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created), nil
}

type stubGroupMembers struct {
	members map[string][]string
}

func (s *stubGroupMembers) ListIDsByGroup(ctx context.Context, groupID string) ([]string, error) {
	return s.members[groupID], nil
}

func TestNotificationProcessDeliversToUser(t *testing.T) {
	store := &stubNotificationStore{}
	svc := NewNotificationService(store, &stubGroupMembers{}, jobs.QueueConfig{}, nil)

	related := "m1"
	err := svc.process(context.Background(), jobs.Job{
		ID:   "job1",
		Type: jobNotifyUser,
		Payload: notifyPayload{
			Target:    "fac1",
			Message:   "New meeting request awaiting your review",
			Kind:      models.NotificationMeeting,
			RelatedID: &related,
		},
	})
	require.NoError(t, err)
	require.Len(t, store.created, 1)
	assert.Equal(t, "fac1", store.created[0].UserID)
	assert.Equal(t, models.NotificationMeeting, store.created[0].Kind)
	require.NotNil(t, store.created[0].RelatedID)
	assert.Equal(t, "m1", *store.created[0].RelatedID)
}

func TestNotificationProcessFansOutGroup(t *testing.T) {
	store := &stubNotificationStore{}
	members := &stubGroupMembers{members: map[string][]string{"g1": {"stu1", "stu2", "stu3"}}}
	svc := NewNotificationService(store, members, jobs.QueueConfig{}, nil)

	err := svc.process(context.Background(), jobs.Job{
		ID:   "job1",
		Type: jobNotifyGroup,
		Payload: notifyPayload{
			Target:  "g1",
			Message: "Algorithms class on 2026-03-02 was cancelled",
			Kind:    models.NotificationClass,
		},
	})
	require.NoError(t, err)
	require.Len(t, store.created, 3)
	assert.Equal(t, "stu1", store.created[0].UserID)
	assert.Equal(t, "stu3", store.created[2].UserID)
}

func TestNotifyUserThroughQueue(t *testing.T) {
	store := &stubNotificationStore{signal: make(chan struct{}, 1)}
	svc := NewNotificationService(store, &stubGroupMembers{}, jobs.QueueConfig{Workers: 1}, nil)

	svc.Start(context.Background())
	defer svc.Stop()

	svc.NotifyUser("stu1", "Your meeting request was approved", models.NotificationMeeting, nil)

	select {
	case <-store.signal:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.created, 1)
	assert.Equal(t, "stu1", store.created[0].UserID)
}

func TestNotifyBeforeStartDropsSilently(t *testing.T) {
	store := &stubNotificationStore{}
	svc := NewNotificationService(store, &stubGroupMembers{}, jobs.QueueConfig{}, nil)

	// Queue not started: enqueue fails and the notification is dropped
	// without surfacing an error to the mutation path.
	svc.NotifyUser("stu1", "dropped", models.NotificationSystem, nil)
	assert.Empty(t, store.created)
}
