package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/faculty-api/internal/models"
	appErrors "github.com/campusdesk/faculty-api/pkg/errors"
)

type stubSessionStore struct {
	sessions map[string]*models.ClassSession
	nextID   int
}

func (s *stubSessionStore) FindByID(ctx context.Context, id string) (*models.ClassSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *session
	return &clone, nil
}

func (s *stubSessionStore) List(ctx context.Context, filter models.ClassSessionFilter) ([]models.ClassSession, error) {
	var out []models.ClassSession
	for _, session := range s.sessions {
		out = append(out, *session)
	}
	return out, nil
}

func (s *stubSessionStore) Create(ctx context.Context, session *models.ClassSession) error {
	if session.ID == "" {
		s.nextID++
		session.ID = fmt.Sprintf("s%d", s.nextID)
	}
	if s.sessions == nil {
		s.sessions = make(map[string]*models.ClassSession)
	}
	clone := *session
	s.sessions[session.ID] = &clone
	return nil
}

func (s *stubSessionStore) Update(ctx context.Context, session *models.ClassSession) error {
	if _, ok := s.sessions[session.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *session
	s.sessions[session.ID] = &clone
	return nil
}

func (s *stubSessionStore) Reschedule(ctx context.Context, original, successor *models.ClassSession) error {
	if err := s.Create(ctx, successor); err != nil {
		return err
	}
	original.Status = models.SessionRescheduled
	original.RescheduledTo = &successor.ID
	return s.Update(ctx, original)
}

func newSessionFixture() (*SessionService, *stubSessionStore, *stubConflicts, *stubNotifier) {
	sessions := &stubSessionStore{sessions: map[string]*models.ClassSession{}}
	conflicts := &stubConflicts{}
	notify := &stubNotifier{}
	svc := NewSessionService(sessions, conflicts, newTestTimetables(), NewFacultyLocks(), notify, nil)
	return svc, sessions, conflicts, notify
}

func seededSession() *models.ClassSession {
	return &models.ClassSession{
		ID:            "s1",
		FacultyID:     "fac1",
		GroupID:       "g1",
		Subject:       "Algorithms",
		StartsAt:      monday.Add(10 * time.Hour),
		DurationHours: 1,
		Status:        models.SessionNotCompleted,
	}
}

func TestCreateSessionChecksConflicts(t *testing.T) {
	svc, sessions, conflicts, notify := newSessionFixture()
	actor := models.Actor{ID: "fac1", Role: models.RoleFaculty}
	req := CreateSessionRequest{
		GroupID:  "g1",
		Subject:  "Algorithms",
		StartsAt: monday.Add(14 * time.Hour),
	}

	session, err := svc.Create(context.Background(), actor, req)
	require.NoError(t, err)
	assert.Equal(t, "fac1", session.FacultyID)
	assert.Equal(t, 1, session.DurationHours)
	assert.Equal(t, models.SessionNotCompleted, session.Status)
	assert.Contains(t, notify.groups, "g1")
	assert.Len(t, sessions.sessions, 1)

	conflicts.conflict = true
	conflicts.reason = "weekly class scheduled in this slot"
	_, err = svc.Create(context.Background(), actor, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Len(t, sessions.sessions, 1)
}

func TestCreateSessionForbidsBookingForOthers(t *testing.T) {
	svc, _, _, _ := newSessionFixture()

	_, err := svc.Create(context.Background(), models.Actor{ID: "fac1", Role: models.RoleFaculty}, CreateSessionRequest{
		FacultyID: "fac2",
		GroupID:   "g1",
		Subject:   "Algorithms",
		StartsAt:  monday.Add(14 * time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCompleteAndReopenSession(t *testing.T) {
	svc, sessions, _, _ := newSessionFixture()
	sessions.sessions["s1"] = seededSession()
	actor := models.Actor{ID: "fac1", Role: models.RoleFaculty}

	done, err := svc.Complete(context.Background(), actor, "s1", CompleteSessionRequest{Topic: "Graphs", Notes: "covered BFS"})
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, done.Status)
	assert.Equal(t, "Graphs", done.Topic)

	_, err = svc.Complete(context.Background(), actor, "s1", CompleteSessionRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)

	reopened, err := svc.Reopen(context.Background(), actor, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionNotCompleted, reopened.Status)
}

func TestCancelSessionIsIdempotent(t *testing.T) {
	svc, sessions, _, notify := newSessionFixture()
	sessions.sessions["s1"] = seededSession()
	actor := models.Actor{ID: "fac1", Role: models.RoleFaculty}

	cancelled, err := svc.Cancel(context.Background(), actor, "s1", "faculty away")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, cancelled.Status)
	assert.Equal(t, "faculty away", cancelled.Notes)
	assert.Len(t, notify.groups, 1)

	again, err := svc.Cancel(context.Background(), actor, "s1", "still away")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, again.Status)
	assert.Len(t, notify.groups, 1)
}

func TestCancelCompletedSessionFails(t *testing.T) {
	svc, sessions, _, _ := newSessionFixture()
	session := seededSession()
	session.Status = models.SessionCompleted
	sessions.sessions["s1"] = session

	_, err := svc.Cancel(context.Background(), models.Actor{ID: "fac1", Role: models.RoleFaculty}, "s1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestRescheduleLinksLineage(t *testing.T) {
	svc, sessions, conflicts, _ := newSessionFixture()
	sessions.sessions["s1"] = seededSession()
	actor := models.Actor{ID: "fac1", Role: models.RoleFaculty}
	newStart := monday.Add(24*time.Hour + 11*time.Hour)

	successor, err := svc.Reschedule(context.Background(), actor, "s1", RescheduleSessionRequest{
		StartsAt: newStart,
		Reason:   "room unavailable",
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", conflicts.lastOpts.ExcludeSessionID)

	assert.Equal(t, models.SessionNotCompleted, successor.Status)
	assert.Equal(t, newStart, successor.StartsAt)
	assert.Equal(t, 1, successor.DurationHours)
	require.NotNil(t, successor.RescheduledFrom)
	assert.Equal(t, "s1", *successor.RescheduledFrom)

	original := sessions.sessions["s1"]
	assert.Equal(t, models.SessionRescheduled, original.Status)
	require.NotNil(t, original.RescheduledTo)
	assert.Equal(t, successor.ID, *original.RescheduledTo)
	assert.Equal(t, "room unavailable", original.Notes)
}

func TestRescheduleTerminalSessionFails(t *testing.T) {
	svc, sessions, _, _ := newSessionFixture()
	session := seededSession()
	session.Status = models.SessionCancelled
	sessions.sessions["s1"] = session

	_, err := svc.Reschedule(context.Background(), models.Actor{ID: "fac1", Role: models.RoleFaculty}, "s1", RescheduleSessionRequest{
		StartsAt: monday.Add(48 * time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}
