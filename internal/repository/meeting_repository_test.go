package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/faculty-api/internal/models"
)

func newMeetingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func meetingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "faculty_id", "preferred_at", "duration_minutes", "reason", "status", "response_message", "created_at", "updated_at"})
}

func TestMeetingRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO meetings")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	meeting := &models.Meeting{
		StudentID:   "stu1",
		FacultyID:   "fac1",
		PreferredAt: time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
		Reason:      "thesis discussion",
	}
	require.NoError(t, repo.Create(context.Background(), meeting))
	assert.NotEmpty(t, meeting.ID)
	assert.Equal(t, models.MeetingPending, meeting.Status)
	assert.Equal(t, models.DefaultMeetingDurationMinutes, meeting.DurationMinutes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryUpdateStatusKeepsMessageWhenNil(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("response_message = COALESCE($3, response_message)")).
		WithArgs("m1", string(models.MeetingApproved), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "m1", models.MeetingApproved, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryUpdateStatusRecordsMessage(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	msg := "no slot this week"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE meetings SET status = $2")).
		WithArgs("m1", string(models.MeetingRejected), &msg, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "m1", models.MeetingRejected, &msg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryListScopesByParticipant(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	rows := meetingRows().
		AddRow("m1", "stu1", "fac1", time.Now().Add(24*time.Hour), 30, "thesis", "pending", nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("student_id = $1 AND status = $2 ORDER BY preferred_at ASC")).
		WithArgs("stu1", string(models.MeetingPending)).
		WillReturnRows(rows)

	meetings, err := repo.List(context.Background(), models.MeetingFilter{
		StudentID: "stu1",
		Status:    models.MeetingPending,
	})
	require.NoError(t, err)
	assert.Len(t, meetings, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryListApprovedEndedBefore(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	cutoff := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	rows := meetingRows().
		AddRow("m1", "stu1", "fac1", cutoff.Add(-48*time.Hour), 30, "thesis", "approved", nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("preferred_at + (duration_minutes * interval '1 minute') <= $1")).
		WithArgs(cutoff).
		WillReturnRows(rows)

	meetings, err := repo.ListApprovedEndedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Len(t, meetings, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryListSyncViolations(t *testing.T) {
	db, mock, cleanup := newMeetingRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	rows := sqlmock.NewRows([]string{"meeting_id", "faculty_id", "activity_count"}).
		AddRow("m1", "fac1", 0).
		AddRow("m2", "fac2", 2)
	mock.ExpectQuery(regexp.QuoteMeta("HAVING COUNT(a.id) != 1")).
		WillReturnRows(rows)

	violations, err := repo.ListSyncViolations(context.Background())
	require.NoError(t, err)
	require.Len(t, violations, 2)
	assert.Equal(t, 0, violations[0].ActivityCount)
	assert.Equal(t, 2, violations[1].ActivityCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
