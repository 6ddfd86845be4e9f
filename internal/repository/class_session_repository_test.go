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

func newClassSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sessionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "faculty_id", "group_id", "subject", "starts_at", "duration_hours", "status", "topic", "notes", "rescheduled_from", "rescheduled_to", "created_at", "updated_at"})
}

func TestClassSessionRepositoryListOverlapping(t *testing.T) {
	db, mock, cleanup := newClassSessionRepoMock(t)
	defer cleanup()
	repo := NewClassSessionRepository(db)

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	rows := sessionRows().
		AddRow("s1", "fac1", "g1", "Algorithms", start, 1, "not_completed", "", "", nil, nil, time.Now(), time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("status NOT IN ('cancelled', 'rescheduled')")).
		WithArgs("fac1", end, start).
		WillReturnRows(rows)

	sessions, err := repo.ListOverlapping(context.Background(), "fac1", start, end, "")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassSessionRepositoryListOverlappingExcludesID(t *testing.T) {
	db, mock, cleanup := newClassSessionRepoMock(t)
	defer cleanup()
	repo := NewClassSessionRepository(db)

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("AND id != $4")).
		WithArgs("fac1", end, start, "s1").
		WillReturnRows(sessionRows())

	sessions, err := repo.ListOverlapping(context.Background(), "fac1", start, end, "s1")
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassSessionRepositoryCreateFillsDefaults(t *testing.T) {
	db, mock, cleanup := newClassSessionRepoMock(t)
	defer cleanup()
	repo := NewClassSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_sessions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	session := &models.ClassSession{
		FacultyID: "fac1",
		GroupID:   "g1",
		Subject:   "Algorithms",
		StartsAt:  time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), session))
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, models.SessionNotCompleted, session.Status)
	assert.Equal(t, 1, session.DurationHours)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassSessionRepositoryBulkCreateRunsInTx(t *testing.T) {
	db, mock, cleanup := newClassSessionRepoMock(t)
	defer cleanup()
	repo := NewClassSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_sessions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_sessions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	sessions := []models.ClassSession{
		{FacultyID: "fac1", GroupID: "g1", Subject: "Algorithms", StartsAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
		{FacultyID: "fac1", GroupID: "g1", Subject: "Algorithms", StartsAt: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, repo.BulkCreate(context.Background(), sessions))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassSessionRepositoryBulkCreateEmptyNoop(t *testing.T) {
	db, mock, cleanup := newClassSessionRepoMock(t)
	defer cleanup()
	repo := NewClassSessionRepository(db)

	require.NoError(t, repo.BulkCreate(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassSessionRepositoryRescheduleLinksBothSides(t *testing.T) {
	db, mock, cleanup := newClassSessionRepoMock(t)
	defer cleanup()
	repo := NewClassSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE class_sessions SET status =")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_sessions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	original := &models.ClassSession{
		ID:        "s1",
		FacultyID: "fac1",
		GroupID:   "g1",
		Subject:   "Algorithms",
		StartsAt:  time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Status:    models.SessionNotCompleted,
	}
	originalID := original.ID
	successor := &models.ClassSession{
		FacultyID:       "fac1",
		GroupID:         "g1",
		Subject:         "Algorithms",
		StartsAt:        time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC),
		RescheduledFrom: &originalID,
	}
	require.NoError(t, repo.Reschedule(context.Background(), original, successor))

	assert.Equal(t, models.SessionRescheduled, original.Status)
	require.NotNil(t, original.RescheduledTo)
	assert.Equal(t, successor.ID, *original.RescheduledTo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassSessionRepositoryRescheduleRollsBackOnInsertError(t *testing.T) {
	db, mock, cleanup := newClassSessionRepoMock(t)
	defer cleanup()
	repo := NewClassSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE class_sessions SET status =")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_sessions")).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	original := &models.ClassSession{ID: "s1", FacultyID: "fac1", Status: models.SessionNotCompleted}
	successor := &models.ClassSession{FacultyID: "fac1", GroupID: "g1", Subject: "Algorithms"}
	err := repo.Reschedule(context.Background(), original, successor)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassSessionRepositoryListStartTimes(t *testing.T) {
	db, mock, cleanup := newClassSessionRepoMock(t)
	defer cleanup()
	repo := NewClassSessionRepository(db)

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(7 * 24 * time.Hour)
	rows := sqlmock.NewRows([]string{"starts_at"}).
		AddRow(from.Add(10 * time.Hour)).
		AddRow(from.Add(34 * time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT starts_at FROM class_sessions WHERE faculty_id = $1 AND starts_at >= $2 AND starts_at <= $3")).
		WithArgs("fac1", from, to).
		WillReturnRows(rows)

	starts, err := repo.ListStartTimes(context.Background(), "fac1", from, to)
	require.NoError(t, err)
	assert.Len(t, starts, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassSessionRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newClassSessionRepoMock(t)
	defer cleanup()
	repo := NewClassSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("faculty_id = $1 AND status = $2 ORDER BY starts_at ASC")).
		WithArgs("fac1", string(models.SessionNotCompleted)).
		WillReturnRows(sessionRows())

	_, err := repo.List(context.Background(), models.ClassSessionFilter{
		FacultyID: "fac1",
		Status:    models.SessionNotCompleted,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassSessionRepositoryListLineageViolations(t *testing.T) {
	db, mock, cleanup := newClassSessionRepoMock(t)
	defer cleanup()
	repo := NewClassSessionRepository(db)

	rows := sqlmock.NewRows([]string{"session_id", "faculty_id", "rescheduled_to", "problem"}).
		AddRow("s1", "fac1", nil, "missing successor link").
		AddRow("s3", "fac1", "s2", "successor does not reference original")

	// A successor may exist yet fail to point back; the join must not hide it.
	mock.ExpectQuery(regexp.QuoteMeta("n.rescheduled_from IS DISTINCT FROM s.id")).
		WillReturnRows(rows)

	violations, err := repo.ListLineageViolations(context.Background())
	require.NoError(t, err)
	require.Len(t, violations, 2)
	assert.Equal(t, "missing successor link", violations[0].Problem)
	assert.Equal(t, "successor does not reference original", violations[1].Problem)
	assert.NoError(t, mock.ExpectationsWereMet())
}
