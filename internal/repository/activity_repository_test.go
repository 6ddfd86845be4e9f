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

func newActivityRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func activityRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "faculty_id", "activity_type", "title", "description", "starts_at", "ends_at", "meeting_id", "created_at", "updated_at"})
}

func TestActivityRepositoryListOverlapping(t *testing.T) {
	db, mock, cleanup := newActivityRepoMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	rows := activityRows().
		AddRow("a1", "fac1", "research", "Lab supervision", "", start, end, nil, time.Now(), time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("WHERE faculty_id = $1 AND starts_at < $2 AND ends_at > $3")).
		WithArgs("fac1", end, start).
		WillReturnRows(rows)

	activities, err := repo.ListOverlapping(context.Background(), "fac1", start, end, "")
	require.NoError(t, err)
	assert.Len(t, activities, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryListOverlappingExcludesID(t *testing.T) {
	db, mock, cleanup := newActivityRepoMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("AND id != $4")).
		WithArgs("fac1", end, start, "a1").
		WillReturnRows(activityRows())

	activities, err := repo.ListOverlapping(context.Background(), "fac1", start, end, "a1")
	require.NoError(t, err)
	assert.Empty(t, activities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newActivityRepoMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO activities")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	activity := &models.Activity{
		FacultyID:    "fac1",
		ActivityType: models.ActivityResearch,
		Title:        "Lab supervision",
		StartsAt:     time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		EndsAt:       time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), activity))
	assert.NotEmpty(t, activity.ID)
	assert.False(t, activity.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryDeleteByMeeting(t *testing.T) {
	db, mock, cleanup := newActivityRepoMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM activities WHERE meeting_id = $1")).
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteByMeeting(context.Background(), "m1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newActivityRepoMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("faculty_id = $1 AND activity_type = $2 AND starts_at >= $3 ORDER BY starts_at ASC")).
		WithArgs("fac1", string(models.ActivityResearch), from).
		WillReturnRows(activityRows())

	_, err := repo.List(context.Background(), models.ActivityFilter{
		FacultyID:    "fac1",
		ActivityType: models.ActivityResearch,
		From:         &from,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
