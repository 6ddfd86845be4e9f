package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusdesk/faculty-api/internal/models"
	appErrors "github.com/campusdesk/faculty-api/pkg/errors"
)

type stubUserReader struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
}

func (s *stubUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (s *stubUserReader) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func newAuthFixture(t *testing.T) (*AuthService, *stubUserReader) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	groupID := "g1"
	users := &stubUserReader{
		byEmail: map[string]*models.User{
			"student@campus.edu": {
				ID:           "stu1",
				Email:        "student@campus.edu",
				FullName:     "Student One",
				PasswordHash: string(hash),
				Role:         models.RoleStudent,
				GroupID:      &groupID,
				Active:       true,
			},
		},
		byID: map[string]*models.User{},
	}
	svc := NewAuthService(users, JWTSettings{Secret: "test-secret", Expiration: time.Hour, Issuer: "faculty-api"}, nil)
	return svc, users
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@campus.edu", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.RoleStudent, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "stu1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, "g1", claims.GroupID)
	assert.Equal(t, "faculty-api", claims.Issuer)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@campus.edu", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@campus.edu", Password: "correct horse"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	svc, users := newAuthFixture(t)
	users.byEmail["student@campus.edu"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@campus.edu", Password: "correct horse"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsForgeries(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)

	other := NewAuthService(&stubUserReader{}, JWTSettings{Secret: "other-secret"}, nil)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@campus.edu", Password: "correct horse"})
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestProfileLoadsUser(t *testing.T) {
	svc, users := newAuthFixture(t)
	users.byID["stu1"] = users.byEmail["student@campus.edu"]

	info, err := svc.Profile(context.Background(), "stu1")
	require.NoError(t, err)
	assert.Equal(t, "student@campus.edu", info.Email)

	_, err = svc.Profile(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
