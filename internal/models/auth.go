package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
	GroupID  *string  `json:"group_id,omitempty"`
}

// JWTClaims carries the identity embedded in access tokens. The workflow
// layer uses UserID/Role/GroupID to decide ownership and permissions.
type JWTClaims struct {
	UserID  string   `json:"uid"`
	Role    UserRole `json:"role"`
	GroupID string   `json:"group_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor identifies who is attempting a state-changing operation.
type Actor struct {
	ID   string
	Role UserRole
}

// ActorFromClaims builds an Actor from verified token claims.
func ActorFromClaims(claims *JWTClaims) Actor {
	return Actor{ID: claims.UserID, Role: claims.Role}
}
