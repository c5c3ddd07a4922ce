package services

import (
	"context"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
)

// AuthSession is the result of a successful login or refresh.
type AuthSession struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthSvcFacade defines authentication and token management.
type AuthSvcFacade interface {
	// Login authenticates by phone and password.
	Login(ctx context.Context, phone, password string) (*AuthSession, error)

	// Refresh validates a refresh token and rotates it.
	Refresh(ctx context.Context, userID, refreshToken string) (*AuthSession, error)

	// Logout clears the stored refresh token.
	Logout(ctx context.Context, caller domain.Caller) error

	// ChangePassword replaces the caller's password after checking the current one.
	ChangePassword(ctx context.Context, caller domain.Caller, currentPassword, newPassword string) error
}
