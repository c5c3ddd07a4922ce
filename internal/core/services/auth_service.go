package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/platform/config"
	"github.com/SscSPs/geexpress_backend/internal/utils"
)

// authService implements the AuthSvcFacade for phone/password logins, JWT
// access tokens and rotating refresh tokens.
type authService struct {
	BaseService
	cfg      *config.Config
	userRepo portsrepo.UserRepositoryFacade
}

// NewAuthService creates a new instance of authService.
func NewAuthService(cfg *config.Config, userRepo portsrepo.UserRepositoryFacade) portssvc.AuthSvcFacade {
	return &authService{
		cfg:      cfg,
		userRepo: userRepo,
	}
}

var _ portssvc.AuthSvcFacade = (*authService)(nil)

// issue creates an access token and a fresh refresh token, storing the hash of the latter.
func (s *authService) issue(ctx context.Context, user *domain.User) (*portssvc.AuthSession, error) {
	now := s.Now()
	accessToken, err := utils.GenerateJWT(user.UserID, string(user.Role), s.cfg.JWTSecret, s.cfg.JWTExpiryDuration, s.cfg.JWTIssuer)
	if err != nil {
		s.LogError(ctx, err, "Failed to generate access token", slog.String("user_id", user.UserID))
		return nil, fmt.Errorf("%w: failed to generate access token", apperrors.ErrInternal)
	}

	refreshToken, err := utils.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	refreshExpiry := now.Add(s.cfg.RefreshTokenExpiryDuration)
	if err := s.userRepo.UpdateRefreshToken(ctx, user.UserID, utils.HashRefreshToken(refreshToken), refreshExpiry); err != nil {
		s.LogError(ctx, err, "Failed to store refresh token", slog.String("user_id", user.UserID))
		return nil, err
	}

	return &portssvc.AuthSession{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(s.cfg.JWTExpiryDuration),
	}, nil
}

func (s *authService) Login(ctx context.Context, phone, password string) (*portssvc.AuthSession, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return nil, fmt.Errorf("%w: phone and password are required", apperrors.ErrValidation)
	}

	user, err := s.userRepo.FindUserByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.LogDebug(ctx, "Login for unknown phone")
			return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
		}
		s.LogError(ctx, err, "Failed to look up user for login")
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		s.LogDebug(ctx, "Login with wrong password", slog.String("user_id", user.UserID))
		return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is disabled", apperrors.ErrForbidden)
	}

	session, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	s.LogInfo(ctx, "User logged in", slog.String("user_id", user.UserID), slog.String("role", string(user.Role)))
	return session, nil
}

func (s *authService) Refresh(ctx context.Context, userID, refreshToken string) (*portssvc.AuthSession, error) {
	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid refresh token", apperrors.ErrUnauthorized)
		}
		s.LogError(ctx, err, "Failed to get user for refresh token validation", slog.String("user_id", userID))
		return nil, err
	}

	if user.RefreshTokenHash == "" || user.RefreshTokenExpiry == nil {
		return nil, fmt.Errorf("%w: no active session", apperrors.ErrUnauthorized)
	}
	if s.Now().After(*user.RefreshTokenExpiry) {
		return nil, fmt.Errorf("%w: refresh token expired", apperrors.ErrUnauthorized)
	}
	if !utils.CompareRefreshTokenHash(refreshToken, user.RefreshTokenHash) {
		s.LogInfo(ctx, "Refresh token mismatch", slog.String("user_id", userID))
		return nil, fmt.Errorf("%w: invalid refresh token", apperrors.ErrUnauthorized)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is disabled", apperrors.ErrForbidden)
	}
	return s.issue(ctx, user)
}

func (s *authService) Logout(ctx context.Context, caller domain.Caller) error {
	if err := s.userRepo.ClearRefreshToken(ctx, caller.UserID); err != nil {
		s.LogError(ctx, err, "Failed to clear refresh token", slog.String("user_id", caller.UserID))
		return err
	}
	return nil
}

func (s *authService) ChangePassword(ctx context.Context, caller domain.Caller, currentPassword, newPassword string) error {
	if err := utils.ValidatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.userRepo.FindUserByID(ctx, caller.UserID)
	if err != nil {
		return err
	}
	if !utils.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return fmt.Errorf("%w: current password is incorrect", apperrors.ErrUnauthorized)
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, user.UserID, hash, false, s.Now()); err != nil {
		s.LogError(ctx, err, "Failed to update password", slog.String("user_id", user.UserID))
		return err
	}
	s.LogInfo(ctx, "Password changed", slog.String("user_id", user.UserID))
	return nil
}
