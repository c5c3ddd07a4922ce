package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	"github.com/SscSPs/geexpress_backend/internal/middleware"
	"github.com/jackc/pgx/v5"
)

// BaseService provides common functionality for all services
type BaseService struct {
	Clock func() time.Time
}

// Now returns the current time in UTC, or the injected clock's time.
func (s *BaseService) Now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

// GetLogger gets the logger from context or returns a default one
func (s *BaseService) GetLogger(ctx context.Context) *slog.Logger {
	return middleware.GetLoggerFromCtx(ctx)
}

// LogError logs an error with consistent formatting
func (s *BaseService) LogError(ctx context.Context, err error, msg string, keyvals ...any) {
	logger := s.GetLogger(ctx)
	args := make([]any, 0, len(keyvals)+1)
	args = append(args, slog.String("error", err.Error()))
	args = append(args, keyvals...)
	logger.Error(msg, args...)
}

// LogInfo logs an info message with consistent formatting
func (s *BaseService) LogInfo(ctx context.Context, msg string, keyvals ...any) {
	s.GetLogger(ctx).Info(msg, keyvals...)
}

// LogDebug logs a debug message with consistent formatting
func (s *BaseService) LogDebug(ctx context.Context, msg string, keyvals ...any) {
	s.GetLogger(ctx).Debug(msg, keyvals...)
}

// RequireAdmin rejects non-admin callers.
func (s *BaseService) RequireAdmin(ctx context.Context, caller domain.Caller) error {
	if caller.IsAdmin() {
		return nil
	}
	s.LogDebug(ctx, "Admin role required", slog.String("user_id", caller.UserID), slog.String("role", string(caller.Role)))
	return fmt.Errorf("%w: admin role required", apperrors.ErrForbidden)
}

// RequireCourier rejects callers that are not delivery men.
func (s *BaseService) RequireCourier(ctx context.Context, caller domain.Caller) error {
	if caller.Role == domain.RoleDeliveryMan {
		return nil
	}
	s.LogDebug(ctx, "Delivery man role required", slog.String("user_id", caller.UserID), slog.String("role", string(caller.Role)))
	return fmt.Errorf("%w: delivery man role required", apperrors.ErrForbidden)
}

// RequireSelfOrAdmin rejects callers acting for another user.
func (s *BaseService) RequireSelfOrAdmin(ctx context.Context, caller domain.Caller, userID string) error {
	if caller.CanActFor(userID) {
		return nil
	}
	s.LogDebug(ctx, "Caller cannot act for user", slog.String("user_id", caller.UserID), slog.String("target_user_id", userID))
	return fmt.Errorf("%w: cannot access another user's data", apperrors.ErrForbidden)
}

// InTx runs fn inside a transaction, committing on success and rolling back otherwise.
func (s *BaseService) InTx(ctx context.Context, tm portsrepo.TransactionManager, fn func(tx pgx.Tx) error) error {
	tx, err := tm.Begin(ctx)
	if err != nil {
		return err
	}
	// Will be ignored if the transaction is committed successfully
	defer func() {
		if rbErr := tm.Rollback(ctx, tx); rbErr != nil {
			s.LogError(ctx, rbErr, "Failed to roll back transaction")
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tm.Commit(ctx, tx)
}
