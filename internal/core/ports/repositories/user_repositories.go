package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserReader defines read operations for user data
type UserReader interface {
	// FindUserByID retrieves a specific user by their ID.
	FindUserByID(ctx context.Context, userID string) (*domain.User, error)

	// FindUserByPhone retrieves the user owning a phone number, password hash included.
	FindUserByPhone(ctx context.Context, phone string) (*domain.User, error)

	// FindUsersByIDs retrieves several users keyed by ID. Missing IDs are skipped.
	FindUsersByIDs(ctx context.Context, userIDs []string) (map[string]domain.User, error)

	// FindUsersByRole retrieves a paginated list of users holding a role.
	FindUsersByRole(ctx context.Context, role domain.UserRole, activeOnly bool, limit int, offset int) ([]domain.User, error)
}

// UserWriter defines write operations for user data
type UserWriter interface {
	// SaveUser persists a new user. A taken phone number yields ErrDuplicate.
	SaveUser(ctx context.Context, user domain.User) error

	// UpdateUser updates an existing user's profile, status and documents.
	UpdateUser(ctx context.Context, user domain.User) error

	// UpdatePassword replaces the password hash.
	UpdatePassword(ctx context.Context, userID string, passwordHash string, mustChange bool, now time.Time) error

	// UpdateFCMToken stores the push token of a device.
	UpdateFCMToken(ctx context.Context, userID string, token string, now time.Time) error

	// UpdateRefreshToken stores the hash and expiry of the current refresh token.
	UpdateRefreshToken(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error

	// ClearRefreshToken removes the stored refresh token.
	ClearRefreshToken(ctx context.Context, userID string) error
}

// UserTransactionSupport defines operations that run inside a caller-owned transaction
type UserTransactionSupport interface {
	// FindUserByIDForUpdate selects a user and locks the row.
	FindUserByIDForUpdate(ctx context.Context, tx pgx.Tx, userID string) (*domain.User, error)

	// UpdateDebtBalanceInTx overwrites the running debt balance.
	UpdateDebtBalanceInTx(ctx context.Context, tx pgx.Tx, userID string, balance decimal.Decimal, now time.Time) error
}

// UserRepositoryFacade combines all user-related repository interfaces
type UserRepositoryFacade interface {
	UserReader
	UserWriter
	UserTransactionSupport
}
