package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	"github.com/SscSPs/geexpress_backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const userColumns = `user_id, name, phone, matricule, role, is_active, must_change_password, fcm_token,
	debt_balance, last_debt_update, documents, password_hash, refresh_token_hash, refresh_token_expiry_time,
	created_at, created_by, last_updated_at, last_updated_by`

type PgxUserRepository struct {
	db *pgxpool.Pool
}

func newPgxUserRepository(db *pgxpool.Pool) portsrepo.UserRepositoryFacade {
	return &PgxUserRepository{db: db}
}

// Ensure PgxUserRepository implements portsrepo.UserRepositoryFacade
var _ portsrepo.UserRepositoryFacade = (*PgxUserRepository)(nil)

// Helper to convert domain.User to models.User
func toModelUser(d domain.User) (models.User, error) {
	docs, err := marshalJSONB(d.Documents, "{}")
	if err != nil {
		return models.User{}, err
	}
	m := models.User{
		UserID:             d.UserID,
		Name:               d.Name,
		Phone:              d.Phone,
		Matricule:          emptyToNull(d.Matricule),
		Role:               string(d.Role),
		IsActive:           d.IsActive,
		MustChangePassword: d.MustChangePassword,
		FCMToken:           emptyToNull(d.FCMToken),
		DebtBalance:        d.DebtBalance,
		LastDebtUpdate:     toNullTime(d.LastDebtUpdate),
		Documents:          docs,
		PasswordHash:       d.PasswordHash,
		AuditFields: models.AuditFields{
			CreatedAt:     d.CreatedAt,
			CreatedBy:     d.CreatedBy,
			LastUpdatedAt: d.LastUpdatedAt,
			LastUpdatedBy: d.LastUpdatedBy,
		},
		RefreshTokenHash:       emptyToNull(d.RefreshTokenHash),
		RefreshTokenExpiryTime: toNullTime(d.RefreshTokenExpiry),
	}
	return m, nil
}

// Helper to convert models.User to domain.User
func toDomainUser(m models.User) (domain.User, error) {
	docs := map[domain.DocumentType]domain.StoredDocument{}
	if err := unmarshalJSONB(m.Documents, &docs); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		UserID:             m.UserID,
		Name:               m.Name,
		Phone:              m.Phone,
		Matricule:          m.Matricule.String,
		Role:               domain.UserRole(m.Role),
		IsActive:           m.IsActive,
		MustChangePassword: m.MustChangePassword,
		FCMToken:           m.FCMToken.String,
		DebtBalance:        m.DebtBalance,
		LastDebtUpdate:     fromNullTime(m.LastDebtUpdate),
		Documents:          docs,
		PasswordHash:       m.PasswordHash,
		RefreshTokenHash:   m.RefreshTokenHash.String,
		RefreshTokenExpiry: fromNullTime(m.RefreshTokenExpiryTime),
		AuditFields: domain.AuditFields{
			CreatedAt:     m.CreatedAt,
			CreatedBy:     m.CreatedBy,
			LastUpdatedAt: m.LastUpdatedAt,
			LastUpdatedBy: m.LastUpdatedBy,
		},
	}, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var m models.User
	err := row.Scan(
		&m.UserID,
		&m.Name,
		&m.Phone,
		&m.Matricule,
		&m.Role,
		&m.IsActive,
		&m.MustChangePassword,
		&m.FCMToken,
		&m.DebtBalance,
		&m.LastDebtUpdate,
		&m.Documents,
		&m.PasswordHash,
		&m.RefreshTokenHash,
		&m.RefreshTokenExpiryTime,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(m)
}

func (r *PgxUserRepository) findOne(ctx context.Context, q queryer, query string, arg any) (*domain.User, error) {
	user, err := scanUser(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user %v: %w", arg, err)
	}
	return &user, nil
}

func (r *PgxUserRepository) SaveUser(ctx context.Context, user domain.User) error {
	modelUser, err := toModelUser(user)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18);
	`
	_, err = r.db.Exec(ctx, query,
		modelUser.UserID,
		modelUser.Name,
		modelUser.Phone,
		modelUser.Matricule,
		modelUser.Role,
		modelUser.IsActive,
		modelUser.MustChangePassword,
		modelUser.FCMToken,
		modelUser.DebtBalance,
		modelUser.LastDebtUpdate,
		modelUser.Documents,
		modelUser.PasswordHash,
		modelUser.RefreshTokenHash,
		modelUser.RefreshTokenExpiryTime,
		modelUser.CreatedAt,
		modelUser.CreatedBy,
		modelUser.LastUpdatedAt,
		modelUser.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: phone %s is already registered", apperrors.ErrDuplicate, modelUser.Phone)
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (r *PgxUserRepository) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return r.findOne(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE user_id = $1;`, userID)
}

func (r *PgxUserRepository) FindUserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.findOne(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE phone = $1;`, phone)
}

// FindUserByIDForUpdate locks the user row, serializing debt balance updates.
// Must be called within a transaction.
func (r *PgxUserRepository) FindUserByIDForUpdate(ctx context.Context, tx pgx.Tx, userID string) (*domain.User, error) {
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE user_id = $1 FOR UPDATE;`, userID)
}

func (r *PgxUserRepository) FindUsersByIDs(ctx context.Context, userIDs []string) (map[string]domain.User, error) {
	if len(userIDs) == 0 {
		return map[string]domain.User{}, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ANY($1);`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by IDs: %w", err)
	}
	defer rows.Close()

	users := make(map[string]domain.User, len(userIDs))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users[u.UserID] = u
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", rows.Err())
	}
	return users, nil
}

func (r *PgxUserRepository) FindUsersByRole(ctx context.Context, role domain.UserRole, activeOnly bool, limit int, offset int) ([]domain.User, error) {
	// Default limit if not specified or invalid
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE role = $1 AND ($2 = FALSE OR is_active = TRUE)
		ORDER BY name ASC, created_at DESC
		LIMIT $3 OFFSET $4;
	`
	rows, err := r.db.Query(ctx, query, string(role), activeOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by role: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", rows.Err())
	}
	return users, nil
}

// UpdateUser writes the profile fields. Credentials, tokens and the debt
// balance have dedicated methods.
func (r *PgxUserRepository) UpdateUser(ctx context.Context, user domain.User) error {
	modelUser, err := toModelUser(user)
	if err != nil {
		return err
	}
	query := `
		UPDATE users
		SET name = $1, phone = $2, matricule = $3, is_active = $4, documents = $5,
			last_updated_at = $6, last_updated_by = $7
		WHERE user_id = $8;
	`
	cmdTag, err := r.db.Exec(ctx, query,
		modelUser.Name,
		modelUser.Phone,
		modelUser.Matricule,
		modelUser.IsActive,
		modelUser.Documents,
		modelUser.LastUpdatedAt,
		modelUser.LastUpdatedBy,
		modelUser.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: phone %s is already registered", apperrors.ErrDuplicate, modelUser.Phone)
		}
		return fmt.Errorf("failed to execute update user query: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found: %w", user.UserID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *PgxUserRepository) exec(ctx context.Context, userID string, query string, args ...any) error {
	cmdTag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", userID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found: %w", userID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *PgxUserRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string, mustChange bool, now time.Time) error {
	query := `
		UPDATE users
		SET password_hash = $1, must_change_password = $2, last_updated_at = $3, last_updated_by = $4
		WHERE user_id = $4;
	`
	return r.exec(ctx, userID, query, passwordHash, mustChange, now, userID)
}

func (r *PgxUserRepository) UpdateFCMToken(ctx context.Context, userID string, token string, now time.Time) error {
	query := `UPDATE users SET fcm_token = $1, last_updated_at = $2 WHERE user_id = $3;`
	return r.exec(ctx, userID, query, emptyToNull(token), now, userID)
}

// UpdateRefreshToken stores the hash of the current refresh token and its expiry.
func (r *PgxUserRepository) UpdateRefreshToken(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error {
	query := `UPDATE users SET refresh_token_hash = $1, refresh_token_expiry_time = $2 WHERE user_id = $3;`
	return r.exec(ctx, userID, query, tokenHash, expiresAt, userID)
}

func (r *PgxUserRepository) ClearRefreshToken(ctx context.Context, userID string) error {
	query := `UPDATE users SET refresh_token_hash = NULL, refresh_token_expiry_time = NULL WHERE user_id = $1;`
	return r.exec(ctx, userID, query, userID)
}

// UpdateDebtBalanceInTx overwrites the cached debt balance.
func (r *PgxUserRepository) UpdateDebtBalanceInTx(ctx context.Context, tx pgx.Tx, userID string, balance decimal.Decimal, now time.Time) error {
	query := `UPDATE users SET debt_balance = $1, last_debt_update = $2 WHERE user_id = $3;`
	cmdTag, err := tx.Exec(ctx, query, balance, now, userID)
	if err != nil {
		return fmt.Errorf("failed to update debt balance for user %s: %w", userID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found: %w", userID, apperrors.ErrNotFound)
	}
	return nil
}
