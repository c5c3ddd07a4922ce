package models

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

// User is a row of the users table. Admins, couriers and clients share it.
type User struct {
	UserID             string          `db:"user_id"`
	Name               string          `db:"name"`
	Phone              string          `db:"phone"`
	Matricule          sql.NullString  `db:"matricule"`
	Role               string          `db:"role"`
	IsActive           bool            `db:"is_active"`
	MustChangePassword bool            `db:"must_change_password"`
	FCMToken           sql.NullString  `db:"fcm_token"`
	DebtBalance        decimal.Decimal `db:"debt_balance"`
	LastDebtUpdate     sql.NullTime    `db:"last_debt_update"`
	Documents          []byte          `db:"documents"` // jsonb
	PasswordHash       string          `db:"password_hash"`
	AuditFields

	// Refresh Token Fields
	RefreshTokenHash       sql.NullString `db:"refresh_token_hash"`
	RefreshTokenExpiryTime sql.NullTime   `db:"refresh_token_expiry_time"`
}
