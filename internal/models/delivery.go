package models

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

// Delivery is a row of the deliveries table. Packages and issues are stored
// as jsonb documents; tracking numbers are mirrored in package_tracking.
type Delivery struct {
	DeliveryID       string          `db:"delivery_id"`
	DeliveryType     string          `db:"delivery_type"`
	ClientName       string          `db:"client_name"`
	ClientPhone      string          `db:"client_phone"`
	ClientAddress    string          `db:"client_address"`
	Notes            string          `db:"notes"`
	Packages         []byte          `db:"packages"`
	Issues           []byte          `db:"issues"`
	DeliveryManID    sql.NullString  `db:"delivery_man_id"`
	DeliveryManName  sql.NullString  `db:"delivery_man_name"`
	TotalAmount      decimal.Decimal `db:"total_amount"`
	Status           string          `db:"status"`
	SettlementStatus string          `db:"settlement_status"`
	SettledAt        sql.NullTime    `db:"settled_at"`
	SettledBy        sql.NullString  `db:"settled_by"`
	ReceiptURL       sql.NullString  `db:"receipt_url"`
	ReceiptPublicID  sql.NullString  `db:"receipt_public_id"`
	AssignedAt       sql.NullTime    `db:"assigned_at"`
	AcceptedAt       sql.NullTime    `db:"accepted_at"`
	StartedAt        sql.NullTime    `db:"started_at"`
	CompletedAt      sql.NullTime    `db:"completed_at"`
	TransferredAt    sql.NullTime    `db:"transferred_at"`
	FailedAt         sql.NullTime    `db:"failed_at"`
	CancelledAt      sql.NullTime    `db:"cancelled_at"`
	AuditFields
}
