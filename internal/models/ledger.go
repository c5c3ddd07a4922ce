package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// DebtRecord is a row of the debts table.
type DebtRecord struct {
	DebtID             string              `db:"debt_id"`
	DriverID           string              `db:"driver_id"`
	Amount             decimal.Decimal     `db:"amount"`
	Reason             string              `db:"reason"`
	Description        string              `db:"description"`
	Status             string              `db:"status"`
	SettlementID       sql.NullString      `db:"settlement_id"`
	OriginalDebtID     sql.NullString      `db:"original_debt_id"`
	OriginalAmount     decimal.NullDecimal `db:"original_amount"`
	PaidAmount         decimal.NullDecimal `db:"paid_amount"`
	PaymentReference   sql.NullString      `db:"payment_reference"`
	PaidAt             sql.NullTime        `db:"paid_at"`
	PaidBy             sql.NullString      `db:"paid_by"`
	CancelledAt        sql.NullTime        `db:"cancelled_at"`
	CancelledBy        sql.NullString      `db:"cancelled_by"`
	CancellationReason sql.NullString      `db:"cancellation_reason"`
	CreatedAt          time.Time           `db:"created_at"`
	CreatedBy          string              `db:"created_by"`

	DriverName sql.NullString // joined from users
}

// SettlementRecord is a row of the settlements table.
type SettlementRecord struct {
	SettlementID      string          `db:"settlement_id"`
	DriverID          string          `db:"driver_id"`
	AdminID           string          `db:"admin_id"`
	AmountCollected   decimal.Decimal `db:"amount_collected"`
	ActualAmount      decimal.Decimal `db:"actual_amount"`
	Difference        decimal.Decimal `db:"difference"`
	DebtGenerated     decimal.Decimal `db:"debt_generated"`
	Overpayment       decimal.Decimal `db:"overpayment"`
	PreviousDebt      decimal.Decimal `db:"previous_debt"`
	NewDebtBalance    decimal.Decimal `db:"new_debt_balance"`
	DeliveriesSettled int             `db:"deliveries_settled"`
	PackagesSettled   int             `db:"packages_settled"`
	ReturnsProcessed  int             `db:"returns_processed"`
	DeliveryIDs       []string        `db:"delivery_ids"`
	CashDetails       []byte          `db:"cash_details"`
	ReturnDetails     []byte          `db:"return_details"`
	Notes             string          `db:"notes"`
	SettledAt         time.Time       `db:"settled_at"`

	DriverName sql.NullString
	AdminName  sql.NullString
}

// ReconciliationRequest is a row of the reconciliation_requests table.
type ReconciliationRequest struct {
	RequestID      string          `db:"request_id"`
	DeliveryManID  string          `db:"delivery_man_id"`
	DeclaredAmount decimal.Decimal `db:"declared_amount"`
	ActualAmount   decimal.Decimal `db:"actual_amount"`
	Difference     decimal.Decimal `db:"difference"`
	CashItems      []byte          `db:"cash_items"`
	ReturnItems    []byte          `db:"return_items"`
	Notes          string          `db:"notes"`
	Status         string          `db:"status"`
	RequestedAt    time.Time       `db:"requested_at"`
	ApprovedBy     sql.NullString  `db:"approved_by"`
	ApprovedAt     sql.NullTime    `db:"approved_at"`
	SettlementID   sql.NullString  `db:"settlement_id"`
}

// PayrollRecord is a row of the payrolls table.
type PayrollRecord struct {
	PayrollID        string          `db:"payroll_id"`
	DriverID         string          `db:"driver_id"`
	AdminID          string          `db:"admin_id"`
	GrossSalary      decimal.Decimal `db:"gross_salary"`
	DebtDeduction    decimal.Decimal `db:"debt_deduction"`
	NetSalary        decimal.Decimal `db:"net_salary"`
	PreviousDebt     decimal.Decimal `db:"previous_debt"`
	RemainingDebt    decimal.Decimal `db:"remaining_debt"`
	PaymentReference string          `db:"payment_reference"`
	DebtsSettled     []string        `db:"debts_settled"`
	Status           string          `db:"status"`
	ProcessedAt      time.Time       `db:"processed_at"`
}
