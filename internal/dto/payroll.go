package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalculateSalaryRequest previews a salary payment.
type CalculateSalaryRequest struct {
	BaseSalary decimal.Decimal `json:"baseSalary"`
	From       *time.Time      `json:"from"`
	To         *time.Time      `json:"to"`
}

// ProcessSalaryRequest pays a salary and retires debt.
type ProcessSalaryRequest struct {
	BaseSalary       decimal.Decimal `json:"baseSalary"`
	PaymentReference string          `json:"paymentReference" binding:"required"`
}
