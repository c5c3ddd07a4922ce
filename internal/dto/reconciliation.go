package dto

import (
	"time"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/shopspring/decimal"
)

// RequestReconciliationRequest is a courier's cash declaration.
type RequestReconciliationRequest struct {
	DeclaredAmount decimal.Decimal `json:"declaredAmount"`
	Notes          string          `json:"notes"`
}

// SettleDriverPaymentRequest is the admin-confirmed hand-over.
type SettleDriverPaymentRequest struct {
	AmountCollected decimal.Decimal `json:"amountCollected"`
	ConfirmReturns  bool            `json:"confirmReturns"`
	Notes           string          `json:"notes"`
}

// DateRangeParams is an optional from/to query window (YYYY-MM-DD, inclusive).
type DateRangeParams struct {
	From *time.Time `form:"from" time_format:"2006-01-02"`
	To   *time.Time `form:"to" time_format:"2006-01-02"`
}

// ToDateRange converts the params; To is extended to the end of its day.
func (p DateRangeParams) ToDateRange() domain.DateRange {
	r := domain.DateRange{From: p.From}
	if p.To != nil {
		end := p.To.Add(24*time.Hour - time.Nanosecond)
		r.To = &end
	}
	return r
}

// SettlementHistoryParams filters the settlement history.
type SettlementHistoryParams struct {
	DriverID *string `form:"driverId"`
	DateRangeParams
}
