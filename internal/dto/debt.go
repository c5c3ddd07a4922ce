package dto

import "github.com/SscSPs/geexpress_backend/internal/core/domain"

// CancelDebtRequest cancels a pending debt.
type CancelDebtRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// MarkDebtPaidRequest records an out-of-band debt payment.
type MarkDebtPaidRequest struct {
	PaymentReference string `json:"paymentReference" binding:"required"`
}

// DebtHistoryParams filters a courier's debt history.
type DebtHistoryParams struct {
	Status *string `form:"status" binding:"omitempty,oneof=pending paid cancelled"`
	DateRangeParams
}

// ToFilter converts the params for a given courier.
func (p DebtHistoryParams) ToFilter(driverID string) domain.DebtFilter {
	f := domain.DebtFilter{DriverID: &driverID, Range: p.ToDateRange()}
	if p.Status != nil && *p.Status != "" {
		s := domain.DebtStatus(*p.Status)
		f.Status = &s
	}
	return f
}
