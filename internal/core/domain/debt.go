package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/shopspring/decimal"
)

// DebtReason classifies why a debt was recorded.
type DebtReason string

const (
	DebtReasonSettlementShortage DebtReason = "settlement_shortage"
	DebtReasonOther              DebtReason = "other"
)

// DebtStatus is the lifecycle of a debt record. Paid and cancelled are terminal.
type DebtStatus string

const (
	DebtPending   DebtStatus = "pending"
	DebtPaid      DebtStatus = "paid"
	DebtCancelled DebtStatus = "cancelled"
)

// RemainderSuffix marks the debt created for the unpaid part of a partial payment.
const RemainderSuffix = " (Solde restant)"

// DebtRecord is one shortfall or adjustment owed by a courier.
type DebtRecord struct {
	DebtID             string           `json:"id"`
	DriverID           string           `json:"driverId"`
	Amount             decimal.Decimal  `json:"amount"`
	Reason             DebtReason       `json:"reason"`
	Description        string           `json:"description"`
	Status             DebtStatus       `json:"status"`
	SettlementID       *string          `json:"settlementId,omitempty"`
	OriginalDebtID     *string          `json:"originalDebtId,omitempty"`
	OriginalAmount     *decimal.Decimal `json:"originalAmount,omitempty"`
	PaidAmount         *decimal.Decimal `json:"paidAmount,omitempty"`
	PaymentReference   *string          `json:"paymentReference,omitempty"`
	PaidAt             *time.Time       `json:"paidAt,omitempty"`
	PaidBy             *string          `json:"paidBy,omitempty"`
	CancelledAt        *time.Time       `json:"cancelledAt,omitempty"`
	CancelledBy        *string          `json:"cancelledBy,omitempty"`
	CancellationReason *string          `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	CreatedBy          string           `json:"createdBy"`

	DriverName string `json:"driverName,omitempty"`
}

// MarkPaid flips a pending debt to paid.
func (d *DebtRecord) MarkPaid(paidBy, reference string, now time.Time) error {
	if strings.TrimSpace(reference) == "" {
		return fmt.Errorf("%w: payment reference is required", apperrors.ErrValidation)
	}
	switch d.Status {
	case DebtPaid:
		return fmt.Errorf("%w: debt %s is already paid", apperrors.ErrConflict, d.DebtID)
	case DebtCancelled:
		return fmt.Errorf("%w: debt %s is cancelled", apperrors.ErrConflict, d.DebtID)
	}
	d.Status = DebtPaid
	d.PaymentReference = &reference
	d.PaidAt = timePtr(now)
	d.PaidBy = &paidBy
	return nil
}

// Cancel flips a pending debt to cancelled.
func (d *DebtRecord) Cancel(cancelledBy, reason string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: cancellation reason is required", apperrors.ErrValidation)
	}
	switch d.Status {
	case DebtCancelled:
		return fmt.Errorf("%w: debt %s is already cancelled", apperrors.ErrConflict, d.DebtID)
	case DebtPaid:
		return fmt.Errorf("%w: debt %s is already paid", apperrors.ErrConflict, d.DebtID)
	}
	d.Status = DebtCancelled
	d.CancelledAt = timePtr(now)
	d.CancelledBy = &cancelledBy
	d.CancellationReason = &reason
	return nil
}

// DebtFilter narrows debt queries.
type DebtFilter struct {
	DriverID *string
	Status   *DebtStatus
	Range    DateRange
}

// DebtSummary aggregates a list of debts by status.
type DebtSummary struct {
	TotalPending   decimal.Decimal `json:"totalPending"`
	TotalPaid      decimal.Decimal `json:"totalPaid"`
	TotalCancelled decimal.Decimal `json:"totalCancelled"`
	PendingCount   int             `json:"pendingCount"`
	PaidCount      int             `json:"paidCount"`
	CancelledCount int             `json:"cancelledCount"`
}

// SummarizeDebts totals the given debts per status.
func SummarizeDebts(debts []DebtRecord) DebtSummary {
	s := DebtSummary{TotalPending: decimal.Zero, TotalPaid: decimal.Zero, TotalCancelled: decimal.Zero}
	for _, d := range debts {
		switch d.Status {
		case DebtPending:
			s.TotalPending = s.TotalPending.Add(d.Amount)
			s.PendingCount++
		case DebtPaid:
			s.TotalPaid = s.TotalPaid.Add(d.Amount)
			s.PaidCount++
		case DebtCancelled:
			s.TotalCancelled = s.TotalCancelled.Add(d.Amount)
			s.CancelledCount++
		}
	}
	return s
}

// SumPending totals the pending debts; used to check the balance invariant.
func SumPending(debts []DebtRecord) decimal.Decimal {
	total := decimal.Zero
	for _, d := range debts {
		if d.Status == DebtPending {
			total = total.Add(d.Amount)
		}
	}
	return total
}

// DriverDebts is the ledger of one courier.
type DriverDebts struct {
	DriverID    string          `json:"driverId"`
	DebtBalance decimal.Decimal `json:"debtBalance"`
	Debts       []DebtRecord    `json:"debts"`
	Summary     DebtSummary     `json:"summary"`
}

// DebtBalance is the running balance of a courier.
type DebtBalance struct {
	DriverID       string          `json:"driverId"`
	DriverName     string          `json:"driverName"`
	Balance        decimal.Decimal `json:"balance"`
	LastDebtUpdate *time.Time      `json:"lastDebtUpdate,omitempty"`
	Currency       string          `json:"currency"`
}

// DebtorSummary totals the pending debts of one courier.
type DebtorSummary struct {
	DriverID   string          `json:"driverId"`
	DriverName string          `json:"driverName"`
	Amount     decimal.Decimal `json:"amount"`
	Count      int             `json:"count"`
}

// PendingDebtsOverview lists every pending debt.
type PendingDebtsOverview struct {
	Debts        []DebtRecord    `json:"debts"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	DriversCount int             `json:"driversCount"`
}

// DebtStatistics is the admin dashboard of the ledger.
type DebtStatistics struct {
	DebtSummary
	DriversWithDebt int             `json:"driversWithDebt"`
	TopDebtors      []DebtorSummary `json:"topDebtors"`
}

const topDebtorsLimit = 5

// PendingByDriver groups pending debts per courier, largest total first.
func PendingByDriver(debts []DebtRecord) []DebtorSummary {
	byDriver := map[string]*DebtorSummary{}
	order := []string{}
	for _, d := range debts {
		if d.Status != DebtPending {
			continue
		}
		s, ok := byDriver[d.DriverID]
		if !ok {
			s = &DebtorSummary{DriverID: d.DriverID, DriverName: d.DriverName, Amount: decimal.Zero}
			byDriver[d.DriverID] = s
			order = append(order, d.DriverID)
		}
		s.Amount = s.Amount.Add(d.Amount)
		s.Count++
	}
	out := make([]DebtorSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byDriver[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount.GreaterThan(out[j].Amount) })
	return out
}

// BuildDebtStatistics computes totals and the top debtors.
func BuildDebtStatistics(debts []DebtRecord) DebtStatistics {
	debtors := PendingByDriver(debts)
	top := debtors
	if len(top) > topDebtorsLimit {
		top = top[:topDebtorsLimit]
	}
	return DebtStatistics{
		DebtSummary:     SummarizeDebts(debts),
		DriversWithDebt: len(debtors),
		TopDebtors:      top,
	}
}

// DebtDrift reports a courier whose stored balance disagrees with the pending debts.
type DebtDrift struct {
	DriverID   string          `json:"driverId"`
	DriverName string          `json:"driverName"`
	Stored     decimal.Decimal `json:"stored"`
	Computed   decimal.Decimal `json:"computed"`
}
