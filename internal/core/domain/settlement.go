package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/shopspring/decimal"
)

// SettlementRecord is the immutable audit entry of one cash reconciliation.
type SettlementRecord struct {
	SettlementID      string          `json:"id"`
	DriverID          string          `json:"driverId"`
	AdminID           string          `json:"adminId"`
	AmountCollected   decimal.Decimal `json:"amountCollected"`
	ActualAmount      decimal.Decimal `json:"actualAmount"`
	Difference        decimal.Decimal `json:"difference"`
	DebtGenerated     decimal.Decimal `json:"debtGenerated"`
	Overpayment       decimal.Decimal `json:"overpayment"`
	PreviousDebt      decimal.Decimal `json:"previousDebt"`
	NewDebtBalance    decimal.Decimal `json:"newDebtBalance"`
	DeliveriesSettled int             `json:"deliveriesSettled"`
	PackagesSettled   int             `json:"packagesSettled"`
	ReturnsProcessed  int             `json:"returnsProcessed"`
	DeliveryIDs       []string        `json:"deliveryIds"`
	CashDetails       []CashItem      `json:"cashDetails"`
	ReturnDetails     []ReturnItem    `json:"returnDetails"`
	Notes             string          `json:"notes,omitempty"`
	SettledAt         time.Time       `json:"settledAt"`

	DriverName string `json:"driverName,omitempty"`
	AdminName  string `json:"adminName,omitempty"`
}

// SettlementPlan is everything one settlement writes, computed before the commit.
type SettlementPlan struct {
	Record     SettlementRecord
	Deliveries []Delivery
	Debt       *DebtRecord
}

// SettlementInput is the admin-confirmed cash hand-over.
type SettlementInput struct {
	SettlementID    string
	DebtID          string
	AdminID         string
	AmountCollected decimal.Decimal
	ConfirmReturns  bool
	Notes           string
}

// PlanSettlement computes the settlement of a courier from a fresh snapshot of
// their deliveries and debt. Any shortfall becomes a pending debt; an
// overpayment is recorded but creates nothing.
func PlanSettlement(courier User, deliveries []Delivery, in SettlementInput, now time.Time) (*SettlementPlan, error) {
	if in.AmountCollected.IsNegative() {
		return nil, fmt.Errorf("%w: amount collected must not be negative", apperrors.ErrValidation)
	}

	balance := ComputeCourierBalance(courier.UserID, deliveries)
	if !balance.HasDue() && in.AmountCollected.IsZero() {
		return nil, fmt.Errorf("%w: nothing to settle for courier %s", apperrors.ErrValidation, courier.UserID)
	}

	plan := &SettlementPlan{}
	packagesSettled, returnsProcessed := 0, 0
	deliveryIDs := []string{}

	for _, d := range deliveries {
		if !d.IsAssignedTo(courier.UserID) {
			continue
		}
		d.Packages = append([]Package(nil), d.Packages...)
		changed := false
		for i := range d.Packages {
			p := &d.Packages[i]
			if countsAsCash(d, *p) {
				p.SettledAt = timePtr(now)
				packagesSettled++
				changed = true
				continue
			}
			if in.ConfirmReturns && countsAsReturn(*p) {
				p.ReturnStatus = ReturnReturnedToAgency
				p.ReturnedAt = timePtr(now)
				returnsProcessed++
				changed = true
			}
		}
		if !changed {
			continue
		}
		d.SettlementStatus = SettlementCompleted
		d.SettledAt = timePtr(now)
		admin := in.AdminID
		d.SettledBy = &admin
		d.LastUpdatedAt = now
		d.LastUpdatedBy = in.AdminID
		plan.Deliveries = append(plan.Deliveries, d)
		deliveryIDs = append(deliveryIDs, d.DeliveryID)
	}

	difference := balance.CashInHand.Sub(in.AmountCollected)
	debtGenerated, overpayment := decimal.Zero, decimal.Zero
	if difference.IsPositive() {
		debtGenerated = difference
	} else if difference.IsNegative() {
		overpayment = difference.Neg()
	}

	newBalance := courier.DebtBalance.Add(debtGenerated)
	returnDetails := []ReturnItem{}
	if in.ConfirmReturns {
		returnDetails = balance.ReturnItems
	}

	plan.Record = SettlementRecord{
		SettlementID:      in.SettlementID,
		DriverID:          courier.UserID,
		AdminID:           in.AdminID,
		AmountCollected:   in.AmountCollected,
		ActualAmount:      balance.CashInHand,
		Difference:        difference,
		DebtGenerated:     debtGenerated,
		Overpayment:       overpayment,
		PreviousDebt:      courier.DebtBalance,
		NewDebtBalance:    newBalance,
		DeliveriesSettled: len(plan.Deliveries),
		PackagesSettled:   packagesSettled,
		ReturnsProcessed:  returnsProcessed,
		DeliveryIDs:       deliveryIDs,
		CashDetails:       balance.CashItems,
		ReturnDetails:     returnDetails,
		Notes:             in.Notes,
		SettledAt:         now,
	}

	if debtGenerated.IsPositive() {
		settlementID := in.SettlementID
		plan.Debt = &DebtRecord{
			DebtID:       in.DebtID,
			DriverID:     courier.UserID,
			Amount:       debtGenerated,
			Reason:       DebtReasonSettlementShortage,
			Description:  fmt.Sprintf("Manque lors du versement: %s %s attendus, %s %s remis", balance.CashInHand.StringFixed(0), Currency, in.AmountCollected.StringFixed(0), Currency),
			Status:       DebtPending,
			SettlementID: &settlementID,
			CreatedAt:    now,
			CreatedBy:    in.AdminID,
		}
	}
	return plan, nil
}

// SettlementFilter narrows settlement history queries.
type SettlementFilter struct {
	DriverID *string
	Range    DateRange
}

// SettlementStats aggregates settlement records.
type SettlementStats struct {
	Count              int             `json:"count"`
	Drivers            int             `json:"drivers"`
	TotalCollected     decimal.Decimal `json:"totalCollected"`
	TotalExpected      decimal.Decimal `json:"totalExpected"`
	TotalDebtGenerated decimal.Decimal `json:"totalDebtGenerated"`
	TotalOverpayment   decimal.Decimal `json:"totalOverpayment"`
}

// SummarizeSettlements totals the given records.
func SummarizeSettlements(records []SettlementRecord) SettlementStats {
	s := SettlementStats{
		TotalCollected:     decimal.Zero,
		TotalExpected:      decimal.Zero,
		TotalDebtGenerated: decimal.Zero,
		TotalOverpayment:   decimal.Zero,
	}
	drivers := map[string]struct{}{}
	for _, r := range records {
		s.Count++
		drivers[r.DriverID] = struct{}{}
		s.TotalCollected = s.TotalCollected.Add(r.AmountCollected)
		s.TotalExpected = s.TotalExpected.Add(r.ActualAmount)
		s.TotalDebtGenerated = s.TotalDebtGenerated.Add(r.DebtGenerated)
		s.TotalOverpayment = s.TotalOverpayment.Add(r.Overpayment)
	}
	s.Drivers = len(drivers)
	return s
}

// SettlementHistory is a filtered list of settlements with totals.
type SettlementHistory struct {
	Records []SettlementRecord `json:"settlements"`
	Totals  SettlementStats    `json:"totals"`
}
