package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultReturnReason labels returns whose rejection reason was never captured.
const DefaultReturnReason = "Non spécifié"

// CashItem is one package whose collected cash the courier still holds.
type CashItem struct {
	DeliveryID     string          `json:"deliveryId"`
	PackageID      string          `json:"packageId"`
	TrackingNumber string          `json:"trackingNumber"`
	Recipient      string          `json:"recipient"`
	Destination    string          `json:"destination"`
	Amount         decimal.Decimal `json:"amount"`
	Status         PackageStatus   `json:"status"`
	DeliveryType   DeliveryType    `json:"deliveryType"`
	CompletedAt    time.Time       `json:"completedAt"`
}

// ReturnItem is one undelivered package the courier must bring back.
type ReturnItem struct {
	DeliveryID     string          `json:"deliveryId"`
	PackageID      string          `json:"packageId"`
	TrackingNumber string          `json:"trackingNumber"`
	Recipient      string          `json:"recipient"`
	Destination    string          `json:"destination"`
	Amount         decimal.Decimal `json:"amount"`
	Status         PackageStatus   `json:"status"`
	Reason         string          `json:"reason"`
}

// CourierBalance is the single source of truth for what a courier owes in cash
// and packages. Every reconciliation view is built from it.
type CourierBalance struct {
	CourierID         string          `json:"courierId"`
	Currency          string          `json:"currency"`
	CashInHand        decimal.Decimal `json:"cashInHand"`
	PendingReturns    int             `json:"pendingReturns"`
	CashItems         []CashItem      `json:"cashItems"`
	ReturnItems       []ReturnItem    `json:"returnItems"`
	DeliveriesWithDue int             `json:"deliveriesWithDue"`
}

// HasDue reports whether anything is left to settle.
func (b CourierBalance) HasDue() bool {
	return b.CashInHand.IsPositive() || b.PendingReturns > 0
}

// countsAsCash applies the cash rule to one package of a delivery.
func countsAsCash(d Delivery, p Package) bool {
	return p.Status.HoldsCash() && p.SettledAt == nil && d.SettlementStatus != SettlementCompleted
}

// countsAsReturn applies the return rule to one package.
func countsAsReturn(p Package) bool {
	return p.Status.AwaitsReturn() && p.ReturnStatus != ReturnReturnedToAgency
}

// ComputeCourierBalance scans the courier's deliveries for unsettled cash and
// pending returns.
func ComputeCourierBalance(courierID string, deliveries []Delivery) CourierBalance {
	b := CourierBalance{
		CourierID:   courierID,
		Currency:    Currency,
		CashInHand:  decimal.Zero,
		CashItems:   []CashItem{},
		ReturnItems: []ReturnItem{},
	}
	for _, d := range deliveries {
		if !d.IsAssignedTo(courierID) {
			continue
		}
		due := false
		for _, p := range d.Packages {
			if countsAsCash(d, p) {
				due = true
				b.CashInHand = b.CashInHand.Add(p.Amount)
				b.CashItems = append(b.CashItems, CashItem{
					DeliveryID:     d.DeliveryID,
					PackageID:      p.ID,
					TrackingNumber: p.TrackingNumber,
					Recipient:      p.Recipient,
					Destination:    p.Destination,
					Amount:         p.Amount,
					Status:         p.Status,
					DeliveryType:   d.DeliveryType,
					CompletedAt:    p.UpdatedAt,
				})
			}
			if countsAsReturn(p) {
				due = true
				reason := DefaultReturnReason
				if p.RejectionReason != nil && *p.RejectionReason != "" {
					reason = *p.RejectionReason
				}
				b.PendingReturns++
				b.ReturnItems = append(b.ReturnItems, ReturnItem{
					DeliveryID:     d.DeliveryID,
					PackageID:      p.ID,
					TrackingNumber: p.TrackingNumber,
					Recipient:      p.Recipient,
					Destination:    p.Destination,
					Amount:         p.Amount,
					Status:         p.Status,
					Reason:         reason,
				})
			}
		}
		if due {
			b.DeliveriesWithDue++
		}
	}
	return b
}

// ReconciliationStatus is the lifecycle of a courier-declared request.
type ReconciliationStatus string

const (
	ReconciliationPending  ReconciliationStatus = "pending"
	ReconciliationApproved ReconciliationStatus = "approved"
	ReconciliationRejected ReconciliationStatus = "rejected"
)

// ReconciliationRequest is a courier's declaration of the cash they hold.
type ReconciliationRequest struct {
	RequestID      string               `json:"id"`
	DeliveryManID  string               `json:"deliveryManId"`
	DeclaredAmount decimal.Decimal      `json:"declaredAmount"`
	ActualAmount   decimal.Decimal      `json:"actualAmount"`
	Difference     decimal.Decimal      `json:"difference"`
	CashItems      []CashItem           `json:"cashItems"`
	ReturnItems    []ReturnItem         `json:"returnItems"`
	Notes          string               `json:"notes,omitempty"`
	Status         ReconciliationStatus `json:"status"`
	RequestedAt    time.Time            `json:"requestedAt"`
	ApprovedBy     *string              `json:"approvedBy,omitempty"`
	ApprovedAt     *time.Time           `json:"approvedAt,omitempty"`
	SettlementID   *string              `json:"settlementId,omitempty"`
}

// NewReconciliationRequest snapshots the balance against the declared amount.
func NewReconciliationRequest(id string, balance CourierBalance, declared decimal.Decimal, notes string, now time.Time) ReconciliationRequest {
	return ReconciliationRequest{
		RequestID:      id,
		DeliveryManID:  balance.CourierID,
		DeclaredAmount: declared,
		ActualAmount:   balance.CashInHand,
		Difference:     balance.CashInHand.Sub(declared),
		CashItems:      balance.CashItems,
		ReturnItems:    balance.ReturnItems,
		Notes:          notes,
		Status:         ReconciliationPending,
		RequestedAt:    now,
	}
}

// ReconciliationSummary is the courier's own view of what they hold.
type ReconciliationSummary struct {
	CourierBalance
	PendingRequest *ReconciliationRequest `json:"pendingRequest,omitempty"`
}

// PendingSettlementDriver is one row of the admin settlement queue.
type PendingSettlementDriver struct {
	DriverID              string          `json:"driverId"`
	DriverName            string          `json:"driverName"`
	Phone                 string          `json:"phone"`
	Matricule             string          `json:"matricule,omitempty"`
	CashInHand            decimal.Decimal `json:"cashInHand"`
	PendingReturns        int             `json:"pendingReturns"`
	DeliveriesWithDue     int             `json:"deliveriesWithDue"`
	DebtBalance           decimal.Decimal `json:"debtBalance"`
	HasPendingRequest     bool            `json:"hasPendingRequest"`
	LastSettlementRequest *time.Time      `json:"lastSettlementRequest,omitempty"`
}

// PendingSettlementOverview lists couriers holding cash or packages.
type PendingSettlementOverview struct {
	Drivers      []PendingSettlementDriver `json:"drivers"`
	TotalCash    decimal.Decimal           `json:"totalCash"`
	TotalReturns int                       `json:"totalReturns"`
	Currency     string                    `json:"currency"`
}

// DriverSettlementDetails is what an admin sees before settling a courier.
type DriverSettlementDetails struct {
	Driver         User                   `json:"driver"`
	Balance        CourierBalance         `json:"balance"`
	PendingRequest *ReconciliationRequest `json:"pendingRequest,omitempty"`
}
