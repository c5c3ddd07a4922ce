package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/shopspring/decimal"
)

// PackageStatus is the lifecycle state of a single package.
type PackageStatus string

const (
	PackagePending     PackageStatus = "pending"
	PackagePickedUp    PackageStatus = "picked_up"
	PackageInTransit   PackageStatus = "in_transit"
	PackageDelivered   PackageStatus = "delivered"
	PackageAtAgency    PackageStatus = "at_agency"
	PackageTransferred PackageStatus = "transferred"
	PackageFailed      PackageStatus = "failed"
	// PackageCancelled is never reached through the transition table; it only
	// appears on legacy data and is counted as a return by reconciliation.
	PackageCancelled PackageStatus = "cancelled"
)

// ReturnStatus tracks physical return of packages that were not delivered.
type ReturnStatus string

const (
	ReturnNotReturned      ReturnStatus = "not_returned"
	ReturnReturnedToAgency ReturnStatus = "returned_to_agency"
	ReturnReturnedToSender ReturnStatus = "returned_to_sender"
)

var packageTransitions = map[PackageStatus][]PackageStatus{
	PackagePending:   {PackagePickedUp},
	PackagePickedUp:  {PackageInTransit},
	PackageInTransit: {PackageDelivered, PackageAtAgency, PackageTransferred, PackageFailed},
	PackageAtAgency:  {PackageTransferred},
	PackageFailed:    {PackagePending},
}

// IsValidPackageStatus reports whether s is a status a caller may request.
func IsValidPackageStatus(s PackageStatus) bool {
	switch s {
	case PackagePending, PackagePickedUp, PackageInTransit, PackageDelivered,
		PackageAtAgency, PackageTransferred, PackageFailed:
		return true
	}
	return false
}

// CanTransition reports whether a package may move from one status to another.
func CanTransition(from, to PackageStatus) bool {
	for _, allowed := range packageTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition when from -> to is not in the table.
func ValidateTransition(from, to PackageStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: package cannot move from %s to %s", apperrors.ErrInvalidTransition, from, to)
	}
	return nil
}

// IsFinal reports whether the status ends the package's active handling.
func (s PackageStatus) IsFinal() bool {
	switch s {
	case PackageDelivered, PackageFailed, PackageTransferred, PackageAtAgency:
		return true
	}
	return false
}

// IsInProgress reports whether the courier is carrying the package.
func (s PackageStatus) IsInProgress() bool {
	return s == PackagePickedUp || s == PackageInTransit
}

// HoldsCash reports whether the courier collected the package amount.
func (s PackageStatus) HoldsCash() bool {
	return s == PackageDelivered || s == PackageTransferred
}

// AwaitsReturn reports whether the package must physically come back to the agency.
func (s PackageStatus) AwaitsReturn() bool {
	return s == PackageFailed || s == PackageCancelled
}

// GeoPoint is a courier-reported position.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PackageProof groups the optional evidence attached on status changes.
type PackageProof struct {
	DeliveryProof      *string   `json:"deliveryProof,omitempty"`
	RecipientSignature *string   `json:"recipientSignature,omitempty"`
	Location           *GeoPoint `json:"location,omitempty"`
	Notes              *string   `json:"notes,omitempty"`
}

// Package is one shipped item inside a delivery.
type Package struct {
	ID              string           `json:"id"`
	TrackingNumber  string           `json:"trackingNumber"`
	Recipient       string           `json:"recipient"`
	RecipientPhone  string           `json:"recipientPhone"`
	Destination     string           `json:"destination"`
	IsOutOfTown     bool             `json:"isOutOfTown"`
	AgencyName      *string          `json:"agencyName,omitempty"`
	Amount          decimal.Decimal  `json:"amount"`
	Weight          *decimal.Decimal `json:"weight,omitempty"`
	Description     string           `json:"description"`
	Status          PackageStatus    `json:"status"`
	ReturnStatus    ReturnStatus     `json:"returnStatus"`
	RejectionReason *string          `json:"rejectionReason,omitempty"`
	Proof           PackageProof     `json:"proof"`
	SettledAt       *time.Time       `json:"settledAt,omitempty"`
	ReturnedAt      *time.Time       `json:"returnedAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// PackageUpdate carries the fields a courier may attach to a status change.
// Which fields are accepted depends on the target status.
type PackageUpdate struct {
	RejectionReason    *string
	DeliveryProof      *string
	RecipientSignature *string
	AgencyName         *string
	Location           *GeoPoint
	Notes              *string
	Recipient          *string
	RecipientPhone     *string
}

// Validate rejects fields that make no sense for the target status.
func (u PackageUpdate) Validate(target PackageStatus) error {
	if u.RejectionReason != nil && target != PackageFailed {
		return fmt.Errorf("%w: rejectionReason is only accepted when status is failed", apperrors.ErrValidation)
	}
	if (u.DeliveryProof != nil || u.RecipientSignature != nil) && target != PackageDelivered {
		return fmt.Errorf("%w: delivery proof is only accepted when status is delivered", apperrors.ErrValidation)
	}
	if u.AgencyName != nil && target != PackageAtAgency && target != PackageTransferred {
		return fmt.Errorf("%w: agencyName is only accepted for agency or transfer statuses", apperrors.ErrValidation)
	}
	return nil
}

// ApplyStatus validates and applies a status change with its extra fields.
func (p *Package) ApplyStatus(target PackageStatus, extra PackageUpdate, now time.Time) error {
	if err := ValidateTransition(p.Status, target); err != nil {
		return err
	}
	if err := extra.Validate(target); err != nil {
		return err
	}

	p.Status = target
	p.UpdatedAt = now
	if target == PackagePending {
		// retry after failure
		p.RejectionReason = nil
		p.ReturnStatus = ReturnNotReturned
	}
	if extra.RejectionReason != nil {
		p.RejectionReason = extra.RejectionReason
	}
	if extra.DeliveryProof != nil {
		p.Proof.DeliveryProof = extra.DeliveryProof
	}
	if extra.RecipientSignature != nil {
		p.Proof.RecipientSignature = extra.RecipientSignature
	}
	if extra.Location != nil {
		p.Proof.Location = extra.Location
	}
	if extra.Notes != nil {
		p.Proof.Notes = extra.Notes
	}
	if extra.AgencyName != nil {
		p.AgencyName = extra.AgencyName
	}
	if extra.Recipient != nil {
		p.Recipient = *extra.Recipient
	}
	if extra.RecipientPhone != nil {
		p.RecipientPhone = *extra.RecipientPhone
	}
	return nil
}

// ValidateNew checks a package before it is persisted for the first time.
func (p Package) ValidateNew() error {
	if p.Recipient == "" {
		return fmt.Errorf("%w: package recipient is required", apperrors.ErrValidation)
	}
	if p.Destination == "" {
		return fmt.Errorf("%w: package destination is required", apperrors.ErrValidation)
	}
	if p.Amount.IsNegative() {
		return fmt.Errorf("%w: package amount must not be negative", apperrors.ErrValidation)
	}
	if p.Weight != nil && !p.Weight.IsPositive() {
		return fmt.Errorf("%w: package weight must be positive", apperrors.ErrValidation)
	}
	return nil
}
