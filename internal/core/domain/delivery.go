package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/shopspring/decimal"
)

// DeliveryType distinguishes in-town deliveries from transfers to an outside agency.
type DeliveryType string

const (
	DeliveryLocal    DeliveryType = "local"
	DeliveryTransfer DeliveryType = "transfer"
)

// IsValid reports whether the type is known.
func (t DeliveryType) IsValid() bool {
	return t == DeliveryLocal || t == DeliveryTransfer
}

// DeliveryStatus is the aggregate status derived from the packages.
type DeliveryStatus string

const (
	DeliveryPending       DeliveryStatus = "pending"
	DeliveryAssigned      DeliveryStatus = "assigned"
	DeliveryAccepted      DeliveryStatus = "accepted"
	DeliveryInProgress    DeliveryStatus = "in_progress"
	DeliveryTransferred   DeliveryStatus = "transferred"
	DeliveryDelivered     DeliveryStatus = "delivered"
	DeliveryFailed        DeliveryStatus = "failed"
	DeliveryIssueReported DeliveryStatus = "issue_reported"
	DeliveryCancelled     DeliveryStatus = "cancelled"
)

// SettlementStatus tracks whether collected cash was handed to the operator.
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementCompleted SettlementStatus = "completed"
)

// IssueType enumerates the problems a courier can report.
type IssueType string

const (
	IssueAddressNotFound      IssueType = "address_not_found"
	IssueRecipientUnavailable IssueType = "recipient_unavailable"
	IssueRefusedDelivery      IssueType = "refused_delivery"
	IssueDamagedPackage       IssueType = "damaged_package"
	IssueWrongAddress         IssueType = "wrong_address"
	IssueOther                IssueType = "other"
)

// IsValid reports whether the issue type is known.
func (t IssueType) IsValid() bool {
	switch t {
	case IssueAddressNotFound, IssueRecipientUnavailable, IssueRefusedDelivery,
		IssueDamagedPackage, IssueWrongAddress, IssueOther:
		return true
	}
	return false
}

// ClientInfo identifies the customer who ordered the delivery.
type ClientInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Issue is one entry of the append-only issue log.
type Issue struct {
	IssueType   IssueType `json:"issueType"`
	Description string    `json:"description"`
	PackageID   *string   `json:"packageId,omitempty"`
	ReportedBy  string    `json:"reportedBy"`
	ReportedAt  time.Time `json:"reportedAt"`
}

// Delivery aggregates the packages created together for one client.
type Delivery struct {
	DeliveryID       string           `json:"id"`
	DeliveryType     DeliveryType     `json:"deliveryType"`
	ClientInfo       ClientInfo       `json:"clientInfo"`
	Notes            string           `json:"notes"`
	Packages         []Package        `json:"packages"`
	DeliveryManID    *string          `json:"deliveryManId,omitempty"`
	DeliveryManName  *string          `json:"deliveryManName,omitempty"`
	TotalAmount      decimal.Decimal  `json:"totalAmount"`
	Status           DeliveryStatus   `json:"status"`
	SettlementStatus SettlementStatus `json:"settlementStatus"`
	SettledAt        *time.Time       `json:"settledAt,omitempty"`
	SettledBy        *string          `json:"settledBy,omitempty"`
	ReceiptURL       *string          `json:"receiptUrl,omitempty"`
	ReceiptPublicID  *string          `json:"-"`
	Issues           []Issue          `json:"issues"`
	AssignedAt       *time.Time       `json:"assignedAt,omitempty"`
	AcceptedAt       *time.Time       `json:"acceptedAt,omitempty"`
	StartedAt        *time.Time       `json:"startedAt,omitempty"`
	CompletedAt      *time.Time       `json:"completedAt,omitempty"`
	TransferredAt    *time.Time       `json:"transferredAt,omitempty"`
	FailedAt         *time.Time       `json:"failedAt,omitempty"`
	CancelledAt      *time.Time       `json:"cancelledAt,omitempty"`
	AuditFields
}

// AssignmentState is the courier-side input of the status projection.
type AssignmentState struct {
	Assigned bool
	Accepted bool
}

// ProjectDeliveryStatus derives the aggregate status from package statuses.
// It is a pure function of its inputs.
func ProjectDeliveryStatus(packages []Package, deliveryType DeliveryType, a AssignmentState) DeliveryStatus {
	if len(packages) == 0 {
		if a.Assigned {
			return DeliveryAssigned
		}
		return DeliveryPending
	}

	allFinal, allTransferLike := true, true
	anyInProgress, anyPending := false, false
	for _, p := range packages {
		if !p.Status.IsFinal() {
			allFinal = false
		}
		if p.Status.IsInProgress() {
			anyInProgress = true
		}
		if p.Status == PackagePending {
			anyPending = true
		}
		if p.Status != PackageTransferred && p.Status != PackageAtAgency {
			allTransferLike = false
		}
	}

	switch {
	case allFinal:
		if deliveryType == DeliveryTransfer && allTransferLike {
			return DeliveryTransferred
		}
		return DeliveryDelivered
	case anyInProgress:
		return DeliveryInProgress
	case anyPending:
		return DeliveryPending
	case a.Accepted:
		return DeliveryAccepted
	case a.Assigned:
		return DeliveryAssigned
	}
	return DeliveryPending
}

// CollectedAmount sums the packages whose cash counts as collected revenue.
// Delivered always counts; transferred and at_agency count once a receipt exists.
func CollectedAmount(packages []Package, hasReceipt bool) decimal.Decimal {
	total := decimal.Zero
	for _, p := range packages {
		switch p.Status {
		case PackageDelivered:
			total = total.Add(p.Amount)
		case PackageTransferred, PackageAtAgency:
			if hasReceipt {
				total = total.Add(p.Amount)
			}
		}
	}
	return total
}

// NewDelivery validates input and builds a pending delivery. Tracking numbers
// are expected to be set on the packages by the caller.
func NewDelivery(id string, deliveryType DeliveryType, client ClientInfo, notes string, packages []Package, createdBy string, now time.Time) (*Delivery, error) {
	if len(packages) == 0 {
		return nil, fmt.Errorf("%w: at least one package is required", apperrors.ErrValidation)
	}
	if !deliveryType.IsValid() {
		return nil, fmt.Errorf("%w: delivery type must be local or transfer", apperrors.ErrValidation)
	}
	if strings.TrimSpace(client.Name) == "" || strings.TrimSpace(client.Phone) == "" {
		return nil, fmt.Errorf("%w: client name and phone are required", apperrors.ErrValidation)
	}

	total := decimal.Zero
	built := make([]Package, len(packages))
	for i, p := range packages {
		if err := p.ValidateNew(); err != nil {
			return nil, fmt.Errorf("package %d: %w", i+1, err)
		}
		p.Status = PackagePending
		p.ReturnStatus = ReturnNotReturned
		p.IsOutOfTown = p.IsOutOfTown || deliveryType == DeliveryTransfer
		p.CreatedAt = now
		p.UpdatedAt = now
		total = total.Add(p.Amount)
		built[i] = p
	}

	return &Delivery{
		DeliveryID:       id,
		DeliveryType:     deliveryType,
		ClientInfo:       client,
		Notes:            notes,
		Packages:         built,
		TotalAmount:      total,
		Status:           DeliveryPending,
		SettlementStatus: SettlementPending,
		Issues:           []Issue{},
		AuditFields: AuditFields{
			CreatedAt:     now,
			CreatedBy:     createdBy,
			LastUpdatedAt: now,
			LastUpdatedBy: createdBy,
		},
	}, nil
}

// IsAssignedTo reports whether courierID is the delivery's courier.
func (d *Delivery) IsAssignedTo(courierID string) bool {
	return d.DeliveryManID != nil && *d.DeliveryManID == courierID
}

// Authorize returns ErrForbidden unless the caller is an admin or the assigned courier.
func (d *Delivery) Authorize(caller Caller) error {
	if caller.IsAdmin() || d.IsAssignedTo(caller.UserID) {
		return nil
	}
	return fmt.Errorf("%w: delivery %s is not assigned to you", apperrors.ErrForbidden, d.DeliveryID)
}

// requireCourier allows only the assigned courier.
func (d *Delivery) requireCourier(courierID string) error {
	if !d.IsAssignedTo(courierID) {
		return fmt.Errorf("%w: delivery %s is not assigned to you", apperrors.ErrForbidden, d.DeliveryID)
	}
	return nil
}

// FindPackage returns the package with the given id.
func (d *Delivery) FindPackage(packageID string) (*Package, error) {
	for i := range d.Packages {
		if d.Packages[i].ID == packageID {
			return &d.Packages[i], nil
		}
	}
	return nil, fmt.Errorf("%w: package %s not found in delivery %s", apperrors.ErrNotFound, packageID, d.DeliveryID)
}

// FindPackageByTracking returns the package carrying the tracking number.
func (d *Delivery) FindPackageByTracking(trackingNumber string) (*Package, bool) {
	for i := range d.Packages {
		if d.Packages[i].TrackingNumber == trackingNumber {
			return &d.Packages[i], true
		}
	}
	return nil, false
}

func (d *Delivery) assignment() AssignmentState {
	return AssignmentState{
		Assigned: d.DeliveryManID != nil,
		Accepted: d.AcceptedAt != nil,
	}
}

// Recompute re-derives status and total amount from the packages and stamps
// the matching lifecycle timestamps. Cancelled deliveries are left untouched.
func (d *Delivery) Recompute(now time.Time) {
	if d.Status == DeliveryCancelled {
		return
	}

	if d.AcceptedAt == nil && d.DeliveryManID != nil {
		for _, p := range d.Packages {
			if p.Status != PackagePending {
				d.AcceptedAt = timePtr(now)
				break
			}
		}
	}

	d.Status = ProjectDeliveryStatus(d.Packages, d.DeliveryType, d.assignment())
	switch d.Status {
	case DeliveryTransferred:
		if d.TransferredAt == nil {
			d.TransferredAt = timePtr(now)
		}
	case DeliveryDelivered:
		if d.CompletedAt == nil {
			d.CompletedAt = timePtr(now)
		}
		if d.FailedAt == nil && d.allPackagesFailed() {
			d.FailedAt = timePtr(now)
		}
	}
	d.TotalAmount = CollectedAmount(d.Packages, d.ReceiptURL != nil)
}

func (d *Delivery) allPackagesFailed() bool {
	for _, p := range d.Packages {
		if p.Status != PackageFailed {
			return false
		}
	}
	return len(d.Packages) > 0
}

func (d *Delivery) touch(userID string, now time.Time) {
	d.LastUpdatedAt = now
	d.LastUpdatedBy = userID
}

// Assign hands the delivery to an active courier.
func (d *Delivery) Assign(courier User, assignedBy string, now time.Time) error {
	if d.Status == DeliveryCancelled {
		return fmt.Errorf("%w: delivery %s is cancelled", apperrors.ErrConflict, d.DeliveryID)
	}
	if d.Status == DeliveryDelivered || d.Status == DeliveryTransferred {
		return fmt.Errorf("%w: delivery %s is already completed", apperrors.ErrConflict, d.DeliveryID)
	}
	if !courier.IsCourier() {
		return fmt.Errorf("%w: user %s is not a delivery man", apperrors.ErrValidation, courier.UserID)
	}
	if !courier.IsActive {
		return fmt.Errorf("%w: delivery man %s is not active", apperrors.ErrValidation, courier.UserID)
	}

	id, name := courier.UserID, courier.Name
	d.DeliveryManID = &id
	d.DeliveryManName = &name
	d.AssignedAt = timePtr(now)
	d.Status = DeliveryAssigned
	d.touch(assignedBy, now)
	return nil
}

// Start moves an assigned delivery to in_progress.
func (d *Delivery) Start(courierID string, now time.Time) error {
	if err := d.requireCourier(courierID); err != nil {
		return err
	}
	if d.Status != DeliveryAssigned {
		return fmt.Errorf("%w: delivery %s cannot be started from status %s", apperrors.ErrInvalidTransition, d.DeliveryID, d.Status)
	}
	d.Status = DeliveryInProgress
	d.StartedAt = timePtr(now)
	d.touch(courierID, now)
	return nil
}

// UpdatePackageStatus applies one package transition and re-derives the aggregate.
func (d *Delivery) UpdatePackageStatus(courierID, packageID string, target PackageStatus, extra PackageUpdate, now time.Time) (*Package, error) {
	if err := d.requireCourier(courierID); err != nil {
		return nil, err
	}
	if d.Status == DeliveryCancelled {
		return nil, fmt.Errorf("%w: delivery %s is cancelled", apperrors.ErrInvalidTransition, d.DeliveryID)
	}
	pkg, err := d.FindPackage(packageID)
	if err != nil {
		return nil, err
	}
	if err := pkg.ApplyStatus(target, extra, now); err != nil {
		return nil, err
	}
	if target.HoldsCash() && d.SettlementStatus == SettlementCompleted {
		// new cash on an already settled delivery reopens it
		d.SettlementStatus = SettlementPending
	}
	d.Recompute(now)
	d.touch(courierID, now)
	return pkg, nil
}

// ApplyTransferReceipt records the receipt and transfers every package.
func (d *Delivery) ApplyTransferReceipt(courierID, url, publicID string, now time.Time) error {
	if err := d.CanReceiveTransferReceipt(courierID); err != nil {
		return err
	}
	d.ReceiptURL = &url
	d.ReceiptPublicID = &publicID
	for i := range d.Packages {
		d.Packages[i].Status = PackageTransferred
		d.Packages[i].UpdatedAt = now
	}
	if d.SettlementStatus == SettlementCompleted {
		d.SettlementStatus = SettlementPending
	}
	d.Status = DeliveryTransferred
	d.TransferredAt = timePtr(now)
	d.TotalAmount = CollectedAmount(d.Packages, true)
	d.touch(courierID, now)
	return nil
}

// CanReceiveTransferReceipt checks the preconditions of a receipt upload
// without mutating anything, so the blob is only uploaded when it can be used.
func (d *Delivery) CanReceiveTransferReceipt(courierID string) error {
	if d.DeliveryType != DeliveryTransfer {
		return fmt.Errorf("%w: receipts are only accepted for transfer deliveries", apperrors.ErrValidation)
	}
	if err := d.requireCourier(courierID); err != nil {
		return err
	}
	switch d.Status {
	case DeliveryCancelled, DeliveryTransferred, DeliveryDelivered:
		return fmt.Errorf("%w: delivery %s is %s", apperrors.ErrInvalidTransition, d.DeliveryID, d.Status)
	}
	return nil
}

// ReportIssue appends an issue and forces the issue_reported side-channel status.
func (d *Delivery) ReportIssue(caller Caller, issueType IssueType, description string, packageID *string, now time.Time) error {
	if err := d.Authorize(caller); err != nil {
		return err
	}
	if !issueType.IsValid() {
		return fmt.Errorf("%w: unknown issue type %q", apperrors.ErrValidation, issueType)
	}
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("%w: issue description is required", apperrors.ErrValidation)
	}
	if d.Status == DeliveryCancelled {
		return fmt.Errorf("%w: delivery %s is cancelled", apperrors.ErrInvalidTransition, d.DeliveryID)
	}
	if packageID != nil {
		if _, err := d.FindPackage(*packageID); err != nil {
			return err
		}
	}
	d.Issues = append(d.Issues, Issue{
		IssueType:   issueType,
		Description: description,
		PackageID:   packageID,
		ReportedBy:  caller.UserID,
		ReportedAt:  now,
	})
	d.Status = DeliveryIssueReported
	d.touch(caller.UserID, now)
	return nil
}

// Cancel soft-deletes a delivery that has no courier.
func (d *Delivery) Cancel(cancelledBy string, now time.Time) error {
	if d.DeliveryManID != nil {
		return fmt.Errorf("%w: delivery %s is assigned and cannot be cancelled", apperrors.ErrConflict, d.DeliveryID)
	}
	if d.Status == DeliveryCancelled {
		return fmt.Errorf("%w: delivery %s is already cancelled", apperrors.ErrConflict, d.DeliveryID)
	}
	d.Status = DeliveryCancelled
	d.CancelledAt = timePtr(now)
	d.touch(cancelledBy, now)
	return nil
}

// UpdatePackageInfo lets an admin correct a package that has not left the agency.
func (d *Delivery) UpdatePackageInfo(packageID string, info PackageInfoUpdate, updatedBy string, now time.Time) (*Package, error) {
	if d.Status == DeliveryCancelled {
		return nil, fmt.Errorf("%w: delivery %s is cancelled", apperrors.ErrConflict, d.DeliveryID)
	}
	pkg, err := d.FindPackage(packageID)
	if err != nil {
		return nil, err
	}
	if pkg.Status != PackagePending {
		return nil, fmt.Errorf("%w: package %s is no longer pending", apperrors.ErrConflict, packageID)
	}
	if info.Recipient != nil {
		pkg.Recipient = *info.Recipient
	}
	if info.RecipientPhone != nil {
		pkg.RecipientPhone = *info.RecipientPhone
	}
	if info.Destination != nil {
		pkg.Destination = *info.Destination
	}
	if info.Description != nil {
		pkg.Description = *info.Description
	}
	if info.AgencyName != nil {
		pkg.AgencyName = info.AgencyName
	}
	if err := pkg.ValidateNew(); err != nil {
		return nil, err
	}
	pkg.UpdatedAt = now
	d.touch(updatedBy, now)
	return pkg, nil
}

// PackageInfoUpdate holds admin-editable descriptive package fields.
type PackageInfoUpdate struct {
	Recipient      *string
	RecipientPhone *string
	Destination    *string
	Description    *string
	AgencyName     *string
}

// Summary returns the tracking view of the delivery.
func (d *Delivery) Summary() DeliverySummary {
	return DeliverySummary{
		ID:              d.DeliveryID,
		Status:          d.Status,
		DeliveryType:    d.DeliveryType,
		DeliveryManName: d.DeliveryManName,
		CreatedAt:       d.CreatedAt,
	}
}

// DeliveryFilter narrows delivery listings.
type DeliveryFilter struct {
	Status        *DeliveryStatus
	DeliveryType  *DeliveryType
	DeliveryManID *string
	Unassigned    bool
	Statuses      []DeliveryStatus
	CreatedRange  DateRange
}
