package dto

import (
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/shopspring/decimal"
)

// PackageInput describes one package of a new delivery.
type PackageInput struct {
	Recipient      string           `json:"recipient" binding:"required"`
	RecipientPhone string           `json:"recipientPhone"`
	Destination    string           `json:"destination" binding:"required"`
	IsOutOfTown    bool             `json:"isOutOfTown"`
	AgencyName     *string          `json:"agencyName"`
	Amount         decimal.Decimal  `json:"amount"`
	Weight         *decimal.Decimal `json:"weight"`
	Description    string           `json:"description"`
}

// ClientInfoInput identifies the ordering client.
type ClientInfoInput struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone" binding:"required"`
	Address string `json:"address"`
}

// CreateDeliveryRequest defines the data needed to create a delivery.
type CreateDeliveryRequest struct {
	DeliveryType domain.DeliveryType `json:"deliveryType" binding:"required,deliverytype"`
	ClientInfo   ClientInfoInput     `json:"clientInfo" binding:"required"`
	Packages     []PackageInput      `json:"packages" binding:"required,min=1,dive"`
	Notes        string              `json:"notes"`
}

// ToDomainPackages converts the package inputs; ids and tracking numbers are set by the service.
func (r CreateDeliveryRequest) ToDomainPackages() []domain.Package {
	pkgs := make([]domain.Package, len(r.Packages))
	for i, p := range r.Packages {
		pkgs[i] = domain.Package{
			Recipient:      p.Recipient,
			RecipientPhone: p.RecipientPhone,
			Destination:    p.Destination,
			IsOutOfTown:    p.IsOutOfTown,
			AgencyName:     p.AgencyName,
			Amount:         p.Amount,
			Weight:         p.Weight,
			Description:    p.Description,
		}
	}
	return pkgs
}

// ToDomainClient converts the client input.
func (r CreateDeliveryRequest) ToDomainClient() domain.ClientInfo {
	return domain.ClientInfo{Name: r.ClientInfo.Name, Phone: r.ClientInfo.Phone, Address: r.ClientInfo.Address}
}

// AssignDeliveryRequest names the courier a delivery goes to.
type AssignDeliveryRequest struct {
	DeliveryManID string `json:"deliveryManId" binding:"required"`
}

// UpdatePackageStatusRequest is a courier status change with optional evidence.
type UpdatePackageStatusRequest struct {
	Status             domain.PackageStatus `json:"status" binding:"required"`
	RejectionReason    *string              `json:"rejectionReason"`
	DeliveryProof      *string              `json:"deliveryProof"`
	RecipientSignature *string              `json:"recipientSignature"`
	AgencyName         *string              `json:"agencyName"`
	Location           *domain.GeoPoint     `json:"location"`
	Notes              *string              `json:"notes"`
	Recipient          *string              `json:"recipient"`
	RecipientPhone     *string              `json:"recipientPhone"`
}

// ToPackageUpdate extracts the optional fields.
func (r UpdatePackageStatusRequest) ToPackageUpdate() domain.PackageUpdate {
	return domain.PackageUpdate{
		RejectionReason:    r.RejectionReason,
		DeliveryProof:      r.DeliveryProof,
		RecipientSignature: r.RecipientSignature,
		AgencyName:         r.AgencyName,
		Location:           r.Location,
		Notes:              r.Notes,
		Recipient:          r.Recipient,
		RecipientPhone:     r.RecipientPhone,
	}
}

// ReportIssueRequest appends an issue to a delivery.
type ReportIssueRequest struct {
	IssueType   domain.IssueType `json:"issueType" binding:"required,issuetype"`
	Description string           `json:"description" binding:"required"`
	PackageID   *string          `json:"packageId"`
}

// UpdatePackageInfoRequest lets an admin fix descriptive fields of a pending package.
type UpdatePackageInfoRequest struct {
	Recipient      *string `json:"recipient"`
	RecipientPhone *string `json:"recipientPhone"`
	Destination    *string `json:"destination"`
	Description    *string `json:"description"`
	AgencyName     *string `json:"agencyName"`
}

// ToDomain converts the request.
func (r UpdatePackageInfoRequest) ToDomain() domain.PackageInfoUpdate {
	return domain.PackageInfoUpdate{
		Recipient:      r.Recipient,
		RecipientPhone: r.RecipientPhone,
		Destination:    r.Destination,
		Description:    r.Description,
		AgencyName:     r.AgencyName,
	}
}

// ListDeliveriesParams defines query parameters for listing deliveries.
type ListDeliveriesParams struct {
	Status        *string `form:"status"`
	DeliveryType  *string `form:"deliveryType"`
	DeliveryManID *string `form:"deliveryManId"`
	Limit         int     `form:"limit,default=20" binding:"min=1,max=100"`
	NextToken     *string `form:"nextToken"`
}

// ToFilter converts the query parameters into a repository filter.
func (p ListDeliveriesParams) ToFilter() domain.DeliveryFilter {
	var f domain.DeliveryFilter
	if p.Status != nil && *p.Status != "" {
		s := domain.DeliveryStatus(*p.Status)
		f.Status = &s
	}
	if p.DeliveryType != nil && *p.DeliveryType != "" {
		t := domain.DeliveryType(*p.DeliveryType)
		f.DeliveryType = &t
	}
	if p.DeliveryManID != nil && *p.DeliveryManID != "" {
		f.DeliveryManID = p.DeliveryManID
	}
	return f
}

// ListDeliveriesResponse wraps a page of deliveries.
type ListDeliveriesResponse struct {
	Deliveries []domain.Delivery `json:"deliveries"`
	NextToken  *string           `json:"nextToken,omitempty"`
}

// DeliveryHistoryParams selects the history window.
type DeliveryHistoryParams struct {
	Period string `form:"period,default=week" binding:"omitempty,oneof=day week month"`
}
