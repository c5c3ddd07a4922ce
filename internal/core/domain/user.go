package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserRole is the coarse role carried in access tokens.
type UserRole string

const (
	RoleAdmin       UserRole = "admin"
	RoleDeliveryMan UserRole = "delivery_man"
	RoleClient      UserRole = "client"
)

// DocumentType names the courier paperwork kept in blob storage.
type DocumentType string

const (
	DocumentPermit   DocumentType = "permit"
	DocumentCNI      DocumentType = "cni"
	DocumentContract DocumentType = "contract"
)

// RequiredCourierDocuments lists the documents a courier account cannot exist without.
var RequiredCourierDocuments = []DocumentType{DocumentPermit, DocumentCNI, DocumentContract}

// StoredDocument references an uploaded blob.
type StoredDocument struct {
	URL        string    `json:"url"`
	PublicID   string    `json:"publicId"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// User represents an operator account: admins, couriers and clients.
type User struct {
	UserID             string                          `json:"userID"`
	Name               string                          `json:"name"`
	Phone              string                          `json:"phone"`
	Matricule          string                          `json:"matricule,omitempty"`
	Role               UserRole                        `json:"role"`
	IsActive           bool                            `json:"isActive"`
	MustChangePassword bool                            `json:"mustChangePassword"`
	FCMToken           string                          `json:"-"`
	DebtBalance        decimal.Decimal                 `json:"debtBalance"`
	LastDebtUpdate     *time.Time                      `json:"lastDebtUpdate,omitempty"`
	Documents          map[DocumentType]StoredDocument `json:"documents,omitempty"`
	PasswordHash       string                          `json:"-"`
	RefreshTokenHash   string                          `json:"-"`
	RefreshTokenExpiry *time.Time                      `json:"-"`
	AuditFields
}

// IsCourier reports whether the user holds the delivery man role.
func (u User) IsCourier() bool {
	return u.Role == RoleDeliveryMan
}

// MissingDocuments returns the required documents the user has not provided.
func (u User) MissingDocuments() []DocumentType {
	var missing []DocumentType
	for _, dt := range RequiredCourierDocuments {
		if doc, ok := u.Documents[dt]; !ok || doc.URL == "" {
			missing = append(missing, dt)
		}
	}
	return missing
}

// ApplyDebtDelta adjusts the running debt balance, never going below zero.
func (u *User) ApplyDebtDelta(delta decimal.Decimal, now time.Time) {
	u.DebtBalance = clampZero(u.DebtBalance.Add(delta))
	u.LastDebtUpdate = timePtr(now)
}
