package dto

import (
	"time"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateDeliveryManRequest carries the text fields of the multipart courier form.
// The permit, cni and contract files travel as form files.
type CreateDeliveryManRequest struct {
	Name      string `form:"name" binding:"required"`
	Phone     string `form:"phone" binding:"required"`
	Matricule string `form:"matricule"`
}

// UpdateUserRequest defines the data allowed for updating a profile.
// Using pointers to differentiate between omitted fields and zero-value fields.
type UpdateUserRequest struct {
	Name *string `json:"name"`
}

// UpdateFCMTokenRequest registers a device push token.
type UpdateFCMTokenRequest struct {
	Token string `json:"fcmToken" binding:"required"`
}

// SetUserActiveRequest toggles an account.
type SetUserActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// ListUsersParams defines query parameters for listing users.
type ListUsersParams struct {
	Limit      int  `form:"limit,default=20" binding:"min=1,max=100"`
	Offset     int  `form:"offset,default=0" binding:"min=0"`
	ActiveOnly bool `form:"activeOnly"`
}

// UserResponse is the public shape of an account.
type UserResponse struct {
	UserID             string                                        `json:"userID"`
	Name               string                                        `json:"name"`
	Phone              string                                        `json:"phone"`
	Matricule          string                                        `json:"matricule,omitempty"`
	Role               domain.UserRole                               `json:"role"`
	IsActive           bool                                          `json:"isActive"`
	MustChangePassword bool                                          `json:"mustChangePassword"`
	DebtBalance        decimal.Decimal                               `json:"debtBalance"`
	Documents          map[domain.DocumentType]domain.StoredDocument `json:"documents,omitempty"`
	CreatedAt          time.Time                                     `json:"createdAt"`
}

// ToUserResponse converts a domain.User to UserResponse DTO
func ToUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		UserID:             user.UserID,
		Name:               user.Name,
		Phone:              user.Phone,
		Matricule:          user.Matricule,
		Role:               user.Role,
		IsActive:           user.IsActive,
		MustChangePassword: user.MustChangePassword,
		DebtBalance:        user.DebtBalance,
		Documents:          user.Documents,
		CreatedAt:          user.CreatedAt,
	}
}

// ListUsersResponse wraps the list of users.
type ListUsersResponse struct {
	Users []UserResponse `json:"users"`
}

// ToListUserResponse converts a slice of domain.User to ListUsersResponse DTO
func ToListUserResponse(users []domain.User) ListUsersResponse {
	userResponses := make([]UserResponse, len(users))
	for i := range users {
		userResponses[i] = ToUserResponse(&users[i])
	}
	return ListUsersResponse{
		Users: userResponses,
	}
}
