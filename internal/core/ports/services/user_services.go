package services

import (
	"context"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	"github.com/SscSPs/geexpress_backend/internal/dto"
)

// CourierAccountSvc defines courier account administration
type CourierAccountSvc interface {
	// CreateDeliveryMan creates a courier with the three mandatory documents. Admin only.
	CreateDeliveryMan(ctx context.Context, caller domain.Caller, req dto.CreateDeliveryManRequest, documents map[domain.DocumentType]BlobFile) (*domain.User, error)

	// UpdateDeliveryManDocuments replaces some of a courier's documents. Admin only.
	UpdateDeliveryManDocuments(ctx context.Context, caller domain.Caller, userID string, documents map[domain.DocumentType]BlobFile) (*domain.User, error)

	// ListDeliveryMen pages through couriers. Admin only.
	ListDeliveryMen(ctx context.Context, caller domain.Caller, params dto.ListUsersParams) ([]domain.User, error)

	// SetUserActive enables or disables an account. Admin only.
	SetUserActive(ctx context.Context, caller domain.Caller, userID string, active bool) (*domain.User, error)

	// ResetPassword restores the default password and forces a change. Admin only.
	ResetPassword(ctx context.Context, caller domain.Caller, userID string) error

	// CreateAdmin bootstraps an admin account from the operator CLI.
	CreateAdmin(ctx context.Context, name, phone, password string) (*domain.User, error)
}

// ProfileSvc defines self-service profile operations
type ProfileSvc interface {
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	GetProfile(ctx context.Context, caller domain.Caller) (*domain.User, error)
	UpdateProfile(ctx context.Context, caller domain.Caller, req dto.UpdateUserRequest) (*domain.User, error)
	UpdateFCMToken(ctx context.Context, caller domain.Caller, token string) error
}

// UserSvcFacade combines all user-related service interfaces
type UserSvcFacade interface {
	CourierAccountSvc
	ProfileSvc
}
