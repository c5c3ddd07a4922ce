package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/SscSPs/geexpress_backend/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	documentsFolder = "delivery-men-documents"
	systemUserID    = "system"
)

// userService implements the UserSvcFacade interface
type userService struct {
	BaseService
	userRepo        portsrepo.UserRepositoryFacade
	blobStorage     portssvc.BlobStorage
	defaultPassword string
}

// UserServiceOption is a functional option for configuring the user service
type UserServiceOption func(*userService)

// WithUserBlobStorage sets the storage used for courier documents
func WithUserBlobStorage(b portssvc.BlobStorage) UserServiceOption {
	return func(s *userService) {
		s.blobStorage = b
	}
}

// WithDefaultCourierPassword sets the password given to new and reset accounts
func WithDefaultCourierPassword(password string) UserServiceOption {
	return func(s *userService) {
		if password != "" {
			s.defaultPassword = password
		}
	}
}

// WithUserClock overrides the time source
func WithUserClock(clock func() time.Time) UserServiceOption {
	return func(s *userService) {
		s.Clock = clock
	}
}

// NewUserService creates a new user service with the provided options
func NewUserService(userRepo portsrepo.UserRepositoryFacade, options ...UserServiceOption) portssvc.UserSvcFacade {
	svc := &userService{
		userRepo:        userRepo,
		defaultPassword: "0000",
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

// Ensure userService implements the UserSvcFacade interface
var _ portssvc.UserSvcFacade = (*userService)(nil)

// uploadDocuments stores every given document. On failure the documents
// already uploaded are deleted again.
func (s *userService) uploadDocuments(ctx context.Context, documents map[domain.DocumentType]portssvc.BlobFile) (map[domain.DocumentType]domain.StoredDocument, error) {
	if s.blobStorage == nil {
		return nil, fmt.Errorf("%w: blob storage is not configured", apperrors.ErrExternalService)
	}
	now := s.Now()
	stored := make(map[domain.DocumentType]domain.StoredDocument, len(documents))
	for _, dt := range domain.RequiredCourierDocuments {
		file, ok := documents[dt]
		if !ok {
			continue
		}
		ref, err := s.blobStorage.Upload(ctx, file, documentsFolder)
		if err != nil {
			s.LogError(ctx, err, "Failed to upload courier document", slog.String("document", string(dt)))
			s.deleteDocuments(ctx, stored)
			return nil, fmt.Errorf("%w: upload of %s failed: %v", apperrors.ErrExternalService, dt, err)
		}
		stored[dt] = domain.StoredDocument{URL: ref.URL, PublicID: ref.PublicID, UploadedAt: now}
	}
	return stored, nil
}

func (s *userService) deleteDocuments(ctx context.Context, docs map[domain.DocumentType]domain.StoredDocument) {
	for dt, doc := range docs {
		if doc.PublicID == "" {
			continue
		}
		if err := s.blobStorage.Delete(ctx, doc.PublicID); err != nil {
			s.LogError(ctx, err, "Failed to delete courier document", slog.String("document", string(dt)), slog.String("public_id", doc.PublicID))
		}
	}
}

func (s *userService) CreateDeliveryMan(ctx context.Context, caller domain.Caller, req dto.CreateDeliveryManRequest, documents map[domain.DocumentType]portssvc.BlobFile) (*domain.User, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	name, phone := strings.TrimSpace(req.Name), strings.TrimSpace(req.Phone)
	if name == "" || phone == "" {
		return nil, fmt.Errorf("%w: name and phone are required", apperrors.ErrValidation)
	}
	var missing []string
	for _, dt := range domain.RequiredCourierDocuments {
		if _, ok := documents[dt]; !ok {
			missing = append(missing, string(dt))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing documents: %s", apperrors.ErrValidation, strings.Join(missing, ", "))
	}

	if _, err := s.userRepo.FindUserByPhone(ctx, phone); err == nil {
		return nil, fmt.Errorf("%w: phone %s is already registered", apperrors.ErrConflict, phone)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		s.LogError(ctx, err, "Failed to check phone uniqueness")
		return nil, err
	}

	hash, err := utils.HashPassword(s.defaultPassword)
	if err != nil {
		return nil, err
	}

	stored, err := s.uploadDocuments(ctx, documents)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	user := domain.User{
		UserID:             uuid.NewString(),
		Name:               name,
		Phone:              phone,
		Matricule:          strings.TrimSpace(req.Matricule),
		Role:               domain.RoleDeliveryMan,
		IsActive:           true,
		MustChangePassword: true,
		DebtBalance:        decimal.Zero,
		Documents:          stored,
		PasswordHash:       hash,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     caller.UserID,
			LastUpdatedAt: now,
			LastUpdatedBy: caller.UserID,
		},
	}
	if err := s.userRepo.SaveUser(ctx, user); err != nil {
		s.deleteDocuments(ctx, stored)
		if errors.Is(err, apperrors.ErrDuplicate) {
			return nil, fmt.Errorf("%w: phone %s is already registered", apperrors.ErrConflict, phone)
		}
		s.LogError(ctx, err, "Failed to save delivery man")
		return nil, err
	}

	s.LogInfo(ctx, "Delivery man created", slog.String("user_id", user.UserID))
	return &user, nil
}

func (s *userService) findCourier(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsCourier() {
		return nil, fmt.Errorf("%w: user %s is not a delivery man", apperrors.ErrNotFound, userID)
	}
	return user, nil
}

func (s *userService) UpdateDeliveryManDocuments(ctx context.Context, caller domain.Caller, userID string, documents map[domain.DocumentType]portssvc.BlobFile) (*domain.User, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("%w: at least one document is required", apperrors.ErrValidation)
	}
	user, err := s.findCourier(ctx, userID)
	if err != nil {
		return nil, err
	}

	stored, err := s.uploadDocuments(ctx, documents)
	if err != nil {
		return nil, err
	}

	replaced := map[domain.DocumentType]domain.StoredDocument{}
	if user.Documents == nil {
		user.Documents = map[domain.DocumentType]domain.StoredDocument{}
	}
	for dt, doc := range stored {
		if old, ok := user.Documents[dt]; ok {
			replaced[dt] = old
		}
		user.Documents[dt] = doc
	}
	user.LastUpdatedAt = s.Now()
	user.LastUpdatedBy = caller.UserID

	if err := s.userRepo.UpdateUser(ctx, *user); err != nil {
		s.deleteDocuments(ctx, stored)
		s.LogError(ctx, err, "Failed to update courier documents", slog.String("user_id", userID))
		return nil, err
	}
	s.deleteDocuments(ctx, replaced)
	s.LogInfo(ctx, "Courier documents updated", slog.String("user_id", userID), slog.Int("documents", len(stored)))
	return user, nil
}

func (s *userService) ListDeliveryMen(ctx context.Context, caller domain.Caller, params dto.ListUsersParams) ([]domain.User, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	users, err := s.userRepo.FindUsersByRole(ctx, domain.RoleDeliveryMan, params.ActiveOnly, params.Limit, params.Offset)
	if err != nil {
		s.LogError(ctx, err, "Failed to list delivery men")
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func (s *userService) SetUserActive(ctx context.Context, caller domain.Caller, userID string, active bool) (*domain.User, error) {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	if userID == caller.UserID && !active {
		return nil, fmt.Errorf("%w: cannot deactivate your own account", apperrors.ErrValidation)
	}
	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.IsActive = active
	user.LastUpdatedAt = s.Now()
	user.LastUpdatedBy = caller.UserID
	if err := s.userRepo.UpdateUser(ctx, *user); err != nil {
		s.LogError(ctx, err, "Failed to update user status", slog.String("user_id", userID))
		return nil, err
	}
	if !active {
		if err := s.userRepo.ClearRefreshToken(ctx, userID); err != nil {
			s.LogError(ctx, err, "Failed to revoke sessions of deactivated user", slog.String("user_id", userID))
		}
	}
	s.LogInfo(ctx, "User status changed", slog.String("user_id", userID), slog.Bool("active", active))
	return user, nil
}

func (s *userService) ResetPassword(ctx context.Context, caller domain.Caller, userID string) error {
	if err := s.RequireAdmin(ctx, caller); err != nil {
		return err
	}
	if _, err := s.userRepo.FindUserByID(ctx, userID); err != nil {
		return err
	}
	hash, err := utils.HashPassword(s.defaultPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hash, true, s.Now()); err != nil {
		s.LogError(ctx, err, "Failed to reset password", slog.String("user_id", userID))
		return err
	}
	if err := s.userRepo.ClearRefreshToken(ctx, userID); err != nil {
		s.LogError(ctx, err, "Failed to revoke sessions after password reset", slog.String("user_id", userID))
	}
	s.LogInfo(ctx, "Password reset", slog.String("user_id", userID))
	return nil
}

func (s *userService) CreateAdmin(ctx context.Context, name, phone, password string) (*domain.User, error) {
	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)
	if name == "" || phone == "" {
		return nil, fmt.Errorf("%w: name and phone are required", apperrors.ErrValidation)
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	user := domain.User{
		UserID:       uuid.NewString(),
		Name:         name,
		Phone:        phone,
		Role:         domain.RoleAdmin,
		IsActive:     true,
		DebtBalance:  decimal.Zero,
		PasswordHash: hash,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     systemUserID,
			LastUpdatedAt: now,
			LastUpdatedBy: systemUserID,
		},
	}
	if err := s.userRepo.SaveUser(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return nil, fmt.Errorf("%w: phone %s is already registered", apperrors.ErrConflict, phone)
		}
		return nil, err
	}
	s.LogInfo(ctx, "Admin created", slog.String("user_id", user.UserID))
	return &user, nil
}

func (s *userService) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find user", slog.String("user_id", userID))
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) GetProfile(ctx context.Context, caller domain.Caller) (*domain.User, error) {
	return s.GetUserByID(ctx, caller.UserID)
}

func (s *userService) UpdateProfile(ctx context.Context, caller domain.Caller, req dto.UpdateUserRequest) (*domain.User, error) {
	user, err := s.userRepo.FindUserByID(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	updated := false
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", apperrors.ErrValidation)
		}
		if name != user.Name {
			user.Name = name
			updated = true
		}
	}
	if !updated {
		return user, nil
	}

	user.LastUpdatedAt = s.Now()
	user.LastUpdatedBy = caller.UserID
	if err := s.userRepo.UpdateUser(ctx, *user); err != nil {
		s.LogError(ctx, err, "Failed to update profile", slog.String("user_id", caller.UserID))
		return nil, err
	}
	return user, nil
}

func (s *userService) UpdateFCMToken(ctx context.Context, caller domain.Caller, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is required", apperrors.ErrValidation)
	}
	if err := s.userRepo.UpdateFCMToken(ctx, caller.UserID, token, s.Now()); err != nil {
		s.LogError(ctx, err, "Failed to update push token", slog.String("user_id", caller.UserID))
		return err
	}
	return nil
}
