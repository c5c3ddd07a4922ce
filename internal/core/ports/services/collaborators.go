package services

import (
	"context"
	"io"

	"github.com/SscSPs/geexpress_backend/internal/core/domain"
)

// BlobFile is an uploaded file on its way to blob storage.
type BlobFile struct {
	Reader      io.Reader
	Size        int64
	Filename    string
	ContentType string
}

// BlobRef identifies a stored blob.
type BlobRef struct {
	URL      string
	PublicID string
}

// BlobStorage stores receipts and courier documents.
type BlobStorage interface {
	// Upload stores the file under folder and returns its public reference.
	Upload(ctx context.Context, file BlobFile, folder string) (BlobRef, error)

	// Delete removes a blob by its public ID.
	Delete(ctx context.Context, publicID string) error
}

// Notifier delivers best-effort notifications. Failures are logged by the
// implementation and never returned to the caller.
type Notifier interface {
	Notify(ctx context.Context, in domain.NotificationInput)
	NotifyRole(ctx context.Context, role domain.UserRole, in domain.NotificationInput)
}

// SettlementLocker serializes settlements of the same courier across instances.
type SettlementLocker interface {
	// Acquire takes the courier's lock or fails with ErrConflict when it is held.
	Acquire(ctx context.Context, courierID string) (release func(), err error)
}
