package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/domain"
	portsrepo "github.com/SscSPs/geexpress_backend/internal/core/ports/repositories"
	"github.com/SscSPs/geexpress_backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	notificationColumns      = `notification_id, user_id, title, body, type, data, is_read, created_at, read_at`
	defaultNotificationLimit = 50
)

type PgxNotificationRepository struct {
	db *pgxpool.Pool
}

func newPgxNotificationRepository(db *pgxpool.Pool) portsrepo.NotificationRepositoryFacade {
	return &PgxNotificationRepository{db: db}
}

var _ portsrepo.NotificationRepositoryFacade = (*PgxNotificationRepository)(nil)

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var m models.Notification
	err := row.Scan(&m.NotificationID, &m.UserID, &m.Title, &m.Body, &m.Type, &m.Data, &m.IsRead, &m.CreatedAt, &m.ReadAt)
	if err != nil {
		return domain.Notification{}, err
	}
	n := domain.Notification{
		NotificationID: m.NotificationID,
		UserID:         m.UserID,
		Title:          m.Title,
		Body:           m.Body,
		Type:           domain.NotificationType(m.Type),
		Data:           map[string]any{},
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
		ReadAt:         fromNullTime(m.ReadAt),
	}
	if err := unmarshalJSONB(m.Data, &n.Data); err != nil {
		return domain.Notification{}, err
	}
	return n, nil
}

func (r *PgxNotificationRepository) SaveNotification(ctx context.Context, notification domain.Notification) error {
	data, err := marshalJSONB(notification.Data, "{}")
	if err != nil {
		return err
	}
	query := `INSERT INTO notifications (` + notificationColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`
	_, err = r.db.Exec(ctx, query,
		notification.NotificationID,
		notification.UserID,
		notification.Title,
		notification.Body,
		string(notification.Type),
		data,
		notification.IsRead,
		notification.CreatedAt,
		toNullTime(notification.ReadAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save notification for user %s: %w", notification.UserID, err)
	}
	return nil
}

func (r *PgxNotificationRepository) FindNotificationByID(ctx context.Context, notificationID string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE notification_id = $1;`
	n, err := scanNotification(r.db.QueryRow(ctx, query, notificationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find notification %s: %w", notificationID, err)
	}
	return &n, nil
}

func (r *PgxNotificationRepository) ListNotificationsByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2;`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications for user %s: %w", userID, err)
	}
	defer rows.Close()

	notifications := []domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return notifications, nil
}

func (r *PgxNotificationRepository) MarkRead(ctx context.Context, notificationID string, now time.Time) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE, read_at = $2 WHERE notification_id = $1;`, notificationID, now)
	if err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", notificationID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("notification %s not found: %w", notificationID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *PgxNotificationRepository) MarkAllRead(ctx context.Context, userID string, now time.Time) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE, read_at = $2 WHERE user_id = $1 AND is_read = FALSE;`, userID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read for user %s: %w", userID, err)
	}
	return cmdTag.RowsAffected(), nil
}
