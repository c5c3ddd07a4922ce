package models

import (
	"database/sql"
	"time"
)

// Notification is a row of the notifications table.
type Notification struct {
	NotificationID string       `db:"notification_id"`
	UserID         string       `db:"user_id"`
	Title          string       `db:"title"`
	Body           string       `db:"body"`
	Type           string       `db:"type"`
	Data           []byte       `db:"data"` // jsonb
	IsRead         bool         `db:"is_read"`
	CreatedAt      time.Time    `db:"created_at"`
	ReadAt         sql.NullTime `db:"read_at"`
}
