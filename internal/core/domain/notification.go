package domain

import "time"

// NotificationType names the events pushed to users.
type NotificationType string

const (
	NotificationDeliveryAssigned      NotificationType = "delivery_assigned"
	NotificationDeliveryStarted       NotificationType = "delivery_started"
	NotificationTransferReceipt       NotificationType = "transfer_receipt"
	NotificationDeliveryIssue         NotificationType = "delivery_issue"
	NotificationReconciliationRequest NotificationType = "reconciliation_request"
	NotificationSettlementApproved    NotificationType = "settlement_approved"
	NotificationSalaryPaid            NotificationType = "salary_paid"
	NotificationDebtUpdated           NotificationType = "debt_updated"
	NotificationGeneral               NotificationType = "general"
)

// Notification is a stored in-app message.
type Notification struct {
	NotificationID string           `json:"id"`
	UserID         string           `json:"userId"`
	Title          string           `json:"title"`
	Body           string           `json:"body"`
	Type           NotificationType `json:"type"`
	Data           map[string]any   `json:"data"`
	IsRead         bool             `json:"isRead"`
	CreatedAt      time.Time        `json:"createdAt"`
	ReadAt         *time.Time       `json:"readAt,omitempty"`
}

// NotificationInput is what the core hands to the notifier.
type NotificationInput struct {
	RecipientUserID string
	Title           string
	Body            string
	Type            NotificationType
	Data            map[string]any
}
