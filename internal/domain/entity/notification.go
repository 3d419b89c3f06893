package entity

import "time"

// NotificationType classifies an in-app notification
type NotificationType string

const (
	NotificationRequestSubmitted NotificationType = "request_submitted"
	NotificationRequestApproved  NotificationType = "request_approved"
	NotificationRequestRejected  NotificationType = "request_rejected"
	NotificationRequestPaid      NotificationType = "request_paid"
	NotificationRequestComment   NotificationType = "request_comment"
)

// Notification is an entry in a user's in-app inbox
type Notification struct {
	ID               int64            `json:"id"`
	UserID           int64            `json:"user_id"`
	Type             NotificationType `json:"type"`
	Message          string           `json:"message"`
	PaymentRequestID *int64           `json:"payment_request_id,omitempty"`
	ReadAt           *time.Time       `json:"read_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// IsRead reports whether the recipient has marked the notification read
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
