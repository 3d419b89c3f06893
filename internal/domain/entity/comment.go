package entity

import "time"

// MaxCommentLength bounds the body of a request comment, in characters
const MaxCommentLength = 1000

// Comment is one message on a payment request's discussion thread.
// AuthorID is nil once the author has been deleted.
type Comment struct {
	ID               int64     `json:"id"`
	PaymentRequestID int64     `json:"payment_request_id"`
	AuthorID         *int64    `json:"user_id,omitempty"`
	AuthorName       string    `json:"user_name,omitempty"`
	Body             string    `json:"body"`
	CreatedAt        time.Time `json:"created_at"`
}
