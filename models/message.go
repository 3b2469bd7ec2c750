package models

import (
	"time"
)

// Message is a direct message between two users about a listing
type Message struct {
	ID          string    `json:"id" db:"id"`
	SenderID    string    `json:"sender_id" db:"sender_id"`
	RecipientID string    `json:"recipient_id" db:"recipient_id"`
	ListingID   string    `json:"listing_id" db:"listing_id"`
	Body        string    `json:"body" db:"body"`
	Read        bool      `json:"read" db:"is_read"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Notification is an in-app alert for a user
type Notification struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Kind      string    `json:"kind" db:"kind"`
	Body      string    `json:"body" db:"body"`
	Read      bool      `json:"read" db:"is_read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Notification kinds
const (
	NotificationKindMessage = "message"
	NotificationKindReview  = "review"
	NotificationKindSale    = "sale"
)
