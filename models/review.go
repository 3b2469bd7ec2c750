package models

import (
	"time"
)

// Review is a buyer's rating of a listing
type Review struct {
	ID         string    `json:"id" db:"id"`
	ListingID  string    `json:"listing_id" db:"listing_id"`
	ReviewerID string    `json:"reviewer_id" db:"reviewer_id"`
	Rating     int       `json:"rating" db:"rating"` // 1-5
	Comment    string    `json:"comment" db:"comment"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
