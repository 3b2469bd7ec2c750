package models

import (
	"time"
)

// Listing represents a single marketplace ad
type Listing struct {
	ID                 string     `json:"id" db:"id"`
	UserID             string     `json:"user_id" db:"user_id"`
	Title              string     `json:"title" db:"title"`
	Description        string     `json:"description" db:"description"`
	Tags               []string   `json:"tags" db:"tags"`
	Category           string     `json:"category" db:"category"`
	Location           string     `json:"location" db:"region"`
	Price              float64    `json:"price" db:"price"`
	Stock              *int       `json:"stock" db:"stock"`
	Views              int        `json:"views" db:"views"`
	Favorites          int        `json:"favorites" db:"favorites"`
	Rating             float64    `json:"rating" db:"rating"`
	ReviewCount        int        `json:"review_count" db:"review_count"`
	Featured           bool       `json:"featured" db:"is_featured"`
	Promoted           bool       `json:"promoted" db:"is_promoted"`
	PromotionExpiresAt *time.Time `json:"promotion_expires_at" db:"promotion_expires_at"`
	Status             string     `json:"status" db:"status"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`

	// Seller enrichment, populated only by the remote joined fetch.
	// Empty when the record came from the local store.
	SellerName   string `json:"seller_name,omitempty" db:"-"`
	SellerAvatar string `json:"seller_avatar,omitempty" db:"-"`
}

// ListingUpdate holds a partial update; nil fields are left untouched
type ListingUpdate struct {
	Title              *string
	Description        *string
	Tags               []string
	Category           *string
	Location           *string
	Price              *float64
	Stock              *int
	Favorites          *int
	Rating             *float64
	ReviewCount        *int
	Featured           *bool
	Promoted           *bool
	PromotionExpiresAt *time.Time
	Status             *string
}

// Listing status
const (
	ListingStatusActive = "active"
	ListingStatusPaused = "paused"
	ListingStatusSold   = "sold"
)

// PromotionActive reports whether a promotion flag is still in effect at t
func (l *Listing) PromotionActive(t time.Time) bool {
	if !l.Featured && !l.Promoted {
		return false
	}
	if l.PromotionExpiresAt == nil {
		return true
	}
	return l.PromotionExpiresAt.After(t)
}
