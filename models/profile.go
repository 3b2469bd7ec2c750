package models

import (
	"time"
)

// PriceRange is a user's preferred price band, widened as they browse
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// IsSet reports whether the range has been initialized by a priced view
func (r PriceRange) IsSet() bool {
	return r.Min != 0 || r.Max != 0
}

// BehaviorProfile accumulates per-user browsing signal used for personalization.
// Created empty on first access and persisted continuously; it never expires.
type BehaviorProfile struct {
	UserID         string         `json:"user_id" db:"user_id"`
	CategoryViews  map[string]int `json:"category_views" db:"category_views"`
	LocationViews  map[string]int `json:"location_views" db:"location_views"`
	RecentSearches []string       `json:"recent_searches" db:"recent_searches"`
	LikedListings  []string       `json:"liked_listings" db:"liked_listings"`
	PriceRange     PriceRange     `json:"price_range" db:"price_range"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// NewBehaviorProfile returns an empty profile for the given user or session key
func NewBehaviorProfile(userID string) *BehaviorProfile {
	return &BehaviorProfile{
		UserID:        userID,
		CategoryViews: make(map[string]int),
		LocationViews: make(map[string]int),
		UpdatedAt:     time.Now(),
	}
}

// Likes reports whether the profile has liked the given listing
func (p *BehaviorProfile) Likes(listingID string) bool {
	for _, id := range p.LikedListings {
		if id == listingID {
			return true
		}
	}
	return false
}
