package models

// Recommendation is a transient per-request score for one listing.
// Recomputed on every request, never persisted.
type Recommendation struct {
	ListingID string   `json:"listing_id"`
	Score     int      `json:"score"`
	Reasons   []string `json:"reasons"` // at most 2
}
