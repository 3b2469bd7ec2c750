package services

import (
	"context"
	"errors"
	"strings"

	"piads/identity"
	"piads/models"
	"piads/storage"
)

// A profile keeps at most this many recent searches; older terms are
// evicted first.
const maxRecentSearches = 20

// Price range widening factors. A first priced view seeds the band
// around the price; later views stretch it toward outliers without
// snapping to them.
const (
	seedRangeLow   = 0.5
	seedRangeHigh  = 1.5
	widenRangeLow  = 0.8
	widenRangeHigh = 1.2
)

// ProfileService tracks per-user browsing behavior feeding the
// recommendation engine
type ProfileService struct {
	store *storage.Store
}

// NewProfileService creates a new ProfileService
func NewProfileService(store *storage.Store) *ProfileService {
	return &ProfileService{store: store}
}

// KeyFor resolves the profile key for a request: the authenticated user
// ID when present, otherwise a stable fingerprint of the session so
// anonymous browsing still accumulates signal.
func (s *ProfileService) KeyFor(userID, deviceID, userAgent string) string {
	if userID != "" {
		return userID
	}
	return identity.SessionFingerprint(deviceID, userAgent)
}

// Get fetches the profile for a user, creating an empty one if none exists
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.BehaviorProfile, error) {
	if userID == "" {
		return nil, errors.New("profile key is required")
	}
	return s.store.GetProfile(ctx, userID)
}

// RecordView accumulates a listing view into the viewer's profile:
// category and location counters plus price range widening
func (s *ProfileService) RecordView(ctx context.Context, userID string, listing *models.Listing) error {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	if listing.Category != "" {
		p.CategoryViews[listing.Category]++
	}
	if listing.Location != "" {
		p.LocationViews[listing.Location]++
	}
	if listing.Price > 0 {
		widenPriceRange(&p.PriceRange, listing.Price)
	}

	return s.store.SaveProfile(ctx, p)
}

func widenPriceRange(r *models.PriceRange, price float64) {
	if !r.IsSet() {
		r.Min = price * seedRangeLow
		r.Max = price * seedRangeHigh
		return
	}
	if low := price * widenRangeLow; low < r.Min {
		r.Min = low
	}
	if high := price * widenRangeHigh; high > r.Max {
		r.Max = high
	}
}

// RecordSearch appends a search term to the profile, keeping the list
// bounded and most-recent-last. Repeated terms move to the end rather
// than duplicating.
func (s *ProfileService) RecordSearch(ctx context.Context, userID, term string) error {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}

	p, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	searches := make([]string, 0, len(p.RecentSearches)+1)
	for _, existing := range p.RecentSearches {
		if existing != term {
			searches = append(searches, existing)
		}
	}
	searches = append(searches, term)
	if len(searches) > maxRecentSearches {
		searches = searches[len(searches)-maxRecentSearches:]
	}
	p.RecentSearches = searches

	return s.store.SaveProfile(ctx, p)
}

// Like marks a listing as liked and bumps its favorites counter.
// Liking twice is a no-op.
func (s *ProfileService) Like(ctx context.Context, userID, listingID string) error {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if p.Likes(listingID) {
		return nil
	}
	p.LikedListings = append(p.LikedListings, listingID)
	if err := s.store.SaveProfile(ctx, p); err != nil {
		return err
	}
	return s.adjustFavorites(ctx, listingID, 1)
}

// Unlike removes a liked listing and decrements its favorites counter
func (s *ProfileService) Unlike(ctx context.Context, userID, listingID string) error {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !p.Likes(listingID) {
		return nil
	}
	kept := make([]string, 0, len(p.LikedListings)-1)
	for _, id := range p.LikedListings {
		if id != listingID {
			kept = append(kept, id)
		}
	}
	p.LikedListings = kept
	if err := s.store.SaveProfile(ctx, p); err != nil {
		return err
	}
	return s.adjustFavorites(ctx, listingID, -1)
}

func (s *ProfileService) adjustFavorites(ctx context.Context, listingID string, delta int) error {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil || listing == nil {
		return err
	}
	favorites := listing.Favorites + delta
	if favorites < 0 {
		favorites = 0
	}
	_, err = s.store.UpdateListing(ctx, listingID, models.ListingUpdate{Favorites: &favorites})
	return err
}
