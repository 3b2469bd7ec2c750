package services

import (
	"context"

	"piads/models"
	"piads/rank"
	"piads/storage"
)

// candidatePoolSize caps how many active listings are pulled per
// recommendation query before scoring
const candidatePoolSize = 200

// RecommendService wires the ranking engine to the store: it fetches
// the candidate pool and the viewer's profile, and returns scored
// listings
type RecommendService struct {
	store  *storage.Store
	engine *rank.Engine
}

// NewRecommendService creates a new RecommendService
func NewRecommendService(store *storage.Store, engine *rank.Engine) *RecommendService {
	return &RecommendService{
		store:  store,
		engine: engine,
	}
}

func (s *RecommendService) candidates(ctx context.Context) ([]models.Listing, error) {
	return s.store.ListListings(ctx, storage.ListingFilter{
		Status: models.ListingStatusActive,
		Limit:  candidatePoolSize,
	})
}

// Personalized returns active listings ranked against the user's
// behavior profile. A user with no accumulated signal still gets
// results; engagement and recency carry the score.
func (s *RecommendService) Personalized(ctx context.Context, userID string, limit int) ([]models.Listing, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	listings, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.PersonalizedAds(listings, profile, limit), nil
}

// Scored returns the full scored view, reasons included, for the
// personalized feed
func (s *RecommendService) Scored(ctx context.Context, userID string, limit int) ([]models.Recommendation, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	listings, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.Score(listings, profile, limit), nil
}

// Trending returns active listings ranked purely on engagement and
// recency, identical for every user
func (s *RecommendService) Trending(ctx context.Context, limit int) ([]models.Listing, error) {
	listings, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.TrendingAds(listings, limit), nil
}

// Similar returns active listings resembling the given one by category,
// tags, location and price; the listing itself is excluded
func (s *RecommendService) Similar(ctx context.Context, listingID string, limit int) ([]models.Listing, error) {
	target, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrListingNotFound
	}
	listings, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.SimilarAds(target, listings, limit), nil
}
