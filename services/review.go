package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"piads/models"
	"piads/storage"
)

// ReviewService handles buyer reviews and keeps the per-listing rating
// aggregates current
type ReviewService struct {
	store *storage.Store
}

// NewReviewService creates a new ReviewService
func NewReviewService(store *storage.Store) *ReviewService {
	return &ReviewService{store: store}
}

// Create validates and persists a review, then recomputes the listing's
// rating average and review count. Validation failures are returned
// before any storage call.
func (s *ReviewService) Create(ctx context.Context, r *models.Review) (*models.Review, error) {
	if r.ListingID == "" {
		return nil, errors.New("listing id is required")
	}
	if r.ReviewerID == "" {
		return nil, errors.New("reviewer id is required")
	}
	if r.Rating < 1 || r.Rating > 5 {
		return nil, errors.New("rating must be between 1 and 5")
	}

	listing, err := s.store.GetListing(ctx, r.ListingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, ErrListingNotFound
	}

	created, err := s.store.CreateReview(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	if err := s.refreshAggregates(ctx, r.ListingID); err != nil {
		log.Printf("Warning: failed to update rating aggregates for listing %s: %v", r.ListingID, err)
	}

	if _, err := s.store.CreateNotification(ctx, &models.Notification{
		UserID:    listing.UserID,
		Kind:      models.NotificationKindReview,
		Body:      fmt.Sprintf("Your listing %q received a %d-star review", listing.Title, r.Rating),
		CreatedAt: time.Now(),
	}); err != nil {
		log.Printf("Warning: failed to create review notification: %v", err)
	}

	return created, nil
}

// ListForListing returns all reviews for a listing, newest first
func (s *ReviewService) ListForListing(ctx context.Context, listingID string) ([]models.Review, error) {
	return s.store.ListReviews(ctx, listingID)
}

// refreshAggregates recomputes the listing's average rating (two decimal
// places) and review count from the full review set
func (s *ReviewService) refreshAggregates(ctx context.Context, listingID string) error {
	reviews, err := s.store.ListReviews(ctx, listingID)
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		return nil
	}

	total := 0
	for _, r := range reviews {
		total += r.Rating
	}
	avg := math.Round(float64(total)/float64(len(reviews))*100) / 100
	count := len(reviews)

	_, err = s.store.UpdateListing(ctx, listingID, models.ListingUpdate{
		Rating:      &avg,
		ReviewCount: &count,
	})
	return err
}
