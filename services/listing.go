package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"piads/models"
	"piads/storage"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrNotOwner        = errors.New("listing does not belong to this user")
	ErrBadTransition   = errors.New("invalid status transition")
)

// ListingService handles ad lifecycle: creation, edits, status
// transitions and view tracking
type ListingService struct {
	store    *storage.Store
	profiles *ProfileService
}

// NewListingService creates a new ListingService
func NewListingService(store *storage.Store, profiles *ProfileService) *ListingService {
	return &ListingService{
		store:    store,
		profiles: profiles,
	}
}

// Create validates and persists a new listing. Validation failures are
// returned before any storage call is made.
func (s *ListingService) Create(ctx context.Context, l *models.Listing) (*models.Listing, error) {
	if err := validateListing(l); err != nil {
		return nil, err
	}

	l.Description = SanitizeDescription(l.Description)
	l.Tags = NormalizeTags(l.Tags)

	created, err := s.store.CreateListing(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}
	return created, nil
}

func validateListing(l *models.Listing) error {
	if l.Title == "" {
		return errors.New("title is required")
	}
	if l.Category == "" {
		return errors.New("category is required")
	}
	if l.Price < 0 {
		return errors.New("price cannot be negative")
	}
	if l.Stock != nil && *l.Stock < 0 {
		return errors.New("stock cannot be negative")
	}
	return nil
}

// Get fetches a single listing by ID
func (s *ListingService) Get(ctx context.Context, id string) (*models.Listing, error) {
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrListingNotFound
	}
	return l, nil
}

// List returns listings matching the filter, newest first
func (s *ListingService) List(ctx context.Context, filter storage.ListingFilter) ([]models.Listing, error) {
	return s.store.ListListings(ctx, filter)
}

// Update applies a partial update after checking ownership. Text fields
// go through the same sanitization as creation.
func (s *ListingService) Update(ctx context.Context, ownerID, id string, upd models.ListingUpdate) (*models.Listing, error) {
	existing, err := s.requireOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if upd.Price != nil && *upd.Price < 0 {
		return nil, errors.New("price cannot be negative")
	}
	if upd.Title != nil && *upd.Title == "" {
		return nil, errors.New("title is required")
	}
	if upd.Description != nil {
		clean := SanitizeDescription(*upd.Description)
		upd.Description = &clean
	}
	if upd.Tags != nil {
		upd.Tags = NormalizeTags(upd.Tags)
	}
	if upd.Status != nil && !validTransition(existing.Status, *upd.Status) {
		return nil, ErrBadTransition
	}

	return s.store.UpdateListing(ctx, id, upd)
}

// Pause takes an active listing off the market without deleting it
func (s *ListingService) Pause(ctx context.Context, ownerID, id string) (*models.Listing, error) {
	return s.setStatus(ctx, ownerID, id, models.ListingStatusPaused)
}

// Resume puts a paused listing back on the market
func (s *ListingService) Resume(ctx context.Context, ownerID, id string) (*models.Listing, error) {
	return s.setStatus(ctx, ownerID, id, models.ListingStatusActive)
}

func (s *ListingService) setStatus(ctx context.Context, ownerID, id, status string) (*models.Listing, error) {
	existing, err := s.requireOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !validTransition(existing.Status, status) {
		return nil, ErrBadTransition
	}
	return s.store.UpdateListing(ctx, id, models.ListingUpdate{Status: &status})
}

// validTransition enforces the listing lifecycle: active and paused are
// interchangeable, sold is terminal.
func validTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case models.ListingStatusActive:
		return to == models.ListingStatusPaused || to == models.ListingStatusSold
	case models.ListingStatusPaused:
		return to == models.ListingStatusActive
	default:
		return false
	}
}

// RecordPurchase marks an active listing sold, decrementing stock first
// when the seller tracks quantity. A listing with remaining stock stays
// active.
func (s *ListingService) RecordPurchase(ctx context.Context, id string) (*models.Listing, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != models.ListingStatusActive {
		return nil, ErrBadTransition
	}

	upd := models.ListingUpdate{}
	sold := models.ListingStatusSold
	if existing.Stock != nil && *existing.Stock > 1 {
		remaining := *existing.Stock - 1
		upd.Stock = &remaining
	} else {
		if existing.Stock != nil {
			zero := 0
			upd.Stock = &zero
		}
		upd.Status = &sold
	}

	updated, err := s.store.UpdateListing(ctx, id, upd)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.CreateNotification(ctx, &models.Notification{
		UserID:    existing.UserID,
		Kind:      models.NotificationKindSale,
		Body:      fmt.Sprintf("Your listing %q sold", existing.Title),
		CreatedAt: time.Now(),
	}); err != nil {
		log.Printf("Warning: failed to create sale notification: %v", err)
	}
	return updated, nil
}

// RecordView bumps the listing view counter and feeds the viewer's
// behavior profile. Profile tracking failures are logged, not returned;
// the view count is the authoritative side effect.
func (s *ListingService) RecordView(ctx context.Context, viewerID, id string) error {
	listing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.IncrementViews(ctx, id); err != nil {
		return err
	}
	if viewerID != "" && s.profiles != nil {
		if err := s.profiles.RecordView(ctx, viewerID, listing); err != nil {
			log.Printf("Warning: failed to record view in behavior profile: %v", err)
		}
	}
	return nil
}

// Delete removes a listing after checking ownership
func (s *ListingService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.requireOwned(ctx, ownerID, id); err != nil {
		return err
	}
	return s.store.DeleteListing(ctx, id)
}

func (s *ListingService) requireOwned(ctx context.Context, ownerID, id string) (*models.Listing, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && existing.UserID != ownerID {
		return nil, ErrNotOwner
	}
	return existing, nil
}
