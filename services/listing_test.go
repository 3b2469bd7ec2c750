package services

import (
	"context"
	"path/filepath"
	"testing"

	"piads/models"
	"piads/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	local, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open local store: %v", err)
	}
	t.Cleanup(func() { local.Close() })
	return storage.NewStore(nil, local)
}

func newTestListingService(t *testing.T) (*ListingService, *storage.Store) {
	t.Helper()
	store := newTestStore(t)
	profiles := NewProfileService(store)
	return NewListingService(store, profiles), store
}

func draftListing() *models.Listing {
	return &models.Listing{
		UserID:   "seller-1",
		Title:    "Mountain bike",
		Category: "Sports",
		Location: "Lisbon",
		Price:    350,
	}
}

func TestListingCreate_Validation(t *testing.T) {
	svc, _ := newTestListingService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*models.Listing)
	}{
		{"missing title", func(l *models.Listing) { l.Title = "" }},
		{"missing category", func(l *models.Listing) { l.Category = "" }},
		{"negative price", func(l *models.Listing) { l.Price = -1 }},
		{"negative stock", func(l *models.Listing) { s := -2; l.Stock = &s }},
	}
	for _, tc := range cases {
		l := draftListing()
		tc.mutate(l)
		if _, err := svc.Create(ctx, l); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestListingCreate_SanitizesContent(t *testing.T) {
	svc, _ := newTestListingService(t)

	l := draftListing()
	l.Description = "<p>Hardly used, <script>alert(1)</script><b>great</b>   condition</p>"
	l.Tags = []string{" Bike ", "bike", "MTB", ""}

	created, err := svc.Create(context.Background(), l)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Description != "Hardly used, great condition" {
		t.Fatalf("description not sanitized: %q", created.Description)
	}
	if len(created.Tags) != 2 || created.Tags[0] != "bike" || created.Tags[1] != "mtb" {
		t.Fatalf("tags not normalized: %v", created.Tags)
	}
}

func TestListingUpdate_OwnershipEnforced(t *testing.T) {
	svc, _ := newTestListingService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, draftListing())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	title := "Renamed"
	if _, err := svc.Update(ctx, "someone-else", created.ID, models.ListingUpdate{Title: &title}); err != ErrNotOwner {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := svc.Update(ctx, "seller-1", created.ID, models.ListingUpdate{Title: &title}); err != nil {
		t.Fatalf("owner update failed: %v", err)
	}
}

func TestListingStatusTransitions(t *testing.T) {
	svc, _ := newTestListingService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, draftListing())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	paused, err := svc.Pause(ctx, "seller-1", created.ID)
	if err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if paused.Status != models.ListingStatusPaused {
		t.Fatalf("expected paused, got %s", paused.Status)
	}

	// A paused listing cannot be sold directly
	if _, err := svc.RecordPurchase(ctx, created.ID); err != ErrBadTransition {
		t.Fatalf("expected ErrBadTransition for paused purchase, got %v", err)
	}

	resumed, err := svc.Resume(ctx, "seller-1", created.ID)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed.Status != models.ListingStatusActive {
		t.Fatalf("expected active, got %s", resumed.Status)
	}

	sold, err := svc.RecordPurchase(ctx, created.ID)
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if sold.Status != models.ListingStatusSold {
		t.Fatalf("expected sold, got %s", sold.Status)
	}

	// Sold is terminal
	if _, err := svc.Resume(ctx, "seller-1", created.ID); err != ErrBadTransition {
		t.Fatalf("expected ErrBadTransition out of sold, got %v", err)
	}
}

func TestRecordPurchase_DecrementsStock(t *testing.T) {
	svc, _ := newTestListingService(t)
	ctx := context.Background()

	l := draftListing()
	stock := 2
	l.Stock = &stock
	created, err := svc.Create(ctx, l)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first, err := svc.RecordPurchase(ctx, created.ID)
	if err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}
	if first.Status != models.ListingStatusActive {
		t.Fatalf("expected listing active with stock remaining, got %s", first.Status)
	}
	if first.Stock == nil || *first.Stock != 1 {
		t.Fatalf("expected stock 1, got %v", first.Stock)
	}

	second, err := svc.RecordPurchase(ctx, created.ID)
	if err != nil {
		t.Fatalf("second purchase failed: %v", err)
	}
	if second.Status != models.ListingStatusSold {
		t.Fatalf("expected sold after last unit, got %s", second.Status)
	}
}

func TestRecordView_TracksProfile(t *testing.T) {
	svc, store := newTestListingService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, draftListing())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.RecordView(ctx, "buyer-1", created.ID); err != nil {
		t.Fatalf("record view failed: %v", err)
	}

	got, err := store.GetListing(ctx, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Views != 1 {
		t.Fatalf("expected 1 view, got %d", got.Views)
	}

	p, err := store.GetProfile(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("get profile failed: %v", err)
	}
	if p.CategoryViews["Sports"] != 1 {
		t.Fatalf("category view not recorded: %+v", p.CategoryViews)
	}
	if p.LocationViews["Lisbon"] != 1 {
		t.Fatalf("location view not recorded: %+v", p.LocationViews)
	}
	if !p.PriceRange.IsSet() {
		t.Fatalf("expected price range seeded by view")
	}
}
