package services

import (
	"context"
	"testing"

	"piads/models"
	"piads/rank"
)

func newTestRecommender(t *testing.T) (*RecommendService, *ListingService, *ProfileService) {
	t.Helper()
	store := newTestStore(t)
	profiles := NewProfileService(store)
	listings := NewListingService(store, profiles)
	engine := rank.NewEngine(rank.DefaultWeights())
	return NewRecommendService(store, engine), listings, profiles
}

func TestPersonalized_PrefersViewedCategory(t *testing.T) {
	recommender, listings, profiles := newTestRecommender(t)
	ctx := context.Background()

	electronics, err := listings.Create(ctx, &models.Listing{
		UserID: "seller-1", Title: "Headphones", Category: "Electronics", Price: 80,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := listings.Create(ctx, &models.Listing{
		UserID: "seller-2", Title: "Jacket", Category: "Fashion", Price: 85,
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Build up signal on Electronics
	for i := 0; i < 3; i++ {
		if err := profiles.RecordView(ctx, "buyer-1", electronics); err != nil {
			t.Fatalf("record view failed: %v", err)
		}
	}

	got, err := recommender.Personalized(ctx, "buyer-1", 0)
	if err != nil {
		t.Fatalf("personalized failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both active listings ranked, got %d", len(got))
	}
	if got[0].Category != "Electronics" {
		t.Fatalf("expected the viewed category first, got %s", got[0].Category)
	}
}

func TestSimilar_UnknownListing(t *testing.T) {
	recommender, _, _ := newTestRecommender(t)

	if _, err := recommender.Similar(context.Background(), "missing", 0); err != ErrListingNotFound {
		t.Fatalf("expected ErrListingNotFound, got %v", err)
	}
}

func TestScored_ReturnsReasons(t *testing.T) {
	recommender, listings, profiles := newTestRecommender(t)
	ctx := context.Background()

	created, err := listings.Create(ctx, &models.Listing{
		UserID: "seller-1", Title: "Headphones", Category: "Electronics", Price: 80,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := profiles.RecordView(ctx, "buyer-1", created); err != nil {
		t.Fatalf("record view failed: %v", err)
	}

	recs, err := recommender.Scored(ctx, "buyer-1", 0)
	if err != nil {
		t.Fatalf("scored failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	if len(recs[0].Reasons) == 0 {
		t.Fatalf("expected at least one reason")
	}
	if recs[0].Reasons[0] != rank.ReasonCategory {
		t.Fatalf("expected category reason first, got %s", recs[0].Reasons[0])
	}
}
