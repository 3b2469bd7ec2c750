package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"piads/config"
	"piads/models"
	"piads/storage"
)

func TestSweepExpiredPromotions(t *testing.T) {
	local, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open local store: %v", err)
	}
	defer local.Close()
	store := storage.NewStore(nil, local)
	ctx := context.Background()

	expired := time.Now().Add(-time.Hour)
	future := time.Now().Add(24 * time.Hour)

	lapsed := &models.Listing{UserID: "s1", Title: "Lapsed promo", Category: "Home", Price: 10,
		Featured: true, Promoted: true, PromotionExpiresAt: &expired}
	running := &models.Listing{UserID: "s1", Title: "Running promo", Category: "Home", Price: 10,
		Featured: true, PromotionExpiresAt: &future}
	plain := &models.Listing{UserID: "s1", Title: "No promo", Category: "Home", Price: 10}

	for _, l := range []*models.Listing{lapsed, running, plain} {
		if _, err := store.CreateListing(ctx, l); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	sched := New(&config.Config{}, store)
	if err := sched.SweepExpiredPromotions(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	got, err := store.GetListing(ctx, lapsed.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Featured || got.Promoted {
		t.Fatalf("expected lapsed promotion cleared: %+v", got)
	}

	got, err = store.GetListing(ctx, running.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !got.Featured {
		t.Fatalf("running promotion should survive the sweep")
	}
}
