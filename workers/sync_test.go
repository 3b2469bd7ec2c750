package workers

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"piads/models"
	"piads/storage"
)

// replayTarget implements only the Backend methods the sync worker
// replays; anything else panics to catch unexpected calls
type replayTarget struct {
	storage.Backend

	mu       sync.Mutex
	listings map[string]models.Listing
	reviews  map[string]models.Review
	profiles map[string]models.BehaviorProfile
}

func newReplayTarget() *replayTarget {
	return &replayTarget{
		listings: make(map[string]models.Listing),
		reviews:  make(map[string]models.Review),
		profiles: make(map[string]models.BehaviorProfile),
	}
}

func (r *replayTarget) CreateListing(ctx context.Context, l *models.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[l.ID] = *l
	return nil
}

func (r *replayTarget) CreateReview(ctx context.Context, rev *models.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviews[rev.ID] = *rev
	return nil
}

func (r *replayTarget) SaveProfile(ctx context.Context, p *models.BehaviorProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.UserID] = *p
	return nil
}

func TestSyncWorker_ReplaysLocalWrites(t *testing.T) {
	local, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open local store: %v", err)
	}
	defer local.Close()
	ctx := context.Background()

	// Seed the local store as if the remote had been down
	listing := &models.Listing{
		ID: "l1", UserID: "seller-1", Title: "Guitar", Category: "Music",
		Price: 250, Status: models.ListingStatusActive,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := local.CreateListing(ctx, listing); err != nil {
		t.Fatalf("seed listing failed: %v", err)
	}
	if err := local.CreateReview(ctx, &models.Review{
		ID: "r1", ListingID: "l1", ReviewerID: "buyer-1", Rating: 5, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed review failed: %v", err)
	}
	p := models.NewBehaviorProfile("buyer-1")
	p.CategoryViews["Music"] = 1
	if err := local.SaveProfile(ctx, p); err != nil {
		t.Fatalf("seed profile failed: %v", err)
	}

	remote := newReplayTarget()
	store := storage.NewStore(remote, local)
	worker := NewSyncWorker(store)
	worker.RunOnce(ctx, 50)

	if _, ok := remote.listings["l1"]; !ok {
		t.Fatalf("listing not replayed to remote")
	}
	if _, ok := remote.reviews["r1"]; !ok {
		t.Fatalf("review not replayed to remote")
	}
	if _, ok := remote.profiles["buyer-1"]; !ok {
		t.Fatalf("profile not replayed to remote")
	}

	count, err := local.UnsyncedCount(ctx)
	if err != nil {
		t.Fatalf("unsynced count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected everything marked synced, %d pending", count)
	}

	// A second pass finds nothing to do
	worker.RunOnce(ctx, 50)
	if len(remote.listings) != 1 {
		t.Fatalf("replay should be idempotent, got %d listings", len(remote.listings))
	}
}
