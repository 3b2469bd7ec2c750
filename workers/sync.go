package workers

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"piads/storage"
)

// SyncWorker replays records written to the local store during remote
// outages back to the remote backend. Remote creates are idempotent
// upserts, so replaying an already-synced record is harmless.
type SyncWorker struct {
	store   *storage.Store
	trigger chan struct{}
}

// NewSyncWorker creates a new SyncWorker
func NewSyncWorker(store *storage.Store) *SyncWorker {
	return &SyncWorker{
		store:   store,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests an immediate sync pass outside the regular interval.
// Safe to call from any goroutine; coalesces if a pass is pending.
func (w *SyncWorker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// RunOnce performs a single sync pass, for one-shot invocations
func (w *SyncWorker) RunOnce(ctx context.Context, batchSize int) {
	w.processBatch(ctx, batchSize)
}

// Run starts the sync worker loop
func (w *SyncWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sync worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-w.trigger:
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *SyncWorker) processBatch(ctx context.Context, batchSize int) {
	if !w.store.RemoteConfigured() {
		return
	}

	pending, err := w.store.Local().UnsyncedCount(ctx)
	if err != nil {
		log.Printf("Sync: failed to count pending records: %v", err)
		return
	}
	if pending == 0 {
		return
	}
	log.Printf("Sync: %d local records pending replay", pending)

	synced := 0
	synced += w.syncListings(ctx, batchSize)
	synced += w.syncReviews(ctx, batchSize)
	synced += w.syncProfiles(ctx, batchSize)
	if synced > 0 {
		log.Printf("Sync: replayed %d records to remote", synced)
	}
}

// withRetry wraps a remote call in exponential backoff, capped so a
// down remote doesn't stall the whole pass
func withRetry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 15 * time.Second
	return backoff.Retry(op, backoff.WithContext(policy, ctx))
}

func (w *SyncWorker) syncListings(ctx context.Context, batchSize int) int {
	listings, err := w.store.Local().UnsyncedListings(ctx, batchSize)
	if err != nil {
		log.Printf("Sync: failed to load unsynced listings: %v", err)
		return 0
	}

	synced := 0
	for i := range listings {
		l := listings[i]
		err := withRetry(ctx, func() error {
			return w.store.Remote().CreateListing(ctx, &l)
		})
		if err != nil {
			log.Printf("Sync: failed to replay listing %s: %v", l.ID, err)
			continue
		}
		if err := w.store.Local().MarkListingSynced(ctx, l.ID); err != nil {
			log.Printf("Sync: failed to mark listing %s synced: %v", l.ID, err)
			continue
		}
		synced++
	}
	return synced
}

func (w *SyncWorker) syncReviews(ctx context.Context, batchSize int) int {
	reviews, err := w.store.Local().UnsyncedReviews(ctx, batchSize)
	if err != nil {
		log.Printf("Sync: failed to load unsynced reviews: %v", err)
		return 0
	}

	synced := 0
	for i := range reviews {
		r := reviews[i]
		err := withRetry(ctx, func() error {
			return w.store.Remote().CreateReview(ctx, &r)
		})
		if err != nil {
			log.Printf("Sync: failed to replay review %s: %v", r.ID, err)
			continue
		}
		if err := w.store.Local().MarkReviewSynced(ctx, r.ID); err != nil {
			log.Printf("Sync: failed to mark review %s synced: %v", r.ID, err)
			continue
		}
		synced++
	}
	return synced
}

func (w *SyncWorker) syncProfiles(ctx context.Context, batchSize int) int {
	profiles, err := w.store.Local().UnsyncedProfiles(ctx, batchSize)
	if err != nil {
		log.Printf("Sync: failed to load unsynced profiles: %v", err)
		return 0
	}

	synced := 0
	for i := range profiles {
		p := profiles[i]
		err := withRetry(ctx, func() error {
			return w.store.Remote().SaveProfile(ctx, &p)
		})
		if err != nil {
			log.Printf("Sync: failed to replay profile %s: %v", p.UserID, err)
			continue
		}
		if err := w.store.Local().MarkProfileSynced(ctx, p.UserID); err != nil {
			log.Printf("Sync: failed to mark profile %s synced: %v", p.UserID, err)
			continue
		}
		synced++
	}
	return synced
}
