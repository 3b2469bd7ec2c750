package workers

import (
	"context"
	"log"
	"time"

	"piads/storage"
)

// BackupWorker snapshots the local store to a JSON file, and optionally
// to S3-compatible object storage. Backups are best-effort: a failed
// snapshot is logged and retried on the next pass, never surfaced to
// the write path that triggered it.
type BackupWorker struct {
	store    *storage.Store
	path     string
	s3       *storage.S3Backup // nil when offsite backup is not configured
	trigger  chan struct{}
	debounce time.Duration
}

// NewBackupWorker creates a new BackupWorker writing snapshots to path
func NewBackupWorker(store *storage.Store, path string, s3 *storage.S3Backup) *BackupWorker {
	return &BackupWorker{
		store:    store,
		path:     path,
		s3:       s3,
		trigger:  make(chan struct{}, 1),
		debounce: 5 * time.Second,
	}
}

// Trigger requests a snapshot outside the regular interval. Called
// after every local write; bursts coalesce into one snapshot.
func (w *BackupWorker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Run starts the backup worker loop
func (w *BackupWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Backup worker stopping")
			return
		case <-ticker.C:
			w.snapshot(ctx, false)
		case <-w.trigger:
			// Let a write burst settle before snapshotting
			timer := time.NewTimer(w.debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Println("Backup worker stopping")
				return
			case <-timer.C:
			}
			w.snapshot(ctx, true)
		}
	}
}

func (w *BackupWorker) snapshot(ctx context.Context, triggered bool) {
	snap, err := w.store.Local().Snapshot(ctx)
	if err != nil {
		log.Printf("Backup: failed to snapshot local store: %v", err)
		return
	}

	if err := storage.WriteSnapshotFile(w.path, snap); err != nil {
		log.Printf("Backup: failed to write snapshot file: %v", err)
		return
	}

	if w.s3 != nil {
		key, err := w.s3.UploadSnapshot(ctx, snap)
		if err != nil {
			log.Printf("Warning: failed to upload snapshot to object storage: %v", err)
		} else if !triggered {
			log.Printf("Backup: uploaded snapshot %s", key)
		}
		if err := w.s3.UploadLatest(ctx, snap); err != nil {
			log.Printf("Warning: failed to update latest snapshot in object storage: %v", err)
		}
	}
}
