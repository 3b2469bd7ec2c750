package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"piads/config"
	"piads/models"
	"piads/storage"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// Scheduler runs the periodic maintenance jobs: the promotion expiry
// sweep plus cron-scheduled sync and backup triggers
type Scheduler struct {
	cfg   *config.Config
	store *storage.Store
	cron  *cron.Cron

	syncWorker   Triggerable
	backupWorker Triggerable
}

func New(cfg *config.Config, store *storage.Store) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		store: store,
		cron:  cron.New(),
	}
}

// SetWorkers registers background workers for scheduled triggering
func (s *Scheduler) SetWorkers(sync, backup Triggerable) {
	s.syncWorker = sync
	s.backupWorker = backup
}

func (s *Scheduler) Start(ctx context.Context) error {
	if expr := s.cfg.Sync.PromotionCron; expr != "" {
		log.Printf("Scheduling promotion expiry sweep: %s", expr)
		_, err := s.cron.AddFunc(expr, func() {
			if err := s.SweepExpiredPromotions(ctx); err != nil {
				log.Printf("Promotion sweep error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid promotion sweep cron expression: %w", err)
		}
	}

	if expr := s.cfg.Sync.Cron; expr != "" && s.syncWorker != nil {
		log.Printf("Scheduling sync trigger: %s", expr)
		if _, err := s.cron.AddFunc(expr, s.syncWorker.Trigger); err != nil {
			return fmt.Errorf("invalid sync cron expression: %w", err)
		}
	}

	if expr := s.cfg.Backup.Cron; expr != "" && s.backupWorker != nil {
		log.Printf("Scheduling backup trigger: %s", expr)
		if _, err := s.cron.AddFunc(expr, s.backupWorker.Trigger); err != nil {
			return fmt.Errorf("invalid backup cron expression: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// SweepExpiredPromotions clears featured/promoted flags on listings
// whose promotion window has passed, so expired promotions stop
// collecting the engagement score bonus
func (s *Scheduler) SweepExpiredPromotions(ctx context.Context) error {
	listings, err := s.store.ListListings(ctx, storage.ListingFilter{
		Status: models.ListingStatusActive,
	})
	if err != nil {
		return err
	}

	now := time.Now()
	cleared := 0
	for i := range listings {
		l := &listings[i]
		if l.PromotionExpiresAt == nil || l.PromotionExpiresAt.After(now) {
			continue
		}
		if !l.Featured && !l.Promoted {
			continue
		}

		off := false
		if _, err := s.store.UpdateListing(ctx, l.ID, models.ListingUpdate{
			Featured: &off,
			Promoted: &off,
		}); err != nil {
			log.Printf("Promotion sweep: failed to clear listing %s: %v", l.ID, err)
			continue
		}
		cleared++
	}

	if cleared > 0 {
		log.Printf("Promotion sweep: cleared %d expired promotions", cleared)
	}
	return nil
}
