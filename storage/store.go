package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"piads/models"
)

// ListingFilter narrows a listing query. Empty fields match everything;
// an empty Status defaults to active.
type ListingFilter struct {
	Category string
	Location string
	Status   string
	Limit    int
}

// Backend is the persistence contract shared by the remote adapters and
// the local fallback store. The Store façade selects between them; callers
// never learn which one served a request.
type Backend interface {
	CreateListing(ctx context.Context, l *models.Listing) error
	ListListings(ctx context.Context, f ListingFilter) ([]models.Listing, error)
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	UpdateListing(ctx context.Context, id string, upd models.ListingUpdate) (*models.Listing, error)
	DeleteListing(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error

	CreateReview(ctx context.Context, r *models.Review) error
	ListReviews(ctx context.Context, listingID string) ([]models.Review, error)

	CreateMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, userID string) ([]models.Message, error)
	MarkMessageRead(ctx context.Context, id string) error

	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error

	GetProfile(ctx context.Context, userID string) (*models.BehaviorProfile, error)
	SaveProfile(ctx context.Context, p *models.BehaviorProfile) error
}

/// Store is the resilient persistence façade: remote-first with a local
// SQLite fallback. Remote errors are caught, logged and masked by the
// fallback; the caller only sees an error when the local path fails too.
type Store struct {
	remote  Backend // nil when no remote is configured
	local   *LocalStore
	breaker *gobreaker.CircuitBreaker

	// invoked after every mutating local call; failures are the
	// receiver's problem, never the caller's
	backupHook func()
}

// NewStore builds the façade. remote may be nil (local-only mode).
func NewStore(remote Backend, local *LocalStore) *Store {
	settings := gobreaker.Settings{
		Name:    "remote-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Store{
		remote:  remote,
		local:   local,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Local exposes the fallback store for the sync and backup workers
func (s *Store) Local() *LocalStore {
	return s.local
}

// Remote exposes the remote backend, nil when unconfigured
func (s *Store) Remote() Backend {
	return s.remote
}

// RemoteConfigured reports whether a remote backend was wired in
func (s *Store) RemoteConfigured() bool {
	return s.remote != nil
}

// SetBackupHook registers a trigger fired after mutating local calls
func (s *Store) SetBackupHook(fn func()) {
	s.backupHook = fn
}

func (s *Store) afterLocalWrite() {
	if s.backupHook != nil {
		s.backupHook()
	}
}

// tryRemote runs fn against the remote backend through the circuit
// breaker. It returns false when there is no remote, the breaker is open,
// or the call failed; the caller then falls back to local.
func (s *Store) tryRemote(op string, fn func() error) bool {
	if s.remote == nil {
		return false
	}
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err != nil {
		log.Printf("Warning: remote %s failed, falling back to local store: %v", op, err)
		return false
	}
	return true
}

// =============================================================================
// Listings
// =============================================================================

// CreateListing inserts a listing remote-first. New records get a fresh
// id, zeroed engagement counters and current timestamps regardless of
// which backend ends up holding them.
func (s *Store) CreateListing(ctx context.Context, l *models.Listing) (*models.Listing, error) {
	normalizeNewListing(l)

	if s.tryRemote("create listing", func() error {
		return s.remote.CreateListing(ctx, l)
	}) {
		// mirror locally as already-synced so reads survive a later outage
		if err := s.local.CreateListingSynced(ctx, l); err != nil {
			log.Printf("Warning: local mirror of listing %s failed: %v", l.ID, err)
		}
		s.afterLocalWrite()
		return l, nil
	}

	if err := s.local.CreateListing(ctx, l); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	s.afterLocalWrite()
	return l, nil
}

// ListListings queries with identical filter semantics on either path:
// equality matches, status defaulting to active, newest first.
func (s *Store) ListListings(ctx context.Context, f ListingFilter) ([]models.Listing, error) {
	var listings []models.Listing
	if s.tryRemote("list listings", func() error {
		var err error
		listings, err = s.remote.ListListings(ctx, f)
		return err
	}) {
		return listings, nil
	}
	return s.local.ListListings(ctx, f)
}

// GetListing fetches one listing. The remote path enriches the record
// with the seller's display name and avatar; the local path returns the
// raw stored shape and callers tolerate the missing enrichment.
func (s *Store) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	var listing *models.Listing
	if s.tryRemote("get listing", func() error {
		var err error
		listing, err = s.remote.GetListing(ctx, id)
		return err
	}) {
		return listing, nil
	}
	return s.local.GetListing(ctx, id)
}

// UpdateListing applies a partial update and stamps updated_at. Returns
// nil when the id does not exist in whichever store was used.
func (s *Store) UpdateListing(ctx context.Context, id string, upd models.ListingUpdate) (*models.Listing, error) {
	var listing *models.Listing
	if s.tryRemote("update listing", func() error {
		var err error
		listing, err = s.remote.UpdateListing(ctx, id, upd)
		return err
	}) {
		if listing != nil {
			if err := s.local.CreateListingSynced(ctx, listing); err != nil {
				log.Printf("Warning: local mirror of listing %s failed: %v", id, err)
			}
			s.afterLocalWrite()
		}
		return listing, nil
	}

	listing, err := s.local.UpdateListing(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("update listing: %w", err)
	}
	s.afterLocalWrite()
	return listing, nil
}

// DeleteListing removes a listing; deleting an unknown id is not an error
func (s *Store) DeleteListing(ctx context.Context, id string) error {
	if s.tryRemote("delete listing", func() error {
		return s.remote.DeleteListing(ctx, id)
	}) {
		// keep the fallback copy from resurrecting it
		if err := s.local.DeleteListing(ctx, id); err != nil {
			log.Printf("Warning: local delete of listing %s failed: %v", id, err)
		}
		s.afterLocalWrite()
		return nil
	}

	if err := s.local.DeleteListing(ctx, id); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	s.afterLocalWrite()
	return nil
}

// IncrementViews bumps the view counter. The remote path is atomic; the
// local path is a plain read-modify-write, acceptable at single-process
// scope.
func (s *Store) IncrementViews(ctx context.Context, id string) error {
	if s.tryRemote("increment views", func() error {
		return s.remote.IncrementViews(ctx, id)
	}) {
		return nil
	}
	if err := s.local.IncrementViews(ctx, id); err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	s.afterLocalWrite()
	return nil
}

// =============================================================================
// Reviews
// =============================================================================

func (s *Store) CreateReview(ctx context.Context, r *models.Review) (*models.Review, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	if s.tryRemote("create review", func() error {
		return s.remote.CreateReview(ctx, r)
	}) {
		return r, nil
	}

	if err := s.local.CreateReview(ctx, r); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	s.afterLocalWrite()
	return r, nil
}

func (s *Store) ListReviews(ctx context.Context, listingID string) ([]models.Review, error) {
	var reviews []models.Review
	if s.tryRemote("list reviews", func() error {
		var err error
		reviews, err = s.remote.ListReviews(ctx, listingID)
		return err
	}) {
		return reviews, nil
	}
	return s.local.ListReviews(ctx, listingID)
}

// =============================================================================
// Messages
// =============================================================================

func (s *Store) CreateMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	if s.tryRemote("create message", func() error {
		return s.remote.CreateMessage(ctx, m)
	}) {
		return m, nil
	}

	if err := s.local.CreateMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	s.afterLocalWrite()
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, userID string) ([]models.Message, error) {
	var messages []models.Message
	if s.tryRemote("list messages", func() error {
		var err error
		messages, err = s.remote.ListMessages(ctx, userID)
		return err
	}) {
		return messages, nil
	}
	return s.local.ListMessages(ctx, userID)
}

func (s *Store) MarkMessageRead(ctx context.Context, id string) error {
	if s.tryRemote("mark message read", func() error {
		return s.remote.MarkMessageRead(ctx, id)
	}) {
		return nil
	}
	if err := s.local.MarkMessageRead(ctx, id); err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	s.afterLocalWrite()
	return nil
}

// =============================================================================
// Notifications
// =============================================================================

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	if s.tryRemote("create notification", func() error {
		return s.remote.CreateNotification(ctx, n)
	}) {
		return n, nil
	}

	if err := s.local.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	s.afterLocalWrite()
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	var notifications []models.Notification
	if s.tryRemote("list notifications", func() error {
		var err error
		notifications, err = s.remote.ListNotifications(ctx, userID)
		return err
	}) {
		return notifications, nil
	}
	return s.local.ListNotifications(ctx, userID)
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	if s.tryRemote("mark notification read", func() error {
		return s.remote.MarkNotificationRead(ctx, id)
	}) {
		return nil
	}
	if err := s.local.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	s.afterLocalWrite()
	return nil
}

// =============================================================================
// Behavior profiles
// =============================================================================

// GetProfile loads a user's behavior profile, creating an empty one in
// memory when neither store has it.
func (s *Store) GetProfile(ctx context.Context, userID string) (*models.BehaviorProfile, error) {
	var profile *models.BehaviorProfile
	if s.tryRemote("get profile", func() error {
		var err error
		profile, err = s.remote.GetProfile(ctx, userID)
		return err
	}) {
		if profile != nil {
			return profile, nil
		}
		// remote reachable but has no row; the local copy may be newer
	}

	profile, err := s.local.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = models.NewBehaviorProfile(userID)
	}
	return profile, nil
}

func (s *Store) SaveProfile(ctx context.Context, p *models.BehaviorProfile) error {
	p.UpdatedAt = time.Now()

	if s.tryRemote("save profile", func() error {
		return s.remote.SaveProfile(ctx, p)
	}) {
		if err := s.local.SaveProfileSynced(ctx, p); err != nil {
			log.Printf("Warning: local mirror of profile %s failed: %v", p.UserID, err)
		}
		s.afterLocalWrite()
		return nil
	}

	if err := s.local.SaveProfile(ctx, p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	s.afterLocalWrite()
	return nil
}

// normalizeNewListing fills in server-assigned fields on a fresh record
func normalizeNewListing(l *models.Listing) {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	now := time.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	l.Views = 0
	l.Favorites = 0
	l.Rating = 0
	l.ReviewCount = 0
	if l.Status == "" {
		l.Status = models.ListingStatusActive
	}
}
