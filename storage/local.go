package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"piads/models"
)

// LocalStore is the SQLite fallback backend. It holds the same entities
// as the remote store using the same column names, plus a synced flag so
// records written during an outage can be pushed upstream later.
type LocalStore struct {
	db *sql.DB
}

func NewLocalStore(dbPath string) (*LocalStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &LocalStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

func (s *LocalStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		title TEXT,
		description TEXT,
		tags JSON,
		category TEXT,
		region TEXT,
		price REAL DEFAULT 0,
		stock INTEGER,
		views INTEGER DEFAULT 0,
		favorites INTEGER DEFAULT 0,
		rating REAL DEFAULT 0,
		review_count INTEGER DEFAULT 0,
		is_featured BOOLEAN DEFAULT FALSE,
		is_promoted BOOLEAN DEFAULT FALSE,
		promotion_expires_at DATETIME,
		status TEXT DEFAULT 'active',
		created_at DATETIME,
		updated_at DATETIME,
		synced BOOLEAN DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		listing_id TEXT NOT NULL,
		reviewer_id TEXT,
		rating INTEGER,
		comment TEXT,
		created_at DATETIME,
		synced BOOLEAN DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT,
		recipient_id TEXT,
		listing_id TEXT,
		body TEXT,
		is_read BOOLEAN DEFAULT FALSE,
		created_at DATETIME,
		synced BOOLEAN DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		kind TEXT,
		body TEXT,
		is_read BOOLEAN DEFAULT FALSE,
		created_at DATETIME,
		synced BOOLEAN DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS behavior_profiles (
		user_id TEXT PRIMARY KEY,
		category_views JSON,
		location_views JSON,
		recent_searches JSON,
		liked_listings JSON,
		price_min REAL DEFAULT 0,
		price_max REAL DEFAULT 0,
		updated_at DATETIME,
		synced BOOLEAN DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category);
	CREATE INDEX IF NOT EXISTS idx_listings_unsynced ON listings(synced) WHERE synced = FALSE;
	CREATE INDEX IF NOT EXISTS idx_reviews_listing ON reviews(listing_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Listings
// =============================================================================

// CreateListing stores a listing flagged unsynced. Fresh records get an
// id and timestamps if the caller left them empty.
func (s *LocalStore) CreateListing(ctx context.Context, l *models.Listing) error {
	return s.insertListing(ctx, l, false)
}

// CreateListingSynced stores a listing that is already known to the
// remote, so the sync worker leaves it alone.
func (s *LocalStore) CreateListingSynced(ctx context.Context, l *models.Listing) error {
	return s.insertListing(ctx, l, true)
}

func (s *LocalStore) insertListing(ctx context.Context, l *models.Listing, synced bool) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	now := time.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = now
	}
	if l.Status == "" {
		l.Status = models.ListingStatusActive
	}

	tagsJSON, _ := json.Marshal(l.Tags)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listings (id, user_id, title, description, tags, category, region, price, stock,
			views, favorites, rating, review_count, is_featured, is_promoted, promotion_expires_at,
			status, created_at, updated_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			tags = excluded.tags,
			category = excluded.category,
			region = excluded.region,
			price = excluded.price,
			stock = excluded.stock,
			views = excluded.views,
			favorites = excluded.favorites,
			rating = excluded.rating,
			review_count = excluded.review_count,
			is_featured = excluded.is_featured,
			is_promoted = excluded.is_promoted,
			promotion_expires_at = excluded.promotion_expires_at,
			status = excluded.status,
			updated_at = excluded.updated_at,
			synced = excluded.synced`,
		l.ID, l.UserID, l.Title, l.Description, string(tagsJSON), l.Category, l.Location, l.Price, l.Stock,
		l.Views, l.Favorites, l.Rating, l.ReviewCount, l.Featured, l.Promoted, l.PromotionExpiresAt,
		l.Status, l.CreatedAt, l.UpdatedAt, synced)
	return err
}

const listingColumns = `id, user_id, title, description, tags, category, region, price, stock,
	views, favorites, rating, review_count, is_featured, is_promoted, promotion_expires_at,
	status, created_at, updated_at`

func scanListing(row interface{ Scan(...interface{}) error }) (*models.Listing, error) {
	var l models.Listing
	var tags sql.NullString
	var stock sql.NullInt64
	var promoExpires sql.NullTime

	err := row.Scan(&l.ID, &l.UserID, &l.Title, &l.Description, &tags, &l.Category, &l.Location,
		&l.Price, &stock, &l.Views, &l.Favorites, &l.Rating, &l.ReviewCount,
		&l.Featured, &l.Promoted, &promoExpires, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if tags.Valid && tags.String != "" {
		_ = json.Unmarshal([]byte(tags.String), &l.Tags)
	}
	if stock.Valid {
		v := int(stock.Int64)
		l.Stock = &v
	}
	if promoExpires.Valid {
		t := promoExpires.Time
		l.PromotionExpiresAt = &t
	}
	return &l, nil
}

// ListListings applies the shared filter semantics: equality matches,
// status defaulting to active, newest first.
func (s *LocalStore) ListListings(ctx context.Context, f ListingFilter) ([]models.Listing, error) {
	status := f.Status
	if status == "" {
		status = models.ListingStatusActive
	}

	query := `SELECT ` + listingColumns + ` FROM listings WHERE status = ?`
	args := []interface{}{status}

	if f.Category != "" {
		query += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.Location != "" {
		query += " AND region = ?"
		args = append(args, f.Location)
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// GetListing returns the raw stored shape without seller enrichment
func (s *LocalStore) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)

	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// UpdateListing merges the partial update and stamps updated_at.
// Returns nil when the id is unknown.
func (s *LocalStore) UpdateListing(ctx context.Context, id string, upd models.ListingUpdate) (*models.Listing, error) {
	existing, err := s.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	applyListingUpdate(existing, upd)
	existing.UpdatedAt = time.Now()

	if err := s.insertListing(ctx, existing, false); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *LocalStore) DeleteListing(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
	return err
}

func (s *LocalStore) IncrementViews(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE listings SET views = views + 1, synced = FALSE WHERE id = ?`, id)
	return err
}

// applyListingUpdate merges non-nil fields from upd into l
func applyListingUpdate(l *models.Listing, upd models.ListingUpdate) {
	if upd.Title != nil {
		l.Title = *upd.Title
	}
	if upd.Description != nil {
		l.Description = *upd.Description
	}
	if upd.Tags != nil {
		l.Tags = upd.Tags
	}
	if upd.Category != nil {
		l.Category = *upd.Category
	}
	if upd.Location != nil {
		l.Location = *upd.Location
	}
	if upd.Price != nil {
		l.Price = *upd.Price
	}
	if upd.Stock != nil {
		l.Stock = upd.Stock
	}
	if upd.Favorites != nil {
		l.Favorites = *upd.Favorites
	}
	if upd.Rating != nil {
		l.Rating = *upd.Rating
	}
	if upd.ReviewCount != nil {
		l.ReviewCount = *upd.ReviewCount
	}
	if upd.Featured != nil {
		l.Featured = *upd.Featured
	}
	if upd.Promoted != nil {
		l.Promoted = *upd.Promoted
	}
	if upd.PromotionExpiresAt != nil {
		l.PromotionExpiresAt = upd.PromotionExpiresAt
	}
	if upd.Status != nil {
		l.Status = *upd.Status
	}
}

// =============================================================================
// Reviews
// =============================================================================

func (s *LocalStore) CreateReview(ctx context.Context, r *models.Review) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (id, listing_id, reviewer_id, rating, comment, created_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, FALSE)
		ON CONFLICT(id) DO NOTHING`,
		r.ID, r.ListingID, r.ReviewerID, r.Rating, r.Comment, r.CreatedAt)
	return err
}

func (s *LocalStore) ListReviews(ctx context.Context, listingID string) ([]models.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, listing_id, reviewer_id, rating, comment, created_at
		FROM reviews WHERE listing_id = ? ORDER BY created_at DESC`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var r models.Review
		var comment sql.NullString
		if err := rows.Scan(&r.ID, &r.ListingID, &r.ReviewerID, &r.Rating, &comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Comment = comment.String
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// =============================================================================
// Messages
// =============================================================================

func (s *LocalStore) CreateMessage(ctx context.Context, m *models.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, recipient_id, listing_id, body, is_read, created_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, FALSE)
		ON CONFLICT(id) DO NOTHING`,
		m.ID, m.SenderID, m.RecipientID, m.ListingID, m.Body, m.Read, m.CreatedAt)
	return err
}

func (s *LocalStore) ListMessages(ctx context.Context, userID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, recipient_id, listing_id, body, is_read, created_at
		FROM messages WHERE sender_id = ? OR recipient_id = ? ORDER BY created_at DESC`,
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.ListingID, &m.Body, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *LocalStore) MarkMessageRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE, synced = FALSE WHERE id = ?`, id)
	return err
}

// =============================================================================
// Notifications
// =============================================================================

func (s *LocalStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, kind, body, is_read, created_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, FALSE)
		ON CONFLICT(id) DO NOTHING`,
		n.ID, n.UserID, n.Kind, n.Body, n.Read, n.CreatedAt)
	return err
}

func (s *LocalStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, body, is_read, created_at
		FROM notifications WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *LocalStore) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE, synced = FALSE WHERE id = ?`, id)
	return err
}

// =============================================================================
// Behavior profiles
// =============================================================================

func (s *LocalStore) GetProfile(ctx context.Context, userID string) (*models.BehaviorProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, category_views, location_views, recent_searches, liked_listings,
			price_min, price_max, updated_at
		FROM behavior_profiles WHERE user_id = ?`, userID)

	var p models.BehaviorProfile
	var catViews, locViews, searches, liked sql.NullString
	err := row.Scan(&p.UserID, &catViews, &locViews, &searches, &liked,
		&p.PriceRange.Min, &p.PriceRange.Max, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.CategoryViews = make(map[string]int)
	p.LocationViews = make(map[string]int)
	if catViews.Valid {
		_ = json.Unmarshal([]byte(catViews.String), &p.CategoryViews)
	}
	if locViews.Valid {
		_ = json.Unmarshal([]byte(locViews.String), &p.LocationViews)
	}
	if searches.Valid {
		_ = json.Unmarshal([]byte(searches.String), &p.RecentSearches)
	}
	if liked.Valid {
		_ = json.Unmarshal([]byte(liked.String), &p.LikedListings)
	}
	return &p, nil
}

func (s *LocalStore) SaveProfile(ctx context.Context, p *models.BehaviorProfile) error {
	return s.upsertProfile(ctx, p, false)
}

func (s *LocalStore) SaveProfileSynced(ctx context.Context, p *models.BehaviorProfile) error {
	return s.upsertProfile(ctx, p, true)
}

func (s *LocalStore) upsertProfile(ctx context.Context, p *models.BehaviorProfile, synced bool) error {
	catViews, _ := json.Marshal(p.CategoryViews)
	locViews, _ := json.Marshal(p.LocationViews)
	searches, _ := json.Marshal(p.RecentSearches)
	liked, _ := json.Marshal(p.LikedListings)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO behavior_profiles (user_id, category_views, location_views, recent_searches,
			liked_listings, price_min, price_max, updated_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			category_views = excluded.category_views,
			location_views = excluded.location_views,
			recent_searches = excluded.recent_searches,
			liked_listings = excluded.liked_listings,
			price_min = excluded.price_min,
			price_max = excluded.price_max,
			updated_at = excluded.updated_at,
			synced = excluded.synced`,
		p.UserID, string(catViews), string(locViews), string(searches), string(liked),
		p.PriceRange.Min, p.PriceRange.Max, p.UpdatedAt, synced)
	return err
}

// =============================================================================
// Sync bookkeeping
// =============================================================================

func (s *LocalStore) UnsyncedListings(ctx context.Context, limit int) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE synced = FALSE ORDER BY updated_at`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (s *LocalStore) MarkListingSynced(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE listings SET synced = TRUE WHERE id = ?`, id)
	return err
}

func (s *LocalStore) UnsyncedReviews(ctx context.Context, limit int) ([]models.Review, error) {
	query := `
		SELECT id, listing_id, reviewer_id, rating, comment, created_at
		FROM reviews WHERE synced = FALSE ORDER BY created_at`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var r models.Review
		var comment sql.NullString
		if err := rows.Scan(&r.ID, &r.ListingID, &r.ReviewerID, &r.Rating, &comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Comment = comment.String
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (s *LocalStore) MarkReviewSynced(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reviews SET synced = TRUE WHERE id = ?`, id)
	return err
}

func (s *LocalStore) UnsyncedCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM listings WHERE synced = FALSE)
			+ (SELECT COUNT(*) FROM reviews WHERE synced = FALSE)
			+ (SELECT COUNT(*) FROM behavior_profiles WHERE synced = FALSE)`).Scan(&count)
	return count, err
}

func (s *LocalStore) UnsyncedProfiles(ctx context.Context, limit int) ([]models.BehaviorProfile, error) {
	query := `
		SELECT user_id, category_views, location_views, recent_searches, liked_listings,
			price_min, price_max, updated_at
		FROM behavior_profiles WHERE synced = FALSE ORDER BY updated_at`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []models.BehaviorProfile
	for rows.Next() {
		var p models.BehaviorProfile
		var catViews, locViews, searches, liked sql.NullString
		if err := rows.Scan(&p.UserID, &catViews, &locViews, &searches, &liked,
			&p.PriceRange.Min, &p.PriceRange.Max, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CategoryViews = make(map[string]int)
		p.LocationViews = make(map[string]int)
		if catViews.Valid {
			_ = json.Unmarshal([]byte(catViews.String), &p.CategoryViews)
		}
		if locViews.Valid {
			_ = json.Unmarshal([]byte(locViews.String), &p.LocationViews)
		}
		if searches.Valid {
			_ = json.Unmarshal([]byte(searches.String), &p.RecentSearches)
		}
		if liked.Valid {
			_ = json.Unmarshal([]byte(liked.String), &p.LikedListings)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *LocalStore) MarkProfileSynced(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE behavior_profiles SET synced = TRUE WHERE user_id = ?`, userID)
	return err
}
