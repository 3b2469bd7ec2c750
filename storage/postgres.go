package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"piads/models"
)

// PostgresStore talks straight to the Supabase Postgres database. It is
// the preferred remote backend when a DB connection string is configured.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// =============================================================================
// Listings
// =============================================================================

// CreateListing inserts with merge-on-conflict so the sync worker can
// replay records created locally during an outage.
func (s *PostgresStore) CreateListing(ctx context.Context, l *models.Listing) error {
	tagsJSON, _ := json.Marshal(l.Tags)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO listings (id, user_id, title, description, tags, category, region, price, stock,
			views, favorites, rating, review_count, is_featured, is_promoted, promotion_expires_at,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			tags = EXCLUDED.tags,
			category = EXCLUDED.category,
			region = EXCLUDED.region,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			is_featured = EXCLUDED.is_featured,
			is_promoted = EXCLUDED.is_promoted,
			promotion_expires_at = EXCLUDED.promotion_expires_at,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		l.ID, l.UserID, l.Title, l.Description, tagsJSON, l.Category, l.Location, l.Price, l.Stock,
		l.Views, l.Favorites, l.Rating, l.ReviewCount, l.Featured, l.Promoted, l.PromotionExpiresAt,
		l.Status, l.CreatedAt, l.UpdatedAt)
	return err
}

const pgListingColumns = `l.id::text, l.user_id::text, l.title, l.description, l.tags,
	l.category, l.region, l.price, l.stock, l.views, l.favorites, l.rating, l.review_count,
	l.is_featured, l.is_promoted, l.promotion_expires_at, l.status, l.created_at, l.updated_at`

func scanPgListing(row pgx.Row) (*models.Listing, error) {
	var l models.Listing
	var tags []byte
	err := row.Scan(&l.ID, &l.UserID, &l.Title, &l.Description, &tags, &l.Category, &l.Location,
		&l.Price, &l.Stock, &l.Views, &l.Favorites, &l.Rating, &l.ReviewCount,
		&l.Featured, &l.Promoted, &l.PromotionExpiresAt, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		_ = json.Unmarshal(tags, &l.Tags)
	}
	return &l, nil
}

func (s *PostgresStore) ListListings(ctx context.Context, f ListingFilter) ([]models.Listing, error) {
	status := f.Status
	if status == "" {
		status = models.ListingStatusActive
	}

	query := `SELECT ` + pgListingColumns + ` FROM listings l WHERE l.status = $1`
	args := []interface{}{status}
	argNum := 2

	if f.Category != "" {
		query += " AND l.category = $" + strconv.Itoa(argNum)
		args = append(args, f.Category)
		argNum++
	}
	if f.Location != "" {
		query += " AND l.region = $" + strconv.Itoa(argNum)
		args = append(args, f.Location)
		argNum++
	}
	query += " ORDER BY l.created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT $" + strconv.Itoa(argNum)
		args = append(args, f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanPgListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// GetListing joins the seller profile for display name and avatar
func (s *PostgresStore) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	query := `
		SELECT ` + pgListingColumns + `,
			COALESCE(p.display_name, ''), COALESCE(p.avatar_url, '')
		FROM listings l
		LEFT JOIN profiles p ON p.id = l.user_id
		WHERE l.id = $1`

	var l models.Listing
	var tags []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.UserID, &l.Title, &l.Description, &tags, &l.Category, &l.Location,
		&l.Price, &l.Stock, &l.Views, &l.Favorites, &l.Rating, &l.ReviewCount,
		&l.Featured, &l.Promoted, &l.PromotionExpiresAt, &l.Status, &l.CreatedAt, &l.UpdatedAt,
		&l.SellerName, &l.SellerAvatar)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		_ = json.Unmarshal(tags, &l.Tags)
	}
	return &l, nil
}

func (s *PostgresStore) UpdateListing(ctx context.Context, id string, upd models.ListingUpdate) (*models.Listing, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argNum := 1

	add := func(col string, val interface{}) {
		sets = append(sets, col+" = $"+strconv.Itoa(argNum))
		args = append(args, val)
		argNum++
	}

	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Tags != nil {
		tagsJSON, _ := json.Marshal(upd.Tags)
		add("tags", tagsJSON)
	}
	if upd.Category != nil {
		add("category", *upd.Category)
	}
	if upd.Location != nil {
		add("region", *upd.Location)
	}
	if upd.Price != nil {
		add("price", *upd.Price)
	}
	if upd.Stock != nil {
		add("stock", *upd.Stock)
	}
	if upd.Favorites != nil {
		add("favorites", *upd.Favorites)
	}
	if upd.Rating != nil {
		add("rating", *upd.Rating)
	}
	if upd.ReviewCount != nil {
		add("review_count", *upd.ReviewCount)
	}
	if upd.Featured != nil {
		add("is_featured", *upd.Featured)
	}
	if upd.Promoted != nil {
		add("is_promoted", *upd.Promoted)
	}
	if upd.PromotionExpiresAt != nil {
		add("promotion_expires_at", *upd.PromotionExpiresAt)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}

	query := "UPDATE listings l SET " + strings.Join(sets, ", ") +
		" WHERE l.id = $" + strconv.Itoa(argNum) +
		" RETURNING " + pgListingColumns
	args = append(args, id)

	l, err := scanPgListing(s.pool.QueryRow(ctx, query, args...))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *PostgresStore) DeleteListing(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	return err
}

// IncrementViews is atomic on the remote path
func (s *PostgresStore) IncrementViews(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE listings SET views = views + 1 WHERE id = $1`, id)
	return err
}

// =============================================================================
// Reviews
// =============================================================================

func (s *PostgresStore) CreateReview(ctx context.Context, r *models.Review) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reviews (id, listing_id, reviewer_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, r.ListingID, r.ReviewerID, r.Rating, r.Comment, r.CreatedAt)
	return err
}

func (s *PostgresStore) ListReviews(ctx context.Context, listingID string) ([]models.Review, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, listing_id::text, reviewer_id::text, rating, COALESCE(comment, ''), created_at
		FROM reviews WHERE listing_id = $1 ORDER BY created_at DESC`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.ListingID, &r.ReviewerID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// =============================================================================
// Messages
// =============================================================================

func (s *PostgresStore) CreateMessage(ctx context.Context, m *models.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, recipient_id, listing_id, body, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		m.ID, m.SenderID, m.RecipientID, m.ListingID, m.Body, m.Read, m.CreatedAt)
	return err
}

func (s *PostgresStore) ListMessages(ctx context.Context, userID string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, sender_id::text, recipient_id::text, COALESCE(listing_id::text, ''), body, is_read, created_at
		FROM messages WHERE sender_id = $1 OR recipient_id = $1 ORDER BY created_at DESC`, userID)
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

func (s *PostgresStore) MarkMessageRead(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE messages SET is_read = TRUE WHERE id = $1`, id)
	return err
}

// =============================================================================
// Notifications
// =============================================================================

func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, kind, body, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		n.ID, n.UserID, n.Kind, n.Body, n.Read, n.CreatedAt)
	return err
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, user_id::text, kind, body, is_read, created_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
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

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	return err
}

// =============================================================================
// Behavior profiles
// =============================================================================

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*models.BehaviorProfile, error) {
	query := `
		SELECT user_id::text, category_views, location_views, recent_searches, liked_listings,
			price_min, price_max, updated_at
		FROM behavior_profiles WHERE user_id = $1`

	var p models.BehaviorProfile
	var catViews, locViews, searches, liked []byte
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &catViews, &locViews, &searches, &liked,
		&p.PriceRange.Min, &p.PriceRange.Max, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.CategoryViews = make(map[string]int)
	p.LocationViews = make(map[string]int)
	if len(catViews) > 0 {
		_ = json.Unmarshal(catViews, &p.CategoryViews)
	}
	if len(locViews) > 0 {
		_ = json.Unmarshal(locViews, &p.LocationViews)
	}
	if len(searches) > 0 {
		_ = json.Unmarshal(searches, &p.RecentSearches)
	}
	if len(liked) > 0 {
		_ = json.Unmarshal(liked, &p.LikedListings)
	}
	return &p, nil
}

func (s *PostgresStore) SaveProfile(ctx context.Context, p *models.BehaviorProfile) error {
	catViews, _ := json.Marshal(p.CategoryViews)
	locViews, _ := json.Marshal(p.LocationViews)
	searches, _ := json.Marshal(p.RecentSearches)
	liked, _ := json.Marshal(p.LikedListings)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO behavior_profiles (user_id, category_views, location_views, recent_searches,
			liked_listings, price_min, price_max, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			category_views = EXCLUDED.category_views,
			location_views = EXCLUDED.location_views,
			recent_searches = EXCLUDED.recent_searches,
			liked_listings = EXCLUDED.liked_listings,
			price_min = EXCLUDED.price_min,
			price_max = EXCLUDED.price_max,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, catViews, locViews, searches, liked,
		p.PriceRange.Min, p.PriceRange.Max, p.UpdatedAt)
	return err
}
