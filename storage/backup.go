package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"piads/models"
)

// Snapshot aggregates every locally stored entity into one document.
// It is the degraded-mode safety net, written opportunistically after
// local mutations; writing it must never fail a primary operation.
type Snapshot struct {
	CreatedAt     time.Time                `json:"created_at"`
	Listings      []models.Listing         `json:"listings"`
	Reviews       []models.Review          `json:"reviews"`
	Messages      []models.Message         `json:"messages"`
	Notifications []models.Notification    `json:"notifications"`
	Profiles      []models.BehaviorProfile `json:"profiles"`
}

// Snapshot exports all local tables
func (s *LocalStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{CreatedAt: time.Now()}

	listings, err := s.allListings(ctx)
	if err != nil {
		return nil, err
	}
	snap.Listings = listings

	reviews, err := s.allReviews(ctx)
	if err != nil {
		return nil, err
	}
	snap.Reviews = reviews

	messages, err := s.allMessages(ctx)
	if err != nil {
		return nil, err
	}
	snap.Messages = messages

	notifications, err := s.allNotifications(ctx)
	if err != nil {
		return nil, err
	}
	snap.Notifications = notifications

	profiles, err := s.allProfiles(ctx)
	if err != nil {
		return nil, err
	}
	snap.Profiles = profiles

	return snap, nil
}

func (s *LocalStore) allListings(ctx context.Context) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings ORDER BY created_at`)
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

func (s *LocalStore) allReviews(ctx context.Context) ([]models.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, listing_id, reviewer_id, rating, comment, created_at
		FROM reviews ORDER BY created_at`)
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

func (s *LocalStore) allMessages(ctx context.Context) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, recipient_id, listing_id, body, is_read, created_at
		FROM messages ORDER BY created_at`)
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

func (s *LocalStore) allNotifications(ctx context.Context) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, body, is_read, created_at
		FROM notifications ORDER BY created_at`)
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

func (s *LocalStore) allProfiles(ctx context.Context) ([]models.BehaviorProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, category_views, location_views, recent_searches, liked_listings,
			price_min, price_max, updated_at
		FROM behavior_profiles ORDER BY user_id`)
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

// WriteSnapshotFile writes the snapshot as JSON via a temp-file rename
// so a crash mid-write cannot truncate the previous backup.
func WriteSnapshotFile(path string, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
