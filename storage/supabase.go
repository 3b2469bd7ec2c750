package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"piads/models"
)

// SupabaseStore is the PostgREST remote backend, used when only the
// project URL and service key are configured (no direct DB access).
type SupabaseStore struct {
	url        string
	serviceKey string
	client     *http.Client
}

func NewSupabaseStore(baseURL, serviceKey string, client *http.Client) *SupabaseStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SupabaseStore{
		url:        baseURL,
		serviceKey: serviceKey,
		client:     client,
	}
}

// do performs one PostgREST request. A non-nil out decodes the response
// body; prefer is passed through as the Prefer header.
func (s *SupabaseStore) do(ctx context.Context, method, path string, query url.Values, body interface{}, prefer string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	u := s.url + "/rest/v1/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("supabase error %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// =============================================================================
// Row shapes and mapping
//
// All translation between the remote snake_case schema and the model
// shape lives here and nowhere else.
// =============================================================================

type sellerRow struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type listingRow struct {
	ID                 string     `json:"id,omitempty"`
	UserID             string     `json:"user_id,omitempty"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Tags               []string   `json:"tags"`
	Category           string     `json:"category"`
	Region             string     `json:"region"`
	Price              float64    `json:"price"`
	Stock              *int       `json:"stock,omitempty"`
	Views              int        `json:"views"`
	Favorites          int        `json:"favorites"`
	Rating             float64    `json:"rating"`
	ReviewCount        int        `json:"review_count"`
	IsFeatured         bool       `json:"is_featured"`
	IsPromoted         bool       `json:"is_promoted"`
	PromotionExpiresAt *string    `json:"promotion_expires_at,omitempty"`
	Status             string     `json:"status"`
	CreatedAt          string     `json:"created_at,omitempty"`
	UpdatedAt          string     `json:"updated_at,omitempty"`
	Seller             *sellerRow `json:"profiles,omitempty"`
}

func listingToRow(l *models.Listing) listingRow {
	row := listingRow{
		ID:          l.ID,
		UserID:      l.UserID,
		Title:       l.Title,
		Description: l.Description,
		Tags:        l.Tags,
		Category:    l.Category,
		Region:      l.Location,
		Price:       l.Price,
		Stock:       l.Stock,
		Views:       l.Views,
		Favorites:   l.Favorites,
		Rating:      l.Rating,
		ReviewCount: l.ReviewCount,
		IsFeatured:  l.Featured,
		IsPromoted:  l.Promoted,
		Status:      l.Status,
		CreatedAt:   formatTime(l.CreatedAt),
		UpdatedAt:   formatTime(l.UpdatedAt),
	}
	if l.PromotionExpiresAt != nil {
		v := formatTime(*l.PromotionExpiresAt)
		row.PromotionExpiresAt = &v
	}
	return row
}

// listingFromRow maps the remote row to the model shape: region becomes
// Location, string timestamps become time.Time, and is_promoted lights
// up Featured as well, matching what the web client has always shown.
func listingFromRow(row *listingRow) *models.Listing {
	l := &models.Listing{
		ID:          row.ID,
		UserID:      row.UserID,
		Title:       row.Title,
		Description: row.Description,
		Tags:        row.Tags,
		Category:    row.Category,
		Location:    row.Region,
		Price:       row.Price,
		Stock:       row.Stock,
		Views:       row.Views,
		Favorites:   row.Favorites,
		Rating:      row.Rating,
		ReviewCount: row.ReviewCount,
		Featured:    row.IsFeatured || row.IsPromoted,
		Promoted:    row.IsPromoted,
		Status:      row.Status,
		CreatedAt:   parseTime(row.CreatedAt),
		UpdatedAt:   parseTime(row.UpdatedAt),
	}
	if row.PromotionExpiresAt != nil {
		t := parseTime(*row.PromotionExpiresAt)
		l.PromotionExpiresAt = &t
	}
	if row.Seller != nil {
		l.SellerName = row.Seller.DisplayName
		l.SellerAvatar = row.Seller.AvatarURL
	}
	return l
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// =============================================================================
// Listings
// =============================================================================

func (s *SupabaseStore) CreateListing(ctx context.Context, l *models.Listing) error {
	var rows []listingRow
	err := s.do(ctx, http.MethodPost, "listings", nil, []listingRow{listingToRow(l)},
		"return=representation,resolution=merge-duplicates", &rows)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		*l = *listingFromRow(&rows[0])
	}
	return nil
}

func (s *SupabaseStore) ListListings(ctx context.Context, f ListingFilter) ([]models.Listing, error) {
	status := f.Status
	if status == "" {
		status = models.ListingStatusActive
	}

	query := url.Values{}
	query.Set("status", "eq."+status)
	if f.Category != "" {
		query.Set("category", "eq."+f.Category)
	}
	if f.Location != "" {
		query.Set("region", "eq."+f.Location)
	}
	query.Set("order", "created_at.desc")
	if f.Limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", f.Limit))
	}

	var rows []listingRow
	if err := s.do(ctx, http.MethodGet, "listings", query, nil, "", &rows); err != nil {
		return nil, err
	}

	listings := make([]models.Listing, 0, len(rows))
	for i := range rows {
		listings = append(listings, *listingFromRow(&rows[i]))
	}
	return listings, nil
}

func (s *SupabaseStore) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	query := url.Values{}
	query.Set("id", "eq."+id)
	query.Set("select", "*,profiles(display_name,avatar_url)")

	var rows []listingRow
	if err := s.do(ctx, http.MethodGet, "listings", query, nil, "", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return listingFromRow(&rows[0]), nil
}

func (s *SupabaseStore) UpdateListing(ctx context.Context, id string, upd models.ListingUpdate) (*models.Listing, error) {
	patch := map[string]interface{}{
		"updated_at": formatTime(time.Now()),
	}
	if upd.Title != nil {
		patch["title"] = *upd.Title
	}
	if upd.Description != nil {
		patch["description"] = *upd.Description
	}
	if upd.Tags != nil {
		patch["tags"] = upd.Tags
	}
	if upd.Category != nil {
		patch["category"] = *upd.Category
	}
	if upd.Location != nil {
		patch["region"] = *upd.Location
	}
	if upd.Price != nil {
		patch["price"] = *upd.Price
	}
	if upd.Stock != nil {
		patch["stock"] = *upd.Stock
	}
	if upd.Favorites != nil {
		patch["favorites"] = *upd.Favorites
	}
	if upd.Rating != nil {
		patch["rating"] = *upd.Rating
	}
	if upd.ReviewCount != nil {
		patch["review_count"] = *upd.ReviewCount
	}
	if upd.Featured != nil {
		patch["is_featured"] = *upd.Featured
	}
	if upd.Promoted != nil {
		patch["is_promoted"] = *upd.Promoted
	}
	if upd.PromotionExpiresAt != nil {
		patch["promotion_expires_at"] = formatTime(*upd.PromotionExpiresAt)
	}
	if upd.Status != nil {
		patch["status"] = *upd.Status
	}

	query := url.Values{}
	query.Set("id", "eq."+id)

	var rows []listingRow
	err := s.do(ctx, http.MethodPatch, "listings", query, patch, "return=representation", &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return listingFromRow(&rows[0]), nil
}

func (s *SupabaseStore) DeleteListing(ctx context.Context, id string) error {
	query := url.Values{}
	query.Set("id", "eq."+id)
	return s.do(ctx, http.MethodDelete, "listings", query, nil, "", nil)
}

// IncrementViews calls a stored procedure so the bump is atomic
func (s *SupabaseStore) IncrementViews(ctx context.Context, id string) error {
	return s.do(ctx, http.MethodPost, "rpc/increment_views", nil,
		map[string]string{"listing_id": id}, "", nil)
}

// =============================================================================
// Reviews
// =============================================================================

type reviewRow struct {
	ID         string `json:"id,omitempty"`
	ListingID  string `json:"listing_id"`
	ReviewerID string `json:"reviewer_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
	CreatedAt  string `json:"created_at,omitempty"`
}

func (s *SupabaseStore) CreateReview(ctx context.Context, r *models.Review) error {
	row := reviewRow{
		ID:         r.ID,
		ListingID:  r.ListingID,
		ReviewerID: r.ReviewerID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  formatTime(r.CreatedAt),
	}
	return s.do(ctx, http.MethodPost, "reviews", nil, []reviewRow{row},
		"resolution=merge-duplicates", nil)
}

func (s *SupabaseStore) ListReviews(ctx context.Context, listingID string) ([]models.Review, error) {
	query := url.Values{}
	query.Set("listing_id", "eq."+listingID)
	query.Set("order", "created_at.desc")

	var rows []reviewRow
	if err := s.do(ctx, http.MethodGet, "reviews", query, nil, "", &rows); err != nil {
		return nil, err
	}

	reviews := make([]models.Review, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, models.Review{
			ID:         row.ID,
			ListingID:  row.ListingID,
			ReviewerID: row.ReviewerID,
			Rating:     row.Rating,
			Comment:    row.Comment,
			CreatedAt:  parseTime(row.CreatedAt),
		})
	}
	return reviews, nil
}

// =============================================================================
// Messages
// =============================================================================

type messageRow struct {
	ID          string `json:"id,omitempty"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	ListingID   string `json:"listing_id,omitempty"`
	Body        string `json:"body"`
	IsRead      bool   `json:"is_read"`
	CreatedAt   string `json:"created_at,omitempty"`
}

func (s *SupabaseStore) CreateMessage(ctx context.Context, m *models.Message) error {
	row := messageRow{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		ListingID:   m.ListingID,
		Body:        m.Body,
		IsRead:      m.Read,
		CreatedAt:   formatTime(m.CreatedAt),
	}
	return s.do(ctx, http.MethodPost, "messages", nil, []messageRow{row},
		"resolution=merge-duplicates", nil)
}

func (s *SupabaseStore) ListMessages(ctx context.Context, userID string) ([]models.Message, error) {
	query := url.Values{}
	query.Set("or", fmt.Sprintf("(sender_id.eq.%s,recipient_id.eq.%s)", userID, userID))
	query.Set("order", "created_at.desc")

	var rows []messageRow
	if err := s.do(ctx, http.MethodGet, "messages", query, nil, "", &rows); err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, models.Message{
			ID:          row.ID,
			SenderID:    row.SenderID,
			RecipientID: row.RecipientID,
			ListingID:   row.ListingID,
			Body:        row.Body,
			Read:        row.IsRead,
			CreatedAt:   parseTime(row.CreatedAt),
		})
	}
	return messages, nil
}

func (s *SupabaseStore) MarkMessageRead(ctx context.Context, id string) error {
	query := url.Values{}
	query.Set("id", "eq."+id)
	return s.do(ctx, http.MethodPatch, "messages", query,
		map[string]bool{"is_read": true}, "", nil)
}

// =============================================================================
// Notifications
// =============================================================================

type notificationRow struct {
	ID        string `json:"id,omitempty"`
	UserID    string `json:"user_id"`
	Kind      string `json:"kind"`
	Body      string `json:"body"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at,omitempty"`
}

func (s *SupabaseStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	row := notificationRow{
		ID:        n.ID,
		UserID:    n.UserID,
		Kind:      n.Kind,
		Body:      n.Body,
		IsRead:    n.Read,
		CreatedAt: formatTime(n.CreatedAt),
	}
	return s.do(ctx, http.MethodPost, "notifications", nil, []notificationRow{row},
		"resolution=merge-duplicates", nil)
}

func (s *SupabaseStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	query := url.Values{}
	query.Set("user_id", "eq."+userID)
	query.Set("order", "created_at.desc")

	var rows []notificationRow
	if err := s.do(ctx, http.MethodGet, "notifications", query, nil, "", &rows); err != nil {
		return nil, err
	}

	notifications := make([]models.Notification, 0, len(rows))
	for _, row := range rows {
		notifications = append(notifications, models.Notification{
			ID:        row.ID,
			UserID:    row.UserID,
			Kind:      row.Kind,
			Body:      row.Body,
			Read:      row.IsRead,
			CreatedAt: parseTime(row.CreatedAt),
		})
	}
	return notifications, nil
}

func (s *SupabaseStore) MarkNotificationRead(ctx context.Context, id string) error {
	query := url.Values{}
	query.Set("id", "eq."+id)
	return s.do(ctx, http.MethodPatch, "notifications", query,
		map[string]bool{"is_read": true}, "", nil)
}

// =============================================================================
// Behavior profiles
// =============================================================================

type profileRow struct {
	UserID         string         `json:"user_id"`
	CategoryViews  map[string]int `json:"category_views"`
	LocationViews  map[string]int `json:"location_views"`
	RecentSearches []string       `json:"recent_searches"`
	LikedListings  []string       `json:"liked_listings"`
	PriceMin       float64        `json:"price_min"`
	PriceMax       float64        `json:"price_max"`
	UpdatedAt      string         `json:"updated_at,omitempty"`
}

func (s *SupabaseStore) GetProfile(ctx context.Context, userID string) (*models.BehaviorProfile, error) {
	query := url.Values{}
	query.Set("user_id", "eq."+userID)

	var rows []profileRow
	if err := s.do(ctx, http.MethodGet, "behavior_profiles", query, nil, "", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	p := &models.BehaviorProfile{
		UserID:         row.UserID,
		CategoryViews:  row.CategoryViews,
		LocationViews:  row.LocationViews,
		RecentSearches: row.RecentSearches,
		LikedListings:  row.LikedListings,
		PriceRange:     models.PriceRange{Min: row.PriceMin, Max: row.PriceMax},
		UpdatedAt:      parseTime(row.UpdatedAt),
	}
	if p.CategoryViews == nil {
		p.CategoryViews = make(map[string]int)
	}
	if p.LocationViews == nil {
		p.LocationViews = make(map[string]int)
	}
	return p, nil
}

func (s *SupabaseStore) SaveProfile(ctx context.Context, p *models.BehaviorProfile) error {
	row := profileRow{
		UserID:         p.UserID,
		CategoryViews:  p.CategoryViews,
		LocationViews:  p.LocationViews,
		RecentSearches: p.RecentSearches,
		LikedListings:  p.LikedListings,
		PriceMin:       p.PriceRange.Min,
		PriceMax:       p.PriceRange.Max,
		UpdatedAt:      formatTime(p.UpdatedAt),
	}
	return s.do(ctx, http.MethodPost, "behavior_profiles", nil, []profileRow{row},
		"resolution=merge-duplicates", nil)
}
