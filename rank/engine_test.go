package rank

import (
	"testing"
	"time"

	"piads/models"
)

func testProfile() *models.BehaviorProfile {
	p := models.NewBehaviorProfile("user-1")
	p.CategoryViews["Electronics"] = 5
	p.PriceRange = models.PriceRange{Min: 50, Max: 150}
	return p
}

func testListing(id, category string, price float64, age time.Duration, rating float64) models.Listing {
	return models.Listing{
		ID:        id,
		Title:     "listing " + id,
		Category:  category,
		Price:     price,
		Rating:    rating,
		Status:    models.ListingStatusActive,
		CreatedAt: time.Now().Add(-age),
	}
}

func TestScore_OrdersByRelevance(t *testing.T) {
	engine := NewEngine(DefaultWeights())

	catalog := []models.Listing{
		testListing("fresh-electronics", "Electronics", 100, time.Hour, 4.8),
		testListing("stale-fashion", "Fashion", 5000, 100*24*time.Hour, 2.0),
		testListing("old-electronics", "Electronics", 110, 40*24*time.Hour, 3.0),
	}

	recs := engine.Score(catalog, testProfile(), 0)
	if len(recs) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(recs))
	}
	if recs[0].ListingID != "fresh-electronics" {
		t.Fatalf("expected fresh-electronics first, got %s", recs[0].ListingID)
	}
	if recs[1].ListingID != "old-electronics" {
		t.Fatalf("expected old-electronics second, got %s", recs[1].ListingID)
	}
	if recs[2].ListingID != "stale-fashion" {
		t.Fatalf("expected stale-fashion last, got %s", recs[2].ListingID)
	}
}

func TestScore_MonotonicInRating(t *testing.T) {
	engine := NewEngine(DefaultWeights())
	profile := testProfile()

	low := testListing("a", "Electronics", 100, time.Hour, 3.0)
	high := testListing("a", "Electronics", 100, time.Hour, 5.0)

	lowScore := engine.Score([]models.Listing{low}, profile, 0)[0].Score
	highScore := engine.Score([]models.Listing{high}, profile, 0)[0].Score
	if highScore < lowScore {
		t.Fatalf("raising rating lowered score: %d -> %d", lowScore, highScore)
	}
}

func TestScore_NilProfile(t *testing.T) {
	engine := NewEngine(DefaultWeights())
	catalog := []models.Listing{testListing("a", "Electronics", 100, time.Hour, 4.0)}

	recs := engine.Score(catalog, nil, 0)
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation for nil profile, got %d", len(recs))
	}
}

func TestScore_ReasonsCapped(t *testing.T) {
	engine := NewEngine(DefaultWeights())

	l := testListing("a", "Electronics", 100, time.Hour, 4.9)
	l.Featured = true
	recs := engine.Score([]models.Listing{l}, testProfile(), 0)

	if len(recs[0].Reasons) != 2 {
		t.Fatalf("expected 2 reasons, got %v", recs[0].Reasons)
	}
	if recs[0].Reasons[0] != ReasonCategory {
		t.Fatalf("expected category reason first, got %s", recs[0].Reasons[0])
	}
}

func TestScore_DefaultLimit(t *testing.T) {
	engine := NewEngine(DefaultWeights())

	catalog := make([]models.Listing, 0, 15)
	for i := 0; i < 15; i++ {
		catalog = append(catalog, testListing(string(rune('a'+i)), "Electronics", 100, time.Hour, 4.0))
	}

	recs := engine.Score(catalog, testProfile(), 0)
	if len(recs) != 10 {
		t.Fatalf("expected default limit of 10, got %d", len(recs))
	}
	recs = engine.Score(catalog, testProfile(), 3)
	if len(recs) != 3 {
		t.Fatalf("expected limit of 3, got %d", len(recs))
	}
}

func TestPersonalizedAds_MatchesScoreOrder(t *testing.T) {
	engine := NewEngine(DefaultWeights())
	profile := testProfile()
	catalog := []models.Listing{
		testListing("fresh-electronics", "Electronics", 100, time.Hour, 4.8),
		testListing("stale-fashion", "Fashion", 5000, 100*24*time.Hour, 2.0),
		testListing("old-electronics", "Electronics", 110, 40*24*time.Hour, 3.0),
	}

	recs := engine.Score(catalog, profile, 0)
	ads := engine.PersonalizedAds(catalog, profile, 0)
	if len(ads) != len(recs) {
		t.Fatalf("expected %d ads, got %d", len(recs), len(ads))
	}
	for i := range ads {
		if ads[i].ID != recs[i].ListingID {
			t.Fatalf("position %d: expected %s, got %s", i, recs[i].ListingID, ads[i].ID)
		}
	}
}

func TestTrendingAds_IgnoresProfile(t *testing.T) {
	engine := NewEngine(DefaultWeights())
	catalog := []models.Listing{
		testListing("a", "Electronics", 100, time.Hour, 4.8),
		testListing("b", "Fashion", 20, 48*time.Hour, 3.0),
		testListing("c", "Home", 75, 10*24*time.Hour, 4.0),
	}

	first := engine.TrendingAds(catalog, 0)
	second := engine.TrendingAds(catalog, 0)
	if len(first) != len(second) {
		t.Fatalf("trending output length changed between calls")
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("trending order not deterministic at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestTrendingAds_PrefersEngagement(t *testing.T) {
	engine := NewEngine(DefaultWeights())

	hot := testListing("hot", "Electronics", 100, time.Hour, 5.0)
	hot.Views = 2000
	hot.Featured = true
	cold := testListing("cold", "Electronics", 100, 100*24*time.Hour, 1.0)

	ads := engine.TrendingAds([]models.Listing{cold, hot}, 0)
	if ads[0].ID != "hot" {
		t.Fatalf("expected hot listing first, got %s", ads[0].ID)
	}
}

func TestSimilarAds_ExcludesTarget(t *testing.T) {
	engine := NewEngine(DefaultWeights())

	target := testListing("target", "Electronics", 100, time.Hour, 4.0)
	target.Tags = []string{"phone", "android"}

	other := testListing("other", "Electronics", 110, time.Hour, 4.0)
	other.Tags = []string{"phone"}
	unrelated := testListing("unrelated", "Fashion", 30, time.Hour, 4.0)

	ads := engine.SimilarAds(&target, []models.Listing{target, other, unrelated}, 0)
	for _, ad := range ads {
		if ad.ID == "target" {
			t.Fatalf("similar ads must not include the target")
		}
	}
	if len(ads) != 2 {
		t.Fatalf("expected 2 similar ads, got %d", len(ads))
	}
	if ads[0].ID != "other" {
		t.Fatalf("expected closest match first, got %s", ads[0].ID)
	}
}

func TestPriceScore_Falloff(t *testing.T) {
	engine := NewEngine(DefaultWeights())
	profile := testProfile() // range [50,150]

	inRange := testListing("in", "Electronics", 100, time.Hour, 0)
	if got := engine.priceScore(&inRange, profile); got != 100 {
		t.Fatalf("expected 100 inside the range, got %v", got)
	}

	// 50 above the 150 bound: 100 - 50/150*100 = 66.67
	above := testListing("above", "Electronics", 200, time.Hour, 0)
	got := engine.priceScore(&above, profile)
	if got < 66 || got > 67 {
		t.Fatalf("expected ~66.7 just above the range, got %v", got)
	}

	// Far outside the range floors at 0
	far := testListing("far", "Electronics", 5000, time.Hour, 0)
	if got := engine.priceScore(&far, profile); got != 0 {
		t.Fatalf("expected 0 far outside the range, got %v", got)
	}

	// No range accumulated yet scores neutral
	empty := models.NewBehaviorProfile("u")
	if got := engine.priceScore(&inRange, empty); got != 50 {
		t.Fatalf("expected neutral 50 without a range, got %v", got)
	}
}

func TestRecencyScore_Buckets(t *testing.T) {
	now := time.Now()
	cases := []struct {
		age  time.Duration
		want float64
	}{
		{time.Hour, 100},
		{3 * 24 * time.Hour, 80},
		{20 * 24 * time.Hour, 60},
		{60 * 24 * time.Hour, 40},
		{365 * 24 * time.Hour, 20},
	}
	for _, tc := range cases {
		l := models.Listing{CreatedAt: now.Add(-tc.age)}
		if got := RecencyScore(&l, now); got != tc.want {
			t.Fatalf("age %v: expected %v, got %v", tc.age, tc.want, got)
		}
	}
}

func TestEngagementScore_Caps(t *testing.T) {
	l := models.Listing{
		Rating:      5,
		ReviewCount: 10000,
		Views:       1000000,
		Featured:    true,
		Promoted:    true,
	}
	if got := EngagementScore(&l); got != 100 {
		t.Fatalf("expected maxed engagement of 100, got %v", got)
	}
}

func TestLoadWeights_MissingFile(t *testing.T) {
	w, err := LoadWeights("testdata/does-not-exist.yaml")
	if err != nil {
		t.Fatalf("missing weights file should not error: %v", err)
	}
	if w != DefaultWeights() {
		t.Fatalf("expected defaults for missing file, got %+v", w)
	}
}
