package rank

import (
	"math"
	"sort"
	"strings"
	"time"

	"piads/models"
)

// Reason strings surfaced alongside recommendations
const (
	ReasonCategory = "matches your interests"
	ReasonLocation = "near your preferred locations"
	ReasonSearch   = "related to your searches"
	ReasonRated    = "highly rated"
	ReasonRecent   = "recently posted"
	ReasonFeatured = "featured ad"
)

const defaultLimit = 10

// Engine scores and orders listings by relevance, recency and quality.
// It is stateless: listings and profiles are read-only inputs and every
// call recomputes from scratch.
type Engine struct {
	weights Weights
}

// NewEngine creates an engine with the given weights
func NewEngine(w Weights) *Engine {
	return &Engine{weights: w}
}

// Score computes a weighted score for every listing against the profile,
// sorts descending (stable, catalog order preserved on ties) and truncates
// to limit. A nil profile is treated as empty.
func (e *Engine) Score(listings []models.Listing, profile *models.BehaviorProfile, limit int) []models.Recommendation {
	if limit <= 0 {
		limit = defaultLimit
	}
	if profile == nil {
		profile = models.NewBehaviorProfile("")
	}
	now := time.Now()

	recs := make([]models.Recommendation, 0, len(listings))
	for i := range listings {
		l := &listings[i]

		category := affinityScore(profile.CategoryViews, l.Category)
		location := affinityScore(profile.LocationViews, l.Location)
		search := e.searchScore(l, profile)
		price := e.priceScore(l, profile)
		engagement := EngagementScore(l)
		recency := RecencyScore(l, now)

		total := e.weights.Category*category +
			e.weights.Location*location +
			e.weights.Search*search +
			e.weights.Price*price +
			e.weights.Engagement*engagement +
			e.weights.Recency*recency

		var reasons []string
		if category > 20 {
			reasons = append(reasons, ReasonCategory)
		}
		if location > 20 {
			reasons = append(reasons, ReasonLocation)
		}
		if search > 0 {
			reasons = append(reasons, ReasonSearch)
		}
		if l.Rating >= 4.5 {
			reasons = append(reasons, ReasonRated)
		}
		if recency >= 80 {
			reasons = append(reasons, ReasonRecent)
		}
		if l.Featured || l.Promoted {
			reasons = append(reasons, ReasonFeatured)
		}
		if len(reasons) > 2 {
			reasons = reasons[:2]
		}

		recs = append(recs, models.Recommendation{
			ListingID: l.ID,
			Score:     int(math.Round(total)),
			Reasons:   reasons,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})

	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// PersonalizedAds runs Score and maps the ids back to full listings,
// preserving order and dropping any id that fails to resolve.
func (e *Engine) PersonalizedAds(listings []models.Listing, profile *models.BehaviorProfile, limit int) []models.Listing {
	recs := e.Score(listings, profile, limit)

	byID := make(map[string]*models.Listing, len(listings))
	for i := range listings {
		byID[listings[i].ID] = &listings[i]
	}

	out := make([]models.Listing, 0, len(recs))
	for _, rec := range recs {
		if l, ok := byID[rec.ListingID]; ok {
			out = append(out, *l)
		}
	}
	return out
}

// TrendingAds orders listings by engagement plus recency, ignoring any
// behavior profile. Stable for ties.
func (e *Engine) TrendingAds(listings []models.Listing, limit int) []models.Listing {
	if limit <= 0 {
		limit = defaultLimit
	}
	now := time.Now()

	type scored struct {
		listing models.Listing
		score   float64
	}
	items := make([]scored, 0, len(listings))
	for i := range listings {
		l := listings[i]
		items = append(items, scored{
			listing: l,
			score:   EngagementScore(&l) + RecencyScore(&l, now),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]models.Listing, 0, len(items))
	for _, it := range items {
		out = append(out, it.listing)
	}
	return out
}

// SimilarAds finds listings resembling the target by category, tag overlap,
// location and price proximity. The target itself is never included.
func (e *Engine) SimilarAds(target *models.Listing, all []models.Listing, limit int) []models.Listing {
	if limit <= 0 {
		limit = defaultLimit
	}

	type scored struct {
		listing models.Listing
		score   float64
	}
	items := make([]scored, 0, len(all))
	for i := range all {
		l := all[i]
		if l.ID == target.ID {
			continue
		}

		sim := 0.0
		if l.Category == target.Category {
			sim += 40
		}
		sim += 30 * tagOverlap(target.Tags, l.Tags)
		if l.Location == target.Location {
			sim += 20
		}
		sim += 10 * priceProximity(target.Price, l.Price)

		items = append(items, scored{listing: l, score: sim})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]models.Listing, 0, len(items))
	for _, it := range items {
		out = append(out, it.listing)
	}
	return out
}

// affinityScore is the share of the user's views that landed on this key,
// as a 0-100 value. An empty map scores 0.
func affinityScore(views map[string]int, key string) float64 {
	total := 0
	for _, n := range views {
		total += n
	}
	if total == 0 {
		total = 1
	}
	return float64(views[key]) / float64(total) * 100
}

// searchScore is the fraction of stored searches that appear in the
// listing's title, description or tags, case-insensitive, as 0-100.
func (e *Engine) searchScore(l *models.Listing, p *models.BehaviorProfile) float64 {
	if len(p.RecentSearches) == 0 {
		return 0
	}

	haystack := strings.ToLower(l.Title + " " + l.Description + " " + strings.Join(l.Tags, " "))
	matches := 0
	for _, term := range p.RecentSearches {
		if term == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(term)) {
			matches++
		}
	}
	return float64(matches) / float64(len(p.RecentSearches)) * 100
}

// priceScore is 100 inside the preferred range, with a linear falloff
// outside proportional to the distance from the nearest bound, never
// below 0. Profiles without a range yet score a neutral 50.
func (e *Engine) priceScore(l *models.Listing, p *models.BehaviorProfile) float64 {
	r := p.PriceRange
	if !r.IsSet() {
		return 50
	}
	if l.Price >= r.Min && l.Price <= r.Max {
		return 100
	}

	var distance, bound float64
	if l.Price < r.Min {
		distance = r.Min - l.Price
		bound = r.Min
	} else {
		distance = l.Price - r.Max
		bound = r.Max
	}
	if bound <= 0 {
		bound = 1
	}

	score := 100 - distance/bound*100
	if score < 0 {
		return 0
	}
	return score
}

// EngagementScore rates a listing's quality signals on a 0-100 scale:
// rating contributes up to 30, reviews and views up to 20 each, and the
// featured/promoted flags 15 apiece.
func EngagementScore(l *models.Listing) float64 {
	score := l.Rating / 5 * 30
	score += math.Min(float64(l.ReviewCount)/100*20, 20)
	score += math.Min(float64(l.Views)/1000*20, 20)
	if l.Featured {
		score += 15
	}
	if l.Promoted {
		score += 15
	}
	return score
}

// RecencyScore buckets a listing's age into 20-100
func RecencyScore(l *models.Listing, now time.Time) float64 {
	age := now.Sub(l.CreatedAt)
	switch {
	case age <= 24*time.Hour:
		return 100
	case age <= 7*24*time.Hour:
		return 80
	case age <= 30*24*time.Hour:
		return 60
	case age <= 90*24*time.Hour:
		return 40
	default:
		return 20
	}
}

// tagOverlap is the fraction of the target's tags present on the other
// listing, relative to the target's tag count.
func tagOverlap(target, other []string) float64 {
	if len(target) == 0 {
		return 0
	}

	set := make(map[string]bool, len(other))
	for _, t := range other {
		set[strings.ToLower(t)] = true
	}

	matched := 0
	for _, t := range target {
		if set[strings.ToLower(t)] {
			matched++
		}
	}
	return float64(matched) / float64(len(target))
}

// priceProximity is 1 for identical prices and falls linearly to 0 as the
// gap approaches the larger of the two prices.
func priceProximity(a, b float64) float64 {
	denom := math.Max(a, b)
	if denom <= 0 {
		return 1
	}
	gap := math.Abs(a-b) / denom
	prox := 1 - gap
	if prox < 0 {
		return 0
	}
	return prox
}
