package rank

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Weights control how much each factor contributes to a listing's score.
// Category, location, search and price multiply normalized 0-100 sub-scores.
// Engagement and recency multiply raw 0-100 sub-scores directly, so the
// theoretical maximum sits slightly above 100; only relative order matters.
type Weights struct {
	Category   float64 `yaml:"category"`
	Location   float64 `yaml:"location"`
	Search     float64 `yaml:"search"`
	Price      float64 `yaml:"price"`
	Engagement float64 `yaml:"engagement"`
	Recency    float64 `yaml:"recency"`
}

// DefaultWeights returns the production weighting
func DefaultWeights() Weights {
	return Weights{
		Category:   0.25,
		Location:   0.15,
		Search:     0.20,
		Price:      0.10,
		Engagement: 0.20,
		Recency:    0.10,
	}
}

// LoadWeights reads weights from a yaml file, falling back to defaults
// when the file does not exist or a weight is left at zero.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return w, nil
		}
		return w, err
	}

	var loaded Weights
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return w, err
	}

	defaults := DefaultWeights()
	if loaded.Category == 0 {
		loaded.Category = defaults.Category
	}
	if loaded.Location == 0 {
		loaded.Location = defaults.Location
	}
	if loaded.Search == 0 {
		loaded.Search = defaults.Search
	}
	if loaded.Price == 0 {
		loaded.Price = defaults.Price
	}
	if loaded.Engagement == 0 {
		loaded.Engagement = defaults.Engagement
	}
	if loaded.Recency == 0 {
		loaded.Recency = defaults.Recency
	}

	return loaded, nil
}
