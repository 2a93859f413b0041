package recommend

import "math"

// Product is the catalog record the recommender vectorizes. Prices are in
// Colombian pesos.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Brand    string  `json:"brand"`
	Price    float64 `json:"price"`
	Discount float64 `json:"discount"`
	Rating   float64 `json:"rating"`
}

// ProductVector is the fixed-schema feature representation of a product.
// Category and Brand are one-hot maps so products with different labels stay
// comparable under a flattened feature space.
type ProductVector struct {
	Category    map[string]float64 `json:"category"`
	Brand       map[string]float64 `json:"brand"`
	PriceRange  float64            `json:"priceRange"`
	Discount    float64            `json:"discount"`
	Rating      float64            `json:"rating"`
	Popularity  float64            `json:"popularity"`
	IsPremium   bool               `json:"isPremium"`
	HasDiscount bool               `json:"hasDiscount"`
	IsHighRated bool               `json:"isHighRated"`
}

const (
	priceScale       = 1_000_000
	popularityScale  = 100
	premiumThreshold = 500_000
	highRatedFloor   = 4.0
)

// vectorize builds the feature vector for a product given its accumulated
// view and purchase counts. Popularity weighs a purchase five times a view.
func vectorize(p Product, views, purchases int) ProductVector {
	return ProductVector{
		Category:    oneHot(p.Category),
		Brand:       oneHot(p.Brand),
		PriceRange:  clamp01(p.Price / priceScale),
		Discount:    clamp01(p.Discount / 100),
		Rating:      clamp01(p.Rating / 5),
		Popularity:  clamp01(float64(views+5*purchases) / popularityScale),
		IsPremium:   p.Price > premiumThreshold,
		HasDiscount: p.Discount > 0,
		IsHighRated: p.Rating >= highRatedFloor,
	}
}

func oneHot(label string) map[string]float64 {
	if label == "" {
		return map[string]float64{}
	}
	return map[string]float64{label: 1}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// flatten collapses the vector into a single feature map. One-hot groups get
// group_subkey keys so distinct categories and brands occupy distinct axes.
func flatten(v ProductVector) map[string]float64 {
	features := make(map[string]float64, len(v.Category)+len(v.Brand)+7)
	for k, val := range v.Category {
		features["category_"+k] = val
	}
	for k, val := range v.Brand {
		features["brand_"+k] = val
	}
	features["priceRange"] = v.PriceRange
	features["discount"] = v.Discount
	features["rating"] = v.Rating
	features["popularity"] = v.Popularity
	features["isPremium"] = boolFeature(v.IsPremium)
	features["hasDiscount"] = boolFeature(v.HasDiscount)
	features["isHighRated"] = boolFeature(v.IsHighRated)
	return features
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Cosine computes cosine similarity between two product vectors over their
// flattened feature space. Either vector having zero norm yields 0.
func Cosine(a, b ProductVector) float64 {
	fa, fb := flatten(a), flatten(b)

	var dot, normA, normB float64
	for key, va := range fa {
		dot += va * fb[key]
		normA += va * va
	}
	for _, vb := range fb {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
