package recommend

// PreferenceProfile accumulates weighted affinity tallies per user. Views
// contribute weight 1, purchases weight 3, so repeat buyers pull their
// preferred categories and brands ahead quickly.
type PreferenceProfile struct {
	Categories map[string]float64 `json:"categories"`
	Brands     map[string]float64 `json:"brands"`
	AvgPrice   float64            `json:"avgPrice"`
	Weight     float64            `json:"weight"`
}

func newPreferenceProfile() *PreferenceProfile {
	return &PreferenceProfile{
		Categories: make(map[string]float64),
		Brands:     make(map[string]float64),
	}
}

// observe folds one product interaction into the profile. AvgPrice is a
// running weighted average over every observed interaction.
func (p *PreferenceProfile) observe(product Product, weight float64) {
	if product.Category != "" {
		p.Categories[product.Category] += weight
	}
	if product.Brand != "" {
		p.Brands[product.Brand] += weight
	}
	total := p.Weight + weight
	p.AvgPrice = (p.AvgPrice*p.Weight + product.Price*weight) / total
	p.Weight = total
}

// empty reports whether the profile has recorded no interactions yet.
func (p *PreferenceProfile) empty() bool {
	return p == nil || p.Weight == 0
}
