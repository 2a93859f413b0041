package recommend

// ModelSnapshot is the serializable state of the recommender: everything
// needed to restore personalized output after a restart. ExportModel and
// ImportModel form a round-trip pair.
type ModelSnapshot struct {
	Products        map[string]Product            `json:"products"`
	ProductVectors  map[string]ProductVector      `json:"productVectors"`
	ViewCounts      map[string]int                `json:"viewCounts"`
	PurchaseCounts  map[string]int                `json:"purchaseCounts"`
	UserPreferences map[string]*PreferenceProfile `json:"userPreferences"`
	RatingsMatrix   map[string]map[string]float64 `json:"ratingsMatrix"`
	ViewHistory     map[string][]Interaction      `json:"viewHistory"`
	PurchaseHistory map[string][]Interaction      `json:"purchaseHistory"`
}

// ExportModel deep-copies the current model state.
func (r *Recommender) ExportModel() *ModelSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := &ModelSnapshot{
		Products:        make(map[string]Product, len(r.products)),
		ProductVectors:  make(map[string]ProductVector, len(r.products)),
		ViewCounts:      make(map[string]int, len(r.views)),
		PurchaseCounts:  make(map[string]int, len(r.purchases)),
		UserPreferences: make(map[string]*PreferenceProfile, len(r.profiles)),
		RatingsMatrix:   make(map[string]map[string]float64, len(r.ratings)),
		ViewHistory:     make(map[string][]Interaction, len(r.viewHistory)),
		PurchaseHistory: make(map[string][]Interaction, len(r.purchaseHistory)),
	}
	for id, p := range r.products {
		snap.Products[id] = p
		if vec, ok := r.vectorFor(id); ok {
			snap.ProductVectors[id] = cloneVector(vec)
		}
	}
	for id, n := range r.views {
		snap.ViewCounts[id] = n
	}
	for id, n := range r.purchases {
		snap.PurchaseCounts[id] = n
	}
	for userID, profile := range r.profiles {
		snap.UserPreferences[userID] = cloneProfile(profile)
	}
	for userID, userRatings := range r.ratings {
		cp := make(map[string]float64, len(userRatings))
		for productID, rating := range userRatings {
			cp[productID] = rating
		}
		snap.RatingsMatrix[userID] = cp
	}
	for userID, history := range r.viewHistory {
		snap.ViewHistory[userID] = append([]Interaction(nil), history...)
	}
	for userID, history := range r.purchaseHistory {
		snap.PurchaseHistory[userID] = append([]Interaction(nil), history...)
	}
	return snap
}

// ImportModel replaces the model state with a snapshot. Vectors are marked
// stale so the first access after import recomputes them from the restored
// counters.
func (r *Recommender) ImportModel(snap *ModelSnapshot) {
	if snap == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.products = make(map[string]Product, len(snap.Products))
	r.vectors = make(map[string]ProductVector, len(snap.ProductVectors))
	r.dirty = make(map[string]struct{}, len(snap.Products))
	for id, p := range snap.Products {
		r.products[id] = p
		r.dirty[id] = struct{}{}
	}
	r.views = make(map[string]int, len(snap.ViewCounts))
	for id, n := range snap.ViewCounts {
		r.views[id] = n
	}
	r.purchases = make(map[string]int, len(snap.PurchaseCounts))
	for id, n := range snap.PurchaseCounts {
		r.purchases[id] = n
	}
	r.profiles = make(map[string]*PreferenceProfile, len(snap.UserPreferences))
	for userID, profile := range snap.UserPreferences {
		r.profiles[userID] = cloneProfile(profile)
	}
	r.ratings = make(map[string]map[string]float64, len(snap.RatingsMatrix))
	for userID, userRatings := range snap.RatingsMatrix {
		cp := make(map[string]float64, len(userRatings))
		for productID, rating := range userRatings {
			cp[productID] = rating
		}
		r.ratings[userID] = cp
	}
	r.viewHistory = make(map[string][]Interaction, len(snap.ViewHistory))
	for userID, history := range snap.ViewHistory {
		r.viewHistory[userID] = append([]Interaction(nil), history...)
	}
	r.purchaseHistory = make(map[string][]Interaction, len(snap.PurchaseHistory))
	for userID, history := range snap.PurchaseHistory {
		r.purchaseHistory[userID] = append([]Interaction(nil), history...)
	}
	r.logger.Info("model imported",
		"products", len(r.products),
		"users", len(r.profiles),
		"raters", len(r.ratings),
	)
}

func cloneVector(v ProductVector) ProductVector {
	cp := v
	cp.Category = make(map[string]float64, len(v.Category))
	for k, val := range v.Category {
		cp.Category[k] = val
	}
	cp.Brand = make(map[string]float64, len(v.Brand))
	for k, val := range v.Brand {
		cp.Brand[k] = val
	}
	return cp
}

func cloneProfile(p *PreferenceProfile) *PreferenceProfile {
	if p == nil {
		return nil
	}
	cp := &PreferenceProfile{
		Categories: make(map[string]float64, len(p.Categories)),
		Brands:     make(map[string]float64, len(p.Brands)),
		AvgPrice:   p.AvgPrice,
		Weight:     p.Weight,
	}
	for k, v := range p.Categories {
		cp.Categories[k] = v
	}
	for k, v := range p.Brands {
		cp.Brands[k] = v
	}
	return cp
}
