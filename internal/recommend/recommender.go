package recommend

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/motomercado/search-platform/pkg/config"
	pkgerrors "github.com/motomercado/search-platform/pkg/errors"
)

const (
	viewWeight     = 1.0
	purchaseWeight = 3.0
	implicitRating = 4.5
	recentSeeds    = 3
)

// Scored is one entry of a ranked recommendation list.
type Scored struct {
	ProductID string  `json:"productId"`
	Score     float64 `json:"score"`
}

// Interaction is one view or purchase event in a user's bounded history.
type Interaction struct {
	ProductID string    `json:"productId"`
	At        time.Time `json:"at"`
}

// Context narrows personalized recommendations to a browsing situation.
type Context struct {
	ProductID string
	Category  string
	MaxPrice  float64
}

// Recommender holds the full recommendation model: the product catalog with
// cached feature vectors, per-user preference profiles and bounded
// interaction histories, and the sparse user by product ratings matrix.
// All state lives behind one mutex; operations never block on I/O.
type Recommender struct {
	mu sync.Mutex

	products  map[string]Product
	vectors   map[string]ProductVector
	dirty     map[string]struct{}
	views     map[string]int
	purchases map[string]int

	profiles        map[string]*PreferenceProfile
	viewHistory     map[string][]Interaction
	purchaseHistory map[string][]Interaction
	ratings         map[string]map[string]float64

	cfg    config.RecommendConfig
	logger *slog.Logger
}

// NewRecommender creates an empty model using the configured blend weights
// and tracking bounds.
func NewRecommender(cfg config.RecommendConfig) *Recommender {
	if cfg.ContentWeight <= 0 {
		cfg.ContentWeight = 0.6
	}
	if cfg.CollabWeight <= 0 {
		cfg.CollabWeight = 0.4
	}
	if cfg.PopularityBoost <= 0 {
		cfg.PopularityBoost = 0.2
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.CategoryCap <= 0 {
		cfg.CategoryCap = 4
	}
	return &Recommender{
		products:        make(map[string]Product),
		vectors:         make(map[string]ProductVector),
		dirty:           make(map[string]struct{}),
		views:           make(map[string]int),
		purchases:       make(map[string]int),
		profiles:        make(map[string]*PreferenceProfile),
		viewHistory:     make(map[string][]Interaction),
		purchaseHistory: make(map[string][]Interaction),
		ratings:         make(map[string]map[string]float64),
		cfg:             cfg,
		logger:          slog.Default().With("component", "recommender"),
	}
}

// TrackProductView records a view event: bounded history append, popularity
// counter bump, vector invalidation, and a weight-1 preference update.
func (r *Recommender) TrackProductView(userID, productID string, product Product) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product.ID = productID
	r.products[productID] = product
	r.views[productID]++
	r.dirty[productID] = struct{}{}

	r.viewHistory[userID] = appendBounded(r.viewHistory[userID], Interaction{
		ProductID: productID,
		At:        time.Now(),
	}, r.cfg.HistoryLimit)
	r.profileFor(userID).observe(product, viewWeight)
}

// TrackPurchase records a purchase event: weight-3 preference update plus an
// implicit 4.5 rating, since buying is the strongest approval signal we get
// without an explicit review.
func (r *Recommender) TrackPurchase(userID, productID string, product Product) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product.ID = productID
	r.products[productID] = product
	r.purchases[productID]++
	r.dirty[productID] = struct{}{}

	r.purchaseHistory[userID] = appendBounded(r.purchaseHistory[userID], Interaction{
		ProductID: productID,
		At:        time.Now(),
	}, r.cfg.HistoryLimit)
	r.profileFor(userID).observe(product, purchaseWeight)
	r.setRating(userID, productID, implicitRating)
}

// RecordRating stores an explicit 1-5 rating, overwriting any implicit one.
func (r *Recommender) RecordRating(userID, productID string, rating float64) error {
	if rating < 1 || rating > 5 {
		return pkgerrors.Newf(pkgerrors.ErrInvalidRating, 400, "rating %.1f outside [1,5]", rating)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setRating(userID, productID, rating)
	return nil
}

// FindSimilarProducts ranks every other known product by cosine similarity
// to the target. An unknown target yields an empty list with a warning.
func (r *Recommender) FindSimilarProducts(productID string, topN int) []Scored {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.vectorFor(productID)
	if !ok {
		r.logger.Warn("similarity requested for unknown product", "product_id", productID)
		return []Scored{}
	}
	var ranked []Scored
	for id := range r.products {
		if id == productID {
			continue
		}
		vec, _ := r.vectorFor(id)
		ranked = append(ranked, Scored{ProductID: id, Score: Cosine(target, vec)})
	}
	sortScored(ranked)
	return topSlice(ranked, topN)
}

// CollaborativeRecommendations predicts ratings for products the user has
// not rated, from the top positively correlated neighbors.
func (r *Recommender) CollaborativeRecommendations(userID string, topN int) []Scored {
	r.mu.Lock()
	defer r.mu.Unlock()
	return topSlice(r.collaborative(userID), topN)
}

// HybridRecommendations blends content similarity with collaborative
// predictions and a popularity boost. seedID may be empty, in which case the
// user's most recent views seed the content side.
func (r *Recommender) HybridRecommendations(userID, seedID string, topN int) []Scored {
	r.mu.Lock()
	defer r.mu.Unlock()
	return topSlice(r.hybrid(userID, seedID), topN)
}

// GetPersonalizedRecommendations produces the user-facing ranked list. Users
// with no history fall back to popular products; everyone else gets the
// hybrid blend filtered by context and diversified across categories.
func (r *Recommender) GetPersonalizedRecommendations(userID string, ctx Context, topN int) []Scored {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.profiles[userID].empty() && len(r.ratings[userID]) == 0 {
		return topSlice(r.popular(), topN)
	}

	ranked := r.hybrid(userID, ctx.ProductID)
	filtered := ranked[:0]
	for _, s := range ranked {
		p := r.products[s.ProductID]
		if ctx.ProductID != "" && s.ProductID == ctx.ProductID {
			continue
		}
		if ctx.Category != "" && p.Category != ctx.Category {
			continue
		}
		if ctx.MaxPrice > 0 && p.Price > ctx.MaxPrice {
			continue
		}
		filtered = append(filtered, s)
	}
	return r.diversify(filtered, topN)
}

// DiversifyRecommendations re-ranks an already scored list so no single
// category exceeds the configured cap, preserving relative order.
func (r *Recommender) DiversifyRecommendations(ranked []Scored, topN int) []Scored {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.diversify(ranked, topN)
}

// GetPopularProducts ranks the catalog by raw engagement, a purchase counting
// five views.
func (r *Recommender) GetPopularProducts(topN int) []Scored {
	r.mu.Lock()
	defer r.mu.Unlock()
	return topSlice(r.popular(), topN)
}

func (r *Recommender) profileFor(userID string) *PreferenceProfile {
	p, ok := r.profiles[userID]
	if !ok {
		p = newPreferenceProfile()
		r.profiles[userID] = p
	}
	return p
}

func (r *Recommender) setRating(userID, productID string, rating float64) {
	userRatings, ok := r.ratings[userID]
	if !ok {
		userRatings = make(map[string]float64)
		r.ratings[userID] = userRatings
	}
	userRatings[productID] = rating
}

// vectorFor returns the cached feature vector, recomputing it first when a
// tracking event has invalidated it.
func (r *Recommender) vectorFor(productID string) (ProductVector, bool) {
	p, ok := r.products[productID]
	if !ok {
		return ProductVector{}, false
	}
	if _, stale := r.dirty[productID]; stale {
		r.vectors[productID] = vectorize(p, r.views[productID], r.purchases[productID])
		delete(r.dirty, productID)
	} else if _, cached := r.vectors[productID]; !cached {
		r.vectors[productID] = vectorize(p, r.views[productID], r.purchases[productID])
	}
	return r.vectors[productID], true
}

func (r *Recommender) collaborative(userID string) []Scored {
	neighbors := similarUsers(r.ratings, userID)
	if len(neighbors) == 0 {
		return []Scored{}
	}
	predictions := predictRatings(r.ratings, userID, neighbors)
	ranked := make([]Scored, 0, len(predictions))
	for productID, predicted := range predictions {
		ranked = append(ranked, Scored{ProductID: productID, Score: predicted})
	}
	sortScored(ranked)
	return ranked
}

// hybrid sums contentWeight*similarity, collabWeight*predicted/5, and
// popularityBoost*popularity per candidate product.
func (r *Recommender) hybrid(userID, seedID string) []Scored {
	seeds := r.seedProducts(userID, seedID)
	seedSet := make(map[string]struct{}, len(seeds))
	for _, id := range seeds {
		seedSet[id] = struct{}{}
	}

	scores := make(map[string]float64)
	if len(seeds) > 0 {
		for id := range r.products {
			if _, isSeed := seedSet[id]; isSeed {
				continue
			}
			vec, _ := r.vectorFor(id)
			var best float64
			for _, seed := range seeds {
				seedVec, ok := r.vectorFor(seed)
				if !ok {
					continue
				}
				if s := Cosine(seedVec, vec); s > best {
					best = s
				}
			}
			if best > 0 {
				scores[id] = r.cfg.ContentWeight * best
			}
		}
	}

	neighbors := similarUsers(r.ratings, userID)
	if len(neighbors) > 0 {
		for productID, predicted := range predictRatings(r.ratings, userID, neighbors) {
			if _, isSeed := seedSet[productID]; isSeed {
				continue
			}
			scores[productID] += r.cfg.CollabWeight * (predicted / 5)
		}
	}

	ranked := make([]Scored, 0, len(scores))
	for productID, score := range scores {
		if vec, ok := r.vectorFor(productID); ok {
			score += r.cfg.PopularityBoost * vec.Popularity
		}
		ranked = append(ranked, Scored{ProductID: productID, Score: score})
	}
	sortScored(ranked)
	return ranked
}

// seedProducts picks the explicit seed when given, otherwise the user's most
// recent distinct views.
func (r *Recommender) seedProducts(userID, seedID string) []string {
	if seedID != "" {
		return []string{seedID}
	}
	history := r.viewHistory[userID]
	seen := make(map[string]struct{}, recentSeeds)
	var seeds []string
	for i := len(history) - 1; i >= 0 && len(seeds) < recentSeeds; i-- {
		id := history[i].ProductID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		seeds = append(seeds, id)
	}
	return seeds
}

func (r *Recommender) diversify(ranked []Scored, topN int) []Scored {
	if topN <= 0 {
		topN = len(ranked)
	}
	perCategory := make(map[string]int)
	out := make([]Scored, 0, topN)
	for _, s := range ranked {
		if len(out) >= topN {
			break
		}
		category := r.products[s.ProductID].Category
		if perCategory[category] >= r.cfg.CategoryCap {
			continue
		}
		perCategory[category]++
		out = append(out, s)
	}
	return out
}

func (r *Recommender) popular() []Scored {
	ranked := make([]Scored, 0, len(r.products))
	for id := range r.products {
		ranked = append(ranked, Scored{
			ProductID: id,
			Score:     float64(r.views[id] + 5*r.purchases[id]),
		})
	}
	sortScored(ranked)
	return ranked
}

func appendBounded(history []Interaction, entry Interaction, limit int) []Interaction {
	history = append(history, entry)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

// sortScored orders by score descending, product id ascending on ties so
// output is deterministic.
func sortScored(ranked []Scored) {
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ProductID < ranked[j].ProductID
	})
}

func topSlice(ranked []Scored, topN int) []Scored {
	if ranked == nil {
		return []Scored{}
	}
	if topN > 0 && len(ranked) > topN {
		return ranked[:topN]
	}
	return ranked
}
