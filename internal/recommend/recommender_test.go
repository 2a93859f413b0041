package recommend

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/motomercado/search-platform/pkg/config"
	pkgerrors "github.com/motomercado/search-platform/pkg/errors"
)

func newTestRecommender(t *testing.T, cfg config.RecommendConfig) *Recommender {
	t.Helper()
	return NewRecommender(cfg)
}

var testCatalog = []Product{
	{ID: "p1", Name: "Filtro de aceite Honda", Category: "motor", Brand: "honda", Price: 25_000, Rating: 4.5},
	{ID: "p2", Name: "Filtro de aire Honda", Category: "motor", Brand: "honda", Price: 18_000, Rating: 4.2},
	{ID: "p3", Name: "Pastillas de freno Brembo", Category: "frenos", Brand: "brembo", Price: 45_000, Rating: 4.8},
	{ID: "p4", Name: "Casco integral Shoei", Category: "cascos", Brand: "shoei", Price: 850_000, Discount: 10, Rating: 4.9},
}

// seedCatalog registers every test product through a throwaway user so each
// starts with exactly one view.
func seedCatalog(r *Recommender) {
	for _, p := range testCatalog {
		r.TrackProductView("catalog-seed", p.ID, p)
	}
}

func scoredIDs(ranked []Scored) []string {
	ids := make([]string, len(ranked))
	for i, s := range ranked {
		ids[i] = s.ProductID
	}
	return ids
}

func TestRecordRatingValidation(t *testing.T) {
	r := newTestRecommender(t, config.RecommendConfig{})
	for _, bad := range []float64{0, 0.5, 5.5, -1} {
		err := r.RecordRating("u1", "p1", bad)
		if err == nil {
			t.Errorf("rating %v accepted", bad)
			continue
		}
		if !errors.Is(err, pkgerrors.ErrInvalidRating) {
			t.Errorf("rating %v error is not ErrInvalidRating: %v", bad, err)
		}
	}
	if err := r.RecordRating("u1", "p1", 3); err != nil {
		t.Errorf("valid rating rejected: %v", err)
	}
}

func TestPurchaseSetsImplicitRating(t *testing.T) {
	r := newTestRecommender(t, config.RecommendConfig{})
	r.TrackPurchase("u1", "p1", testCatalog[0])

	snap := r.ExportModel()
	if got := snap.RatingsMatrix["u1"]["p1"]; got != implicitRating {
		t.Errorf("implicit rating = %v, want %v", got, implicitRating)
	}

	// An explicit rating must win over the implicit one.
	if err := r.RecordRating("u1", "p1", 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := r.ExportModel().RatingsMatrix["u1"]["p1"]; got != 2 {
		t.Errorf("explicit rating = %v, want 2", got)
	}
}

func TestViewHistoryIsBounded(t *testing.T) {
	r := newTestRecommender(t, config.RecommendConfig{HistoryLimit: 5})
	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("p-%d", i)
		r.TrackProductView("u1", id, Product{Name: id, Category: "motor", Price: 1000})
	}

	history := r.ExportModel().ViewHistory["u1"]
	if len(history) != 5 {
		t.Fatalf("history length = %d, want 5", len(history))
	}
	// Oldest entries are evicted first.
	if history[0].ProductID != "p-2" || history[4].ProductID != "p-6" {
		t.Errorf("unexpected history window: %v", history)
	}
}

func TestGetPopularProducts(t *testing.T) {
	r := newTestRecommender(t, config.RecommendConfig{})
	p1, p2 := testCatalog[0], testCatalog[1]
	r.TrackProductView("u1", "p1", p1)
	r.TrackProductView("u2", "p1", p1)
	r.TrackPurchase("u3", "p2", p2)

	popular := r.GetPopularProducts(10)
	want := []string{"p2", "p1"}
	if got := scoredIDs(popular); !reflect.DeepEqual(got, want) {
		t.Fatalf("popular order = %v, want %v", got, want)
	}
	// One purchase counts as five views.
	if popular[0].Score != 5 || popular[1].Score != 2 {
		t.Errorf("popular scores = %v", popular)
	}
}

func TestFindSimilarProducts(t *testing.T) {
	r := newTestRecommender(t, config.RecommendConfig{})
	seedCatalog(r)

	ranked := r.FindSimilarProducts("p1", 10)
	if len(ranked) != 3 {
		t.Fatalf("got %d similar products, want 3", len(ranked))
	}
	for _, s := range ranked {
		if s.ProductID == "p1" {
			t.Error("target product recommended as similar to itself")
		}
	}
	// The other Honda motor part shares both one-hot labels and must rank
	// first.
	if ranked[0].ProductID != "p2" {
		t.Errorf("top similar = %v, want p2", ranked[0])
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Errorf("scores not descending: %v", ranked)
	}
}

func TestFindSimilarProductsUnknownTarget(t *testing.T) {
	r := newTestRecommender(t, config.RecommendConfig{})
	seedCatalog(r)
	got := r.FindSimilarProducts("ghost", 10)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty list for unknown product, got %v", got)
	}
}

func TestCollaborativeRecommendations(t *testing.T) {
	r := newTestRecommender(t, config.RecommendConfig{})
	mustRate := func(userID, productID string, rating float64) {
		t.Helper()
		if err := r.RecordRating(userID, productID, rating); err != nil {
			t.Fatalf("rate %s/%s: %v", userID, productID, rating)
		}
	}
	mustRate("u1", "p1", 5)
	mustRate("u1", "p2", 3)
	mustRate("u2", "p1", 5)
	mustRate("u2", "p2", 3)
	mustRate("u2", "p3", 5)

	ranked := r.CollaborativeRecommendations("u1", 10)
	if len(ranked) != 1 {
		t.Fatalf("got %v, want a single prediction", ranked)
	}
	// u2 is a perfect neighbor, so its rating carries over verbatim.
	if ranked[0].ProductID != "p3" || ranked[0].Score != 5 {
		t.Errorf("prediction = %v, want p3 at 5", ranked[0])
	}

	if got := r.CollaborativeRecommendations("loner", 10); len(got) != 0 {
		t.Errorf("user with no neighbors got %v", got)
	}
}

func TestHybridRecommendations(t *testing.T) {
	r := newTestRecommender(t, config.RecommendConfig{})
	seedCatalog(r)
	r.TrackProductView("u1", "p1", testCatalog[0])

	ranked := r.HybridRecommendations("u1", "", 10)
	if got := scoredIDs(ranked); !reflect.DeepEqual(got, []string{"p2", "p3", "p4"}) {
		t.Fatalf("hybrid order = %v, want [p2 p3 p4]", got)
	}
	for _, s := range ranked {
		if s.Score <= 0 {
			t.Errorf("non-positive hybrid score: %v", s)
		}
	}
}

func TestHybridRecommendationsExplicitSeed(t *testing.T) {
	r := newTestRecommender(t, config.RecommendConfig{})
	seedCatalog(r)

	ranked := r.HybridRecommendations("u1", "p3", 10)
	if len(ranked) == 0 {
		t.Fatal("expected recommendations from explicit seed")
	}
	for _, s := range ranked {
		if s.ProductID == "p3" {
			t.Error("seed product recommended back")
		}
	}
}

func TestPersonalizedColdStartFallsBackToPopular(t *testing.T) {
	r := newTestRecommender(t, config.RecommendConfig{})
	seedCatalog(r)
	r.TrackPurchase("buyer", "p3", testCatalog[2])

	got := r.GetPersonalizedRecommendations("stranger", Context{}, 3)
	want := r.GetPopularProducts(3)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("cold start = %v, want popular list %v", got, want)
	}
}

func TestPersonalizedContextFilters(t *testing.T) {
	r := newTestRecommender(t, config.RecommendConfig{})
	seedCatalog(r)
	r.TrackProductView("u1", "p1", testCatalog[0])

	got := r.GetPersonalizedRecommendations("u1", Context{Category: "frenos"}, 10)
	if ids := scoredIDs(got); !reflect.DeepEqual(ids, []string{"p3"}) {
		t.Errorf("category filter = %v, want [p3]", ids)
	}

	got = r.GetPersonalizedRecommendations("u1", Context{MaxPrice: 50_000}, 10)
	for _, s := range got {
		if s.ProductID == "p4" {
			t.Error("850k product survived a 50k price cap")
		}
	}
	if len(got) == 0 {
		t.Error("price cap filtered everything")
	}
}

func TestDiversifyCapsCategories(t *testing.T) {
	r := newTestRecommender(t, config.RecommendConfig{CategoryCap: 2})
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("m-%d", i)
		r.TrackProductView("seed", id, Product{Name: id, Category: "motor", Price: 1000})
	}
	r.TrackProductView("seed", "c-1", Product{Name: "c-1", Category: "cascos", Price: 1000})

	ranked := []Scored{
		{ProductID: "m-0", Score: 0.9},
		{ProductID: "m-1", Score: 0.8},
		{ProductID: "m-2", Score: 0.7},
		{ProductID: "c-1", Score: 0.6},
		{ProductID: "m-3", Score: 0.5},
	}
	got := r.DiversifyRecommendations(ranked, 10)
	want := []string{"m-0", "m-1", "c-1"}
	if ids := scoredIDs(got); !reflect.DeepEqual(ids, want) {
		t.Errorf("diversified = %v, want %v", ids, want)
	}
}

func TestModelRoundTrip(t *testing.T) {
	a := newTestRecommender(t, config.RecommendConfig{})
	seedCatalog(a)
	a.TrackProductView("u1", "p1", testCatalog[0])
	a.TrackPurchase("u1", "p3", testCatalog[2])
	if err := a.RecordRating("u2", "p1", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := a.ExportModel()
	b := newTestRecommender(t, config.RecommendConfig{})
	b.ImportModel(snap)

	if !reflect.DeepEqual(a.ExportModel(), b.ExportModel()) {
		t.Error("imported model diverges from exported state")
	}
	if !reflect.DeepEqual(a.GetPopularProducts(10), b.GetPopularProducts(10)) {
		t.Error("popular ranking changed across round trip")
	}
	if !reflect.DeepEqual(
		a.GetPersonalizedRecommendations("u1", Context{}, 10),
		b.GetPersonalizedRecommendations("u1", Context{}, 10),
	) {
		t.Error("personalized ranking changed across round trip")
	}
}

// Mutating an exported snapshot must not reach back into the live model.
func TestExportModelIsDeepCopy(t *testing.T) {
	r := newTestRecommender(t, config.RecommendConfig{})
	seedCatalog(r)
	r.TrackProductView("u1", "p1", testCatalog[0])

	snap := r.ExportModel()
	delete(snap.Products, "p1")
	snap.ViewCounts["p2"] = 999
	snap.ViewHistory["u1"][0].ProductID = "tampered"

	after := r.ExportModel()
	if _, ok := after.Products["p1"]; !ok {
		t.Error("deleting from snapshot removed a live product")
	}
	if after.ViewCounts["p2"] == 999 {
		t.Error("snapshot counter write reached the live model")
	}
	if after.ViewHistory["u1"][0].ProductID == "tampered" {
		t.Error("snapshot history write reached the live model")
	}
}
