package benchmark

import (
	"fmt"
	"testing"

	"github.com/motomercado/search-platform/internal/recommend"
	"github.com/motomercado/search-platform/pkg/config"
)

func seededRecommender(products, users int) *recommend.Recommender {
	rec := recommend.NewRecommender(config.RecommendConfig{})
	for i := 0; i < products; i++ {
		product := recommend.Product{
			Name:     fmt.Sprintf("producto %d", i),
			Category: categories[i%len(categories)],
			Brand:    brands[i%len(brands)],
			Price:    float64(10_000 + i*137%900_000),
			Rating:   3.5 + float64(i%3)*0.5,
		}
		rec.TrackProductView("catalog-seed", fmt.Sprintf("p%d", i), product)
	}
	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("u%d", u)
		for k := 0; k < 5; k++ {
			productID := fmt.Sprintf("p%d", (u*7+k*13)%products)
			rec.TrackProductView(userID, productID, recommend.Product{
				Category: categories[k%len(categories)],
				Brand:    brands[k%len(brands)],
				Price:    50_000,
				Rating:   4,
			})
			if k%2 == 0 {
				rec.RecordRating(userID, productID, float64(1+(u+k)%5))
			}
		}
	}
	return rec
}

func BenchmarkFindSimilarProducts(b *testing.B) {
	for _, products := range []int{100, 1000} {
		rec := seededRecommender(products, 0)
		b.Run(fmt.Sprintf("products_%d", products), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				results := rec.FindSimilarProducts("p0", 10)
				_ = results
			}
		})
	}
}

func BenchmarkCollaborativeRecommendations(b *testing.B) {
	for _, users := range []int{50, 500} {
		rec := seededRecommender(200, users)
		b.Run(fmt.Sprintf("users_%d", users), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				results := rec.CollaborativeRecommendations("u0", 10)
				_ = results
			}
		})
	}
}

func BenchmarkHybridRecommendations(b *testing.B) {
	rec := seededRecommender(500, 100)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		results := rec.HybridRecommendations("u0", "", 10)
		_ = results
	}
}

func BenchmarkPersonalizedRecommendations(b *testing.B) {
	rec := seededRecommender(500, 100)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		results := rec.GetPersonalizedRecommendations("u0", recommend.Context{}, 10)
		_ = results
	}
}
