package recommend

import (
	"math"
	"sort"
)

const maxSimilarUsers = 10

// pearson computes the Pearson correlation between two users' ratings over
// their commonly rated products. No overlap yields 0. When both sides have
// zero variance the ratings are either identical (1) or constantly offset (0);
// a single zero-variance side yields 0 since correlation is undefined there.
func pearson(a, b map[string]float64) float64 {
	var common []string
	for productID := range a {
		if _, ok := b[productID]; ok {
			common = append(common, productID)
		}
	}
	n := float64(len(common))
	if n == 0 {
		return 0
	}

	var sumA, sumB float64
	for _, id := range common {
		sumA += a[id]
		sumB += b[id]
	}
	meanA, meanB := sumA/n, sumB/n

	var cov, varA, varB float64
	for _, id := range common {
		da, db := a[id]-meanA, b[id]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 && varB == 0 {
		for _, id := range common {
			if a[id] != b[id] {
				return 0
			}
		}
		return 1
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / (math.Sqrt(varA) * math.Sqrt(varB))
}

type userSim struct {
	userID     string
	similarity float64
}

// similarUsers ranks every other user by Pearson correlation with the target,
// keeping the top positively correlated neighbors.
func similarUsers(ratings map[string]map[string]float64, userID string) []userSim {
	target, ok := ratings[userID]
	if !ok {
		return nil
	}
	var sims []userSim
	for other, otherRatings := range ratings {
		if other == userID {
			continue
		}
		if s := pearson(target, otherRatings); s > 0 {
			sims = append(sims, userSim{userID: other, similarity: s})
		}
	}
	sort.Slice(sims, func(i, j int) bool {
		if sims[i].similarity != sims[j].similarity {
			return sims[i].similarity > sims[j].similarity
		}
		return sims[i].userID < sims[j].userID
	})
	if len(sims) > maxSimilarUsers {
		sims = sims[:maxSimilarUsers]
	}
	return sims
}

// predictRatings estimates the target user's rating for every product their
// neighbors rated but they have not, as the similarity-weighted average of
// the neighbors' ratings.
func predictRatings(ratings map[string]map[string]float64, userID string, neighbors []userSim) map[string]float64 {
	rated := ratings[userID]
	weighted := make(map[string]float64)
	weights := make(map[string]float64)
	for _, n := range neighbors {
		for productID, rating := range ratings[n.userID] {
			if _, ok := rated[productID]; ok {
				continue
			}
			weighted[productID] += n.similarity * rating
			weights[productID] += n.similarity
		}
	}
	predictions := make(map[string]float64, len(weighted))
	for productID, sum := range weighted {
		predictions[productID] = sum / weights[productID]
	}
	return predictions
}
