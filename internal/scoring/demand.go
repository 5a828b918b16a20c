package scoring

import (
	"math"

	"github.com/Elhashino/amazon-deals/internal/series"
)

// DemandWeights name the tunables of the demand formula. The component
// weights are renormalised over whichever components are present, so a
// signal missing individual fields still scores on the remaining ones.
type DemandWeights struct {
	RankWeight    float64
	QualityWeight float64
	DropsWeight   float64
	// ReviewPivot is the review count at which the rating carries half its
	// full weight; a few-review five-star listing is dampened below a
	// well-reviewed 4.5.
	ReviewPivot float64
}

// DemandScore derives a 0-100 demand signal, or nil when rank, rating, and
// review count are all absent. Lower sales rank means higher demand; ranks
// span orders of magnitude so the mapping is log-scaled.
func DemandScore(sig series.DemandSignal, w DemandWeights) *float64 {
	if sig.Empty() {
		return nil
	}

	var weighted, total float64

	if sig.SalesRank != nil {
		weighted += w.RankWeight * rankComponent(*sig.SalesRank)
		total += w.RankWeight
	}

	if quality, ok := qualityComponent(sig.Rating, sig.ReviewCount, w.ReviewPivot); ok {
		weighted += w.QualityWeight * quality
		total += w.QualityWeight
	}

	if sig.RankDrops7d != nil {
		weighted += w.DropsWeight * dropsComponent(*sig.RankDrops7d)
		total += w.DropsWeight
	}

	if total <= 0 {
		return nil
	}

	score := clamp100(weighted / total)
	return &score
}

// rankComponent maps sales rank to 0-100: rank 1 scores 100, each decade
// costs 20 points, anything past ~100k scores 0.
func rankComponent(rank int) float64 {
	if rank <= 0 {
		return 0
	}
	return clamp100(100 - 20*math.Log10(float64(rank)+1))
}

// qualityComponent blends rating and review count. The rating is mapped
// from the 3.5-5.0 band onto 0-100 and then dampened by a saturating
// function of the review count so thin evidence never dominates.
func qualityComponent(rating *float64, reviews *int, pivot float64) (float64, bool) {
	switch {
	case rating == nil && reviews == nil:
		return 0, false
	case rating == nil:
		// Review volume alone still signals demand, log-scaled.
		if *reviews <= 0 {
			return 0, true
		}
		return clamp100(20 * math.Log10(float64(*reviews)+1)), true
	}

	stars := clamp100((*rating - 3.5) / 1.5 * 100)

	support := 0.5
	if reviews != nil {
		r := float64(*reviews)
		if r < 0 {
			r = 0
		}
		support = r / (r + pivot)
	}

	return stars * support, true
}

// dropsComponent rewards recent rank improvements; ten or more meaningful
// drops in a week is treated as very strong movement.
func dropsComponent(drops int) float64 {
	if drops <= 0 {
		return 0
	}
	return clamp100(float64(drops) * 10)
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
