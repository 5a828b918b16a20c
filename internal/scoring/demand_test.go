package scoring

import (
	"testing"

	"github.com/Elhashino/amazon-deals/internal/series"
)

func testDemandWeights() DemandWeights {
	return DemandWeights{
		RankWeight:    0.5,
		QualityWeight: 0.3,
		DropsWeight:   0.2,
		ReviewPivot:   50,
	}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestDemandScoreNilWhenAllAbsent(t *testing.T) {
	if got := DemandScore(series.DemandSignal{}, testDemandWeights()); got != nil {
		t.Fatalf("empty signal must yield nil, got %v", *got)
	}

	// Rank drops alone are derived from rank history and do not count as a
	// demand field on their own.
	sig := series.DemandSignal{RankDrops7d: intPtr(4)}
	if got := DemandScore(sig, testDemandWeights()); got != nil {
		t.Fatalf("drops-only signal must yield nil, got %v", *got)
	}
}

func TestDemandScoreIncreasesAsRankImproves(t *testing.T) {
	w := testDemandWeights()
	prev := -1.0
	for _, rank := range []int{100000, 10000, 1000, 100, 1} {
		got := DemandScore(series.DemandSignal{SalesRank: intPtr(rank)}, w)
		if got == nil {
			t.Fatalf("rank-only signal must score, rank=%d", rank)
		}
		if *got < prev {
			t.Fatalf("demand fell from %v to %v as rank improved to %d", prev, *got, rank)
		}
		prev = *got
	}
}

func TestDemandScoreReviewCountDampensRating(t *testing.T) {
	w := testDemandWeights()

	thin := DemandScore(series.DemandSignal{
		Rating:      floatPtr(5.0),
		ReviewCount: intPtr(2),
	}, w)
	solid := DemandScore(series.DemandSignal{
		Rating:      floatPtr(4.5),
		ReviewCount: intPtr(2000),
	}, w)

	if thin == nil || solid == nil {
		t.Fatal("both signals should score")
	}
	if *thin >= *solid {
		t.Fatalf("a 5.0 with 2 reviews (%v) must not outrank a 4.5 with 2000 reviews (%v)", *thin, *solid)
	}
}

func TestDemandScoreMissingFieldsDegradeGracefully(t *testing.T) {
	w := testDemandWeights()

	rankOnly := DemandScore(series.DemandSignal{SalesRank: intPtr(50)}, w)
	ratingOnly := DemandScore(series.DemandSignal{Rating: floatPtr(4.8)}, w)
	reviewsOnly := DemandScore(series.DemandSignal{ReviewCount: intPtr(5000)}, w)

	for name, got := range map[string]*float64{
		"rank only":    rankOnly,
		"rating only":  ratingOnly,
		"reviews only": reviewsOnly,
	} {
		if got == nil {
			t.Fatalf("%s should still produce a score", name)
		}
		if *got < 0 || *got > 100 {
			t.Fatalf("%s out of range: %v", name, *got)
		}
	}
}

func TestDemandScoreRankDropsContribute(t *testing.T) {
	w := testDemandWeights()

	still := DemandScore(series.DemandSignal{SalesRank: intPtr(500), RankDrops7d: intPtr(0)}, w)
	moving := DemandScore(series.DemandSignal{SalesRank: intPtr(500), RankDrops7d: intPtr(8)}, w)

	if still == nil || moving == nil {
		t.Fatal("both signals should score")
	}
	if *moving <= *still {
		t.Fatalf("recent rank drops should raise demand: %v vs %v", *moving, *still)
	}
}

func TestRankComponentBounds(t *testing.T) {
	if got := rankComponent(1); got < 90 {
		t.Fatalf("rank 1 should score near 100, got %v", got)
	}
	if got := rankComponent(1000000); got != 0 {
		t.Fatalf("very deep ranks should bottom out at 0, got %v", got)
	}
	if got := rankComponent(0); got != 0 {
		t.Fatalf("non-positive rank is invalid, got %v", got)
	}
}
