package scoring

import (
	"testing"
	"time"

	"github.com/Elhashino/amazon-deals/internal/series"
)

func testScoreWeights() ScoreWeights {
	return ScoreWeights{
		DiscountWeight:  0.70,
		StabilityWeight: 0.30,
		HotDealWeight:   0.60,
		HotDemandWeight: 0.40,
	}
}

func TestComposeHotEqualsScoreWithoutDemand(t *testing.T) {
	discount := 0.4
	stability := 0.8
	sum := Summary{DiscountPct: &discount, Stability: &stability}

	score, hot := Compose(sum, 80, nil, testScoreWeights())
	if hot != score {
		t.Fatalf("hot score must equal deal score when demand is nil: %v vs %v", hot, score)
	}
}

func TestComposeDefinedForEmptySummary(t *testing.T) {
	w := testScoreWeights()
	score, hot := Compose(Summary{}, 5, nil, w)

	if score != w.neutralBase() {
		t.Fatalf("a record with no price history should sit at the neutral base %v, got %v",
			w.neutralBase(), score)
	}
	if hot != score {
		t.Fatalf("hot score should follow the deal score, got %v vs %v", hot, score)
	}
}

func TestComposeConfidenceCompressesTowardNeutral(t *testing.T) {
	w := testScoreWeights()
	discount := 0.8
	stability := 0.9
	sum := Summary{DiscountPct: &discount, Stability: &stability}

	confident, _ := Compose(sum, 100, nil, w)
	shaky, _ := Compose(sum, 10, nil, w)

	neutral := w.neutralBase()
	if shaky >= confident {
		t.Fatalf("low confidence must compress a strong discount: %v vs %v", shaky, confident)
	}
	if shaky < neutral {
		t.Fatalf("compression pulls toward neutral %v, never below it for a positive discount, got %v",
			neutral, shaky)
	}
}

func TestComposeNegativeDiscountClampedNotAmplified(t *testing.T) {
	w := testScoreWeights()
	discount := -0.5
	stability := 0.5
	sum := Summary{DiscountPct: &discount, Stability: &stability}

	score, _ := Compose(sum, 90, nil, w)
	if score > w.neutralBase() {
		t.Fatalf("an above-typical price must not score past neutral, got %v", score)
	}
	if score < 0 {
		t.Fatalf("scores stay within 0-100, got %v", score)
	}
}

func TestComposeDemandLiftsHotScore(t *testing.T) {
	w := testScoreWeights()
	discount := 0.3
	stability := 0.7
	sum := Summary{DiscountPct: &discount, Stability: &stability}

	demandHigh := 90.0
	demandLow := 10.0

	_, hotHigh := Compose(sum, 80, &demandHigh, w)
	_, hotLow := Compose(sum, 80, &demandLow, w)

	if hotHigh <= hotLow {
		t.Fatalf("stronger demand should lift the hot score: %v vs %v", hotHigh, hotLow)
	}
}

func TestComposeDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ps := seriesOf(now, map[time.Duration]int64{
		80 * 24 * time.Hour: 9900,
		40 * 24 * time.Hour: 8900,
		24 * time.Hour:      6900,
	})
	sig := series.DemandSignal{SalesRank: intPtr(1200), Rating: floatPtr(4.4), ReviewCount: intPtr(310)}

	compute := func() (float64, float64) {
		sum := Summarize(ps, testOpts(now))
		conf := ConfidenceFromSummary(sum, testConfidenceWeights())
		demand := DemandScore(sig, testDemandWeights())
		return Compose(sum, conf, demand, testScoreWeights())
	}

	s1, h1 := compute()
	s2, h2 := compute()
	if s1 != s2 || h1 != h2 {
		t.Fatalf("scoring must be deterministic: (%v,%v) vs (%v,%v)", s1, h1, s2, h2)
	}
}
