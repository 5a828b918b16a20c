package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Elhashino/amazon-deals/internal/series"
)

func testOpts(now time.Time) StatsOptions {
	return StatsOptions{
		Now:               now,
		Window:            90 * 24 * time.Hour,
		Freshness:         48 * time.Hour,
		MinSamples:        3,
		VolatilityCeiling: 0.30,
	}
}

func seriesOf(now time.Time, points map[time.Duration]int64) series.PriceSeries {
	samples := make([]series.Sample, 0, len(points))
	for age, pence := range points {
		samples = append(samples, series.Sample{
			At:    now.Add(-age),
			Price: decimal.New(pence, -2),
		})
	}
	return series.Normalize(samples)
}

func approx(t *testing.T, got, want float64, what string) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s: got %v, want %v", what, got, want)
	}
}

func TestSummarizeThreeSampleScenario(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ps := seriesOf(now, map[time.Duration]int64{
		90 * 24 * time.Hour: 10000,
		45 * 24 * time.Hour: 8000,
		24 * time.Hour:      6000,
	})

	sum := Summarize(ps, testOpts(now))

	if sum.PriceCurrent == nil || !sum.PriceCurrent.Equal(decimal.New(6000, -2)) {
		t.Fatalf("price current should be 60.00, got %v", sum.PriceCurrent)
	}
	if sum.PriceMedian == nil || !sum.PriceMedian.Equal(decimal.New(8000, -2)) {
		t.Fatalf("median should be 80.00, got %v", sum.PriceMedian)
	}
	if sum.DiscountPct == nil {
		t.Fatal("discount should be defined")
	}
	approx(t, *sum.DiscountPct, 0.25, "discount")
	if sum.Stale {
		t.Fatal("a one-day-old sample is not stale")
	}
	if sum.SampleCount != 3 {
		t.Fatalf("expected 3 in-window samples, got %d", sum.SampleCount)
	}
}

func TestSummarizeMedianOrderIndependent(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	forward := seriesOf(now, map[time.Duration]int64{
		80 * 24 * time.Hour: 1000,
		40 * 24 * time.Hour: 3000,
		10 * 24 * time.Hour: 2000,
		5 * 24 * time.Hour:  5000,
		24 * time.Hour:      4000,
	})

	sum := Summarize(forward, testOpts(now))
	if sum.PriceMedian == nil || !sum.PriceMedian.Equal(decimal.New(3000, -2)) {
		t.Fatalf("median should be 30.00 regardless of sample order, got %v", sum.PriceMedian)
	}
}

func TestSummarizeEvenSampleCountMedian(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ps := seriesOf(now, map[time.Duration]int64{
		60 * 24 * time.Hour: 1000,
		30 * 24 * time.Hour: 2000,
		10 * 24 * time.Hour: 3000,
		24 * time.Hour:      4000,
	})

	sum := Summarize(ps, testOpts(now))
	if sum.PriceMedian == nil || !sum.PriceMedian.Equal(decimal.New(2500, -2)) {
		t.Fatalf("even-count median should average the middle pair, got %v", sum.PriceMedian)
	}
}

func TestSummarizeSingleSample(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ps := seriesOf(now, map[time.Duration]int64{24 * time.Hour: 5000})

	sum := Summarize(ps, testOpts(now))

	if sum.PriceMedian == nil || !sum.PriceMedian.Equal(decimal.New(5000, -2)) {
		t.Fatalf("single-sample median should be the sample, got %v", sum.PriceMedian)
	}
	if sum.DiscountPct == nil {
		t.Fatal("single-sample discount should be defined")
	}
	approx(t, *sum.DiscountPct, 0, "single-sample discount")
	if sum.Stability != nil {
		t.Fatal("single-sample stability is undefined")
	}
	approx(t, sum.StabilityOrNeutral(), NeutralStability, "neutral stability")
}

func TestSummarizeEmptySeries(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	sum := Summarize(series.PriceSeries{}, testOpts(now))

	if sum.PriceCurrent != nil || sum.PriceMedian != nil || sum.DiscountPct != nil {
		t.Fatalf("empty series should leave all price stats nil: %+v", sum)
	}
	approx(t, sum.GapRatio, 1, "empty-series gap ratio")
}

func TestSummarizeBelowMinSamples(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ps := seriesOf(now, map[time.Duration]int64{
		10 * 24 * time.Hour: 3000,
		24 * time.Hour:      2000,
	})

	sum := Summarize(ps, testOpts(now))

	if sum.PriceMedian != nil {
		t.Fatalf("two samples are below the minimum, median must be nil, got %v", sum.PriceMedian)
	}
	if sum.DiscountPct != nil {
		t.Fatal("discount must be nil when the median is undefined")
	}
	if sum.PriceCurrent == nil || !sum.PriceCurrent.Equal(decimal.New(2000, -2)) {
		t.Fatalf("current price should still be reported, got %v", sum.PriceCurrent)
	}
}

func TestSummarizeNegativeDiscount(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ps := seriesOf(now, map[time.Duration]int64{
		80 * 24 * time.Hour: 4000,
		40 * 24 * time.Hour: 4000,
		24 * time.Hour:      5000,
	})

	sum := Summarize(ps, testOpts(now))

	if sum.DiscountPct == nil {
		t.Fatal("discount should be defined")
	}
	approx(t, *sum.DiscountPct, (40.0-50.0)/40.0, "negative discount")
}

func TestSummarizeStaleFlag(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ps := seriesOf(now, map[time.Duration]int64{
		80 * 24 * time.Hour: 4000,
		40 * 24 * time.Hour: 4200,
		5 * 24 * time.Hour:  3000,
	})

	sum := Summarize(ps, testOpts(now))
	if !sum.Stale {
		t.Fatal("latest sample five days old should be flagged stale")
	}
}

func TestSummarizeStabilityRange(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	steady := seriesOf(now, map[time.Duration]int64{
		80 * 24 * time.Hour: 4000,
		40 * 24 * time.Hour: 4000,
		24 * time.Hour:      4000,
	})
	volatile := seriesOf(now, map[time.Duration]int64{
		80 * 24 * time.Hour: 1000,
		40 * 24 * time.Hour: 9000,
		24 * time.Hour:      2000,
	})

	steadySum := Summarize(steady, testOpts(now))
	volatileSum := Summarize(volatile, testOpts(now))

	if steadySum.Stability == nil || volatileSum.Stability == nil {
		t.Fatal("stability should be defined for three-sample windows")
	}
	approx(t, *steadySum.Stability, 1, "steady pricing stability")
	if *volatileSum.Stability >= *steadySum.Stability {
		t.Fatalf("volatile pricing must score lower stability: %v vs %v",
			*volatileSum.Stability, *steadySum.Stability)
	}
}
