package scoring

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Elhashino/amazon-deals/internal/series"
)

// StatsOptions parameterise the summary computation.
type StatsOptions struct {
	Now time.Time
	// Window is the trailing span considered for median and dispersion.
	Window time.Duration
	// Freshness marks the latest sample stale when it is older than this.
	Freshness time.Duration
	// MinSamples is the in-window sample count below which the median is
	// undefined. A single-sample series is the exception: its median is that
	// sample so new listings are not penalised with an undefined discount.
	MinSamples int
	// VolatilityCeiling is the MAD/median ratio treated as fully unstable.
	VolatilityCeiling float64
}

// Summary holds the robust statistics derived from one price series. Nil
// fields mean "insufficient data"; that is a defined state, not a fault.
type Summary struct {
	PriceCurrent *decimal.Decimal
	PriceMedian  *decimal.Decimal
	DiscountPct  *float64
	Stability    *float64
	Stale        bool
	SampleCount  int
	GapRatio     float64
}

// NeutralStability is used where stability is undefined so that sparse
// series sort mid-field instead of at the bottom.
const NeutralStability = 0.5

// StabilityOrNeutral resolves the stability value consumers should use.
func (s Summary) StabilityOrNeutral() float64 {
	if s.Stability == nil {
		return NeutralStability
	}
	return *s.Stability
}

// MedianDefined reports whether the trailing-window median could be computed.
func (s Summary) MedianDefined() bool {
	return s.PriceMedian != nil
}

// Summarize computes the trailing-window statistics for a price series.
func Summarize(ps series.PriceSeries, opts StatsOptions) Summary {
	var sum Summary

	latest, ok := ps.Latest()
	if !ok {
		sum.GapRatio = 1
		return sum
	}

	current := latest.Price
	sum.PriceCurrent = &current
	sum.Stale = opts.Now.Sub(latest.At) > opts.Freshness

	cutoff := opts.Now.Add(-opts.Window)
	window := ps.Window(cutoff)
	sum.SampleCount = len(window)
	sum.GapRatio = gapRatio(window, opts.Window)

	prices := make([]decimal.Decimal, len(window))
	for i, s := range window {
		prices[i] = s.Price
	}

	switch {
	case ps.Len() == 1:
		// Single-sample series: the median is that sample by definition and
		// the discount is exactly zero.
		median := current
		sum.PriceMedian = &median
		zero := 0.0
		sum.DiscountPct = &zero
		return sum
	case len(window) < opts.MinSamples:
		return sum
	}

	median := decimalMedian(prices)
	sum.PriceMedian = &median

	if median.IsPositive() {
		discount, _ := median.Sub(current).Div(median).Float64()
		if discount > 1 {
			discount = 1
		}
		sum.DiscountPct = &discount

		if len(window) >= 2 {
			stability := stabilityFrom(prices, median, opts.VolatilityCeiling)
			sum.Stability = &stability
		}
	}

	return sum
}

// decimalMedian returns the statistical median; the input order is
// irrelevant because the slice is sorted on a copy.
func decimalMedian(values []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

// stabilityFrom maps MAD/median relative dispersion into [0, 1]; a ratio at
// or above the ceiling means fully unstable pricing.
func stabilityFrom(prices []decimal.Decimal, median decimal.Decimal, ceiling float64) float64 {
	deviations := make([]decimal.Decimal, len(prices))
	for i, p := range prices {
		deviations[i] = p.Sub(median).Abs()
	}
	mad := decimalMedian(deviations)

	ratio, _ := mad.Div(median).Float64()
	normalized := ratio / ceiling
	if normalized > 1 {
		normalized = 1
	}
	if normalized < 0 {
		normalized = 0
	}
	return 1 - normalized
}

// gapRatio measures missing coverage as the share of window days without a
// single sample.
func gapRatio(window []series.Sample, span time.Duration) float64 {
	days := int(span.Hours() / 24)
	if days <= 0 {
		return 0
	}

	seen := make(map[string]struct{}, len(window))
	for _, s := range window {
		seen[s.At.UTC().Format("2006-01-02")] = struct{}{}
	}

	covered := float64(len(seen)) / float64(days)
	if covered > 1 {
		covered = 1
	}
	return 1 - covered
}
