package series

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Sample is one observed price point.
type Sample struct {
	At    time.Time
	Price decimal.Decimal
}

// PriceSeries is an ordered price history for a single product. Timestamps
// are strictly increasing; samples with non-positive prices (the provider's
// "unavailable" sentinel) are dropped during normalization, so gaps are
// expected and an empty series is valid.
type PriceSeries struct {
	Samples []Sample
}

// Normalize sorts samples by time, drops non-positive prices, and collapses
// duplicate timestamps keeping the last observation.
func Normalize(samples []Sample) PriceSeries {
	kept := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Price.IsPositive() {
			kept = append(kept, s)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].At.Before(kept[j].At)
	})

	deduped := kept[:0]
	for _, s := range kept {
		if n := len(deduped); n > 0 && deduped[n-1].At.Equal(s.At) {
			deduped[n-1] = s
			continue
		}
		deduped = append(deduped, s)
	}

	return PriceSeries{Samples: deduped}
}

// Len returns the number of samples.
func (p PriceSeries) Len() int {
	return len(p.Samples)
}

// Empty reports whether the series has no samples.
func (p PriceSeries) Empty() bool {
	return len(p.Samples) == 0
}

// Latest returns the most recent sample, or false for an empty series.
func (p PriceSeries) Latest() (Sample, bool) {
	if len(p.Samples) == 0 {
		return Sample{}, false
	}
	return p.Samples[len(p.Samples)-1], true
}

// Window returns the samples at or after the given cutoff.
func (p PriceSeries) Window(cutoff time.Time) []Sample {
	idx := sort.Search(len(p.Samples), func(i int) bool {
		return !p.Samples[i].At.Before(cutoff)
	})
	return p.Samples[idx:]
}

// DemandSignal carries the demand-side fields the provider may report for a
// product. Every field is optional; the upstream payload omits whatever it
// has no data for.
type DemandSignal struct {
	SalesRank   *int
	Rating      *float64
	ReviewCount *int
	RankDrops7d *int
}

// Empty reports whether no demand field is present. RankDrops7d alone does
// not count; it is derived from the rank history and meaningless without it.
func (d DemandSignal) Empty() bool {
	return d.SalesRank == nil && d.Rating == nil && d.ReviewCount == nil
}
