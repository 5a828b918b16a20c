package fetcher

import (
	"context"
	"errors"

	"github.com/Elhashino/amazon-deals/internal/series"
)

var (
	// ErrUpstreamUnavailable marks a transient per-product failure; the
	// caller skips the product and retries it next cycle.
	ErrUpstreamUnavailable = errors.New("fetcher: upstream unavailable")

	// ErrUnknownProduct marks a permanent failure; the ASIN is excluded from
	// this and future cycles.
	ErrUnknownProduct = errors.New("fetcher: unknown product")

	// ErrQuotaExhausted means the per-cycle call budget is spent; remaining
	// candidates are skipped and the cycle still commits what it has.
	ErrQuotaExhausted = errors.New("fetcher: cycle call budget exhausted")
)

// Candidate is one (asin, category) pair to consider in a cycle.
type Candidate struct {
	ASIN     string
	Category string
}

// ProductInfo carries the provider's descriptive fields.
type ProductInfo struct {
	Title string
	Brand string
}

// HistoryFetcher retrieves a product's price history and demand signal from
// the upstream provider.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, asin, category string) (series.PriceSeries, series.DemandSignal, ProductInfo, error)
}

// CandidateSource enumerates the (asin, category) pairs for one cycle. The
// list may change between cycles; additions and removals are expected.
type CandidateSource interface {
	Candidates(ctx context.Context) ([]Candidate, error)
}

// BudgetResetter is implemented by fetchers with a per-cycle call budget.
type BudgetResetter interface {
	ResetBudget()
}
