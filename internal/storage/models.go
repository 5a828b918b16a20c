package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DealRecord is one scored product within a snapshot generation. Value
// fields are immutable once written; only IsActive is flipped when a later
// generation supersedes the record.
type DealRecord struct {
	ID       int64
	ASIN     string
	Category string

	Title     *string
	Brand     *string
	AmazonURL *string

	PriceCurrent   *decimal.Decimal
	PriceMedian90d *decimal.Decimal
	DiscountPct90d *float64
	Stability      *float64
	Confidence     float64
	Score          float64
	HotScore       float64
	DemandScore    *float64

	SalesRankCurrent *int
	Rating           *float64
	ReviewCount      *int

	IsActive    bool
	Generation  uuid.UUID
	IngestedAt  time.Time
	PublishedAt time.Time
}

// Key returns the identity of the record within a generation.
func (r DealRecord) Key() DealKey {
	return DealKey{ASIN: r.ASIN, Category: r.Category}
}

// DealKey identifies a record across generations.
type DealKey struct {
	ASIN     string
	Category string
}

// PriceSnapshot is the per-cycle audit row of the computed metrics,
// retained independently of deal supersession.
type PriceSnapshot struct {
	ID             int64
	ASIN           string
	CapturedAt     time.Time
	PriceCurrent   *decimal.Decimal
	PriceMedian90d *decimal.Decimal
	DiscountPct90d *float64
	Confidence     float64
	Score          float64
}
