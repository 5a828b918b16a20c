package scoring

// ScoreWeights name the tunables of the composite rankings.
type ScoreWeights struct {
	// DiscountWeight and StabilityWeight blend the deal score's inputs.
	DiscountWeight  float64
	StabilityWeight float64
	// HotDealWeight and HotDemandWeight blend the hot score when a demand
	// signal is present.
	HotDealWeight   float64
	HotDemandWeight float64
}

// neutralBase is the deal score of a record with no observed discount and
// neutral stability; confidence compresses every score toward this point.
func (w ScoreWeights) neutralBase() float64 {
	return w.StabilityWeight * NeutralStability * 100
}

// Compose combines the statistics, confidence, and demand outputs into the
// two composite rankings. Both outputs are pure functions of their inputs.
//
// The deal score blends the clamped discount with price stability on a
// 0-100 scale, then compresses toward the neutral base in proportion to
// confidence: an unreliable discount is shrunk, never amplified. A record
// with no usable discount still gets a defined, sortable score at the base.
//
// The hot score reweights the deal score by demand and keeps confidence
// relevant; it equals the deal score exactly when demand is nil, so
// demand-less categories retain strict deal-score ordering.
func Compose(sum Summary, confidence float64, demand *float64, w ScoreWeights) (score, hotScore float64) {
	discount := 0.0
	if sum.DiscountPct != nil {
		discount = clamp01(*sum.DiscountPct)
	}

	base := w.DiscountWeight*discount*100 + w.StabilityWeight*sum.StabilityOrNeutral()*100

	neutral := w.neutralBase()
	score = neutral + (base-neutral)*(confidence/100)
	score = clamp100(score)

	if demand == nil {
		return score, score
	}

	blended := w.HotDealWeight*score + w.HotDemandWeight**demand
	hotScore = clamp100(blended * (0.5 + 0.5*confidence/100))
	return score, hotScore
}
