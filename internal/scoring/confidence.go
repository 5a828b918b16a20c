package scoring

// ConfidenceWeights name the tunables of the confidence formula.
type ConfidenceWeights struct {
	// SaturationCount is the sample count at which confidence reaches half
	// of its coverage-limited maximum; gains diminish beyond it.
	SaturationCount float64
	// StaleFactor multiplies confidence when the latest sample is stale.
	// Must be in (0, 1].
	StaleFactor float64
	// GapWeight scales how strongly missing window coverage reduces
	// confidence. Must be in [0, 1].
	GapWeight float64
	// Floor is the lower bound, and the forced value whenever the median is
	// undefined.
	Floor float64
}

// ConfidenceInputs aggregate everything the estimator looks at.
type ConfidenceInputs struct {
	SampleCount   int
	Stale         bool
	GapRatio      float64
	MedianDefined bool
}

// Confidence scores the trustworthiness of a price history on a 0-100
// scale. It is monotonically non-decreasing in sample count and
// non-increasing in staleness and gap ratio. An undefined median forces the
// floor: there is never high confidence about an undefined discount.
func Confidence(in ConfidenceInputs, w ConfidenceWeights) float64 {
	if !in.MedianDefined {
		return w.Floor
	}

	n := float64(in.SampleCount)
	if n < 0 {
		n = 0
	}
	conf := 100 * n / (n + w.SaturationCount)

	gap := clamp01(in.GapRatio)
	conf *= 1 - w.GapWeight*gap

	if in.Stale {
		conf *= w.StaleFactor
	}

	if conf < w.Floor {
		return w.Floor
	}
	if conf > 100 {
		return 100
	}
	return conf
}

// ConfidenceFromSummary derives the estimator inputs from a stats summary.
func ConfidenceFromSummary(sum Summary, w ConfidenceWeights) float64 {
	return Confidence(ConfidenceInputs{
		SampleCount:   sum.SampleCount,
		Stale:         sum.Stale,
		GapRatio:      sum.GapRatio,
		MedianDefined: sum.MedianDefined(),
	}, w)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
