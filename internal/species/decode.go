package species

import (
	"math"
	"slices"
)

// Prediction is the decoded result for one output index.
type Prediction struct {
	Index      int     `json:"index"`
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Confidence float32 `json:"confidence"`
}

// Decode maps the arg-max of probs to a Prediction. Ties go to the lowest
// index and NaN values never win. An empty vector or an index outside the
// label map decodes to UnknownBird; Decode never fails.
func (m *LabelMap) Decode(probs []float32) Prediction {
	best := argMax(probs)
	if best < 0 {
		return Prediction{Index: -1, Name: UnknownBird}
	}
	return m.predictionAt(best, probs[best])
}

// TopN returns up to n predictions ordered by descending confidence, ties by
// ascending index. NaN values are ranked last.
func (m *LabelMap) TopN(probs []float32, n int) []Prediction {
	if n <= 0 || len(probs) == 0 {
		return nil
	}

	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		pa, pb := rankValue(probs[a]), rankValue(probs[b])
		switch {
		case pa > pb:
			return -1
		case pa < pb:
			return 1
		default:
			return 0
		}
	})

	n = min(n, len(order))
	out := make([]Prediction, 0, n)
	for _, idx := range order[:n] {
		out = append(out, m.predictionAt(idx, probs[idx]))
	}
	return out
}

func (m *LabelMap) predictionAt(idx int, confidence float32) Prediction {
	label, ok := m.At(idx)
	if !ok {
		return Prediction{Index: idx, Name: UnknownBird, Confidence: confidence}
	}
	return Prediction{
		Index:      idx,
		Code:       label.Code,
		Name:       m.NameOf(label.Code),
		Confidence: confidence,
	}
}

// argMax returns the first index holding the largest non-NaN value, 0 when
// every value is NaN, and -1 for an empty slice.
func argMax(probs []float32) int {
	if len(probs) == 0 {
		return -1
	}
	best := 0
	bestVal := rankValue(probs[0])
	for i := 1; i < len(probs); i++ {
		if v := rankValue(probs[i]); v > bestVal {
			best, bestVal = i, v
		}
	}
	return best
}

func rankValue(v float32) float64 {
	if math.IsNaN(float64(v)) {
		return math.Inf(-1)
	}
	return float64(v)
}
