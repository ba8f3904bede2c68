package stats

import (
	"encoding/json"
	"math"
)

// Side identifies one of the two arms of a pairwise comparison.
type Side string

const (
	SideNone Side = ""
	SideA    Side = "A"
	SideB    Side = "B"
)

// MarshalJSON encodes SideNone as null.
func (s Side) MarshalJSON() ([]byte, error) {
	if s == SideNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// Threshold maps a minimum Z score to a confidence level in percent.
type Threshold struct {
	Z          float64
	Confidence int
}

// ConfidenceTable is checked top to bottom; the first cutoff the Z score
// reaches wins. Below the last entry confidence is interpolated linearly
// from 0.
var ConfidenceTable = []Threshold{
	{Z: 2.576, Confidence: 99},
	{Z: 1.96, Confidence: 95},
	{Z: 1.645, Confidence: 90},
	{Z: 1.28, Confidence: 80},
}

// SignificantConfidence is the confidence at which a difference is
// reported as significant.
const SignificantConfidence = 95

// SignificanceResult is the verdict of a two-proportion Z-test.
type SignificanceResult struct {
	Significant bool    `json:"significant"`
	Confidence  int     `json:"confidence"`
	Winner      Side    `json:"winner"`
	Lift        float64 `json:"lift"`
	Z           float64 `json:"z"`
	PValue      float64 `json:"p_value"`
}

// Evaluate runs a pooled, two-sided two-proportion Z-test on the
// conversions of A and B. Conversions must not exceed their totals; this
// is not checked. Degenerate input (an empty side, zero standard error)
// yields a zero-confidence result with no winner. The result never holds
// NaN or Inf.
func Evaluate(conversionsA, totalA, conversionsB, totalB int) SignificanceResult {
	if totalA == 0 || totalB == 0 {
		return SignificanceResult{}
	}

	rateA := float64(conversionsA) / float64(totalA)
	rateB := float64(conversionsB) / float64(totalB)

	// Pooled proportion under the null hypothesis (rateA == rateB)
	pooled := float64(conversionsA+conversionsB) / float64(totalA+totalB)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(totalA) + 1/float64(totalB)))
	if se == 0 {
		return SignificanceResult{}
	}

	z := math.Abs(rateA-rateB) / se
	confidence := ConfidenceFromZ(z)

	var winner Side
	var lift float64
	switch {
	case rateA > rateB:
		winner = SideA
		lift = (rateA - rateB) / rateB * 100
	case rateB > rateA:
		winner = SideB
		lift = (rateB - rateA) / rateA * 100
	}
	if math.IsNaN(lift) || math.IsInf(lift, 0) {
		lift = 0
	}

	return SignificanceResult{
		Significant: confidence >= SignificantConfidence,
		Confidence:  confidence,
		Winner:      winner,
		Lift:        lift,
		Z:           z,
		PValue:      2 * (1 - normalCDF(z)),
	}
}

// ConfidenceFromZ maps a non-negative Z score to a confidence level using
// ConfidenceTable.
func ConfidenceFromZ(z float64) int {
	for _, t := range ConfidenceTable {
		if z >= t.Z {
			return t.Confidence
		}
	}
	last := ConfidenceTable[len(ConfidenceTable)-1]
	return int(math.Round(z / last.Z * float64(last.Confidence)))
}

// normalCDF approximates the cumulative distribution function
// of the standard normal distribution
func normalCDF(x float64) float64 {
	// Abramowitz and Stegun, formula 7.1.26
	a1 := 0.254829592
	a2 := -0.284496736
	a3 := 1.421413741
	a4 := -1.453152027
	a5 := 1.061405429
	p := 0.3275911

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x) / math.Sqrt(2)

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}
