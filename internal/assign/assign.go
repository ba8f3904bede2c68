// Package assign places visitors into experiment variants.
package assign

import (
	"github.com/cespare/xxhash/v2"

	"github.com/offer-goat/offer-goat/internal/store"
)

// Variant returns the variant a visitor sees. Assignment is sticky: the
// visitor ID and experiment name are hashed, so a returning visitor lands
// on the same variant without any stored state. Variants are picked in
// proportion to the experiment's weights; missing or mismatched weights
// mean an even split and non-positive weights switch a variant off. A
// completed experiment with a declared winner serves only the winner.
func Variant(exp *store.Experiment, visitorID string) string {
	if len(exp.Variants) == 0 {
		return ""
	}
	if exp.State == store.StateCompleted && exp.WinnerVariant != "" {
		return exp.WinnerVariant
	}

	weights := Weights(exp)
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return exp.Variants[0]
	}

	point := bucket(exp.Name, visitorID) * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if point < cumulative {
			return exp.Variants[i]
		}
	}

	// Rounding can leave point == total; give it to the last active variant.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return exp.Variants[i]
		}
	}
	return exp.Variants[0]
}

// Weights returns the effective weight per variant, with inactive
// variants at 0.
func Weights(exp *store.Experiment) []float64 {
	weights := make([]float64, len(exp.Variants))
	if len(exp.Weights) != len(exp.Variants) {
		for i := range weights {
			weights[i] = 1
		}
		return weights
	}
	for i, w := range exp.Weights {
		if w > 0 {
			weights[i] = w
		}
	}
	return weights
}

// bucket maps a visitor to a uniform point in [0, 1).
func bucket(experiment, visitorID string) float64 {
	h := xxhash.Sum64String(experiment + ":" + visitorID)
	return float64(h>>11) / (1 << 53)
}
