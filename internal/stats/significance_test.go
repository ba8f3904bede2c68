package stats_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offer-goat/offer-goat/internal/stats"
)

func TestEvaluate_ZeroTotals(t *testing.T) {
	cases := []struct {
		name                   string
		convA, totA, convB, tB int
	}{
		{"both empty", 0, 0, 0, 0},
		{"A empty", 0, 0, 10, 100},
		{"B empty", 10, 100, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := stats.Evaluate(tc.convA, tc.totA, tc.convB, tc.tB)
			assert.Equal(t, stats.SignificanceResult{}, got)
			assert.False(t, got.Significant)
			assert.Equal(t, stats.SideNone, got.Winner)
		})
	}
}

func TestEvaluate_ZeroStandardError(t *testing.T) {
	// Pooled rate of 0 and 1 both collapse the standard error.
	assert.Equal(t, stats.SignificanceResult{}, stats.Evaluate(0, 100, 0, 200))
	assert.Equal(t, stats.SignificanceResult{}, stats.Evaluate(100, 100, 50, 50))
}

func TestEvaluate_ClearWinner(t *testing.T) {
	// rateA=0.05, rateB=0.08, pooled=0.065, se≈0.01104, z≈2.717
	got := stats.Evaluate(50, 1000, 80, 1000)

	assert.Equal(t, 99, got.Confidence)
	assert.True(t, got.Significant)
	assert.Equal(t, stats.SideB, got.Winner)
	assert.InDelta(t, 60.0, got.Lift, 1e-9)
	assert.InDelta(t, 2.717, got.Z, 0.001)
	assert.Less(t, got.PValue, 0.01)
}

func TestEvaluate_NoSignal(t *testing.T) {
	// z≈0.203 falls below the lowest cutoff: round(0.203/1.28*80) = 13
	got := stats.Evaluate(50, 1000, 52, 1000)

	assert.Less(t, got.Confidence, 95)
	assert.Equal(t, 13, got.Confidence)
	assert.False(t, got.Significant)
	assert.Equal(t, stats.SideB, got.Winner)
	assert.InDelta(t, 4.0, got.Lift, 1e-9)
}

func TestEvaluate_ExactTie(t *testing.T) {
	got := stats.Evaluate(50, 1000, 50, 1000)

	assert.Equal(t, 0, got.Confidence)
	assert.Equal(t, stats.SideNone, got.Winner)
	assert.Zero(t, got.Lift)
	assert.InDelta(t, 1.0, got.PValue, 1e-6)
}

func TestEvaluate_LoserRateZeroKeepsLiftFinite(t *testing.T) {
	got := stats.Evaluate(0, 100, 5, 100)

	assert.Equal(t, stats.SideB, got.Winner)
	assert.False(t, math.IsInf(got.Lift, 0))
	assert.False(t, math.IsNaN(got.Lift))
	assert.Zero(t, got.Lift)
	// pooled=0.025, se≈0.02208, z≈2.265
	assert.Equal(t, 95, got.Confidence)
	assert.True(t, got.Significant)

	got = stats.Evaluate(5, 100, 0, 100)
	assert.Equal(t, stats.SideA, got.Winner)
	assert.Zero(t, got.Lift)
}

func TestEvaluate_Symmetry(t *testing.T) {
	cases := [][4]int{
		{50, 1000, 80, 1000},
		{50, 1000, 52, 1000},
		{0, 100, 5, 100},
		{12, 40, 30, 200},
		{7, 7, 3, 9},
	}

	swap := map[stats.Side]stats.Side{
		stats.SideA:    stats.SideB,
		stats.SideB:    stats.SideA,
		stats.SideNone: stats.SideNone,
	}

	for _, c := range cases {
		forward := stats.Evaluate(c[0], c[1], c[2], c[3])
		backward := stats.Evaluate(c[2], c[3], c[0], c[1])

		assert.Equal(t, forward.Confidence, backward.Confidence, "case %v", c)
		assert.Equal(t, forward.Significant, backward.Significant, "case %v", c)
		assert.Equal(t, swap[forward.Winner], backward.Winner, "case %v", c)
		assert.InDelta(t, forward.Lift, backward.Lift, 1e-9, "case %v", c)
	}
}

func TestConfidenceFromZ(t *testing.T) {
	cases := []struct {
		z    float64
		want int
	}{
		{3.5, 99},
		{2.576, 99},
		{2.575, 95},
		{1.96, 95},
		{1.959, 90},
		{1.645, 90},
		{1.644, 80},
		{1.28, 80},
		{0.64, 40},
		{0, 0},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, stats.ConfidenceFromZ(tc.z), "z=%v", tc.z)
	}
}

func TestConfidenceTable_Descending(t *testing.T) {
	for i := 1; i < len(stats.ConfidenceTable); i++ {
		assert.Greater(t, stats.ConfidenceTable[i-1].Z, stats.ConfidenceTable[i].Z)
		assert.Greater(t, stats.ConfidenceTable[i-1].Confidence, stats.ConfidenceTable[i].Confidence)
	}
}

func TestSignificanceResult_JSON(t *testing.T) {
	b, err := json.Marshal(stats.Evaluate(0, 0, 0, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"significant":false,"confidence":0,"winner":null,"lift":0,"z":0,"p_value":0}`, string(b))

	b, err = json.Marshal(stats.Evaluate(50, 1000, 80, 1000))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "B", decoded["winner"])
}
