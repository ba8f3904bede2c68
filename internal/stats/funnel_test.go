package stats_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offer-goat/offer-goat/internal/stats"
	"github.com/offer-goat/offer-goat/internal/store"
)

func secs(f float64) *float64 { return &f }

// funnelVisit builds a well-formed visit that reached the given depth:
// 0 = bounced, 1 = offer, ..., 5 = submitted.
func funnelVisit(variant string, depth int, timeOnPage *float64) store.Visit {
	return store.Visit{
		Variant:        variant,
		ViewedOffer:    depth >= 1,
		ViewedBenefits: depth >= 2,
		ViewedProcess:  depth >= 3,
		ViewedForm:     depth >= 4,
		SubmittedForm:  depth >= 5,
		TimeOnPage:     timeOnPage,
	}
}

func TestFunnel_Empty(t *testing.T) {
	got := stats.Funnel(nil)
	assert.Equal(t, stats.FunnelStats{}, got)
	assert.Zero(t, got.ConversionRate())
	for _, step := range got.Steps() {
		assert.Zero(t, step.Percent)
	}
}

func TestFunnel_Counts(t *testing.T) {
	visits := []store.Visit{
		funnelVisit("A", 5, secs(120)),
		funnelVisit("A", 3, secs(45)),
		funnelVisit("A", 1, nil),
		funnelVisit("A", 0, secs(4)),
	}

	got := stats.Funnel(visits)

	want := stats.FunnelStats{
		Variant:        "A",
		TotalViews:     4,
		ViewedOffer:    3,
		ViewedBenefits: 2,
		ViewedProcess:  2,
		ViewedForm:     1,
		SubmittedForm:  1,
		AvgTimeOnPage:  42, // (120+45+0+4)/4 = 42.25
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Funnel() mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 0.25, got.ConversionRate(), 1e-9)
}

func TestFunnel_AverageRoundsToNearestSecond(t *testing.T) {
	got := stats.Funnel([]store.Visit{
		funnelVisit("B", 0, secs(1)),
		funnelVisit("B", 0, secs(2)),
	})
	assert.Equal(t, 2, got.AvgTimeOnPage)

	got = stats.Funnel([]store.Visit{
		funnelVisit("B", 0, secs(1)),
		funnelVisit("B", 0, secs(1.4)),
	})
	assert.Equal(t, 1, got.AvgTimeOnPage)
}

func TestFunnel_NotEnforcedOnMalformedRows(t *testing.T) {
	// A submission without any earlier step is counted as-is.
	got := stats.Funnel([]store.Visit{{Variant: "A", SubmittedForm: true}})
	assert.Equal(t, 1, got.SubmittedForm)
	assert.Equal(t, 0, got.ViewedForm)
}

func TestFunnel_MonotonicOnWellFormedData(t *testing.T) {
	var visits []store.Visit
	for i := 0; i < 250; i++ {
		visits = append(visits, funnelVisit("A", (i*7)%6, secs(float64(i%90))))
	}

	got := stats.Funnel(visits)

	assert.LessOrEqual(t, got.SubmittedForm, got.ViewedForm)
	assert.LessOrEqual(t, got.ViewedForm, got.ViewedProcess)
	assert.LessOrEqual(t, got.ViewedProcess, got.ViewedBenefits)
	assert.LessOrEqual(t, got.ViewedBenefits, got.ViewedOffer)
	assert.LessOrEqual(t, got.ViewedOffer, got.TotalViews)
}

func TestFunnel_AverageInvariantUnderDuplication(t *testing.T) {
	base := []store.Visit{
		funnelVisit("A", 2, secs(3)),
		funnelVisit("A", 4, secs(4)),
		funnelVisit("A", 5, secs(10)),
		funnelVisit("A", 0, nil),
	}
	want := stats.Funnel(base).AvgTimeOnPage

	for n := 2; n <= 5; n++ {
		var dup []store.Visit
		for i := 0; i < n; i++ {
			dup = append(dup, base...)
		}
		assert.Equal(t, want, stats.Funnel(dup).AvgTimeOnPage, "duplicated %d times", n)
	}
}

func TestFunnelStats_Steps(t *testing.T) {
	fs := stats.FunnelStats{TotalViews: 200, ViewedOffer: 150, ViewedBenefits: 100, ViewedProcess: 50, ViewedForm: 20, SubmittedForm: 10}

	steps := fs.Steps()
	require.Len(t, steps, 6)
	assert.Equal(t, "Viewed Page", steps[0].Label)
	assert.Equal(t, 200, steps[0].Count)
	assert.InDelta(t, 100.0, steps[0].Percent, 1e-9)
	assert.Zero(t, steps[0].DropOff)

	assert.Equal(t, "Viewed Offer", steps[1].Label)
	assert.InDelta(t, 75.0, steps[1].Percent, 1e-9)
	assert.InDelta(t, 25.0, steps[1].DropOff, 1e-9)
	assert.InDelta(t, 50.0, steps[3].DropOff, 1e-9)

	assert.Equal(t, "Submitted Form", steps[5].Label)
	assert.InDelta(t, 5.0, steps[5].Percent, 1e-9)
	assert.InDelta(t, 50.0, steps[5].DropOff, 1e-9)
}

func TestFunnelStats_StepsDropOffAfterEmptyStep(t *testing.T) {
	fs := stats.FunnelStats{TotalViews: 10, ViewedOffer: 4}

	steps := fs.Steps()
	require.Len(t, steps, 6)
	assert.InDelta(t, 60.0, steps[1].DropOff, 1e-9)
	assert.InDelta(t, 100.0, steps[2].DropOff, 1e-9)
	for _, step := range steps[3:] {
		assert.Zero(t, step.DropOff, step.Label)
	}
}

func TestGroupByVariant(t *testing.T) {
	visits := []store.Visit{
		{Variant: "B", SessionID: "1"},
		{Variant: "A", SessionID: "2"},
		{Variant: "B", SessionID: "3"},
	}

	groups, order := stats.GroupByVariant(visits)

	assert.Equal(t, []string{"B", "A"}, order)
	assert.Len(t, groups["B"], 2)
	assert.Len(t, groups["A"], 1)
}
