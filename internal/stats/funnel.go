package stats

import (
	"math"

	"github.com/offer-goat/offer-goat/internal/store"
)

// FunnelStats is the landing page funnel for a single variant.
type FunnelStats struct {
	Variant        string `json:"variant"`
	TotalViews     int    `json:"total_views"`
	ViewedOffer    int    `json:"viewed_offer"`
	ViewedBenefits int    `json:"viewed_benefits"`
	ViewedProcess  int    `json:"viewed_process"`
	ViewedForm     int    `json:"viewed_form"`
	SubmittedForm  int    `json:"submitted_form"`
	AvgTimeOnPage  int    `json:"avg_time_on_page"` // seconds
}

// FunnelStep is one stage of the funnel with its share of total views.
// DropOff is the percentage of the previous step that did not reach this
// one; it is 0 for the first step and whenever the previous step is empty.
type FunnelStep struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
	DropOff float64 `json:"drop_off"`
}

// Funnel reduces the visits of one variant into funnel counts. The caller
// is responsible for passing visits of a single variant; the variant label
// is taken from the first visit.
func Funnel(visits []store.Visit) FunnelStats {
	var fs FunnelStats
	if len(visits) == 0 {
		return fs
	}

	fs.Variant = visits[0].Variant
	fs.TotalViews = len(visits)

	var totalTime float64
	for _, v := range visits {
		if v.ViewedOffer {
			fs.ViewedOffer++
		}
		if v.ViewedBenefits {
			fs.ViewedBenefits++
		}
		if v.ViewedProcess {
			fs.ViewedProcess++
		}
		if v.ViewedForm {
			fs.ViewedForm++
		}
		if v.SubmittedForm {
			fs.SubmittedForm++
		}
		totalTime += v.Seconds()
	}

	fs.AvgTimeOnPage = int(math.Round(totalTime / float64(fs.TotalViews)))
	return fs
}

// Steps returns the funnel stages in order, starting with the page view
// itself, each with its percentage of total views and its drop-off from the
// step before.
func (fs FunnelStats) Steps() []FunnelStep {
	steps := []FunnelStep{
		{Label: "Viewed Page", Count: fs.TotalViews},
		{Label: "Viewed Offer", Count: fs.ViewedOffer},
		{Label: "Viewed Benefits", Count: fs.ViewedBenefits},
		{Label: "Viewed Process", Count: fs.ViewedProcess},
		{Label: "Viewed Form", Count: fs.ViewedForm},
		{Label: "Submitted Form", Count: fs.SubmittedForm},
	}
	for i := range steps {
		steps[i].Percent = percentOf(steps[i].Count, fs.TotalViews)
		if i > 0 {
			prev := steps[i-1].Count
			steps[i].DropOff = percentOf(prev-steps[i].Count, prev)
		}
	}
	return steps
}

// ConversionRate is the share of views that submitted the form, 0-1.
func (fs FunnelStats) ConversionRate() float64 {
	if fs.TotalViews == 0 {
		return 0
	}
	return float64(fs.SubmittedForm) / float64(fs.TotalViews)
}

// GroupByVariant splits visits by variant label. Labels are returned in
// order of first appearance.
func GroupByVariant(visits []store.Visit) (map[string][]store.Visit, []string) {
	groups := make(map[string][]store.Visit)
	var order []string
	for _, v := range visits {
		if _, ok := groups[v.Variant]; !ok {
			order = append(order, v.Variant)
		}
		groups[v.Variant] = append(groups[v.Variant], v)
	}
	return groups, order
}

func percentOf(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
