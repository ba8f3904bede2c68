package stats

import (
	"time"

	"github.com/offer-goat/offer-goat/internal/store"
)

// Report is the full analysis of one experiment.
type Report struct {
	Experiment     string          `json:"experiment"`
	State          string          `json:"state"`
	ConversionGoal string          `json:"conversion_goal,omitempty"`
	DeclaredWinner string          `json:"declared_winner,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Variants       []VariantReport `json:"variants"`
	Rankings       []Ranking       `json:"rankings"`
	Verdict        *Verdict        `json:"verdict,omitempty"`
}

// VariantReport holds everything computed for a single variant.
type VariantReport struct {
	Name     string         `json:"name"`
	Funnel   FunnelStats    `json:"funnel"`
	Segments SegmentedStats `json:"segments"`
	Rate     float64        `json:"rate"`
	CILower  float64        `json:"ci_lower"`
	CIUpper  float64        `json:"ci_upper"`
}

// Verdict compares the control (side A) with the best challenger (side B).
type Verdict struct {
	Control       string `json:"control"`
	Challenger    string `json:"challenger"`
	WinnerVariant string `json:"winner_variant,omitempty"`
	SignificanceResult
}

// Analyze builds the report for an experiment from its visits. Variants
// are reported in the experiment's declared order; visits on undeclared
// variants are ignored.
func Analyze(exp *store.Experiment, visits []store.Visit, thresholds TierThresholds) *Report {
	groups, _ := GroupByVariant(visits)

	report := &Report{
		Experiment:     exp.Name,
		State:          string(exp.State),
		ConversionGoal: exp.ConversionGoal,
		DeclaredWinner: exp.WinnerVariant,
		CreatedAt:      exp.CreatedAt,
		Variants:       make([]VariantReport, len(exp.Variants)),
	}

	funnels := make([]FunnelStats, len(exp.Variants))
	for i, name := range exp.Variants {
		group := groups[name]

		funnel := Funnel(group)
		funnel.Variant = name
		funnels[i] = funnel

		ciLower, ciUpper := WilsonInterval(funnel.SubmittedForm, funnel.TotalViews, 0.95)
		report.Variants[i] = VariantReport{
			Name:     name,
			Funnel:   funnel,
			Segments: Segment(group),
			Rate:     funnel.ConversionRate(),
			CILower:  ciLower,
			CIUpper:  ciUpper,
		}
	}

	report.Rankings = Rank(funnels, thresholds)
	report.Verdict = compare(funnels)
	return report
}

// Leader returns the best ranked variant, or "" when there are no variants.
func (r *Report) Leader() string {
	if len(r.Rankings) == 0 {
		return ""
	}
	return r.Rankings[0].Variant
}

// RankingOf returns the ranking entry for a variant.
func (r *Report) RankingOf(variant string) (Ranking, bool) {
	for _, rk := range r.Rankings {
		if rk.Variant == variant {
			return rk, true
		}
	}
	return Ranking{}, false
}

func compare(funnels []FunnelStats) *Verdict {
	if len(funnels) < 2 {
		return nil
	}

	control := funnels[0]
	challenger := funnels[1]
	for _, f := range funnels[2:] {
		if f.ConversionRate() > challenger.ConversionRate() {
			challenger = f
		}
	}

	result := Evaluate(control.SubmittedForm, control.TotalViews, challenger.SubmittedForm, challenger.TotalViews)

	v := &Verdict{
		Control:            control.Variant,
		Challenger:         challenger.Variant,
		SignificanceResult: result,
	}
	switch result.Winner {
	case SideA:
		v.WinnerVariant = control.Variant
	case SideB:
		v.WinnerVariant = challenger.Variant
	}
	return v
}
