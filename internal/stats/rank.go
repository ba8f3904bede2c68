package stats

import "sort"

// SampleTier describes whether a variant has seen enough traffic for its
// conversion rate to be trusted.
type SampleTier string

const (
	TierSignificant  SampleTier = "significant"
	TierTrending     SampleTier = "trending"
	TierInsufficient SampleTier = "insufficient"
)

// TierThresholds are the view counts at which a variant moves up a tier.
type TierThresholds struct {
	Significant int
	Trending    int
}

var DefaultTierThresholds = TierThresholds{Significant: 100, Trending: 50}

// Tier classifies a view count.
func (t TierThresholds) Tier(views int) SampleTier {
	switch {
	case views >= t.Significant:
		return TierSignificant
	case views >= t.Trending:
		return TierTrending
	default:
		return TierInsufficient
	}
}

// Ranking is one variant's position by conversion rate.
type Ranking struct {
	Variant     string     `json:"variant"`
	Rank        int        `json:"rank"`
	Visitors    int        `json:"visitors"`
	Conversions int        `json:"conversions"`
	Rate        float64    `json:"rate"`
	Tier        SampleTier `json:"tier"`
}

// Rank orders funnels by conversion rate, best first. Ties keep their
// input order.
func Rank(funnels []FunnelStats, thresholds TierThresholds) []Ranking {
	rankings := make([]Ranking, len(funnels))
	for i, f := range funnels {
		rankings[i] = Ranking{
			Variant:     f.Variant,
			Visitors:    f.TotalViews,
			Conversions: f.SubmittedForm,
			Rate:        f.ConversionRate(),
			Tier:        thresholds.Tier(f.TotalViews),
		}
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].Rate > rankings[j].Rate
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
	}
	return rankings
}
