package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/offer-goat/offer-goat/internal/analytics"
	"github.com/offer-goat/offer-goat/internal/stats"
	"github.com/offer-goat/offer-goat/internal/store"
)

func newResultsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "results <name>",
		Short: "Show detailed results for an experiment",
		Long: `Show the funnel, conversion rates with confidence intervals, the
significance verdict and device/source segments for an experiment.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return withStore(func(s *store.SQLiteStore) error {
				report, err := analytics.NewService(s, tierThresholds()).Report(cmd.Context(), name)
				if err != nil {
					return experimentNotFound(err, name)
				}

				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(report)
				}
				return printReport(cmd.OutOrStdout(), report)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	return cmd
}

func printReport(out io.Writer, rep *stats.Report) error {
	fmt.Fprintf(out, "EXPERIMENT: %s\n", rep.Experiment)
	fmt.Fprintf(out, "STATE: %s\n", rep.State)
	if rep.ConversionGoal != "" {
		fmt.Fprintf(out, "GOAL: %s\n", rep.ConversionGoal)
	}
	if rep.DeclaredWinner != "" {
		fmt.Fprintf(out, "WINNER: %s\n", rep.DeclaredWinner)
	}
	fmt.Fprintf(out, "CREATED: %s\n", rep.CreatedAt.Format("2006-01-02"))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VARIANT\tRANK\tVIEWS\tOFFER\tBENEFITS\tPROCESS\tFORM\tSUBMITTED\tRATE\t95% CI\tAVG TIME\tSAMPLE")
	for _, v := range rep.Variants {
		rank := "-"
		tier := "-"
		if rk, ok := rep.RankingOf(v.Name); ok {
			rank = fmt.Sprintf("#%d", rk.Rank)
			tier = string(rk.Tier)
		}

		ci := "N/A"
		if v.Funnel.TotalViews > 0 {
			ci = fmt.Sprintf("[%.1f%%, %.1f%%]", v.CILower*100, v.CIUpper*100)
		}

		fmt.Fprintf(w, "%s\t%s", v.Name, rank)
		for _, step := range v.Funnel.Steps() {
			fmt.Fprintf(w, "\t%s", formatNumber(step.Count))
		}
		fmt.Fprintf(w, "\t%s\t%s\t%ds\t%s\n", formatPercent(v.Rate), ci, v.Funnel.AvgTimeOnPage, tier)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out)

	printVerdict(out, rep.Verdict)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "SEGMENTS")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VARIANT\tMOBILE\tDESKTOP\tSOURCES")
	for _, v := range rep.Variants {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
			v.Name,
			v.Segments.Device.Mobile,
			v.Segments.Device.Desktop,
			formatSources(v.Segments.Source),
		)
	}
	return w.Flush()
}

func printVerdict(out io.Writer, v *stats.Verdict) {
	switch {
	case v == nil:
		fmt.Fprintln(out, "Statistical significance: need at least two variants to compare")
	case v.WinnerVariant == "":
		fmt.Fprintf(out, "Statistical significance: no difference between %q and %q yet\n", v.Control, v.Challenger)
	case v.Significant:
		fmt.Fprintf(out, "Statistical significance: %d%% confident %q is the winner (%.1f%% lift, p=%.4f)\n",
			v.Confidence, v.WinnerVariant, v.Lift, v.PValue)
	case v.Confidence >= 80:
		fmt.Fprintf(out, "Statistical significance: %d%% confident %q is ahead (%.1f%% lift, not yet significant)\n",
			v.Confidence, v.WinnerVariant, v.Lift)
	default:
		fmt.Fprintln(out, "Statistical significance: Not enough data to determine a winner")
	}
}

// formatSources renders source counts busiest first, e.g. "facebook:12 direct:3".
func formatSources(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	parts := make([]string, len(labels))
	for i, label := range labels {
		parts[i] = fmt.Sprintf("%s:%d", label, counts[label])
	}
	return strings.Join(parts, " ")
}
