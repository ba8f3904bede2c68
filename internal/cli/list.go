package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/offer-goat/offer-goat/internal/analytics"
	"github.com/offer-goat/offer-goat/internal/stats"
	"github.com/offer-goat/offer-goat/internal/store"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all experiments",
		Long:  `List all experiments with their status, traffic and current leader.`,
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		reports, err := analytics.NewService(s, tierThresholds()).Reports(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "failed to list experiments")
		}

		out := cmd.OutOrStdout()
		if len(reports) == 0 {
			fmt.Fprintln(out, "No experiments yet.")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Create one with:")
			fmt.Fprintln(out, "  offer-goat create <name> --variants \"A,B\"")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSTATE\tVARIANTS\tVIEWS\tCONVERSIONS\tLEADER\tCONFIDENCE\tCREATED")

		for _, rep := range reports {
			var views, conversions int
			for _, v := range rep.Variants {
				views += v.Funnel.TotalViews
				conversions += v.Funnel.SubmittedForm
			}

			confidence := "-"
			if rep.Verdict != nil {
				confidence = fmt.Sprintf("%d%%", rep.Verdict.Confidence)
			}

			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
				rep.Experiment,
				strings.ToUpper(rep.State),
				len(rep.Variants),
				formatNumber(views),
				formatNumber(conversions),
				rep.Leader(),
				confidence,
				rep.CreatedAt.Format("2006-01-02"),
			)
		}

		return w.Flush()
	})
}

// tierThresholds returns the configured sample tiers.
func tierThresholds() stats.TierThresholds {
	if cfg == nil {
		return stats.DefaultTierThresholds
	}
	return stats.TierThresholds{
		Significant: cfg.Report.SignificantViews,
		Trending:    cfg.Report.TrendingViews,
	}
}

func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
}
