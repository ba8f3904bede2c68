package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/offer-goat/offer-goat/internal/store"
)

// visitExport is the JSON and YAML export document.
type visitExport struct {
	Experiment string        `json:"experiment" yaml:"experiment"`
	Variants   []string      `json:"variants" yaml:"variants"`
	Visits     []store.Visit `json:"visits" yaml:"visits"`
}

func newExportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Export raw visit data",
		Long: `Export the raw visits of an experiment in CSV, JSON or YAML format.

The CSV output can be loaded back with 'import'.

Examples:
  offer-goat export cash-offer --format csv > cash-offer.csv
  offer-goat export cash-offer --format json > cash-offer.json
  offer-goat export cash-offer --format yaml > cash-offer.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if format != "csv" && format != "json" && format != "yaml" {
				return fmt.Errorf("invalid format: must be 'csv', 'json' or 'yaml'")
			}

			return withStore(func(s *store.SQLiteStore) error {
				ctx := cmd.Context()

				exp, err := s.GetExperiment(ctx, name)
				if err != nil {
					return experimentNotFound(err, name)
				}

				visits, err := s.ListVisits(ctx, name, "")
				if err != nil {
					return eris.Wrap(err, "failed to get visits")
				}

				out := cmd.OutOrStdout()
				switch format {
				case "csv":
					return exportCSV(out, visits)
				case "yaml":
					return exportYAML(out, exp, visits)
				default:
					return exportJSON(out, exp, visits)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format (csv, json or yaml)")

	return cmd
}

func exportCSV(out io.Writer, visits []store.Visit) error {
	w := csv.NewWriter(out)
	enc := csvutil.NewEncoder(w)
	if len(visits) == 0 {
		// Header only
		if err := enc.EncodeHeader(store.Visit{}); err != nil {
			return eris.Wrap(err, "failed to write header")
		}
	}
	for _, v := range visits {
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "failed to write row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "failed to flush csv")
}

func exportJSON(out io.Writer, exp *store.Experiment, visits []store.Visit) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(newVisitExport(exp, visits))
}

func exportYAML(out io.Writer, exp *store.Experiment, visits []store.Visit) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(newVisitExport(exp, visits)); err != nil {
		return eris.Wrap(err, "failed to encode yaml")
	}
	return enc.Close()
}

func newVisitExport(exp *store.Experiment, visits []store.Visit) visitExport {
	if visits == nil {
		visits = []store.Visit{}
	}
	return visitExport{Experiment: exp.Name, Variants: exp.Variants, Visits: visits}
}
