package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/offer-goat/offer-goat/internal/device"
	"github.com/offer-goat/offer-goat/internal/store"
)

func newImportCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import <name>",
		Short: "Import visits from a CSV file",
		Long: `Import visits into an experiment from a CSV file.

The file uses the same header as 'export --format csv'. The experiment
column is ignored; every row is imported into <name>. Rows whose session
is already recorded are skipped.

Examples:
  offer-goat import cash-offer --file cash-offer.csv
  cat visits.csv | offer-goat import cash-offer --file -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}

			var visits []store.Visit
			if err := csvutil.Unmarshal(data, &visits); err != nil {
				return eris.Wrap(err, "failed to parse csv")
			}

			return withStore(func(s *store.SQLiteStore) error {
				ctx := cmd.Context()

				exp, err := s.GetExperiment(ctx, name)
				if err != nil {
					return experimentNotFound(err, name)
				}

				for i := range visits {
					v := &visits[i]
					if v.SessionID == "" {
						return fmt.Errorf("row %d: session_id is required", i+1)
					}
					if !exp.HasVariant(v.Variant) {
						return fmt.Errorf("row %d: unknown variant %q", i+1, v.Variant)
					}
					if v.TimeOnPage != nil && *v.TimeOnPage < 0 {
						return fmt.Errorf("row %d: time_on_page must not be negative", i+1)
					}
					v.Experiment = exp.Name
					v.DeviceType = device.Normalize(v.DeviceType, "")
				}

				inserted, err := s.ImportVisits(ctx, visits)
				if err != nil {
					return eris.Wrap(err, "failed to import visits")
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d visits into '%s' (%d skipped as duplicates)\n",
					inserted, exp.Name, len(visits)-inserted)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file to import, - for stdin (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return data, eris.Wrap(err, "failed to read stdin")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", file)
	}
	return data, nil
}
