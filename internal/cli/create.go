package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/offer-goat/offer-goat/internal/store"
)

func newCreateCmd() *cobra.Command {
	var (
		variants   string
		weights    string
		goal       string
		propertyID string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new experiment",
		Long: `Create a new landing page experiment with the specified name and variants.

The first variant is the control; every other variant is compared against it.

Examples:
  offer-goat create cash-offer --variants "ultra-simple,email-first"
  offer-goat create cash-offer --variants "A,B,C" --weights "50,25,25"
  offer-goat create cash-offer --variants "A,B" --goal "Offer form submitted" --property prop-42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			variantList, err := parseVariants(variants)
			if err != nil {
				return err
			}

			weightList, err := parseWeights(weights, len(variantList))
			if err != nil {
				return err
			}

			return withStore(func(s *store.SQLiteStore) error {
				exp, err := s.CreateExperiment(cmd.Context(), &store.Experiment{
					Name:           name,
					PropertyID:     propertyID,
					Variants:       variantList,
					Weights:        weightList,
					ConversionGoal: goal,
				})
				if err != nil {
					if errors.Is(err, store.ErrExists) {
						return fmt.Errorf("experiment '%s' already exists", name)
					}
					return eris.Wrap(err, "failed to create experiment")
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created experiment '%s' with %d variants:\n", exp.Name, len(exp.Variants))
				for i, v := range exp.Variants {
					label := ""
					if i == 0 {
						label = " (control)"
					}
					if len(exp.Weights) > 0 {
						fmt.Fprintf(out, "  %s%s  weight %g\n", v, label, exp.Weights[i])
					} else {
						fmt.Fprintf(out, "  %s%s\n", v, label)
					}
				}
				if goal != "" {
					fmt.Fprintf(out, "  Goal: %s\n", goal)
				}
				if propertyID != "" {
					fmt.Fprintf(out, "  Property: %s\n", propertyID)
				}

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variants, "variants", "v", "", "comma-separated variant names, control first (required)")
	cmd.Flags().StringVarP(&weights, "weights", "w", "", "comma-separated traffic weights, one per variant (optional)")
	cmd.Flags().StringVarP(&goal, "goal", "g", "", "conversion goal description (optional)")
	cmd.Flags().StringVar(&propertyID, "property", "", "property the landing page belongs to (optional)")
	cmd.MarkFlagRequired("variants")

	return cmd
}

func parseVariants(raw string) ([]string, error) {
	var variants []string
	seen := make(map[string]bool)
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if seen[v] {
			return nil, fmt.Errorf("duplicate variant %q", v)
		}
		seen[v] = true
		variants = append(variants, v)
	}

	if len(variants) < 2 {
		return nil, fmt.Errorf("need at least 2 variants. Example: --variants \"A,B\"")
	}
	return variants, nil
}

func parseWeights(raw string, count int) ([]float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	if len(parts) != count {
		return nil, fmt.Errorf("got %d weights for %d variants", len(parts), count)
	}

	weights := make([]float64, len(parts))
	var total float64
	for i, p := range parts {
		w, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q", p)
		}
		if w < 0 {
			return nil, fmt.Errorf("weight %q must not be negative", p)
		}
		weights[i] = w
		total += w
	}

	if total == 0 {
		return nil, fmt.Errorf("at least one weight must be positive")
	}
	return weights, nil
}
