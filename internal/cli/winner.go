package cli

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/offer-goat/offer-goat/internal/store"
)

func newWinnerCmd() *cobra.Command {
	var variant string

	cmd := &cobra.Command{
		Use:   "winner <name>",
		Short: "Declare a winner for an experiment",
		Long: `Declare the winning variant for an experiment and complete it.

Once completed, every visitor is assigned the winner and the snippet
command generates static markup for it.
Without --variant you pick the winner from a list.

Example:
  offer-goat winner cash-offer --variant email-first`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return withStore(func(s *store.SQLiteStore) error {
				ctx := cmd.Context()

				exp, err := s.GetExperiment(ctx, name)
				if err != nil {
					return experimentNotFound(err, name)
				}

				if exp.State == store.StateCompleted {
					return fmt.Errorf("experiment is already completed (winner: %s)", exp.WinnerVariant)
				}

				if variant == "" {
					variant, err = promptVariant(exp)
					if err != nil {
						return err
					}
				}
				if !exp.HasVariant(variant) {
					return fmt.Errorf("unknown variant %q (experiment has variants: %v)", variant, exp.Variants)
				}

				if err := s.SetWinner(ctx, name, variant); err != nil {
					return eris.Wrap(err, "failed to set winner")
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Declared winner for experiment '%s': %q\n", name, variant)
				fmt.Fprintln(out, "Experiment has been marked as completed.")
				fmt.Fprintln(out, "\nNote: every visitor is now assigned the winner. Run 'snippet' for static markup.")

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variant, "variant", "v", "", "winning variant (prompted when omitted)")

	return cmd
}

func promptVariant(exp *store.Experiment) (string, error) {
	prompt := promptui.Select{
		Label: fmt.Sprintf("Winner for %s", exp.Name),
		Items: exp.Variants,
	}

	_, choice, err := prompt.Run()
	if err != nil {
		return "", eris.Wrap(err, "variant selection cancelled")
	}
	return choice, nil
}
