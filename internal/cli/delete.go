package cli

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/offer-goat/offer-goat/internal/store"
)

func newDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an experiment and its data",
		Long: `Delete an experiment together with all of its visits and events.

This cannot be undone. Run 'export' first if you want to keep the data.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if !yes {
				prompt := promptui.Prompt{
					Label:     fmt.Sprintf("Delete experiment %s and all its visits", name),
					IsConfirm: true,
				}
				if _, err := prompt.Run(); err != nil {
					if errors.Is(err, promptui.ErrAbort) {
						fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
						return nil
					}
					return eris.Wrap(err, "confirmation failed")
				}
			}

			return withStore(func(s *store.SQLiteStore) error {
				if err := s.DeleteExperiment(cmd.Context(), name); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("experiment '%s' not found", name)
					}
					return eris.Wrap(err, "failed to delete experiment")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted experiment '%s'.\n", name)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}
