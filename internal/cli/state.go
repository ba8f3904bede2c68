package cli

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/offer-goat/offer-goat/internal/store"
)

// stateChange validates and applies a lifecycle transition.
type stateChange func(cmd *cobra.Command, s *store.SQLiteStore, exp *store.Experiment) error

func newStateCmd(use, short, long string, change stateChange) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return withStore(func(s *store.SQLiteStore) error {
				exp, err := s.GetExperiment(cmd.Context(), name)
				if err != nil {
					return experimentNotFound(err, name)
				}
				return change(cmd, s, exp)
			})
		},
	}
}

func pauseExperiment(cmd *cobra.Command, s *store.SQLiteStore, exp *store.Experiment) error {
	if exp.State != store.StateRunning {
		return fmt.Errorf("experiment is not running (current state: %s)", exp.State)
	}
	if err := s.UpdateExperimentState(cmd.Context(), exp.Name, store.StatePaused); err != nil {
		return eris.Wrap(err, "failed to pause experiment")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Paused experiment '%s'. Visits are rejected until you resume it.\n", exp.Name)
	return nil
}

func resumeExperiment(cmd *cobra.Command, s *store.SQLiteStore, exp *store.Experiment) error {
	if exp.State != store.StatePaused {
		return fmt.Errorf("experiment is not paused (current state: %s)", exp.State)
	}
	if err := s.UpdateExperimentState(cmd.Context(), exp.Name, store.StateRunning); err != nil {
		return eris.Wrap(err, "failed to resume experiment")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Resumed experiment '%s'.\n", exp.Name)
	return nil
}
