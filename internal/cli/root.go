package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/offer-goat/offer-goat/internal/config"
)

var (
	dbPath string
	port   int
	cfg    *config.Config
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "offer-goat",
		Short: "offer-goat - self-hosted A/B testing for cash-offer landing pages",
		Long: `offer-goat runs A/B experiments on cash-offer landing pages.
Single Go binary, embedded SQLite. It tracks how far each visitor gets down
the page funnel and tells you which variant converts better, and how sure
it is.

Running without a subcommand starts the server (same as 'offer-goat serve').`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		RunE:              runServe,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default from config, ./offer-goat.db)")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config, 8080)")

	rootCmd.AddCommand(
		newServeCmd(),
		newCreateCmd(),
		newListCmd(),
		newResultsCmd(),
		newWinnerCmd(),
		newStateCmd("pause", "Pause an experiment", "Stop recording visits for an experiment until it is resumed.", pauseExperiment),
		newStateCmd("resume", "Resume a paused experiment", "Start recording visits for a paused experiment again.", resumeExperiment),
		newDeleteCmd(),
		newExportCmd(),
		newImportCmd(),
		newSnippetCmd(),
		newTokenCmd(),
	)

	return rootCmd
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

// loadConfig reads config.yaml and the environment, then applies flag
// overrides.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("db") {
		loaded.Store.Path = dbPath
	} else {
		dbPath = loaded.Store.Path
	}
	if cmd.Flags().Changed("port") {
		loaded.Server.Port = port
	} else {
		port = loaded.Server.Port
	}

	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	return config.InitLogger(cfg.Log)
}
