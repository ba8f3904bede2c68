package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/offer-goat/offer-goat/internal/store"
)

// serverURLSetting is the settings key holding the public server URL.
const serverURLSetting = "server_url"

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Show dashboard URL with access token",
		Long: `Show the dashboard URL with your access token.

Use this when you've scrolled past the startup message or need to
share the dashboard link.

Example:
  offer-goat token`,
		RunE: runToken,
	}
}

func runToken(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(getTokenFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no server running. Start with: offer-goat serve")
		}
		return eris.Wrap(err, "failed to read token file")
	}

	token := string(data)
	if token == "" {
		return fmt.Errorf("token file is empty. Restart the server with: offer-goat serve")
	}

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	err = withStore(func(s *store.SQLiteStore) error {
		if url, err := s.GetSetting(cmd.Context(), serverURLSetting); err == nil && url != "" {
			serverURL = url
		}
		return nil
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Dashboard: %s/dashboard?token=%s\n", serverURL, token)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Tip: Bookmark this URL or run 'offer-goat token' anytime.")
	return nil
}

// getTokenFilePath returns the path to the token file
func getTokenFilePath() string {
	// Store token file alongside the database
	return filepath.Join(filepath.Dir(dbPath), ".offer-goat-token")
}
