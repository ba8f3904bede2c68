package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/offer-goat/offer-goat/internal/snippets"
	"github.com/offer-goat/offer-goat/internal/store"
)

func newSnippetCmd() *cobra.Command {
	var framework string
	var serverURL string

	cmd := &cobra.Command{
		Use:   "snippet <name>",
		Short: "Generate integration code for an experiment",
		Long: `Generate copy-paste-ready code that wires a landing page to an
experiment: variant assignment, funnel section tracking, form submits and
time on page. Completed experiments get static markup for the winner.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return withStore(func(s *store.SQLiteStore) error {
				ctx := cmd.Context()

				exp, err := s.GetExperiment(ctx, name)
				if err != nil {
					return experimentNotFound(err, name)
				}

				fw := snippets.Framework(framework)
				if framework == "" {
					fw, err = promptFramework()
					if err != nil {
						return err
					}
				}

				url := serverURL
				if url == "" {
					url = defaultServerURL(cmd, s)
				}

				config := snippets.Config{
					Experiment: exp.Name,
					Variants:   exp.Variants,
					PropertyID: exp.PropertyID,
					ServerURL:  url,
				}
				if exp.State == store.StateCompleted {
					config.WinnerVariant = exp.WinnerVariant
				}

				files, err := snippets.Generate(fw, config)
				if err != nil {
					return eris.Wrap(err, "failed to generate snippet")
				}

				printSnippets(cmd.OutOrStdout(), files)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&framework, "framework", "f", "", "framework (html, react); prompted when omitted")
	cmd.Flags().StringVarP(&serverURL, "server-url", "s", "", "server URL (default: saved public URL or localhost)")

	return cmd
}

// defaultServerURL prefers the public URL saved by serve.
func defaultServerURL(cmd *cobra.Command, s *store.SQLiteStore) string {
	if url, err := s.GetSetting(cmd.Context(), serverURLSetting); err == nil && url != "" {
		return url
	}
	return fmt.Sprintf("http://localhost:%d", port)
}

func promptFramework() (snippets.Framework, error) {
	labels := map[snippets.Framework]string{
		snippets.FrameworkHTML:  "HTML (og.js script tag)",
		snippets.FrameworkReact: "React (hook + page component)",
	}

	items := make([]string, len(snippets.Frameworks))
	for i, f := range snippets.Frameworks {
		items[i] = labels[f]
	}

	prompt := promptui.Select{
		Label: "Select framework",
		Items: items,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		return "", eris.Wrap(err, "framework selection cancelled")
	}
	return snippets.Frameworks[idx], nil
}

func printSnippets(out io.Writer, files []snippets.SnippetFile) {
	for i, file := range files {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, strings.Repeat("=", 62))
		fmt.Fprintf(out, " %s\n", file.Filename)
		fmt.Fprintln(out, strings.Repeat("=", 62))
		fmt.Fprintln(out)
		fmt.Fprintln(out, file.Content)
	}
}
