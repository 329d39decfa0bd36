package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/travelsaas/ratescrape/internal/fetch"
	"github.com/travelsaas/ratescrape/internal/ui"
	"github.com/travelsaas/ratescrape/internal/utils/headers"
	"github.com/travelsaas/ratescrape/internal/utils/output"
	urlutil "github.com/travelsaas/ratescrape/internal/utils/url"
)

var (
	inspectHeaders []string
	inspectRaw     bool
	inspectSave    string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <source-id|url>",
	Short: "Print the tables of a source page as markdown",
	Long: `Fetches a source page (through the cache) and renders every table it contains as
GitHub-flavored markdown. Use it to see what changed when an extractor reports a
structure error.`,
	Example: `  # Show the tables of the kilometric rates page
  ratescrape inspect kilometricRates

  # Inspect an arbitrary page with a custom header
  ratescrape inspect https://www.njc-cnm.gc.ca/directive/app_d/en -H "Accept-Language: en"

  # Dump the cleaned HTML instead of markdown
  ratescrape inspect cityRateLimits --raw`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringArrayVarP(&inspectHeaders, "header", "H", []string{}, "Custom headers (e.g., -H \"Accept-Language: en\")")
	inspectCmd.Flags().BoolVar(&inspectRaw, "raw", false, "Print cleaned HTML instead of markdown")
	inspectCmd.Flags().StringVar(&inspectSave, "save", "", "Write the result to a file instead of stdout")
}

func runInspect(cmd *cobra.Command, args []string) error {
	a := GetApp()
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	target := args[0]
	if src, ok := a.Orchestrator.Lookup(target); ok {
		if src.Endpoint == "" {
			return fmt.Errorf("source %s has no endpoint; set %s", src.ID, src.EnvVar)
		}
		target = src.Endpoint
	}
	if err := urlutil.ValidateURL(target); err != nil {
		return err
	}

	hdrs, err := headers.ParseHeaders(inspectHeaders)
	if err != nil {
		return err
	}

	log.Debug().Str("url", target).Msg("Inspecting page")
	body, err := a.Fetcher.Fetch(cmd.Context(), fetch.Request{URL: target, Headers: hdrs})
	if err != nil {
		return err
	}

	var result string
	if inspectRaw {
		result, err = output.CleanHTML(body)
		if err != nil {
			return err
		}
	} else {
		var n int
		result, n, err = output.TablesMarkdown(target, body)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintln(os.Stderr, ui.Info("no tables found on "+target))
		}
	}

	if inspectSave != "" {
		if err := os.WriteFile(inspectSave, []byte(result), 0644); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		fmt.Printf("%s Saved to %s\n", ui.Success("✓"), inspectSave)
		return nil
	}
	fmt.Print(strings.TrimRight(result, "\n") + "\n")
	return nil
}
