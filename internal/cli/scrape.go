package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/travelsaas/ratescrape/internal/config"
	"github.com/travelsaas/ratescrape/internal/engine"
	"github.com/travelsaas/ratescrape/internal/orchestrator"
	"github.com/travelsaas/ratescrape/internal/runctx"
	"github.com/travelsaas/ratescrape/internal/ui"
)

var (
	scrapeParams     string
	scrapeNoProgress bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [source-id...]",
	Short: "Scrape official rate sources and write artifacts",
	Long: `Runs the source extractors in order and writes one JSON artifact per source.

Without arguments every source runs and manifest.json is rewritten. Optional sources
(car rental, exchange rates) are skipped when their endpoint is not configured.
With source ids only those sources run and the manifest is left untouched.`,
	Example: `  # Scrape everything into data/official-rates
  ratescrape scrape

  # Refresh only the kilometric rates, ignoring cached pages
  ratescrape scrape kilometricRates --force

  # Search car rental rates for two car types
  ratescrape scrape carRentalRates --params '{"carTypes": ["B", "C"]}'`,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&scrapeParams, "params", "", "JSON object of parameters for a single source")
	scrapeCmd.Flags().BoolVar(&scrapeNoProgress, "no-progress", false, "Disable the progress bar")
}

func runScrape(cmd *cobra.Command, args []string) error {
	a := GetApp()
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	var overrides map[string]engine.Params
	if scrapeParams != "" {
		if len(args) != 1 {
			return fmt.Errorf("--params requires exactly one source id")
		}
		p, err := config.ParseParamsStrict(scrapeParams)
		if err != nil {
			return fmt.Errorf("--params: %w", err)
		}
		overrides = map[string]engine.Params{args[0]: p}
	}

	total := len(args)
	if total == 0 {
		total = len(a.Orchestrator.Sources())
	}
	obs := newProgressObserver(os.Stderr, total, !scrapeNoProgress && !a.Config.JSONLog)
	orch := orchestrator.New(a.Orchestrator.Sources(), orchestrator.Options{
		OutputDir: a.Config.OutputDir,
		Observer:  obs,
		Metrics:   a.Metrics,
	})

	ctx := runctx.WithRun(cmd.Context())
	defer func() {
		if err := a.WriteMetrics(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error writing metrics")
		}
	}()

	if len(args) == 0 {
		manifest, err := orch.RunAll(ctx)
		obs.finish()
		printResults(os.Stdout, obs.results)
		if err != nil {
			return runctx.NewRunError(ctx, err)
		}
		fmt.Printf("%s manifest with %d sources written to %s\n",
			ui.Success("✓"), len(manifest.Sources), orch.ManifestPath())
		return nil
	}

	_, err := orch.RunSources(ctx, args, overrides)
	obs.finish()
	printResults(os.Stdout, obs.results)
	if err != nil {
		return runctx.NewRunError(ctx, err)
	}
	return nil
}

// progressObserver drives a progress bar and collects results for the
// summary table.
type progressObserver struct {
	bar     *progressbar.ProgressBar
	results []orchestrator.Result
}

func newProgressObserver(w io.Writer, total int, show bool) *progressObserver {
	o := &progressObserver{}
	if show {
		o.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Scraping"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
	}
	return o
}

func (o *progressObserver) SourceStarted(src orchestrator.Source) {
	if o.bar != nil {
		o.bar.Describe(src.ID)
	}
}

func (o *progressObserver) SourceFinished(res orchestrator.Result) {
	o.results = append(o.results, res)
	if o.bar != nil {
		_ = o.bar.Add(1)
	}
}

func (o *progressObserver) finish() {
	if o.bar != nil {
		_ = o.bar.Finish()
	}
}

func printResults(w io.Writer, results []orchestrator.Result) {
	if len(results) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Source", "Status", "Rows", "Hash", "Output"})
	for _, r := range results {
		t.AppendRow(resultRow(r))
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func resultRow(r orchestrator.Result) table.Row {
	switch {
	case r.Skipped:
		return table.Row{r.Source.ID, ui.Warn("skipped"), "-", "-", "missing " + r.Source.EnvVar}
	case r.Err != nil:
		return table.Row{r.Source.ID, ui.Error("failed"), "-", "-", firstLine(r.Err.Error())}
	}
	status := "unchanged"
	if r.Changed {
		status = ui.Success("changed")
	}
	return table.Row{r.Source.ID, status, len(r.Data.Rows), ui.Muted(r.Data.Hash[:12]), r.Path}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
