package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/travelsaas/ratescrape/internal/allowance"
	"github.com/travelsaas/ratescrape/internal/engine/domestic"
	"github.com/travelsaas/ratescrape/internal/orchestrator"
)

var mealsColumn string

var mealsCmd = &cobra.Command{
	Use:   "meals <days>",
	Short: "Compute tiered meal and incidental totals for a stay",
	Long: `Reads the domestic allowances artifact and applies the extended-stay tiers:
meals at 100% up to day 30, 75% from day 31 to 120 and 50% afterwards; incidentals
at 100% up to day 30 and the reduced rate afterwards.`,
	Example: `  # Totals for a 45-day stay in Canada or the USA
  ratescrape meals 45

  # Use the Yukon & Alaska column
  ratescrape meals 45 --column yukonAlaska`,
	Args: cobra.ExactArgs(1),
	RunE: runMeals,
}

func init() {
	rootCmd.AddCommand(mealsCmd)
	mealsCmd.Flags().StringVar(&mealsColumn, "column", allowance.DefaultColumn, "Rate column key (or key prefix)")
}

func runMeals(cmd *cobra.Command, args []string) error {
	a := GetApp()
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	days, err := strconv.Atoi(args[0])
	if err != nil || days < 0 {
		return fmt.Errorf("days must be a non-negative integer, got %q", args[0])
	}

	src, ok := a.Orchestrator.Lookup(domestic.ID)
	if !ok {
		return fmt.Errorf("source %s not configured", domestic.ID)
	}
	path := filepath.Join(a.Config.OutputDir, src.Output)
	td, err := orchestrator.ReadArtifact(path)
	if err != nil {
		return fmt.Errorf("read %s (run `ratescrape scrape %s` first): %w", path, domestic.ID, err)
	}

	rates, err := allowance.FromTable(td, mealsColumn)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("%d day stay", days))
	t.AppendHeader(table.Row{"Allowance", "Tier", "Days", "Daily", "Total"})
	for _, s := range rates.MealSegments(days) {
		t.AppendRow(table.Row{"Meals", s.Tier, s.Days, s.Rate, s.Total})
	}
	for _, s := range rates.IncidentalSegments(days) {
		t.AppendRow(table.Row{"Incidentals", s.Tier, s.Days, s.Rate, s.Total})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", rates.Meals(days) + rates.Incidentals(days)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, Transformer: money},
		{Number: 5, Align: text.AlignRight, Transformer: money, AlignFooter: text.AlignRight, TransformerFooter: money},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

func money(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("$%.2f", f)
	}
	return fmt.Sprint(v)
}
