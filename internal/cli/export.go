package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/travelsaas/ratescrape/internal/orchestrator"
	"github.com/travelsaas/ratescrape/internal/utils/output"
	"github.com/travelsaas/ratescrape/pkg/models"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <source-id>",
	Short: "Print a scraped artifact as CSV or markdown",
	Example: `  # Kilometric rates as CSV
  ratescrape export kilometricRates > rates.csv

  # City rate limits as a markdown table
  ratescrape export cityRateLimits --format markdown`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a == nil {
			return fmt.Errorf("application not initialized")
		}
		src, ok := a.Orchestrator.Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown source %q", args[0])
		}
		td, err := orchestrator.ReadArtifact(filepath.Join(a.Config.OutputDir, src.Output))
		if err != nil {
			return err
		}

		switch exportFormat {
		case "csv":
			return output.WriteCSV(os.Stdout, td)
		case "markdown", "md":
			renderMarkdown(td)
			return nil
		default:
			return fmt.Errorf("invalid format: %s (must be csv or markdown)", exportFormat)
		}
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "Output format: csv or markdown")
}

func renderMarkdown(td *models.TableData) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	header := make(table.Row, len(td.Headers))
	for i, h := range td.Headers {
		header[i] = h.Label
	}
	t.AppendHeader(header)
	for _, r := range td.Rows {
		row := make(table.Row, len(td.Headers))
		for i, h := range td.Headers {
			row[i] = r[h.Key].Text()
		}
		t.AppendRow(row)
	}
	t.RenderMarkdown()
}
