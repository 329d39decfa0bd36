package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/travelsaas/ratescrape/internal/orchestrator"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the manifest of the last full scrape",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a == nil {
			return fmt.Errorf("application not initialized")
		}

		path := a.Orchestrator.ManifestPath()
		manifest, err := orchestrator.ReadManifest(path)
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("no manifest at %s; run `ratescrape scrape` first", path)
		}
		if err != nil {
			return fmt.Errorf("read manifest: %w", err)
		}

		fmt.Printf("Generated %s\n", manifest.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Records", "Effective", "Hash", "Source"})
		for _, e := range manifest.Sources {
			t.AppendRow(table.Row{e.ID, e.RecordCount, e.EffectiveDate, e.Hash[:12], e.Source})
		}
		for _, s := range a.Orchestrator.Sources() {
			if _, ok := manifest.Lookup(s.ID); !ok {
				t.AppendRow(table.Row{s.ID, "-", "", "", "(not in manifest)"})
			}
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
