package cli

import (
	"errors"
	"testing"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/stretchr/testify/require"

	"github.com/travelsaas/ratescrape/internal/orchestrator"
	"github.com/travelsaas/ratescrape/internal/ui"
	"github.com/travelsaas/ratescrape/pkg/models"
)

func TestResultRow(t *testing.T) {
	prev := ui.Enabled
	ui.Enabled = false
	t.Cleanup(func() { ui.Enabled = prev })

	td, err := models.Build(models.BuildInput{
		Source:  "https://www.njc-cnm.gc.ca/directive/d10/v238/s658/en",
		Headers: []models.Header{{Label: "Province", Key: "province"}},
		Rows:    []models.Row{{"province": models.String("Ontario")}},
	})
	require.NoError(t, err)

	src := orchestrator.Source{ID: "kilometricRates", EnvVar: "OFFICIAL_RATES_KILOMETRIC_URL"}

	ok := resultRow(orchestrator.Result{Source: src, Data: td, Path: "out/k.json", Changed: true})
	require.Equal(t, table.Row{"kilometricRates", "changed", 1, td.Hash[:12], "out/k.json"}, ok)

	skipped := resultRow(orchestrator.Result{Source: src, Skipped: true})
	require.Equal(t, "skipped", skipped[1])
	require.Equal(t, "missing OFFICIAL_RATES_KILOMETRIC_URL", skipped[4])

	failed := resultRow(orchestrator.Result{Source: src, Err: errors.New("boom\ntrace")})
	require.Equal(t, "failed", failed[1])
	require.Equal(t, "boom", failed[4])
}

func TestMoney(t *testing.T) {
	require.Equal(t, "$91.90", money(91.9))
	require.Equal(t, "100%", money("100%"))
}
