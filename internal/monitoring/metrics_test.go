package monitoring

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	at := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	m.ObserveSuccess("kilometricRates", 13, true, 2*time.Second, at)
	m.ObserveSkipped("exchangeRates")
	m.ObserveFailure("cityRateLimits", "STRUCTURE", time.Second)

	path := filepath.Join(t.TempDir(), "ratescrape.prom")
	require.NoError(t, m.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)

	require.Contains(t, text, `ratescrape_source_rows{source="kilometricRates"} 13`)
	require.Contains(t, text, `ratescrape_source_changed{source="kilometricRates"} 1`)
	require.Contains(t, text, `ratescrape_source_runs_total{outcome="skipped",source="exchangeRates"} 1`)
	require.Contains(t, text, `ratescrape_errors_total{code="STRUCTURE"} 1`)
	require.Contains(t, text, `ratescrape_source_last_success_timestamp_seconds{source="kilometricRates"} 1.7119296e+09`)
}

func TestMetrics_FailureWithoutCode(t *testing.T) {
	m := NewMetrics()
	m.ObserveFailure("kilometricRates", "", 0)

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() != "ratescrape_errors_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "code" && lp.GetValue() == "UNKNOWN" {
					found = true
				}
			}
		}
	}
	require.True(t, found)
}
