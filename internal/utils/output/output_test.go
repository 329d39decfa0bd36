package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/travelsaas/ratescrape/pkg/models"
)

func sampleTable(t *testing.T) *models.TableData {
	t.Helper()
	b := models.Builder{Now: func() time.Time { return time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC) }}
	td, err := b.Build(models.BuildInput{
		Source:  "https://example.gc.ca/rates",
		Headers: []models.Header{{Label: "City", Key: "city"}, {Label: "Rate", Key: "rate"}},
		Rows: []models.Row{
			{"city": models.String("Ottawa, ON"), "rate": models.Number(150)},
			{"city": models.String("Gatineau"), "rate": models.Null()},
		},
	})
	require.NoError(t, err)
	return td
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rates.json")
	td := sampleTable(t)

	require.NoError(t, WriteJSON(path, td))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(raw), "}\n"))
	require.Contains(t, string(raw), "\n  \"source\": \"https://example.gc.ca/rates\"")

	var back models.TableData
	require.NoError(t, ReadJSON(path, &back))
	require.Equal(t, td.Hash, back.Hash)
	require.Len(t, back.Rows, 2)
}

func TestWriteJSON_KeepsHTMLCharacters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domestic.json")
	td, err := models.Build(models.BuildInput{
		Source:  "https://example.gc.ca/rates",
		Headers: []models.Header{{Label: "Canada & USA", Key: "canadaUsa"}},
		Rows:    []models.Row{{"canadaUsa": models.String("29.05")}},
	})
	require.NoError(t, err)

	require.NoError(t, WriteJSON(path, td))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"label": "Canada & USA"`)
	require.NotContains(t, string(raw), `\u0026`)

	var back models.TableData
	require.NoError(t, ReadJSON(path, &back))
	require.NoError(t, models.Validate(&back))
}

func TestReadJSON_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

	var m models.Manifest
	err := ReadJSON(path, &m)
	require.ErrorContains(t, err, "decode manifest.json")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable(t)))
	require.Equal(t, "City,Rate\n\"Ottawa, ON\",150\nGatineau,\n", buf.String())
}

func TestTablesMarkdown(t *testing.T) {
	page := `<html><body>
<script>var x = 1;</script>
<h3>Appendix B</h3>
<table class="wide" style="color:red">
  <tr><th>Province</th><th colspan="1">Cents/km</th></tr>
  <tr><td><a href="/on">Ontario</a></td><td>61.0</td></tr>
</table>
<table><caption>Second</caption><tr><th>A</th></tr><tr><td>1</td></tr></table>
</body></html>`

	out, n, err := TablesMarkdown("https://example.gc.ca/rates/page.html", page)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Contains(t, out, "## Table 1: Appendix B")
	require.Contains(t, out, "## Table 2: Second")
	require.Contains(t, out, "Province")
	require.Contains(t, out, "(https://example.gc.ca/on)")
	require.NotContains(t, out, "var x")
}

func TestCleanHTML(t *testing.T) {
	out, err := CleanHTML(`<div class="x"><td colspan="2" style="a">v</td><form><input name="q"></form></div>`)
	require.NoError(t, err)
	require.NotContains(t, out, "class=")
	require.NotContains(t, out, "<input")
}
