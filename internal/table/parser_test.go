package table

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"

	"github.com/travelsaas/ratescrape/pkg/models"
)

func mustTable(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc.Find("table").First()
}

func rowText(r models.Row) map[string]string {
	out := make(map[string]string, len(r))
	for k, v := range r {
		out[k] = v.String()
	}
	return out
}

func TestParse_SingleHeaderRow(t *testing.T) {
	tbl := mustTable(t, `<table>
		<tr><th>Province/Territory</th><th>Cents/km</th></tr>
		<tr><td>Ontario</td><td>61.0</td></tr>
	</table>`)

	res := Parse(tbl, Options{})

	wantHeaders := []models.Header{
		{Label: "Province/Territory", Key: "provinceTerritory"},
		{Label: "Cents/km", Key: "centsKm"},
	}
	if diff := cmp.Diff(wantHeaders, res.Headers); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	want := map[string]string{"provinceTerritory": "Ontario", "centsKm": "61.0"}
	if diff := cmp.Diff(want, rowText(res.Rows[0])); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_KeysAreUnique(t *testing.T) {
	tbl := mustTable(t, `<table>
		<tr><th>Total</th><th>Total</th><th>Total!</th><th>$$</th></tr>
		<tr><td>1</td><td>2</td><td>3</td><td>4</td></tr>
	</table>`)

	res := Parse(tbl, Options{})

	seen := map[string]bool{}
	for _, h := range res.Headers {
		if seen[h.Key] {
			t.Fatalf("duplicate key %q in %v", h.Key, res.Headers)
		}
		seen[h.Key] = true
	}
	keys := []string{res.Headers[0].Key, res.Headers[1].Key, res.Headers[2].Key, res.Headers[3].Key}
	if diff := cmp.Diff([]string{"total", "total1", "total2", "column3"}, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_HeaderlessSpanShiftsAlignment(t *testing.T) {
	tbl := mustTable(t, `<table>
		<tr><th colspan="2"></th><th>Rate</th><th>Notes</th></tr>
		<tr><td>x</td><td>y</td><td>10</td><td>ok</td></tr>
	</table>`)

	res := Parse(tbl, Options{})

	if len(res.Headers) != 2 {
		t.Fatalf("expected blank header to be dropped, got %v", res.Headers)
	}
	want := map[string]string{"rate": "10", "notes": "ok"}
	if diff := cmp.Diff(want, rowText(res.Rows[0])); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_BodyColspanSkipsHeaders(t *testing.T) {
	tbl := mustTable(t, `<table>
		<tr><th>A</th><th>B</th><th>C</th></tr>
		<tr><td colspan="2">wide</td><td>c</td></tr>
	</table>`)

	res := Parse(tbl, Options{})

	want := map[string]string{"a": "wide", "b": "", "c": "c"}
	if diff := cmp.Diff(want, rowText(res.Rows[0])); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_DropsBlankRows(t *testing.T) {
	tbl := mustTable(t, `<table>
		<tr><th>A</th><th>B</th></tr>
		<tr><td>&nbsp;</td><td> </td></tr>
		<tr><td>1</td><td></td></tr>
		<tr></tr>
	</table>`)

	res := Parse(tbl, Options{})
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d: %v", len(res.Rows), res.Rows)
	}

	res = Parse(tbl, Options{IncludeEmpty: true})
	if len(res.Rows) != 3 {
		t.Fatalf("expected 3 rows with IncludeEmpty, got %d", len(res.Rows))
	}
}

func TestParse_MultiRowHeaderUsesLastRow(t *testing.T) {
	tbl := mustTable(t, `<table>
		<tr><th colspan="3">Meals</th></tr>
		<tr><th></th><th>Canada &amp; USA</th><th>Yukon</th></tr>
		<tr><td>Breakfast</td><td>$29.05</td><td>$30.10</td></tr>
	</table>`)

	res := Parse(tbl, Options{
		HeaderRows: 2,
		MapHeader: func(label string, ctx HeaderContext) string {
			if label == "" && ctx.CellIndex == 0 {
				return "Category"
			}
			return label
		},
		MapCell: func(text string, _ CellContext) models.Value {
			return models.String(strings.TrimPrefix(text, "$"))
		},
	})

	want := map[string]string{"category": "Breakfast", "canadaUsa": "29.05", "yukon": "30.10"}
	if diff := cmp.Diff(want, rowText(res.Rows[0])); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_FilterRowAndMissingAsNull(t *testing.T) {
	tbl := mustTable(t, `<table>
		<tr><th>City</th><th>Jan</th><th>Feb</th></tr>
		<tr><td>Skip</td><td>1</td><td>2</td></tr>
		<tr><td>Ottawa</td><td>150</td></tr>
	</table>`)

	res := Parse(tbl, Options{
		MissingAsNull: true,
		FilterRow: func(cells []Cell, _ int) bool {
			return len(cells) > 0 && cells[0].Text != "Skip"
		},
	})

	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	if !res.Rows[0]["feb"].IsNull() {
		t.Errorf("expected missing column to be null, got %v", res.Rows[0]["feb"])
	}
}

func TestToKey(t *testing.T) {
	cases := map[string]string{
		"Province/Territory":  "provinceTerritory",
		"Meal total":          "mealTotal",
		"  Daily   Rate ":     "dailyRate",
		"ACRF %":              "acrf",
		"Jan.":                "jan",
		"---":                 "",
		"Canada & USA - CAD":  "canadaUsaCad",
		"Incidental amount 2": "incidentalAmount2",
	}
	for in, want := range cases {
		if got := ToKey(in); got != want {
			t.Errorf("ToKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	if got := NormalizeText(" a  b \n\t c "); got != "a b c" {
		t.Errorf("NormalizeText = %q", got)
	}
}
