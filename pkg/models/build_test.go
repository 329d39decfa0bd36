package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleHeaders() []Header {
	return []Header{
		{Label: "Province", Key: "province"},
		{Label: "Cents/km", Key: "centsKm"},
	}
}

func sampleRows() []Row {
	return []Row{
		{"province": String("Ontario"), "centsKm": String("61.0")},
		{"province": String("Yukon"), "centsKm": Number(68.5)},
	}
}

func TestBuild_HashIgnoresSourceAndTime(t *testing.T) {
	first := Builder{Now: func() time.Time { return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) }}
	second := Builder{Now: func() time.Time { return time.Date(2025, 1, 1, 12, 30, 0, 0, time.UTC) }}

	a, err := first.Build(BuildInput{Source: "https://a.example/rates", Headers: sampleHeaders(), Rows: sampleRows()})
	require.NoError(t, err)
	b, err := second.Build(BuildInput{Source: "https://b.example/other", Headers: sampleHeaders(), Rows: sampleRows()})
	require.NoError(t, err)

	require.Equal(t, a.Hash, b.Hash)
	require.Len(t, a.Hash, 64)
	require.NotEqual(t, a.FetchedAt, b.FetchedAt)
}

func TestBuild_HashIsOrderSensitive(t *testing.T) {
	rows := sampleRows()
	a, err := Build(BuildInput{Source: "https://a.example", Headers: sampleHeaders(), Rows: rows})
	require.NoError(t, err)

	reversed := []Row{rows[1], rows[0]}
	b, err := Build(BuildInput{Source: "https://a.example", Headers: sampleHeaders(), Rows: reversed})
	require.NoError(t, err)
	require.NotEqual(t, a.Hash, b.Hash)

	swapped := []Header{sampleHeaders()[1], sampleHeaders()[0]}
	c, err := Build(BuildInput{Source: "https://a.example", Headers: swapped, Rows: rows})
	require.NoError(t, err)
	require.NotEqual(t, a.Hash, c.Hash)
}

func TestContentHash_DoesNotEscapeHTML(t *testing.T) {
	headers := []Header{{Label: "Canada & USA", Key: "canadaUsa"}}
	rows := []Row{{"canadaUsa": String("<b>$29.05</b>")}}

	got, err := ContentHash(headers, rows)
	require.NoError(t, err)

	want := sha256.Sum256([]byte(`{"headers":[{"label":"Canada & USA","key":"canadaUsa"}],"rows":[{"canadaUsa":"<b>$29.05</b>"}]}`))
	require.Equal(t, hex.EncodeToString(want[:]), got)

	td, err := Build(BuildInput{Source: "https://a.example", Headers: headers, Rows: rows})
	require.NoError(t, err)
	out, err := td.MarshalJSON()
	require.NoError(t, err)
	require.Contains(t, string(out), `"label":"Canada & USA"`)
	require.Contains(t, string(out), `{"canadaUsa":"<b>$29.05</b>"}`)
}

func TestBuild_CopiesInput(t *testing.T) {
	rows := sampleRows()
	meta := &Metadata{Notes: []string{"one"}}
	td, err := Build(BuildInput{Source: "https://a.example", Headers: sampleHeaders(), Rows: rows, Metadata: meta})
	require.NoError(t, err)

	rows[0]["province"] = String("changed")
	meta.Notes[0] = "changed"

	got, _ := td.Rows[0]["province"].Str()
	require.Equal(t, "Ontario", got)
	require.Equal(t, "one", td.Metadata.Notes[0])
}

func TestBuild_RejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name    string
		in      BuildInput
		problem string
	}{
		{
			name:    "relative source",
			in:      BuildInput{Source: "/rates", Headers: sampleHeaders(), Rows: sampleRows()},
			problem: "source",
		},
		{
			name: "missing key",
			in: BuildInput{Source: "https://a.example", Headers: sampleHeaders(), Rows: []Row{
				{"province": String("Ontario")},
			}},
			problem: `missing key "centsKm"`,
		},
		{
			name: "extra key",
			in: BuildInput{Source: "https://a.example", Headers: sampleHeaders(), Rows: []Row{
				{"province": String("Ontario"), "centsKm": Null(), "other": Null()},
			}},
			problem: `unexpected key "other"`,
		},
		{
			name: "duplicate header key",
			in: BuildInput{Source: "https://a.example", Headers: []Header{
				{Label: "A", Key: "a"}, {Label: "A again", Key: "a"},
			}},
			problem: "duplicate key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.in)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			require.Contains(t, strings.Join(verr.Problems, "\n"), tt.problem)
		})
	}
}

func TestValidate_DetectsTamperedHash(t *testing.T) {
	td, err := Build(BuildInput{Source: "https://a.example", Headers: sampleHeaders(), Rows: sampleRows()})
	require.NoError(t, err)

	td.Rows[1]["centsKm"] = Number(1)
	require.Error(t, Validate(td))
}

func TestTableData_JSONKeepsHeaderOrder(t *testing.T) {
	td, err := Builder{Now: func() time.Time { return time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC) }}.Build(BuildInput{
		Source:  "https://a.example",
		Headers: []Header{{Label: "Zeta", Key: "zeta"}, {Label: "Alpha", Key: "alpha"}},
		Rows:    []Row{{"alpha": Null(), "zeta": Number(1.25)}},
	})
	require.NoError(t, err)

	out, err := json.Marshal(td)
	require.NoError(t, err)
	require.Contains(t, string(out), `"rows":[{"zeta":1.25,"alpha":null}]`)
	require.Contains(t, string(out), `"fetchedAt":"2024-04-01T08:00:00.000Z"`)

	var back TableData
	require.NoError(t, json.Unmarshal(out, &back))
	require.NoError(t, Validate(&back))
	require.Equal(t, td.Hash, back.Hash)
}

func TestNewManifest(t *testing.T) {
	td, err := Build(BuildInput{Source: "https://a.example", Headers: sampleHeaders(), Rows: sampleRows(),
		Metadata: &Metadata{EffectiveDate: "April 1, 2024"}})
	require.NoError(t, err)

	m, err := NewManifest(time.Now(), []ManifestEntry{EntryFor("kilometricRates", td)})
	require.NoError(t, err)
	entry, ok := m.Lookup("kilometricRates")
	require.True(t, ok)
	require.Equal(t, 2, entry.RecordCount)
	require.Equal(t, "April 1, 2024", entry.EffectiveDate)

	_, err = NewManifest(time.Now(), []ManifestEntry{{ID: "x", Hash: "nope", RecordCount: -1, Source: "https://a.example"}})
	require.Error(t, err)
}
