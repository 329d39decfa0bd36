// Package models defines the normalized artifacts written by the rates pipeline.
// Downstream consumers read these files, so the JSON shape is a contract.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimestampLayout is ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp marshals as an ISO-8601 UTC string.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to milliseconds in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Millisecond)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(TimestampLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}

// Header is a single column: a human label and the stable row key.
type Header struct {
	Label string `json:"label"`
	Key   string `json:"key"`
}

// Row maps header keys to cell values.
type Row map[string]Value

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Metadata is optional provenance attached to a table.
type Metadata struct {
	Description   string         `json:"description,omitempty"`
	EffectiveDate string         `json:"effectiveDate,omitempty"`
	Notes         []string       `json:"notes,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
}

func (m *Metadata) clone() *Metadata {
	if m == nil {
		return nil
	}
	out := *m
	if m.Notes != nil {
		out.Notes = append([]string(nil), m.Notes...)
	}
	if m.Context != nil {
		out.Context = make(map[string]any, len(m.Context))
		for k, v := range m.Context {
			out.Context[k] = v
		}
	}
	return &out
}

// TableData is the envelope persisted for every source.
type TableData struct {
	Source    string
	FetchedAt Timestamp
	Hash      string
	Headers   []Header
	Rows      []Row
	Metadata  *Metadata
}

// EffectiveDate returns the metadata effective date, if any.
func (t *TableData) EffectiveDate() string {
	if t == nil || t.Metadata == nil {
		return ""
	}
	return t.Metadata.EffectiveDate
}

type tableJSON struct {
	Source    string            `json:"source"`
	FetchedAt Timestamp         `json:"fetchedAt"`
	Hash      string            `json:"hash"`
	Headers   []Header          `json:"headers"`
	Rows      []json.RawMessage `json:"rows"`
	Metadata  *Metadata         `json:"metadata,omitempty"`
}

// MarshalJSON writes row keys in header order.
func (t TableData) MarshalJSON() ([]byte, error) {
	rows, err := encodeRows(t.Headers, t.Rows)
	if err != nil {
		return nil, err
	}
	headers := t.Headers
	if headers == nil {
		headers = []Header{}
	}
	return marshal(tableJSON{
		Source:    t.Source,
		FetchedAt: t.FetchedAt,
		Hash:      t.Hash,
		Headers:   headers,
		Rows:      rows,
		Metadata:  t.Metadata,
	})
}

func (t *TableData) UnmarshalJSON(data []byte) error {
	var raw struct {
		Source    string    `json:"source"`
		FetchedAt Timestamp `json:"fetchedAt"`
		Hash      string    `json:"hash"`
		Headers   []Header  `json:"headers"`
		Rows      []Row     `json:"rows"`
		Metadata  *Metadata `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = TableData{
		Source:    raw.Source,
		FetchedAt: raw.FetchedAt,
		Hash:      raw.Hash,
		Headers:   raw.Headers,
		Rows:      raw.Rows,
		Metadata:  raw.Metadata,
	}
	return nil
}

func encodeRows(headers []Header, rows []Row) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(rows))
	for i, row := range rows {
		b, err := encodeRow(headers, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// encodeRow serializes a row as an object whose keys follow header order.
// Keys unknown to the headers follow in sorted order.
func encodeRow(headers []Header, row Row) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	written := 0
	seen := make(map[string]bool, len(headers))

	write := func(key string, v Value) error {
		if written > 0 {
			buf.WriteByte(',')
		}
		k, err := marshal(key)
		if err != nil {
			return err
		}
		val, err := v.MarshalJSON()
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		written++
		return nil
	}

	for _, h := range headers {
		if seen[h.Key] {
			continue
		}
		seen[h.Key] = true
		v, ok := row[h.Key]
		if !ok {
			continue
		}
		if err := write(h.Key, v); err != nil {
			return nil, err
		}
	}

	var extra []string
	for k := range row {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		if err := write(k, row[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ManifestEntry summarizes one persisted artifact.
type ManifestEntry struct {
	ID            string `json:"id"`
	Hash          string `json:"hash"`
	RecordCount   int    `json:"recordCount"`
	Source        string `json:"source"`
	EffectiveDate string `json:"effectiveDate,omitempty"`
}

// Manifest indexes the artifacts of one batch run.
type Manifest struct {
	GeneratedAt Timestamp       `json:"generatedAt"`
	Sources     []ManifestEntry `json:"sources"`
}

// EntryFor builds the manifest entry for a table.
func EntryFor(id string, t *TableData) ManifestEntry {
	return ManifestEntry{
		ID:            id,
		Hash:          t.Hash,
		RecordCount:   len(t.Rows),
		Source:        t.Source,
		EffectiveDate: t.EffectiveDate(),
	}
}

// Lookup returns the entry with the given id.
func (m *Manifest) Lookup(id string) (ManifestEntry, bool) {
	if m == nil {
		return ManifestEntry{}, false
	}
	for _, e := range m.Sources {
		if e.ID == id {
			return e, true
		}
	}
	return ManifestEntry{}, false
}

// ValidationError lists every schema problem found in an artifact.
type ValidationError struct {
	Subject  string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Subject, strings.Join(e.Problems, "; "))
}
