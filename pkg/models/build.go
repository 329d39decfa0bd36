package models

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"time"
)

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ContentHash returns the sha256 hex digest of {"headers":[...],"rows":[...]}
// with every row serialized in header order. It ignores source and timestamps.
func ContentHash(headers []Header, rows []Row) (string, error) {
	if headers == nil {
		headers = []Header{}
	}
	encodedHeaders, err := marshal(headers)
	if err != nil {
		return "", err
	}
	encodedRows, err := encodeRows(headers, rows)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"headers":`)
	buf.Write(encodedHeaders)
	buf.WriteString(`,"rows":[`)
	for i, r := range encodedRows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(r)
	}
	buf.WriteString("]}")

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// marshal is json.Marshal without HTML escaping, so "&", "<" and ">" are
// hashed and persisted as written.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// BuildInput is the raw material for a TableData envelope.
type BuildInput struct {
	Source   string
	Headers  []Header
	Rows     []Row
	Metadata *Metadata
}

// Builder stamps, hashes and validates envelopes.
type Builder struct {
	Now func() time.Time
}

// Build is Builder{}.Build with the wall clock.
func Build(in BuildInput) (*TableData, error) {
	return Builder{}.Build(in)
}

// Build copies the input, stamps fetchedAt, computes the hash and validates
// the result. The returned envelope shares no memory with the input.
func (b Builder) Build(in BuildInput) (*TableData, error) {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	headers := append([]Header{}, in.Headers...)
	rows := make([]Row, 0, len(in.Rows))
	for _, r := range in.Rows {
		rows = append(rows, r.Clone())
	}

	hash, err := ContentHash(headers, rows)
	if err != nil {
		return nil, &ValidationError{Subject: "table", Problems: []string{err.Error()}}
	}

	td := &TableData{
		Source:    in.Source,
		FetchedAt: NewTimestamp(now()),
		Hash:      hash,
		Headers:   headers,
		Rows:      rows,
		Metadata:  in.Metadata.clone(),
	}
	if err := Validate(td); err != nil {
		return nil, err
	}
	return td, nil
}

// Validate checks an envelope against the artifact schema.
func Validate(t *TableData) error {
	if t == nil {
		return &ValidationError{Subject: "table", Problems: []string{"table is nil"}}
	}
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if err := checkSourceURL(t.Source); err != nil {
		add("source: %v", err)
	}
	if t.FetchedAt.IsZero() {
		add("fetchedAt: missing")
	}
	if !hashPattern.MatchString(t.Hash) {
		add("hash: must be 64 lowercase hex characters")
	}

	keys := make(map[string]bool, len(t.Headers))
	for i, h := range t.Headers {
		switch {
		case h.Key == "":
			add("headers[%d]: empty key", i)
		case keys[h.Key]:
			add("headers[%d]: duplicate key %q", i, h.Key)
		}
		keys[h.Key] = true
	}

	for i, row := range t.Rows {
		for _, h := range t.Headers {
			if _, ok := row[h.Key]; !ok {
				add("rows[%d]: missing key %q", i, h.Key)
			}
		}
		for k, v := range row {
			if !keys[k] {
				add("rows[%d]: unexpected key %q", i, k)
			}
			if n, ok := v.Num(); ok && (math.IsNaN(n) || math.IsInf(n, 0)) {
				add("rows[%d].%s: non-finite number", i, k)
			}
		}
	}

	if len(problems) == 0 && hashPattern.MatchString(t.Hash) {
		if sum, err := ContentHash(t.Headers, t.Rows); err != nil || sum != t.Hash {
			add("hash: does not match headers and rows")
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Subject: "table", Problems: problems}
	}
	return nil
}

// NewManifest builds and validates a manifest.
func NewManifest(generatedAt time.Time, entries []ManifestEntry) (*Manifest, error) {
	m := &Manifest{
		GeneratedAt: NewTimestamp(generatedAt),
		Sources:     append([]ManifestEntry{}, entries...),
	}
	if err := ValidateManifest(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ValidateManifest checks a manifest against the artifact schema.
func ValidateManifest(m *Manifest) error {
	if m == nil {
		return &ValidationError{Subject: "manifest", Problems: []string{"manifest is nil"}}
	}
	var problems []string
	if m.GeneratedAt.IsZero() {
		problems = append(problems, "generatedAt: missing")
	}
	ids := make(map[string]bool, len(m.Sources))
	for i, e := range m.Sources {
		if e.ID == "" {
			problems = append(problems, fmt.Sprintf("sources[%d]: empty id", i))
		} else if ids[e.ID] {
			problems = append(problems, fmt.Sprintf("sources[%d]: duplicate id %q", i, e.ID))
		}
		ids[e.ID] = true
		if !hashPattern.MatchString(e.Hash) {
			problems = append(problems, fmt.Sprintf("sources[%d]: invalid hash", i))
		}
		if e.RecordCount < 0 {
			problems = append(problems, fmt.Sprintf("sources[%d]: negative recordCount", i))
		}
		if err := checkSourceURL(e.Source); err != nil {
			problems = append(problems, fmt.Sprintf("sources[%d].source: %v", i, err))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Subject: "manifest", Problems: problems}
	}
	return nil
}

func checkSourceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an absolute http(s) URL, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
