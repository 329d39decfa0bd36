// Package exchange pulls daily exchange rates from the NJC currency API.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/travelsaas/ratescrape/internal/engine"
	"github.com/travelsaas/ratescrape/internal/engine/metadata"
	"github.com/travelsaas/ratescrape/internal/fetch"
	"github.com/travelsaas/ratescrape/internal/retry"
	urlutil "github.com/travelsaas/ratescrape/internal/utils/url"
	"github.com/travelsaas/ratescrape/pkg/models"
)

const (
	ID          = "exchangeRates"
	EnvURL      = "OFFICIAL_RATES_EXCHANGE_URL"
	EnvParams   = "OFFICIAL_RATES_EXCHANGE_PARAMS"
	DefaultURL  = "https://www.njc-cnm.gc.ca/xe/en"
	DefaultDays = 30
	// MaxAttempts bounds the window corrections per currency.
	MaxAttempts = 3
	dateLayout  = "2006-01-02"
)

func DefaultParams() engine.Params {
	return engine.Params{
		"currencies": []string{"USD"},
		"days":       DefaultDays,
	}
}

var Headers = []models.Header{
	{Label: "Currency Code", Key: "currencyCode"},
	{Label: "Currency Name", Key: "currencyName"},
	{Label: "Date", Key: "date"},
	{Label: "Rate", Key: "rate"},
	{Label: "Start Rate", Key: "startRate"},
	{Label: "End Rate", Key: "endRate"},
}

// JSONFetcher decodes an uncached JSON response.
type JSONFetcher interface {
	FetchJSON(ctx context.Context, req fetch.Request, out interface{}) error
}

// Rate is a number the API sends either as a JSON number or a string.
type Rate struct {
	Value float64
	Valid bool
}

func (r *Rate) UnmarshalJSON(data []byte) error {
	*r = Rate{}
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	*r = Rate{Value: f, Valid: true}
	return nil
}

// Model rounds to eight decimals; invalid rates are null.
func (r Rate) Model() models.Value {
	if !r.Valid {
		return models.Null()
	}
	return models.Number(math.Round(r.Value*1e8) / 1e8)
}

// Window is an inclusive date range.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DateRates maps a date to its rate. The API encodes an empty map as [].
type DateRates map[string]Rate

func (d *DateRates) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null":
		*d = nil
		return nil
	case strings.HasPrefix(s, "["):
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			return fmt.Errorf("dates: expected an object, got a list of %d", len(list))
		}
		*d = DateRates{}
		return nil
	}
	m := map[string]Rate{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*d = m
	return nil
}

// Payload is the API response for one currency and window.
type Payload struct {
	Name     string    `json:"name"`
	Start    *Rate     `json:"start"`
	End      *Rate     `json:"end"`
	Dates    DateRates `json:"dates"`
	Error    string          `json:"error"`
	NewDates *Window         `json:"new_dates"`
}

func (p *Payload) accepted() bool {
	if p.Start != nil && p.End != nil && p.Dates != nil {
		return true
	}
	return len(p.Dates) > 0
}

// windowShiftError carries the corrected window suggested by the API.
type windowShiftError struct {
	window Window
}

func (e *windowShiftError) Error() string {
	return fmt.Sprintf("requested window out of range, retry with %s..%s", e.window.Start, e.window.End)
}

var errNoRates = errors.New("no rates in response")

type Extractor struct {
	fetcher   JSONFetcher
	endpoint  engine.Endpoint
	envParams engine.Params
	override  engine.Params
	now       func() time.Time
}

func New(f JSONFetcher, endpoint engine.Endpoint, envParams engine.Params) *Extractor {
	return &Extractor{fetcher: f, endpoint: endpoint, envParams: envParams, now: time.Now}
}

// WithOverride layers caller parameters over defaults and env parameters.
func (e *Extractor) WithOverride(p engine.Params) *Extractor {
	e.OverrideParams(p)
	return e
}

func (e *Extractor) OverrideParams(p engine.Params) { e.override = p }

func (e *Extractor) ID() string { return ID }

func (e *Extractor) Params() engine.Params {
	return engine.MergeParams(DefaultParams(), e.envParams, e.override)
}

// Range returns the requested window from startDate/endDate or days back
// from today, in UTC.
func (e *Extractor) Range(p engine.Params) Window {
	days := p.Int("days", DefaultDays)
	if days <= 0 {
		days = DefaultDays
	}
	today := e.now().UTC()
	w := Window{
		Start: p.String("startDate", ""),
		End:   p.String("endDate", ""),
	}
	if w.End == "" {
		w.End = today.Format(dateLayout)
	}
	if w.Start == "" {
		w.Start = today.AddDate(0, 0, -days).Format(dateLayout)
	}
	return w
}

type currencySummary struct {
	Name      any `json:"name"`
	StartRate any `json:"startRate"`
	EndRate   any `json:"endRate"`
	TotalDays int `json:"totalDays"`
}

func (e *Extractor) Extract(ctx context.Context) (*models.TableData, error) {
	source, err := e.endpoint.Resolve()
	if err != nil {
		return nil, err
	}

	p := e.Params()
	currencies, ok := p.Strings("currencies")
	if !ok || len(currencies) == 0 {
		currencies = []string{"USD"}
	}
	window := e.Range(p)

	var (
		rows     []models.Row
		notes    []string
		rangeCtx = map[string]any{"start": window.Start, "end": window.End}
		summary  = map[string]currencySummary{}
		attempts = map[string][]Window{}
	)

	for _, currency := range currencies {
		payload, tried, err := e.fetchCurrency(ctx, source, currency, window)
		attempts[currency] = tried
		if err != nil {
			return nil, err
		}

		dates := make([]string, 0, len(payload.Dates))
		for d := range payload.Dates {
			dates = append(dates, d)
		}
		sort.Strings(dates)

		name := models.Null()
		if payload.Name != "" {
			name = models.String(payload.Name)
		}
		startRate, endRate := optionalRate(payload.Start), optionalRate(payload.End)

		for _, d := range dates {
			rows = append(rows, models.Row{
				"currencyCode": models.String(currency),
				"currencyName": name,
				"date":         models.String(d),
				"rate":         payload.Dates[d].Model(),
				"startRate":    startRate,
				"endRate":      endRate,
			})
		}

		if payload.Error != "" {
			notes = append(notes, payload.Error)
		}
		if payload.NewDates != nil {
			rangeCtx["adjusted"] = *payload.NewDates
		}
		summary[currency] = currencySummary{
			Name:      nullable(name),
			StartRate: nullable(startRate),
			EndRate:   nullable(endRate),
			TotalDays: len(dates),
		}

		log.Debug().
			Str("currency", currency).
			Int("days", len(dates)).
			Int("attempts", len(tried)).
			Msg("Exchange rates retrieved")
	}

	if len(rows) == 0 {
		return nil, engine.NewEmptyResultError("No exchange rate data retrieved for the requested parameters.")
	}

	return engine.Build(models.BuildInput{
		Source:  source,
		Headers: Headers,
		Rows:    rows,
		Metadata: &models.Metadata{
			Description: fmt.Sprintf("NJC exchange rates (%s)", strings.Join(currencies, ", ")),
			Notes:       metadata.Unique(notes),
			Context: map[string]any{
				"range":      rangeCtx,
				"currencies": summary,
				"attempts":   attempts,
			},
		},
	})
}

// fetchCurrency requests the window, following API window corrections for up
// to MaxAttempts requests.
func (e *Extractor) fetchCurrency(ctx context.Context, source, currency string, requested Window) (*Payload, []Window, error) {
	current := requested
	var (
		tried  []Window
		result *Payload
	)

	cfg := retry.Config{
		MaxAttempts: MaxAttempts,
		Retryable: func(err error) bool {
			var shift *windowShiftError
			return errors.As(err, &shift)
		},
	}

	err := retry.WithRetry(ctx, cfg, func(int) error {
		reqURL, err := urlutil.WithQuery(source, map[string]string{
			"c":     currency,
			"s":     current.Start,
			"e":     current.End,
			"flush": "1",
		}, nil)
		if err != nil {
			return engine.NewFetchError(source, 0, err)
		}

		tried = append(tried, current)

		var payload Payload
		if err := e.fetcher.FetchJSON(ctx, fetch.Request{URL: reqURL}, &payload); err != nil {
			return err
		}
		if payload.accepted() {
			result = &payload
			return nil
		}
		if payload.NewDates != nil && payload.NewDates.Start != "" && payload.NewDates.End != "" {
			current = *payload.NewDates
			return &windowShiftError{window: current}
		}
		return errNoRates
	})

	if err == nil {
		return result, tried, nil
	}
	if engine.CodeOf(err) == engine.ErrCodeFetch {
		return nil, tried, err
	}
	if ctx.Err() != nil {
		return nil, tried, engine.NewFetchError(source, 0, ctx.Err())
	}
	if retry.IsExhausted(err) {
		log.Warn().
			Str("currency", currency).
			Int("attempts", len(tried)).
			Msg("Exchange window corrections exhausted")
	}
	return nil, tried, engine.NewEmptyResultError("No exchange rates available for %s between %s and %s.", currency, requested.Start, requested.End)
}

func optionalRate(r *Rate) models.Value {
	if r == nil {
		return models.Null()
	}
	return r.Model()
}

func nullable(v models.Value) any {
	if s, ok := v.Str(); ok {
		return s
	}
	if n, ok := v.Num(); ok {
		return n
	}
	return nil
}
