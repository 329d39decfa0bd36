package exchange

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/travelsaas/ratescrape/internal/engine"
	"github.com/travelsaas/ratescrape/internal/fetch"
)

// stubAPI answers with the payload chosen by respond for each query.
type stubAPI struct {
	queries []url.Values
	respond func(q url.Values) string
}

func (s *stubAPI) FetchJSON(_ context.Context, req fetch.Request, out interface{}) error {
	u, err := url.Parse(req.URL)
	if err != nil {
		return err
	}
	q := u.Query()
	s.queries = append(s.queries, q)
	return json.Unmarshal([]byte(s.respond(q)), out)
}

func fixedClock() time.Time {
	return time.Date(2024, 4, 30, 22, 0, 0, 0, time.UTC)
}

func newExtractor(api *stubAPI, params engine.Params) *Extractor {
	e := New(api, engine.Endpoint{URL: DefaultURL, EnvVar: EnvURL}, params)
	e.now = fixedClock
	return e
}

func TestExtract_FollowsWindowCorrection(t *testing.T) {
	api := &stubAPI{respond: func(q url.Values) string {
		if q.Get("s") == "2024-03-31" {
			return `{"new_dates": {"start": "2024-04-01", "end": "2024-04-03"}}`
		}
		return `{"name": "US Dollar", "start": "1.35", "end": 1.3612345678,
			"dates": {"2024-04-03": "1.3612345678", "2024-04-01": 1.35},
			"error": "Rates are provisional"}`
	}}

	td, err := newExtractor(api, nil).Extract(context.Background())
	require.NoError(t, err)

	require.Len(t, api.queries, 2)
	first := api.queries[0]
	require.Equal(t, "USD", first.Get("c"))
	require.Equal(t, "2024-04-30", first.Get("e"))
	require.Equal(t, "1", first.Get("flush"))
	require.Equal(t, "2024-04-01", api.queries[1].Get("s"))

	require.Equal(t, Headers, td.Headers)
	require.Len(t, td.Rows, 2)
	require.Equal(t, "2024-04-01", td.Rows[0]["date"].Text())
	require.Equal(t, "2024-04-03", td.Rows[1]["date"].Text())
	rate, _ := td.Rows[1]["rate"].Num()
	require.Equal(t, 1.36123457, rate)
	start, _ := td.Rows[0]["startRate"].Num()
	require.Equal(t, 1.35, start)
	require.Equal(t, "US Dollar", td.Rows[0]["currencyName"].Text())

	require.Equal(t, "NJC exchange rates (USD)", td.Metadata.Description)
	require.Equal(t, []string{"Rates are provisional"}, td.Metadata.Notes)
	require.Equal(t, []Window{
		{Start: "2024-03-31", End: "2024-04-30"},
		{Start: "2024-04-01", End: "2024-04-03"},
	}, td.Metadata.Context["attempts"].(map[string][]Window)["USD"])
}

func TestExtract_CorrectionWithEmptyDateList(t *testing.T) {
	api := &stubAPI{respond: func(q url.Values) string {
		if q.Get("s") == "2024-01-01" {
			return `{"dates": [], "new_dates": {"start": "2024-01-02", "end": "2024-01-31"}}`
		}
		return `{"name": "Euro", "start": 1.46, "end": 1.47, "dates": {"2024-01-02": 1.46}}`
	}}

	td, err := newExtractor(api, engine.Params{
		"currencies": []any{"EUR"},
		"startDate":  "2024-01-01",
		"endDate":    "2024-01-31",
	}).Extract(context.Background())
	require.NoError(t, err)

	require.Len(t, api.queries, 2)
	require.Equal(t, "2024-01-02", api.queries[1].Get("s"))
	require.Len(t, td.Rows, 1)
	require.Equal(t, "EUR", td.Rows[0]["currencyCode"].Text())
}

func TestDateRates_Unmarshal(t *testing.T) {
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(`{"start": 1, "end": 2, "dates": []}`), &p))
	require.NotNil(t, p.Dates)
	require.Empty(t, p.Dates)
	require.True(t, p.accepted())

	p = Payload{}
	require.NoError(t, json.Unmarshal([]byte(`{"dates": null}`), &p))
	require.Nil(t, p.Dates)

	require.Error(t, json.Unmarshal([]byte(`{"dates": [1.3]}`), &p))
}

func TestExtract_StopsAfterAttemptBudget(t *testing.T) {
	api := &stubAPI{respond: func(url.Values) string {
		return `{"new_dates": {"start": "2020-01-01", "end": "2020-01-31"}}`
	}}

	_, err := newExtractor(api, engine.Params{"startDate": "2024-01-01", "endDate": "2024-01-31"}).
		Extract(context.Background())

	require.Equal(t, engine.ErrCodeEmptyResult, engine.CodeOf(err))
	require.Contains(t, err.Error(), "No exchange rates available for USD between 2024-01-01 and 2024-01-31.")
	require.Len(t, api.queries, MaxAttempts)
}

func TestExtract_NoDataWithoutCorrection(t *testing.T) {
	api := &stubAPI{respond: func(url.Values) string { return `{"dates": {}}` }}

	_, err := newExtractor(api, nil).Extract(context.Background())
	require.Equal(t, engine.ErrCodeEmptyResult, engine.CodeOf(err))
	require.Len(t, api.queries, 1)
}

func TestRange(t *testing.T) {
	e := newExtractor(&stubAPI{}, nil)

	require.Equal(t, Window{Start: "2024-04-23", End: "2024-04-30"}, e.Range(engine.Params{"days": 7}))
	require.Equal(t, Window{Start: "2024-03-31", End: "2024-04-30"}, e.Range(engine.Params{"days": -2}))
	require.Equal(t, Window{Start: "2024-01-01", End: "2024-04-30"}, e.Range(engine.Params{"startDate": "2024-01-01"}))
}

func TestRate_Unmarshal(t *testing.T) {
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(`{"dates": {"a": "n/a", "b": null, "c": "0.5"}}`), &p))
	require.True(t, p.Dates["a"].Model().IsNull())
	require.True(t, p.Dates["b"].Model().IsNull())
	v, _ := p.Dates["c"].Model().Num()
	require.Equal(t, 0.5, v)
}
