// Package carrental extracts the government car rental rates from the PSPC
// accommodation and car rental directory search form.
//
// Each car type is one search: the form page is loaded to collect its hidden
// ASP.NET state and session cookie, then submitted back with the search
// selections. Nothing carries over between searches except the results.
package carrental

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/travelsaas/ratescrape/internal/engine"
	"github.com/travelsaas/ratescrape/internal/engine/metadata"
	"github.com/travelsaas/ratescrape/internal/fetch"
	"github.com/travelsaas/ratescrape/internal/table"
	"github.com/travelsaas/ratescrape/pkg/models"
)

const (
	ID            = "carRentalRates"
	EnvURL        = "OFFICIAL_RATES_CAR_SEARCH_URL"
	EnvParams     = "OFFICIAL_RATES_CAR_SEARCH_PARAMS"
	DefaultURL    = "https://rehelv-acrd.tpsgc-pwgsc.gc.ca/rechercher-search-4-eng.aspx"
	fieldPrefix   = "ctl00$ContentMain$"
	resultsSelect = "table.gatherMenu"
)

// DefaultParams searches Ottawa, Ontario for compact cars.
func DefaultParams() engine.Params {
	return engine.Params{
		"country":  "1",
		"province": "ON",
		"city":     "398",
		"location": "X",
		"rateType": "X",
		"sort":     "R",
		"carTypes": []string{"B"},
	}
}

var currencyByCountry = map[string]string{
	"1": "CAD",
	"2": "USD",
}

var (
	notePattern   = regexp.MustCompile(`(?i)NOTE`)
	moneyStrip    = regexp.MustCompile(`[^0-9.\-]`)
	leadingNumber = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
)

// rateKeys mark a row as a data row when any of them has a value.
var rateKeys = []string{"dailyRate", "weeklyRate", "monthlyRate", "longTermRate", "subTotal"}

// Headers are the output columns.
var Headers = []models.Header{
	{Label: "Company", Key: "company"},
	{Label: "Location Type", Key: "locationType"},
	{Label: "Car Type", Key: "carType"},
	{Label: "Car Type Label", Key: "carTypeLabel"},
	{Label: "Daily Rate", Key: "dailyRate"},
	{Label: "Weekly Rate", Key: "weeklyRate"},
	{Label: "Monthly Rate", Key: "monthlyRate"},
	{Label: "Long Term Rate", Key: "longTermRate"},
	{Label: "Vehicle Licensing Fee", Key: "vlf"},
	{Label: "Airport Concession Fee (%)", Key: "acrfPercent"},
	{Label: "Additional Charges (ACSRF)", Key: "acsrf"},
	{Label: "Subtotal", Key: "subTotal"},
	{Label: "Collision Damage Insurance", Key: "cdi"},
	{Label: "Currency", Key: "currency"},
}

// FormFetcher performs the uncached GET and POST of the search flow.
type FormFetcher interface {
	Get(ctx context.Context, rawURL string, headers map[string]string) (*fetch.Response, error)
	PostForm(ctx context.Context, rawURL string, form url.Values, cookies []*http.Cookie, headers map[string]string) (*fetch.Response, error)
}

// SearchOptions are the form selections for one car type.
type SearchOptions struct {
	Country  string
	Province string
	City     string
	Location string
	RateType string
	Sort     string
	CarType  string
}

type Extractor struct {
	fetcher   FormFetcher
	endpoint  engine.Endpoint
	envParams engine.Params
	override  engine.Params
}

// New creates the extractor. envParams come from OFFICIAL_RATES_CAR_SEARCH_PARAMS.
func New(f FormFetcher, endpoint engine.Endpoint, envParams engine.Params) *Extractor {
	return &Extractor{fetcher: f, endpoint: endpoint, envParams: envParams}
}

// WithOverride layers caller parameters over defaults and env parameters.
func (e *Extractor) WithOverride(p engine.Params) *Extractor {
	e.OverrideParams(p)
	return e
}

func (e *Extractor) OverrideParams(p engine.Params) { e.override = p }

func (e *Extractor) ID() string { return ID }

// Params returns the effective merged parameters.
func (e *Extractor) Params() engine.Params {
	return engine.MergeParams(DefaultParams(), e.envParams, e.override)
}

type labeledValue struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func (e *Extractor) Extract(ctx context.Context) (*models.TableData, error) {
	source, err := e.endpoint.Resolve()
	if err != nil {
		return nil, err
	}

	p := e.Params()
	carTypes, ok := p.Strings("carTypes")
	if !ok || len(carTypes) == 0 {
		carTypes = []string{p.String("carType", "B")}
	}

	var (
		rows      []models.Row
		notes     []string
		typeSeen  = map[string]bool{}
		typeList  []string
		searchCtx = map[string]any{
			"country":  nil,
			"province": nil,
			"city":     nil,
			"location": nil,
			"rateType": nil,
		}
		carTypeLabels = map[string]string{}
		cityLabel     string
	)

	for _, carType := range carTypes {
		opts := SearchOptions{
			Country:  p.String("country", "1"),
			Province: p.String("province", "ON"),
			City:     p.String("city", "398"),
			Location: p.String("location", "X"),
			RateType: p.String("rateType", "X"),
			Sort:     p.String("sort", "R"),
			CarType:  carType,
		}

		form, err := loadForm(ctx, e.fetcher, source, opts)
		if err != nil {
			return nil, err
		}
		results, err := form.submit(ctx, e.fetcher, opts)
		if err != nil {
			return nil, err
		}

		found, pageNotes := results.parse()
		log.Debug().Str("car_type", carType).Int("rows", len(found)).Msg("Car rental search completed")
		rows = append(rows, found...)
		notes = append(notes, pageNotes...)

		l := form.labels
		setLabel(searchCtx, "country", opts.Country, l.country)
		setLabel(searchCtx, "province", opts.Province, l.province)
		setLabel(searchCtx, "city", opts.City, l.city)
		setLabel(searchCtx, "location", opts.Location, l.location)
		setLabel(searchCtx, "rateType", opts.RateType, l.rateType)
		if l.city != "" {
			cityLabel = l.city
		}

		label := l.carType
		if label == "" {
			label = carType
		}
		carTypeLabels[carType] = label
		if !typeSeen[label] {
			typeSeen[label] = true
			typeList = append(typeList, label)
		}
	}
	searchCtx["carTypes"] = carTypeLabels

	if len(rows) == 0 {
		return nil, engine.NewEmptyResultError("No car rental rates returned for the requested parameters.")
	}

	if cityLabel == "" {
		cityLabel = "Selected city"
	}

	return engine.Build(models.BuildInput{
		Source:  source,
		Headers: Headers,
		Rows:    rows,
		Metadata: &models.Metadata{
			Description: fmt.Sprintf("Government car rental rates for %s (%s)", cityLabel, strings.Join(typeList, ", ")),
			Notes:       metadata.Unique(notes),
			Context:     searchCtx,
		},
	})
}

func setLabel(ctx map[string]any, key, value, label string) {
	if label != "" {
		ctx[key] = labeledValue{Value: value, Label: label}
	}
}

type optionLabels struct {
	country, province, city, location, rateType, carType string
}

type hiddenField struct {
	name, value string
}

// formPage is the search form as served by the initial GET.
type formPage struct {
	url     string
	hidden  []hiddenField
	cookies []*http.Cookie
	labels  optionLabels
}

// resultsPage is the response to the submitted search.
type resultsPage struct {
	doc    *goquery.Document
	opts   SearchOptions
	labels optionLabels
}

func loadForm(ctx context.Context, f FormFetcher, source string, opts SearchOptions) (*formPage, error) {
	resp, err := f.Get(ctx, source, nil)
	if err != nil {
		return nil, err
	}
	doc, err := engine.ParseDocument(resp.Body)
	if err != nil {
		return nil, err
	}

	fp := &formPage{url: source, cookies: resp.Cookies}
	doc.Find(`input[type="hidden"]`).Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := in.Attr("value")
		fp.hidden = append(fp.hidden, hiddenField{name: name, value: value})
	})

	fp.labels = optionLabels{
		country:  metadata.OptionLabel(doc, "#ContentMain_ddlCountry", opts.Country),
		province: metadata.OptionLabel(doc, "#ContentMain_ddlProvince", opts.Province),
		city:     metadata.OptionLabel(doc, "#ContentMain_ddlCity", opts.City),
		location: metadata.OptionLabel(doc, "#ContentMain_ddlLocation", opts.Location),
		rateType: metadata.OptionLabel(doc, "#ContentMain_ddlRateType", opts.RateType),
		carType:  metadata.OptionLabel(doc, "#ContentMain_ddlCarType", opts.CarType),
	}
	return fp, nil
}

// Form builds the urlencoded search submission.
func (fp *formPage) Form(opts SearchOptions) url.Values {
	form := url.Values{}
	form.Set("__EVENTTARGET", "")
	form.Set("__EVENTARGUMENT", "")
	form.Set("__LASTFOCUS", "")
	for _, h := range fp.hidden {
		form.Set(h.name, h.value)
	}
	form.Set(fieldPrefix+"ddlCountry", opts.Country)
	form.Set(fieldPrefix+"ddlProvince", opts.Province)
	form.Set(fieldPrefix+"ddlCity", opts.City)
	form.Set(fieldPrefix+"ddlLocation", opts.Location)
	form.Set(fieldPrefix+"ddlRateType", opts.RateType)
	form.Set(fieldPrefix+"ddlCarType", opts.CarType)
	form.Set(fieldPrefix+"lbSort", opts.Sort)
	form.Set(fieldPrefix+"btnSearch", "Search")
	return form
}

func (fp *formPage) submit(ctx context.Context, f FormFetcher, opts SearchOptions) (*resultsPage, error) {
	resp, err := f.PostForm(ctx, fp.url, fp.Form(opts), fp.cookies, map[string]string{"Referer": fp.url})
	if err != nil {
		return nil, err
	}
	doc, err := engine.ParseDocument(resp.Body)
	if err != nil {
		return nil, err
	}
	return &resultsPage{doc: doc, opts: opts, labels: fp.labels}, nil
}

func (rp *resultsPage) parse() ([]models.Row, []string) {
	return ParseResults(rp.doc, rp.opts, rp.labels.location, rp.labels.carType)
}

// ParseResults reads the results table. Rows without any rate are section
// headers; their company cell names the location type of the rows below.
func ParseResults(doc *goquery.Document, opts SearchOptions, locationLabel, carTypeLabel string) ([]models.Row, []string) {
	notes := metadata.Unique(filterNotes(metadata.TextSections(doc, "p")))

	tbl := doc.Find(resultsSelect).First()
	if tbl.Length() == 0 {
		return nil, notes
	}

	res := table.Parse(tbl, table.Options{})

	currency := currencyByCountry[opts.Country]
	if currency == "" {
		currency = "CAD"
	}
	if carTypeLabel == "" {
		carTypeLabel = opts.CarType
	}
	fallbackLocation := locationLabel
	if fallbackLocation == "" {
		fallbackLocation = "All"
	}

	var rows []models.Row
	currentLocation := ""
	for _, r := range res.Rows {
		if !hasRates(r) {
			if company := r["company"].Text(); company != "" {
				currentLocation = company
			}
			continue
		}

		location := currentLocation
		if location == "" {
			location = fallbackLocation
		}

		company := models.Null()
		if v, ok := r["company"]; ok {
			company = models.String(v.Text())
		}

		rows = append(rows, models.Row{
			"company":      company,
			"locationType": models.String(location),
			"carType":      models.String(opts.CarType),
			"carTypeLabel": models.String(carTypeLabel),
			"dailyRate":    ToMoney(r["dailyRate"].Text()),
			"weeklyRate":   ToMoney(r["weeklyRate"].Text()),
			"monthlyRate":  ToMoney(r["monthlyRate"].Text()),
			"longTermRate": ToMoney(r["longTermRate"].Text()),
			"vlf":          ToMoney(r["vlf"].Text()),
			"acrfPercent":  ToPercent(r["acrf"].Text()),
			"acsrf":        ToMoney(r["acsrf"].Text()),
			"subTotal":     ToMoney(r["subTotal"].Text()),
			"cdi":          ToMoney(r["cdi"].Text()),
			"currency":     models.String(currency),
		})
	}
	return rows, notes
}

func hasRates(r models.Row) bool {
	for _, k := range rateKeys {
		if r[k].Text() != "" {
			return true
		}
	}
	return false
}

func filterNotes(texts []string) []string {
	var out []string
	for _, t := range texts {
		if notePattern.MatchString(t) {
			out = append(out, t)
		}
	}
	return out
}

// ToMoney parses an amount rounded to cents; blank or unparsable is null.
func ToMoney(value string) models.Value {
	return rounded(value, 2)
}

// ToPercent parses a percentage rounded to four decimals.
func ToPercent(value string) models.Value {
	return rounded(value, 4)
}

func rounded(value string, places int) models.Value {
	if value == "" {
		return models.Null()
	}
	m := leadingNumber.FindString(moneyStrip.ReplaceAllString(value, ""))
	if m == "" {
		return models.Null()
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return models.Null()
	}
	scale := math.Pow(10, float64(places))
	return models.Number(math.Round(f*scale) / scale)
}
