// Package citylimits extracts the PSPC accommodation city rate limits for
// Canada, the United States and international cities.
package citylimits

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/travelsaas/ratescrape/internal/engine"
	"github.com/travelsaas/ratescrape/internal/engine/metadata"
	"github.com/travelsaas/ratescrape/internal/table"
	"github.com/travelsaas/ratescrape/pkg/models"
)

const (
	ID                 = "cityRateLimits"
	EnvURL             = "OFFICIAL_RATES_CITY_LIMITS_URL"
	DefaultURL         = "https://rehelv-acrd.tpsgc-pwgsc.gc.ca/lth-crl-eng.aspx"
	DefaultDescription = "City rate limits"
)

// Section is one country group on the page.
type Section struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	RegionKey string `json:"-"`
	Currency  string `json:"currency"`
}

// Sections lists the page containers in output order.
var Sections = []Section{
	{ID: "CityLimitTableRepeater", Category: "Canada", RegionKey: "province", Currency: "CAD"},
	{ID: "USACityLimitTableRepeater", Category: "United States", RegionKey: "state", Currency: "USD"},
	{ID: "ForeignCityLimitTableRepeater", Category: "International", RegionKey: "country", Currency: "Local"},
}

// MonthKeys are the month column keys as labelled on the page.
var MonthKeys = []string{"jan", "feb", "mar", "apr", "may", "june", "july", "aug", "sept", "oct", "nov", "dec"}

var (
	nonNumeric    = regexp.MustCompile(`[^0-9.]`)
	leadingNumber = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)`)
	trailingDot   = regexp.MustCompile(`\.$`)
)

type Extractor struct {
	fetcher  engine.PageFetcher
	endpoint engine.Endpoint
}

func New(f engine.PageFetcher, endpoint engine.Endpoint) *Extractor {
	return &Extractor{fetcher: f, endpoint: endpoint}
}

func (e *Extractor) ID() string { return ID }

func (e *Extractor) Extract(ctx context.Context) (*models.TableData, error) {
	source, err := e.endpoint.Resolve()
	if err != nil {
		return nil, err
	}
	html, err := e.fetcher.Page(ctx, source)
	if err != nil {
		return nil, err
	}
	return Parse(source, html)
}

// Headers returns the fixed output columns.
func Headers() []models.Header {
	headers := []models.Header{
		{Label: "Category", Key: "category"},
		{Label: "Letter", Key: "letter"},
		{Label: "City", Key: "city"},
		{Label: "Region", Key: "region"},
		{Label: "Currency", Key: "currency"},
	}
	for _, m := range MonthKeys {
		headers = append(headers, models.Header{Label: strings.ToUpper(m[:1]) + m[1:], Key: m})
	}
	return headers
}

// ToNumber strips everything but digits and dots and parses the leading
// number. Unparsable input is null.
func ToNumber(value string) models.Value {
	m := leadingNumber.FindString(nonNumeric.ReplaceAllString(value, ""))
	if m == "" {
		return models.Null()
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return models.Null()
	}
	return models.Number(f)
}

// Parse extracts every section table on the page.
func Parse(source, html string) (*models.TableData, error) {
	doc, err := engine.ParseDocument(html)
	if err != nil {
		return nil, err
	}

	var rows []models.Row
	found := 0
	for _, section := range Sections {
		container := doc.Find("#" + section.ID)
		if container.Length() == 0 {
			log.Debug().Str("section", section.ID).Msg("City limit section not present")
			continue
		}
		found++
		rows = append(rows, parseSection(container, section)...)
	}

	if found == 0 {
		return nil, engine.NewStructureError("city rate limit sections not found at %s", source)
	}
	if len(rows) == 0 {
		return nil, engine.NewEmptyResultError("No city rate limit rows were extracted. Verify the page structure.")
	}

	description := metadata.FirstText(doc, "#ContentMain_LabelResults", "#CanadianCityLimits h2")
	if description == "" {
		description = DefaultDescription
	}

	return engine.Build(models.BuildInput{
		Source:  source,
		Headers: Headers(),
		Rows:    rows,
		Metadata: &models.Metadata{
			Description:   description,
			EffectiveDate: metadata.MetaContent(doc, "dcterms.modified"),
			Context: map[string]any{
				"sections": Sections,
			},
		},
	})
}

func parseSection(container *goquery.Selection, section Section) []models.Row {
	var rows []models.Row
	container.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		caption := table.NormalizeText(tbl.Find("caption").Text())
		res := table.Parse(tbl, table.Options{
			MapHeader: func(label string, _ table.HeaderContext) string {
				return strings.TrimSpace(trailingDot.ReplaceAllString(label, ""))
			},
		})

		cityKey := findKey(res.Headers, "city")
		for _, r := range res.Rows {
			letter := models.Null()
			if caption != "" {
				letter = models.String(caption)
			}
			record := models.Row{
				"category": models.String(section.Category),
				"letter":   letter,
				"city":     textOf(r, cityKey),
				"region":   textOf(r, section.RegionKey),
				"currency": models.String(section.Currency),
			}
			for _, m := range MonthKeys {
				if v, ok := r[m]; ok {
					record[m] = ToNumber(v.Text())
				} else {
					record[m] = models.Null()
				}
			}
			rows = append(rows, record)
		}
	})
	return rows
}

// findKey returns key itself when present, otherwise the first header key
// derived from it (for example "city2" when the label repeats).
func findKey(headers []models.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return key
		}
	}
	for _, h := range headers {
		if strings.HasPrefix(h.Key, key) {
			return h.Key
		}
	}
	return key
}

func textOf(r models.Row, key string) models.Value {
	if v, ok := r[key]; ok && !v.IsNull() {
		return models.String(v.Text())
	}
	return models.String("")
}
