// Package international extracts the NJC meal and incidental allowances for
// travel outside Canada and the USA (Travel Directive Appendix D). The
// directory is paginated by country initial.
package international

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/travelsaas/ratescrape/internal/engine"
	"github.com/travelsaas/ratescrape/internal/engine/metadata"
	"github.com/travelsaas/ratescrape/internal/table"
	urlutil "github.com/travelsaas/ratescrape/internal/utils/url"
	"github.com/travelsaas/ratescrape/pkg/models"
)

const (
	ID          = "internationalAllowances"
	EnvURL      = "OFFICIAL_RATES_MEALS_INTL_URL"
	DefaultURL  = "https://www.njc-cnm.gc.ca/directive/app_d/en"
	Description = "International meal and incidental rates (Appendix D)"

	drvSelector = `select[name="drv_id"]`
	firstLetter = "A"
)

// ColumnNames label the allowance columns by position.
var ColumnNames = []string{
	"Accommodation tier",
	"City",
	"Breakfast",
	"Lunch",
	"Dinner",
	"Meal total",
	"Incidental amount",
	"Grand total",
}

var (
	singleLetter   = regexp.MustCompile(`^[A-Z]$`)
	cadSuffix      = regexp.MustCompile(`(?i)\s*CAD$`)
	currencyPrefix = regexp.MustCompile(`(?i)^Currency:\s*`)
)

type Extractor struct {
	fetcher  engine.PageFetcher
	endpoint engine.Endpoint
}

func New(f engine.PageFetcher, endpoint engine.Endpoint) *Extractor {
	return &Extractor{fetcher: f, endpoint: endpoint}
}

func (e *Extractor) ID() string { return ID }

// Navigation is what the first page says about the rest of the directory.
type Navigation struct {
	EffectiveDate string
	ArchiveDates  []string
	Letters       []string
	DrvID         string
}

// ReadNavigation reads the revision selector and the letter pager.
func ReadNavigation(doc *goquery.Document) Navigation {
	var nav Navigation
	var first string
	for i, opt := range metadata.SelectOptions(doc, drvSelector) {
		if i == 0 {
			first = opt.Value
		}
		if opt.Label != "" {
			nav.ArchiveDates = append(nav.ArchiveDates, opt.Label)
		}
		if opt.Selected && nav.DrvID == "" {
			nav.EffectiveDate = opt.Label
			nav.DrvID = opt.Value
		}
	}
	if nav.DrvID == "" {
		nav.DrvID = first
	}

	var letters []string
	doc.Find("nav .page-link").Each(func(_ int, s *goquery.Selection) {
		if l := table.NormalizeText(s.Text()); singleLetter.MatchString(l) {
			letters = append(letters, l)
		}
	})
	nav.Letters = metadata.Unique(letters)
	return nav
}

func (e *Extractor) Extract(ctx context.Context) (*models.TableData, error) {
	source, err := e.endpoint.Resolve()
	if err != nil {
		return nil, err
	}
	lang := map[string]string{"lang": "en"}
	firstURL, err := urlutil.WithQuery(source, nil, lang)
	if err != nil {
		return nil, engine.NewFetchError(source, 0, err)
	}

	html, err := e.fetcher.Page(ctx, firstURL)
	if err != nil {
		return nil, err
	}
	doc, err := engine.ParseDocument(html)
	if err != nil {
		return nil, err
	}

	nav := ReadNavigation(doc)
	acc := &accumulator{}
	if err := acc.addPage(firstLetter, doc); err != nil {
		return nil, err
	}

	for _, letter := range nav.Letters {
		if letter == firstLetter {
			continue
		}
		set := map[string]string{"let": letter}
		if nav.DrvID != "" {
			set["drv_id"] = nav.DrvID
		}
		pageURL, err := urlutil.WithQuery(source, set, lang)
		if err != nil {
			return nil, err
		}

		log.Debug().Str("letter", letter).Str("url", pageURL).Msg("Fetching international allowances page")
		html, err := e.fetcher.Page(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		pageDoc, err := engine.ParseDocument(html)
		if err != nil {
			return nil, err
		}
		if err := acc.addPage(letter, pageDoc); err != nil {
			return nil, err
		}
	}

	return acc.build(source, nav)
}

// ParseHeading splits "Country - Currency: XXX".
func ParseHeading(heading string) (country, currency string) {
	text := table.NormalizeText(heading)
	parts := strings.SplitN(text, " - ", 2)
	country = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		currency = strings.TrimSpace(currencyPrefix.ReplaceAllString(strings.TrimSpace(parts[1]), ""))
	}
	return country, currency
}

// SanitizeMoney strips the CAD suffix, dollar signs and stray spacing.
func SanitizeMoney(value string) string {
	value = cadSuffix.ReplaceAllString(value, "")
	value = strings.ReplaceAll(value, "$", "")
	return table.NormalizeText(value)
}

type accumulator struct {
	baseHeaders []models.Header
	rows        []models.Row
}

func (a *accumulator) addPage(letter string, doc *goquery.Document) error {
	var failure error
	doc.Find(".table-responsive").EachWithBreak(func(_ int, container *goquery.Selection) bool {
		tbl := container.Find("table").First()
		if tbl.Length() == 0 {
			return true
		}
		heading := container.PrevAllFiltered("h3").First()
		if heading.Length() == 0 {
			return true
		}
		country, currency := ParseHeading(heading.Text())

		cells := 0
		res := table.Parse(tbl, table.Options{
			HeaderRows: 2,
			MapHeader: func(_ string, ctx table.HeaderContext) string {
				cells++
				if ctx.CellIndex < len(ColumnNames) {
					return ColumnNames[ctx.CellIndex]
				}
				return ""
			},
			MapCell: func(text string, _ table.CellContext) models.Value {
				return models.String(SanitizeMoney(text))
			},
		})
		if cells != len(ColumnNames) {
			failure = engine.NewStructureError(
				"international allowances table for %q (letter %s) has %d columns, expected %d",
				country, letter, cells, len(ColumnNames)).
				WithDetail("country", country)
			return false
		}

		if a.baseHeaders == nil {
			a.baseHeaders = res.Headers
		}
		for _, r := range res.Rows {
			r["letter"] = models.String(letter)
			r["country"] = models.String(country)
			r["currency"] = models.String(currency)
			a.rows = append(a.rows, r)
		}
		return true
	})
	return failure
}

func (a *accumulator) build(source string, nav Navigation) (*models.TableData, error) {
	if a.baseHeaders == nil {
		return nil, engine.NewStructureError("No headers extracted from international allowances")
	}
	if len(a.rows) == 0 {
		return nil, engine.NewEmptyResultError("international allowances produced no rows")
	}

	headers := append([]models.Header{
		{Label: "Letter", Key: "letter"},
		{Label: "Country", Key: "country"},
		{Label: "Currency", Key: "currency"},
	}, a.baseHeaders...)

	rows := make([]models.Row, 0, len(a.rows))
	for _, r := range a.rows {
		out := make(models.Row, len(headers))
		for _, h := range headers {
			if v, ok := r[h.Key]; ok && !v.IsNull() {
				out[h.Key] = v
			} else {
				out[h.Key] = models.String("")
			}
		}
		rows = append(rows, out)
	}

	return engine.Build(models.BuildInput{
		Source:  source,
		Headers: headers,
		Rows:    rows,
		Metadata: &models.Metadata{
			Description:   Description,
			EffectiveDate: nav.EffectiveDate,
			Context: map[string]any{
				"archiveDates": nav.ArchiveDates,
				"letters":      nav.Letters,
				"drvId":        nav.DrvID,
			},
		},
	})
}
