// Package domestic extracts the NJC meal and incidental allowances for travel
// within Canada and the USA (Travel Directive Appendix C).
package domestic

import (
	"context"
	"regexp"
	"strings"

	"github.com/travelsaas/ratescrape/internal/engine"
	"github.com/travelsaas/ratescrape/internal/engine/metadata"
	"github.com/travelsaas/ratescrape/internal/table"
	"github.com/travelsaas/ratescrape/pkg/models"
)

const (
	ID          = "domesticAllowances"
	EnvURL      = "OFFICIAL_RATES_MEALS_CANADA_URL"
	DefaultURL  = "https://www.njc-cnm.gc.ca/directive/d10/v238/s659/en"
	Description = "Domestic meal and incidental rates (Appendix C)"

	notesSelector = `div[style*="border"]`
)

var (
	canadianDollar = regexp.MustCompile(`(?i)canadian\s*\$`)
	taxesIncluded  = regexp.MustCompile(`(?i)\(\s*taxes included\s*\)`)
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

// MapHeader names the blank corner cell and normalizes currency labels.
func MapHeader(label string, ctx table.HeaderContext) string {
	if label == "" && ctx.CellIndex == 0 {
		return "Category"
	}
	label = canadianDollar.ReplaceAllString(label, "CAD")
	label = taxesIncluded.ReplaceAllString(label, "")
	return strings.TrimSpace(label)
}

// MapCell drops the leading dollar sign of amounts.
func MapCell(text string, _ table.CellContext) models.Value {
	return models.String(strings.TrimSpace(strings.TrimPrefix(text, "$")))
}

// Parse reads the two-row-header allowance table.
func Parse(source, html string) (*models.TableData, error) {
	doc, err := engine.ParseDocument(html)
	if err != nil {
		return nil, err
	}

	tbl := doc.Find("table").First()
	if tbl.Length() == 0 {
		return nil, engine.NewStructureError("domestic allowances table not found at %s", source)
	}

	res := table.Parse(tbl, table.Options{
		HeaderRows: 2,
		MapHeader:  MapHeader,
		MapCell:    MapCell,
	})
	if len(res.Headers) == 0 {
		return nil, engine.NewStructureError("domestic allowances table at %s has no headers", source)
	}
	if len(res.Rows) == 0 {
		return nil, engine.NewEmptyResultError("domestic allowances table at %s has no rows", source)
	}

	return engine.Build(models.BuildInput{
		Source:  source,
		Headers: res.Headers,
		Rows:    res.Rows,
		Metadata: &models.Metadata{
			Description:   Description,
			EffectiveDate: metadata.EffectiveDate(doc),
			Notes:         metadata.TextSections(doc, notesSelector),
		},
	})
}
