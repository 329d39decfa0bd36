// Package kilometric extracts the NJC kilometric reimbursement rates
// (Travel Directive Appendix B).
package kilometric

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
	ID          = "kilometricRates"
	EnvURL      = "OFFICIAL_RATES_KILOMETRIC_URL"
	DefaultURL  = "https://www.njc-cnm.gc.ca/directive/d10/v238/s658/en"
	Description = "Kilometric reimbursement rates (Appendix B)"
)

var parenthesized = regexp.MustCompile(`\(.*?\)`)

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

// Parse reads the first table of the appendix page.
func Parse(source, html string) (*models.TableData, error) {
	doc, err := engine.ParseDocument(html)
	if err != nil {
		return nil, err
	}

	tbl := doc.Find("table").First()
	if tbl.Length() == 0 {
		return nil, engine.NewStructureError("kilometric rates table not found at %s", source)
	}

	res := table.Parse(tbl, table.Options{
		MapHeader: func(label string, _ table.HeaderContext) string {
			return strings.TrimSpace(parenthesized.ReplaceAllString(label, ""))
		},
	})
	if len(res.Rows) == 0 {
		return nil, engine.NewEmptyResultError("kilometric rates table at %s has no rows", source)
	}

	return engine.Build(models.BuildInput{
		Source:  source,
		Headers: res.Headers,
		Rows:    res.Rows,
		Metadata: &models.Metadata{
			Description:   Description,
			EffectiveDate: metadata.EffectiveDate(doc),
		},
	})
}
