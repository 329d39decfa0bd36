// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/travelsaas/ratescrape/pkg/models"
)

// Extractor turns one official source into a validated table.
type Extractor interface {
	// ID is the stable source identifier used in the manifest.
	ID() string

	// Extract fetches and parses the source. It either returns a complete
	// table or an error; there is no partial output.
	Extract(ctx context.Context) (*models.TableData, error)
}

// ParamsOverrider is implemented by extractors whose search parameters can
// be overridden by the caller.
type ParamsOverrider interface {
	OverrideParams(p Params)
}

// PageFetcher returns the decoded markup of a page.
type PageFetcher interface {
	Page(ctx context.Context, rawURL string) (string, error)
}

// ParseDocument parses fetched markup.
func ParseDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, NewEngineError(ErrCodeStructure, "unparseable document", err)
	}
	return doc, nil
}

// Build runs the table builder and reports schema failures as engine
// validation errors.
func Build(in models.BuildInput) (*models.TableData, error) {
	return BuildWith(models.Builder{}, in)
}

// BuildWith is Build with an explicit builder.
func BuildWith(b models.Builder, in models.BuildInput) (*models.TableData, error) {
	td, err := b.Build(in)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			return nil, NewValidationError(err)
		}
		return nil, err
	}
	return td, nil
}

// Endpoint is a resolved source location.
type Endpoint struct {
	URL    string
	EnvVar string
}

// Resolve returns the endpoint URL or a missing-configuration error.
func (e Endpoint) Resolve() (string, error) {
	if e.URL == "" {
		return "", NewConfigError(e.EnvVar)
	}
	return e.URL, nil
}
