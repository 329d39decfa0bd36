package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/travelsaas/ratescrape/pkg/models"
)

func TestFetchErrorCarriesURLAndStatus(t *testing.T) {
	err := NewFetchError("https://example.gc.ca/page", 404, nil)

	if !strings.Contains(err.Error(), "https://example.gc.ca/page") || !strings.Contains(err.Error(), "404") {
		t.Fatalf("message must include url and status: %s", err)
	}
	if err.GetStatusCode() != 404 {
		t.Errorf("expected status 404, got %d", err.GetStatusCode())
	}
	if !errors.Is(err, ErrFetch) {
		t.Error("expected errors.Is to match ErrFetch")
	}
	if errors.Is(err, ErrStructure) {
		t.Error("fetch error must not match ErrStructure")
	}
}

func TestCodeOfThroughWrapping(t *testing.T) {
	base := NewConfigError("OFFICIAL_RATES_EXCHANGE_URL")
	wrapped := fmt.Errorf("exchangeRates: %w", base)

	if !IsMissingConfig(wrapped) {
		t.Fatal("expected wrapped config error to be detected")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("plain errors have no code")
	}
	if IsMissingConfig(NewEmptyResultError("nothing")) {
		t.Error("empty result is not a config error")
	}
}

func TestBuildWrapsValidationErrors(t *testing.T) {
	_, err := Build(models.BuildInput{Source: "not a url"})
	if CodeOf(err) != ErrCodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("expected underlying models.ValidationError")
	}
}

func TestEndpointResolve(t *testing.T) {
	if _, err := (Endpoint{EnvVar: "OFFICIAL_RATES_CAR_SEARCH_URL"}).Resolve(); !IsMissingConfig(err) {
		t.Fatalf("expected missing config, got %v", err)
	}
	u, err := Endpoint{URL: "https://x.example", EnvVar: "X"}.Resolve()
	if err != nil || u != "https://x.example" {
		t.Fatalf("unexpected resolve result %q %v", u, err)
	}
}
