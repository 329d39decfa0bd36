// Package allowance computes tiered meal and incidental totals for an
// extended stay from a scraped domestic allowances table.
package allowance

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/travelsaas/ratescrape/internal/table"
	"github.com/travelsaas/ratescrape/pkg/models"
)

// MinSimilarity is the Jaro-Winkler score a category label must reach when
// it does not match exactly.
const MinSimilarity = 0.92

// DefaultColumn is the key prefix of the Canada & USA rate column.
const DefaultColumn = "canadaUsa"

// Tier day boundaries.
const (
	FullDays    = 30
	ReducedDays = 120
)

// Category labels as published in Appendix C.
const (
	LabelMealsFull          = "Meal allowance total - 100% (up to 30th day)"
	LabelMealsSeventyFive   = "Meal allowance total - 75% (31st to 120th day)"
	LabelMealsFifty         = "Meal allowance total - 50% (121st day onward)"
	LabelIncidentalsFull    = "1.3 Incidental allowance - 100%"
	LabelIncidentalsReduced = "Incidental allowance - 75% (31st day onward)"
)

// Older editions of the appendix used these wordings.
var (
	incidentalsFullAliases    = []string{"Incidental allowance - 100%", "Incidental expense allowance"}
	incidentalsReducedAliases = []string{"Incidental expense allowance - 75% (31st day onward)"}
)

// Rates are the daily amounts per tier.
type Rates struct {
	MealsFull          float64
	MealsSeventyFive   float64
	MealsFifty         float64
	IncidentalsFull    float64
	IncidentalsReduced float64
}

// Segment is the part of a stay paid at one daily rate.
type Segment struct {
	Tier  string
	Days  int
	Rate  float64
	Total float64
}

// FromTable reads the tier rates from the column whose key starts with
// column. A missing reduced incidental rate falls back to the full one.
func FromTable(td *models.TableData, column string) (Rates, error) {
	if td == nil {
		return Rates{}, fmt.Errorf("no allowance table")
	}
	key := columnKey(td.Headers, column)
	if key == "" {
		return Rates{}, fmt.Errorf("column %q not found", column)
	}
	categoryKey := "category"
	if len(td.Headers) > 0 && columnKey(td.Headers, categoryKey) == "" {
		categoryKey = td.Headers[0].Key
	}

	categories := make([]string, len(td.Rows))
	for i, row := range td.Rows {
		categories[i] = normalizeLabel(row[categoryKey].Text())
	}

	lookup := func(labels ...string) (float64, bool, error) {
		for _, label := range labels {
			i := bestMatch(categories, normalizeLabel(label))
			if i < 0 {
				continue
			}
			raw := strings.ReplaceAll(td.Rows[i][key].Text(), ",", "")
			f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(raw, "$")), 64)
			if err != nil {
				return 0, false, fmt.Errorf("%s: invalid amount %q", label, td.Rows[i][key].Text())
			}
			return f, true, nil
		}
		return 0, false, nil
	}

	var r Rates
	required := []struct {
		labels []string
		dst    *float64
	}{
		{[]string{LabelMealsFull}, &r.MealsFull},
		{[]string{LabelMealsSeventyFive}, &r.MealsSeventyFive},
		{[]string{LabelMealsFifty}, &r.MealsFifty},
		{append([]string{LabelIncidentalsFull}, incidentalsFullAliases...), &r.IncidentalsFull},
	}
	for _, f := range required {
		v, ok, err := lookup(f.labels...)
		if err != nil {
			return Rates{}, err
		}
		if !ok {
			return Rates{}, fmt.Errorf("category %q not found", f.labels[0])
		}
		*f.dst = v
	}

	reduced, ok, err := lookup(append([]string{LabelIncidentalsReduced}, incidentalsReducedAliases...)...)
	if err != nil {
		return Rates{}, err
	}
	r.IncidentalsReduced = r.IncidentalsFull
	if ok {
		r.IncidentalsReduced = reduced
	}
	return r, nil
}

// MealSegments splits a stay of days into the 100%, 75% and 50% tiers.
func (r Rates) MealSegments(days int) []Segment {
	if days < 0 {
		days = 0
	}
	full := min(days, FullDays)
	seventyFive := max(min(days, ReducedDays)-FullDays, 0)
	fifty := max(days-ReducedDays, 0)
	return []Segment{
		segment("100%", full, r.MealsFull),
		segment("75%", seventyFive, r.MealsSeventyFive),
		segment("50%", fifty, r.MealsFifty),
	}
}

// IncidentalSegments splits a stay into full and reduced incidental days.
func (r Rates) IncidentalSegments(days int) []Segment {
	if days < 0 {
		days = 0
	}
	return []Segment{
		segment("100%", min(days, FullDays), r.IncidentalsFull),
		segment("reduced", max(days-FullDays, 0), r.IncidentalsReduced),
	}
}

// Meals is the meal total for a stay of days.
func (r Rates) Meals(days int) float64 {
	return sum(r.MealSegments(days))
}

func (r Rates) Incidentals(days int) float64 {
	return sum(r.IncidentalSegments(days))
}

func segment(tier string, days int, rate float64) Segment {
	return Segment{Tier: tier, Days: days, Rate: rate, Total: float64(days) * rate}
}

func sum(segments []Segment) float64 {
	var total float64
	for _, s := range segments {
		total += s.Total
	}
	return total
}

func columnKey(headers []models.Header, prefix string) string {
	for _, h := range headers {
		if h.Key == prefix {
			return h.Key
		}
	}
	for _, h := range headers {
		if strings.HasPrefix(h.Key, prefix) {
			return h.Key
		}
	}
	return ""
}

var dashes = strings.NewReplacer("–", "-", "—", "-", "‒", "-")

func normalizeLabel(s string) string {
	return strings.ToLower(table.NormalizeText(dashes.Replace(s)))
}

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

// samePercentages reports whether both labels name the same percentages, so
// "100%" never fuzzily matches a "75%" tier.
func samePercentages(a, b string) bool {
	pa := percentRe.FindAllStringSubmatch(a, -1)
	pb := percentRe.FindAllStringSubmatch(b, -1)
	if len(pa) != len(pb) {
		return false
	}
	for i := range pa {
		if pa[i][1] != pb[i][1] {
			return false
		}
	}
	return true
}

// bestMatch returns the index of the exact match, or of the most similar
// candidate scoring at least MinSimilarity, or -1.
func bestMatch(candidates []string, target string) int {
	best, bestScore := -1, 0.0
	for i, c := range candidates {
		if c == "" {
			continue
		}
		if c == target {
			return i
		}
		if !samePercentages(c, target) {
			continue
		}
		if score := matchr.JaroWinkler(c, target, false); score >= MinSimilarity && score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}
