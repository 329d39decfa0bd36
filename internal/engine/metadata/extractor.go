// internal/engine/metadata/extractor.go
package metadata

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/travelsaas/ratescrape/internal/table"
)

var effectiveDatePrefix = regexp.MustCompile(`(?i)^effective date\s*:?\s*`)

// PrefixedText returns the normalized text of the first element matching
// selector whose text starts with prefix.
func PrefixedText(doc *goquery.Document, selector, prefix string) string {
	if doc == nil {
		return ""
	}
	var found string
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := table.NormalizeText(sel.Text())
		if strings.HasPrefix(text, prefix) {
			found = text
			return false
		}
		return true
	})
	return found
}

// EffectiveDate reads the first bold "Effective Date: ..." label and returns
// the date part.
func EffectiveDate(doc *goquery.Document) string {
	text := PrefixedText(doc, "strong", "Effective Date")
	if text == "" {
		return ""
	}
	return strings.TrimSpace(effectiveDatePrefix.ReplaceAllString(text, ""))
}

// MetaContent returns the content (or value) attribute of <meta name=name>.
func MetaContent(doc *goquery.Document, name string) string {
	if doc == nil {
		return ""
	}
	meta := doc.Find(`meta[name="` + name + `"]`).First()
	if v, ok := meta.Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	v, _ := meta.Attr("value")
	return strings.TrimSpace(v)
}

// TextSections returns the non-empty normalized texts of every match.
func TextSections(doc *goquery.Document, selector string) []string {
	if doc == nil {
		return nil
	}
	var out []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if text := table.NormalizeText(sel.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// FirstText returns the normalized text of the first non-empty match among
// the selectors, tried in order.
func FirstText(doc *goquery.Document, selectors ...string) string {
	if doc == nil {
		return ""
	}
	for _, s := range selectors {
		if text := table.NormalizeText(doc.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// Option is a <select> option.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// SelectOptions lists the options of the select matched by selector.
func SelectOptions(doc *goquery.Document, selector string) []Option {
	if doc == nil {
		return nil
	}
	var out []Option
	doc.Find(selector).First().Find("option").Each(func(_ int, opt *goquery.Selection) {
		value, ok := opt.Attr("value")
		label := table.NormalizeText(opt.Text())
		if !ok {
			value = label
		}
		_, selected := opt.Attr("selected")
		out = append(out, Option{Value: strings.TrimSpace(value), Label: label, Selected: selected})
	})
	return out
}

// OptionLabel returns the label of the option whose value matches, or "".
func OptionLabel(doc *goquery.Document, selector, value string) string {
	for _, o := range SelectOptions(doc, selector) {
		if o.Value == value {
			return o.Label
		}
	}
	return ""
}
