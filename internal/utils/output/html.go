package output

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// keptAttributes lists the attributes CleanHTML preserves per element.
var keptAttributes = map[string][]string{
	"a":  {"href", "title"},
	"td": {"colspan", "rowspan"},
	"th": {"colspan", "rowspan"},
}

// CleanHTML removes scripts, styles and form controls and strips attributes
// that do not affect table layout or links.
func CleanHTML(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, link, meta, noscript, iframe, svg, input, button, select, textarea, canvas").Remove()

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		if len(s.Nodes) == 0 {
			return
		}
		node := s.Nodes[0]
		allowed := keptAttributes[node.Data]
		var attrs []html.Attribute
		for _, attr := range node.Attr {
			for _, name := range allowed {
				if attr.Key == name {
					attrs = append(attrs, attr)
					break
				}
			}
		}
		node.Attr = attrs
	})

	out, err := doc.Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
