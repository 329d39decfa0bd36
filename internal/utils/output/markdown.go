package output

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	"github.com/travelsaas/ratescrape/internal/table"
	urlutil "github.com/travelsaas/ratescrape/internal/utils/url"
)

// TablesMarkdown renders every table of a page as GitHub-flavored markdown,
// each under a heading built from its caption or the nearest preceding
// heading. Relative links are resolved against pageURL.
func TablesMarkdown(pageURL, htmlContent string) (string, int, error) {
	cleaned, err := CleanHTML(htmlContent)
	if err != nil {
		return "", 0, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleaned))
	if err != nil {
		return "", 0, err
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.AddRules(md.Rule{
		Filter: []string{"a"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			href, exists := selec.Attr("href")
			if !exists {
				return nil
			}
			str := fmt.Sprintf("[%s](%s)", strings.TrimSpace(content), urlutil.ResolveURL(pageURL, href))
			return &str
		},
	})

	var (
		sb    strings.Builder
		count int
	)
	var convErr error
	doc.Find("table").EachWithBreak(func(i int, tbl *goquery.Selection) bool {
		// Nested tables are rendered as part of their parent.
		if tbl.ParentsFiltered("table").Length() > 0 {
			return true
		}
		count++

		title := table.NormalizeText(tbl.Find("caption").First().Text())
		if title == "" {
			title = table.NormalizeText(tbl.PrevAllFiltered("h1,h2,h3,h4").First().Text())
		}
		if title == "" {
			title = "Untitled"
		}

		outer, err := goquery.OuterHtml(tbl)
		if err != nil {
			convErr = err
			return false
		}
		body, err := converter.ConvertString(outer)
		if err != nil {
			convErr = err
			return false
		}

		fmt.Fprintf(&sb, "## Table %d: %s\n\n%s\n\n", count, title, strings.TrimSpace(body))
		return true
	})
	if convErr != nil {
		return "", 0, convErr
	}
	return strings.TrimSpace(sb.String()) + "\n", count, nil
}
