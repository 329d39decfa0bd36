package table

import (
	"regexp"
	"strings"
	"unicode"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeText turns non-breaking spaces into spaces, collapses whitespace
// runs and trims.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\u00a0", " ")), " ")
}

// ToKey derives a camelCase row key from a header label.
// "Province/Territory" becomes "provinceTerritory". It returns "" when the
// label has no ASCII letters or digits.
func ToKey(label string) string {
	words := strings.Fields(nonAlnum.ReplaceAllString(strings.ToLower(label), " "))
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(words[0])
	for _, w := range words[1:] {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}
