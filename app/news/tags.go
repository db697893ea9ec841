package news

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxTags = 8

// NormalizeTags folds case, strips diacritics and '#', collapses inner
// whitespace to '-' and drops duplicates while keeping first-seen order.
func NormalizeTags(tags []string) []string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folder := cases.Fold()

	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		cleaned, _, err := transform.String(stripMarks, tag)
		if err != nil {
			cleaned = tag
		}
		cleaned = folder.String(strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(cleaned), "#")))
		cleaned = strings.Join(strings.Fields(cleaned), "-")
		if cleaned == "" || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		out = append(out, cleaned)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

// CategoryLabel renders a trend category for display ("dining_halls" -> "Dining Halls").
func CategoryLabel(category string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(strings.TrimSpace(category), "_", " "))
}
