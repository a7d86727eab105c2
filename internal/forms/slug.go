package forms

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const slugSuffixLength = 6

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name, strips accents and joins the remaining
// alphanumeric runs with dashes
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.ToLower(name))
	if err != nil {
		stripped = strings.ToLower(name)
	}
	return strings.Trim(nonSlugRun.ReplaceAllString(stripped, "-"), "-")
}

// formSlug derives the public slug of a form from its name and id
func formSlug(name, id string) string {
	suffix := id
	if len(id) > slugSuffixLength {
		suffix = id[len(id)-slugSuffixLength:]
	}
	base := Slugify(name)
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}
