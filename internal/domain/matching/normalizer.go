package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeDescription produces the fallback comparison key for a line
// description: accents folded, lower-cased, punctuation removed and
// whitespace collapsed to single spaces.
func NormalizeDescription(description string) string {
	// Transformers carry state, so the chain is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, description)
	if err != nil {
		folded = description
	}
	folded = cases.Lower(language.Und).String(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsPunct(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ItemKeyer derives the join key used when a line carries no stable
// reference. Implementations must be deterministic.
type ItemKeyer interface {
	ItemKey(description string) string
}

// DescriptionKeyer keys items by their normalized description
type DescriptionKeyer struct{}

// ItemKey implements ItemKeyer
func (DescriptionKeyer) ItemKey(description string) string {
	return NormalizeDescription(description)
}

// KeyerFunc adapts a plain function to ItemKeyer
type KeyerFunc func(description string) string

// ItemKey implements ItemKeyer
func (f KeyerFunc) ItemKey(description string) string {
	return f(description)
}
