package textproc

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	lineBreaks = regexp.MustCompile(`[\n\r]+`)

	// disallowed matches runs of characters outside the kept ASCII set.
	disallowed = regexp.MustCompile("[^a-zA-Z0-9\\s_.,!?:;@#$%^&*()+\\-=\\[\\]{}|\\\\<>`~'\"/]+")

	whitespace = regexp.MustCompile(`\s+`)
)

// Compress returns the compressed form of text. See the package
// documentation for the steps.
func Compress(text string) string {
	text = lineBreaks.ReplaceAllString(text, "\n")
	text = FoldAccents(text)
	text = disallowed.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	text = strings.ToLower(text)

	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if !IsStopword(w) {
			kept = append(kept, w)
		}
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

// FoldAccents strips combining marks ("café" becomes "cafe") and turns
// every Unicode space into an ASCII space, so that such characters survive
// the ASCII filter in a readable form.
func FoldAccents(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.Map(func(r rune) rune {
		if r != '\n' && r != '\r' && r != ' ' && unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, folded)
}

// WordCount returns the number of whitespace separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// EstimateTokens approximates the number of model tokens in text at about
// four characters per token.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
