package matching

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	bracketed  = regexp.MustCompile(`\(.*?\)|\[.*?\]|\{.*?\}`)
	separators = regexp.MustCompile(`[-_]`)
	noise      = regexp.MustCompile(`taylor'?s version|\b(?:remaster(?:ed)?|official video|audio|lyrics?|video|hd|hq|ft|official)\b`)
	spaces     = regexp.MustCompile(`\s+`)

	folder = cases.Fold()
)

// Normalize folds case, strips diacritics, bracketed annotations and common
// upload noise tokens, and collapses whitespace.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = folder.String(stripMarks(s))
	s = strings.ReplaceAll(s, "’", "'")
	s = bracketed.ReplaceAllString(s, " ")
	s = separators.ReplaceAllString(s, " ")
	s = noise.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
