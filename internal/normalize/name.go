package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ringAbove is the combining mark in "å"/"Å"; it is a letter in Norwegian,
// not a diacritic, so it survives folding.
const ringAbove = '\u030A'

// foldMarks builds a fresh transformer per call; transformers carry state.
func foldMarks() transform.Transformer {
	return transform.Chain(
		norm.NFD,
		runes.Remove(runes.Predicate(func(r rune) bool {
			return unicode.Is(unicode.Mn, r) && r != ringAbove
		})),
		norm.NFC,
	)
}

var namePunct = strings.NewReplacer(
	".", " ",
	",", " ",
	"\"", "",
	"'", "",
	"’", "",
	"(", " ",
	")", " ",
)

// Name returns the normalized form of a person name used for duplicate
// detection: NFKC, lowercased, accents folded (é → e, ø and å kept), "Last,
// First" inverted, punctuation dropped and whitespace collapsed.
func Name(name string) string {
	s := collapseSpaces(norm.NFKC.String(name))
	if s == "" {
		return ""
	}
	s = invertSortName(s)
	s = strings.ToLower(s)
	if folded, _, err := transform.String(foldMarks(), s); err == nil {
		s = folded
	}
	s = namePunct.Replace(s)
	return collapseSpaces(s)
}

// invertSortName turns "Ibsen, Henrik" into "Henrik Ibsen". Names with more
// than one comma are left alone.
func invertSortName(s string) string {
	if strings.Count(s, ",") != 1 {
		return s
	}
	last, first, _ := strings.Cut(s, ",")
	last, first = strings.TrimSpace(last), strings.TrimSpace(first)
	if last == "" || first == "" {
		return s
	}
	return first + " " + last
}
