// Package normalize canonicalizes free-text titles and person names into
// grouping and matching keys.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// "Del 2", "del 2 av 3", "Part 1 of 2", "Episode 4", "ep. 4", optionally in brackets.
	partWordRe = regexp.MustCompile(`(?i)[(\[]?\b(?:del|part|episode|episod|ep\.?|akt)\s*\d+(?:\s*(?:av|of|/|:)\s*\d+)?[)\]]?`)

	// "1:2", "2/3", optionally in brackets.
	partRatioRe = regexp.MustCompile(`[(\[]?\b\d{1,2}\s*[:/]\s*\d{1,2}\b[)\]]?`)

	// Trailing 4-digit year, optionally in brackets.
	trailingYearRe = regexp.MustCompile(`[(\[]?\b(?:1[89]|20)\d{2}[)\]]?$`)

	// Trailing medium suffix separated from the title.
	mediumSuffixRe = regexp.MustCompile(`(?i)(?:^|[\s(\[,:-])[(\[]?(?:radioteatret|fjernsynsteatret|tv-teatret|radioteater|radio|tv)[)\]]?$`)

	emptyBracketRe = regexp.MustCompile(`[(\[]\s*[)\]]`)

	// Runs of separators left behind after a marker was removed from the middle.
	separatorRunRe = regexp.MustCompile(`\s*([,:;–—-])(?:\s*[,:;–—-])+`)
)

const edgeTrimSet = " \t-–—:;,/."

// Title returns the grouping key for a title: part markers, trailing years
// and medium suffixes removed, NFKC-normalized, whitespace collapsed and
// lowercased. When nothing is left after stripping, the lowercased original
// is returned. Title is idempotent.
func Title(title string) string {
	canonical := canonicalize(strings.ToLower(canonicalize(title)))
	if canonical == "" {
		return ""
	}
	if stripped := strip(canonical); stripped != "" {
		return stripped
	}
	return canonical
}

// BaseTitle is the display form of Title: the same markers are removed but
// the original casing is kept ("Peer Gynt 1:2" → "Peer Gynt").
func BaseTitle(title string) string {
	canonical := canonicalize(title)
	if canonical == "" {
		return ""
	}
	if stripped := strip(canonical); stripped != "" {
		return stripped
	}
	return canonical
}

// HasPartMarker reports whether the title carries a part or episode marker.
func HasPartMarker(title string) bool {
	t := canonicalize(title)
	return partWordRe.MatchString(t) || partRatioRe.MatchString(t)
}

func canonicalize(s string) string {
	return collapseSpaces(norm.NFKC.String(s))
}

// strip removes markers until the string stops changing, which makes the
// result a fixed point and keeps Title idempotent.
func strip(s string) string {
	for {
		prev := s
		s = partWordRe.ReplaceAllString(s, " ")
		s = partRatioRe.ReplaceAllString(s, " ")
		s = emptyBracketRe.ReplaceAllString(s, " ")
		s = trimEdges(collapseSpaces(s))
		s = trailingYearRe.ReplaceAllString(s, "")
		s = trimEdges(collapseSpaces(s))
		s = mediumSuffixRe.ReplaceAllString(s, "")
		s = separatorRunRe.ReplaceAllString(s, "$1")
		s = trimEdges(collapseSpaces(s))
		if s == prev {
			return s
		}
	}
}

func trimEdges(s string) string {
	s = strings.Trim(s, edgeTrimSet)
	// Unbalanced brackets at the edges.
	if strings.HasSuffix(s, "(") || strings.HasSuffix(s, "[") {
		s = strings.TrimRight(s[:len(s)-1], edgeTrimSet)
	}
	if strings.HasPrefix(s, ")") || strings.HasPrefix(s, "]") {
		s = strings.TrimLeft(s[1:], edgeTrimSet)
	}
	return s
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
