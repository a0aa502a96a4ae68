// Package match scores the similarity of titles and names and picks the best
// candidate with a deterministic tie-break.
package match

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/teaterarkiv/archive-cli/internal/normalize"
)

// Thresholds used across the archive passes.
const (
	// DefaultThreshold applies to cross-source matching (archive item to episode).
	DefaultThreshold = 0.7
	// ExactThreshold applies to safety-critical links such as playwright auto-linking.
	ExactThreshold = 1.0

	DefaultContainmentFloor = 0.8
	DefaultContextBoost     = 0.2

	// maxPartialScore keeps anything short of equality below ExactThreshold.
	maxPartialScore = 0.99
	scoreEpsilon    = 1e-9
)

// Normalizer maps raw text to its comparison form.
type Normalizer func(string) string

// Config tunes scoring.
type Config struct {
	// ContainmentFloor is the minimum score when the shorter text occurs in
	// the longer one as a whole run of words.
	ContainmentFloor float64 `yaml:"containment_floor" mapstructure:"containment_floor"`
	// ContextBoost is added when a secondary signal occurs in both
	// auxiliary texts.
	ContextBoost float64 `yaml:"context_boost" mapstructure:"context_boost"`
}

// DefaultConfig returns the standard scoring configuration.
func DefaultConfig() Config {
	return Config{
		ContainmentFloor: DefaultContainmentFloor,
		ContextBoost:     DefaultContextBoost,
	}
}

// Matcher scores text fragments after normalizing them.
type Matcher struct {
	normalize Normalizer
	cfg       Config
}

// New creates a Matcher. A nil normalizer uses normalize.Title.
func New(n Normalizer, cfg Config) *Matcher {
	if n == nil {
		n = normalize.Title
	}
	if cfg.ContainmentFloor < 0 {
		cfg.ContainmentFloor = 0
	}
	if cfg.ContainmentFloor > maxPartialScore {
		cfg.ContainmentFloor = maxPartialScore
	}
	if cfg.ContextBoost < 0 {
		cfg.ContextBoost = 0
	}
	return &Matcher{normalize: n, cfg: cfg}
}

// NewTitleMatcher compares titles.
func NewTitleMatcher(cfg Config) *Matcher {
	return New(normalize.Title, cfg)
}

// NewNameMatcher compares person names.
func NewNameMatcher(cfg Config) *Matcher {
	return New(normalize.Name, cfg)
}

var defaultTitleMatcher = NewTitleMatcher(DefaultConfig())

// Score compares two titles with the default configuration.
func Score(a, b string) float64 {
	return defaultTitleMatcher.Score(a, b)
}

// IsMatch reports whether two titles score at or above threshold.
func IsMatch(a, b string, threshold float64) bool {
	return defaultTitleMatcher.IsMatch(a, b, threshold)
}

// Score returns a similarity in [0,1]:
//  1. equal normalized text scores 1.0
//  2. containment scores len(shorter)/len(longer), floored to
//     ContainmentFloor when the shorter text is a whole run of words
//  3. otherwise the word overlap |A∩B| / max(|A|,|B|)
//
// Cases 2 and 3 are capped at 0.99, so only equal normalized text reaches
// ExactThreshold. Reordered words therefore score 0.99, not 1.0.
func (m *Matcher) Score(a, b string) float64 {
	return m.scoreNormalized(m.normalize(a), m.normalize(b))
}

// Context carries the secondary signal for ScoreWithContext, e.g. an author
// name extracted from one record, checked against both records' free text.
type Context struct {
	Signal string
	AuxA   string
	AuxB   string
}

// ScoreWithContext is Score plus ContextBoost when the signal appears in
// both auxiliary texts, capped at 1.0.
func (m *Matcher) ScoreWithContext(a, b string, c Context) float64 {
	s := m.Score(a, b)
	if m.contextHit(c) {
		s = math.Min(1.0, s+m.cfg.ContextBoost)
	}
	return s
}

// IsMatch reports whether Score(a, b) >= threshold.
func (m *Matcher) IsMatch(a, b string, threshold float64) bool {
	return m.Score(a, b)+scoreEpsilon >= threshold
}

func (m *Matcher) scoreNormalized(na, nb string) float64 {
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}

	shorter, longer := na, nb
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		ratio := float64(utf8.RuneCountInString(shorter)) / float64(utf8.RuneCountInString(longer))
		if containsWordRun(words(longer), words(shorter)) {
			ratio = math.Max(ratio, m.cfg.ContainmentFloor)
		}
		return math.Min(ratio, maxPartialScore)
	}

	return math.Min(wordOverlap(na, nb), maxPartialScore)
}

func (m *Matcher) contextHit(c Context) bool {
	signal := words(m.normalize(c.Signal))
	if len(signal) == 0 {
		return false
	}
	return containsWordRun(words(m.normalize(c.AuxA)), signal) &&
		containsWordRun(words(m.normalize(c.AuxB)), signal)
}

func wordOverlap(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	return float64(intersection) / float64(max(len(setA), len(setB)))
}

func words(s string) []string {
	fields := strings.Fields(s)
	out := fields[:0]
	for _, w := range fields {
		// Strip common punctuation.
		w = strings.Trim(w, ".,;:!?()[]{}\"'-–—/")
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func wordSet(s string) map[string]bool {
	ws := words(s)
	set := make(map[string]bool, len(ws))
	for _, w := range ws {
		set[w] = true
	}
	return set
}

// containsWordRun reports whether needle occurs in haystack as a contiguous
// run of words.
func containsWordRun(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return true
	}
	return false
}
