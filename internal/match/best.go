package match

import (
	"sort"
	"unicode/utf8"
)

// Candidate is one record that a query may match.
type Candidate struct {
	ID   int64
	Text string
	// Aux is free text searched for the context signal (description,
	// credits, synopsis).
	Aux string
	// Signal overrides Query.Signal for this candidate when set.
	Signal string
}

// Query describes what to look for.
type Query struct {
	Text      string
	Aux       string
	Signal    string
	Threshold float64
}

// Result is the chosen candidate.
type Result struct {
	Candidate Candidate
	Score     float64
	// Ties is the number of other candidates that scored exactly as high.
	// Ties are settled by the shorter normalized text, then the lowest id.
	Ties int
}

// Ambiguous reports whether the best score was shared.
func (r Result) Ambiguous() bool {
	return r.Ties > 0
}

type scored struct {
	c       Candidate
	score   float64
	textLen int
}

// Best returns the highest-scoring candidate at or above q.Threshold.
// Candidates that tie on score are ordered by the shorter normalized text
// (most specific) and then by the lowest id, so repeated runs pick the same
// winner. The second return value is false when nothing clears the threshold.
func (m *Matcher) Best(q Query, candidates []Candidate) (Result, bool) {
	ranked := m.Rank(q, candidates)
	if len(ranked) == 0 {
		return Result{}, false
	}
	top := ranked[0]
	ties := 0
	for _, r := range ranked[1:] {
		if r.Score+scoreEpsilon < top.Score {
			break
		}
		ties++
	}
	top.Ties = ties
	return top, true
}

// Rank returns every candidate at or above q.Threshold in tie-break order.
func (m *Matcher) Rank(q Query, candidates []Candidate) []Result {
	nq := m.normalize(q.Text)
	var hits []scored
	for _, c := range candidates {
		nc := m.normalize(c.Text)
		s := m.scoreNormalized(nq, nc)
		signal := q.Signal
		if c.Signal != "" {
			signal = c.Signal
		}
		if m.contextHit(Context{Signal: signal, AuxA: q.Aux, AuxB: c.Aux}) {
			s = min(1.0, s+m.cfg.ContextBoost)
		}
		if s+scoreEpsilon < q.Threshold || s == 0 {
			continue
		}
		hits = append(hits, scored{c: c, score: s, textLen: utf8.RuneCountInString(nc)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if diff := a.score - b.score; diff > scoreEpsilon || diff < -scoreEpsilon {
			return a.score > b.score
		}
		if a.textLen != b.textLen {
			return a.textLen < b.textLen
		}
		return a.c.ID < b.c.ID
	})

	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{Candidate: h.c, Score: h.score}
	}
	return out
}
