// Package link connects episodes to works by title and works to their
// playwrights with help from the classification oracle.
package link

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/classify"
	"github.com/teaterarkiv/archive-cli/internal/match"
	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/report"
)

// Writer is what linking saves through.
type Writer interface {
	SaveWork(ctx context.Context, w model.Work) error
	SaveEpisode(ctx context.Context, e model.Episode) error
}

// Config tunes linking.
type Config struct {
	// Threshold is the minimum title score for episode to work links.
	Threshold float64
	Match     match.Config
}

// Linker runs the link passes over a snapshot.
type Linker struct {
	w      Writer
	oracle classify.Oracle
	cfg    Config
	titles *match.Matcher
	names  *match.Matcher
}

// New creates a Linker. A nil oracle disables playwright linking.
func New(w Writer, oracle classify.Oracle, cfg Config) *Linker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = match.DefaultThreshold
	}
	if cfg.Match == (match.Config{}) {
		cfg.Match = match.DefaultConfig()
	}
	return &Linker{
		w:      w,
		oracle: oracle,
		cfg:    cfg,
		titles: match.NewTitleMatcher(cfg.Match),
		names:  match.NewNameMatcher(cfg.Match),
	}
}

// Run links episodes to works, then works to playwrights.
func (l *Linker) Run(ctx context.Context, snap *model.Snapshot) (*report.Summary, error) {
	sum := report.NewSummary("link")
	if err := l.Episodes(ctx, snap, sum); err != nil {
		return sum, err
	}
	if err := l.Playwrights(ctx, snap, sum); err != nil {
		return sum, err
	}
	return sum, nil
}

// Episodes sets PlayID on episodes that have none, choosing the work whose
// title scores best. A work's playwright named in the episode description
// boosts that work.
func (l *Linker) Episodes(ctx context.Context, snap *model.Snapshot, sum *report.Summary) error {
	works := snap.WorkList()
	if len(works) == 0 {
		return nil
	}
	candidates := make([]match.Candidate, 0, len(works))
	for _, w := range works {
		c := match.Candidate{ID: w.ID, Text: w.Title}
		if w.PlaywrightID != nil {
			if p := snap.Persons[*w.PlaywrightID]; p != nil {
				c.Aux, c.Signal = p.Name, p.Name
			}
		}
		candidates = append(candidates, c)
	}

	for _, ep := range snap.EpisodeList() {
		if ep.PlayID != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "link: cancelled")
		}
		sum.Processed++
		log := zap.L().With(zap.String("component", "link"), zap.String("prf_id", ep.PrfID))

		res, ok := l.titles.Best(match.Query{
			Text:      ep.Title,
			Aux:       ep.Description,
			Threshold: l.cfg.Threshold,
		}, candidates)
		if !ok {
			log.Debug("link: no work matches", zap.String("title", ep.Title))
			sum.Unmatched++
			continue
		}
		if res.Ambiguous() {
			log.Warn("link: ambiguous work match, taking first by tie-break",
				zap.Int64("work_id", res.Candidate.ID),
				zap.Int("ties", res.Ties),
			)
			sum.Ambiguous++
		}

		updated := *ep.Clone()
		updated.PlayID = model.Int64Ptr(res.Candidate.ID)
		if err := l.w.SaveEpisode(ctx, updated); err != nil {
			return eris.Wrapf(err, "link: save episode %s", ep.PrfID)
		}
		snap.Episodes[ep.PrfID] = &updated
		sum.Matched++
		log.Info("link: episode linked",
			zap.Int64("work_id", res.Candidate.ID),
			zap.Float64("score", res.Score),
		)
	}
	return nil
}

// Playwrights asks the oracle for the playwright of works that have none
// and links the answer only to a person whose normalized name is equal.
// Several persons with that name are a homonym; nothing is linked.
func (l *Linker) Playwrights(ctx context.Context, snap *model.Snapshot, sum *report.Summary) error {
	if l.oracle == nil {
		return nil
	}
	persons := snap.PersonList()
	candidates := make([]match.Candidate, 0, len(persons))
	for _, p := range persons {
		candidates = append(candidates, match.Candidate{ID: p.ID, Text: p.Name})
	}
	descriptions := workDescriptions(snap)

	for _, w := range snap.WorkList() {
		if w.PlaywrightID != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "link: cancelled")
		}
		sum.Processed++
		log := zap.L().With(zap.String("component", "link"), zap.Int64("work_id", w.ID))

		s, err := l.oracle.Classify(ctx, classify.WorkPrompt(w, descriptions[w.ID]))
		switch {
		case err == nil:
		case errors.Is(err, classify.ErrLowConfidence):
			log.Info("link: playwright suggestion below confidence floor", zap.Error(err))
			sum.LowConfidence++
			continue
		case errors.Is(err, model.ErrNotFound):
			sum.Unmatched++
			continue
		case ctx.Err() != nil:
			return eris.Wrap(ctx.Err(), "link: cancelled")
		default:
			log.Error("link: oracle failed", zap.Error(err))
			sum.Errors++
			continue
		}

		res, ok := l.names.Best(match.Query{Text: s.Value, Threshold: match.ExactThreshold}, candidates)
		if !ok {
			log.Info("link: suggested playwright is not a known person", zap.String("suggestion", s.Value))
			sum.Unmatched++
			continue
		}
		if res.Ambiguous() {
			log.Warn("link: suggested playwright matches several persons",
				zap.String("suggestion", s.Value),
				zap.Int("ties", res.Ties),
			)
			sum.Ambiguous++
			continue
		}

		updated := *w.Clone()
		updated.PlaywrightID = model.Int64Ptr(res.Candidate.ID)
		if err := l.w.SaveWork(ctx, updated); err != nil {
			return eris.Wrapf(err, "link: save work %d", w.ID)
		}
		snap.Works[w.ID] = &updated
		sum.Matched++
		log.Info("link: playwright linked",
			zap.Int64("person_id", res.Candidate.ID),
			zap.Float64("confidence", s.Confidence),
		)
	}
	return nil
}

// workDescriptions returns, per work, the first non-empty description among
// its linked episodes in PRF id order.
func workDescriptions(snap *model.Snapshot) map[int64]string {
	out := make(map[int64]string)
	for _, ep := range snap.EpisodeList() {
		if ep.PlayID == nil || strings.TrimSpace(ep.Description) == "" {
			continue
		}
		if _, ok := out[*ep.PlayID]; !ok {
			out[*ep.PlayID] = ep.Description
		}
	}
	return out
}
