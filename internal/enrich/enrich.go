// Package enrich fills empty person and work fields from Wikidata and
// Sceneweb. Values already present are never overwritten.
package enrich

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/report"
	"github.com/teaterarkiv/archive-cli/internal/resilience"
	"github.com/teaterarkiv/archive-cli/internal/store"
	"github.com/teaterarkiv/archive-cli/pkg/sceneweb"
	"github.com/teaterarkiv/archive-cli/pkg/wikidata"
)

// Config tunes retries and breakers around the lookups.
type Config struct {
	Retry            resilience.RetryConfig
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Enricher fills persons and works. Either client may be nil to skip that
// source.
type Enricher struct {
	wd wikidata.Client
	sw sceneweb.Client
	st store.Store

	retry     resilience.RetryConfig
	wdBreaker *resilience.Breaker
	swBreaker *resilience.Breaker
}

// New creates an Enricher.
func New(wd wikidata.Client, sw sceneweb.Client, st store.Store, cfg Config) *Enricher {
	return &Enricher{
		wd:        wd,
		sw:        sw,
		st:        st,
		retry:     cfg.Retry,
		wdBreaker: resilience.NewBreaker("wikidata", cfg.BreakerThreshold, cfg.BreakerCooldown),
		swBreaker: resilience.NewBreaker("sceneweb", cfg.BreakerThreshold, cfg.BreakerCooldown),
	}
}

// Run enriches every person and work in snap that carries an external id
// and still has a gap to fill.
func (e *Enricher) Run(ctx context.Context, snap *model.Snapshot) (*report.Summary, error) {
	sum := report.NewSummary("enrich")

	for _, p := range snap.PersonList() {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "enrich: cancelled")
		}
		if err := e.person(ctx, p, sum); err != nil {
			return sum, err
		}
	}
	for _, w := range snap.WorkList() {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "enrich: cancelled")
		}
		if err := e.work(ctx, w, sum); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (e *Enricher) person(ctx context.Context, p *model.Person, sum *report.Summary) error {
	log := zap.L().With(zap.String("component", "enrich"), zap.Int64("person_id", p.ID))
	var filled []string

	if e.wd != nil && p.WikidataID != "" && personWikidataGap(p) {
		sum.Processed++
		ent, err := e.entity(ctx, p.WikidataID)
		if err != nil {
			if qerr := e.failed(ctx, sum, model.KindPerson, p.ID, "wikidata", err); qerr != nil {
				return qerr
			}
		} else {
			sum.Matched++
			filled = append(filled, p.FillFrom(&model.Person{
				BirthYear:    ent.BirthYear,
				DeathYear:    ent.DeathYear,
				WikipediaURL: ent.WikipediaURL,
				Bio:          ent.Description,
				ImageURL:     ent.ImageURL,
			})...)
		}
	}

	if e.sw != nil && p.ScenewebID != "" && (p.BirthYear == nil || p.DeathYear == nil) {
		sum.Processed++
		cfg := e.retry
		cfg.OnRetry = resilience.RetryLogger("sceneweb", p.ScenewebID)
		artist, err := resilience.Call(ctx, e.swBreaker, cfg, func(ctx context.Context) (*sceneweb.Artist, error) {
			return e.sw.Artist(ctx, p.ScenewebID)
		})
		if err != nil {
			if qerr := e.failed(ctx, sum, model.KindPerson, p.ID, "sceneweb", err); qerr != nil {
				return qerr
			}
		} else {
			sum.Matched++
			filled = append(filled, p.FillFrom(&model.Person{
				BirthYear: artist.BirthYear,
				DeathYear: artist.DeathYear,
			})...)
		}
	}

	if len(filled) == 0 {
		return nil
	}
	if err := e.st.SavePerson(ctx, *p); err != nil {
		return eris.Wrapf(err, "enrich: save person %d", p.ID)
	}
	sum.Updated++
	log.Info("enrich: person updated", zap.Strings("filled", filled))
	return nil
}

func (e *Enricher) work(ctx context.Context, w *model.Work, sum *report.Summary) error {
	if e.wd == nil || w.WikidataID == "" || w.WikipediaURL != "" {
		return nil
	}
	sum.Processed++
	ent, err := e.entity(ctx, w.WikidataID)
	if err != nil {
		return e.failed(ctx, sum, model.KindWork, w.ID, "wikidata", err)
	}
	sum.Matched++
	filled := w.FillFrom(&model.Work{WikipediaURL: ent.WikipediaURL})
	if len(filled) == 0 {
		return nil
	}
	if err := e.st.SaveWork(ctx, *w); err != nil {
		return eris.Wrapf(err, "enrich: save work %d", w.ID)
	}
	sum.Updated++
	zap.L().Info("enrich: work updated",
		zap.String("component", "enrich"),
		zap.Int64("work_id", w.ID),
		zap.Strings("filled", filled),
	)
	return nil
}

func (e *Enricher) entity(ctx context.Context, qid string) (*wikidata.Entity, error) {
	if !wikidata.ValidID(qid) {
		return nil, eris.Wrapf(model.ErrNotFound, "enrich: malformed wikidata id %q", qid)
	}
	cfg := e.retry
	cfg.OnRetry = resilience.RetryLogger("wikidata", qid)
	return resilience.Call(ctx, e.wdBreaker, cfg, func(ctx context.Context) (*wikidata.Entity, error) {
		return e.wd.Entity(ctx, qid)
	})
}

// failed counts a lookup failure. Not found is unmatched; a refused call is
// an error; anything else is an error queued for review. Only store errors
// are returned.
func (e *Enricher) failed(ctx context.Context, sum *report.Summary, kind model.EntityKind, id int64, source string, err error) error {
	log := zap.L().With(
		zap.String("component", "enrich"),
		zap.String("source", source),
		zap.String("kind", string(kind)),
		zap.Int64("id", id),
	)
	switch {
	case errors.Is(err, model.ErrNotFound):
		log.Info("enrich: not found", zap.Error(err))
		sum.Unmatched++
		return nil
	case errors.Is(err, resilience.ErrCircuitOpen):
		log.Warn("enrich: skipped, circuit open")
		sum.Errors++
		return nil
	}
	log.Error("enrich: lookup failed", zap.Error(err))
	sum.Errors++
	if qerr := e.st.EnqueueReview(ctx, model.ReviewItem{
		Kind:      model.ReviewFetchFailed,
		Entity:    kind,
		EntityIDs: []string{itoa(id)},
		Reason:    source + ": " + err.Error(),
	}); qerr != nil {
		return eris.Wrap(qerr, "enrich: enqueue fetch failure")
	}
	sum.Queued++
	return nil
}

func personWikidataGap(p *model.Person) bool {
	return p.BirthYear == nil || p.DeathYear == nil || p.WikipediaURL == "" || p.Bio == "" || p.ImageURL == ""
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
