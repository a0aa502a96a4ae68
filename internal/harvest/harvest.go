// Package harvest fetches broadcast metadata from NRK and upserts it as
// episodes, creating persons for credited contributors on first sight.
package harvest

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/normalize"
	"github.com/teaterarkiv/archive-cli/internal/report"
	"github.com/teaterarkiv/archive-cli/internal/resilience"
	"github.com/teaterarkiv/archive-cli/internal/store"
	"github.com/teaterarkiv/archive-cli/pkg/nrk"
)

// Config tunes retries and the circuit breaker around NRK calls.
type Config struct {
	Retry            resilience.RetryConfig
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Harvester upserts episodes from NRK program metadata.
type Harvester struct {
	client  nrk.Client
	st      store.Store
	retry   resilience.RetryConfig
	breaker *resilience.Breaker

	persons map[string]int64
}

// New creates a Harvester.
func New(client nrk.Client, st store.Store, cfg Config) *Harvester {
	return &Harvester{
		client:  client,
		st:      st,
		retry:   cfg.Retry,
		breaker: resilience.NewBreaker("nrk", cfg.BreakerThreshold, cfg.BreakerCooldown),
	}
}

// Run harvests ids in order and keeps snap in step with the writes.
// Lookups that fail are counted and queued for review; the run continues.
// Store errors and cancellation end the run.
func (h *Harvester) Run(ctx context.Context, snap *model.Snapshot, ids []string) (*report.Summary, error) {
	sum := report.NewSummary("harvest")
	h.indexPersons(snap)

	for _, raw := range ids {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "harvest: cancelled")
		}
		id := strings.ToUpper(strings.TrimSpace(raw))
		if id == "" {
			continue
		}
		sum.Processed++
		log := zap.L().With(zap.String("component", "harvest"), zap.String("prf_id", id))

		prog, err := h.fetch(ctx, id)
		switch {
		case err == nil:
		case errors.Is(err, model.ErrNotFound):
			log.Info("harvest: not found")
			sum.Unmatched++
			continue
		case errors.Is(err, resilience.ErrCircuitOpen):
			log.Warn("harvest: skipped, nrk circuit open")
			sum.Errors++
			continue
		case ctx.Err() != nil:
			return sum, eris.Wrap(ctx.Err(), "harvest: cancelled")
		default:
			log.Error("harvest: fetch failed", zap.Error(err))
			sum.Errors++
			if qerr := h.st.EnqueueReview(ctx, model.ReviewItem{
				Kind:      model.ReviewFetchFailed,
				Entity:    model.KindEpisode,
				EntityIDs: []string{id},
				Reason:    err.Error(),
			}); qerr != nil {
				return sum, eris.Wrap(qerr, "harvest: enqueue fetch failure")
			}
			sum.Queued++
			continue
		}
		sum.Matched++

		existing := snap.Episodes[id]
		ep, err := h.episode(ctx, snap, id, prog, existing)
		if err != nil {
			return sum, err
		}
		if existing != nil && sameEpisode(existing, &ep) {
			log.Debug("harvest: unchanged")
			continue
		}
		if err := h.st.SaveEpisode(ctx, ep); err != nil {
			return sum, eris.Wrapf(err, "harvest: save episode %s", id)
		}
		snap.Episodes[id] = &ep
		if existing == nil {
			sum.Created++
			log.Info("harvest: episode created", zap.String("title", ep.Title))
		} else {
			sum.Updated++
			log.Info("harvest: episode updated", zap.String("title", ep.Title))
		}
	}
	return sum, nil
}

func (h *Harvester) fetch(ctx context.Context, id string) (*nrk.Program, error) {
	cfg := h.retry
	cfg.OnRetry = resilience.RetryLogger("nrk", id)
	return resilience.Call(ctx, h.breaker, cfg, func(ctx context.Context) (*nrk.Program, error) {
		return h.client.Program(ctx, id)
	})
}

// episode maps a program onto the stored episode. Links set by other passes
// (performance, play) are kept; fields the program leaves empty keep their
// stored value.
func (h *Harvester) episode(ctx context.Context, snap *model.Snapshot, id string, p *nrk.Program, existing *model.Episode) (model.Episode, error) {
	ep := model.Episode{PrfID: id}
	if existing != nil {
		ep = *existing.Clone()
	}
	if p.Title != "" {
		ep.Title = p.Title
	}
	if p.ProductionYear > 0 {
		ep.Year = p.ProductionYear
	}
	if m := medium(p.MediaType); m != "" {
		ep.Medium = m
	} else if ep.Medium == "" {
		ep.Medium = model.MediumRadio
	}
	if d := p.DurationSeconds(); d > 0 {
		ep.Duration = d
	}
	if s := p.SeriesID(); s != "" {
		ep.SeriesID = s
	}
	if p.Description != "" {
		ep.Description = p.Description
	}

	credits := append([]model.Credit(nil), ep.Credits...)
	for _, c := range p.Contributors {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		pid, err := h.person(ctx, snap, c.Name)
		if err != nil {
			return ep, err
		}
		credits = append(credits, model.Credit{PersonID: pid, Role: Role(c.Role)})
	}
	ep.Credits = model.DedupeCredits(credits)
	return ep, nil
}

// person returns the id of the person whose normalized name equals name,
// creating one when there is none.
func (h *Harvester) person(ctx context.Context, snap *model.Snapshot, name string) (int64, error) {
	key := normalize.Name(name)
	if id, ok := h.persons[key]; ok {
		return id, nil
	}
	id, err := h.st.NextID(ctx, model.KindPerson)
	if err != nil {
		return 0, eris.Wrap(err, "harvest: allocate person id")
	}
	p := model.Person{ID: id, Name: strings.TrimSpace(name), NormalizedName: key}
	if err := h.st.SavePerson(ctx, p); err != nil {
		return 0, eris.Wrapf(err, "harvest: save person %q", name)
	}
	snap.Persons[id] = &p
	h.persons[key] = id
	zap.L().Info("harvest: person created",
		zap.String("component", "harvest"),
		zap.Int64("person_id", id),
		zap.String("name", p.Name),
	)
	return id, nil
}

// indexPersons maps normalized names to the lowest person id carrying them.
func (h *Harvester) indexPersons(snap *model.Snapshot) {
	h.persons = make(map[string]int64, len(snap.Persons))
	for _, p := range snap.PersonList() {
		key := normalize.Name(p.Name)
		if _, ok := h.persons[key]; !ok && key != "" {
			h.persons[key] = p.ID
		}
	}
}

func medium(mediaType string) model.Medium {
	switch strings.ToLower(mediaType) {
	case "video", "tv":
		return model.MediumTV
	case "audio", "radio":
		return model.MediumRadio
	}
	return ""
}

var roles = map[string]string{
	"regi":          model.RoleDirector,
	"regissør":      model.RoleDirector,
	"medvirkende":   model.RoleActor,
	"skuespiller":   model.RoleActor,
	"forfatter":     model.RolePlaywright,
	"dramatiker":    model.RolePlaywright,
	"komponist":     model.RoleComposer,
	"musikk":        model.RoleComposer,
	"oversetter":    model.RoleTranslator,
	"oversettelse":  model.RoleTranslator,
	"dramatisering": "adaptation",
}

// Role maps an NRK contributor role to a credit role. Unknown roles are
// kept lowercased.
func Role(nrkRole string) string {
	r := strings.ToLower(strings.TrimSpace(nrkRole))
	if mapped, ok := roles[r]; ok {
		return mapped
	}
	if r == "" {
		return model.RoleActor
	}
	return r
}

func sameEpisode(a, b *model.Episode) bool {
	x, y := *a, *b
	x.UpdatedAt, y.UpdatedAt = time.Time{}, time.Time{}
	if len(x.Credits) == 0 {
		x.Credits = nil
	}
	if len(y.Credits) == 0 {
		y.Credits = nil
	}
	return reflect.DeepEqual(x, y)
}
