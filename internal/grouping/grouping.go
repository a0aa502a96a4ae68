// Package grouping partitions harvested episodes into productions.
package grouping

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/normalize"
)

// Discriminator prefixes.
const (
	discSeries = "series:"
	discWork   = "work:"
	discTitle  = "title:"
	discSingle = "single:"
)

// GroupKey is the composite grouping key (medium, base title, discriminator).
type GroupKey struct {
	Medium        model.Medium
	BaseTitle     string
	Discriminator string
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Medium, k.BaseTitle, k.Discriminator)
}

// Singleton reports whether the key was issued for exactly one episode
// (umbrella series or unparseable input).
func (k GroupKey) Singleton() bool {
	return strings.HasPrefix(k.Discriminator, discSingle)
}

// Series reports whether the key groups a serialized series.
func (k GroupKey) Series() bool {
	return strings.HasPrefix(k.Discriminator, discSeries)
}

func (k GroupKey) less(o GroupKey) bool {
	if k.Medium != o.Medium {
		return k.Medium < o.Medium
	}
	if k.BaseTitle != o.BaseTitle {
		return k.BaseTitle < o.BaseTitle
	}
	return k.Discriminator < o.Discriminator
}

// KeyFunc derives the grouping key of an episode. It returns false when the
// episode carries no usable grouping signal.
type KeyFunc func(ep model.Episode) (GroupKey, bool)

// DefaultKey chooses the discriminator by the strongest available signal:
//  1. series id, for radio serials
//  2. (work id, year), for content linked to a known Work
//  3. series id, for other media
//  4. the normalized title with the year, for unlinked standalone content
//
// Episodes without title or medium, and unlinked episodes without a year,
// have no key.
func DefaultKey(ep model.Episode) (GroupKey, bool) {
	title := normalize.Title(ep.Title)
	if title == "" || !ep.Medium.Valid() {
		return GroupKey{}, false
	}
	series := strings.ToLower(strings.TrimSpace(ep.SeriesID))

	switch {
	case series != "" && ep.Medium == model.MediumRadio:
		return GroupKey{Medium: ep.Medium, BaseTitle: series, Discriminator: discSeries + series}, true
	case ep.PlayID != nil:
		return GroupKey{
			Medium:        ep.Medium,
			BaseTitle:     title,
			Discriminator: discWork + strconv.FormatInt(*ep.PlayID, 10) + ":" + strconv.Itoa(ep.Year),
		}, true
	case series != "":
		return GroupKey{Medium: ep.Medium, BaseTitle: series, Discriminator: discSeries + series}, true
	case ep.Year > 0:
		return GroupKey{Medium: ep.Medium, BaseTitle: title, Discriminator: discTitle + strconv.Itoa(ep.Year)}, true
	default:
		return GroupKey{}, false
	}
}

// Config configures the engine.
type Config struct {
	// UmbrellaSeries lists anthology series whose installments are
	// independent productions and must never be grouped.
	UmbrellaSeries []string `yaml:"umbrella_series" mapstructure:"umbrella_series"`
}

// Engine groups episodes.
type Engine struct {
	umbrella map[string]bool
}

// New creates an Engine.
func New(cfg Config) *Engine {
	u := make(map[string]bool, len(cfg.UmbrellaSeries))
	for _, s := range cfg.UmbrellaSeries {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			u[s] = true
		}
	}
	return &Engine{umbrella: u}
}

// IsUmbrella reports whether seriesID is exempt from grouping.
func (e *Engine) IsUmbrella(seriesID string) bool {
	return e.umbrella[strings.ToLower(strings.TrimSpace(seriesID))]
}

// Grouping maps each key to its member episodes, ordered by PRF id.
type Grouping map[GroupKey][]model.Episode

// Keys returns the keys in a stable order.
func (g Grouping) Keys() []GroupKey {
	keys := make([]GroupKey, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

// Size returns the number of episodes across all groups.
func (g Grouping) Size() int {
	n := 0
	for _, members := range g {
		n += len(members)
	}
	return n
}

// Group partitions episodes. Umbrella series are checked first and yield
// singleton groups; remaining episodes are keyed by keyFn (DefaultKey when
// nil); episodes without a key become singletons. A second pass merges
// multi-part groups that share base title, year and medium.
//
// Every input episode lands in exactly one group, and the result depends
// only on the input set, not its order.
func (e *Engine) Group(episodes []model.Episode, keyFn KeyFunc) Grouping {
	if keyFn == nil {
		keyFn = DefaultKey
	}

	sorted := append([]model.Episode(nil), episodes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PrfID < sorted[j].PrfID })

	g := make(Grouping)
	for i, ep := range sorted {
		var key GroupKey
		switch k, ok := keyFn(ep); {
		case e.IsUmbrella(ep.SeriesID):
			key = singletonKey(ep, i)
		case !ok:
			zap.L().Debug("grouping: no grouping signal, keeping episode alone",
				zap.String("prf_id", ep.PrfID),
				zap.String("title", ep.Title),
			)
			key = singletonKey(ep, i)
		default:
			key = k
		}
		g[key] = append(g[key], ep)
	}

	return mergeMultiPart(g)
}

func singletonKey(ep model.Episode, index int) GroupKey {
	id := ep.PrfID
	if id == "" {
		id = "#" + strconv.Itoa(index)
	}
	return GroupKey{
		Medium:        ep.Medium,
		BaseTitle:     normalize.Title(ep.Title),
		Discriminator: discSingle + id,
	}
}

type partKey struct {
	medium model.Medium
	title  string
	year   int
}

// mergeMultiPart collapses groups whose base title, year and medium agree.
// Singletons and series groups are left alone, and groups linked to
// different Works are never combined.
func mergeMultiPart(g Grouping) Grouping {
	buckets := make(map[partKey][]GroupKey)
	for _, k := range g.Keys() {
		if k.Singleton() || k.Series() || k.BaseTitle == "" {
			continue
		}
		pk := partKey{medium: k.Medium, title: k.BaseTitle, year: minYear(g[k])}
		buckets[pk] = append(buckets[pk], k)
	}

	for _, keys := range buckets {
		if len(keys) < 2 || !singleWork(g, keys) {
			continue
		}
		target := mergeTarget(keys)
		for _, k := range keys {
			if k == target {
				continue
			}
			zap.L().Debug("grouping: merging multi-part group",
				zap.String("from", k.String()),
				zap.String("into", target.String()),
			)
			g[target] = append(g[target], g[k]...)
			delete(g, k)
		}
		sort.SliceStable(g[target], func(i, j int) bool { return g[target][i].PrfID < g[target][j].PrfID })
	}
	return g
}

// mergeTarget prefers a work-linked key; keys arrive sorted.
func mergeTarget(keys []GroupKey) GroupKey {
	for _, k := range keys {
		if strings.HasPrefix(k.Discriminator, discWork) {
			return k
		}
	}
	return keys[0]
}

func singleWork(g Grouping, keys []GroupKey) bool {
	var work *int64
	for _, k := range keys {
		for _, ep := range g[k] {
			if ep.PlayID == nil {
				continue
			}
			if work != nil && *work != *ep.PlayID {
				return false
			}
			work = ep.PlayID
		}
	}
	return true
}

func minYear(eps []model.Episode) int {
	y := 0
	for _, ep := range eps {
		if ep.Year > 0 && (y == 0 || ep.Year < y) {
			y = ep.Year
		}
	}
	return y
}
