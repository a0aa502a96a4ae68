package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/teaterarkiv/archive-cli/internal/model"
)

// MemoryStore keeps everything in process memory. It backs --dry-run and
// tests.
type MemoryStore struct {
	mu           sync.Mutex
	persons      map[int64]model.Person
	works        map[int64]model.Work
	performances map[int64]model.Performance
	episodes     map[string]model.Episode
	reviews      map[string]model.ReviewItem // by fingerprint
	lastIDs      map[model.EntityKind]int64
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		persons:      make(map[int64]model.Person),
		works:        make(map[int64]model.Work),
		performances: make(map[int64]model.Performance),
		episodes:     make(map[string]model.Episode),
		reviews:      make(map[string]model.ReviewItem),
		lastIDs:      make(map[model.EntityKind]int64),
	}
}

// NewMemoryFrom returns a MemoryStore seeded with a deep copy of snap.
func NewMemoryFrom(snap *model.Snapshot) *MemoryStore {
	m := NewMemory()
	for id, p := range snap.Persons {
		m.persons[id] = *p.Clone()
	}
	for id, w := range snap.Works {
		m.works[id] = *w.Clone()
	}
	for id, p := range snap.Performances {
		m.performances[id] = *p.Clone()
	}
	for id, e := range snap.Episodes {
		m.episodes[id] = *e.Clone()
	}
	return m
}

func (m *MemoryStore) LoadPersons(_ context.Context) ([]model.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Person, 0, len(m.persons))
	for _, p := range m.persons {
		out = append(out, *p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) LoadWorks(_ context.Context) ([]model.Work, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Work, 0, len(m.works))
	for _, w := range m.works {
		out = append(out, *w.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) LoadPerformances(_ context.Context) ([]model.Performance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Performance, 0, len(m.performances))
	for _, p := range m.performances {
		out = append(out, *p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) LoadEpisodes(_ context.Context) ([]model.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Episode, 0, len(m.episodes))
	for _, e := range m.episodes {
		out = append(out, *e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrfID < out[j].PrfID })
	return out, nil
}

func (m *MemoryStore) SavePerson(_ context.Context, p model.Person) error {
	if p.ID == 0 {
		return eris.New("memory: save person without id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p.UpdatedAt = now()
	m.persons[p.ID] = *p.Clone()
	return nil
}

func (m *MemoryStore) SaveWork(_ context.Context, w model.Work) error {
	if w.ID == 0 {
		return eris.New("memory: save work without id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w.UpdatedAt = now()
	m.works[w.ID] = *w.Clone()
	return nil
}

func (m *MemoryStore) SavePerformance(_ context.Context, p model.Performance) error {
	if p.ID == 0 {
		return eris.New("memory: save performance without id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p.UpdatedAt = now()
	m.performances[p.ID] = *p.Clone()
	return nil
}

func (m *MemoryStore) SaveEpisode(_ context.Context, e model.Episode) error {
	if e.PrfID == "" {
		return eris.New("memory: save episode without prf id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e.UpdatedAt = now()
	m.episodes[e.PrfID] = *e.Clone()
	return nil
}

func (m *MemoryStore) DeletePerson(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.persons, id)
	return nil
}

func (m *MemoryStore) DeleteWork(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.works, id)
	return nil
}

func (m *MemoryStore) DeletePerformance(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.performances, id)
	return nil
}

func (m *MemoryStore) DeleteEpisode(_ context.Context, prfID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.episodes, prfID)
	return nil
}

// NextID never hands out an id twice, even after the record holding it is
// deleted.
func (m *MemoryStore) NextID(_ context.Context, kind model.EntityKind) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	maxID := m.lastIDs[kind]
	switch kind {
	case model.KindPerson:
		for id := range m.persons {
			maxID = max(maxID, id)
		}
	case model.KindWork:
		for id := range m.works {
			maxID = max(maxID, id)
		}
	case model.KindPerformance:
		for id := range m.performances {
			maxID = max(maxID, id)
		}
	default:
		return 0, eris.Errorf("memory: no numeric ids for %s", kind)
	}
	m.lastIDs[kind] = maxID + 1
	return maxID + 1, nil
}

func (m *MemoryStore) EnqueueReview(_ context.Context, item model.ReviewItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fp := item.Fingerprint()
	if _, ok := m.reviews[fp]; ok {
		return nil
	}
	m.reviews[fp] = prepareReview(item)
	return nil
}

func (m *MemoryStore) ListReview(_ context.Context, filter ReviewFilter) ([]model.ReviewItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.ReviewItem, 0, len(m.reviews))
	for _, it := range m.reviews {
		items = append(items, it)
	}
	return filterReviews(items, filter), nil
}

func (m *MemoryStore) ResolveReview(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for fp, it := range m.reviews {
		if it.ID == id {
			t := now()
			it.ResolvedAt = &t
			m.reviews[fp] = it
			return nil
		}
	}
	return eris.Wrapf(model.ErrNotFound, "memory: review item %s", id)
}

func (m *MemoryStore) Migrate(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
