package model

import (
	"sort"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when an external lookup or a referenced record
// does not exist.
var ErrNotFound = eris.New("not found")

// Snapshot is the in-memory working set of one pipeline run. It is loaded
// once from the store and passed explicitly through the grouping and merge
// stages; stages mutate it in step with their store writes.
type Snapshot struct {
	Persons      map[int64]*Person
	Works        map[int64]*Work
	Performances map[int64]*Performance
	Episodes     map[string]*Episode
}

// NewSnapshot indexes the given collections by id.
func NewSnapshot(persons []Person, works []Work, perfs []Performance, episodes []Episode) *Snapshot {
	s := &Snapshot{
		Persons:      make(map[int64]*Person, len(persons)),
		Works:        make(map[int64]*Work, len(works)),
		Performances: make(map[int64]*Performance, len(perfs)),
		Episodes:     make(map[string]*Episode, len(episodes)),
	}
	for i := range persons {
		s.Persons[persons[i].ID] = &persons[i]
	}
	for i := range works {
		s.Works[works[i].ID] = &works[i]
	}
	for i := range perfs {
		s.Performances[perfs[i].ID] = &perfs[i]
	}
	for i := range episodes {
		s.Episodes[episodes[i].PrfID] = &episodes[i]
	}
	return s
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Persons:      make(map[int64]*Person, len(s.Persons)),
		Works:        make(map[int64]*Work, len(s.Works)),
		Performances: make(map[int64]*Performance, len(s.Performances)),
		Episodes:     make(map[string]*Episode, len(s.Episodes)),
	}
	for id, p := range s.Persons {
		c.Persons[id] = p.Clone()
	}
	for id, w := range s.Works {
		c.Works[id] = w.Clone()
	}
	for id, p := range s.Performances {
		c.Performances[id] = p.Clone()
	}
	for id, e := range s.Episodes {
		c.Episodes[id] = e.Clone()
	}
	return c
}

// PersonList returns the persons ordered by id.
func (s *Snapshot) PersonList() []*Person {
	out := make([]*Person, 0, len(s.Persons))
	for _, p := range s.Persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WorkList returns the works ordered by id.
func (s *Snapshot) WorkList() []*Work {
	out := make([]*Work, 0, len(s.Works))
	for _, w := range s.Works {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PerformanceList returns the performances ordered by id.
func (s *Snapshot) PerformanceList() []*Performance {
	out := make([]*Performance, 0, len(s.Performances))
	for _, p := range s.Performances {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EpisodeList returns the episodes ordered by PRF id.
func (s *Snapshot) EpisodeList() []*Episode {
	out := make([]*Episode, 0, len(s.Episodes))
	for _, e := range s.Episodes {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrfID < out[j].PrfID })
	return out
}

// EpisodeValues returns a value copy of every episode, ordered by PRF id.
func (s *Snapshot) EpisodeValues() []Episode {
	list := s.EpisodeList()
	out := make([]Episode, len(list))
	for i, e := range list {
		out[i] = *e.Clone()
	}
	return out
}
