package resolve

import (
	"sort"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/normalize"
)

// DuplicateSet is a group of records believed to describe the same entity.
type DuplicateSet struct {
	Kind model.EntityKind
	// Key is the shared normalized name or Wikidata id.
	Key string
	IDs []int64
}

// unionFind over int64 ids, keeping the lowest id as root.
type unionFind map[int64]int64

func (u unionFind) find(x int64) int64 {
	for {
		p, ok := u[x]
		if !ok || p == x {
			return x
		}
		u[x] = u[p]
		x = p
	}
}

func (u unionFind) union(a, b int64) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u[rb] = ra
	u[ra] = ra
}

// components tracks the members of each union-find root.
type components struct {
	uf      unionFind
	members map[int64][]int64
}

func newComponents(persons []*model.Person) *components {
	c := &components{uf: make(unionFind), members: make(map[int64][]int64, len(persons))}
	for _, p := range persons {
		c.members[p.ID] = []int64{p.ID}
	}
	return c
}

func (c *components) join(a, b int64) {
	ra, rb := c.uf.find(a), c.uf.find(b)
	if ra == rb {
		return
	}
	c.uf.union(ra, rb)
	root := c.uf.find(ra)
	other := ra
	if root == ra {
		other = rb
	}
	c.members[root] = append(c.members[root], c.members[other]...)
	delete(c.members, other)
}

// FindPersonDuplicates groups persons that share a Wikidata id, or share a
// normalized name without conflicting on birth year, death year or Wikidata
// id.
//
// Wikidata ids are joined first. Within one name, when every record is
// compatible with every other the whole name group is joined. Otherwise only
// records carrying a signal of their own (an id or a year) are joined, and
// only into sets where every member agrees with every other; bare records
// could belong to more than one of those sets and stay apart. What is left
// of a conflicting name group is returned as a homonym set for review.
func FindPersonDuplicates(s *model.Snapshot) (dupes, homonyms []DuplicateSet) {
	persons := s.PersonList()
	comps := newComponents(persons)
	uf := comps.uf

	byWikidata := make(map[string]int64)
	byName := make(map[string][]*model.Person)
	for _, p := range persons {
		if p.WikidataID != "" {
			if first, ok := byWikidata[p.WikidataID]; ok {
				comps.join(first, p.ID)
			} else {
				byWikidata[p.WikidataID] = p.ID
			}
		}
		if key := personKey(p); key != "" {
			byName[key] = append(byName[key], p)
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	conflicted := make(map[string]bool)
	for _, name := range names {
		if !joinByName(s, comps, byName[name]) {
			conflicted[name] = true
		}
	}

	sets := make(map[int64][]int64)
	for _, p := range persons {
		root := uf.find(p.ID)
		sets[root] = append(sets[root], p.ID)
	}

	merged := make(map[int64]bool)
	for _, ids := range sets {
		if len(ids) < 2 {
			continue
		}
		if !pairwiseCompatible(s, ids) {
			homonyms = append(homonyms, DuplicateSet{Kind: model.KindPerson, Key: personKey(s.Persons[ids[0]]), IDs: ids})
			continue
		}
		dupes = append(dupes, DuplicateSet{Kind: model.KindPerson, Key: setKey(s, ids), IDs: ids})
		for _, id := range ids {
			merged[id] = true
		}
	}

	// The unmerged rest of a conflicting name group needs a human decision.
	for _, name := range names {
		if !conflicted[name] {
			continue
		}
		var rest []int64
		for _, p := range byName[name] {
			if !merged[p.ID] {
				rest = append(rest, p.ID)
			}
		}
		if len(rest) > 1 && !reported(homonyms, rest) {
			homonyms = append(homonyms, DuplicateSet{Kind: model.KindPerson, Key: name, IDs: rest})
		}
	}

	sortSets(dupes)
	sortSets(homonyms)
	return dupes, homonyms
}

// joinByName joins the components of one name group and reports whether the
// group was free of conflicts.
func joinByName(s *model.Snapshot, comps *components, group []*model.Person) bool {
	var roots []int64
	seenRoot := make(map[int64]bool)
	for _, p := range group {
		if r := comps.uf.find(p.ID); !seenRoot[r] {
			seenRoot[r] = true
			roots = append(roots, r)
		}
	}
	if len(roots) < 2 {
		return true
	}
	// Components may reach beyond this name through a shared Wikidata id.
	members := make(map[int64][]int64, len(roots))
	for _, r := range roots {
		members[r] = comps.members[r]
	}

	fits := func(a, b int64) bool { return componentsCompatible(s, members[a], members[b]) }

	clean := true
	for i := range roots {
		for j := i + 1; j < len(roots); j++ {
			if !fits(roots[i], roots[j]) {
				clean = false
			}
		}
	}
	if clean {
		for _, r := range roots[1:] {
			comps.join(roots[0], r)
		}
		return true
	}

	var signed []int64
	for _, r := range roots {
		if hasSignal(s, members[r]) {
			signed = append(signed, r)
		}
	}
	// Connected groups of the compatibility graph that are cliques merge;
	// anything less is ambiguous.
	seen := make(map[int64]bool)
	for _, start := range signed {
		if seen[start] {
			continue
		}
		cluster := []int64{start}
		seen[start] = true
		for k := 0; k < len(cluster); k++ {
			for _, r := range signed {
				if !seen[r] && fits(cluster[k], r) {
					seen[r] = true
					cluster = append(cluster, r)
				}
			}
		}
		if len(cluster) < 2 || !clique(cluster, fits) {
			continue
		}
		for _, r := range cluster[1:] {
			comps.join(cluster[0], r)
		}
	}
	return false
}

func clique(nodes []int64, fits func(a, b int64) bool) bool {
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			if !fits(nodes[i], nodes[j]) {
				return false
			}
		}
	}
	return true
}

func componentsCompatible(s *model.Snapshot, a, b []int64) bool {
	for _, x := range a {
		for _, y := range b {
			if !compatible(s.Persons[x], s.Persons[y]) {
				return false
			}
		}
	}
	return true
}

// hasSignal reports whether any member carries a Wikidata id or a year.
func hasSignal(s *model.Snapshot, ids []int64) bool {
	for _, id := range ids {
		p := s.Persons[id]
		if p.WikidataID != "" || p.BirthYear != nil || p.DeathYear != nil {
			return true
		}
	}
	return false
}

// FindWorkDuplicates groups works that share a Wikidata id.
func FindWorkDuplicates(s *model.Snapshot) []DuplicateSet {
	byWikidata := make(map[string][]int64)
	for _, w := range s.WorkList() {
		if w.WikidataID != "" {
			byWikidata[w.WikidataID] = append(byWikidata[w.WikidataID], w.ID)
		}
	}
	var sets []DuplicateSet
	for qid, ids := range byWikidata {
		if len(ids) > 1 {
			sets = append(sets, DuplicateSet{Kind: model.KindWork, Key: qid, IDs: ids})
		}
	}
	sortSets(sets)
	return sets
}

// Persons returns the set's members from the snapshot.
func (d DuplicateSet) Persons(s *model.Snapshot) []*model.Person {
	out := make([]*model.Person, 0, len(d.IDs))
	for _, id := range d.IDs {
		if p := s.Persons[id]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Works returns the set's members from the snapshot.
func (d DuplicateSet) Works(s *model.Snapshot) []*model.Work {
	out := make([]*model.Work, 0, len(d.IDs))
	for _, id := range d.IDs {
		if w := s.Works[id]; w != nil {
			out = append(out, w)
		}
	}
	return out
}

func personKey(p *model.Person) string {
	return normalize.Name(p.Name)
}

func setKey(s *model.Snapshot, ids []int64) string {
	for _, id := range ids {
		if q := s.Persons[id].WikidataID; q != "" {
			return q
		}
	}
	return personKey(s.Persons[ids[0]])
}

// compatible reports whether two persons carry no conflicting secondary
// signal. A missing value never conflicts.
func compatible(a, b *model.Person) bool {
	if a.WikidataID != "" && b.WikidataID != "" && a.WikidataID != b.WikidataID {
		return false
	}
	if a.BirthYear != nil && b.BirthYear != nil && *a.BirthYear != *b.BirthYear {
		return false
	}
	if a.DeathYear != nil && b.DeathYear != nil && *a.DeathYear != *b.DeathYear {
		return false
	}
	return true
}

func pairwiseCompatible(s *model.Snapshot, ids []int64) bool {
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if !compatible(s.Persons[ids[i]], s.Persons[ids[j]]) {
				return false
			}
		}
	}
	return true
}

func reported(sets []DuplicateSet, ids []int64) bool {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, set := range sets {
		covered := 0
		for _, id := range set.IDs {
			if want[id] {
				covered++
			}
		}
		if covered == len(ids) {
			return true
		}
	}
	return false
}

func sortSets(sets []DuplicateSet) {
	for i := range sets {
		sort.Slice(sets[i].IDs, func(a, b int) bool { return sets[i].IDs[a] < sets[i].IDs[b] })
	}
	sort.Slice(sets, func(i, j int) bool {
		a, b := sets[i].IDs, sets[j].IDs
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return sets[i].Key < sets[j].Key
	})
}
