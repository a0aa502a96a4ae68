package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerson_FillFrom(t *testing.T) {
	t.Parallel()

	p := &Person{ID: 1, Name: "Henrik Ibsen", WikidataID: "Q36661"}
	src := &Person{WikidataID: "Q999", Bio: "norsk dramatiker", BirthYear: IntPtr(1828)}

	filled := p.FillFrom(src)

	assert.Equal(t, "Q36661", p.WikidataID, "existing value must survive")
	assert.Equal(t, "norsk dramatiker", p.Bio)
	require.NotNil(t, p.BirthYear)
	assert.Equal(t, 1828, *p.BirthYear)
	assert.ElementsMatch(t, []string{"bio", "birth_year"}, filled)

	*src.BirthYear = 1900
	assert.Equal(t, 1828, *p.BirthYear, "filled pointer must not alias the source")
}

func TestPerson_Completeness(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, (&Person{Name: "A"}).Completeness())
	assert.Equal(t, 3, (&Person{WikidataID: "Q1", Bio: "x", DeathYear: IntPtr(1906)}).Completeness())
}

func TestWork_FillFromAndClone(t *testing.T) {
	t.Parallel()

	w := &Work{ID: 10, Title: "Peer Gynt"}
	filled := w.FillFrom(&Work{PlaywrightID: Int64Ptr(1), Genre: "drama"})
	assert.ElementsMatch(t, []string{"genre", "playwright_id"}, filled)
	assert.Equal(t, 2, w.Completeness())

	c := w.Clone()
	*c.PlaywrightID = 2
	assert.Equal(t, int64(1), *w.PlaywrightID)
}

func TestDedupeCredits(t *testing.T) {
	t.Parallel()

	in := []Credit{
		{PersonID: 2, Role: RoleActor, CharacterName: "Peer"},
		{PersonID: 1, Role: RoleDirector},
		{PersonID: 2, Role: RoleActor, CharacterName: "Peer"},
		{PersonID: 2, Role: RoleActor, CharacterName: "Mor Åse"},
	}

	out := DedupeCredits(in)
	require.Len(t, out, 3)
	assert.Equal(t, RoleActor, out[0].Role)
	assert.Equal(t, "Mor Åse", out[0].CharacterName)
	assert.Equal(t, "Peer", out[1].CharacterName)
	assert.Equal(t, RoleDirector, out[2].Role)

	assert.Empty(t, DedupeCredits(nil))
}

func TestMedium_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, MediumTV.Valid())
	assert.True(t, MediumRadio.Valid())
	assert.False(t, Medium("podcast").Valid())
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	t.Parallel()

	s := NewSnapshot(
		[]Person{{ID: 2, Name: "B"}, {ID: 1, Name: "A"}},
		[]Work{{ID: 10, Title: "Vildanden"}},
		[]Performance{{ID: 5, Title: "Vildanden", Credits: []Credit{{PersonID: 1, Role: RoleActor}}}},
		[]Episode{{PrfID: "MKTF02000113", Title: "Vildanden", PerformanceID: Int64Ptr(5)}},
	)

	c := s.Clone()
	c.Persons[1].Name = "changed"
	c.Performances[5].Credits[0].PersonID = 9
	*c.Episodes["MKTF02000113"].PerformanceID = 6

	assert.Equal(t, "A", s.Persons[1].Name)
	assert.Equal(t, int64(1), s.Performances[5].Credits[0].PersonID)
	assert.Equal(t, int64(5), *s.Episodes["MKTF02000113"].PerformanceID)

	list := s.PersonList()
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)

	vals := s.EpisodeValues()
	require.Len(t, vals, 1)
	*vals[0].PerformanceID = 7
	assert.Equal(t, int64(5), *s.Episodes["MKTF02000113"].PerformanceID)
}

func TestReviewItem_Fingerprint(t *testing.T) {
	t.Parallel()

	a := ReviewItem{ID: "x", Kind: ReviewHomonym, Entity: KindPerson, EntityIDs: []string{"4", "2"}}
	b := ReviewItem{ID: "y", Kind: ReviewHomonym, Entity: KindPerson, EntityIDs: []string{"2", "4"}, Reason: "other"}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, []string{"4", "2"}, a.EntityIDs, "fingerprint must not reorder ids")

	c := ReviewItem{Kind: ReviewOrphan, Entity: KindPerson, EntityIDs: []string{"2", "4"}}
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	assert.True(t, a.Pending())
	now := time.Now()
	a.ResolvedAt = &now
	assert.False(t, a.Pending())
}
