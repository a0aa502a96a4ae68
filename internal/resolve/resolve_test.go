package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/teaterarkiv/archive-cli/internal/model"
)

// recorder is a Writer that records every call.
type recorder struct {
	persons      map[int64]model.Person
	works        map[int64]model.Work
	performances map[int64]model.Performance
	episodes     map[string]model.Episode
	deleted      []string
	reviews      []model.ReviewItem
}

func newRecorder() *recorder {
	return &recorder{
		persons:      map[int64]model.Person{},
		works:        map[int64]model.Work{},
		performances: map[int64]model.Performance{},
		episodes:     map[string]model.Episode{},
	}
}

func (r *recorder) SavePerson(_ context.Context, p model.Person) error { r.persons[p.ID] = p; return nil }
func (r *recorder) SaveWork(_ context.Context, w model.Work) error     { r.works[w.ID] = w; return nil }
func (r *recorder) SavePerformance(_ context.Context, p model.Performance) error {
	r.performances[p.ID] = p
	return nil
}
func (r *recorder) SaveEpisode(_ context.Context, e model.Episode) error {
	r.episodes[e.PrfID] = e
	return nil
}
func (r *recorder) DeletePerson(_ context.Context, id int64) error {
	r.deleted = append(r.deleted, "person:"+itoa(id))
	return nil
}
func (r *recorder) DeleteWork(_ context.Context, id int64) error {
	r.deleted = append(r.deleted, "work:"+itoa(id))
	return nil
}
func (r *recorder) DeletePerformance(_ context.Context, id int64) error {
	r.deleted = append(r.deleted, "performance:"+itoa(id))
	return nil
}
func (r *recorder) EnqueueReview(_ context.Context, item model.ReviewItem) error {
	r.reviews = append(r.reviews, item)
	return nil
}

// mockWriter is a testify mock of Writer for failure paths.
type mockWriter struct{ mock.Mock }

func (m *mockWriter) SavePerson(ctx context.Context, p model.Person) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockWriter) SaveWork(ctx context.Context, w model.Work) error { return m.Called(ctx, w).Error(0) }
func (m *mockWriter) SavePerformance(ctx context.Context, p model.Performance) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockWriter) SaveEpisode(ctx context.Context, e model.Episode) error {
	return m.Called(ctx, e).Error(0)
}
func (m *mockWriter) DeletePerson(ctx context.Context, id int64) error { return m.Called(ctx, id).Error(0) }
func (m *mockWriter) DeleteWork(ctx context.Context, id int64) error   { return m.Called(ctx, id).Error(0) }
func (m *mockWriter) DeletePerformance(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockWriter) EnqueueReview(ctx context.Context, item model.ReviewItem) error {
	return m.Called(ctx, item).Error(0)
}

// brechtSnapshot holds two "Bertolt Brecht" persons: 3 wrote five works, 8
// wrote one and is credited on an episode.
func brechtSnapshot() *model.Snapshot {
	persons := []model.Person{
		{ID: 3, Name: "Bertolt Brecht"},
		{ID: 8, Name: "Bertolt Brecht", BirthYear: model.IntPtr(1898)},
		{ID: 9, Name: "Kurt Weill"},
	}
	var works []model.Work
	for i := int64(1); i <= 5; i++ {
		works = append(works, model.Work{ID: i, Title: "Verk", PlaywrightID: model.Int64Ptr(3)})
	}
	works = append(works, model.Work{ID: 6, Title: "Tolvskillingsoperaen", PlaywrightID: model.Int64Ptr(8), ComposerID: model.Int64Ptr(9)})
	perfs := []model.Performance{
		{ID: 20, Title: "Tolvskillingsoperaen", WorkID: model.Int64Ptr(6), Credits: []model.Credit{
			{PersonID: 8, Role: model.RolePlaywright},
			{PersonID: 3, Role: model.RolePlaywright},
		}},
	}
	eps := []model.Episode{
		{PrfID: "MKTR01", Title: "Tolvskillingsoperaen", PerformanceID: model.Int64Ptr(20), PlayID: model.Int64Ptr(6),
			Credits: []model.Credit{{PersonID: 8, Role: model.RolePlaywright}}},
	}
	return model.NewSnapshot(persons, works, perfs, eps)
}

func TestResolveDuplicates_HigherCompletenessWins(t *testing.T) {
	a := &model.Person{ID: 1, Name: "Bertolt Brecht"}
	b := &model.Person{ID: 2, Name: "Bertolt Brecht", WikidataID: "Q38757", Bio: "tysk dramatiker"}
	keep, removed := ResolveDuplicates([]*model.Person{a, b})
	assert.Equal(t, int64(2), keep.ID)
	require.Len(t, removed, 1)
	assert.Equal(t, int64(1), removed[0].ID)
}

func TestResolveDuplicates_TieGoesToLowestID(t *testing.T) {
	keep, removed := ResolveDuplicates([]*model.Person{{ID: 9}, {ID: 4}, {ID: 7}})
	assert.Equal(t, int64(4), keep.ID)
	require.Len(t, removed, 2)
	assert.Equal(t, int64(7), removed[0].ID)
	assert.Equal(t, int64(9), removed[1].ID)
}

func TestResolveDuplicates_SingleAndEmpty(t *testing.T) {
	keep, removed := ResolveDuplicates([]*model.Work{{ID: 5}})
	assert.Equal(t, int64(5), keep.ID)
	assert.Empty(t, removed)

	none, removed := ResolveDuplicates[*model.Work](nil)
	assert.Nil(t, none)
	assert.Empty(t, removed)
}

func TestResolveDuplicates_IgnoresRepeatedID(t *testing.T) {
	_, removed := ResolveDuplicates([]*model.Person{{ID: 1}, {ID: 1}})
	assert.Empty(t, removed)
}

func TestRepointReferences_PersonSites(t *testing.T) {
	s := brechtSnapshot()
	n, touched := RepointReferences(s, model.KindPerson, 8, 3)

	// playwright_id on work 6, one performance credit, one episode credit
	assert.Equal(t, 3, n)
	assert.Equal(t, []int64{6}, touched.Works)
	assert.Equal(t, []int64{20}, touched.Performances)
	assert.Equal(t, []string{"MKTR01"}, touched.Episodes)
	assert.Equal(t, int64(3), *s.Works[6].PlaywrightID)
	assert.Len(t, s.Performances[20].Credits, 1, "repointed credits are deduplicated")
	assert.Empty(t, References(s, model.KindPerson, 8))

	n, touched = RepointReferences(s, model.KindPerson, 8, 3)
	assert.Zero(t, n)
	assert.True(t, touched.Empty())
}

func TestRepointReferences_WorkSites(t *testing.T) {
	s := brechtSnapshot()
	s.Works[7] = &model.Work{ID: 7, Title: "Tolvskillingsoperaen"}
	n, _ := RepointReferences(s, model.KindWork, 6, 7)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(7), *s.Performances[20].WorkID)
	assert.Equal(t, int64(7), *s.Episodes["MKTR01"].PlayID)
	assert.Len(t, References(s, model.KindWork, 7), 2)
}

func TestRepointReferences_SameIDIsNoop(t *testing.T) {
	n, touched := RepointReferences(brechtSnapshot(), model.KindPerson, 3, 3)
	assert.Zero(t, n)
	assert.True(t, touched.Empty())
}

func TestMergePersons_Brecht(t *testing.T) {
	s := brechtSnapshot()
	dupes, homonyms := FindPersonDuplicates(s)
	require.Len(t, dupes, 1)
	assert.Empty(t, homonyms)

	keep, removed := ResolveDuplicates(dupes[0].Persons(s))
	assert.Equal(t, int64(8), keep.ID, "birth year makes 8 more complete")
	require.Len(t, removed, 1)

	rec := newRecorder()
	m := NewMerger(s, rec)
	res, err := m.MergePersons(context.Background(), keep.ID, []int64{removed[0].ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, res.Deleted)
	assert.Equal(t, 6, res.Repointed)
	assert.Empty(t, res.Violations)

	assert.Nil(t, s.Persons[3])
	assert.Empty(t, References(s, model.KindPerson, 3))
	assert.Len(t, References(s, model.KindPerson, 8), 8)
	assert.Equal(t, []string{"person:3"}, rec.deleted)
	assert.Len(t, rec.works, 5)
	assert.Equal(t, StateSourceDeleted, InspectState(s, model.KindPerson, 8, 3))
}

func TestMergePersons_Idempotent(t *testing.T) {
	s := brechtSnapshot()
	m := NewMerger(s, newRecorder())
	_, err := m.MergePersons(context.Background(), 3, []int64{8})
	require.NoError(t, err)

	rec := newRecorder()
	again := NewMerger(s, rec)
	res, err := again.MergePersons(context.Background(), 3, []int64{8})
	require.NoError(t, err)
	assert.Empty(t, res.Deleted)
	assert.Zero(t, res.Repointed)
	assert.Empty(t, rec.deleted)
	assert.Empty(t, rec.persons)

	dupes, _ := FindPersonDuplicates(s)
	assert.Empty(t, dupes)
}

func TestMergePersons_FillsOnlyEmptyFields(t *testing.T) {
	s := model.NewSnapshot([]model.Person{
		{ID: 1, Name: "Henrik Ibsen", WikidataID: "Q36661", Bio: "dramatiker"},
		{ID: 2, Name: "Henrik Ibsen", Bio: "annen tekst", WikipediaURL: "https://no.wikipedia.org/wiki/Henrik_Ibsen"},
	}, nil, nil, nil)
	rec := newRecorder()
	res, err := NewMerger(s, rec).MergePersons(context.Background(), 1, []int64{2})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Filled)
	assert.Equal(t, "dramatiker", s.Persons[1].Bio)
	assert.Equal(t, "https://no.wikipedia.org/wiki/Henrik_Ibsen", rec.persons[1].WikipediaURL)
}

func TestMerge_ResumesAfterRepoint(t *testing.T) {
	s := brechtSnapshot()
	RepointReferences(s, model.KindPerson, 8, 3)
	assert.Equal(t, StateReferencesRepointed, InspectState(s, model.KindPerson, 3, 8))

	s.Persons[3].FillFrom(s.Persons[8])
	assert.Equal(t, StateFieldsMerged, InspectState(s, model.KindPerson, 3, 8))

	rec := newRecorder()
	res, err := NewMerger(s, rec).MergePersons(context.Background(), 3, []int64{8})
	require.NoError(t, err)
	assert.Zero(t, res.Repointed)
	assert.Equal(t, []int64{8}, res.Deleted)
	assert.Empty(t, rec.persons)
}

func TestMerge_ReferentialViolationAbortsOneMerge(t *testing.T) {
	s := brechtSnapshot()
	s.Persons[10] = &model.Person{ID: 10, Name: "Bertolt Brecht"}
	rec := newRecorder()
	m := NewMerger(s, rec)
	m.scan = func(snap *model.Snapshot, kind model.EntityKind, id int64) []Ref {
		if id == 8 {
			return []Ref{{Holder: model.KindEpisode, HolderID: "LATE01", Field: "credits"}}
		}
		return References(snap, kind, id)
	}

	res, err := m.MergePersons(context.Background(), 3, []int64{8, 10})
	require.NoError(t, err)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, int64(8), res.Violations[0].OldID)
	assert.Contains(t, res.Violations[0].Error(), "LATE01")
	assert.Equal(t, []int64{10}, res.Deleted)
	assert.NotNil(t, s.Persons[8], "violating source is kept")

	require.Len(t, rec.reviews, 1)
	assert.Equal(t, model.ReviewReferentialViolation, rec.reviews[0].Kind)
	assert.Equal(t, []string{"3", "8"}, rec.reviews[0].EntityIDs)
}

func TestMerge_MissingKeep(t *testing.T) {
	_, err := NewMerger(brechtSnapshot(), newRecorder()).MergePersons(context.Background(), 99, []int64{3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestMerge_StoreErrorStopsBeforeDelete(t *testing.T) {
	s := brechtSnapshot()
	w := new(mockWriter)
	boom := errors.New("disk full")
	w.On("SaveWork", mock.Anything, mock.Anything).Return(boom)

	_, err := NewMerger(s, w).MergePersons(context.Background(), 3, []int64{8})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	w.AssertNotCalled(t, "DeletePerson", mock.Anything, mock.Anything)
	assert.NotNil(t, s.Persons[8])
}

func TestMergeWorks_ByWikidata(t *testing.T) {
	s := model.NewSnapshot(nil, []model.Work{
		{ID: 1, Title: "Peer Gynt", WikidataID: "Q208341"},
		{ID: 2, Title: "Peer Gynt (skuespill)", WikidataID: "Q208341", Genre: "drama"},
		{ID: 3, Title: "Brand"},
	}, []model.Performance{{ID: 10, WorkID: model.Int64Ptr(1)}}, []model.Episode{
		{PrfID: "A", PlayID: model.Int64Ptr(1)},
	})
	sets := FindWorkDuplicates(s)
	require.Len(t, sets, 1)
	assert.Equal(t, []int64{1, 2}, sets[0].IDs)

	keep, removed := ResolveDuplicates(sets[0].Works(s))
	assert.Equal(t, int64(2), keep.ID)

	res, err := NewMerger(s, newRecorder()).MergeWorks(context.Background(), keep.ID, []int64{removed[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Repointed)
	assert.Equal(t, int64(2), *s.Performances[10].WorkID)
	assert.Equal(t, int64(2), *s.Episodes["A"].PlayID)
	assert.Nil(t, s.Works[1])
}

func TestFindPersonDuplicates_Homonyms(t *testing.T) {
	s := model.NewSnapshot([]model.Person{
		{ID: 1, Name: "Per Aabel", BirthYear: model.IntPtr(1902)},
		{ID: 2, Name: "Per Aabel", BirthYear: model.IntPtr(1975)},
		{ID: 3, Name: "Liv Ullmann", WikidataID: "Q229241"},
		{ID: 4, Name: "Ullmann, Liv"},
		{ID: 5, Name: "Toralv Maurstad", WikidataID: "Q1"},
		{ID: 6, Name: "Toralv Maurstad", WikidataID: "Q2"},
	}, nil, nil, nil)
	dupes, homonyms := FindPersonDuplicates(s)

	require.Len(t, dupes, 1)
	assert.Equal(t, []int64{3, 4}, dupes[0].IDs)
	assert.Equal(t, "Q229241", dupes[0].Key)

	require.Len(t, homonyms, 2)
	assert.Equal(t, []int64{1, 2}, homonyms[0].IDs)
	assert.Equal(t, []int64{5, 6}, homonyms[1].IDs)
}

func TestFindPersonDuplicates_ConflictingChainIsHomonym(t *testing.T) {
	s := model.NewSnapshot([]model.Person{
		{ID: 1, Name: "Per Aabel", BirthYear: model.IntPtr(1902)},
		{ID: 2, Name: "Per Aabel"},
		{ID: 3, Name: "Per Aabel", BirthYear: model.IntPtr(1975)},
	}, nil, nil, nil)
	dupes, homonyms := FindPersonDuplicates(s)
	assert.Empty(t, dupes)
	require.Len(t, homonyms, 1)
	assert.Equal(t, []int64{1, 2, 3}, homonyms[0].IDs)
}

func TestFindPersonDuplicates_BareRecordDoesNotBlockWikidataMerge(t *testing.T) {
	s := model.NewSnapshot([]model.Person{
		{ID: 1, Name: "Henrik Ibsen", WikidataID: "Q36661"},
		{ID: 2, Name: "Henrik Ibsen", WikidataID: "Q36661", Bio: "Dramatiker."},
		{ID: 3, Name: "Henrik Ibsen"},
		{ID: 4, Name: "Henrik Ibsen", WikidataID: "Q999"},
	}, nil, nil, nil)
	dupes, homonyms := FindPersonDuplicates(s)

	require.Len(t, dupes, 1)
	assert.Equal(t, []int64{1, 2}, dupes[0].IDs)
	assert.Equal(t, "Q36661", dupes[0].Key)

	require.Len(t, homonyms, 1)
	assert.Equal(t, []int64{3, 4}, homonyms[0].IDs)
}

func TestFindPersonDuplicates_BareRecordDoesNotBridge(t *testing.T) {
	s := model.NewSnapshot([]model.Person{
		{ID: 1, Name: "Per Aabel", BirthYear: model.IntPtr(1902)},
		{ID: 2, Name: "Per Aabel", BirthYear: model.IntPtr(1902), DeathYear: model.IntPtr(1999)},
		{ID: 3, Name: "Per Aabel"},
		{ID: 4, Name: "Per Aabel", BirthYear: model.IntPtr(1975)},
	}, nil, nil, nil)
	dupes, homonyms := FindPersonDuplicates(s)

	require.Len(t, dupes, 1)
	assert.Equal(t, []int64{1, 2}, dupes[0].IDs)
	require.Len(t, homonyms, 1)
	assert.Equal(t, []int64{3, 4}, homonyms[0].IDs)

	// Once the bare record is gone nothing is left to join.
	delete(s.Persons, 2)
	delete(s.Persons, 3)
	dupes, homonyms = FindPersonDuplicates(s)
	assert.Empty(t, dupes)
	require.Len(t, homonyms, 1)
	assert.Equal(t, []int64{1, 4}, homonyms[0].IDs)
}

func TestFindPersonDuplicates_SharedWikidataDifferentNames(t *testing.T) {
	s := model.NewSnapshot([]model.Person{
		{ID: 1, Name: "Bjørnson", WikidataID: "Q93312"},
		{ID: 2, Name: "Bjørnstjerne Bjørnson", WikidataID: "Q93312"},
	}, nil, nil, nil)
	dupes, _ := FindPersonDuplicates(s)
	require.Len(t, dupes, 1)
	assert.Equal(t, []int64{1, 2}, dupes[0].IDs)
}

func TestFindOrphans(t *testing.T) {
	s := brechtSnapshot()
	s.Persons[30] = &model.Person{ID: 30, Name: "Ukjent"}
	s.Persons[31] = &model.Person{ID: 31, Name: "Aase Bye", WikidataID: "Q4"}
	s.Performances[40] = &model.Performance{ID: 40, Title: "Tom"}

	orphans := FindOrphans(s)
	var got []string
	for _, o := range orphans {
		got = append(got, string(o.Kind)+":"+itoa(o.ID))
	}
	// works 1-5 have no performances
	assert.Equal(t, []string{
		"person:30", "person:31",
		"work:1", "work:2", "work:3", "work:4", "work:5",
		"performance:40",
	}, got)
	assert.False(t, orphans[0].Ambiguous)
	assert.True(t, orphans[1].Ambiguous)
	assert.True(t, orphans[2].Ambiguous)
	assert.False(t, orphans[7].Ambiguous)
}

func TestCleanupOrphans_CascadesAndQueues(t *testing.T) {
	s := brechtSnapshot()
	s.Persons[30] = &model.Person{ID: 30, Name: "Ukjent"}
	s.Persons[31] = &model.Person{ID: 31, Name: "Aase Bye", WikidataID: "Q4"}
	s.Performances[40] = &model.Performance{ID: 40, Title: "Tom"}

	rec := newRecorder()
	rep, err := NewMerger(s, rec).CleanupOrphans(context.Background(), true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"person:30", "performance:40"}, rec.deleted)
	require.Len(t, rep.Queued, 6)
	assert.Equal(t, int64(31), rep.Queued[0].ID)
	require.Len(t, rec.reviews, 6)
	assert.Equal(t, model.ReviewOrphan, rec.reviews[0].Kind)
	assert.Equal(t, []string{"31"}, rec.reviews[0].EntityIDs)
}

func TestCleanupOrphans_KeepsReferencedPersons(t *testing.T) {
	s := model.NewSnapshot(
		[]model.Person{{ID: 1, Name: "Regissør"}},
		nil,
		[]model.Performance{{ID: 5, Title: "Tom"}},
		nil,
	)
	s.Performances[5].Credits = nil
	s.Episodes["X"] = &model.Episode{PrfID: "X", Credits: []model.Credit{{PersonID: 1, Role: model.RoleDirector}}}

	rec := newRecorder()
	_, err := NewMerger(s, rec).CleanupOrphans(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"performance:5"}, rec.deleted)
	assert.NotNil(t, s.Persons[1])
}

func TestCleanupOrphans_ReportOnlyByDefault(t *testing.T) {
	s := model.NewSnapshot([]model.Person{{ID: 30, Name: "Ukjent"}}, nil, nil, nil)
	rec := newRecorder()
	rep, err := NewMerger(s, rec).CleanupOrphans(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, rec.deleted)
	require.Len(t, rep.Found, 1)
	assert.NotNil(t, s.Persons[30])
}
