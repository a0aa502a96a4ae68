package link

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/teaterarkiv/archive-cli/internal/classify"
	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/internal/report"
	"github.com/teaterarkiv/archive-cli/internal/store"
)

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Classify(ctx context.Context, text string) (classify.Suggestion, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(classify.Suggestion), args.Error(1)
}

func fixture() *model.Snapshot {
	return model.NewSnapshot(
		[]model.Person{
			{ID: 1, Name: "Henrik Ibsen"},
			{ID: 2, Name: "Ludvig Holberg"},
			{ID: 3, Name: "Jon Fosse"},
			{ID: 4, Name: "Jon Fosse"},
		},
		[]model.Work{
			{ID: 10, Title: "Vildanden i Bergen", PlaywrightID: model.Int64Ptr(1)},
			{ID: 11, Title: "Vildanden i Oslo", PlaywrightID: model.Int64Ptr(2)},
			{ID: 12, Title: "Jeppe på Bjerget"},
		},
		nil,
		[]model.Episode{
			{PrfID: "A1", Title: "Vildanden", Description: "Et skuespill av Henrik Ibsen", Medium: model.MediumRadio},
			{PrfID: "A2", Title: "Jeppe på Bjerget 1:2", Medium: model.MediumRadio},
			{PrfID: "A3", Title: "Kaptein Sabeltann", Medium: model.MediumRadio},
			{PrfID: "A4", Title: "Gengangere", PlayID: model.Int64Ptr(99), Medium: model.MediumRadio},
			{PrfID: "A5", Title: "Vildanden", Medium: model.MediumRadio},
		},
	)
}

func TestEpisodes(t *testing.T) {
	st := store.NewMemory()
	snap := fixture()
	sum := report.NewSummary("link")

	require.NoError(t, New(st, nil, Config{}).Episodes(context.Background(), snap, sum))
	assert.Equal(t, 4, sum.Processed, "A4 already has a play")
	assert.Equal(t, 3, sum.Matched)
	assert.Equal(t, 1, sum.Unmatched)
	assert.Equal(t, 1, sum.Ambiguous, "A5 ties between the two Vildanden works")

	assert.Equal(t, int64(10), *snap.Episodes["A1"].PlayID, "description names Ibsen")
	assert.Equal(t, int64(12), *snap.Episodes["A2"].PlayID)
	assert.Nil(t, snap.Episodes["A3"].PlayID)
	assert.Equal(t, int64(99), *snap.Episodes["A4"].PlayID)
	assert.Equal(t, int64(11), *snap.Episodes["A5"].PlayID, "tie goes to the shorter title")

	eps, err := st.LoadEpisodes(context.Background())
	require.NoError(t, err)
	assert.Len(t, eps, 3)
}

func TestPlaywrights(t *testing.T) {
	oracle := new(mockOracle)
	oracle.On("Classify", mock.Anything, "Jeppe på Bjerget").
		Return(classify.Suggestion{Value: "ludvig  holberg", Confidence: 0.95}, nil).Once()

	st := store.NewMemory()
	snap := fixture()
	sum := report.NewSummary("link")
	require.NoError(t, New(st, oracle, Config{}).Playwrights(context.Background(), snap, sum))

	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 1, sum.Matched)
	require.NotNil(t, snap.Works[12].PlaywrightID)
	assert.Equal(t, int64(2), *snap.Works[12].PlaywrightID)
	oracle.AssertExpectations(t)
}

func TestPlaywrights_UsesEpisodeDescription(t *testing.T) {
	oracle := new(mockOracle)
	oracle.On("Classify", mock.Anything, "Jeppe på Bjerget\n\nKomedie fra 1722").
		Return(classify.Suggestion{Value: "Ludvig Holberg", Confidence: 0.9}, nil).Once()

	snap := fixture()
	snap.Episodes["A2"].PlayID = model.Int64Ptr(12)
	snap.Episodes["A2"].Description = "Komedie fra 1722"

	sum := report.NewSummary("link")
	require.NoError(t, New(store.NewMemory(), oracle, Config{}).Playwrights(context.Background(), snap, sum))
	assert.Equal(t, 1, sum.Matched)
	oracle.AssertExpectations(t)
}

func TestPlaywrights_Outcomes(t *testing.T) {
	tests := []struct {
		name   string
		answer classify.Suggestion
		err    error
		check  func(t *testing.T, sum *report.Summary)
	}{
		{
			name: "low confidence",
			err:  eris.Wrap(classify.ErrLowConfidence, "0.40 < 0.80"),
			check: func(t *testing.T, sum *report.Summary) {
				assert.Equal(t, 1, sum.LowConfidence)
			},
		},
		{
			name: "no answer",
			err:  eris.Wrap(model.ErrNotFound, "classify: no answer"),
			check: func(t *testing.T, sum *report.Summary) {
				assert.Equal(t, 1, sum.Unmatched)
			},
		},
		{
			name: "oracle error",
			err:  errors.New("boom"),
			check: func(t *testing.T, sum *report.Summary) {
				assert.Equal(t, 1, sum.Errors)
			},
		},
		{
			name:   "unknown person",
			answer: classify.Suggestion{Value: "Henrik Wergeland", Confidence: 0.9},
			check: func(t *testing.T, sum *report.Summary) {
				assert.Equal(t, 1, sum.Unmatched)
			},
		},
		{
			name:   "partial name is not enough",
			answer: classify.Suggestion{Value: "Holberg", Confidence: 0.9},
			check: func(t *testing.T, sum *report.Summary) {
				assert.Equal(t, 1, sum.Unmatched)
			},
		},
		{
			name:   "homonym",
			answer: classify.Suggestion{Value: "Jon Fosse", Confidence: 0.9},
			check: func(t *testing.T, sum *report.Summary) {
				assert.Equal(t, 1, sum.Ambiguous)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := new(mockOracle)
			oracle.On("Classify", mock.Anything, mock.Anything).Return(tt.answer, tt.err)

			snap := fixture()
			sum := report.NewSummary("link")
			require.NoError(t, New(store.NewMemory(), oracle, Config{}).Playwrights(context.Background(), snap, sum))
			assert.Zero(t, sum.Matched)
			assert.Nil(t, snap.Works[12].PlaywrightID)
			tt.check(t, sum)
		})
	}
}

func TestRun_WithoutOracle(t *testing.T) {
	sum, err := New(store.NewMemory(), nil, Config{}).Run(context.Background(), fixture())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Matched)
	assert.Equal(t, "link", sum.Command)
}
