package model_selection

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/bikecount/dataset/datasettest"
	"github.com/YuminosukeSato/bikecount/frame"
	"github.com/YuminosukeSato/bikecount/linear"
	"github.com/YuminosukeSato/bikecount/pipeline"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
	"github.com/YuminosukeSato/bikecount/pkg/log"
)

func TestTrainTestSplit(t *testing.T) {
	train, test, err := TrainTestSplit(10, 0.25, 42)
	require.NoError(t, err)
	assert.Len(t, test, 3)
	assert.Len(t, train, 7)

	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)

	train2, test2, err := TrainTestSplit(10, 0.25, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, _, err = TrainTestSplit(10, 0, 42)
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))
	_, _, err = TrainTestSplit(1, 0.5, 42)
	assert.Error(t, err)
}

func TestKFold(t *testing.T) {
	folds, err := NewKFold(3, false, 0).Split(10)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
	assert.Equal(t, []int{4, 5, 6}, folds[1].TestIndices)
	assert.Equal(t, []int{7, 8, 9}, folds[2].TestIndices)
	assert.Equal(t, []int{0, 1, 2, 3, 7, 8, 9}, folds[1].TrainIndices)

	shuffled, err := NewKFold(3, true, 7).Split(10)
	require.NoError(t, err)
	seen := make(map[int]int)
	for _, f := range shuffled {
		assert.Len(t, f.TrainIndices, 10-len(f.TestIndices))
		for _, i := range f.TestIndices {
			seen[i]++
		}
	}
	assert.Len(t, seen, 10)
	for _, c := range seen {
		assert.Equal(t, 1, c)
	}

	_, err = NewKFold(1, false, 0).Split(10)
	assert.Error(t, err)
	_, err = NewKFold(5, false, 0).Split(3)
	assert.Error(t, err)
}

func TestParamGridCandidatesOrder(t *testing.T) {
	grid := ParamGrid{
		"regressor__b": {1, 2},
		"regressor__a": {"x", "y"},
	}
	want := []map[string]interface{}{
		{"regressor__a": "x", "regressor__b": 1},
		{"regressor__a": "x", "regressor__b": 2},
		{"regressor__a": "y", "regressor__b": 1},
		{"regressor__a": "y", "regressor__b": 2},
	}
	assert.Equal(t, want, grid.Candidates())
	assert.Equal(t, []map[string]interface{}{{}}, ParamGrid{}.Candidates())
}

func searchData(t *testing.T) (*frame.Frame, []float64) {
	t.Helper()
	merged, err := datasettest.Merged(48, 11)
	require.NoError(t, err)
	f, err := merged.Frame()
	require.NoError(t, err)
	y, err := merged.Targets()
	require.NoError(t, err)
	return f, y
}

func TestGridSearchPicksLowestRMSE(t *testing.T) {
	f, y := searchData(t)
	template := pipeline.NewDefault(linear.NewRidge())
	gs := NewGridSearchCV(template, ParamGrid{"regressor__alpha": {1e4, 0.01}}, NewKFold(3, true, 0))
	gs.NJobs = 2

	require.NoError(t, gs.Fit(context.Background(), f, y))
	require.Len(t, gs.Results, 2)
	assert.Equal(t, 1, gs.BestIndex)
	assert.Equal(t, 0.01, gs.BestParams["regressor__alpha"])
	assert.Less(t, gs.Results[1].MeanRMSE, gs.Results[0].MeanRMSE)
	assert.Len(t, gs.Results[1].FoldRMSE, 3)

	require.NotNil(t, gs.BestPipeline)
	assert.True(t, gs.BestPipeline.IsFitted())
	assert.False(t, template.IsFitted(), "template pipeline must stay unfitted")
	assert.Equal(t, 1.0, template.GetParams()["regressor__alpha"])
	assert.Contains(t, gs.String(), "*")
}

func TestGridSearchTieBreakIsFirstInGridOrder(t *testing.T) {
	f, y := searchData(t)
	// nil はデフォルト (1.0) なので 3 候補とも同じスコアになる
	grid := ParamGrid{"regressor__alpha": {1.0, nil, 1}}

	for _, jobs := range []int{1, 3} {
		for run := 0; run < 3; run++ {
			gs := NewGridSearchCV(pipeline.NewDefault(linear.NewRidge()), grid, NewKFold(3, false, 0))
			gs.NJobs = jobs
			require.NoError(t, gs.Fit(context.Background(), f, y))
			assert.Equal(t, 0, gs.BestIndex)
			assert.Equal(t, 1.0, gs.BestParams["regressor__alpha"])
			assert.Equal(t, gs.Results[0].MeanRMSE, gs.Results[1].MeanRMSE)
		}
	}
}

func TestGridSearchFailedCandidate(t *testing.T) {
	provider, _ := log.NewTestLoggerProvider(log.LevelDebug)
	prev := log.GetProvider()
	log.SetProvider(provider)
	defer log.SetProvider(prev)

	f, y := searchData(t)
	gs := NewGridSearchCV(pipeline.NewDefault(linear.NewRidge()),
		ParamGrid{"regressor__alpha": {-1.0, 0.5}}, NewKFold(2, false, 0))
	require.NoError(t, gs.Fit(context.Background(), f, y))

	assert.Error(t, gs.Results[0].Err)
	assert.Equal(t, 1, gs.BestIndex)
	assert.True(t, provider.Logger().ContainsMessage("Candidate failed"))

	all := NewGridSearchCV(pipeline.NewDefault(linear.NewRidge()),
		ParamGrid{"regressor__bogus": {1}}, NewKFold(2, false, 0))
	assert.Error(t, all.Fit(context.Background(), f, y))
}

func TestGridSearchCancelled(t *testing.T) {
	f, y := searchData(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gs := NewGridSearchCV(pipeline.NewDefault(linear.NewRidge()),
		ParamGrid{"regressor__alpha": {0.1, 1, 10}}, NewKFold(2, false, 0))
	err := gs.Fit(ctx, f, y)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, gs.BestPipeline)
}
