package model

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

func TestStateManager(t *testing.T) {
	sm := NewStateManager()
	assert.False(t, sm.IsFitted())

	err := sm.RequireFitted("Ridge", "Predict")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	sm.SetDimensions(4, 100)
	sm.SetFitted()
	assert.True(t, sm.IsFitted())
	assert.NoError(t, sm.RequireFitted("Ridge", "Predict"))
	assert.NoError(t, sm.RequireFeatures("Ridge.Predict", 4))

	var dim *errors.DimensionError
	assert.True(t, errors.As(sm.RequireFeatures("Ridge.Predict", 5), &dim))

	sm.Reset()
	assert.False(t, sm.IsFitted())
	nf2, ns := sm.GetDimensions()
	assert.Zero(t, nf2)
	assert.Zero(t, ns)
}

func TestBaseEstimator(t *testing.T) {
	var b BaseEstimator
	assert.Error(t, b.CheckFitted("LinearRegression", "Predict"))
	b.SetFitted()
	assert.NoError(t, b.CheckFitted("LinearRegression", "Predict"))
	b.Reset()
	assert.False(t, b.IsFitted())
}

type snapshot struct {
	Name    string
	Weights []float64
	State   BaseEstimator
}

func TestSaveLoadRoundTrip(t *testing.T) {
	in := snapshot{Name: "ridge", Weights: []float64{0.5, -1.25}}
	in.State.SetFitted()

	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(in, &buf))

	var out snapshot
	require.NoError(t, LoadModelFromReader(&out, &buf))
	assert.Equal(t, in, out)
	assert.True(t, out.State.IsFitted())
}

func TestLoadModelMissingFile(t *testing.T) {
	var out snapshot
	assert.Error(t, LoadModel(&out, "/nonexistent/pipeline.gob"))
}
