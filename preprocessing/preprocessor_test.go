package preprocessing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecount/dataset"
	"github.com/YuminosukeSato/bikecount/frame"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

func smallFrame(t *testing.T, counters []string, temps []float64) *frame.Frame {
	t.Helper()
	n := len(counters)
	dates := make([]time.Time, n)
	flags := make([]float64, n)
	for i := range dates {
		dates[i] = time.Date(2020, 9, 1+i, 6*i, 0, 0, 0, time.UTC)
		flags[i] = float64(i % 2)
	}
	f, err := frame.New(n).WithTime("date", dates)
	require.NoError(t, err)
	f, err = f.WithString("counter_name", counters)
	require.NoError(t, err)
	f, err = f.WithFloat("t", temps)
	require.NoError(t, err)
	f, err = f.WithFloat("quarantine1", flags)
	require.NoError(t, err)
	return f
}

func TestPreprocessorOutputLayout(t *testing.T) {
	p := NewPreprocessor([]string{"t"}, []string{"counter_name"})
	X, err := p.FitTransform(smallFrame(t, []string{"b", "a", "b"}, []float64{1, 2, 3}))
	require.NoError(t, err)

	want := []string{
		"t",
		"counter_name_a", "counter_name_b",
		"quarantine1", "year", "month",
		"weekday_sin", "weekday_cos", "hour_sin", "hour_cos", "day_sin", "day_cos",
	}
	assert.Equal(t, want, p.FeatureNames())

	r, c := X.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, len(want), c)
	assert.Equal(t, []float64{0, 1}, mat.Row(nil, 0, X)[1:3])
	assert.Equal(t, []float64{1, 0}, mat.Row(nil, 1, X)[1:3])
	assert.Equal(t, 2020.0, X.At(0, 4))
}

func TestPreprocessorUnknownCategoryIsAllZero(t *testing.T) {
	p := NewPreprocessor([]string{"t"}, []string{"counter_name"})
	require.NoError(t, p.Fit(smallFrame(t, []string{"a", "b"}, []float64{1, 2})))

	X, err := p.Transform(smallFrame(t, []string{"zzz", "a"}, []float64{1, 2}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, mat.Row(nil, 0, X)[1:3])
	assert.Equal(t, []float64{1, 0}, mat.Row(nil, 1, X)[1:3])
}

func TestPreprocessorDeterministicTransform(t *testing.T) {
	p := NewPreprocessor([]string{"t"}, []string{"counter_name"})
	train := smallFrame(t, []string{"a", "b", "a"}, []float64{1, 5, 9})
	require.NoError(t, p.Fit(train))

	X1, err := p.Transform(train)
	require.NoError(t, err)
	X2, err := p.Transform(train)
	require.NoError(t, err)
	assert.True(t, mat.Equal(X1, X2))
}

func TestPreprocessorErrors(t *testing.T) {
	f := smallFrame(t, []string{"a", "b"}, []float64{1, 2})

	_, err := NewPreprocessor([]string{"t"}, nil).Transform(f)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	var schema *errors.SchemaError
	err = NewPreprocessor([]string{"pres"}, []string{"counter_name"}).Fit(f)
	require.True(t, errors.As(err, &schema))
	assert.Equal(t, "pres", schema.Column)

	err = NewPreprocessor([]string{"counter_name"}, nil).Fit(f)
	assert.True(t, errors.As(err, &schema), "numeric column of the wrong kind")

	// counter_name left over as a string passthrough column
	err = NewPreprocessor([]string{"t"}, nil).Fit(f)
	assert.True(t, errors.As(err, &schema))

	nan := smallFrame(t, []string{"a", "b"}, []float64{1, math.NaN()})
	err = NewPreprocessor([]string{"t"}, []string{"counter_name"}).Fit(nan)
	var num *errors.NumericalInstabilityError
	assert.True(t, errors.As(err, &num))

	p := NewPreprocessor([]string{"t"}, []string{"counter_name"})
	require.NoError(t, p.Fit(f))
	extra, err := f.WithFloat("u", []float64{0, 0})
	require.NoError(t, err)
	_, err = p.Transform(extra)
	assert.True(t, errors.As(err, &schema))
}

func TestPreprocessorClone(t *testing.T) {
	p := NewDefaultPreprocessor()
	require.NoError(t, p.Fit(smallFrameDefaults(t)))

	assert.True(t, p.IsFitted())

	c := p.Clone()
	assert.False(t, c.IsFitted())
	assert.Equal(t, DefaultNumericColumns(), c.Columns.NumericColumns)
	assert.Equal(t, DefaultCategoricalColumns(), c.Columns.CategoricalColumns)
}

// Three observations at hours 0, 12 and 23 with weather covering the span.
func TestEndToEndThreeHours(t *testing.T) {
	day := time.Date(2020, 11, 3, 0, 0, 0, 0, time.UTC)
	hours := []int{0, 12, 23}
	obs := make([]dataset.Observation, len(hours))
	for i, h := range hours {
		obs[i] = dataset.Observation{
			Date:               day.Add(time.Duration(h) * time.Hour),
			CounterID:          "c" + string(rune('0'+i)),
			CounterName:        []string{"north", "south", "north"}[i],
			SiteID:             "s1",
			SiteName:           "Boulevard",
			CounterTechnicalID: "tech",
			Coordinates:        "48.85,2.35",
			Latitude:           48.85 + 0.01*float64(i),
			Longitude:          2.35,
			LogBikeCount:       float64(i + 1),
			HasTarget:          true,
		}
	}

	dates := make([]time.Time, 9)
	temp := make([]float64, 9)
	pres := make([]float64, 9)
	td := make([]float64, 9)
	for i := range dates {
		dates[i] = day.Add(time.Duration(3*i) * time.Hour)
		temp[i] = 280 + float64(i)
		pres[i] = 101000 + float64(i)
		td[i] = 275 - float64(i)
	}
	aux := dataset.NewAuxiliaryTable(dates)
	require.NoError(t, aux.AddNumeric("t", temp))
	require.NoError(t, aux.AddNumeric("pres", pres))
	require.NoError(t, aux.AddNumeric("td", td))

	merged, err := dataset.NewMerger(dataset.DefaultMergeOptions()).Merge(obs, aux)
	require.NoError(t, err)
	require.Equal(t, 3, merged.Len())
	for i, r := range merged.Records {
		assert.Equal(t, obs[i].Date, r.Date)
	}
	// 23:00 picks the 21:00 row
	assert.Equal(t, 287.0, merged.Records[2].Numeric[0])

	f, err := merged.Frame()
	require.NoError(t, err)
	for _, dropped := range []string{"pres", "raf10", "rafper", "td", "w2",
		"counter_id", "site_id", "counter_installation_date", "counter_technical_id", "coordinates"} {
		assert.False(t, f.Has(dropped), dropped)
	}

	p := NewPreprocessor([]string{"t", "latitude", "longitude"}, DefaultCategoricalColumns())
	X, err := p.FitTransform(f)
	require.NoError(t, err)
	r, _ := X.Dims()
	assert.Equal(t, 3, r)

	names := p.FeatureNames()
	idx := make(map[string]int)
	for i, n := range names {
		idx[n] = i
	}
	require.Contains(t, idx, "hour_sin")
	require.Contains(t, idx, "hour_cos")
	assert.NotContains(t, idx, "hour")
	assert.NotContains(t, idx, "date")
	assert.Contains(t, idx, "quarantine1")
	assert.Contains(t, idx, "distance_from_center")

	for i, h := range hours {
		angle := 2 * math.Pi * float64(h) / 24
		assert.InDelta(t, math.Sin(angle), X.At(i, idx["hour_sin"]), 1e-12)
		assert.InDelta(t, math.Cos(angle), X.At(i, idx["hour_cos"]), 1e-12)
	}
	// 2020-11-03 is inside the second lockdown
	assert.Equal(t, 1.0, X.At(0, idx["quarantine1"]))
	// longitude is constant: standardized to 0
	assert.Equal(t, 0.0, X.At(1, idx["longitude"]))
}

func smallFrameDefaults(t *testing.T) *frame.Frame {
	t.Helper()
	f := smallFrame(t, []string{"a", "b"}, []float64{1, 2})
	var err error
	for _, name := range DefaultNumericColumns() {
		if f.Has(name) {
			continue
		}
		if f, err = f.WithFloat(name, []float64{0, 1}); err != nil {
			t.Fatal(err)
		}
	}
	f, err = f.WithString("site_name", []string{"s", "s"})
	require.NoError(t, err)
	return f
}
