// Package csvio reads counter observations and auxiliary tables from CSV and
// writes prediction files.
package csvio

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/bikecount/dataset"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
	"github.com/YuminosukeSato/bikecount/pkg/log"
)

// Observation CSV column names.
const (
	CounterIDColumn               = "counter_id"
	CounterNameColumn             = "counter_name"
	SiteIDColumn                  = "site_id"
	SiteNameColumn                = "site_name"
	CounterInstallationDateColumn = "counter_installation_date"
	CoordinatesColumn             = "coordinates"
	CounterTechnicalIDColumn      = "counter_technical_id"
	LatitudeColumn                = "latitude"
	LongitudeColumn               = "longitude"
	TargetColumn                  = "log_bike_count"
)

// Prediction CSV header.
const (
	IDHeader         = "Id"
	PredictionHeader = "log_bike_count"
)

var missingTokens = map[string]bool{"": true, "NA": true, "NaN": true, "nan": true, "<nil>": true}

func isMissing(s string) bool { return missingTokens[strings.TrimSpace(s)] }

// table is a CSV loaded with every column kept as text.
type table struct {
	op    string
	df    dataframe.DataFrame
	names map[string]bool
}

func load(op string, r io.Reader) (*table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "%s: read csv", op)
	}
	names := make(map[string]bool, df.Ncol())
	for _, n := range df.Names() {
		names[n] = true
	}
	return &table{op: op, df: df, names: names}, nil
}

func (t *table) has(name string) bool { return t.names[name] }

func (t *table) records(name string, required bool) ([]string, error) {
	if !t.has(name) {
		if required {
			return nil, errors.NewSchemaError(t.op, name, "column not found")
		}
		return nil, nil
	}
	return t.df.Col(name).Records(), nil
}

func (t *table) times(name string, required bool) ([]time.Time, error) {
	raw, err := t.records(name, required)
	if err != nil || raw == nil {
		return nil, err
	}
	out := make([]time.Time, len(raw))
	for i, s := range raw {
		if isMissing(s) {
			if required {
				return nil, errors.NewSchemaError(t.op, name, fmt.Sprintf("row %d: missing timestamp", i))
			}
			continue
		}
		ts, err := dataset.ParseTimestamp(s)
		if err != nil {
			return nil, errors.NewSchemaError(t.op, name, fmt.Sprintf("row %d: %q is not a timestamp", i, s))
		}
		out[i] = ts
	}
	return out, nil
}

func (t *table) floats(name string, required bool) ([]float64, error) {
	raw, err := t.records(name, required)
	if err != nil || raw == nil {
		return nil, err
	}
	out, ok := parseFloats(raw)
	if !ok {
		return nil, errors.NewSchemaError(t.op, name, "not a numeric column")
	}
	return out, nil
}

// parseFloats converts raw to floats with NaN for missing tokens. ok is false
// when a non-missing value does not parse.
func parseFloats(raw []string) ([]float64, bool) {
	out := make([]float64, len(raw))
	for i, s := range raw {
		if isMissing(s) {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// ReadObservations reads counter observations. counter_name, site_name,
// date, latitude and longitude are required; log_bike_count is read when
// present. Other columns are ignored.
func ReadObservations(r io.Reader) ([]dataset.Observation, error) {
	const op = "csvio.ReadObservations"
	t, err := load(op, r)
	if err != nil {
		return nil, err
	}

	dates, err := t.times(dataset.DateColumn, true)
	if err != nil {
		return nil, err
	}
	counterNames, err := t.records(CounterNameColumn, true)
	if err != nil {
		return nil, err
	}
	siteNames, err := t.records(SiteNameColumn, true)
	if err != nil {
		return nil, err
	}
	lat, err := t.floats(LatitudeColumn, true)
	if err != nil {
		return nil, err
	}
	lon, err := t.floats(LongitudeColumn, true)
	if err != nil {
		return nil, err
	}
	counterIDs, _ := t.records(CounterIDColumn, false)
	siteIDs, _ := t.records(SiteIDColumn, false)
	technicalIDs, _ := t.records(CounterTechnicalIDColumn, false)
	coordinates, _ := t.records(CoordinatesColumn, false)
	installed, err := t.times(CounterInstallationDateColumn, false)
	if err != nil {
		return nil, err
	}
	target, err := t.floats(TargetColumn, false)
	if err != nil {
		return nil, err
	}

	obs := make([]dataset.Observation, len(dates))
	for i := range obs {
		o := dataset.Observation{
			Date:        dates[i],
			CounterName: counterNames[i],
			SiteName:    siteNames[i],
			Latitude:    lat[i],
			Longitude:   lon[i],
		}
		o.CounterID = at(counterIDs, i)
		o.SiteID = at(siteIDs, i)
		o.CounterTechnicalID = at(technicalIDs, i)
		o.Coordinates = at(coordinates, i)
		if installed != nil {
			o.CounterInstallationDate = installed[i]
		}
		if target != nil && !math.IsNaN(target[i]) {
			o.LogBikeCount = target[i]
			o.HasTarget = true
		}
		obs[i] = o
	}

	log.GetLoggerWithName("csvio").Debug("Read observations",
		log.SamplesKey, len(obs),
		log.ColumnsKey, t.df.Names(),
	)
	return obs, nil
}

func at(values []string, i int) string {
	if values == nil || isMissing(values[i]) {
		return ""
	}
	return values[i]
}

// ReadAuxiliary reads a time-stamped auxiliary table. The date column is
// required; every other column is numeric when all of its non-missing values
// parse as numbers, categorical otherwise. Column order is preserved.
func ReadAuxiliary(r io.Reader) (*dataset.AuxiliaryTable, error) {
	const op = "csvio.ReadAuxiliary"
	t, err := load(op, r)
	if err != nil {
		return nil, err
	}
	dates, err := t.times(dataset.DateColumn, true)
	if err != nil {
		return nil, err
	}

	aux := dataset.NewAuxiliaryTable(dates)
	for _, name := range t.df.Names() {
		if name == dataset.DateColumn {
			continue
		}
		raw := t.df.Col(name).Records()
		if values, ok := parseFloats(raw); ok {
			if err := aux.AddNumeric(name, values); err != nil {
				return nil, err
			}
			continue
		}
		values := make([]string, len(raw))
		for i, s := range raw {
			if !isMissing(s) {
				values[i] = s
			}
		}
		if err := aux.AddCategorical(name, values); err != nil {
			return nil, err
		}
	}

	log.GetLoggerWithName("csvio").Debug("Read auxiliary table",
		log.SamplesKey, aux.Len(),
		log.FeaturesKey, len(aux.NumericNames)+len(aux.CategoricalNames),
	)
	return aux, nil
}

// ReadObservationsFile opens path and calls ReadObservations.
func ReadObservationsFile(path string) ([]dataset.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ReadObservations(f)
}

// ReadAuxiliaryFile opens path and calls ReadAuxiliary.
func ReadAuxiliaryFile(path string) (*dataset.AuxiliaryTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ReadAuxiliary(f)
}

// WritePredictions writes the "Id,log_bike_count" CSV with zero-based ids
// in prediction order. Values keep full float64 precision.
func WritePredictions(w io.Writer, preds []float64) error {
	ids := make([]int, len(preds))
	values := make([]string, len(preds))
	for i, p := range preds {
		ids[i] = i
		values[i] = strconv.FormatFloat(p, 'g', -1, 64)
	}
	df := dataframe.New(
		series.New(ids, series.Int, IDHeader),
		series.New(values, series.String, PredictionHeader),
	)
	if df.Err != nil {
		return errors.Wrap(df.Err, "build prediction frame")
	}
	if err := df.WriteCSV(w); err != nil {
		return errors.Wrap(err, "write predictions")
	}
	return nil
}

// WritePredictionsFile creates path and calls WritePredictions.
func WritePredictionsFile(path string, preds []float64) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close predictions")
		}
	}()
	return WritePredictions(f, preds)
}
