// Package dataset merges bike-counter observations with auxiliary
// (weather) measurements into the table the model pipeline trains on.
package dataset

import (
	"fmt"
	"math"
	"time"

	"github.com/YuminosukeSato/bikecount/frame"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

// DateColumn is the timestamp column name shared by every table.
const DateColumn = "date"

// Observation is one hourly counter reading.
type Observation struct {
	Date                    time.Time
	CounterID               string
	CounterName             string
	SiteID                  string
	SiteName                string
	CounterInstallationDate time.Time
	CounterTechnicalID      string
	Coordinates             string
	Latitude                float64
	Longitude               float64

	// LogBikeCount is log(1 + count). It is only meaningful when HasTarget is
	// set; inference inputs carry no target.
	LogBikeCount float64
	HasTarget    bool
}

// AuxiliaryTable holds time-stamped auxiliary measurements in columnar form.
// Numeric columns mark missing values with NaN, categorical ones with "".
type AuxiliaryTable struct {
	Dates []time.Time

	NumericNames []string
	Numeric      [][]float64

	CategoricalNames []string
	Categorical      [][]string
}

// NewAuxiliaryTable returns a table with the given timestamps and no columns.
func NewAuxiliaryTable(dates []time.Time) *AuxiliaryTable {
	return &AuxiliaryTable{Dates: dates}
}

// Len returns the number of rows.
func (a *AuxiliaryTable) Len() int { return len(a.Dates) }

// AddNumeric appends a numeric column.
func (a *AuxiliaryTable) AddNumeric(name string, values []float64) error {
	if err := a.checkNew("AuxiliaryTable.AddNumeric", name, len(values)); err != nil {
		return err
	}
	a.NumericNames = append(a.NumericNames, name)
	a.Numeric = append(a.Numeric, values)
	return nil
}

// AddCategorical appends a categorical column.
func (a *AuxiliaryTable) AddCategorical(name string, values []string) error {
	if err := a.checkNew("AuxiliaryTable.AddCategorical", name, len(values)); err != nil {
		return err
	}
	a.CategoricalNames = append(a.CategoricalNames, name)
	a.Categorical = append(a.Categorical, values)
	return nil
}

func (a *AuxiliaryTable) checkNew(op, name string, n int) error {
	if name == DateColumn {
		return errors.NewSchemaError(op, name, "reserved column name")
	}
	if a.has(name) {
		return errors.NewSchemaError(op, name, "duplicate column")
	}
	if n != len(a.Dates) {
		return errors.NewSchemaError(op, name, fmt.Sprintf("has %d rows, table has %d", n, len(a.Dates)))
	}
	return nil
}

func (a *AuxiliaryTable) has(name string) bool {
	for _, n := range a.NumericNames {
		if n == name {
			return true
		}
	}
	for _, n := range a.CategoricalNames {
		if n == name {
			return true
		}
	}
	return false
}

// Validate checks that every column has one value per timestamp, that
// names are unique and that no timestamp is zero.
func (a *AuxiliaryTable) Validate() error {
	const op = "AuxiliaryTable.Validate"
	if len(a.NumericNames) != len(a.Numeric) || len(a.CategoricalNames) != len(a.Categorical) {
		return errors.NewSchemaError(op, "", "column names and values are misaligned")
	}
	seen := make(map[string]bool)
	check := func(name string, n int) error {
		if seen[name] || name == DateColumn {
			return errors.NewSchemaError(op, name, "duplicate column")
		}
		seen[name] = true
		if n != len(a.Dates) {
			return errors.NewSchemaError(op, name, fmt.Sprintf("has %d rows, table has %d", n, len(a.Dates)))
		}
		return nil
	}
	for i, name := range a.NumericNames {
		if err := check(name, len(a.Numeric[i])); err != nil {
			return err
		}
	}
	for i, name := range a.CategoricalNames {
		if err := check(name, len(a.Categorical[i])); err != nil {
			return err
		}
	}
	for i, d := range a.Dates {
		if d.IsZero() {
			return errors.NewSchemaError(op, DateColumn, fmt.Sprintf("row %d has no timestamp", i))
		}
	}
	return nil
}

// Clone returns a deep copy.
func (a *AuxiliaryTable) Clone() *AuxiliaryTable {
	out := &AuxiliaryTable{
		Dates:            append([]time.Time(nil), a.Dates...),
		NumericNames:     append([]string(nil), a.NumericNames...),
		CategoricalNames: append([]string(nil), a.CategoricalNames...),
		Numeric:          make([][]float64, len(a.Numeric)),
		Categorical:      make([][]string, len(a.Categorical)),
	}
	for i, c := range a.Numeric {
		out.Numeric[i] = append([]float64(nil), c...)
	}
	for i, c := range a.Categorical {
		out.Categorical[i] = append([]string(nil), c...)
	}
	return out
}

// MergedRecord is one observation joined with its auxiliary row and derived
// flags. Counter/site identifiers, installation date and raw coordinates are
// not part of it: the merge drops them for good.
type MergedRecord struct {
	Date        time.Time
	CounterName string
	SiteName    string
	Latitude    float64
	Longitude   float64

	LogBikeCount float64
	HasTarget    bool

	// Aligned with MergedTable.NumericNames / CategoricalNames.
	Numeric     []float64
	Categorical []string

	// Aligned with MergedTable.IndicatorNames / HolidayNames.
	Indicators []bool
	Holidays   []bool

	DistanceFromCenter float64

	// JoinGap is set when no auxiliary row was at or before Date.
	JoinGap bool
}

// MergedTable is the merge result, in original observation order.
type MergedTable struct {
	Records []MergedRecord

	NumericNames     []string
	CategoricalNames []string
	IndicatorNames   []string
	HolidayNames     []string

	// JoinGaps counts records with JoinGap set.
	JoinGaps int
}

// Column names of the merged frame that do not come from the auxiliary table.
const (
	CounterNameColumn        = "counter_name"
	SiteNameColumn           = "site_name"
	LatitudeColumn           = "latitude"
	LongitudeColumn          = "longitude"
	DistanceFromCenterColumn = "distance_from_center"
	TargetColumn             = "log_bike_count"
)

// Len returns the number of records.
func (t *MergedTable) Len() int { return len(t.Records) }

// Frame converts the table to a frame with columns date, counter_name,
// site_name, latitude, longitude, the auxiliary numeric and categorical
// columns, the indicator columns, the holiday columns and
// distance_from_center. Flags become 0/1 floats. The target is not included.
func (t *MergedTable) Frame() (*frame.Frame, error) {
	n := len(t.Records)
	dates := make([]time.Time, n)
	counters := make([]string, n)
	sites := make([]string, n)
	lat := make([]float64, n)
	lon := make([]float64, n)
	dist := make([]float64, n)
	numeric := newFloatColumns(len(t.NumericNames), n)
	categorical := make([][]string, len(t.CategoricalNames))
	for j := range categorical {
		categorical[j] = make([]string, n)
	}
	indicators := newFloatColumns(len(t.IndicatorNames), n)
	holidays := newFloatColumns(len(t.HolidayNames), n)

	for i, r := range t.Records {
		dates[i] = r.Date
		counters[i] = r.CounterName
		sites[i] = r.SiteName
		lat[i] = r.Latitude
		lon[i] = r.Longitude
		dist[i] = r.DistanceFromCenter
		for j, v := range r.Numeric {
			numeric[j][i] = v
		}
		for j, v := range r.Categorical {
			categorical[j][i] = v
		}
		for j, v := range r.Indicators {
			indicators[j][i] = flag(v)
		}
		for j, v := range r.Holidays {
			holidays[j][i] = flag(v)
		}
	}

	f, err := frame.New(n).WithTime(DateColumn, dates)
	if err != nil {
		return nil, err
	}
	if f, err = f.WithString(CounterNameColumn, counters); err != nil {
		return nil, err
	}
	if f, err = f.WithString(SiteNameColumn, sites); err != nil {
		return nil, err
	}
	if f, err = f.WithFloat(LatitudeColumn, lat); err != nil {
		return nil, err
	}
	if f, err = f.WithFloat(LongitudeColumn, lon); err != nil {
		return nil, err
	}
	for j, name := range t.NumericNames {
		if f, err = f.WithFloat(name, numeric[j]); err != nil {
			return nil, err
		}
	}
	for j, name := range t.CategoricalNames {
		if f, err = f.WithString(name, categorical[j]); err != nil {
			return nil, err
		}
	}
	for j, name := range t.IndicatorNames {
		if f, err = f.WithFloat(name, indicators[j]); err != nil {
			return nil, err
		}
	}
	for j, name := range t.HolidayNames {
		if f, err = f.WithFloat(name, holidays[j]); err != nil {
			return nil, err
		}
	}
	return f.WithFloat(DistanceFromCenterColumn, dist)
}

// Targets returns the target of every record. It fails when a record has
// no target.
func (t *MergedTable) Targets() ([]float64, error) {
	y := make([]float64, len(t.Records))
	for i, r := range t.Records {
		if !r.HasTarget {
			return nil, errors.NewSchemaError("MergedTable.Targets", TargetColumn, fmt.Sprintf("row %d has no target", i))
		}
		y[i] = r.LogBikeCount
	}
	return y, nil
}

// HasTargets reports whether every record carries a target.
func (t *MergedTable) HasTargets() bool {
	for _, r := range t.Records {
		if !r.HasTarget {
			return false
		}
	}
	return len(t.Records) > 0
}

func newFloatColumns(k, n int) [][]float64 {
	cols := make([][]float64, k)
	for j := range cols {
		cols[j] = make([]float64, n)
	}
	return cols
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func isMissing(v float64) bool { return math.IsNaN(v) }
