// Package features holds the pure feature derivers of the pipeline:
// calendar decomposition, cyclical encoding and distance from a reference point.
package features

import (
	"math"
	"time"

	"github.com/YuminosukeSato/bikecount/frame"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

// Calendar component column names produced by EncodeDate.
const (
	YearColumn    = "year"
	MonthColumn   = "month"
	DayColumn     = "day"
	WeekdayColumn = "weekday"
	HourColumn    = "hour"
)

// EncodeDate replaces the timestamp column col with year, month, day,
// weekday (Monday=0 .. Sunday=6) and hour columns. Minutes and below are
// discarded; everything down to the hour can be reconstructed.
func EncodeDate(f *frame.Frame, col string) (*frame.Frame, error) {
	ts, err := f.Time("EncodeDate", col)
	if err != nil {
		return nil, err
	}

	n := len(ts)
	year := make([]float64, n)
	month := make([]float64, n)
	day := make([]float64, n)
	weekday := make([]float64, n)
	hour := make([]float64, n)
	for i, t := range ts {
		year[i] = float64(t.Year())
		month[i] = float64(t.Month())
		day[i] = float64(t.Day())
		weekday[i] = float64(MondayFirst(t.Weekday()))
		hour[i] = float64(t.Hour())
	}

	out := f.Drop(col)
	for _, c := range []struct {
		name   string
		values []float64
	}{
		{YearColumn, year},
		{MonthColumn, month},
		{DayColumn, day},
		{WeekdayColumn, weekday},
		{HourColumn, hour},
	} {
		if out, err = out.WithFloat(c.name, c.values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MondayFirst converts a time.Weekday (Sunday=0) to Monday=0 numbering.
func MondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// EncodeCyclical replaces col with <col>_sin and <col>_cos computed as
// sin/cos(2π·v/period).
func EncodeCyclical(f *frame.Frame, col string, period float64) (*frame.Frame, error) {
	if period <= 0 || math.IsNaN(period) || math.IsInf(period, 0) {
		return nil, errors.NewValidationError("period", "must be a positive finite number", period)
	}
	values, err := f.Float("EncodeCyclical", col)
	if err != nil {
		return nil, err
	}

	sin := make([]float64, len(values))
	cos := make([]float64, len(values))
	for i, v := range values {
		angle := 2 * math.Pi * v / period
		sin[i] = math.Sin(angle)
		cos[i] = math.Cos(angle)
	}

	out := f.Drop(col)
	if out, err = out.WithFloat(col+"_sin", sin); err != nil {
		return nil, err
	}
	return out.WithFloat(col+"_cos", cos)
}
