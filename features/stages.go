package features

import "github.com/YuminosukeSato/bikecount/frame"

// DateEncoder is the frame stage form of EncodeDate.
type DateEncoder struct {
	Column string
}

// NewDateEncoder returns a DateEncoder for the "date" column.
func NewDateEncoder() *DateEncoder {
	return &DateEncoder{Column: "date"}
}

// Transform implements the preprocessing frame stage.
func (e *DateEncoder) Transform(f *frame.Frame) (*frame.Frame, error) {
	return EncodeDate(f, e.Column)
}

// CyclicalSpec pairs a column with its period.
type CyclicalSpec struct {
	Column string  `mapstructure:"column"`
	Period float64 `mapstructure:"period"`
}

// DefaultCyclicalSpecs is weekday/7, hour/24, day/31, applied in that order.
// day/31 is an approximation for shorter months.
func DefaultCyclicalSpecs() []CyclicalSpec {
	return []CyclicalSpec{
		{Column: WeekdayColumn, Period: 7},
		{Column: HourColumn, Period: 24},
		{Column: DayColumn, Period: 31},
	}
}

// CyclicalEncoder applies EncodeCyclical for each spec in order.
type CyclicalEncoder struct {
	Specs []CyclicalSpec
}

// NewCyclicalEncoder returns an encoder with DefaultCyclicalSpecs.
func NewCyclicalEncoder() *CyclicalEncoder {
	return &CyclicalEncoder{Specs: DefaultCyclicalSpecs()}
}

// Transform implements the preprocessing frame stage.
func (e *CyclicalEncoder) Transform(f *frame.Frame) (*frame.Frame, error) {
	var err error
	for _, s := range e.Specs {
		if f, err = EncodeCyclical(f, s.Column, s.Period); err != nil {
			return nil, err
		}
	}
	return f, nil
}
