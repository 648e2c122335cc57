package dataset

import (
	"time"

	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

// CalendarWindow flags observations whose timestamp falls in [Start, End]
// (or [Start, End) when EndInclusive is false).
//
// Bounds given as dates are midnight timestamps, so an inclusive end of
// 2020-12-14 only covers 2020-12-14T00:00 of that day.
type CalendarWindow struct {
	Name         string
	Start        time.Time
	End          time.Time
	EndInclusive bool
}

// Contains reports whether t falls inside the window.
func (w CalendarWindow) Contains(t time.Time) bool {
	if t.Before(w.Start) {
		return false
	}
	if w.EndInclusive {
		return !t.After(w.End)
	}
	return t.Before(w.End)
}

// WindowSpec is the textual form of a CalendarWindow used in configuration.
type WindowSpec struct {
	Name         string `mapstructure:"name"`
	Start        string `mapstructure:"start"`
	End          string `mapstructure:"end"`
	EndInclusive bool   `mapstructure:"end_inclusive"`
}

// Window parses s. Dates use the YYYY-MM-DD layout (or any layout
// accepted by ParseTimestamp) and are interpreted in UTC.
func (s WindowSpec) Window() (CalendarWindow, error) {
	if s.Name == "" {
		return CalendarWindow{}, errors.NewValidationError("window.name", "must not be empty", s.Name)
	}
	start, err := ParseTimestamp(s.Start)
	if err != nil {
		return CalendarWindow{}, errors.Wrapf(err, "window %s start", s.Name)
	}
	end, err := ParseTimestamp(s.End)
	if err != nil {
		return CalendarWindow{}, errors.Wrapf(err, "window %s end", s.Name)
	}
	if end.Before(start) {
		return CalendarWindow{}, errors.NewValidationError("window."+s.Name, "end before start", s.End)
	}
	return CalendarWindow{Name: s.Name, Start: start, End: end, EndInclusive: s.EndInclusive}, nil
}

// DefaultWindowSpecs returns the 2020 lockdown, season and holiday windows.
// autumn and winter deliberately start on 2020-03-21; they reproduce the
// windows the model was trained with.
func DefaultWindowSpecs() []WindowSpec {
	return []WindowSpec{
		{Name: "quarantine1", Start: "2020-10-30", End: "2020-12-14", EndInclusive: true},
		{Name: "quarantine2", Start: "2020-04-03", End: "2020-05-02", EndInclusive: true},
		{Name: "spring", Start: "2020-03-21", End: "2020-06-21"},
		{Name: "summer", Start: "2020-06-21", End: "2020-09-21"},
		{Name: "autumn", Start: "2020-03-21", End: "2020-09-21", EndInclusive: true},
		{Name: "winter", Start: "2020-03-21", End: "2020-12-21", EndInclusive: true},
		{Name: "christmas", Start: "2020-12-18", End: "2021-01-03", EndInclusive: true},
	}
}

// ParseWindows parses specs in order.
func ParseWindows(specs []WindowSpec) ([]CalendarWindow, error) {
	out := make([]CalendarWindow, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if seen[s.Name] {
			return nil, errors.NewValidationError("window.name", "duplicate window", s.Name)
		}
		seen[s.Name] = true
		w, err := s.Window()
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// DefaultCalendarWindows returns the parsed DefaultWindowSpecs.
func DefaultCalendarWindows() []CalendarWindow {
	w, err := ParseWindows(DefaultWindowSpecs())
	if err != nil {
		panic(err)
	}
	return w
}
