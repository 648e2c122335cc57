package dataset

import (
	"time"
)

// Holiday flag column names.
const (
	BankHolidayColumn   = "bank_holiday"
	SchoolHolidayColumn = "holidays"
)

// HolidayCalendar answers whether the calendar day of t is a holiday.
type HolidayCalendar interface {
	IsHoliday(t time.Time) bool
}

// FrenchBankHolidays is the metropolitan French public holiday calendar:
// the eight fixed-date holidays plus Easter Monday, Ascension Thursday and
// Whit Monday.
type FrenchBankHolidays struct{}

// IsHoliday implements HolidayCalendar.
func (FrenchBankHolidays) IsHoliday(t time.Time) bool {
	y, m, d := t.Date()
	switch {
	case m == time.January && d == 1,
		m == time.May && d == 1,
		m == time.May && d == 8,
		m == time.July && d == 14,
		m == time.August && d == 15,
		m == time.November && d == 1,
		m == time.November && d == 11,
		m == time.December && d == 25:
		return true
	}
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	easter := EasterSunday(y)
	for _, offset := range []int{1, 39, 50} {
		if day.Equal(easter.AddDate(0, 0, offset)) {
			return true
		}
	}
	return false
}

// EasterSunday returns Gregorian Easter Sunday of year (anonymous Gregorian
// algorithm), at midnight UTC.
func EasterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// RangeCalendar is a HolidayCalendar backed by explicit date ranges, for
// instance school holidays of one academic zone.
type RangeCalendar struct {
	Ranges []DateRange
}

// IsHoliday implements HolidayCalendar.
func (c RangeCalendar) IsHoliday(t time.Time) bool {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	for _, r := range c.Ranges {
		if !day.Before(dayOf(r.Start)) && !day.After(dayOf(r.End)) {
			return true
		}
	}
	return false
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RangeSpec is the textual form of a DateRange used in configuration.
type RangeSpec struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// ParseRangeCalendar builds a RangeCalendar from specs.
func ParseRangeCalendar(specs []RangeSpec) (RangeCalendar, error) {
	var cal RangeCalendar
	for _, s := range specs {
		w, err := WindowSpec{Name: "holiday", Start: s.Start, End: s.End, EndInclusive: true}.Window()
		if err != nil {
			return RangeCalendar{}, err
		}
		cal.Ranges = append(cal.Ranges, DateRange{Start: w.Start, End: w.End})
	}
	return cal, nil
}
