package dataset

import (
	"math"
	"sort"
	"time"

	"github.com/YuminosukeSato/bikecount/features"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
	"github.com/YuminosukeSato/bikecount/pkg/log"
)

// GapPolicy decides what happens to observations that have no auxiliary row
// at or before their timestamp.
type GapPolicy string

const (
	// GapImpute fills gap rows with the cleaned column medians; categorical
	// values stay empty.
	GapImpute GapPolicy = "impute"
	// GapKeep leaves NaN in gap rows. Preprocessing rejects them later.
	GapKeep GapPolicy = "keep"
)

// DefaultDropColumns are auxiliary columns removed after the join because
// they are collinear with others.
func DefaultDropColumns() []string {
	return []string{"pres", "raf10", "rafper", "td", "w2"}
}

// MergeOptions configures a Merger.
type MergeOptions struct {
	Reference          features.Point
	DropColumns        []string
	Windows            []CalendarWindow
	GapPolicy          GapPolicy
	MaxMissingFraction float64

	// Optional; a nil calendar adds no column.
	BankHolidays   HolidayCalendar
	SchoolHolidays HolidayCalendar
}

// DefaultMergeOptions returns the options the model was developed with.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		Reference:          features.ParisCenter,
		DropColumns:        DefaultDropColumns(),
		Windows:            DefaultCalendarWindows(),
		GapPolicy:          GapImpute,
		MaxMissingFraction: DefaultMaxMissingFraction,
	}
}

// Merger joins observations with an auxiliary table.
type Merger struct {
	opts   MergeOptions
	logger log.Logger
}

// NewMerger returns a Merger using opts.
func NewMerger(opts MergeOptions) *Merger {
	if opts.GapPolicy == "" {
		opts.GapPolicy = GapImpute
	}
	return &Merger{
		opts:   opts,
		logger: log.GetLoggerWithName("dataset"),
	}
}

// Merge cleans a copy of aux, joins every observation with the latest
// auxiliary row at or before its timestamp, adds calendar indicator,
// holiday and distance columns, removes the configured auxiliary columns
// and returns one record per observation in input order.
//
// Observations without an eligible auxiliary row are kept and handled by
// the gap policy.
func (m *Merger) Merge(obs []Observation, aux *AuxiliaryTable) (_ *MergedTable, err error) {
	defer errors.Recover(&err, "Merger.Merge")

	if aux == nil {
		return nil, errors.NewSchemaError("Merger.Merge", DateColumn, "auxiliary table is nil")
	}
	if err := aux.Validate(); err != nil {
		return nil, err
	}
	switch m.opts.GapPolicy {
	case GapImpute, GapKeep:
	default:
		return nil, errors.NewValidationError("gap_policy", "must be impute or keep", string(m.opts.GapPolicy))
	}

	cleaned, report := CleanAuxiliary(aux, m.opts.MaxMissingFraction)
	cleaned, configDropped := dropAuxColumns(cleaned, m.opts.DropColumns)

	obsDates := make([]time.Time, len(obs))
	for i, o := range obs {
		obsDates[i] = o.Date
	}
	obsDates, obsChanged := TruncateToMicroseconds(obsDates)
	auxDates, auxChanged := TruncateToMicroseconds(cleaned.Dates)
	if obsChanged || auxChanged {
		errors.Warn(errors.NewDataConversionWarning("time.Time", "microsecond timestamp", "sub-microsecond precision truncated before the join"))
	}

	// aux rows by timestamp; stable so equal timestamps keep input order and
	// the last of them is the one picked
	order := make([]int, len(auxDates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return auxDates[order[a]].Before(auxDates[order[b]]) })
	sortedDates := make([]time.Time, len(order))
	for i, j := range order {
		sortedDates[i] = auxDates[j]
	}

	table := &MergedTable{
		Records:          make([]MergedRecord, len(obs)),
		NumericNames:     cleaned.NumericNames,
		CategoricalNames: cleaned.CategoricalNames,
	}
	for _, w := range m.opts.Windows {
		table.IndicatorNames = append(table.IndicatorNames, w.Name)
	}
	var calendars []HolidayCalendar
	if m.opts.BankHolidays != nil {
		table.HolidayNames = append(table.HolidayNames, BankHolidayColumn)
		calendars = append(calendars, m.opts.BankHolidays)
	}
	if m.opts.SchoolHolidays != nil {
		table.HolidayNames = append(table.HolidayNames, SchoolHolidayColumn)
		calendars = append(calendars, m.opts.SchoolHolidays)
	}

	for i, o := range obs {
		ts := obsDates[i]
		rec := MergedRecord{
			Date:               ts,
			CounterName:        o.CounterName,
			SiteName:           o.SiteName,
			Latitude:           o.Latitude,
			Longitude:          o.Longitude,
			LogBikeCount:       o.LogBikeCount,
			HasTarget:          o.HasTarget,
			Numeric:            make([]float64, len(cleaned.NumericNames)),
			Categorical:        make([]string, len(cleaned.CategoricalNames)),
			Indicators:         make([]bool, len(m.opts.Windows)),
			Holidays:           make([]bool, len(calendars)),
			DistanceFromCenter: features.DistanceFromCenter(o.Latitude, o.Longitude, m.opts.Reference),
		}

		// number of aux rows with timestamp <= ts
		k := sort.Search(len(sortedDates), func(p int) bool { return sortedDates[p].After(ts) })
		if k == 0 {
			rec.JoinGap = true
			table.JoinGaps++
			for j, name := range cleaned.NumericNames {
				if m.opts.GapPolicy == GapImpute {
					rec.Numeric[j] = report.Medians[name]
				} else {
					rec.Numeric[j] = math.NaN()
				}
			}
		} else {
			row := order[k-1]
			for j := range cleaned.NumericNames {
				rec.Numeric[j] = cleaned.Numeric[j][row]
			}
			for j := range cleaned.CategoricalNames {
				rec.Categorical[j] = cleaned.Categorical[j][row]
			}
		}

		for j, w := range m.opts.Windows {
			rec.Indicators[j] = w.Contains(ts)
		}
		for j, c := range calendars {
			rec.Holidays[j] = c.IsHoliday(ts)
		}
		table.Records[i] = rec
	}

	if table.JoinGaps > 0 {
		errors.Warn(errors.NewJoinGapWarning(table.JoinGaps, len(obs), string(m.opts.GapPolicy)))
	}

	m.logger.Info("Merged observations with auxiliary data",
		log.OperationKey, log.OperationMerge,
		log.SamplesKey, len(obs),
		log.FeaturesKey, len(cleaned.NumericNames)+len(cleaned.CategoricalNames),
		log.JoinGapsKey, table.JoinGaps,
		log.DroppedColumnsKey, append(report.Dropped(), configDropped...),
		log.ImputedColumnsKey, report.Imputed,
	)
	return table, nil
}

func dropAuxColumns(aux *AuxiliaryTable, names []string) (*AuxiliaryTable, []string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var dropped []string
	out := NewAuxiliaryTable(aux.Dates)
	for j, name := range aux.NumericNames {
		if drop[name] {
			dropped = append(dropped, name)
			continue
		}
		out.NumericNames = append(out.NumericNames, name)
		out.Numeric = append(out.Numeric, aux.Numeric[j])
	}
	for j, name := range aux.CategoricalNames {
		if drop[name] {
			dropped = append(dropped, name)
			continue
		}
		out.CategoricalNames = append(out.CategoricalNames, name)
		out.Categorical = append(out.Categorical, aux.Categorical[j])
	}
	return out, dropped
}
