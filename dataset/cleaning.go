package dataset

import (
	"math"
	"sort"
)

// DefaultMaxMissingFraction is the missing-value fraction above which an
// auxiliary column is dropped.
const DefaultMaxMissingFraction = 0.1

// CleaningReport describes what CleanAuxiliary did.
type CleaningReport struct {
	// DroppedSparse lists columns whose missing fraction exceeded the limit.
	DroppedSparse []string
	// DroppedConstant lists columns with zero or one distinct value.
	DroppedConstant []string
	// Imputed lists numeric columns that had missing values filled.
	Imputed []string
	// Medians holds the median of every surviving numeric column.
	Medians map[string]float64
}

// Dropped returns every dropped column name.
func (r CleaningReport) Dropped() []string {
	return append(append([]string(nil), r.DroppedSparse...), r.DroppedConstant...)
}

// CleanAuxiliary returns a cleaned copy of aux; aux itself is not modified.
//
// Columns with a missing fraction strictly greater than maxMissing are
// dropped, remaining numeric gaps are filled with the column median, and
// columns left with at most one distinct non-missing value are dropped.
// Categorical gaps are left empty.
func CleanAuxiliary(aux *AuxiliaryTable, maxMissing float64) (*AuxiliaryTable, CleaningReport) {
	report := CleaningReport{Medians: make(map[string]float64)}
	n := aux.Len()
	out := NewAuxiliaryTable(append(aux.Dates[:0:0], aux.Dates...))

	for j, name := range aux.NumericNames {
		values := append([]float64(nil), aux.Numeric[j]...)
		missing := 0
		for _, v := range values {
			if isMissing(v) {
				missing++
			}
		}
		if tooSparse(missing, n, maxMissing) {
			report.DroppedSparse = append(report.DroppedSparse, name)
			continue
		}
		med := Median(values)
		if missing > 0 {
			for i, v := range values {
				if isMissing(v) {
					values[i] = med
				}
			}
			report.Imputed = append(report.Imputed, name)
		}
		if distinctFloats(values) <= 1 {
			report.DroppedConstant = append(report.DroppedConstant, name)
			continue
		}
		report.Medians[name] = med
		out.NumericNames = append(out.NumericNames, name)
		out.Numeric = append(out.Numeric, values)
	}

	for j, name := range aux.CategoricalNames {
		values := append([]string(nil), aux.Categorical[j]...)
		missing := 0
		for _, v := range values {
			if v == "" {
				missing++
			}
		}
		if tooSparse(missing, n, maxMissing) {
			report.DroppedSparse = append(report.DroppedSparse, name)
			continue
		}
		if distinctStrings(values) <= 1 {
			report.DroppedConstant = append(report.DroppedConstant, name)
			continue
		}
		out.CategoricalNames = append(out.CategoricalNames, name)
		out.Categorical = append(out.Categorical, values)
	}

	return out, report
}

func tooSparse(missing, n int, maxMissing float64) bool {
	if n == 0 {
		return false
	}
	return float64(missing)/float64(n) > maxMissing
}

// Median returns the median of the non-NaN values, averaging the two middle
// values for even counts. It returns NaN when there are none.
func Median(values []float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func distinctFloats(values []float64) int {
	seen := make(map[float64]struct{})
	for _, v := range values {
		if !math.IsNaN(v) {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

func distinctStrings(values []string) int {
	seen := make(map[string]struct{})
	for _, v := range values {
		if v != "" {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}
