package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecount/core/model"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

// OneHotEncoder encodes string columns as 0/1 indicator columns.
//
// Each column's vocabulary is its sorted set of distinct non-empty values
// seen during Fit. A value outside the vocabulary, and the empty (missing)
// value, encode as an all-zero block instead of failing.
type OneHotEncoder struct {
	model.BaseEstimator

	// Columns names the input columns, used for output feature names.
	Columns []string

	// Categories holds the learned vocabulary per column.
	Categories [][]string
}

// NewOneHotEncoder returns an encoder for the named columns.
func NewOneHotEncoder(columns ...string) *OneHotEncoder {
	return &OneHotEncoder{Columns: columns}
}

// Fit learns the vocabularies. cols[j] holds the values of Columns[j].
func (e *OneHotEncoder) Fit(cols [][]string) error {
	if len(cols) != len(e.Columns) {
		return errors.NewDimensionError("OneHotEncoder.Fit", len(e.Columns), len(cols), 1)
	}
	e.Categories = make([][]string, len(cols))
	for j, values := range cols {
		seen := make(map[string]struct{})
		for _, v := range values {
			if v != "" {
				seen[v] = struct{}{}
			}
		}
		vocab := make([]string, 0, len(seen))
		for v := range seen {
			vocab = append(vocab, v)
		}
		sort.Strings(vocab)
		e.Categories[j] = vocab
	}
	e.SetFitted()
	return nil
}

// NOutputs returns the number of indicator columns Transform produces.
func (e *OneHotEncoder) NOutputs() int {
	n := 0
	for _, c := range e.Categories {
		n += len(c)
	}
	return n
}

// Transform encodes cols into an n_samples x NOutputs() matrix: per input
// column, one indicator per category in vocabulary order.
func (e *OneHotEncoder) Transform(cols [][]string) (*mat.Dense, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if len(cols) != len(e.Categories) {
		return nil, errors.NewDimensionError("OneHotEncoder.Transform", len(e.Categories), len(cols), 1)
	}
	rows := 0
	if len(cols) > 0 {
		rows = len(cols[0])
	}
	width := e.NOutputs()
	if rows == 0 || width == 0 {
		return &mat.Dense{}, nil
	}

	out := mat.NewDense(rows, width, nil)
	offset := 0
	for j, values := range cols {
		if len(values) != rows {
			return nil, errors.NewDimensionError("OneHotEncoder.Transform", rows, len(values), 0)
		}
		index := make(map[string]int, len(e.Categories[j]))
		for k, v := range e.Categories[j] {
			index[v] = k
		}
		for i, v := range values {
			if k, ok := index[v]; ok {
				out.Set(i, offset+k, 1)
			}
		}
		offset += len(e.Categories[j])
	}
	return out, nil
}

// FeatureNames returns "<column>_<category>" for every output column.
func (e *OneHotEncoder) FeatureNames() []string {
	names := make([]string, 0, e.NOutputs())
	for j, cats := range e.Categories {
		for _, c := range cats {
			names = append(names, fmt.Sprintf("%s_%s", e.Columns[j], c))
		}
	}
	return names
}
