// Package preprocessing turns a merged frame into the numeric feature matrix
// the estimators train on.
package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecount/features"
	"github.com/YuminosukeSato/bikecount/frame"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

// DefaultNumericColumns are the weather and position columns that get
// standardized.
func DefaultNumericColumns() []string {
	return []string{
		"tend", "cod_tend", "dd", "ff", "t", "u", "vv", "ww", "w1", "n",
		"nbas", "tend24", "etat_sol", "ht_neige", "rr1", "rr3", "rr6",
		"rr12", "rr24", "latitude", "longitude",
	}
}

// DefaultCategoricalColumns are the site identity columns that get one-hot
// encoded.
func DefaultCategoricalColumns() []string {
	return []string{"counter_name", "site_name"}
}

// FrameStage is a stateless frame-to-frame step.
type FrameStage interface {
	Transform(f *frame.Frame) (*frame.Frame, error)
}

// Preprocessor chains date decomposition, cyclical encoding and the
// ColumnTransformer. Only the ColumnTransformer learns state.
type Preprocessor struct {
	Date     *features.DateEncoder
	Cyclical *features.CyclicalEncoder
	Columns  *ColumnTransformer
}

// NewPreprocessor returns an unfitted Preprocessor for the given column sets.
func NewPreprocessor(numeric, categorical []string) *Preprocessor {
	return &Preprocessor{
		Date:     features.NewDateEncoder(),
		Cyclical: features.NewCyclicalEncoder(),
		Columns:  NewColumnTransformer(numeric, categorical),
	}
}

// NewDefaultPreprocessor uses DefaultNumericColumns and DefaultCategoricalColumns.
func NewDefaultPreprocessor() *Preprocessor {
	return NewPreprocessor(DefaultNumericColumns(), DefaultCategoricalColumns())
}

func (p *Preprocessor) stages() []FrameStage {
	return []FrameStage{p.Date, p.Cyclical}
}

func (p *Preprocessor) encode(f *frame.Frame) (*frame.Frame, error) {
	var err error
	for _, s := range p.stages() {
		if f, err = s.Transform(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Fit learns scaler statistics and vocabularies from f.
func (p *Preprocessor) Fit(f *frame.Frame) (err error) {
	defer errors.Recover(&err, "Preprocessor.Fit")

	encoded, err := p.encode(f)
	if err != nil {
		return err
	}
	return p.Columns.Fit(encoded)
}

// Transform maps f to the feature matrix. It is deterministic given the
// fitted state and never updates it.
func (p *Preprocessor) Transform(f *frame.Frame) (*mat.Dense, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Preprocessor", "Transform")
	}
	encoded, err := p.encode(f)
	if err != nil {
		return nil, err
	}
	return p.Columns.Transform(encoded)
}

// FitTransform fits on f and transforms it.
func (p *Preprocessor) FitTransform(f *frame.Frame) (*mat.Dense, error) {
	if err := p.Fit(f); err != nil {
		return nil, err
	}
	return p.Transform(f)
}

// IsFitted reports whether Fit has completed.
func (p *Preprocessor) IsFitted() bool {
	return p.Columns != nil && p.Columns.IsFitted()
}

// FeatureNames returns the output column names.
func (p *Preprocessor) FeatureNames() []string {
	return p.Columns.FeatureNames()
}

// Clone returns an unfitted Preprocessor with the same configuration.
func (p *Preprocessor) Clone() *Preprocessor {
	specs := append([]features.CyclicalSpec(nil), p.Cyclical.Specs...)
	return &Preprocessor{
		Date:     &features.DateEncoder{Column: p.Date.Column},
		Cyclical: &features.CyclicalEncoder{Specs: specs},
		Columns:  NewColumnTransformer(p.Columns.NumericColumns, p.Columns.CategoricalColumns),
	}
}
