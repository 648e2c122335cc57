package preprocessing

import (
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecount/core/model"
	"github.com/YuminosukeSato/bikecount/frame"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
	"github.com/YuminosukeSato/bikecount/pkg/log"
)

// ColumnTransformer standardizes the numeric columns, one-hot encodes the
// categorical columns and passes every other column through unchanged.
//
// Output columns are the numeric block in NumericColumns order, then the
// categorical block (per column, per category), then the passthrough
// columns in frame order.
type ColumnTransformer struct {
	model.BaseEstimator

	NumericColumns     []string
	CategoricalColumns []string

	Scaler  *StandardScaler
	Encoder *OneHotEncoder

	// Passthrough is learned during Fit.
	Passthrough []string
	// FeatureNamesOut is learned during Fit.
	FeatureNamesOut []string
}

// NewColumnTransformer returns an unfitted transformer.
func NewColumnTransformer(numeric, categorical []string) *ColumnTransformer {
	return &ColumnTransformer{
		NumericColumns:     append([]string(nil), numeric...),
		CategoricalColumns: append([]string(nil), categorical...),
		Scaler:             NewStandardScalerDefault(),
		Encoder:            NewOneHotEncoder(categorical...),
	}
}

// Fit learns scaler statistics, vocabularies and the passthrough set.
func (ct *ColumnTransformer) Fit(f *frame.Frame) (err error) {
	const op = "ColumnTransformer.Fit"
	defer errors.Recover(&err, op)

	if f.Len() == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	numeric, err := ct.numericBlock(op, f)
	if err != nil {
		return err
	}
	categorical, err := ct.categoricalBlock(op, f)
	if err != nil {
		return err
	}
	passthrough, err := ct.passthroughNames(op, f)
	if err != nil {
		return err
	}
	if len(ct.NumericColumns)+len(ct.CategoricalColumns)+len(passthrough) == 0 {
		return errors.NewModelError(op, "no columns", errors.ErrEmptyData)
	}

	if numeric != nil {
		if err := ct.Scaler.Fit(numeric); err != nil {
			return err
		}
	}
	if err := ct.Encoder.Fit(categorical); err != nil {
		return err
	}
	ct.Passthrough = passthrough

	names := append([]string(nil), ct.NumericColumns...)
	names = append(names, ct.Encoder.FeatureNames()...)
	names = append(names, passthrough...)
	ct.FeatureNamesOut = names

	ct.SetFitted()
	log.GetLoggerWithName("preprocessing").Debug("ColumnTransformer fitted",
		log.ModelNameKey, "ColumnTransformer",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, f.Len(),
		log.FeaturesKey, len(names),
	)
	return nil
}

// Transform builds the feature matrix using the learned state only.
func (ct *ColumnTransformer) Transform(f *frame.Frame) (*mat.Dense, error) {
	const op = "ColumnTransformer.Transform"
	if !ct.IsFitted() {
		return nil, errors.NewNotFittedError("ColumnTransformer", "Transform")
	}
	rows := f.Len()
	if rows == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}

	numeric, err := ct.numericBlock(op, f)
	if err != nil {
		return nil, err
	}
	categorical, err := ct.categoricalBlock(op, f)
	if err != nil {
		return nil, err
	}
	passthrough, err := ct.passthroughNames(op, f)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(passthrough, ct.Passthrough) {
		return nil, errors.NewSchemaError(op, "", "passthrough columns differ from those seen during fit")
	}

	out := mat.NewDense(rows, len(ct.FeatureNamesOut), nil)
	offset := 0
	if numeric != nil {
		scaled, err := ct.Scaler.Transform(numeric)
		if err != nil {
			return nil, err
		}
		offset = copyBlock(out, scaled, offset)
	}
	if ct.Encoder.NOutputs() > 0 {
		encoded, err := ct.Encoder.Transform(categorical)
		if err != nil {
			return nil, err
		}
		offset = copyBlock(out, encoded, offset)
	}
	for _, name := range passthrough {
		values, _ := f.Float(op, name)
		for i, v := range values {
			out.Set(i, offset, v)
		}
		offset++
	}

	if err := errors.CheckMatrix(op, out, rows, offset); err != nil {
		return nil, err
	}
	return out, nil
}

// FitTransform fits on f and transforms it.
func (ct *ColumnTransformer) FitTransform(f *frame.Frame) (*mat.Dense, error) {
	if err := ct.Fit(f); err != nil {
		return nil, err
	}
	return ct.Transform(f)
}

// FeatureNames returns the output column names learned during Fit.
func (ct *ColumnTransformer) FeatureNames() []string {
	return append([]string(nil), ct.FeatureNamesOut...)
}

// numericBlock returns the numeric columns as a matrix, nil when there are none.
func (ct *ColumnTransformer) numericBlock(op string, f *frame.Frame) (*mat.Dense, error) {
	if len(ct.NumericColumns) == 0 {
		return nil, nil
	}
	rows := f.Len()
	m := mat.NewDense(rows, len(ct.NumericColumns), nil)
	for j, name := range ct.NumericColumns {
		values, err := f.Float(op, name)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			m.Set(i, j, v)
		}
	}
	if err := errors.CheckMatrix(op, m, rows, len(ct.NumericColumns)); err != nil {
		return nil, err
	}
	return m, nil
}

func (ct *ColumnTransformer) categoricalBlock(op string, f *frame.Frame) ([][]string, error) {
	cols := make([][]string, len(ct.CategoricalColumns))
	for j, name := range ct.CategoricalColumns {
		values, err := f.String(op, name)
		if err != nil {
			return nil, err
		}
		cols[j] = values
	}
	return cols, nil
}

// passthroughNames lists the remaining columns, which must all be numeric.
func (ct *ColumnTransformer) passthroughNames(op string, f *frame.Frame) ([]string, error) {
	named := make(map[string]bool, len(ct.NumericColumns)+len(ct.CategoricalColumns))
	for _, n := range ct.NumericColumns {
		named[n] = true
	}
	for _, n := range ct.CategoricalColumns {
		named[n] = true
	}
	var names []string
	for _, c := range f.Columns() {
		if named[c.Name] {
			continue
		}
		if c.Kind != frame.Float {
			return nil, errors.NewSchemaError(op, c.Name, "passthrough column must be numeric, got "+c.Kind.String())
		}
		names = append(names, c.Name)
	}
	return names, nil
}

func copyBlock(dst *mat.Dense, src mat.Matrix, offset int) int {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, offset+j, src.At(i, j))
		}
	}
	return offset + c
}
