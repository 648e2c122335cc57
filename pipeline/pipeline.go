// Package pipeline chains the preprocessing Preprocessor with a regression
// estimator behind one Fit/Predict surface.
package pipeline

import (
	"io"
	"reflect"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecount/core/model"
	"github.com/YuminosukeSato/bikecount/frame"
	"github.com/YuminosukeSato/bikecount/metrics"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
	"github.com/YuminosukeSato/bikecount/pkg/log"
	"github.com/YuminosukeSato/bikecount/preprocessing"
)

// RegressorPrefix routes parameters to the estimator (sklearn's
// "regressor__learning_rate" convention).
const RegressorPrefix = "regressor__"

// Pipeline is a Preprocessor followed by an estimator.
type Pipeline struct {
	model.BaseEstimator

	Preprocessor *preprocessing.Preprocessor
	Estimator    model.Regressor
}

// New returns an unfitted pipeline.
func New(pre *preprocessing.Preprocessor, est model.Regressor) *Pipeline {
	return &Pipeline{Preprocessor: pre, Estimator: est}
}

// NewDefault uses the default Preprocessor column sets.
func NewDefault(est model.Regressor) *Pipeline {
	return New(preprocessing.NewDefaultPreprocessor(), est)
}

// EstimatorName returns the estimator's type name, e.g. "Ridge".
func (p *Pipeline) EstimatorName() string {
	if p.Estimator == nil {
		return ""
	}
	return reflect.Indirect(reflect.ValueOf(p.Estimator)).Type().Name()
}

// Fit fits the Preprocessor on f and the estimator on the transformed matrix.
func (p *Pipeline) Fit(f *frame.Frame, y []float64) (err error) {
	defer errors.Recover(&err, "Pipeline.Fit")

	if p.Preprocessor == nil || p.Estimator == nil {
		return errors.NewValueError("Pipeline.Fit", "preprocessor and estimator are required")
	}
	if f.Len() != len(y) {
		return errors.NewDimensionError("Pipeline.Fit", f.Len(), len(y), 0)
	}
	if len(y) == 0 {
		return errors.NewModelError("Pipeline.Fit", "empty data", errors.ErrEmptyData)
	}

	X, err := p.Preprocessor.FitTransform(f)
	if err != nil {
		return err
	}
	target := mat.NewDense(len(y), 1, append([]float64(nil), y...))
	if err := p.Estimator.Fit(X, target); err != nil {
		return err
	}
	p.SetFitted()

	_, cols := X.Dims()
	log.GetLoggerWithName("pipeline").Info("Pipeline fitted",
		log.ModelNameKey, p.EstimatorName(),
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(y),
		log.FeaturesKey, cols,
	)
	return nil
}

// Predict transforms f with the fitted Preprocessor and returns the
// estimator's predictions in row order.
func (p *Pipeline) Predict(f *frame.Frame) ([]float64, error) {
	if err := p.CheckFitted("Pipeline", "Predict"); err != nil {
		return nil, err
	}
	X, err := p.Preprocessor.Transform(f)
	if err != nil {
		return nil, err
	}
	pred, err := p.Estimator.Predict(X)
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, pred), nil
}

// Score returns R² of the predictions on f against y.
func (p *Pipeline) Score(f *frame.Frame, y []float64) (float64, error) {
	pred, err := p.Predict(f)
	if err != nil {
		return 0, err
	}
	if len(pred) != len(y) {
		return 0, errors.NewDimensionError("Pipeline.Score", len(pred), len(y), 0)
	}
	return metrics.R2Score(mat.NewVecDense(len(y), append([]float64(nil), y...)), mat.NewVecDense(len(pred), pred))
}

// FeatureNames returns the names of the matrix columns the estimator sees.
func (p *Pipeline) FeatureNames() []string {
	return p.Preprocessor.FeatureNames()
}

// Clone returns an unfitted pipeline with the same configuration.
func (p *Pipeline) Clone() *Pipeline {
	return New(p.Preprocessor.Clone(), p.Estimator.Clone())
}

// GetParams returns the estimator parameters under RegressorPrefix.
func (p *Pipeline) GetParams() map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range p.Estimator.GetParams() {
		out[RegressorPrefix+k] = v
	}
	return out
}

// SetParams routes "regressor__<name>" keys to the estimator. Any other key
// is rejected.
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	est := make(map[string]interface{}, len(params))
	for k, v := range params {
		name, ok := strings.CutPrefix(k, RegressorPrefix)
		if !ok {
			return errors.NewValueError("Pipeline.SetParams", "parameter "+k+" does not start with "+RegressorPrefix)
		}
		est[name] = v
	}
	if len(est) == 0 {
		return nil
	}
	if err := p.Estimator.SetParams(est); err != nil {
		return errors.Wrap(err, "Pipeline.SetParams")
	}
	p.Reset()
	return nil
}

// Save writes the pipeline, fitted state included, to w.
func (p *Pipeline) Save(w io.Writer) error {
	if err := p.CheckFitted("Pipeline", "Save"); err != nil {
		return err
	}
	return model.SaveModelToWriter(p, w)
}

// SaveFile writes the pipeline to filename.
func (p *Pipeline) SaveFile(filename string) error {
	if err := p.CheckFitted("Pipeline", "SaveFile"); err != nil {
		return err
	}
	return model.SaveModel(p, filename)
}

// Load reads a pipeline written by Save.
func Load(r io.Reader) (*Pipeline, error) {
	p := &Pipeline{}
	if err := model.LoadModelFromReader(p, r); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadFile reads a pipeline written by SaveFile.
func LoadFile(filename string) (*Pipeline, error) {
	p := &Pipeline{}
	if err := model.LoadModel(p, filename); err != nil {
		return nil, err
	}
	return p, nil
}
