package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikecount/core/model"
	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

// intParam は nil をデフォルト値として扱う
func intParam(name string, v interface{}, def int) (int, error) {
	if v == nil {
		return def, nil
	}
	return model.IntParam(name, v)
}

func floatParam(name string, v interface{}, def float64) (float64, error) {
	if v == nil {
		return def, nil
	}
	return model.FloatParam(name, v)
}

func boolParam(name string, v interface{}, def bool) (bool, error) {
	if v == nil {
		return def, nil
	}
	return model.BoolParam(name, v)
}

// checkTrainingData validates (X, y) and returns y as a slice.
func checkTrainingData(op string, X, y mat.Matrix) (rows, cols int, target []float64, err error) {
	rows, cols = X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return 0, 0, nil, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if err := errors.CheckMatrix(op, X, rows, cols); err != nil {
		return 0, 0, nil, err
	}
	target = mat.Col(nil, 0, y)
	if err := errors.CheckNumericalStability(op, target, 0); err != nil {
		return 0, 0, nil, err
	}
	return rows, cols, target, nil
}

// featureImportances sums split gains per feature and normalises them to 1.
func featureImportances(trees []*Tree, nFeatures int) []float64 {
	imp := make([]float64, nFeatures)
	var walk func(n *TreeNode)
	walk = func(n *TreeNode) {
		if n == nil || n.Leaf {
			return
		}
		imp[n.Feature] += n.Gain
		walk(n.Left)
		walk(n.Right)
	}
	for _, t := range trees {
		walk(t.Root)
	}
	total := 0.0
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for i := range imp {
			imp[i] /= total
		}
	}
	return imp
}
