package model

import (
	"math"

	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

// FloatParam converts a hyperparameter value coming from SetParams, a grid or
// a YAML config into float64.
func FloatParam(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(name, "expected a number", v)
}

// IntParam converts v into int. Integral floats are accepted since YAML and
// JSON decoders produce float64 for bare numbers.
func IntParam(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case int32:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int(x), nil
		}
	case float32:
		if f := float64(x); f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int(f), nil
		}
	}
	return 0, errors.NewValidationError(name, "expected an integer", v)
}

// BoolParam converts v into bool.
func BoolParam(name string, v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, errors.NewValidationError(name, "expected a bool", v)
}

// UnknownParam is returned by SetParams for keys the estimator does not have.
func UnknownParam(op, name string) error {
	return errors.NewValueError(op, "unknown parameter "+name)
}
