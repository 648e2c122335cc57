// Package frame provides a small columnar table with typed columns.
//
// A Frame never changes once built: every derivation (adding, replacing,
// dropping or selecting columns, taking rows) returns a new Frame that shares
// the untouched columns with its parent.
package frame

import (
	"fmt"
	"time"

	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

// Kind is the element type of a column.
type Kind int

const (
	// Time columns hold timestamps.
	Time Kind = iota
	// Float columns hold float64 values; NaN marks a missing value.
	Float
	// String columns hold categorical values; "" marks a missing value.
	String
)

func (k Kind) String() string {
	switch k {
	case Time:
		return "time"
	case Float:
		return "float"
	case String:
		return "string"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Column is a named, typed vector. Exactly one of the value slices is set,
// according to Kind. The slices are shared between frames and must be
// treated as read-only.
type Column struct {
	Name    string
	Kind    Kind
	times   []time.Time
	floats  []float64
	strings []string
}

// Len returns the number of values.
func (c *Column) Len() int {
	switch c.Kind {
	case Time:
		return len(c.times)
	case Float:
		return len(c.floats)
	default:
		return len(c.strings)
	}
}

// Times returns the values of a Time column, nil otherwise.
func (c *Column) Times() []time.Time { return c.times }

// Floats returns the values of a Float column, nil otherwise.
func (c *Column) Floats() []float64 { return c.floats }

// Strings returns the values of a String column, nil otherwise.
func (c *Column) Strings() []string { return c.strings }

func (c *Column) take(idx []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case Time:
		out.times = make([]time.Time, len(idx))
		for i, j := range idx {
			out.times[i] = c.times[j]
		}
	case Float:
		out.floats = make([]float64, len(idx))
		for i, j := range idx {
			out.floats[i] = c.floats[j]
		}
	default:
		out.strings = make([]string, len(idx))
		for i, j := range idx {
			out.strings[i] = c.strings[j]
		}
	}
	return out
}

// Frame is an ordered set of equally long columns.
type Frame struct {
	cols  []*Column
	index map[string]int
	nrows int
}

// New returns an empty frame with nrows rows and no columns.
func New(nrows int) *Frame {
	return &Frame{index: map[string]int{}, nrows: nrows}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.nrows }

// NumCols returns the number of columns.
func (f *Frame) NumCols() int { return len(f.cols) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order.
func (f *Frame) Columns() []*Column {
	out := make([]*Column, len(f.cols))
	copy(out, f.cols)
	return out
}

// Lookup returns the named column.
func (f *Frame) Lookup(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Has reports whether the named column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Float returns the values of a Float column, or a SchemaError naming op.
func (f *Frame) Float(op, name string) ([]float64, error) {
	c, err := f.require(op, name, Float)
	if err != nil {
		return nil, err
	}
	return c.floats, nil
}

// Time returns the values of a Time column, or a SchemaError naming op.
func (f *Frame) Time(op, name string) ([]time.Time, error) {
	c, err := f.require(op, name, Time)
	if err != nil {
		return nil, err
	}
	return c.times, nil
}

// String returns the values of a String column, or a SchemaError naming op.
func (f *Frame) String(op, name string) ([]string, error) {
	c, err := f.require(op, name, String)
	if err != nil {
		return nil, err
	}
	return c.strings, nil
}

func (f *Frame) require(op, name string, kind Kind) (*Column, error) {
	c, ok := f.Lookup(name)
	if !ok {
		return nil, errors.NewSchemaError(op, name, "column not found")
	}
	if c.Kind != kind {
		return nil, errors.NewSchemaError(op, name, fmt.Sprintf("expected %s column, got %s", kind, c.Kind))
	}
	return c, nil
}

// WithTime returns a frame with the column added, or replaced in place when
// the name already exists.
func (f *Frame) WithTime(name string, values []time.Time) (*Frame, error) {
	return f.with(&Column{Name: name, Kind: Time, times: values})
}

// WithFloat is WithTime for Float columns.
func (f *Frame) WithFloat(name string, values []float64) (*Frame, error) {
	return f.with(&Column{Name: name, Kind: Float, floats: values})
}

// WithString is WithTime for String columns.
func (f *Frame) WithString(name string, values []string) (*Frame, error) {
	return f.with(&Column{Name: name, Kind: String, strings: values})
}

func (f *Frame) with(c *Column) (*Frame, error) {
	if c.Len() != f.nrows {
		return nil, errors.NewDimensionError("Frame.With("+c.Name+")", f.nrows, c.Len(), 0)
	}
	out := f.clone()
	if i, ok := out.index[c.Name]; ok {
		out.cols[i] = c
		return out, nil
	}
	out.index[c.Name] = len(out.cols)
	out.cols = append(out.cols, c)
	return out, nil
}

// Drop returns a frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := New(f.nrows)
	for _, c := range f.cols {
		if drop[c.Name] {
			continue
		}
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, c)
	}
	return out
}

// Select returns a frame holding only the named columns, in the given order.
func (f *Frame) Select(op string, names ...string) (*Frame, error) {
	out := New(f.nrows)
	for _, n := range names {
		c, ok := f.Lookup(n)
		if !ok {
			return nil, errors.NewSchemaError(op, n, "column not found")
		}
		if _, dup := out.index[n]; dup {
			continue
		}
		out.index[n] = len(out.cols)
		out.cols = append(out.cols, c)
	}
	return out, nil
}

// Rows returns a frame holding the given rows, in the given order.
func (f *Frame) Rows(idx []int) (*Frame, error) {
	for _, j := range idx {
		if j < 0 || j >= f.nrows {
			return nil, errors.NewValueError("Frame.Rows", fmt.Sprintf("row index %d out of range [0, %d)", j, f.nrows))
		}
	}
	out := New(len(idx))
	for _, c := range f.cols {
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, c.take(idx))
	}
	return out, nil
}

func (f *Frame) clone() *Frame {
	out := &Frame{
		cols:  make([]*Column, len(f.cols), len(f.cols)+1),
		index: make(map[string]int, len(f.index)+1),
		nrows: f.nrows,
	}
	copy(out.cols, f.cols)
	for k, v := range f.index {
		out.index[k] = v
	}
	return out
}
