package domain

import (
	"fmt"
	"math"
	"slices"
)

// Kind is the storage type of a frame column.
type Kind int

const (
	// Numeric columns hold float64 values; NaN marks a missing value.
	Numeric Kind = iota + 1
	// Categorical columns hold strings; the empty string marks a missing value.
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Missing returns the numeric missing-value marker.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the numeric missing-value marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Column is a single named, typed column of a Frame.
type Column struct {
	name string
	kind Kind
	nums []float64
	strs []string
}

func (c *Column) Name() string { return c.name }
func (c *Column) Kind() Kind   { return c.kind }

func (c *Column) Len() int {
	if c.kind == Numeric {
		return len(c.nums)
	}
	return len(c.strs)
}

// Floats returns the backing values of a numeric column. Callers must not
// retain the slice past a Set call on the owning frame.
func (c *Column) Floats() []float64 { return c.nums }

// Strings returns the backing values of a categorical column.
func (c *Column) Strings() []string { return c.strs }

func (c *Column) Float(i int) float64 { return c.nums[i] }
func (c *Column) Str(i int) string    { return c.strs[i] }

func (c *Column) SetFloat(i int, v float64) { c.nums[i] = v }
func (c *Column) SetStr(i int, v string)    { c.strs[i] = v }

// IsMissing reports whether row i holds no value.
func (c *Column) IsMissing(i int) bool {
	if c.kind == Numeric {
		return math.IsNaN(c.nums[i])
	}
	return c.strs[i] == ""
}

// MissingCount returns the number of rows that hold no value.
func (c *Column) MissingCount() int {
	n := 0
	for i := range c.Len() {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

func (c *Column) clone(lo, hi int) *Column {
	out := &Column{name: c.name, kind: c.kind}
	if c.kind == Numeric {
		out.nums = slices.Clone(c.nums[lo:hi])
	} else {
		out.strs = slices.Clone(c.strs[lo:hi])
	}
	return out
}

// Frame is a column-oriented in-memory table. Column order is insertion order.
type Frame struct {
	rows  int
	order []string
	cols  map[string]*Column
}

// NewFrame returns an empty frame with a fixed row count.
func NewFrame(rows int) *Frame {
	return &Frame{rows: rows, cols: make(map[string]*Column)}
}

func (f *Frame) Len() int { return f.rows }

// Names returns the column names in insertion order.
func (f *Frame) Names() []string { return slices.Clone(f.order) }

// NamesOf returns the names of all columns of the given kind, in insertion order.
func (f *Frame) NamesOf(kind Kind) []string {
	var out []string
	for _, name := range f.order {
		if f.cols[name].kind == kind {
			out = append(out, name)
		}
	}
	return out
}

func (f *Frame) Column(name string) (*Column, bool) {
	c, ok := f.cols[name]
	return c, ok
}

func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// NumericColumn returns the named column, failing unless it exists and is numeric.
func (f *Frame) NumericColumn(stage, name string) (*Column, error) {
	return f.typedColumn(stage, name, Numeric)
}

// CategoricalColumn returns the named column, failing unless it exists and is categorical.
func (f *Frame) CategoricalColumn(stage, name string) (*Column, error) {
	return f.typedColumn(stage, name, Categorical)
}

func (f *Frame) typedColumn(stage, name string, kind Kind) (*Column, error) {
	c, ok := f.cols[name]
	if !ok {
		return nil, &SchemaError{Stage: stage, Column: name}
	}
	if c.kind != kind {
		return nil, &SchemaError{Stage: stage, Column: name, Reason: fmt.Sprintf("is %s, want %s", c.kind, kind)}
	}
	return c, nil
}

// SetNumeric adds or replaces a numeric column. A replaced column keeps its position.
func (f *Frame) SetNumeric(name string, values []float64) error {
	if len(values) != f.rows {
		return fmt.Errorf("column %q has %d values, frame has %d rows", name, len(values), f.rows)
	}
	f.set(&Column{name: name, kind: Numeric, nums: values})
	return nil
}

// SetCategorical adds or replaces a categorical column.
func (f *Frame) SetCategorical(name string, values []string) error {
	if len(values) != f.rows {
		return fmt.Errorf("column %q has %d values, frame has %d rows", name, len(values), f.rows)
	}
	f.set(&Column{name: name, kind: Categorical, strs: values})
	return nil
}

func (f *Frame) set(c *Column) {
	if _, ok := f.cols[c.name]; !ok {
		f.order = append(f.order, c.name)
	}
	f.cols[c.name] = c
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	return f.Slice(0, f.rows)
}

// Slice returns a deep copy of rows [lo, hi).
func (f *Frame) Slice(lo, hi int) *Frame {
	out := NewFrame(hi - lo)
	out.order = slices.Clone(f.order)
	for name, c := range f.cols {
		out.cols[name] = c.clone(lo, hi)
	}
	return out
}

// Record returns row i as a map keyed by column name. Missing values map to nil.
func (f *Frame) Record(i int) map[string]any {
	rec := make(map[string]any, len(f.order))
	for _, name := range f.order {
		c := f.cols[name]
		switch {
		case c.IsMissing(i):
			rec[name] = nil
		case c.kind == Numeric:
			rec[name] = c.nums[i]
		default:
			rec[name] = c.strs[i]
		}
	}
	return rec
}

// Concat stacks frames with identical column sets vertically. The column
// order of the first frame is kept.
func Concat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return NewFrame(0), nil
	}
	total := 0
	for _, fr := range frames {
		total += fr.rows
	}
	first := frames[0]
	out := NewFrame(total)
	for _, name := range first.order {
		kind := first.cols[name].kind
		nums := make([]float64, 0, total)
		strs := make([]string, 0, total)
		for i, fr := range frames {
			c, ok := fr.cols[name]
			if !ok || c.kind != kind {
				return nil, fmt.Errorf("concat: frame %d has no %s column %q", i, kind, name)
			}
			nums = append(nums, c.nums...)
			strs = append(strs, c.strs...)
		}
		if kind == Numeric {
			out.set(&Column{name: name, kind: kind, nums: nums})
		} else {
			out.set(&Column{name: name, kind: kind, strs: strs})
		}
	}
	for i, fr := range frames[1:] {
		if len(fr.order) != len(first.order) {
			return nil, fmt.Errorf("concat: frame %d has %d columns, want %d", i+1, len(fr.order), len(first.order))
		}
	}
	return out, nil
}
