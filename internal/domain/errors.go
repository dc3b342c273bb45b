package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFitted matches any NotFittedError.
	ErrNotFitted = errors.New("not fitted")
	// ErrSchema matches any SchemaError.
	ErrSchema = errors.New("schema error")
	// ErrDomain matches any DomainError.
	ErrDomain = errors.New("domain error")
	// ErrUndefinedStatistic is returned by Fit when a column has no observed
	// value to compute a global statistic from.
	ErrUndefinedStatistic = errors.New("undefined statistic")
)

// NotFittedError reports use of frozen state before it was learned.
type NotFittedError struct {
	Stage string
	Op    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s: %s called before fit", e.Stage, e.Op)
}

func (e *NotFittedError) Is(target error) bool { return target == ErrNotFitted }

// SchemaError reports a configured or required column that is absent from
// the input, or present with the wrong kind.
type SchemaError struct {
	Stage  string
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "not found"
	}
	return fmt.Sprintf("%s: column %q %s", e.Stage, e.Column, reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// DomainError reports a value outside the domain of a transform, such as
// log1p of a value <= -1.
type DomainError struct {
	Column string
	Row    int
	Value  float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("column %q row %d: log1p(%g) is undefined, value must be greater than -1", e.Column, e.Row, e.Value)
}

func (e *DomainError) Is(target error) bool { return target == ErrDomain }

// RowError attaches a row index to a value that could not be parsed.
type RowError struct {
	Stage string
	Row   int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s: row %d: %v", e.Stage, e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// OffsetRow shifts the row index carried by err, if any, by offset. Callers
// that transform a slice of a larger frame use it to report rows relative
// to the whole frame.
func OffsetRow(err error, offset int) {
	var de *DomainError
	if errors.As(err, &de) {
		de.Row += offset
	}
	var re *RowError
	if errors.As(err, &re) {
		re.Row += offset
	}
}
