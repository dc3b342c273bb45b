// Package csvio reads and writes observation tables and coordinate tables as
// CSV with a header row.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/rain-features/internal/domain"
)

// alwaysCategorical columns are never typed as numeric, even when every
// value parses as a number.
var alwaysCategorical = map[string]bool{
	domain.LocationColumn: true,
	domain.DateColumn:     true,
}

// ReadFrame reads a CSV table. A column whose non-missing values all parse
// as numbers becomes numeric; every other column is categorical. A column
// with no value at all is numeric.
func ReadFrame(r io.Reader) (*domain.Frame, error) {
	return readFrame(r, domain.Schema{})
}

// ReadFrameAs reads a CSV table typing the columns named in schema by the
// schema instead of by inference, so an inference batch whose categorical
// column happens to be empty or numeric-looking keeps its fitted kind. A
// schema numeric column holding text is an error.
func ReadFrameAs(r io.Reader, schema domain.Schema) (*domain.Frame, error) {
	return readFrame(r, schema)
}

func readFrame(r io.Reader, schema domain.Schema) (*domain.Frame, error) {
	kinds := make(map[string]domain.Kind, len(schema.Numeric)+len(schema.Categorical))
	for _, name := range schema.Numeric {
		kinds[name] = domain.Numeric
	}
	for _, name := range schema.Categorical {
		kinds[name] = domain.Categorical
	}

	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("read csv: empty input")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	header = trimHeader(header)
	if dup := duplicate(header); dup != "" {
		return nil, fmt.Errorf("read csv header: duplicate column %q", dup)
	}

	cols := make([][]string, len(header))
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		for i, v := range rec {
			cols[i] = append(cols[i], v)
		}
	}

	rows := 0
	if len(cols) > 0 {
		rows = len(cols[0])
	}
	f := domain.NewFrame(rows)
	for i, name := range header {
		kind, typed := kinds[name]
		if typed && kind == domain.Numeric {
			nums, err := parseNumericColumn(name, cols[i])
			if err != nil {
				return nil, err
			}
			if err := f.SetNumeric(name, nums); err != nil {
				return nil, err
			}
			continue
		}
		if nums, ok := numericColumn(name, cols[i]); ok && !typed {
			if err := f.SetNumeric(name, nums); err != nil {
				return nil, err
			}
			continue
		}
		strs := make([]string, rows)
		for j, v := range cols[i] {
			strs[j] = domain.NormalizeCategorical(v)
		}
		if err := f.SetCategorical(name, strs); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func numericColumn(name string, raw []string) ([]float64, bool) {
	if alwaysCategorical[name] {
		return nil, false
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		n, err := domain.ParseNumeric(v)
		if err != nil {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

func parseNumericColumn(name string, raw []string) ([]float64, error) {
	out := make([]float64, len(raw))
	for i, v := range raw {
		n, err := domain.ParseNumeric(v)
		if err != nil {
			return nil, fmt.Errorf("read csv: column %q row %d: %q is not numeric", name, i+1, v)
		}
		out[i] = n
	}
	return out, nil
}

// WriteFrame writes f with a header row. Missing values are written empty.
func WriteFrame(w io.Writer, f *domain.Frame) error {
	cw := csv.NewWriter(w)
	names := f.Names()
	if err := cw.Write(names); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	cols := make([]*domain.Column, len(names))
	for i, name := range names {
		cols[i], _ = f.Column(name)
	}
	rec := make([]string, len(names))
	for r := range f.Len() {
		for i, c := range cols {
			if c.Kind() == domain.Numeric {
				rec[i] = domain.FormatNumeric(c.Float(r))
			} else {
				rec[i] = c.Str(r)
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", r, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCoordinates reads a Location,Latitude,Longitude table. Column order is
// free and extra columns are ignored. Rows with a missing latitude or
// longitude are skipped and their locations returned in skipped.
func ReadCoordinates(r io.Reader) (entries []domain.LocationCoordinate, skipped []string, err error) {
	f, err := ReadFrame(r)
	if err != nil {
		return nil, nil, err
	}
	const stage = "coordinates"
	loc, err := f.CategoricalColumn(stage, domain.LocationColumn)
	if err != nil {
		return nil, nil, err
	}
	lat, err := f.NumericColumn(stage, domain.LatitudeColumn)
	if err != nil {
		return nil, nil, err
	}
	lon, err := f.NumericColumn(stage, domain.LongitudeColumn)
	if err != nil {
		return nil, nil, err
	}

	for i := range f.Len() {
		name := loc.Str(i)
		if name == "" {
			continue
		}
		if lat.IsMissing(i) || lon.IsMissing(i) {
			skipped = append(skipped, name)
			continue
		}
		la, lo := lat.Float(i), lon.Float(i)
		if la < -90 || la > 90 || lo < -180 || lo > 180 {
			return nil, nil, fmt.Errorf("coordinates row %d: %q has out of range position (%g, %g)", i+1, name, la, lo)
		}
		entries = append(entries, domain.LocationCoordinate{Location: name, Latitude: la, Longitude: lo})
	}
	return entries, skipped, nil
}

// WriteCoordinates writes entries as a Location,Latitude,Longitude table.
func WriteCoordinates(w io.Writer, entries []domain.LocationCoordinate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{domain.LocationColumn, domain.LatitudeColumn, domain.LongitudeColumn}); err != nil {
		return fmt.Errorf("write coordinates header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write([]string{
			e.Location,
			domain.FormatNumeric(e.Latitude),
			domain.FormatNumeric(e.Longitude),
		}); err != nil {
			return fmt.Errorf("write coordinates: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func trimHeader(h []string) []string {
	out := make([]string, len(h))
	for i, v := range h {
		out[i] = strings.TrimSpace(strings.TrimPrefix(v, "\ufeff"))
	}
	return out
}

func duplicate(names []string) string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return n
		}
		seen[n] = true
	}
	return ""
}
