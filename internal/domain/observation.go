package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ParseObservation decodes a flat JSON observation into a one-row frame typed
// by schema. Numeric fields accept JSON numbers, numeric strings, null, or
// missing tokens. Fields absent from the message become missing values;
// fields absent from the schema are ignored.
func ParseObservation(raw RawEvent, schema Schema) (*Frame, error) {
	dec := json.NewDecoder(bytes.NewReader(raw.Value))
	dec.UseNumber()

	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("parse observation: %w", err)
	}

	f := NewFrame(1)
	for _, name := range schema.Numeric {
		v, err := numericField(rec[name])
		if err != nil {
			return nil, fmt.Errorf("parse observation: field %q: %w", name, err)
		}
		if err := f.SetNumeric(name, []float64{v}); err != nil {
			return nil, err
		}
	}
	for _, name := range schema.Categorical {
		if err := f.SetCategorical(name, []string{categoricalField(rec[name])}); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func numericField(v any) (float64, error) {
	switch val := v.(type) {
	case nil:
		return Missing(), nil
	case json.Number:
		return val.Float64()
	case string:
		return ParseNumeric(val)
	default:
		return 0, fmt.Errorf("unsupported numeric value %v", v)
	}
}

func categoricalField(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return NormalizeCategorical(val)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// SerializeFeatureRows renders every row of a transformed frame as an output
// event. The key is "<Location>|<SimplifiedDate>" so rows for the same
// station and day land on the same partition.
func SerializeFeatureRows(f *Frame, artifactID string) ([]OutputEvent, error) {
	processedAt := Now().Format(time.RFC3339)
	loc, _ := f.Column(LocationColumn)
	day, _ := f.Column(DateKeyColumn)

	out := make([]OutputEvent, f.Len())
	for i := range f.Len() {
		data, err := json.Marshal(f.Record(i))
		if err != nil {
			return nil, fmt.Errorf("serialize feature row %d: %w", i, err)
		}
		var key string
		if loc != nil && day != nil && loc.Kind() == Categorical && day.Kind() == Categorical {
			key = loc.Str(i) + "|" + day.Str(i)
		}
		out[i] = OutputEvent{
			Key:   []byte(key),
			Value: data,
			Headers: map[string]string{
				"artifact_id":  artifactID,
				"processed_at": processedAt,
			},
		}
	}
	return out, nil
}
