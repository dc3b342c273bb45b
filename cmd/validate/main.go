// Command validate checks a feature CSV written by `features transform`
// against the artifact that produced it: derived columns are present,
// governed columns have no missing values, capped values respect the fitted
// fences, log columns match their source, and bands agree with thresholds.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -artifact pipeline.json \
//	  -features data/today_features.csv
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/couchcryptid/rain-features/internal/adapter/csvio"
	"github.com/couchcryptid/rain-features/internal/domain"
	"github.com/couchcryptid/rain-features/internal/features"
)

// logTolerance absorbs the rounding of values written to CSV.
const logTolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	artifactPath := flag.String("artifact", "pipeline.json", "fitted artifact path")
	featuresPath := flag.String("features", "", "feature CSV to validate")
	flag.Parse()

	if *featuresPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*artifactPath, *featuresPath, os.Stdout))
}

func run(artifactPath, featuresPath string, w io.Writer) int {
	fmt.Fprintln(w, "=== Rain Feature Validation ===")

	model, err := loadModel(artifactPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load artifact: %v\n", err)
		return 1
	}
	frame, err := loadFeatures(featuresPath, model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load features: %v\n", err)
		return 1
	}

	phases, err := validate(model, frame)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-36s %s\n", p.name, status)
	}
	fmt.Fprintf(w, "\nRows: %d, artifact %s\n", frame.Len(), model.ID())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

func validate(model *features.Pipeline, frame *domain.Frame) ([]*phase, error) {
	numeric, categorical, err := model.Governed()
	if err != nil {
		return nil, err
	}
	bounds, err := model.Bounds()
	if err != nil {
		return nil, err
	}
	settings := model.Settings()

	return []*phase{
		validateColumns(frame, settings),
		validateImputation(frame, numeric, categorical),
		validateCaps(frame, bounds),
		validateLogs(frame, settings.Capper.Log),
		validateBands(frame, settings.Capper.Bins),
	}, nil
}

// ── Phases ──

func validateColumns(f *domain.Frame, s features.Settings) *phase {
	p := &phase{name: "Derived columns present"}
	want := []string{
		domain.MonthColumn, domain.YearColumn, domain.DateKeyColumn,
		domain.LatitudeColumn, domain.LongitudeColumn, domain.ClusterColumn,
	}
	for _, name := range s.Capper.Cap {
		want = append(want, name+domain.CapSuffix)
	}
	for _, name := range s.Capper.Log {
		want = append(want, name+domain.LogSuffix)
	}
	for _, b := range s.Capper.Bins {
		want = append(want, b.Output)
	}
	for _, name := range want {
		if !f.Has(name) {
			p.errorf("column %q missing", name)
		}
	}
	return p
}

func validateImputation(f *domain.Frame, numeric, categorical []string) *phase {
	p := &phase{name: "Governed columns complete"}
	for _, name := range append(numeric, categorical...) {
		c, ok := f.Column(name)
		if !ok {
			p.errorf("column %q missing", name)
			continue
		}
		if n := c.MissingCount(); n > 0 {
			p.errorf("column %q has %d missing values", name, n)
		}
	}
	return p
}

func validateCaps(f *domain.Frame, bounds map[string]features.Bounds) *phase {
	p := &phase{name: "Capped values within fences"}
	for name, b := range bounds {
		c, err := f.NumericColumn("validate", name+domain.CapSuffix)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		for i, v := range c.Floats() {
			if domain.IsMissing(v) {
				continue
			}
			if v < b.Lower || v > b.Upper {
				p.errorf("%s row %d: %g outside [%g, %g]", c.Name(), i+1, v, b.Lower, b.Upper)
			}
		}
	}
	return p
}

func validateLogs(f *domain.Frame, columns []string) *phase {
	p := &phase{name: "Log columns match source"}
	for _, name := range columns {
		src, err := f.NumericColumn("validate", name)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		logs, err := f.NumericColumn("validate", name+domain.LogSuffix)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		for i, v := range src.Floats() {
			got := logs.Float(i)
			if domain.IsMissing(v) != domain.IsMissing(got) {
				p.errorf("%s row %d: missing mismatch", logs.Name(), i+1)
				continue
			}
			if !domain.IsMissing(v) && math.Abs(got-math.Log1p(v)) > logTolerance*math.Max(1, math.Abs(got)) {
				p.errorf("%s row %d: %g, want log1p(%g) = %g", logs.Name(), i+1, got, v, math.Log1p(v))
			}
		}
	}
	return p
}

func validateBands(f *domain.Frame, bins []features.BinSettings) *phase {
	p := &phase{name: "Bands agree with thresholds"}
	for _, b := range bins {
		src, err := f.NumericColumn("validate", b.Column)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		out, ok := f.Column(b.Output)
		if !ok {
			p.errorf("column %q missing", b.Output)
			continue
		}
		for i, v := range src.Floats() {
			want := expectedBand(v, b)
			var got string
			if out.Kind() == domain.Categorical {
				got = out.Str(i)
			}
			if got != want {
				p.errorf("%s row %d: %q for %g, want %q", b.Output, i+1, got, v, want)
			}
		}
	}
	return p
}

func expectedBand(v float64, b features.BinSettings) string {
	switch {
	case domain.IsMissing(v):
		return ""
	case v <= b.Thresholds[0]:
		return b.Labels[0]
	case v <= b.Thresholds[1]:
		return b.Labels[1]
	default:
		return b.Labels[2]
	}
}

// ── Data loading ──

func loadModel(path string) (*features.Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	a, err := features.ReadArtifact(f)
	if err != nil {
		return nil, err
	}
	return features.Restore(a, features.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// loadFeatures reads the feature CSV typed by the fitted input schema. Band
// and date key columns are categorical by name so an entirely empty band
// column is not inferred numeric.
func loadFeatures(path string, model *features.Pipeline) (*domain.Frame, error) {
	schema, err := model.Schema()
	if err != nil {
		return nil, err
	}
	schema.Categorical = append(schema.Categorical, domain.DateKeyColumn)
	for _, b := range model.Settings().Capper.Bins {
		schema.Categorical = append(schema.Categorical, b.Output)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csvio.ReadFrameAs(f, schema)
}
