package features

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/rain-features/internal/domain"
	"github.com/couchcryptid/rain-features/internal/stats"
)

// iqrFactor scales the interquartile range into the capping fences.
const iqrFactor = 1.5

// Bounds are the inclusive capping fences of one column.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Clamp limits v to [Lower, Upper]. Missing values pass through.
func (b Bounds) Clamp(v float64) float64 {
	if domain.IsMissing(v) {
		return v
	}
	return math.Min(math.Max(v, b.Lower), b.Upper)
}

// Capper clamps outliers to IQR fences, adds log1p variants of skewed
// columns, and bins continuous signals into ordered bands.
type Capper struct {
	settings CapperSettings
	logger   *slog.Logger
	recorder Recorder

	state atomic.Pointer[capperState]
}

type capperState struct {
	bounds map[string]Bounds
}

// NewCapper creates an unfitted Capper. The log set must be a subset of the
// cap set and bin thresholds must ascend.
func NewCapper(s CapperSettings, opts ...Option) (*Capper, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Capper{
		settings: Settings{Capper: s}.Clone().Capper,
		logger:   o.logger,
		recorder: o.recorder,
	}, nil
}

// Fit learns the fences of every cap column from its observed training
// values: lower = Q1 - 1.5*IQR, upper = Q3 + 1.5*IQR. A log column holding a
// value <= -1 fails the fit with a DomainError.
func (c *Capper) Fit(f *domain.Frame) error {
	bounds := make(map[string]Bounds, len(c.settings.Cap))
	for _, name := range c.settings.Cap {
		col, err := f.NumericColumn(StageCapper, name)
		if err != nil {
			return err
		}
		if slices.Contains(c.settings.Log, name) {
			if err := checkLogDomain(col); err != nil {
				return fmt.Errorf("%s: %w", StageCapper, err)
			}
		}
		obs := stats.Observed(col.Floats())
		if len(obs) == 0 {
			return fmt.Errorf("%s: quartiles of %q: %w", StageCapper, name, domain.ErrUndefinedStatistic)
		}
		q1 := stats.Quantile(obs, 0.25)
		q3 := stats.Quantile(obs, 0.75)
		iqr := q3 - q1
		bounds[name] = Bounds{Lower: q1 - iqrFactor*iqr, Upper: q3 + iqrFactor*iqr}
	}
	for _, b := range c.settings.Bins {
		if _, err := f.NumericColumn(StageCapper, b.Column); err != nil {
			return err
		}
	}

	c.state.Store(&capperState{bounds: bounds})
	c.logger.Info("outlier bounds fitted", "columns", len(bounds))
	return nil
}

func checkLogDomain(col *domain.Column) error {
	for i, v := range col.Floats() {
		if !domain.IsMissing(v) && v <= -1 {
			return &domain.DomainError{Column: col.Name(), Row: i, Value: v}
		}
	}
	return nil
}

// Transform appends <col>_cap for every cap column, <col>_log for every log
// column, and one band column per bin. The log transform reads the original
// uncapped value.
func (c *Capper) Transform(f *domain.Frame) (*domain.Frame, error) {
	st := c.state.Load()
	if st == nil {
		return nil, &domain.NotFittedError{Stage: StageCapper, Op: "Transform"}
	}
	start := time.Now()
	defer func() { c.recorder.ObserveStage(StageCapper, time.Since(start)) }()

	out := f.Clone()
	for _, name := range c.settings.Cap {
		col, err := f.NumericColumn(StageCapper, name)
		if err != nil {
			return nil, err
		}
		b := st.bounds[name]
		vals := col.Floats()
		capped := make([]float64, len(vals))
		var lower, upper int
		for i, v := range vals {
			capped[i] = b.Clamp(v)
			switch {
			case domain.IsMissing(v):
			case v < b.Lower:
				lower++
			case v > b.Upper:
				upper++
			}
		}
		c.recorder.ObserveCapped(name, "lower", lower)
		c.recorder.ObserveCapped(name, "upper", upper)
		if err := out.SetNumeric(name+domain.CapSuffix, capped); err != nil {
			return nil, err
		}

		if !slices.Contains(c.settings.Log, name) {
			continue
		}
		logged := make([]float64, len(vals))
		for i, v := range vals {
			if domain.IsMissing(v) {
				logged[i] = v
				continue
			}
			if v <= -1 {
				c.recorder.ObserveDomainRejection(name)
				return nil, fmt.Errorf("%s: %w", StageCapper, &domain.DomainError{Column: name, Row: i, Value: v})
			}
			logged[i] = math.Log1p(v)
		}
		if err := out.SetNumeric(name+domain.LogSuffix, logged); err != nil {
			return nil, err
		}
	}

	for _, b := range c.settings.Bins {
		col, err := f.NumericColumn(StageCapper, b.Column)
		if err != nil {
			return nil, err
		}
		bands := make([]string, col.Len())
		for i, v := range col.Floats() {
			bands[i] = band(v, b)
		}
		if err := out.SetCategorical(b.Output, bands); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// band maps v onto one of three labels. Missing values map to "".
func band(v float64, b BinSettings) string {
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

// Bounds returns a copy of the fitted fences.
func (c *Capper) Bounds() (map[string]Bounds, error) {
	st := c.state.Load()
	if st == nil {
		return nil, &domain.NotFittedError{Stage: StageCapper, Op: "Bounds"}
	}
	return maps.Clone(st.bounds), nil
}
