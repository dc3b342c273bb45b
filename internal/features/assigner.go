package features

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/rain-features/internal/domain"
	"github.com/couchcryptid/rain-features/internal/stats"
)

// Stage names used in errors, logs, and metrics.
const (
	StageAssigner = "assigner"
	StageImputer  = "imputer"
	StageCapper   = "capper"
)

// ErrNoCoordinates is returned by Assigner.Fit when no training location is
// present in the coordinate table.
var ErrNoCoordinates = errors.New("no training location has coordinates")

// dateLayouts are tried in order. Layouts without a zone parse as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	domain.DateKeyLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Assigner clusters stations by coordinates and derives calendar fields
// from each observation date.
type Assigner struct {
	coords   *CoordinateTable
	settings AssignerSettings
	logger   *slog.Logger
	recorder Recorder

	state atomic.Pointer[assignerState]
}

// assignerState is frozen once stored.
type assignerState struct {
	clusters  map[string]int
	centroids [][]float64
	inertia   float64
}

// NewAssigner creates an unfitted Assigner. The coordinate table is copied.
func NewAssigner(coords *CoordinateTable, s AssignerSettings, opts ...Option) (*Assigner, error) {
	if coords == nil {
		return nil, fmt.Errorf("%s: coordinate table is required", StageAssigner)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Assigner{
		coords:   coords.clone(),
		settings: s,
		logger:   o.logger,
		recorder: o.recorder,
	}, nil
}

// Fit clusters the distinct training stations that have coordinates.
// Stations are taken in first-seen row order, which together with the seed
// fully determines the cluster map.
func (a *Assigner) Fit(f *domain.Frame) error {
	loc, err := f.CategoricalColumn(StageAssigner, domain.LocationColumn)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	var locations []string
	var points [][]float64
	var unjoined []string
	for _, name := range loc.Strings() {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		c, ok := a.coords.Lookup(name)
		if !ok {
			unjoined = append(unjoined, name)
			continue
		}
		locations = append(locations, name)
		points = append(points, []float64{c.Lat, c.Lon})
	}

	if len(points) == 0 {
		return fmt.Errorf("%s: %w", StageAssigner, ErrNoCoordinates)
	}
	if len(unjoined) > 0 {
		a.logger.Warn("training locations without coordinates, they will have no region cluster",
			"count", len(unjoined), "locations", unjoined)
	}
	if conflicts := a.coords.Conflicts(); len(conflicts) > 0 {
		a.logger.Warn("coordinate table lists locations more than once, first pair kept",
			"locations", conflicts)
	}

	km := stats.KMeans{
		K:        a.settings.Clusters,
		Restarts: a.settings.Restarts,
		MaxIter:  a.settings.MaxIter,
		Tol:      a.settings.Tolerance,
		Seed:     a.settings.Seed,
	}
	res, err := km.Fit(points)
	if err != nil {
		return fmt.Errorf("%s: cluster %d locations: %w", StageAssigner, len(points), err)
	}

	clusters := make(map[string]int, len(locations))
	for i, name := range locations {
		clusters[name] = res.Labels[i]
	}
	a.state.Store(&assignerState{
		clusters:  clusters,
		centroids: res.Centroids,
		inertia:   res.Inertia,
	})

	a.logger.Info("region clusters fitted",
		"locations", len(locations),
		"clusters", a.settings.Clusters,
		"inertia", res.Inertia,
		"restart", res.Restart,
		"iterations", res.Iterations,
	)
	return nil
}

// Transform appends Month, Year, SimplifiedDate, Latitude, Longitude, and
// RegionCluster. Locations unseen at fit time get a missing cluster, and
// locations absent from the coordinate table get missing coordinates.
func (a *Assigner) Transform(f *domain.Frame) (*domain.Frame, error) {
	st := a.state.Load()
	if st == nil {
		return nil, &domain.NotFittedError{Stage: StageAssigner, Op: "Transform"}
	}
	start := time.Now()
	defer func() { a.recorder.ObserveStage(StageAssigner, time.Since(start)) }()

	loc, err := f.CategoricalColumn(StageAssigner, domain.LocationColumn)
	if err != nil {
		return nil, err
	}
	dates, err := f.CategoricalColumn(StageAssigner, domain.DateColumn)
	if err != nil {
		return nil, err
	}

	n := f.Len()
	month := make([]float64, n)
	year := make([]float64, n)
	dateKey := make([]string, n)
	lat := make([]float64, n)
	lon := make([]float64, n)
	cluster := make([]float64, n)

	for i := range n {
		month[i], year[i] = domain.Missing(), domain.Missing()
		if raw := dates.Str(i); raw != "" {
			d, err := parseDate(raw)
			if err != nil {
				return nil, &domain.RowError{Stage: StageAssigner, Row: i, Err: err}
			}
			month[i] = float64(d.Month())
			year[i] = float64(d.Year())
			dateKey[i] = d.Format(domain.DateKeyLayout)
		}

		name := loc.Str(i)
		lat[i], lon[i] = domain.Missing(), domain.Missing()
		if c, ok := a.coords.Lookup(name); ok {
			lat[i], lon[i] = c.Lat, c.Lon
		}
		cluster[i] = domain.Missing()
		if k, ok := st.clusters[name]; ok {
			cluster[i] = float64(k)
		}
	}

	out := f.Clone()
	for _, col := range []struct {
		name string
		vals []float64
	}{
		{domain.MonthColumn, month},
		{domain.YearColumn, year},
		{domain.LatitudeColumn, lat},
		{domain.LongitudeColumn, lon},
		{domain.ClusterColumn, cluster},
	} {
		if err := out.SetNumeric(col.name, col.vals); err != nil {
			return nil, err
		}
	}
	if err := out.SetCategorical(domain.DateKeyColumn, dateKey); err != nil {
		return nil, err
	}
	return out, nil
}

// Cluster returns the region cluster of a location. ok is false for a
// location unseen at fit time or before Fit.
func (a *Assigner) Cluster(location string) (cluster int, ok bool) {
	st := a.state.Load()
	if st == nil {
		return 0, false
	}
	cluster, ok = st.clusters[location]
	return cluster, ok
}

// Clusters returns a copy of the fitted location to cluster map.
func (a *Assigner) Clusters() (map[string]int, error) {
	st := a.state.Load()
	if st == nil {
		return nil, &domain.NotFittedError{Stage: StageAssigner, Op: "Clusters"}
	}
	return maps.Clone(st.clusters), nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
