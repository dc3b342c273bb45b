package features

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/couchcryptid/rain-features/internal/domain"
)

// ArtifactVersion is the artifact format written by this build. Restore
// accepts only this version.
const ArtifactVersion = 1

// ErrIncompatibleArtifact is returned when an artifact was written in a
// format this build cannot read.
var ErrIncompatibleArtifact = errors.New("incompatible artifact")

// Artifact is the persisted form of a fitted pipeline.
type Artifact struct {
	Version  int              `json:"version"`
	ID       string           `json:"id"`
	FittedAt time.Time        `json:"fitted_at"`
	Settings Settings         `json:"settings"`
	Schema   domain.Schema    `json:"schema"`
	Assigner AssignerArtifact `json:"assigner"`
	Imputer  ImputerArtifact  `json:"imputer"`
	Capper   CapperArtifact   `json:"capper"`
}

type AssignerArtifact struct {
	Coordinates []domain.LocationCoordinate `json:"coordinates"`
	Centroids   [][]float64                 `json:"centroids"`
	Clusters    map[string]int              `json:"clusters"`
	Inertia     float64                     `json:"inertia"`
}

type ImputerArtifact struct {
	Numeric     []NumericTable     `json:"numeric"`
	Categorical []CategoricalTable `json:"categorical"`
}

// NumericTable holds the medians learned for one column.
type NumericTable struct {
	Column   string                `json:"column"`
	Groups   []GroupValue[float64] `json:"groups"`
	Clusters map[int]float64       `json:"clusters"`
	Global   float64               `json:"global"`
}

// CategoricalTable holds the modes learned for one column.
type CategoricalTable struct {
	Column   string               `json:"column"`
	Groups   []GroupValue[string] `json:"groups"`
	Clusters map[int]string       `json:"clusters"`
	Global   string               `json:"global"`
}

// GroupValue is the statistic of one (cluster, day) group.
type GroupValue[T any] struct {
	Cluster int    `json:"cluster"`
	Date    string `json:"date"`
	Value   T      `json:"value"`
}

type CapperArtifact struct {
	Bounds map[string]Bounds `json:"bounds"`
}

// Artifact snapshots the fitted pipeline.
func (p *Pipeline) Artifact() (*Artifact, error) {
	st := p.state.Load()
	if st == nil {
		return nil, &domain.NotFittedError{Stage: "pipeline", Op: "Artifact"}
	}
	as := st.assigner.state.Load()
	is := st.imputer.state.Load()
	cs := st.capper.state.Load()

	a := &Artifact{
		Version:  ArtifactVersion,
		ID:       st.id,
		FittedAt: st.fittedAt,
		Settings: p.settings.Clone(),
		Schema:   cloneSchema(st.schema),
		Assigner: AssignerArtifact{
			Coordinates: st.assigner.coords.Entries(),
			Centroids:   cloneRows(as.centroids),
			Clusters:    maps.Clone(as.clusters),
			Inertia:     as.inertia,
		},
		Capper: CapperArtifact{Bounds: maps.Clone(cs.bounds)},
	}
	for _, name := range is.numeric {
		ns := is.num[name]
		a.Imputer.Numeric = append(a.Imputer.Numeric, NumericTable{
			Column:   name,
			Groups:   groupValues(ns.byGroup),
			Clusters: maps.Clone(ns.byCluster),
			Global:   ns.global,
		})
	}
	for _, name := range is.categorical {
		ct := is.cat[name]
		a.Imputer.Categorical = append(a.Imputer.Categorical, CategoricalTable{
			Column:   name,
			Groups:   groupValues(ct.byGroup),
			Clusters: maps.Clone(ct.byCluster),
			Global:   ct.global,
		})
	}
	return a, nil
}

// groupValues flattens a group map in (cluster, date) order so artifacts of
// the same fit encode identically.
func groupValues[T any](m map[groupKey]T) []GroupValue[T] {
	out := make([]GroupValue[T], 0, len(m))
	for k, v := range m {
		out = append(out, GroupValue[T]{Cluster: k.cluster, Date: k.day, Value: v})
	}
	slices.SortFunc(out, func(a, b GroupValue[T]) int {
		return cmp.Or(cmp.Compare(a.Cluster, b.Cluster), cmp.Compare(a.Date, b.Date))
	})
	return out
}

func groupMap[T any](groups []GroupValue[T]) map[groupKey]T {
	out := make(map[groupKey]T, len(groups))
	for _, g := range groups {
		out[groupKey{cluster: g.Cluster, day: g.Date}] = g.Value
	}
	return out
}

// Restore rebuilds a fitted pipeline from an artifact.
func Restore(a *Artifact, opts ...Option) (*Pipeline, error) {
	if a == nil {
		return nil, fmt.Errorf("restore: nil artifact")
	}
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("restore: version %d, want %d: %w", a.Version, ArtifactVersion, ErrIncompatibleArtifact)
	}
	if len(a.Assigner.Centroids) != a.Settings.Assigner.Clusters {
		return nil, fmt.Errorf("restore: %d centroids for %d clusters: %w",
			len(a.Assigner.Centroids), a.Settings.Assigner.Clusters, ErrIncompatibleArtifact)
	}

	p, err := New(CoordinateTableFrom(a.Assigner.Coordinates), a.Settings, opts...)
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	st, err := p.newStages()
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}

	st.assigner.state.Store(&assignerState{
		clusters:  maps.Clone(a.Assigner.Clusters),
		centroids: cloneRows(a.Assigner.Centroids),
		inertia:   a.Assigner.Inertia,
	})

	is := &imputerState{
		num: make(map[string]*numericStats, len(a.Imputer.Numeric)),
		cat: make(map[string]*categoricalStats, len(a.Imputer.Categorical)),
	}
	for _, t := range a.Imputer.Numeric {
		is.numeric = append(is.numeric, t.Column)
		is.num[t.Column] = &numericStats{
			byGroup:   groupMap(t.Groups),
			byCluster: maps.Clone(t.Clusters),
			global:    t.Global,
		}
	}
	for _, t := range a.Imputer.Categorical {
		is.cat[t.Column] = &categoricalStats{
			byGroup:   groupMap(t.Groups),
			byCluster: maps.Clone(t.Clusters),
			global:    t.Global,
		}
	}
	for _, name := range a.Settings.Imputer.Categorical {
		if _, ok := is.cat[name]; !ok {
			return nil, fmt.Errorf("restore: no imputation table for categorical %q: %w", name, ErrIncompatibleArtifact)
		}
		is.categorical = append(is.categorical, name)
	}
	st.imputer.state.Store(is)

	for _, name := range a.Settings.Capper.Cap {
		if _, ok := a.Capper.Bounds[name]; !ok {
			return nil, fmt.Errorf("restore: no bounds for %q: %w", name, ErrIncompatibleArtifact)
		}
	}
	st.capper.state.Store(&capperState{bounds: maps.Clone(a.Capper.Bounds)})

	st.id = a.ID
	st.fittedAt = a.FittedAt
	st.schema = cloneSchema(a.Schema)
	p.state.Store(st)

	p.logger.Info("pipeline restored", "artifact_id", a.ID, "fitted_at", a.FittedAt)
	return p, nil
}

// WriteArtifact encodes a as indented JSON.
func WriteArtifact(w io.Writer, a *Artifact) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// ReadArtifact decodes an artifact written by WriteArtifact.
func ReadArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return &a, nil
}

func cloneRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out
}

func cloneSchema(s domain.Schema) domain.Schema {
	return domain.Schema{
		Numeric:     slices.Clone(s.Numeric),
		Categorical: slices.Clone(s.Categorical),
	}
}
