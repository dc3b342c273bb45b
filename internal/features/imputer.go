package features

import (
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/rain-features/internal/domain"
	"github.com/couchcryptid/rain-features/internal/stats"
)

// derivedKeys are numeric columns the assigner appends. They are grouping
// keys, never imputation targets.
var derivedKeys = []string{domain.ClusterColumn, domain.MonthColumn, domain.YearColumn}

// Imputer fills missing values from learned aggregates, most specific first:
// (cluster, day), then cluster, then the global statistic. Numeric columns
// use medians, categorical columns use modes.
type Imputer struct {
	exclude     []string
	categorical []string
	logger      *slog.Logger
	recorder    Recorder

	state atomic.Pointer[imputerState]
}

type groupKey struct {
	cluster int
	day     string
}

type numericStats struct {
	byGroup   map[groupKey]float64
	byCluster map[int]float64
	global    float64
}

type categoricalStats struct {
	byGroup   map[groupKey]string
	byCluster map[int]string
	global    string
}

// imputerState is frozen once stored.
type imputerState struct {
	numeric     []string
	categorical []string
	num         map[string]*numericStats
	cat         map[string]*categoricalStats
}

// NewImputer creates an unfitted Imputer. Column lists are copied.
func NewImputer(s ImputerSettings, opts ...Option) *Imputer {
	o := buildOptions(opts)
	return &Imputer{
		exclude:     slices.Clone(s.NumericExclude),
		categorical: slices.Clone(s.Categorical),
		logger:      o.logger,
		recorder:    o.recorder,
	}
}

// rowKeys reads the grouping keys of every row. hasCluster[i] is false for
// rows whose station was unseen when the assigner was fitted.
func rowKeys(stage string, f *domain.Frame) (clusters []int, hasCluster []bool, days []string, err error) {
	cc, err := f.NumericColumn(stage, domain.ClusterColumn)
	if err != nil {
		return nil, nil, nil, err
	}
	dc, err := f.CategoricalColumn(stage, domain.DateKeyColumn)
	if err != nil {
		return nil, nil, nil, err
	}
	n := f.Len()
	clusters = make([]int, n)
	hasCluster = make([]bool, n)
	for i, v := range cc.Floats() {
		if !domain.IsMissing(v) {
			clusters[i], hasCluster[i] = int(v), true
		}
	}
	return clusters, hasCluster, slices.Clone(dc.Strings()), nil
}

// Fit learns the three-level statistics. Numeric targets are all numeric
// columns except the configured exclusions and the assigner's key columns,
// in name order. A target with no observed value fails the fit.
func (im *Imputer) Fit(f *domain.Frame) error {
	clusters, hasCluster, days, err := rowKeys(StageImputer, f)
	if err != nil {
		return err
	}

	var numeric []string
	for _, name := range f.NamesOf(domain.Numeric) {
		if slices.Contains(im.exclude, name) || slices.Contains(derivedKeys, name) {
			continue
		}
		numeric = append(numeric, name)
	}
	slices.Sort(numeric)

	st := &imputerState{
		numeric:     numeric,
		categorical: slices.Clone(im.categorical),
		num:         make(map[string]*numericStats, len(numeric)),
		cat:         make(map[string]*categoricalStats, len(im.categorical)),
	}

	for _, name := range numeric {
		col, _ := f.Column(name)
		ns, err := fitNumeric(name, col.Floats(), clusters, hasCluster, days)
		if err != nil {
			return err
		}
		st.num[name] = ns
	}
	for _, name := range st.categorical {
		col, err := f.CategoricalColumn(StageImputer, name)
		if err != nil {
			return err
		}
		cs, err := fitCategorical(name, col.Strings(), clusters, hasCluster, days)
		if err != nil {
			return err
		}
		st.cat[name] = cs
	}

	im.state.Store(st)
	im.logger.Info("imputation statistics fitted",
		"numeric_columns", len(st.numeric),
		"categorical_columns", len(st.categorical),
		"rows", f.Len(),
	)
	return nil
}

func fitNumeric(name string, vals []float64, clusters []int, hasCluster []bool, days []string) (*numericStats, error) {
	groups := make(map[groupKey][]float64)
	byCluster := make(map[int][]float64)
	for i, v := range vals {
		if domain.IsMissing(v) || !hasCluster[i] {
			continue
		}
		byCluster[clusters[i]] = append(byCluster[clusters[i]], v)
		if days[i] != "" {
			k := groupKey{clusters[i], days[i]}
			groups[k] = append(groups[k], v)
		}
	}

	global, ok := stats.Median(vals)
	if !ok {
		return nil, fmt.Errorf("%s: median of %q: %w", StageImputer, name, domain.ErrUndefinedStatistic)
	}
	ns := &numericStats{
		byGroup:   make(map[groupKey]float64, len(groups)),
		byCluster: make(map[int]float64, len(byCluster)),
		global:    global,
	}
	for k, g := range groups {
		ns.byGroup[k], _ = stats.Median(g)
	}
	for k, g := range byCluster {
		ns.byCluster[k], _ = stats.Median(g)
	}
	return ns, nil
}

func fitCategorical(name string, vals []string, clusters []int, hasCluster []bool, days []string) (*categoricalStats, error) {
	global := stats.NewCounter()
	groups := make(map[groupKey]*stats.Counter)
	byCluster := make(map[int]*stats.Counter)
	for i, v := range vals {
		if v == "" {
			continue
		}
		global.Add(v)
		if !hasCluster[i] {
			continue
		}
		counter(byCluster, clusters[i]).Add(v)
		if days[i] != "" {
			counter(groups, groupKey{clusters[i], days[i]}).Add(v)
		}
	}

	mode, ok := global.Mode()
	if !ok {
		return nil, fmt.Errorf("%s: mode of %q: %w", StageImputer, name, domain.ErrUndefinedStatistic)
	}
	cs := &categoricalStats{
		byGroup:   make(map[groupKey]string, len(groups)),
		byCluster: make(map[int]string, len(byCluster)),
		global:    mode,
	}
	for k, c := range groups {
		cs.byGroup[k], _ = c.Mode()
	}
	for k, c := range byCluster {
		cs.byCluster[k], _ = c.Mode()
	}
	return cs, nil
}

func counter[K comparable](m map[K]*stats.Counter, k K) *stats.Counter {
	c, ok := m[k]
	if !ok {
		c = stats.NewCounter()
		m[k] = c
	}
	return c
}

// Transform fills missing values in every governed column. Each value is
// first looked up by (cluster, day), then by cluster; values still missing
// after all columns are processed take the global statistic. Rows without a
// cluster go straight to the global statistic.
func (im *Imputer) Transform(f *domain.Frame) (*domain.Frame, error) {
	st := im.state.Load()
	if st == nil {
		return nil, &domain.NotFittedError{Stage: StageImputer, Op: "Transform"}
	}
	start := time.Now()
	defer func() { im.recorder.ObserveStage(StageImputer, time.Since(start)) }()

	clusters, hasCluster, days, err := rowKeys(StageImputer, f)
	if err != nil {
		return nil, err
	}

	out := f.Clone()
	numCols := make([]*domain.Column, len(st.numeric))
	for i, name := range st.numeric {
		if numCols[i], err = out.NumericColumn(StageImputer, name); err != nil {
			return nil, err
		}
	}
	catCols := make([]*domain.Column, len(st.categorical))
	for i, name := range st.categorical {
		if catCols[i], err = out.CategoricalColumn(StageImputer, name); err != nil {
			return nil, err
		}
	}

	for i, col := range numCols {
		ns := st.num[st.numeric[i]]
		var byGroup, byCluster int
		for r, v := range col.Floats() {
			if !domain.IsMissing(v) || !hasCluster[r] {
				continue
			}
			if days[r] != "" {
				if m, ok := ns.byGroup[groupKey{clusters[r], days[r]}]; ok {
					col.SetFloat(r, m)
					byGroup++
					continue
				}
			}
			if m, ok := ns.byCluster[clusters[r]]; ok {
				col.SetFloat(r, m)
				byCluster++
			}
		}
		im.recorder.ObserveImputed(col.Name(), LevelClusterDate, byGroup)
		im.recorder.ObserveImputed(col.Name(), LevelCluster, byCluster)
	}
	for i, col := range catCols {
		cs := st.cat[st.categorical[i]]
		var byGroup, byCluster int
		for r, v := range col.Strings() {
			if v != "" || !hasCluster[r] {
				continue
			}
			if days[r] != "" {
				if m, ok := cs.byGroup[groupKey{clusters[r], days[r]}]; ok {
					col.SetStr(r, m)
					byGroup++
					continue
				}
			}
			if m, ok := cs.byCluster[clusters[r]]; ok {
				col.SetStr(r, m)
				byCluster++
			}
		}
		im.recorder.ObserveImputed(col.Name(), LevelClusterDate, byGroup)
		im.recorder.ObserveImputed(col.Name(), LevelCluster, byCluster)
	}

	// Global pass: guarantees no governed value is left missing.
	for i, col := range numCols {
		global := st.num[st.numeric[i]].global
		n := 0
		for r, v := range col.Floats() {
			if domain.IsMissing(v) {
				col.SetFloat(r, global)
				n++
			}
		}
		im.recorder.ObserveImputed(col.Name(), LevelGlobal, n)
	}
	for i, col := range catCols {
		global := st.cat[st.categorical[i]].global
		n := 0
		for r, v := range col.Strings() {
			if v == "" {
				col.SetStr(r, global)
				n++
			}
		}
		im.recorder.ObserveImputed(col.Name(), LevelGlobal, n)
	}

	return out, nil
}

// Governed returns the numeric and categorical columns Transform fills.
func (im *Imputer) Governed() (numeric, categorical []string, err error) {
	st := im.state.Load()
	if st == nil {
		return nil, nil, &domain.NotFittedError{Stage: StageImputer, Op: "Governed"}
	}
	return slices.Clone(st.numeric), slices.Clone(st.categorical), nil
}
