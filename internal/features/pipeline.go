package features

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/rain-features/internal/domain"
)

// Estimator is a two-phase stage: Fit learns frozen state once, Transform
// applies it any number of times.
type Estimator interface {
	Fit(f *domain.Frame) error
	Transform(f *domain.Frame) (*domain.Frame, error)
}

var (
	_ Estimator = (*Assigner)(nil)
	_ Estimator = (*Imputer)(nil)
	_ Estimator = (*Capper)(nil)
)

// Pipeline chains the assigner, the imputer, and the capper. Each stage is
// fitted on the output of the previous stage's fit and transform.
type Pipeline struct {
	coords   *CoordinateTable
	settings Settings
	opts     []Option
	logger   *slog.Logger
	recorder Recorder

	state atomic.Pointer[pipelineState]
}

// pipelineState is a fitted set of stages. A successful Fit replaces it as
// a whole, so concurrent Transform calls never mix stages from two fits.
type pipelineState struct {
	id       string
	fittedAt time.Time
	schema   domain.Schema
	assigner *Assigner
	imputer  *Imputer
	capper   *Capper
}

func (st *pipelineState) stages() []Estimator {
	return []Estimator{st.assigner, st.imputer, st.capper}
}

func (st *pipelineState) transform(f *domain.Frame) (*domain.Frame, error) {
	cur := f
	for _, s := range st.stages() {
		out, err := s.Transform(cur)
		if err != nil {
			return nil, err
		}
		cur = out
	}
	return cur, nil
}

// New creates an unfitted pipeline. Settings are validated and copied.
func New(coords *CoordinateTable, s Settings, opts ...Option) (*Pipeline, error) {
	if coords == nil {
		return nil, fmt.Errorf("pipeline: coordinate table is required")
	}
	if err := s.Assigner.validate(); err != nil {
		return nil, err
	}
	if err := s.Capper.validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Pipeline{
		coords:   coords.clone(),
		settings: s.Clone(),
		opts:     opts,
		logger:   o.logger,
		recorder: o.recorder,
	}, nil
}

func (p *Pipeline) newStages() (*pipelineState, error) {
	assigner, err := NewAssigner(p.coords, p.settings.Assigner, p.opts...)
	if err != nil {
		return nil, err
	}
	capper, err := NewCapper(p.settings.Capper, p.opts...)
	if err != nil {
		return nil, err
	}
	return &pipelineState{
		assigner: assigner,
		imputer:  NewImputer(p.settings.Imputer, p.opts...),
		capper:   capper,
	}, nil
}

// Fit fits fresh stages on f and publishes them only if every stage
// succeeds. A failed Fit leaves the previously fitted stages in place.
func (p *Pipeline) Fit(f *domain.Frame) error {
	start := time.Now()
	st, err := p.newStages()
	if err != nil {
		return err
	}

	cur := f
	stages := st.stages()
	for i, s := range stages {
		if err := s.Fit(cur); err != nil {
			return fmt.Errorf("fit pipeline: %w", err)
		}
		if i == len(stages)-1 {
			break
		}
		if cur, err = s.Transform(cur); err != nil {
			return fmt.Errorf("fit pipeline: %w", err)
		}
	}

	st.id = uuid.NewString()
	st.fittedAt = domain.Now()
	st.schema = domain.SchemaOf(f)
	p.state.Store(st)

	elapsed := time.Since(start)
	p.recorder.ObserveFit(elapsed)
	p.logger.Info("pipeline fitted",
		"artifact_id", st.id,
		"rows", f.Len(),
		"duration", elapsed,
	)
	return nil
}

// Transform runs the three fitted stages over f. The input frame is not
// modified.
func (p *Pipeline) Transform(f *domain.Frame) (*domain.Frame, error) {
	st := p.state.Load()
	if st == nil {
		return nil, &domain.NotFittedError{Stage: "pipeline", Op: "Transform"}
	}
	return st.transform(f)
}

// TransformParallel splits f into at most shards row ranges, transforms
// them concurrently, and concatenates the results in row order. The first
// failing shard cancels the rest.
func (p *Pipeline) TransformParallel(ctx context.Context, f *domain.Frame, shards int) (*domain.Frame, error) {
	st := p.state.Load()
	if st == nil {
		return nil, &domain.NotFittedError{Stage: "pipeline", Op: "TransformParallel"}
	}
	n := f.Len()
	if shards <= 1 || n < 2 {
		return st.transform(f)
	}

	size := (n + shards - 1) / shards
	count := (n + size - 1) / size
	results := make([]*domain.Frame, count)

	g, ctx := errgroup.WithContext(ctx)
	for i := range count {
		lo, hi := i*size, min((i+1)*size, n)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := st.transform(f.Slice(lo, hi))
			if err != nil {
				domain.OffsetRow(err, lo)
				return fmt.Errorf("rows %d-%d: %w", lo, hi-1, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return domain.Concat(results...)
}

// Fitted reports whether Fit or Restore has produced stages.
func (p *Pipeline) Fitted() bool { return p.state.Load() != nil }

// ID returns the identifier assigned by the last successful Fit.
func (p *Pipeline) ID() string {
	if st := p.state.Load(); st != nil {
		return st.id
	}
	return ""
}

// Schema returns the input columns the pipeline was fitted on.
func (p *Pipeline) Schema() (domain.Schema, error) {
	st := p.state.Load()
	if st == nil {
		return domain.Schema{}, &domain.NotFittedError{Stage: "pipeline", Op: "Schema"}
	}
	return cloneSchema(st.schema), nil
}

// Settings returns a copy of the pipeline settings.
func (p *Pipeline) Settings() Settings { return p.settings.Clone() }

// Bounds returns the capping fences of the fitted capper.
func (p *Pipeline) Bounds() (map[string]Bounds, error) {
	st := p.state.Load()
	if st == nil {
		return nil, &domain.NotFittedError{Stage: "pipeline", Op: "Bounds"}
	}
	return st.capper.Bounds()
}

// Governed returns the columns the fitted imputer fills.
func (p *Pipeline) Governed() (numeric, categorical []string, err error) {
	st := p.state.Load()
	if st == nil {
		return nil, nil, &domain.NotFittedError{Stage: "pipeline", Op: "Governed"}
	}
	return st.imputer.Governed()
}
