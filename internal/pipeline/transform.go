package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/rain-features/internal/domain"
)

// Model is a fitted feature pipeline.
type Model interface {
	ID() string
	Schema() (domain.Schema, error)
	Transform(f *domain.Frame) (*domain.Frame, error)
}

// FeatureTransformer parses an observation with the schema the model was
// fitted on and renders the transformed row.
type FeatureTransformer struct {
	model  Model
	logger *slog.Logger
}

// NewTransformer creates a FeatureTransformer for a fitted model.
func NewTransformer(model Model, logger *slog.Logger) *FeatureTransformer {
	return &FeatureTransformer{model: model, logger: logger}
}

func (t *FeatureTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	schema, err := t.model.Schema()
	if err != nil {
		return domain.OutputEvent{}, err
	}
	obs, err := domain.ParseObservation(raw, schema)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	out, err := t.model.Transform(obs)
	if err != nil {
		return domain.OutputEvent{}, fmt.Errorf("transform observation: %w", err)
	}

	events, err := domain.SerializeFeatureRows(out, t.model.ID())
	if err != nil {
		return domain.OutputEvent{}, err
	}
	if len(events) != 1 {
		return domain.OutputEvent{}, fmt.Errorf("transform observation: expected 1 feature row, got %d", len(events))
	}
	t.logger.Debug("observation transformed", "key", string(events[0].Key), "offset", raw.Offset)
	return events[0], nil
}
