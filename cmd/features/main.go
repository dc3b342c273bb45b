// Command features fits the rain feature pipeline on a training table and
// applies a fitted pipeline to new observations.
//
// Usage:
//
//	go run ./cmd/features fit \
//	  --train data/weatherAUS.csv \
//	  --coords data/coordinates.csv \
//	  --settings pipeline.yaml \
//	  --artifact pipeline.json
//
//	go run ./cmd/features transform \
//	  --artifact pipeline.json \
//	  --in data/today.csv \
//	  --out data/today_features.csv
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/rain-features/internal/adapter/csvio"
	"github.com/couchcryptid/rain-features/internal/config"
	"github.com/couchcryptid/rain-features/internal/domain"
	"github.com/couchcryptid/rain-features/internal/features"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := sharedobs.NewLogger(cfg.LogLevel, sharedcfg.EnvOrDefault("LOG_FORMAT", "text"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], logger); err != nil {
		logger.Error("features failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, logger *slog.Logger) error {
	root := newRootCmd(cfg, logger)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "features",
		Short:         "Fit the rain feature pipeline and apply it to observations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return fmt.Errorf("missing command\n%s", cmd.UsageString())
		},
	}
	root.AddCommand(newFitCmd(logger), newTransformCmd(cfg, logger))
	return root
}

func newFitCmd(logger *slog.Logger) *cobra.Command {
	var trainPath, coordsPath, settingsPath, artifactPath string
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit the pipeline on a training CSV and write an artifact",
		Example: `  features fit --train data/weatherAUS.csv --coords data/coordinates.csv
  features fit --train data/weatherAUS.csv --coords data/coordinates.csv --settings pipeline.yaml`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runFit(trainPath, coordsPath, settingsPath, artifactPath, logger)
		},
	}
	cmd.Flags().StringVar(&trainPath, "train", "", "training observations CSV")
	cmd.Flags().StringVar(&coordsPath, "coords", "", "Location,Latitude,Longitude CSV")
	cmd.Flags().StringVar(&settingsPath, "settings", "", "pipeline settings YAML (defaults when empty)")
	cmd.Flags().StringVar(&artifactPath, "artifact", "pipeline.json", "output artifact path")
	_ = cmd.MarkFlagRequired("train")
	_ = cmd.MarkFlagRequired("coords")
	return cmd
}

func newTransformCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var artifactPath, inPath, outPath string
	var workers int
	cmd := &cobra.Command{
		Use:     "transform",
		Short:   "Apply a fitted artifact to an observation CSV",
		Example: `  features transform --artifact pipeline.json --in data/today.csv --out data/today_features.csv --workers 4`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTransform(cmd.Context(), artifactPath, inPath, outPath, workers, logger)
		},
	}
	cmd.Flags().StringVar(&artifactPath, "artifact", "pipeline.json", "fitted artifact path")
	cmd.Flags().StringVar(&inPath, "in", "", "observations CSV")
	cmd.Flags().StringVar(&outPath, "out", "", "output feature CSV")
	cmd.Flags().IntVar(&workers, "workers", cfg.TransformWorkers, "row shards transformed concurrently (TRANSFORM_WORKERS)")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runFit(trainPath, coordsPath, settingsPath, artifactPath string, logger *slog.Logger) error {
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return err
	}

	coords, err := loadCoordinates(coordsPath, logger)
	if err != nil {
		return err
	}

	train, err := readFrame(trainPath, nil)
	if err != nil {
		return err
	}
	logger.Info("training data loaded", "path", trainPath, "rows", train.Len(), "columns", len(train.Names()))

	model, err := features.New(coords, settings, features.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := model.Fit(train); err != nil {
		return err
	}

	a, err := model.Artifact()
	if err != nil {
		return err
	}
	out, err := os.Create(artifactPath)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	if err := features.WriteArtifact(out, a); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	logger.Info("artifact written", "path", artifactPath, "artifact_id", a.ID, "clusters", len(a.Assigner.Centroids))
	return nil
}

func runTransform(ctx context.Context, artifactPath, inPath, outPath string, workers int, logger *slog.Logger) error {
	if workers < 1 {
		return errors.New("--workers must be at least 1")
	}
	model, err := loadModel(artifactPath, logger)
	if err != nil {
		return err
	}
	schema, err := model.Schema()
	if err != nil {
		return err
	}

	in, err := readFrame(inPath, &schema)
	if err != nil {
		return err
	}
	logger.Info("observations loaded", "path", inPath, "rows", in.Len())

	start := time.Now()
	out, err := model.TransformParallel(ctx, in, workers)
	if err != nil {
		return err
	}
	logger.Info("observations transformed", "rows", out.Len(), "columns", len(out.Names()), "workers", workers, "duration", time.Since(start))

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := csvio.WriteFrame(f, out); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	logger.Info("features written", "path", outPath)
	return nil
}

func loadCoordinates(path string, logger *slog.Logger) (*features.CoordinateTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open coordinates: %w", err)
	}
	defer f.Close()

	entries, skipped, err := csvio.ReadCoordinates(f)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		logger.Warn("coordinates skipped", "count", len(skipped), "locations", skipped)
	}
	coords := features.CoordinateTableFrom(entries)
	if conflicts := coords.Conflicts(); len(conflicts) > 0 {
		logger.Warn("conflicting coordinates ignored, first entry kept", "locations", conflicts)
	}
	logger.Info("coordinates loaded", "path", path, "locations", coords.Len())
	return coords, nil
}

func loadModel(path string, logger *slog.Logger) (*features.Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	a, err := features.ReadArtifact(f)
	if err != nil {
		return nil, err
	}
	return features.Restore(a, features.WithLogger(logger))
}

// readFrame reads an observation CSV, typed by schema when one is given.
func readFrame(path string, schema *domain.Schema) (*domain.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open observations: %w", err)
	}
	defer f.Close()

	if schema == nil {
		return csvio.ReadFrame(f)
	}
	return csvio.ReadFrameAs(f, *schema)
}
