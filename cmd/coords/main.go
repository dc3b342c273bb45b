// Command coords builds the coordinate table of every distinct location in
// an observation CSV by forward geocoding the station names with Mapbox.
// Locations already present in an existing table are not queried again.
//
// Usage:
//
//	MAPBOX_TOKEN=... go run ./cmd/coords \
//	  -in data/weatherAUS.csv \
//	  -out data/coordinates.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/rain-features/internal/adapter/csvio"
	"github.com/couchcryptid/rain-features/internal/adapter/mapbox"
	"github.com/couchcryptid/rain-features/internal/config"
	"github.com/couchcryptid/rain-features/internal/domain"
	"github.com/couchcryptid/rain-features/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := sharedobs.NewLogger(cfg.LogLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, observability.NewMetrics(), os.Args[1:], logger); err != nil {
		logger.Error("coords failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("coords", flag.ContinueOnError)
	inPath := fs.String("in", "", "observations CSV with a Location column")
	outPath := fs.String("out", "coordinates.csv", "coordinate table to write; existing entries are kept")
	minConfidence := fs.Float64("min-confidence", 0.5, "lowest Mapbox relevance accepted")
	rps := fs.Float64("rps", 5, "Mapbox requests per second")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		fs.Usage()
		return errors.New("missing required flag: -in")
	}
	if cfg.MapboxToken == "" {
		return errors.New("MAPBOX_TOKEN is required")
	}

	locations, err := distinctLocations(*inPath)
	if err != nil {
		return err
	}
	known, err := existingCoordinates(*outPath)
	if err != nil {
		return err
	}
	pending := slices.DeleteFunc(slices.Clone(locations), func(loc string) bool {
		return slices.ContainsFunc(known, func(c domain.LocationCoordinate) bool { return c.Location == loc })
	})
	logger.Info("locations found", "distinct", len(locations), "known", len(known), "pending", len(pending))

	client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, *rps, metrics, logger, mapbox.WithBaseURL(cfg.MapboxBaseURL))
	geocoder := mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)

	resolved, unresolved, err := domain.GeocodeLocations(ctx, geocoder, pending, cfg.MapboxCountry, *minConfidence, logger)
	if err != nil {
		return err
	}
	if len(unresolved) > 0 {
		logger.Warn("locations left unresolved", "count", len(unresolved), "locations", unresolved)
	}

	out, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("create coordinates: %w", err)
	}
	if err := csvio.WriteCoordinates(out, append(known, resolved...)); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close coordinates: %w", err)
	}
	logger.Info("coordinates written", "path", *outPath, "resolved", len(resolved), "total", len(known)+len(resolved))
	return nil
}

// distinctLocations returns the non-empty locations of a CSV in first-seen order.
func distinctLocations(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open observations: %w", err)
	}
	defer f.Close()

	frame, err := csvio.ReadFrame(f)
	if err != nil {
		return nil, err
	}
	col, err := frame.CategoricalColumn("coords", domain.LocationColumn)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, loc := range col.Strings() {
		if loc == "" || seen[loc] {
			continue
		}
		seen[loc] = true
		out = append(out, loc)
	}
	return out, nil
}

// existingCoordinates reads a previously written table. A missing file is
// an empty table.
func existingCoordinates(path string) ([]domain.LocationCoordinate, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open coordinates: %w", err)
	}
	defer f.Close()

	entries, _, err := csvio.ReadCoordinates(f)
	return entries, err
}
