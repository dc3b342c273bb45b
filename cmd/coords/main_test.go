package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/rain-features/internal/adapter/csvio"
	"github.com/couchcryptid/rain-features/internal/config"
	"github.com/couchcryptid/rain-features/internal/domain"
	"github.com/couchcryptid/rain-features/internal/observability"
)

const observationsCSV = `Date,Location,Rainfall
2020-01-01,Albury,0
2020-01-01,Darwin,1
2020-01-02,Albury,2
2020-01-02,MountGambier,3
2020-01-02,,4
2020-01-03,Nowhere,5
`

// places answers forward geocoding requests the way the Mapbox API does.
var places = map[string]string{
	"Albury":        `{"features":[{"center":[146.92,-36.08],"place_name":"Albury, New South Wales, Australia","text":"Albury","relevance":0.9}]}`,
	"Mount Gambier": `{"features":[{"center":[140.78,-37.83],"place_name":"Mount Gambier, South Australia, Australia","text":"Mount Gambier","relevance":0.95}]}`,
}

type geocodingServer struct {
	mu      sync.Mutex
	queries []string
	regions []string
}

func (g *geocodingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".json")
	g.mu.Lock()
	g.queries = append(g.queries, name)
	g.regions = append(g.regions, r.URL.Query().Get("country"))
	g.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	body, ok := places[name]
	if !ok {
		body = `{"features":[]}`
	}
	_, _ = io.WriteString(w, body)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		MapboxToken:     "test-token",
		MapboxTimeout:   5 * time.Second,
		MapboxCacheSize: 10,
		MapboxCountry:   "au",
		MapboxBaseURL:   baseURL,
	}
}

func readTable(t *testing.T, path string) []domain.LocationCoordinate {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	entries, skipped, err := csvio.ReadCoordinates(f)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	return entries
}

func TestRun_GeocodesPendingLocations(t *testing.T) {
	api := &geocodingServer{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	dir := t.TempDir()
	in := writeFile(t, dir, "weather.csv", observationsCSV)
	out := writeFile(t, dir, "coordinates.csv", "Location,Latitude,Longitude\nDarwin,-12.46,130.84\n")
	metrics := observability.NewMetricsForTesting()

	err := run(context.Background(), testConfig(srv.URL), metrics, []string{"-in", in, "-out", out, "-rps", "0"}, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, []domain.LocationCoordinate{
		{Location: "Darwin", Latitude: -12.46, Longitude: 130.84},
		{Location: "Albury", Latitude: -36.08, Longitude: 146.92},
		{Location: "MountGambier", Latitude: -37.83, Longitude: 140.78},
	}, readTable(t, out))

	assert.Equal(t, []string{"Albury", "Mount Gambier", "Nowhere"}, api.queries, "known locations are not queried again")
	assert.Equal(t, []string{"au", "au", "au"}, api.regions)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("forward", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("forward", "empty")), 0)
}

func TestRun_MinConfidence(t *testing.T) {
	api := &geocodingServer{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	dir := t.TempDir()
	in := writeFile(t, dir, "weather.csv", observationsCSV)
	out := filepath.Join(dir, "coordinates.csv")

	err := run(context.Background(), testConfig(srv.URL), observability.NewMetricsForTesting(),
		[]string{"-in", in, "-out", out, "-rps", "0", "-min-confidence", "0.92"}, discardLogger())
	require.NoError(t, err)

	got := readTable(t, out)
	require.Len(t, got, 1)
	assert.Equal(t, "MountGambier", got[0].Location)
	assert.Contains(t, api.queries, "Albury", "low confidence matches are queried but not kept")
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "weather.csv", observationsCSV)
	noLocation := writeFile(t, dir, "nolocation.csv", "Date,Rainfall\n2020-01-01,0\n")

	tests := []struct {
		name string
		cfg  *config.Config
		args []string
		want string
	}{
		{name: "missing input flag", cfg: testConfig(""), args: nil, want: "missing required flag: -in"},
		{name: "missing token", cfg: &config.Config{}, args: []string{"-in", in}, want: "MAPBOX_TOKEN is required"},
		{name: "missing input file", cfg: testConfig(""), args: []string{"-in", filepath.Join(dir, "none.csv")}, want: "open observations"},
		{name: "no location column", cfg: testConfig(""), args: []string{"-in", noLocation}, want: `column "Location" not found`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.cfg, observability.NewMetricsForTesting(), tt.args, discardLogger())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDistinctLocations(t *testing.T) {
	path := writeFile(t, t.TempDir(), "weather.csv", observationsCSV)

	got, err := distinctLocations(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Albury", "Darwin", "MountGambier", "Nowhere"}, got)
}

func TestExistingCoordinates(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		want    []domain.LocationCoordinate
		wantErr string
	}{
		{name: "missing file is empty", path: filepath.Join(dir, "none.csv")},
		{
			name: "existing table",
			path: writeFile(t, dir, "coords.csv", "Location,Latitude,Longitude\nAlbury,-36.08,146.92\n"),
			want: []domain.LocationCoordinate{{Location: "Albury", Latitude: -36.08, Longitude: 146.92}},
		},
		{
			name:    "out of range",
			path:    writeFile(t, dir, "bad.csv", "Location,Latitude,Longitude\nAlbury,-136.08,146.92\n"),
			wantErr: "out of range",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := existingCoordinates(tt.path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
