package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/rain-features/internal/adapter/http"
	"github.com/couchcryptid/rain-features/internal/domain"
	"github.com/couchcryptid/rain-features/internal/features"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type fakePipeline struct {
	fitted    bool
	schemaErr error
}

var _ httpadapter.FittedPipeline = (*features.Pipeline)(nil)

func (f *fakePipeline) Fitted() bool { return f.fitted }

func (f *fakePipeline) ID() string { return "artifact-1" }

func (f *fakePipeline) Schema() (domain.Schema, error) {
	if f.schemaErr != nil {
		return domain.Schema{}, f.schemaErr
	}
	return domain.Schema{Numeric: []string{"Rainfall"}, Categorical: []string{"Date", "Location"}}, nil
}

func (f *fakePipeline) Bounds() (map[string]features.Bounds, error) {
	return map[string]features.Bounds{"Rainfall": {Lower: -1.2, Upper: 2}}, nil
}

func (f *fakePipeline) Settings() features.Settings { return features.DefaultSettings() }

func newTestServer(readyErr error, fitted bool) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, &fakePipeline{fitted: fitted}, slog.Default())
}

func serve(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(nil, true), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := serve(newTestServer(nil, true), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := serve(newTestServer(fmt.Errorf("not ready yet"), true), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(nil, true), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestArtifactEndpoint(t *testing.T) {
	rec := serve(newTestServer(nil, true), "/artifact")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ID       string                     `json:"id"`
		Schema   domain.Schema              `json:"schema"`
		Bounds   map[string]features.Bounds `json:"bounds"`
		Settings features.Settings          `json:"settings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "artifact-1", body.ID)
	assert.Equal(t, []string{"Rainfall"}, body.Schema.Numeric)
	assert.Equal(t, features.Bounds{Lower: -1.2, Upper: 2}, body.Bounds["Rainfall"])
	assert.Equal(t, features.DefaultSettings().Assigner.Clusters, body.Settings.Assigner.Clusters)
}

func TestArtifactEndpointUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		pipeline *fakePipeline
		want     string
	}{
		{name: "not fitted", pipeline: &fakePipeline{}, want: "pipeline: GET /artifact called before fit"},
		{name: "schema error", pipeline: &fakePipeline{fitted: true, schemaErr: errors.New("schema unavailable")}, want: "schema unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httpadapter.NewServer(":0", &mockReadiness{}, tt.pipeline, slog.Default())
			rec := serve(srv, "/artifact")

			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}
