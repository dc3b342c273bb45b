package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock geocoder ---

type mockGeocoder struct {
	results map[string]GeocodingResult
	errs    map[string]error
	queries []string
}

func (m *mockGeocoder) ForwardGeocode(_ context.Context, name, _ string) (GeocodingResult, error) {
	m.queries = append(m.queries, name)
	if err, ok := m.errs[name]; ok {
		return GeocodingResult{}, err
	}
	return m.results[name], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestGeocodeLocations(t *testing.T) {
	geo := &mockGeocoder{
		results: map[string]GeocodingResult{
			"Albury":        {Lat: -36.08, Lon: 146.92, Confidence: 0.95},
			"Mount Gambier": {Lat: -37.83, Lon: 140.78, Confidence: 0.9},
			"Nowhere":       {},
			"Vague":         {Lat: -30, Lon: 150, Confidence: 0.2},
		},
		errs: map[string]error{"Broken": errors.New("status 500")},
	}

	resolved, unresolved, err := GeocodeLocations(context.Background(), geo,
		[]string{"Albury", "MountGambier", "Nowhere", "Broken", "Vague"}, "Australia", 0.5, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, []LocationCoordinate{
		{Location: "Albury", Latitude: -36.08, Longitude: 146.92},
		{Location: "MountGambier", Latitude: -37.83, Longitude: 140.78},
	}, resolved)
	assert.Equal(t, []string{"Nowhere", "Broken", "Vague"}, unresolved)
	assert.Equal(t, []string{"Albury", "Mount Gambier", "Nowhere", "Broken", "Vague"}, geo.queries)
}

func TestGeocodeLocations_ContextCancelled(t *testing.T) {
	geo := &mockGeocoder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := GeocodeLocations(ctx, geo, []string{"Albury"}, "Australia", 0, discardLogger())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, geo.queries)
}

func TestPlaceQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Albury", "Albury"},
		{"MountGambier", "Mount Gambier"},
		{"NorfolkIsland", "Norfolk Island"},
		{"SydneyAirport", "Sydney Airport"},
		{"PearceRAAF", "Pearce RAAF"},
		{" Perth ", "Perth"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PlaceQuery(tt.in))
		})
	}
}
