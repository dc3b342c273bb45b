package features

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/rain-features/internal/domain"
	"github.com/couchcryptid/rain-features/internal/stats"
)

func fittedAssigner(t *testing.T) *Assigner {
	t.Helper()
	a, err := NewAssigner(testCoords(), testSettings().Assigner)
	require.NoError(t, err)
	require.NoError(t, a.Fit(trainingFrame(t)))
	return a
}

func TestAssigner_GroupsNearbyLocations(t *testing.T) {
	a := fittedAssigner(t)

	albury, ok := a.Cluster("Albury")
	require.True(t, ok)
	wodonga, _ := a.Cluster("Wodonga")
	darwin, _ := a.Cluster("Darwin")
	katherine, _ := a.Cluster("Katherine")

	assert.Equal(t, albury, wodonga)
	assert.Equal(t, darwin, katherine)
	assert.NotEqual(t, albury, darwin)
}

func TestAssigner_RefitIsDeterministic(t *testing.T) {
	first, err := fittedAssigner(t).Clusters()
	require.NoError(t, err)
	second, err := fittedAssigner(t).Clusters()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAssigner_Transform(t *testing.T) {
	a := fittedAssigner(t)
	in := frameOf(t,
		cat(domain.LocationColumn, "Darwin", "Perth", "Albury"),
		cat(domain.DateColumn, "2021-03-04", "2021-12-31T22:30:00Z", ""),
	)

	out, err := a.Transform(in)
	require.NoError(t, err)

	darwin, _ := a.Cluster("Darwin")
	assert.Equal(t, []float64{3, 12}, floats(t, out, domain.MonthColumn)[:2])
	assert.Equal(t, []float64{2021, 2021}, floats(t, out, domain.YearColumn)[:2])
	assert.Equal(t, []string{"2021-03-04", "2021-12-31", ""}, strs(t, out, domain.DateKeyColumn))

	cluster := floats(t, out, domain.ClusterColumn)
	assert.Equal(t, float64(darwin), cluster[0])
	assert.True(t, domain.IsMissing(cluster[1]), "unseen location has no cluster")

	lat := floats(t, out, domain.LatitudeColumn)
	assert.Equal(t, -12.46, lat[0])
	assert.True(t, domain.IsMissing(lat[1]))

	assert.True(t, domain.IsMissing(floats(t, out, domain.MonthColumn)[2]), "empty date has no month")
	assert.False(t, in.Has(domain.ClusterColumn), "input is not modified")
}

func TestAssigner_TransformErrors(t *testing.T) {
	a := fittedAssigner(t)

	_, err := a.Transform(frameOf(t, cat(domain.LocationColumn, "Albury")))
	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, domain.DateColumn, schemaErr.Column)

	_, err = a.Transform(frameOf(t,
		cat(domain.LocationColumn, "Albury", "Albury"),
		cat(domain.DateColumn, "2020-01-01", "15/01/2020"),
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}

func TestAssigner_FitErrors(t *testing.T) {
	tests := []struct {
		name   string
		coords *CoordinateTable
		k      int
		target error
	}{
		{name: "no coordinates", coords: NewCoordinateTable(), k: 2, target: ErrNoCoordinates},
		{name: "more clusters than locations", coords: testCoords(), k: 5, target: stats.ErrTooFewPoints},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings().Assigner
			s.Clusters = tt.k
			a, err := NewAssigner(tt.coords, s)
			require.NoError(t, err)

			err = a.Fit(trainingFrame(t))
			assert.True(t, errors.Is(err, tt.target), "got %v", err)

			_, err = a.Transform(trainingFrame(t))
			assert.True(t, errors.Is(err, domain.ErrNotFitted), "failed fit leaves the stage unfitted")
		})
	}
}

func TestAssigner_SkipsLocationsWithoutCoordinates(t *testing.T) {
	coords := testCoords()
	coords.Add("Albury", Coordinate{Lat: 0, Lon: 0})
	assert.Equal(t, []string{"Albury"}, coords.Conflicts())

	a, err := NewAssigner(coords, testSettings().Assigner)
	require.NoError(t, err)
	train := frameOf(t,
		cat(domain.LocationColumn, "Albury", "Uluru", "Darwin"),
		cat(domain.DateColumn, "2020-01-01", "2020-01-01", "2020-01-01"),
	)
	require.NoError(t, a.Fit(train))

	_, ok := a.Cluster("Uluru")
	assert.False(t, ok)
	clusters, err := a.Clusters()
	require.NoError(t, err)
	assert.Len(t, clusters, 2)
}

func TestAssigner_FitWarnsAboutCoordinateConflicts(t *testing.T) {
	const warning = "coordinate table lists locations more than once"
	tests := []struct {
		name     string
		conflict bool
		fit      func(t *testing.T, coords *CoordinateTable, logger *slog.Logger)
	}{
		{
			name:     "assigner",
			conflict: true,
			fit: func(t *testing.T, coords *CoordinateTable, logger *slog.Logger) {
				a, err := NewAssigner(coords, testSettings().Assigner, WithLogger(logger))
				require.NoError(t, err)
				require.NoError(t, a.Fit(trainingFrame(t)))
			},
		},
		{
			name:     "pipeline",
			conflict: true,
			fit: func(t *testing.T, coords *CoordinateTable, logger *slog.Logger) {
				p, err := New(coords, testSettings(), WithLogger(logger))
				require.NoError(t, err)
				require.NoError(t, p.Fit(trainingFrame(t)))
			},
		},
		{
			name: "clean table",
			fit: func(t *testing.T, coords *CoordinateTable, logger *slog.Logger) {
				a, err := NewAssigner(coords, testSettings().Assigner, WithLogger(logger))
				require.NoError(t, err)
				require.NoError(t, a.Fit(trainingFrame(t)))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coords := testCoords()
			if tt.conflict {
				coords.Add("Albury", Coordinate{Lat: 1, Lon: 1})
			}
			var buf bytes.Buffer
			tt.fit(t, coords, slog.New(slog.NewTextHandler(&buf, nil)))

			if tt.conflict {
				assert.Contains(t, buf.String(), warning)
				assert.Contains(t, buf.String(), "Albury")
			} else {
				assert.NotContains(t, buf.String(), warning)
			}
		})
	}
}

func TestNewAssigner_Validation(t *testing.T) {
	_, err := NewAssigner(nil, testSettings().Assigner)
	require.Error(t, err)

	s := testSettings().Assigner
	s.Clusters = 0
	_, err = NewAssigner(testCoords(), s)
	require.Error(t, err)
}
