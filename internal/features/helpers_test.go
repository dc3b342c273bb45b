package features

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/rain-features/internal/domain"
)

var nan = math.NaN()

func testCoords() *CoordinateTable {
	return CoordinateTableFrom([]domain.LocationCoordinate{
		{Location: "Albury", Latitude: -36.08, Longitude: 146.92},
		{Location: "Wodonga", Latitude: -36.12, Longitude: 146.89},
		{Location: "Darwin", Latitude: -12.46, Longitude: 130.84},
		{Location: "Katherine", Latitude: -14.47, Longitude: 132.26},
	})
}

func testSettings() Settings {
	s := DefaultSettings()
	s.Assigner.Clusters = 2
	s.Assigner.Restarts = 4
	s.Imputer.NumericExclude = []string{domain.LatitudeColumn, domain.LongitudeColumn}
	s.Capper.Cap = []string{"Temp9am", "WindGustSpeed"}
	s.Capper.Log = []string{"WindGustSpeed"}
	s.Capper.Bins = s.Capper.Bins[:1]
	return s
}

type column struct {
	name string
	nums []float64
	strs []string
}

func num(name string, vals ...float64) column { return column{name: name, nums: vals} }
func cat(name string, vals ...string) column   { return column{name: name, strs: vals} }

func frameOf(t *testing.T, cols ...column) *domain.Frame {
	t.Helper()
	require.NotEmpty(t, cols)
	n := len(cols[0].nums) + len(cols[0].strs)
	f := domain.NewFrame(n)
	for _, c := range cols {
		if c.strs != nil {
			require.NoError(t, f.SetCategorical(c.name, c.strs))
		} else {
			require.NoError(t, f.SetNumeric(c.name, c.nums))
		}
	}
	return f
}

// trainingFrame puts Albury and Wodonga in one region and Darwin and
// Katherine in the other. The southern group on 2020-01-15 has a Temp9am
// median of 18.5 and WindGustSpeed has quartiles 20 and 40.
func trainingFrame(t *testing.T) *domain.Frame {
	t.Helper()
	return frameOf(t,
		cat(domain.LocationColumn, "Albury", "Wodonga", "Albury", "Darwin", "Katherine"),
		cat(domain.DateColumn, "2020-01-15", "2020-01-15", "2020-01-16", "2020-01-15", "2020-01-16"),
		num("Temp9am", 18, 19, 25, 30, 31),
		num("WindGustSpeed", 10, 20, 30, 40, 50),
		num("Rainfall", 0, 5, 12, 40, 2),
	)
}

func floats(t *testing.T, f *domain.Frame, name string) []float64 {
	t.Helper()
	c, err := f.NumericColumn("test", name)
	require.NoError(t, err)
	return c.Floats()
}

func strs(t *testing.T, f *domain.Frame, name string) []string {
	t.Helper()
	c, err := f.CategoricalColumn("test", name)
	require.NoError(t, err)
	return c.Strings()
}

func records(f *domain.Frame) []map[string]any {
	out := make([]map[string]any, f.Len())
	for i := range out {
		out[i] = f.Record(i)
	}
	return out
}

type countingRecorder struct {
	mu       sync.Mutex
	imputed  map[string]int
	capped   map[string]int
	rejected map[string]int
	fits     int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		imputed:  make(map[string]int),
		capped:   make(map[string]int),
		rejected: make(map[string]int),
	}
}

func (r *countingRecorder) ObserveImputed(column, level string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imputed[column+"/"+level] += n
}

func (r *countingRecorder) ObserveCapped(column, side string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capped[column+"/"+side] += n
}

func (r *countingRecorder) ObserveDomainRejection(column string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[column]++
}

func (r *countingRecorder) ObserveStage(string, time.Duration) {}

func (r *countingRecorder) ObserveFit(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fits++
}
