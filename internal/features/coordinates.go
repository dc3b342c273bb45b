package features

import (
	"slices"

	"github.com/couchcryptid/rain-features/internal/domain"
)

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64
	Lon float64
}

// CoordinateTable maps location identifiers to coordinates. The first pair
// added for a location is authoritative; later pairs that disagree are
// counted as conflicts and otherwise ignored.
type CoordinateTable struct {
	coords    map[string]Coordinate
	order     []string
	conflicts []string
}

func NewCoordinateTable() *CoordinateTable {
	return &CoordinateTable{coords: make(map[string]Coordinate)}
}

// CoordinateTableFrom builds a table from location/coordinate pairs in order.
func CoordinateTableFrom(entries []domain.LocationCoordinate) *CoordinateTable {
	t := NewCoordinateTable()
	for _, e := range entries {
		t.Add(e.Location, Coordinate{Lat: e.Latitude, Lon: e.Longitude})
	}
	return t
}

// Add records c for location unless the location is already present. It
// reports whether c was stored.
func (t *CoordinateTable) Add(location string, c Coordinate) bool {
	if prev, ok := t.coords[location]; ok {
		if prev != c {
			t.conflicts = append(t.conflicts, location)
		}
		return false
	}
	t.coords[location] = c
	t.order = append(t.order, location)
	return true
}

func (t *CoordinateTable) Lookup(location string) (Coordinate, bool) {
	c, ok := t.coords[location]
	return c, ok
}

func (t *CoordinateTable) Len() int { return len(t.order) }

// Conflicts lists locations that were added again with different coordinates.
func (t *CoordinateTable) Conflicts() []string { return append([]string(nil), t.conflicts...) }

// Entries returns the table in insertion order.
func (t *CoordinateTable) Entries() []domain.LocationCoordinate {
	out := make([]domain.LocationCoordinate, len(t.order))
	for i, loc := range t.order {
		c := t.coords[loc]
		out[i] = domain.LocationCoordinate{Location: loc, Latitude: c.Lat, Longitude: c.Lon}
	}
	return out
}

func (t *CoordinateTable) clone() *CoordinateTable {
	c := CoordinateTableFrom(t.Entries())
	c.conflicts = slices.Clone(t.conflicts)
	return c
}
