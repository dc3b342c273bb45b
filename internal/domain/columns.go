package domain

// Input columns every observation carries.
const (
	LocationColumn = "Location"
	DateColumn     = "Date"
)

// Columns appended by the geo-temporal stage.
const (
	MonthColumn     = "Month"
	YearColumn      = "Year"
	DateKeyColumn   = "SimplifiedDate"
	LatitudeColumn  = "Latitude"
	LongitudeColumn = "Longitude"
	ClusterColumn   = "RegionCluster"
)

// Suffixes of the columns appended by the outlier stage.
const (
	CapSuffix = "_cap"
	LogSuffix = "_log"
)

// DateKeyLayout formats the simplified date grouping key.
const DateKeyLayout = "2006-01-02"

// Schema lists the input columns a pipeline was fitted on, by kind.
type Schema struct {
	Numeric     []string `json:"numeric"`
	Categorical []string `json:"categorical"`
}

// SchemaOf captures the column names of a frame by kind.
func SchemaOf(f *Frame) Schema {
	return Schema{
		Numeric:     f.NamesOf(Numeric),
		Categorical: f.NamesOf(Categorical),
	}
}

// LocationCoordinate pairs a location identifier with its WGS-84 position.
type LocationCoordinate struct {
	Location  string  `json:"location"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
