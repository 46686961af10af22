package domain

// Defaults applied when a KMZ or request leaves heights unspecified.
const (
	DefaultAntennaHeight  = 15
	DefaultReceiverHeight = 3
)

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Antenna is the study's transmitter tower.
type Antenna struct {
	Name           string  `json:"name"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Height         int     `json:"height"`
	ReceiverHeight int     `json:"receiver_height"`
}

// Pivot is a center-pivot irrigation unit. Outside is nil until the pivot has
// been classified against at least one coverage raster.
type Pivot struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Outside *bool   `json:"outside,omitempty"`
	Virtual bool    `json:"virtual,omitempty"`
}

// Coordinate returns the pivot position.
func (p Pivot) Coordinate() Coordinate {
	return Coordinate{Lat: p.Lat, Lon: p.Lon}
}

// WithOutside returns a copy of p with its coverage flag set.
func (p Pivot) WithOutside(outside bool) Pivot {
	p.Outside = &outside
	return p
}

// IsCovered reports whether the pivot was classified and found inside coverage.
func (p Pivot) IsCovered() bool {
	return p.Outside != nil && !*p.Outside
}

// PumpHouse is informational only and never classified.
type PumpHouse struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// CoverageCircle is the drawn boundary of a pivot's irrigated area.
type CoverageCircle struct {
	Name        string       `json:"name"`
	Coordinates []Coordinate `json:"coordinates"`
}

// Entities is the result of one extraction pass over a KML document.
type Entities struct {
	Antenna         *Antenna         `json:"antenna"`
	Pivots          []Pivot          `json:"pivots"`
	Circles         []CoverageCircle `json:"circles"`
	Pumps           []PumpHouse      `json:"pumps"`
	IgnoredAntennas []Antenna        `json:"ignored_antennas,omitempty"`
}

// CountCoverage returns how many pivots are covered and how many are outside.
// Unclassified pivots count as neither.
func CountCoverage(pivots []Pivot) (covered, outside int) {
	for _, p := range pivots {
		switch {
		case p.Outside == nil:
		case *p.Outside:
			outside++
		default:
			covered++
		}
	}
	return covered, outside
}
