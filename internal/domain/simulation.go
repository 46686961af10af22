package domain

import (
	"context"
	"time"
)

// Role distinguishes the main antenna simulation from repeater simulations.
type Role string

const (
	RoleMain     Role = "main"
	RoleRepeater Role = "repeater"

	// RoleAggregate labels reports produced by reconciling several overlays.
	// It never names a simulation.
	RoleAggregate Role = "aggregate"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleMain || r == RoleRepeater
}

// Transmitter is the site a simulation was run for.
type Transmitter struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Height int     `json:"height"`
}

// Overlay is one simulated coverage raster with its draping bounds.
type Overlay struct {
	Name        string      `json:"name"`
	Role        Role        `json:"role"`
	TemplateID  string      `json:"template"`
	Bounds      Bounds      `json:"bounds"`
	Transmitter Transmitter `json:"transmitter"`
	RasterPath  string      `json:"-"`
}

// Template is an RF equipment profile used to build propagation requests.
type Template struct {
	ID           string
	Name         string
	Frequency    float64 // MHz
	ColourKey    string  // provider colour schema
	Site         string
	PowerW       float64
	BandwidthMHz float64
	RxHeight     float64
	RxGain       float64
	RxSens       float64 // dBm
	TxGain       float64
	FrontBack    float64
}

// SimulationRequest is what the core hands to the RF collaborator.
type SimulationRequest struct {
	Transmitter    Transmitter
	ReceiverHeight int
	Template       Template
	Network        string
}

// SimulationResult is the RF collaborator's answer. Bounds are as returned and
// may be inverted.
type SimulationResult struct {
	ImageURL string
	Bounds   Bounds
}

// Propagator runs RF coverage simulations and fetches their rasters.
type Propagator interface {
	Simulate(ctx context.Context, req SimulationRequest) (SimulationResult, error)
	DownloadRaster(ctx context.Context, url string) ([]byte, error)
}

// ElevationProvider returns one terrain elevation per point, in order.
// A nil entry means the provider had no data for that point.
type ElevationProvider interface {
	Elevations(ctx context.Context, points []Coordinate) ([]*float64, error)
}

// Obstruction is the interior profile sample that rises furthest above the
// line of sight.
type Obstruction struct {
	Index     int     `json:"index"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Elevation float64 `json:"elevation"`
}

// Profile is a sampled terrain profile between two sites.
type Profile struct {
	Samples     []Coordinate `json:"samples"`
	Elevations  []float64    `json:"elevations"`
	LineOfSight []float64    `json:"line_of_sight"`
	Obstruction *Obstruction `json:"obstruction"`
}

// CoverageReport summarizes one classification pass for downstream consumers.
type CoverageReport struct {
	StudyID     string    `json:"study_id"`
	Role        Role      `json:"role"`
	TemplateID  string    `json:"template,omitempty"`
	Covered     int       `json:"covered"`
	Outside     int       `json:"outside"`
	Pivots      []Pivot   `json:"pivots"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NewCoverageReport counts the pivots and stamps the report with the domain clock.
func NewCoverageReport(studyID string, role Role, templateID string, pivots []Pivot) CoverageReport {
	covered, outside := CountCoverage(pivots)
	return CoverageReport{
		StudyID:     studyID,
		Role:        role,
		TemplateID:  templateID,
		Covered:     covered,
		Outside:     outside,
		Pivots:      pivots,
		GeneratedAt: Now(),
	}
}
