// Package extract turns decoded KML placemarks into farm entities: the
// antenna, explicit pivots, pump houses and the drawn circles that imply a
// pivot when no explicit marker exists.
package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
	"github.com/couchcryptid/pivot-coverage-service/internal/kmlfile"
)

// DefaultMatchDistance is the degree-space radius within which a circle
// center is considered to be an existing pivot (roughly 22 m at the equator).
const DefaultMatchDistance = 0.0002

var (
	antennaKeywords = []string{
		"antena", "antenna", "torre", "tower", "barracão", "galpão", "shed",
		"silo", "caixa", "box", "repetidora", "repeater",
	}
	pivotKeywords   = []string{"pivô", "pivo", "pivot"}
	pumpKeywords    = []string{"casa de bomba", "irripump", "pump house", "pumphouse"}
	circleMarkers   = []string{"medida do círculo", "medida do circulo", "circle measurement"}
	pivotCodeRe     = regexp.MustCompile(`^p\s?\d+`)
	antennaHeightRe = regexp.MustCompile(`(\d{1,3})\s*(m|metros)`)
)

// Options tune extraction. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// MatchDistance is the proximity radius in decimal degrees.
	MatchDistance float64
	// StrictAntenna rejects documents with more than one antenna candidate.
	StrictAntenna bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{MatchDistance: DefaultMatchDistance}
}

// Extractor classifies placemarks. It holds no per-document state and is safe
// for concurrent use.
type Extractor struct {
	opts   Options
	logger *slog.Logger
}

// New creates an Extractor.
func New(opts Options, logger *slog.Logger) *Extractor {
	if opts.MatchDistance <= 0 {
		opts.MatchDistance = DefaultMatchDistance
	}
	return &Extractor{opts: opts, logger: logger}
}

// Extract classifies every placemark in doc and synthesizes virtual pivots for
// circles without a matching pivot. When no antenna is found the partial
// entities are returned together with domain.ErrAntennaNotFound.
func (e *Extractor) Extract(doc kmlfile.Document) (domain.Entities, error) {
	var ents domain.Entities
	seen := make(map[string]struct{})

	for _, pm := range doc.Placemarks {
		lower := strings.ToLower(pm.Name)

		if pm.Point != nil {
			e.classifyPoint(&ents, seen, pm, lower)
		}
		if pm.LineString != nil && containsAny(lower, circleMarkers) {
			e.addCircle(&ents, pm)
		}
	}

	explicit := len(ents.Pivots)
	ents.Pivots = e.synthesizePivots(ents.Pivots, ents.Circles, seen)
	if virtual := len(ents.Pivots) - explicit; virtual > 0 {
		e.logger.Info("virtual pivots synthesized", "count", virtual, "circles", len(ents.Circles))
	}

	if len(ents.IgnoredAntennas) > 0 {
		if e.opts.StrictAntenna {
			return ents, fmt.Errorf("%w: %d candidates", domain.ErrAmbiguousAntenna, len(ents.IgnoredAntennas)+1)
		}
		e.logger.Warn("multiple antenna candidates, keeping the first",
			"kept", ents.Antenna.Name,
			"ignored", len(ents.IgnoredAntennas),
		)
	}
	if ents.Antenna == nil {
		return ents, domain.ErrAntennaNotFound
	}
	return ents, nil
}

func (e *Extractor) classifyPoint(ents *domain.Entities, seen map[string]struct{}, pm kmlfile.Placemark, lower string) {
	pt, ok := kmlfile.ParsePoint(pm.Point.Coordinates)
	if !ok {
		e.logger.Debug("skipping placemark with malformed point", "name", pm.Name, "coordinates", pm.Point.Coordinates)
		return
	}

	switch {
	case containsAny(lower, antennaKeywords):
		a := domain.Antenna{
			Name:           pm.Name,
			Lat:            pt.Lat,
			Lon:            pt.Lon,
			Height:         antennaHeight(lower),
			ReceiverHeight: domain.DefaultReceiverHeight,
		}
		if ents.Antenna == nil {
			ents.Antenna = &a
			return
		}
		ents.IgnoredAntennas = append(ents.IgnoredAntennas, a)

	case containsAny(lower, pivotKeywords) || pivotCodeRe.MatchString(strings.TrimSpace(lower)):
		key := domain.NormalizeName(pm.Name)
		if _, dup := seen[key]; dup {
			e.logger.Debug("skipping duplicate pivot", "name", pm.Name)
			return
		}
		seen[key] = struct{}{}
		ents.Pivots = append(ents.Pivots, domain.Pivot{Name: pm.Name, Lat: pt.Lat, Lon: pt.Lon})

	case containsAny(lower, pumpKeywords):
		ents.Pumps = append(ents.Pumps, domain.PumpHouse{Name: pm.Name, Lat: pt.Lat, Lon: pt.Lon})
	}
}

func (e *Extractor) addCircle(ents *domain.Entities, pm kmlfile.Placemark) {
	coords, skipped := kmlfile.ParseCoordinates(pm.LineString.Coordinates)
	if skipped > 0 {
		e.logger.Debug("skipped malformed circle coordinates", "name", pm.Name, "skipped", skipped)
	}
	if len(coords) == 0 {
		return
	}
	ents.Circles = append(ents.Circles, domain.CoverageCircle{Name: pm.Name, Coordinates: coords})
}

func antennaHeight(lowerName string) int {
	m := antennaHeightRe.FindStringSubmatch(lowerName)
	if m == nil {
		return domain.DefaultAntennaHeight
	}
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return domain.DefaultAntennaHeight
	}
	return h
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
