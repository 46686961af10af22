package extract

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

// synthesizePivots appends one virtual pivot per circle that matches no
// existing pivot by normalized name or proximity. seen holds the normalized
// names already in use and is updated in place.
func (e *Extractor) synthesizePivots(pivots []domain.Pivot, circles []domain.CoverageCircle, seen map[string]struct{}) []domain.Pivot {
	counter := 1
	maxDist2 := e.opts.MatchDistance * e.opts.MatchDistance

	for _, c := range circles {
		if len(c.Coordinates) == 0 {
			continue
		}
		center := CircleCenter(c.Coordinates)

		name := circleLabel(c.Name)
		key := domain.NormalizeName(name)
		next := counter
		if len(key) < 2 {
			name, next = nextFallbackName(counter, seen)
			key = domain.NormalizeName(name)
		}

		if _, exists := seen[key]; exists {
			e.logger.Debug("circle matches existing pivot by name", "circle", c.Name, "pivot", name)
			continue
		}
		if p, ok := nearestWithin(pivots, center, maxDist2); ok {
			e.logger.Debug("circle matches existing pivot by proximity", "circle", c.Name, "pivot", p.Name)
			continue
		}

		seen[key] = struct{}{}
		counter = next
		pivots = append(pivots, domain.Pivot{
			Name:    name,
			Lat:     center.Lat,
			Lon:     center.Lon,
			Virtual: true,
		})
		e.logger.Debug("virtual pivot created",
			"name", name,
			"lat", fmt.Sprintf("%.6f", center.Lat),
			"lon", fmt.Sprintf("%.6f", center.Lon),
		)
	}
	return pivots
}

// CircleCenter returns the representative center of a drawn circle: the point
// itself, the midpoint of two points, or the area-weighted centroid of the
// ring. Degenerate rings fall back to the arithmetic mean.
func CircleCenter(coords []domain.Coordinate) domain.Coordinate {
	switch len(coords) {
	case 0:
		return domain.Coordinate{}
	case 1:
		return coords[0]
	case 2:
		return mean(coords)
	}

	ring := make(orb.Ring, 0, len(coords)+1)
	for _, c := range coords {
		ring = append(ring, orb.Point{c.Lon, c.Lat})
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}

	centroid, area := planar.CentroidArea(orb.Polygon{ring})
	if area == 0 || math.IsNaN(area) || math.IsNaN(centroid.X()) || math.IsNaN(centroid.Y()) {
		return mean(coords)
	}
	return domain.Coordinate{Lat: centroid.Y(), Lon: centroid.X()}
}

func mean(coords []domain.Coordinate) domain.Coordinate {
	var lat, lon float64
	for _, c := range coords {
		lat += c.Lat
		lon += c.Lon
	}
	n := float64(len(coords))
	return domain.Coordinate{Lat: lat / n, Lon: lon / n}
}

// circleLabel strips the circle marker phrase from a circle name and
// title-cases what is left: "Circle Measurement pivot a" becomes "Pivot A".
func circleLabel(name string) string {
	label := strings.ToLower(name)
	for _, m := range circleMarkers {
		label = strings.ReplaceAll(label, m, "")
	}
	label = strings.Trim(label, " \t-_:")
	return domain.TitleCase(strings.Join(strings.Fields(label), " "))
}

func nextFallbackName(counter int, seen map[string]struct{}) (string, int) {
	for {
		name := fmt.Sprintf("Pivot %02d", counter)
		counter++
		if _, used := seen[domain.NormalizeName(name)]; !used {
			return name, counter
		}
	}
}

func nearestWithin(pivots []domain.Pivot, c domain.Coordinate, maxDist2 float64) (domain.Pivot, bool) {
	for _, p := range pivots {
		dLat := p.Lat - c.Lat
		dLon := p.Lon - c.Lon
		if dLat*dLat+dLon*dLon < maxDist2 {
			return p, true
		}
	}
	return domain.Pivot{}, false
}
