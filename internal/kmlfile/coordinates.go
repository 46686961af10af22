package kmlfile

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

// commaSpace matches a component separator with stray whitespace around it,
// as in "-47.5, -15.5".
var commaSpace = regexp.MustCompile(`\s*,\s*`)

// ParseCoordinates splits KML coordinate text ("lon,lat[,alt] lon,lat ...")
// into lat/lon pairs in input order. Tuples with fewer than two components or
// non-numeric values are skipped and counted.
func ParseCoordinates(text string) (coords []domain.Coordinate, skipped int) {
	for _, tuple := range strings.Fields(commaSpace.ReplaceAllString(text, ",")) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			skipped++
			continue
		}
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLon != nil || errLat != nil || !finite(lat) || !finite(lon) {
			skipped++
			continue
		}
		coords = append(coords, domain.Coordinate{Lat: lat, Lon: lon})
	}
	return coords, skipped
}

// ParsePoint returns the first valid coordinate of a point geometry.
func ParsePoint(text string) (domain.Coordinate, bool) {
	coords, _ := ParseCoordinates(text)
	if len(coords) == 0 {
		return domain.Coordinate{}, false
	}
	return coords[0], true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
