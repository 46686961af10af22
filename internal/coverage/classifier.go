// Package coverage decides whether pivots fall inside the signal footprint of
// one or more coverage rasters draped over geographic bounds.
package coverage

import (
	"log/slog"
	"math"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

// DefaultAlphaThreshold rejects anti-aliasing noise at the footprint edge.
const DefaultAlphaThreshold = 10

// Classifier samples raster alpha at pivot positions.
type Classifier struct {
	threshold uint8
	logger    *slog.Logger
}

// NewClassifier creates a Classifier. A pixel is covered when its alpha is
// strictly greater than threshold.
func NewClassifier(threshold uint8, logger *slog.Logger) *Classifier {
	return &Classifier{threshold: threshold, logger: logger}
}

// Classify returns a copy of pivots with Outside set from a single raster.
func (c *Classifier) Classify(bounds domain.Bounds, pivots []domain.Pivot, raster Raster) []domain.Pivot {
	if bounds.Inverted() {
		c.logger.Debug("normalizing inverted raster bounds", "bounds", bounds.Slice())
	}
	b := bounds.Normalized()

	out := make([]domain.Pivot, len(pivots))
	if !mappable(b) {
		c.logger.Warn("raster bounds have no extent, marking all pivots outside", "bounds", b.Slice())
		for i, p := range pivots {
			out[i] = p.WithOutside(true)
		}
		return out
	}

	w, h := raster.Width(), raster.Height()
	for i, p := range pivots {
		x, y, ok := PixelFor(b, p.Lat, p.Lon, w, h)
		covered := ok && raster.Alpha(x, y) > c.threshold
		out[i] = p.WithOutside(!covered)
	}
	return out
}

// ClassifyFile loads the PNG at path and classifies against it. A raster that
// cannot be opened marks every pivot outside; it is logged, not returned.
func (c *Classifier) ClassifyFile(bounds domain.Bounds, pivots []domain.Pivot, path string) []domain.Pivot {
	raster, err := LoadPNG(path)
	if err != nil {
		c.logger.Warn("coverage raster unavailable, marking all pivots outside", "path", path, "error", err)
		out := make([]domain.Pivot, len(pivots))
		for i, p := range pivots {
			out[i] = p.WithOutside(true)
		}
		return out
	}
	return c.Classify(bounds, pivots, raster)
}

// Aggregate unions coverage across overlays in the order given. A pivot
// covered by any overlay stays covered; overlays whose raster is missing
// contribute nothing.
func (c *Classifier) Aggregate(pivots []domain.Pivot, overlays []domain.Overlay) []domain.Pivot {
	covered := make([]bool, len(pivots))
	remaining := len(pivots)

	for _, ov := range overlays {
		if remaining == 0 {
			break
		}
		raster, err := LoadPNG(ov.RasterPath)
		if err != nil {
			c.logger.Warn("skipping overlay with unreadable raster", "overlay", ov.Name, "path", ov.RasterPath, "error", err)
			continue
		}

		idx := make([]int, 0, remaining)
		pending := make([]domain.Pivot, 0, remaining)
		for i, p := range pivots {
			if !covered[i] {
				idx = append(idx, i)
				pending = append(pending, p)
			}
		}

		for j, p := range c.Classify(ov.Bounds, pending, raster) {
			if p.IsCovered() {
				covered[idx[j]] = true
				remaining--
			}
		}
	}

	out := make([]domain.Pivot, len(pivots))
	for i, p := range pivots {
		out[i] = p.WithOutside(!covered[i])
	}
	return out
}

// PixelFor maps a coordinate to a raster pixel. Points on the east or south
// edge land in the last column or row. ok is false for points off the raster
// or when bounds have no extent.
func PixelFor(bounds domain.Bounds, lat, lon float64, width, height int) (x, y int, ok bool) {
	b := bounds.Normalized()
	if !mappable(b) || width <= 0 || height <= 0 || math.IsNaN(lat) || math.IsNaN(lon) {
		return 0, 0, false
	}
	dLon := b.East - b.West
	dLat := b.North - b.South

	x = int(math.Floor((lon - b.West) / dLon * float64(width)))
	y = int(math.Floor((b.North - lat) / dLat * float64(height)))

	if x == width && lon <= b.East {
		x = width - 1
	}
	if y == height && lat >= b.South {
		y = height - 1
	}
	if x < 0 || x >= width || y < 0 || y >= height {
		return x, y, false
	}
	return x, y, true
}

func mappable(b domain.Bounds) bool {
	return b.East-b.West > 0 && b.North-b.South > 0
}
