// Package profile samples the terrain between two sites and reports where it
// rises above the straight line of sight joining their antennas.
package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

// DefaultSteps is the number of segments a profile is divided into.
const DefaultSteps = 50

// Analyzer builds elevation profiles using an elevation provider.
type Analyzer struct {
	elevations domain.ElevationProvider
	logger     *slog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(elevations domain.ElevationProvider, logger *slog.Logger) *Analyzer {
	return &Analyzer{elevations: elevations, logger: logger}
}

// Analyze samples steps+1 points from a to b, fetches their elevations and
// looks for the interior sample that intrudes furthest into the line of sight
// between an antenna heightA above a and one heightB above b.
func (a *Analyzer) Analyze(ctx context.Context, from, to domain.Coordinate, heightA, heightB float64, steps int) (domain.Profile, error) {
	if steps < 1 {
		return domain.Profile{}, fmt.Errorf("%w: steps must be at least 1, got %d", domain.ErrInvalidProfile, steps)
	}
	samples := Interpolate(from, to, steps)

	raw, err := a.elevations.Elevations(ctx, samples)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("fetch elevations: %w", err)
	}
	if len(raw) != len(samples) {
		return domain.Profile{}, fmt.Errorf("%w: requested %d, got %d", domain.ErrElevationCount, len(samples), len(raw))
	}

	elev := Impute(raw, func(i int, v float64) {
		a.logger.Debug("imputed missing elevation", "index", i, "value", v)
	})
	los := LineOfSight(elev, heightA, heightB)

	p := domain.Profile{Samples: samples, Elevations: elev, LineOfSight: los}
	if i, ok := FindObstruction(elev, los); ok {
		p.Obstruction = &domain.Obstruction{
			Index:     i,
			Lat:       samples[i].Lat,
			Lon:       samples[i].Lon,
			Elevation: elev[i],
		}
	}
	return p, nil
}

// Interpolate returns steps+1 evenly spaced points from a to b, endpoints
// included.
func Interpolate(a, b domain.Coordinate, steps int) []domain.Coordinate {
	if steps < 1 {
		return []domain.Coordinate{a}
	}
	out := make([]domain.Coordinate, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		out[i] = domain.Coordinate{
			Lat: a.Lat + (b.Lat-a.Lat)*t,
			Lon: a.Lon + (b.Lon-a.Lon)*t,
		}
	}
	out[steps] = b
	return out
}

// Impute replaces missing samples with the previous resolved value, else the
// next sample when present, else zero. onImpute, if set, is told about each
// substitution.
func Impute(raw []*float64, onImpute func(index int, value float64)) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		if v != nil {
			out[i] = *v
			continue
		}
		var sub float64
		switch {
		case i > 0:
			sub = out[i-1]
		case i+1 < len(raw) && raw[i+1] != nil:
			sub = *raw[i+1]
		}
		out[i] = sub
		if onImpute != nil {
			onImpute(i, sub)
		}
	}
	return out
}

// LineOfSight interpolates linearly between the antenna tops at both ends.
func LineOfSight(elev []float64, heightA, heightB float64) []float64 {
	n := len(elev)
	if n == 0 {
		return nil
	}
	start := elev[0] + heightA
	end := elev[n-1] + heightB
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	for i := range out {
		out[i] = start + (end-start)*float64(i)/float64(n-1)
	}
	return out
}

// FindObstruction returns the interior index where terrain rises furthest
// above the line of sight. The first maximum wins.
func FindObstruction(elev, los []float64) (int, bool) {
	best, bestDiff := -1, 0.0
	for i := 1; i < len(elev)-1 && i < len(los); i++ {
		if d := elev[i] - los[i]; d > bestDiff {
			best, bestDiff = i, d
		}
	}
	return best, best >= 0
}
