package study

import (
	"context"
	"fmt"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

// ProfileRequest asks for the terrain profile between the first two points.
// Heights are metres above ground; zero selects the defaults.
type ProfileRequest struct {
	Points         []domain.Coordinate `json:"points"`
	AntennaHeight  float64             `json:"antenna_height"`
	ReceiverHeight float64             `json:"receiver_height"`
}

// ElevationProfile samples the terrain between two sites and reports the
// worst obstruction of their line of sight, if any.
func (s *Service) ElevationProfile(ctx context.Context, req ProfileRequest) (domain.Profile, error) {
	if len(req.Points) < 2 {
		return domain.Profile{}, fmt.Errorf("%w: got %d", domain.ErrInsufficientPoints, len(req.Points))
	}
	hA := req.AntennaHeight
	if hA <= 0 {
		hA = domain.DefaultAntennaHeight
	}
	hB := req.ReceiverHeight
	if hB <= 0 {
		hB = domain.DefaultReceiverHeight
	}

	p, err := s.analyzer.Analyze(ctx, req.Points[0], req.Points[1], hA, hB, s.opts.ProfileSteps)
	if err != nil {
		return domain.Profile{}, err
	}
	if p.Obstruction != nil {
		s.logger.Info("line of sight obstructed",
			"index", p.Obstruction.Index,
			"lat", p.Obstruction.Lat,
			"lon", p.Obstruction.Lon,
			"elevation", p.Obstruction.Elevation,
		)
	}
	return p, nil
}
