package study

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
	"github.com/couchcryptid/pivot-coverage-service/internal/store"
)

const (
	mainNetwork     = "Network"
	repeaterNetwork = "Modo Expert"

	publishTimeout = 10 * time.Second
)

// SimulationRequest asks for one coverage simulation within a study. When
// Pivots is empty the pivots extracted from the study KMZ are classified.
type SimulationRequest struct {
	StudyID        string         `json:"study_id"`
	Name           string         `json:"name,omitempty"`
	Lat            float64        `json:"lat"`
	Lon            float64        `json:"lon"`
	Height         int            `json:"height"`
	ReceiverHeight int            `json:"receiver_height"`
	Template       string         `json:"template"`
	Pivots         []domain.Pivot `json:"pivots"`
}

// SimulationResult is returned to the caller of a simulation.
type SimulationResult struct {
	ImageURL string         `json:"image_url"`
	Overlay  domain.Overlay `json:"overlay"`
	Bounds   domain.Bounds  `json:"bounds"`
	Pivots   []domain.Pivot `json:"pivots"`
	Covered  int            `json:"covered"`
	Outside  int            `json:"outside"`
}

// SimulateMain replaces the study's main coverage raster and classifies the
// pivots against it.
func (s *Service) SimulateMain(ctx context.Context, req SimulationRequest) (SimulationResult, error) {
	return s.simulate(ctx, domain.RoleMain, mainNetwork, req)
}

// SimulateRepeater replaces the study's repeater raster and classifies the
// pivots against that raster alone. Use Reevaluate for the combined picture.
func (s *Service) SimulateRepeater(ctx context.Context, req SimulationRequest) (SimulationResult, error) {
	return s.simulate(ctx, domain.RoleRepeater, repeaterNetwork, req)
}

func (s *Service) simulate(ctx context.Context, role domain.Role, network string, req SimulationRequest) (res SimulationResult, err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		s.metrics.Simulations.WithLabelValues(string(role), outcome).Inc()
		s.metrics.SimulationDuration.WithLabelValues(string(role)).Observe(time.Since(start).Seconds())
	}()

	tpl, err := s.templates.Lookup(req.Template)
	if err != nil {
		return SimulationResult{}, err
	}
	pivots, err := s.requestPivots(ctx, req.StudyID, req.Pivots)
	if err != nil {
		return SimulationResult{}, err
	}

	tx := domain.Transmitter{Lat: req.Lat, Lon: req.Lon, Height: req.Height}
	if tx.Height <= 0 {
		tx.Height = domain.DefaultAntennaHeight
	}
	rxHeight := req.ReceiverHeight
	if rxHeight <= 0 {
		rxHeight = domain.DefaultReceiverHeight
	}

	// Delete-then-write; a failed simulation leaves the role empty.
	if err := s.store.ReplaceRole(req.StudyID, role); err != nil {
		return SimulationResult{}, err
	}

	sim, err := s.propagator.Simulate(ctx, domain.SimulationRequest{
		Transmitter:    tx,
		ReceiverHeight: rxHeight,
		Template:       tpl,
		Network:        network,
	})
	if err != nil {
		return SimulationResult{}, fmt.Errorf("simulate %s coverage: %w", role, err)
	}
	png, err := s.propagator.DownloadRaster(ctx, sim.ImageURL)
	if err != nil {
		return SimulationResult{}, fmt.Errorf("download %s raster: %w", role, err)
	}

	bounds := sim.Bounds
	if bounds.Inverted() {
		s.logger.Debug("normalizing inverted simulation bounds", "study", req.StudyID, "role", role, "bounds", bounds.Slice())
		bounds = bounds.Normalized()
	}
	ov, err := s.store.SaveOverlay(req.StudyID, store.Sidecar{
		Bounds:      bounds,
		Role:        role,
		Template:    tpl.ID,
		Transmitter: tx,
	}, png)
	if err != nil {
		return SimulationResult{}, fmt.Errorf("save %s overlay: %w", role, err)
	}

	classified := s.classifier.ClassifyFile(ov.Bounds, pivots, ov.RasterPath)
	covered, outside := s.recordClassification(ctx, req.StudyID, role, tpl.ID, classified)

	s.logger.Info("simulation completed",
		"study", req.StudyID,
		"role", role,
		"template", tpl.ID,
		"overlay", ov.Name,
		"covered", covered,
		"outside", outside,
		"elapsed", time.Since(start),
	)
	return SimulationResult{
		ImageURL: s.ImageURL(req.StudyID, ov.Name),
		Overlay:  ov,
		Bounds:   ov.Bounds,
		Pivots:   classified,
		Covered:  covered,
		Outside:  outside,
	}, nil
}

// ReevaluateRequest reconciles coverage across overlays. Overlays holds raster
// names or image URLs; when empty every overlay of the study is used, main
// first.
type ReevaluateRequest struct {
	StudyID  string         `json:"study_id"`
	Pivots   []domain.Pivot `json:"pivots"`
	Overlays []string       `json:"overlays"`
}

// ReevaluateResult is the aggregated coverage of a study.
type ReevaluateResult struct {
	Pivots   []domain.Pivot `json:"pivots"`
	Overlays []string       `json:"overlays"`
	Covered  int            `json:"covered"`
	Outside  int            `json:"outside"`
}

// Reevaluate marks each pivot covered when any selected overlay covers it.
// Overlays that cannot be found contribute nothing.
func (s *Service) Reevaluate(ctx context.Context, req ReevaluateRequest) (ReevaluateResult, error) {
	pivots, err := s.requestPivots(ctx, req.StudyID, req.Pivots)
	if err != nil {
		return ReevaluateResult{}, err
	}
	overlays, err := s.selectOverlays(req.StudyID, req.Overlays)
	if err != nil {
		return ReevaluateResult{}, err
	}

	aggregated := s.classifier.Aggregate(pivots, overlays)
	covered, outside := s.recordClassification(ctx, req.StudyID, domain.RoleAggregate, "", aggregated)

	names := make([]string, len(overlays))
	for i, ov := range overlays {
		names[i] = ov.Name
	}
	s.logger.Info("coverage reevaluated",
		"study", req.StudyID,
		"overlays", len(overlays),
		"covered", covered,
		"outside", outside,
	)
	return ReevaluateResult{Pivots: aggregated, Overlays: names, Covered: covered, Outside: outside}, nil
}

func (s *Service) selectOverlays(studyID string, refs []string) ([]domain.Overlay, error) {
	if len(refs) == 0 {
		all, err := s.store.Overlays(studyID)
		if err != nil {
			return nil, err
		}
		out := make([]domain.Overlay, 0, len(all))
		for _, role := range []domain.Role{domain.RoleMain, domain.RoleRepeater} {
			for _, ov := range all {
				if ov.Role == role {
					out = append(out, ov)
				}
			}
		}
		return out, nil
	}

	if _, err := s.store.Manifest(studyID); err != nil {
		return nil, err
	}
	out := make([]domain.Overlay, 0, len(refs))
	for _, ref := range refs {
		ov, err := s.store.Overlay(studyID, path.Base(ref))
		if err != nil {
			s.logger.Warn("overlay not available for reevaluation", "study", studyID, "overlay", ref, "error", err)
			continue
		}
		out = append(out, ov)
	}
	return out, nil
}

// requestPivots returns the caller's pivots or, when none were sent, the
// pivots of the study KMZ.
func (s *Service) requestPivots(ctx context.Context, studyID string, pivots []domain.Pivot) ([]domain.Pivot, error) {
	if len(pivots) > 0 {
		return pivots, nil
	}
	ents, err := s.Entities(ctx, studyID)
	if err != nil {
		return nil, err
	}
	return ents.Pivots, nil
}

func (s *Service) recordClassification(ctx context.Context, studyID string, role domain.Role, templateID string, pivots []domain.Pivot) (covered, outside int) {
	report := domain.NewCoverageReport(studyID, role, templateID, pivots)
	s.metrics.PivotsClassified.WithLabelValues("covered").Add(float64(report.Covered))
	s.metrics.PivotsClassified.WithLabelValues("outside").Add(float64(report.Outside))

	if err := s.store.SavePivots(studyID, pivots); err != nil {
		s.logger.Warn("persist pivot status failed", "study", studyID, "error", err)
	}
	s.publish(ctx, report)
	return report.Covered, report.Outside
}

// publish never fails the caller; the report outlives a cancelled request.
func (s *Service) publish(ctx context.Context, report domain.CoverageReport) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, report); err != nil {
		s.metrics.ReportsPublished.WithLabelValues("error").Inc()
		s.logger.Warn("publish coverage report failed", "study", report.StudyID, "role", report.Role, "error", err)
		return
	}
	s.metrics.ReportsPublished.WithLabelValues("success").Inc()
}
