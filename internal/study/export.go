package study

import (
	"context"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
	"github.com/couchcryptid/pivot-coverage-service/internal/export"
)

// Export renders the study as a KMZ and returns its download name and bytes.
func (s *Service) Export(ctx context.Context, studyID string) (string, []byte, error) {
	study, err := s.exportStudy(ctx, studyID)
	if err != nil {
		return "", nil, err
	}
	data, err := export.Build(study)
	if err != nil {
		return "", nil, err
	}
	name := export.FileName(domain.Now())
	s.logger.Info("study exported", "study", studyID, "file", name, "overlays", len(study.Overlays), "bytes", len(data))
	return name, data, nil
}

// exportStudy re-derives the entities and classifies their pivots against the
// union of every stored overlay, main first. Without overlays pivots stay
// unclassified.
func (s *Service) exportStudy(ctx context.Context, studyID string) (export.Study, error) {
	ents, err := s.Entities(ctx, studyID)
	if err != nil {
		return export.Study{}, err
	}
	overlays, err := s.selectOverlays(studyID, nil)
	if err != nil {
		return export.Study{}, err
	}
	if len(overlays) > 0 {
		ents.Pivots = s.classifier.Aggregate(ents.Pivots, overlays)
	}
	return export.Study{Title: "Coverage Study", Entities: ents, Overlays: overlays}, nil
}
