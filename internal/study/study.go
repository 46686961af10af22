// Package study orchestrates coverage studies: it turns an uploaded KMZ into
// entities, runs simulations through the RF collaborator, classifies pivots
// against the stored rasters, and assembles exports and elevation profiles.
package study

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/couchcryptid/pivot-coverage-service/internal/config"
	"github.com/couchcryptid/pivot-coverage-service/internal/coverage"
	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
	"github.com/couchcryptid/pivot-coverage-service/internal/extract"
	"github.com/couchcryptid/pivot-coverage-service/internal/kmlfile"
	"github.com/couchcryptid/pivot-coverage-service/internal/observability"
	"github.com/couchcryptid/pivot-coverage-service/internal/profile"
	"github.com/couchcryptid/pivot-coverage-service/internal/store"
)

// Publisher delivers coverage reports to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, report domain.CoverageReport) error
}

// Deps are the collaborators a Service is built from. Publisher may be nil.
type Deps struct {
	Store      *store.Store
	Templates  *config.Templates
	Propagator domain.Propagator
	Elevations domain.ElevationProvider
	Publisher  Publisher
	Metrics    *observability.Metrics
	Logger     *slog.Logger
}

// Options tune the core components.
type Options struct {
	Extract        extract.Options
	AlphaThreshold uint8
	ProfileSteps   int
	PublicBaseURL  string
}

// OptionsFromConfig maps service configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Extract: extract.Options{
			MatchDistance: cfg.PivotMatchDistance,
			StrictAntenna: cfg.StrictAntenna,
		},
		AlphaThreshold: cfg.AlphaThreshold,
		ProfileSteps:   cfg.ProfileSteps,
		PublicBaseURL:  cfg.PublicBaseURL,
	}
}

// Service runs study operations. It holds no per-study state; everything a
// later request needs is persisted by the store.
type Service struct {
	store      *store.Store
	templates  *config.Templates
	propagator domain.Propagator
	publisher  Publisher
	extractor  *extract.Extractor
	classifier *coverage.Classifier
	analyzer   *profile.Analyzer
	metrics    *observability.Metrics
	logger     *slog.Logger
	opts       Options
}

// New creates a Service.
func New(d Deps, opts Options) *Service {
	if opts.ProfileSteps < 1 {
		opts.ProfileSteps = profile.DefaultSteps
	}
	return &Service{
		store:      d.Store,
		templates:  d.Templates,
		propagator: d.Propagator,
		publisher:  d.Publisher,
		extractor:  extract.New(opts.Extract, d.Logger),
		classifier: coverage.NewClassifier(opts.AlphaThreshold, d.Logger),
		analyzer:   profile.NewAnalyzer(d.Elevations, d.Logger),
		metrics:    d.Metrics,
		logger:     d.Logger,
		opts:       opts,
	}
}

// Upload is the result of processing a KMZ.
type Upload struct {
	StudyID  string          `json:"study_id"`
	Entities domain.Entities `json:"entities"`
}

// ProcessKMZ extracts the entities of an uploaded KMZ and, when an antenna is
// found, opens a new study holding the file.
func (s *Service) ProcessKMZ(_ context.Context, data []byte) (Upload, error) {
	ents, err := s.extract(data)
	if err != nil {
		return Upload{}, err
	}
	id, err := s.store.CreateStudy(data)
	if err != nil {
		return Upload{}, fmt.Errorf("create study: %w", err)
	}

	virtual := 0
	for _, p := range ents.Pivots {
		if p.Virtual {
			virtual++
		}
	}
	s.metrics.StudiesCreated.Inc()
	s.metrics.VirtualPivots.Add(float64(virtual))
	s.logger.Info("study created",
		"study", id,
		"antenna", ents.Antenna.Name,
		"pivots", len(ents.Pivots),
		"virtual_pivots", virtual,
		"pumps", len(ents.Pumps),
		"circles", len(ents.Circles),
		"ignored_antennas", len(ents.IgnoredAntennas),
	)
	return Upload{StudyID: id, Entities: ents}, nil
}

// Entities re-derives the entities of a stored study from its input KMZ.
func (s *Service) Entities(_ context.Context, studyID string) (domain.Entities, error) {
	data, err := s.store.Input(studyID)
	if err != nil {
		return domain.Entities{}, err
	}
	return s.extract(data)
}

func (s *Service) extract(data []byte) (domain.Entities, error) {
	doc, err := kmlfile.Parse(data)
	if err != nil {
		return domain.Entities{}, err
	}
	return s.extractor.Extract(doc)
}

// Templates returns the ids of the available RF templates.
func (s *Service) Templates() []string {
	return s.templates.IDs()
}

// RasterPath resolves a stored overlay raster for static serving.
func (s *Service) RasterPath(studyID, name string) (string, error) {
	return s.store.RasterPath(studyID, name)
}

// CheckReadiness reports whether the data directory accepts new studies.
func (s *Service) CheckReadiness(_ context.Context) error {
	return s.store.CheckWritable()
}

// ImageURL is the public address of a stored raster.
func (s *Service) ImageURL(studyID, name string) string {
	return fmt.Sprintf("%s/static/studies/%s/images/%s", s.opts.PublicBaseURL, studyID, url.PathEscape(name))
}
