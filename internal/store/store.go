// Package store keeps the per-study artifacts on disk: the uploaded KMZ,
// downloaded coverage rasters with their JSON sidecars, and a manifest that
// lists what each simulation role produced.
//
// Layout:
//
//	<root>/<study>/input.kmz
//	<root>/<study>/manifest.json
//	<root>/<study>/images/<role>_<template>_<lat>_<lon>.png
//	<root>/<study>/images/<role>_<template>_<lat>_<lon>.json
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

const (
	inputFile    = "input.kmz"
	manifestFile = "manifest.json"
	imagesDir    = "images"
)

// Artifact is one raster/sidecar pair recorded in the manifest.
type Artifact struct {
	Role      domain.Role `json:"role"`
	Template  string      `json:"template"`
	Raster    string      `json:"raster"`
	Sidecar   string      `json:"sidecar"`
	CreatedAt time.Time   `json:"created_at"`
}

// Manifest is the durable index of a study.
type Manifest struct {
	StudyID   string         `json:"study_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Artifacts []Artifact     `json:"artifacts"`
	Pivots    []domain.Pivot `json:"pivots,omitempty"`
}

// Sidecar is the JSON record written next to every raster.
type Sidecar struct {
	Bounds      domain.Bounds      `json:"bounds"`
	Role        domain.Role        `json:"role"`
	Template    string             `json:"template"`
	Transmitter domain.Transmitter `json:"transmitter"`
}

// Store manages study directories under a root directory.
type Store struct {
	root   string
	logger *slog.Logger

	// mu serializes manifest rewrites within this process. File replacement
	// across requests is best-effort.
	mu sync.Mutex
}

// New creates the root directory if needed and returns a Store.
func New(root string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

// Root returns the data directory.
func (s *Store) Root() string { return s.root }

// CreateStudy allocates a study id and persists the uploaded KMZ.
func (s *Store) CreateStudy(kmz []byte) (string, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.root, id)
	if err := os.MkdirAll(filepath.Join(dir, imagesDir), 0o755); err != nil {
		return "", fmt.Errorf("create study dir: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, inputFile), kmz); err != nil {
		return "", fmt.Errorf("write input kmz: %w", err)
	}
	now := domain.Now()
	if err := s.writeManifest(id, Manifest{StudyID: id, CreatedAt: now, UpdatedAt: now}); err != nil {
		return "", err
	}
	return id, nil
}

// Input returns the KMZ uploaded for a study.
func (s *Store) Input(id string) ([]byte, error) {
	dir, err := s.studyDir(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, inputFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrStudyNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read input kmz: %w", err)
	}
	return data, nil
}

// Manifest returns the current manifest of a study.
func (s *Store) Manifest(id string) (Manifest, error) {
	if _, err := s.studyDir(id); err != nil {
		return Manifest{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readManifest(id)
}

// ReplaceRole deletes every artifact the manifest lists for role. Files that
// are already gone are ignored; other delete failures are logged.
func (s *Store) ReplaceRole(id string, role domain.Role) error {
	dir, err := s.studyDir(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.readManifest(id)
	if err != nil {
		return err
	}
	kept := m.Artifacts[:0]
	removed := 0
	for _, a := range m.Artifacts {
		if a.Role != role {
			kept = append(kept, a)
			continue
		}
		for _, name := range []string{a.Raster, a.Sidecar} {
			if err := os.Remove(filepath.Join(dir, imagesDir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("remove stale artifact failed", "study", id, "file", name, "error", err)
			}
		}
		removed++
	}
	if removed == 0 {
		return nil
	}
	m.Artifacts = kept
	m.UpdatedAt = domain.Now()
	s.logger.Debug("replaced role artifacts", "study", id, "role", role, "removed", removed)
	return s.writeManifest(id, m)
}

// SaveOverlay writes a raster and its sidecar and records them in the manifest.
func (s *Store) SaveOverlay(id string, sc Sidecar, png []byte) (domain.Overlay, error) {
	dir, err := s.studyDir(id)
	if err != nil {
		return domain.Overlay{}, err
	}
	base := ArtifactName(sc.Role, sc.Template, sc.Transmitter.Lat, sc.Transmitter.Lon)
	raster := base + ".png"
	sidecar := base + ".json"
	images := filepath.Join(dir, imagesDir)

	if err := writeFileAtomic(filepath.Join(images, raster), png); err != nil {
		return domain.Overlay{}, fmt.Errorf("write raster: %w", err)
	}
	meta, err := json.Marshal(sc)
	if err != nil {
		return domain.Overlay{}, fmt.Errorf("encode sidecar: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(images, sidecar), meta); err != nil {
		return domain.Overlay{}, fmt.Errorf("write sidecar: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.readManifest(id)
	if err != nil {
		return domain.Overlay{}, err
	}
	entry := Artifact{Role: sc.Role, Template: sc.Template, Raster: raster, Sidecar: sidecar, CreatedAt: domain.Now()}
	replaced := false
	for i, a := range m.Artifacts {
		if a.Raster == raster {
			m.Artifacts[i] = entry
			replaced = true
		}
	}
	if !replaced {
		m.Artifacts = append(m.Artifacts, entry)
	}
	m.UpdatedAt = domain.Now()
	if err := s.writeManifest(id, m); err != nil {
		return domain.Overlay{}, err
	}
	return sc.overlay(raster, filepath.Join(images, raster)), nil
}

// SavePivots records the latest pivot classification of a study.
func (s *Store) SavePivots(id string, pivots []domain.Pivot) error {
	if _, err := s.studyDir(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.readManifest(id)
	if err != nil {
		return err
	}
	m.Pivots = pivots
	m.UpdatedAt = domain.Now()
	return s.writeManifest(id, m)
}

// Overlays returns every manifest overlay whose raster and sidecar are both
// readable, in manifest order.
func (s *Store) Overlays(id string) ([]domain.Overlay, error) {
	m, err := s.Manifest(id)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Overlay, 0, len(m.Artifacts))
	for _, a := range m.Artifacts {
		ov, err := s.Overlay(id, a.Raster)
		if err != nil {
			s.logger.Debug("skipping incomplete overlay", "study", id, "raster", a.Raster, "error", err)
			continue
		}
		out = append(out, ov)
	}
	return out, nil
}

// Overlay loads one overlay by raster file name. A raster without a sidecar
// (or the reverse) is reported as not found.
func (s *Store) Overlay(id, rasterName string) (domain.Overlay, error) {
	rasterPath, err := s.RasterPath(id, rasterName)
	if err != nil {
		return domain.Overlay{}, err
	}
	sidecarPath := strings.TrimSuffix(rasterPath, ".png") + ".json"
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		return domain.Overlay{}, fmt.Errorf("%w: sidecar for %s", fs.ErrNotExist, rasterName)
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return domain.Overlay{}, fmt.Errorf("decode sidecar %s: %w", rasterName, err)
	}
	return sc.overlay(filepath.Base(rasterPath), rasterPath), nil
}

// RasterPath resolves a raster file name inside a study's image directory.
// Only plain .png names are accepted.
func (s *Store) RasterPath(id, name string) (string, error) {
	dir, err := s.studyDir(id)
	if err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) || !strings.HasSuffix(name, ".png") {
		return "", fmt.Errorf("%w: invalid raster name %q", fs.ErrNotExist, name)
	}
	p := filepath.Join(dir, imagesDir, name)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("%w: raster %s", fs.ErrNotExist, name)
	}
	return p, nil
}

// CheckWritable verifies the data directory accepts new files.
func (s *Store) CheckWritable() error {
	f, err := os.CreateTemp(s.root, ".ready-*")
	if err != nil {
		return fmt.Errorf("data dir not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// ArtifactName builds the base file name of a raster/sidecar pair.
func ArtifactName(role domain.Role, template string, lat, lon float64) string {
	return fmt.Sprintf("%s_%s_%s_%s", role, strings.ToLower(template), formatCoord(lat), formatCoord(lon))
}

func formatCoord(v float64) string {
	return strings.NewReplacer(".", "_", "-", "m").Replace(fmt.Sprintf("%.6f", v))
}

func (sc Sidecar) overlay(name, path string) domain.Overlay {
	return domain.Overlay{
		Name:        name,
		Role:        sc.Role,
		TemplateID:  sc.Template,
		Bounds:      sc.Bounds,
		Transmitter: sc.Transmitter,
		RasterPath:  path,
	}
}

// studyDir validates id and returns the study directory.
func (s *Store) studyDir(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrStudyNotFound, id)
	}
	dir := filepath.Join(s.root, id)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return "", fmt.Errorf("%w: %s", domain.ErrStudyNotFound, id)
	}
	return dir, nil
}

func (s *Store) readManifest(id string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.root, id, manifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return Manifest{StudyID: id}, nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

func (s *Store) writeManifest(id string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.root, id, manifestFile), data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
