// Command validate checks a farm KMZ and a directory of coverage rasters for
// the problems that make a study unusable: an unreadable archive, a missing
// antenna, duplicate pivot names, sidecars that do not match their raster,
// and rasters whose bounds cannot be mapped.
//
// Usage:
//
//	go run ./cmd/validate -kmz data/mock/farm.kmz -images data/mock/images
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/pivot-coverage-service/internal/coverage"
	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
	"github.com/couchcryptid/pivot-coverage-service/internal/extract"
	"github.com/couchcryptid/pivot-coverage-service/internal/kmlfile"
	"github.com/couchcryptid/pivot-coverage-service/internal/store"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	kmzPath := flag.String("kmz", "", "path to the farm KMZ or KML file")
	imagesDir := flag.String("images", "", "directory with coverage rasters and sidecars (optional)")
	flag.Parse()

	if *kmzPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*kmzPath, *imagesDir); code != 0 {
		os.Exit(code)
	}
}

func run(kmzPath, imagesDir string) int {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fmt.Println("=== Coverage Study Validation ===")
	fmt.Println()

	data, err := os.ReadFile(kmzPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read %s: %v\n", kmzPath, err)
		return 1
	}

	archive, doc := validateArchive(data)
	phases := []*phase{archive}

	ents, extraction := validateExtraction(doc, logger)
	phases = append(phases, extraction)

	var overlays []domain.Overlay
	if imagesDir != "" {
		var overlayPhase *phase
		overlays, overlayPhase = validateOverlays(imagesDir)
		phases = append(phases, overlayPhase)
		phases = append(phases, validateClassification(ents.Pivots, overlays, logger))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Entities: %d placemarks, %d pivots (%d virtual), %d pumps, %d circles, %d overlays\n",
		len(doc.Placemarks), len(ents.Pivots), countVirtual(ents.Pivots), len(ents.Pumps), len(ents.Circles), len(overlays))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validateArchive(data []byte) (*phase, kmlfile.Document) {
	p := &phase{name: "Phase 1: KMZ archive and KML document"}

	raw, err := kmlfile.ReadArchive(data)
	if err != nil {
		p.errorf("read archive: %v", err)
		return p, kmlfile.Document{}
	}
	doc, err := kmlfile.Parse(raw)
	if err != nil {
		p.errorf("decode kml: %v", err)
		return p, kmlfile.Document{}
	}
	if len(doc.Placemarks) == 0 {
		p.errorf("document has no placemarks")
	}
	for i, pm := range doc.Placemarks {
		if strings.TrimSpace(pm.Name) == "" {
			p.errorf("placemark %d has no name", i)
		}
	}
	return p, doc
}

func validateExtraction(doc kmlfile.Document, logger *slog.Logger) (domain.Entities, *phase) {
	p := &phase{name: "Phase 2: Entity extraction"}

	ents, err := extract.New(extract.DefaultOptions(), logger).Extract(doc)
	if errors.Is(err, domain.ErrAntennaNotFound) {
		p.errorf("no antenna placemark (name must mention torre, antena or repetidora)")
	} else if err != nil {
		p.errorf("extract: %v", err)
	}
	if len(ents.IgnoredAntennas) > 0 {
		p.errorf("%d additional antenna candidates ignored, first kept: %s", len(ents.IgnoredAntennas), ents.Antenna.Name)
	}
	if len(ents.Pivots) == 0 {
		p.errorf("no pivots found")
	}

	names := make(map[string]string, len(ents.Pivots))
	for _, pv := range ents.Pivots {
		key := domain.NormalizeName(pv.Name)
		if prev, ok := names[key]; ok {
			p.errorf("pivot %q collides with %q after normalization", pv.Name, prev)
			continue
		}
		names[key] = pv.Name
	}
	for _, c := range ents.Circles {
		if len(c.Coordinates) < 3 {
			p.errorf("circle %q has %d points, need at least 3", c.Name, len(c.Coordinates))
		}
	}
	return ents, p
}

func validateOverlays(dir string) ([]domain.Overlay, *phase) {
	p := &phase{name: "Phase 3: Overlay rasters and sidecars"}

	sidecars, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		p.errorf("list sidecars: %v", err)
		return nil, p
	}
	if len(sidecars) == 0 {
		p.errorf("no sidecars in %s", dir)
	}

	var overlays []domain.Overlay
	for _, path := range sidecars {
		base := strings.TrimSuffix(filepath.Base(path), ".json")
		raw, err := os.ReadFile(path)
		if err != nil {
			p.errorf("%s: %v", base, err)
			continue
		}
		var sc store.Sidecar
		if err := json.Unmarshal(raw, &sc); err != nil {
			p.errorf("%s: decode sidecar: %v", base, err)
			continue
		}
		if !sc.Role.Valid() {
			p.errorf("%s: unknown role %q", base, sc.Role)
		}
		if sc.Template == "" {
			p.errorf("%s: empty template", base)
		}
		if want := store.ArtifactName(sc.Role, sc.Template, sc.Transmitter.Lat, sc.Transmitter.Lon); want != base {
			p.errorf("%s: name does not match sidecar, expected %s", base, want)
		}
		if sc.Bounds.Inverted() {
			p.errorf("%s: inverted bounds %v", base, sc.Bounds.Slice())
		}
		b := sc.Bounds.Normalized()
		if b.North == b.South || b.East == b.West {
			p.errorf("%s: bounds have no extent %v", base, b.Slice())
		}

		rasterPath := filepath.Join(dir, base+".png")
		raster, err := coverage.LoadPNG(rasterPath)
		if err != nil {
			p.errorf("%s: raster: %v", base, err)
			continue
		}
		if raster.Width() == 0 || raster.Height() == 0 {
			p.errorf("%s: empty raster", base)
		}
		overlays = append(overlays, domain.Overlay{
			Name:        base + ".png",
			Role:        sc.Role,
			TemplateID:  sc.Template,
			Bounds:      sc.Bounds,
			Transmitter: sc.Transmitter,
			RasterPath:  rasterPath,
		})
	}
	return overlays, p
}

func validateClassification(pivots []domain.Pivot, overlays []domain.Overlay, logger *slog.Logger) *phase {
	p := &phase{name: "Phase 4: Pivot classification"}
	if len(overlays) == 0 {
		p.errorf("no usable overlays to classify against")
		return p
	}

	classified := coverage.NewClassifier(coverage.DefaultAlphaThreshold, logger).Aggregate(pivots, overlays)
	if len(classified) != len(pivots) {
		p.errorf("classified %d pivots, expected %d", len(classified), len(pivots))
		return p
	}
	for _, pv := range classified {
		if pv.Outside == nil {
			p.errorf("pivot %q left unclassified", pv.Name)
			continue
		}
		status := "covered"
		if *pv.Outside {
			status = "outside"
		}
		fmt.Printf("  %-24s %s\n", pv.Name, status)
	}
	covered, outside := domain.CountCoverage(classified)
	fmt.Printf("  %d covered, %d outside\n", covered, outside)
	return p
}

func countVirtual(pivots []domain.Pivot) int {
	n := 0
	for _, p := range pivots {
		if p.Virtual {
			n++
		}
	}
	return n
}
