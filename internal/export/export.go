// Package export renders a coverage study as a KMZ archive: a KML document
// with the farm entities and one ground overlay per simulated raster, bundled
// with the referenced PNG files.
package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image/color"
	"os"
	"time"

	kml "github.com/twpayne/go-kml"
	"github.com/twpayne/go-kml/icon"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

const (
	docName = "doc.kml"

	styleTower        = "styleTower"
	stylePivotCovered = "stylePivotCovered"
	stylePivotOutside = "stylePivotOutside"
	stylePivotUnknown = "stylePivotUnknown"
	stylePump         = "stylePump"
	styleCircle       = "styleCircle"

	mainOverlayAlpha     = 180
	repeaterOverlayAlpha = 150
)

// Study is everything an export needs. Pivots in Entities should already
// carry their latest classification.
type Study struct {
	Title    string
	Entities domain.Entities
	Overlays []domain.Overlay
}

// FileName returns the download name of a study exported at t.
func FileName(t time.Time) string {
	return "CoverageStudy_" + t.Format("20060102_150405") + ".kmz"
}

// Build renders the study and returns the KMZ bytes. Every overlay raster is
// read from its RasterPath and stored in the archive under the overlay name.
func Build(s Study) ([]byte, error) {
	doc := Document(s)

	var kmlBuf bytes.Buffer
	if err := kml.KML(doc).WriteIndent(&kmlBuf, "", "  "); err != nil {
		return nil, fmt.Errorf("encode kml: %w", err)
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	if err := addFile(zw, docName, kmlBuf.Bytes()); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(s.Overlays))
	for _, ov := range s.Overlays {
		if seen[ov.Name] {
			continue
		}
		seen[ov.Name] = true
		data, err := os.ReadFile(ov.RasterPath)
		if err != nil {
			return nil, fmt.Errorf("read raster %s: %w", ov.Name, err)
		}
		if err := addFile(zw, ov.Name, data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close kmz: %w", err)
	}
	return out.Bytes(), nil
}

// Document builds the KML document element of a study.
func Document(s Study) *kml.CompoundElement {
	title := s.Title
	if title == "" {
		title = "Coverage Study"
	}
	d := kml.Document(kml.Name(title), kml.Open(true))
	d.Add(styles()...)

	if a := s.Entities.Antenna; a != nil {
		d.Add(point(a.Name, styleTower, a.Lat, a.Lon, kml.Description(fmt.Sprintf("Height: %dm", a.Height))))
	}

	if len(s.Entities.Pivots) > 0 {
		f := kml.Folder(kml.Name("Pivots"))
		for _, p := range s.Entities.Pivots {
			f.Add(point(p.Name, pivotStyle(p), p.Lat, p.Lon, kml.Description(pivotStatus(p))))
		}
		d.Add(f)
	}

	if len(s.Entities.Pumps) > 0 {
		f := kml.Folder(kml.Name("Pump Houses"))
		for _, p := range s.Entities.Pumps {
			f.Add(point(p.Name, stylePump, p.Lat, p.Lon))
		}
		d.Add(f)
	}

	if len(s.Entities.Circles) > 0 {
		f := kml.Folder(kml.Name("Pivot Areas"))
		for _, c := range s.Entities.Circles {
			if len(c.Coordinates) == 0 {
				continue
			}
			f.Add(circle(c))
		}
		d.Add(f)
	}

	if len(s.Overlays) > 0 {
		f := kml.Folder(kml.Name("Coverage"))
		for _, ov := range s.Overlays {
			f.Add(groundOverlay(ov, s.Entities.Antenna))
			if ov.Role == domain.RoleRepeater {
				f.Add(repeaterPoint(ov))
			}
		}
		d.Add(f)
	}
	return d
}

func styles() []kml.Element {
	paddle := func(id, href string, scale float64) kml.Element {
		return kml.SharedStyle(id,
			kml.IconStyle(
				kml.Scale(scale),
				kml.Icon(kml.Href(icon.PaddleHref(href))),
			),
		)
	}
	return []kml.Element{
		paddle(styleTower, "T", 1.2),
		paddle(stylePivotCovered, "grn-circle", 0.8),
		paddle(stylePivotOutside, "red-circle", 0.8),
		paddle(stylePivotUnknown, "wht-circle", 0.8),
		paddle(stylePump, "blu-square", 0.8),
		kml.SharedStyle(styleCircle,
			kml.LineStyle(
				kml.Width(2),
				kml.Color(color.RGBA{R: 0xff, G: 0, B: 0, A: 0xff}),
			),
			kml.PolyStyle(
				kml.Color(color.RGBA{R: 0xff, G: 0xff, B: 0, A: 100}),
			),
		),
	}
}

func point(name, style string, lat, lon float64, extra ...kml.Element) kml.Element {
	children := []kml.Element{
		kml.Name(name),
		kml.StyleURL("#" + style),
	}
	children = append(children, extra...)
	children = append(children, kml.Point(
		kml.AltitudeMode(kml.AltitudeModeClampToGround),
		kml.Coordinates(kml.Coordinate{Lon: lon, Lat: lat}),
	))
	return kml.Placemark(children...)
}

func pivotStyle(p domain.Pivot) string {
	switch {
	case p.Outside == nil:
		return stylePivotUnknown
	case *p.Outside:
		return stylePivotOutside
	default:
		return stylePivotCovered
	}
}

func pivotStatus(p domain.Pivot) string {
	switch {
	case p.Outside == nil:
		return "Coverage not evaluated"
	case *p.Outside:
		return "Outside coverage"
	default:
		return "Covered"
	}
}

func circle(c domain.CoverageCircle) kml.Element {
	ring := make([]kml.Coordinate, 0, len(c.Coordinates)+1)
	for _, p := range c.Coordinates {
		ring = append(ring, kml.Coordinate{Lon: p.Lon, Lat: p.Lat})
	}
	if first, last := ring[0], ring[len(ring)-1]; first != last {
		ring = append(ring, first)
	}
	name := c.Name
	if name == "" {
		name = "Pivot Area"
	}
	return kml.Placemark(
		kml.Name(name),
		kml.StyleURL("#"+styleCircle),
		kml.Polygon(
			kml.OuterBoundaryIs(
				kml.LinearRing(kml.Coordinates(ring...)),
			),
		),
	)
}

func groundOverlay(ov domain.Overlay, antenna *domain.Antenna) kml.Element {
	name := "Repeater Coverage: " + ov.Name
	alpha := uint8(repeaterOverlayAlpha)
	if ov.Role == domain.RoleMain {
		alpha = mainOverlayAlpha
		label := "Main"
		if antenna != nil && antenna.Name != "" {
			label = antenna.Name
		}
		name = "Coverage: " + label
	}
	b := ov.Bounds.Normalized()
	return kml.GroundOverlay(
		kml.Name(name),
		kml.Color(color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: alpha}),
		kml.Icon(kml.Href(ov.Name)),
		kml.LatLonBox(
			kml.North(b.North),
			kml.South(b.South),
			kml.East(b.East),
			kml.West(b.West),
		),
	)
}

// repeaterPoint marks the repeater site. Sidecars written before the
// transmitter was recorded fall back to the raster center.
func repeaterPoint(ov domain.Overlay) kml.Element {
	lat, lon := ov.Transmitter.Lat, ov.Transmitter.Lon
	if lat == 0 && lon == 0 {
		c := ov.Bounds.Normalized().Center()
		lat, lon = c.Lat, c.Lon
	}
	return point(fmt.Sprintf("Repeater (%s)", ov.TemplateID), styleTower, lat, lon)
}

func addFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: domain.Now()})
	if err != nil {
		return fmt.Errorf("add %s to kmz: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s to kmz: %w", name, err)
	}
	return nil
}
