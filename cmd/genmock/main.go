// Command genmock writes a sample farm KMZ and a matching main-antenna
// coverage raster with its sidecar. The fixtures exercise every extraction
// rule and give a known covered/outside split for the pivots.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock
package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"
	"path/filepath"

	kml "github.com/twpayne/go-kml"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
	"github.com/couchcryptid/pivot-coverage-service/internal/store"
)

const (
	templateID = "Brazil_V6"

	rasterSize = 256
	// Half-width of the raster bounds and radius of the covered disc, degrees.
	boundsHalfWidth = 0.08
	coverageRadius  = 0.06
	circleRadius    = 0.005
)

var farmCenter = domain.Coordinate{Lat: -21.5, Lon: -47.5}

type mockPoint struct {
	name     string
	lat, lon float64
}

type mockCircle struct {
	name   string
	center domain.Coordinate
}

var (
	antenna = mockPoint{name: "Torre Principal 30m", lat: farmCenter.Lat, lon: farmCenter.Lon}

	pivots = []mockPoint{
		{name: "Pivô 01", lat: -21.48, lon: -47.49},
		{name: "Pivô 02", lat: -21.52, lon: -47.52},
		{name: "P3", lat: -21.46, lon: -47.46},
		{name: "Pivô 04 Sul", lat: -21.60, lon: -47.60},
	}

	pumps = []mockPoint{
		{name: "Casa de Bomba 1", lat: -21.505, lon: -47.505},
	}

	circles = []mockCircle{
		// Matches Pivô 01 by name, no virtual pivot.
		{name: "Medida do círculo Pivô 01", center: domain.Coordinate{Lat: -21.48, Lon: -47.49}},
		// No explicit pivot, synthesized as "Pivô 05".
		{name: "Medida do círculo Pivô 05", center: domain.Coordinate{Lat: -21.47, Lon: -47.53}},
		// Unnamed, synthesized with a fallback name.
		{name: "Medida do círculo", center: domain.Coordinate{Lat: -21.54, Lon: -47.45}},
	}
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for farm.kmz and images/")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	imagesDir := filepath.Join(*out, "images")
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return err
	}

	kmz, err := farmKMZ()
	if err != nil {
		return fmt.Errorf("build kmz: %w", err)
	}
	kmzPath := filepath.Join(*out, "farm.kmz")
	if err := os.WriteFile(kmzPath, kmz, 0o644); err != nil {
		return err
	}
	log.Printf("wrote %s (%d pivots, %d pumps, %d circles)", kmzPath, len(pivots), len(pumps), len(circles))

	bounds := domain.Bounds{
		South: farmCenter.Lat - boundsHalfWidth,
		West:  farmCenter.Lon - boundsHalfWidth,
		North: farmCenter.Lat + boundsHalfWidth,
		East:  farmCenter.Lon + boundsHalfWidth,
	}
	raster, err := coverageRaster(bounds)
	if err != nil {
		return fmt.Errorf("build raster: %w", err)
	}
	base := store.ArtifactName(domain.RoleMain, templateID, antenna.lat, antenna.lon)
	if err := os.WriteFile(filepath.Join(imagesDir, base+".png"), raster, 0o644); err != nil {
		return err
	}
	sidecar, err := json.MarshalIndent(store.Sidecar{
		Bounds:      bounds,
		Role:        domain.RoleMain,
		Template:    templateID,
		Transmitter: domain.Transmitter{Lat: antenna.lat, Lon: antenna.lon, Height: 30},
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(imagesDir, base+".json"), sidecar, 0o644); err != nil {
		return err
	}
	log.Printf("wrote %s.png and %s.json", base, base)

	printExpected()
	return nil
}

func farmKMZ() ([]byte, error) {
	folder := kml.Folder(kml.Name("Fazenda Modelo"))
	for _, p := range append(append([]mockPoint{antenna}, pivots...), pumps...) {
		folder.Add(kml.Placemark(
			kml.Name(p.name),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: p.lon, Lat: p.lat})),
		))
	}
	for _, c := range circles {
		folder.Add(kml.Placemark(
			kml.Name(c.name),
			kml.LineString(kml.Coordinates(ring(c.center, circleRadius, 24)...)),
		))
	}

	var doc bytes.Buffer
	if err := kml.KML(kml.Document(folder)).WriteIndent(&doc, "", "  "); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("doc.kml")
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(doc.Bytes()); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ring(center domain.Coordinate, radius float64, n int) []kml.Coordinate {
	out := make([]kml.Coordinate, 0, n+1)
	for i := 0; i <= n; i++ {
		a := 2 * math.Pi * float64(i%n) / float64(n)
		out = append(out, kml.Coordinate{
			Lon: center.Lon + radius*math.Cos(a),
			Lat: center.Lat + radius*math.Sin(a),
		})
	}
	return out
}

// coverageRaster paints an opaque disc of coverageRadius around the farm
// center on a transparent background.
func coverageRaster(b domain.Bounds) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, rasterSize, rasterSize))
	dLon := b.East - b.West
	dLat := b.North - b.South
	for y := range rasterSize {
		lat := b.North - (float64(y)+0.5)/rasterSize*dLat
		for x := range rasterSize {
			lon := b.West + (float64(x)+0.5)/rasterSize*dLon
			if math.Hypot(lat-farmCenter.Lat, lon-farmCenter.Lon) < coverageRadius {
				img.Set(x, y, color.NRGBA{G: 200, B: 80, A: 200})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func printExpected() {
	fmt.Println("\nExpected classification against the main raster:")
	for _, p := range pivots {
		status := "covered"
		if math.Hypot(p.lat-farmCenter.Lat, p.lon-farmCenter.Lon) >= coverageRadius {
			status = "outside"
		}
		fmt.Printf("  %-14s %s\n", p.name, status)
	}
}
