// Package kmlfile unpacks KMZ containers and decodes the placemarks of the
// KML document inside. It knows nothing about farms; classification of the
// placemarks lives in the extract package.
package kmlfile

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

// Geometry holds the raw coordinate text of a KML geometry element.
type Geometry struct {
	Coordinates string
}

// Placemark is one named feature. At most one of Point and LineString is
// normally set, but KML allows both inside a MultiGeometry.
type Placemark struct {
	Name       string
	Point      *Geometry
	LineString *Geometry
}

// Document is the flattened list of placemarks, in document order.
type Document struct {
	Placemarks []Placemark
}

type xmlCoords struct {
	Coordinates string `xml:"coordinates"`
}

type xmlGeometries struct {
	Point      []xmlCoords `xml:"Point"`
	LineString []xmlCoords `xml:"LineString"`
}

type xmlPlacemark struct {
	Name string `xml:"name"`
	xmlGeometries
	MultiGeometry []xmlGeometries `xml:"MultiGeometry"`
}

// Decode scans r for Placemark elements at any depth, including those nested
// in Document and Folder elements.
func Decode(r io.Reader) (Document, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	var doc Document
	seenRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Document{}, fmt.Errorf("%w: decode kml: %v", domain.ErrInvalidKMZ, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		seenRoot = true
		if se.Name.Local != "Placemark" {
			continue
		}
		var p xmlPlacemark
		if err := dec.DecodeElement(&p, &se); err != nil {
			return Document{}, fmt.Errorf("%w: decode placemark: %v", domain.ErrInvalidKMZ, err)
		}
		doc.Placemarks = append(doc.Placemarks, p.toPlacemark())
	}
	if !seenRoot {
		return Document{}, fmt.Errorf("%w: empty kml document", domain.ErrInvalidKMZ)
	}
	return doc, nil
}

// Parse unpacks a KMZ or bare KML payload and decodes it.
func Parse(data []byte) (Document, error) {
	kml, err := ReadArchive(data)
	if err != nil {
		return Document{}, err
	}
	return Decode(bytes.NewReader(kml))
}

func (p xmlPlacemark) toPlacemark() Placemark {
	out := Placemark{Name: strings.TrimSpace(p.Name)}
	groups := append([]xmlGeometries{p.xmlGeometries}, p.MultiGeometry...)
	for _, g := range groups {
		if out.Point == nil && len(g.Point) > 0 {
			out.Point = &Geometry{Coordinates: strings.TrimSpace(g.Point[0].Coordinates)}
		}
		if out.LineString == nil && len(g.LineString) > 0 {
			out.LineString = &Geometry{Coordinates: strings.TrimSpace(g.LineString[0].Coordinates)}
		}
	}
	return out
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}
