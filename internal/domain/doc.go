// Package domain models farm infrastructure extracted from a KMZ study and the
// coverage decisions derived from RF simulation rasters.
//
// # Entities
//
// A study KMZ is a Google Earth export drawn by field technicians. Every
// feature is a Placemark whose name carries its meaning:
//
//	"Torre 30m"                 → Antenna, 30 m above ground
//	"Pivô 12", "P12", "Pivot A" → Pivot
//	"Casa de bomba 3"           → PumpHouse
//	"Medida do círculo Pivô 7"  → CoverageCircle (LineString tracing the irrigated area)
//
// Names are matched case-insensitively. Portuguese and English keywords are
// both accepted because studies come from Brazilian and European teams.
//
// # Name normalization
//
// Pivot identity is the normalized name: lower-cased, accents stripped (NFD and
// mark removal), then every character outside [a-z0-9] dropped. "Pivô 1",
// "PIVO-1" and "pivo1" are the same pivot. See [NormalizeName].
//
// # Bounds
//
// Coverage rasters are draped over a (south, west, north, east) rectangle in
// decimal degrees. The RF provider occasionally returns north and south
// swapped, so consumers always call [Bounds.Normalized] before mapping pixels.
// On the wire bounds are a 4-element array in [south, west, north, east] order.
//
// # Coordinates
//
// KML stores "lon,lat[,alt]" tuples. Everything in this package is (lat, lon)
// except where a geometry library requires (x=lon, y=lat).
package domain
