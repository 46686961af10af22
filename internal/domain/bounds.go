package domain

import (
	"encoding/json"
	"fmt"
)

// Bounds is the geographic rectangle a coverage raster is draped over.
type Bounds struct {
	South float64
	West  float64
	North float64
	East  float64
}

// BoundsFromSlice builds Bounds from the [south, west, north, east] wire order.
func BoundsFromSlice(v []float64) (Bounds, error) {
	if len(v) != 4 {
		return Bounds{}, fmt.Errorf("%w: bounds need 4 values, got %d", ErrInvalidBounds, len(v))
	}
	return Bounds{South: v[0], West: v[1], North: v[2], East: v[3]}, nil
}

// Slice returns the bounds in [south, west, north, east] order.
func (b Bounds) Slice() []float64 {
	return []float64{b.South, b.West, b.North, b.East}
}

// Normalized returns b with west <= east and south <= north.
func (b Bounds) Normalized() Bounds {
	if b.West > b.East {
		b.West, b.East = b.East, b.West
	}
	if b.South > b.North {
		b.South, b.North = b.North, b.South
	}
	return b
}

// Inverted reports whether either axis is in descending order.
func (b Bounds) Inverted() bool {
	return b.West > b.East || b.South > b.North
}

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() Coordinate {
	n := b.Normalized()
	return Coordinate{Lat: (n.South + n.North) / 2, Lon: (n.West + n.East) / 2}
}

// MarshalJSON encodes bounds as [south, west, north, east].
func (b Bounds) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Slice())
}

// UnmarshalJSON decodes a [south, west, north, east] array.
func (b *Bounds) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBounds, err)
	}
	parsed, err := BoundsFromSlice(v)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
