package geometry

import (
	"fmt"
	"math"
)

const Epsilon = 1e-10

// Cartographic is a geodetic position with longitude and latitude in radians
// and height in meters above the WGS84 ellipsoid.
type Cartographic struct {
	Longitude float64
	Latitude  float64
	Height    float64
}

func NewCartographicFromDegrees(lonDeg, latDeg, height float64) Cartographic {
	return Cartographic{
		Longitude: lonDeg * math.Pi / 180.0,
		Latitude:  latDeg * math.Pi / 180.0,
		Height:    height,
	}
}

// Rectangle is a geodetic rectangle with bounds expressed in radians.
// West < East and South < North after construction.
type Rectangle struct {
	West  float64
	South float64
	East  float64
	North float64
}

func NewRectangleFromDegrees(west, south, east, north float64) Rectangle {
	d := math.Pi / 180.0
	return Rectangle{West: west * d, South: south * d, East: east * d, North: north * d}
}

// Union returns the smallest rectangle enclosing both r and other.
func (r Rectangle) Union(other Rectangle) Rectangle {
	return Rectangle{
		West:  math.Min(r.West, other.West),
		South: math.Min(r.South, other.South),
		East:  math.Max(r.East, other.East),
		North: math.Max(r.North, other.North),
	}
}

// Contains reports whether other lies within r, up to Epsilon.
func (r Rectangle) Contains(other Rectangle) bool {
	return other.West >= r.West-Epsilon &&
		other.South >= r.South-Epsilon &&
		other.East <= r.East+Epsilon &&
		other.North <= r.North+Epsilon
}

func (r Rectangle) Equals(other Rectangle) bool {
	return math.Abs(r.West-other.West) < Epsilon &&
		math.Abs(r.South-other.South) < Epsilon &&
		math.Abs(r.East-other.East) < Epsilon &&
		math.Abs(r.North-other.North) < Epsilon
}

func (r Rectangle) Center() Cartographic {
	return Cartographic{
		Longitude: (r.West + r.East) / 2.0,
		Latitude:  (r.South + r.North) / 2.0,
	}
}

func (r Rectangle) String() string {
	return fmt.Sprintf("[%v %v %v %v]", r.West, r.South, r.East, r.North)
}

// BoundingRegion is a rectangle extruded between a minimum and a maximum
// height in meters. It maps directly onto the 3D Tiles region bounding volume.
type BoundingRegion struct {
	Rectangle Rectangle
	MinHeight float64
	MaxHeight float64
}

// Union is the componentwise union: rectangle union, min of minimums,
// max of maximums.
func (b BoundingRegion) Union(other BoundingRegion) BoundingRegion {
	return BoundingRegion{
		Rectangle: b.Rectangle.Union(other.Rectangle),
		MinHeight: math.Min(b.MinHeight, other.MinHeight),
		MaxHeight: math.Max(b.MaxHeight, other.MaxHeight),
	}
}

func (b BoundingRegion) Contains(other BoundingRegion) bool {
	return b.Rectangle.Contains(other.Rectangle) &&
		other.MinHeight >= b.MinHeight-Epsilon &&
		other.MaxHeight <= b.MaxHeight+Epsilon
}

func (b BoundingRegion) Equals(other BoundingRegion) bool {
	return b.Rectangle.Equals(other.Rectangle) &&
		math.Abs(b.MinHeight-other.MinHeight) < Epsilon &&
		math.Abs(b.MaxHeight-other.MaxHeight) < Epsilon
}

// ToArray returns [west, south, east, north, minHeight, maxHeight] as required
// by the tileset JSON region bounding volume.
func (b BoundingRegion) ToArray() [6]float64 {
	return [6]float64{
		b.Rectangle.West,
		b.Rectangle.South,
		b.Rectangle.East,
		b.Rectangle.North,
		b.MinHeight,
		b.MaxHeight,
	}
}
