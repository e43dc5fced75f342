package geometry

import "math"

// Vec3 is a double precision cartesian vector in the earth-centered,
// earth-fixed frame.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Length() float64 { return math.Sqrt(v.Dot(v)) }

func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1.0 / l)
}

func (v Vec3) Min(o Vec3) Vec3 {
	return Vec3{math.Min(v.X, o.X), math.Min(v.Y, o.Y), math.Min(v.Z, o.Z)}
}

func (v Vec3) Max(o Vec3) Vec3 {
	return Vec3{math.Max(v.X, o.X), math.Max(v.Y, o.Y), math.Max(v.Z, o.Z)}
}

// Ellipsoid models a triaxial reference ellipsoid. Only WGS84 is used by the
// converter.
type Ellipsoid struct {
	radii        Vec3
	radiiSquared Vec3
}

var WGS84 = Ellipsoid{
	radii:        Vec3{6378137.0, 6378137.0, 6356752.3142451793},
	radiiSquared: Vec3{6378137.0 * 6378137.0, 6378137.0 * 6378137.0, 6356752.3142451793 * 6356752.3142451793},
}

// GeodeticSurfaceNormal returns the unit outward normal of the ellipsoid at
// the given geodetic position.
func (e Ellipsoid) GeodeticSurfaceNormal(c Cartographic) Vec3 {
	cosLat := math.Cos(c.Latitude)
	return Vec3{
		X: cosLat * math.Cos(c.Longitude),
		Y: cosLat * math.Sin(c.Longitude),
		Z: math.Sin(c.Latitude),
	}.Normalize()
}

// CartographicToCartesian converts a geodetic position to earth-centered,
// earth-fixed cartesian coordinates.
func (e Ellipsoid) CartographicToCartesian(c Cartographic) Vec3 {
	n := e.GeodeticSurfaceNormal(c)
	k := Vec3{
		X: e.radiiSquared.X * n.X,
		Y: e.radiiSquared.Y * n.Y,
		Z: e.radiiSquared.Z * n.Z,
	}
	gamma := math.Sqrt(n.Dot(k))
	k = k.Scale(1.0 / gamma)
	return k.Add(n.Scale(c.Height))
}

// Orientation holds the rotated local frame of an instanced model. Up is the
// ellipsoid normal, Right is local east rotated by the heading. Clients derive
// the forward axis as Right x Up.
type Orientation struct {
	Up    Vec3
	Right Vec3
}

// ModelOrientation computes the local frame at a geodetic position rotated
// about the up axis by heading degrees, measured clockwise from north.
func (e Ellipsoid) ModelOrientation(c Cartographic, headingDeg float64) Orientation {
	up := e.GeodeticSurfaceNormal(c)
	east := Vec3{0, 0, 1}.Cross(up).Normalize()
	if east.Length() == 0 {
		// at the poles pick an arbitrary east
		east = Vec3{0, 1, 0}
	}
	north := up.Cross(east)

	h := headingDeg * math.Pi / 180.0
	forward := north.Scale(math.Cos(h)).Add(east.Scale(math.Sin(h)))
	right := forward.Cross(up).Normalize()
	return Orientation{Up: up, Right: right}
}
