package pmvs

import "math"

// Vec3 is a plain 3-component vector used for image-space and camera-frame
// math (pixel coordinates, camera axes).
type Vec3 struct {
	X, Y, Z float64
}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float64   { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) Norm() float64 { return math.Sqrt(a.Dot(a)) }

func (a Vec3) Unit() Vec3 {
	n := a.Norm()
	if n == 0 {
		return a
	}
	return a.Scale(1 / n)
}

// Vec4 is a homogeneous 3D vector: W=1 for points (Patch.Coord), W=0 for
// directions (Patch.Normal, camera rays). Arithmetic helpers below operate
// on the XYZ part only, matching the Vec4f conventions of the reference
// photometric optimizer this package is modeled on.
type Vec4 struct {
	X, Y, Z, W float64
}

// NewPoint builds a homogeneous point (W=1).
func NewPoint(x, y, z float64) Vec4 { return Vec4{x, y, z, 1} }

// NewDir builds a homogeneous direction (W=0).
func NewDir(x, y, z float64) Vec4 { return Vec4{x, y, z, 0} }

func (a Vec4) Vec3() Vec3 { return Vec3{a.X, a.Y, a.Z} }

// Plus adds another vector's XYZ, keeping a's W (coord + direction offset).
func (a Vec4) Plus(b Vec4) Vec4 { return Vec4{a.X + b.X, a.Y + b.Y, a.Z + b.Z, a.W} }

// Minus subtracts XYZ parts and always yields a direction (W=0): this is
// how point-minus-point and point-minus-center differences are formed
// throughout the optimizer.
func (a Vec4) Minus(b Vec4) Vec4 { return Vec4{a.X - b.X, a.Y - b.Y, a.Z - b.Z, 0} }

func (a Vec4) Scale3(s float64) Vec4 { return Vec4{a.X * s, a.Y * s, a.Z * s, a.W} }

func (a Vec4) Dot3(b Vec4) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func (a Vec4) Cross3(b Vec4) Vec4 {
	v := a.Vec3().Cross(b.Vec3())
	return Vec4{v.X, v.Y, v.Z, 0}
}

func (a Vec4) Norm3() float64 { return math.Sqrt(a.Dot3(a)) }

// Unit3 normalizes the XYZ part to unit length and always returns a
// direction (W=0), since only directions are ever unitized in this package.
func (a Vec4) Unit3() Vec4 {
	n := a.Norm3()
	if n == 0 {
		return Vec4{0, 0, 0, 0}
	}
	return Vec4{a.X / n, a.Y / n, a.Z / n, 0}
}
