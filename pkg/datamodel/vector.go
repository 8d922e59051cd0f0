package datamodel

// a position (or displacement) in the simulation's cartesian space
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// component-wise difference v - o
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// component-wise sum v + o
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// scalar product
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// squared euclidean length.  Proximity checks compare squared quantities,
// so no square root is ever needed on the hot path.
func (v Vec3) Len2() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// squared euclidean distance between two points
func Dist2(a, b Vec3) float64 {
	return a.Sub(b).Len2()
}

// linear interpolation from a toward b by fraction t
func Lerp(a, b Vec3, t float64) Vec3 {
	return a.Add(b.Sub(a).Scale(t))
}

// midpoint of two points
func Midpoint(a, b Vec3) Vec3 {
	return Lerp(a, b, 0.5)
}
