// Package geom provides the minimal 2D math types the renderer core needs:
// points/vectors, axis-aligned rectangles, and affine transforms.
//
// This is intentionally small. Vector/matrix/SIMD helpers are named as an
// external collaborator in the core's scope (math helpers are supplied by
// the embedder in a full system); this package exists only because the
// core's data model (outlines, tiles, fills) is expressed in terms of these
// few operations and a dependency-free core needs somewhere to put them.
package geom

import "math"

// Vec2 is a 2D point or vector.
type Vec2 struct {
	X, Y float32
}

// Add returns v+w.
func (v Vec2) Add(w Vec2) Vec2 { return Vec2{v.X + w.X, v.Y + w.Y} }

// Sub returns v-w.
func (v Vec2) Sub(w Vec2) Vec2 { return Vec2{v.X - w.X, v.Y - w.Y} }

// Scale returns v scaled by s.
func (v Vec2) Scale(s float32) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Mul returns the component-wise product of v and w.
func (v Vec2) Mul(w Vec2) Vec2 { return Vec2{v.X * w.X, v.Y * w.Y} }

// Div returns the component-wise quotient of v and w.
func (v Vec2) Div(w Vec2) Vec2 { return Vec2{v.X / w.X, v.Y / w.Y} }

// Dot returns the dot product of v and w.
func (v Vec2) Dot(w Vec2) float32 { return v.X*w.X + v.Y*w.Y }

// Cross returns the z-component of the 3D cross product of v and w.
func (v Vec2) Cross(w Vec2) float32 { return v.X*w.Y - v.Y*w.X }

// Length returns the Euclidean length of v.
func (v Vec2) Length() float32 { return float32(math.Sqrt(float64(v.Dot(v)))) }

// Normalize returns v scaled to unit length; the zero vector maps to itself.
func (v Vec2) Normalize() Vec2 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Perp returns v rotated 90 degrees counter-clockwise.
func (v Vec2) Perp() Vec2 { return Vec2{-v.Y, v.X} }

// Lerp returns the linear interpolation between v and w at parameter t.
func (v Vec2) Lerp(w Vec2, t float32) Vec2 {
	return Vec2{lerp(v.X, w.X, t), lerp(v.Y, w.Y, t)}
}

// Floor returns v with both components floored.
func (v Vec2) Floor() Vec2 { return Vec2{float32(math.Floor(float64(v.X))), float32(math.Floor(float64(v.Y)))} }

// Abs returns v with both components made non-negative.
func (v Vec2) Abs() Vec2 { return Vec2{float32(math.Abs(float64(v.X))), float32(math.Abs(float64(v.Y)))} }

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

// Vec2I is an integer 2D point, used for tile coordinates.
type Vec2I struct {
	X, Y int32
}

// Add returns v+w.
func (v Vec2I) Add(w Vec2I) Vec2I { return Vec2I{v.X + w.X, v.Y + w.Y} }

// ToF32 converts v to floating point.
func (v Vec2I) ToF32() Vec2 { return Vec2{float32(v.X), float32(v.Y)} }

// Rect is an axis-aligned rectangle, [MinX,MinY]-[MaxX,MaxY].
type Rect struct {
	MinX, MinY, MaxX, MaxY float32
}

// NewRect builds a rect from an origin and size.
func NewRect(x, y, w, h float32) Rect { return Rect{x, y, x + w, y + h} }

// Width returns the rect's width.
func (r Rect) Width() float32 { return r.MaxX - r.MinX }

// Height returns the rect's height.
func (r Rect) Height() float32 { return r.MaxY - r.MinY }

// IsEmpty reports whether the rect has non-positive area.
func (r Rect) IsEmpty() bool { return r.MaxX <= r.MinX || r.MaxY <= r.MinY }

// Union returns the smallest rect containing both r and o.
func (r Rect) Union(o Rect) Rect {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	return Rect{
		MinX: min32(r.MinX, o.MinX),
		MinY: min32(r.MinY, o.MinY),
		MaxX: max32(r.MaxX, o.MaxX),
		MaxY: max32(r.MaxY, o.MaxY),
	}
}

// Intersection returns the overlap of r and o. The result may be empty.
func (r Rect) Intersection(o Rect) Rect {
	return Rect{
		MinX: max32(r.MinX, o.MinX),
		MinY: max32(r.MinY, o.MinY),
		MaxX: min32(r.MaxX, o.MaxX),
		MaxY: min32(r.MaxY, o.MaxY),
	}
}

// Contains reports whether p lies within r (inclusive of edges).
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// Affine is a 2D affine transform with matrix [a c tx; b d ty]:
// x' = a*x + c*y + tx, y' = b*x + d*y + ty.
type Affine struct {
	A, B, C, D, TX, TY float32
}

// Identity returns the identity transform.
func Identity() Affine { return Affine{A: 1, D: 1} }

// Translation returns a pure translation transform.
func Translation(v Vec2) Affine { return Affine{A: 1, D: 1, TX: v.X, TY: v.Y} }

// Scaling returns a pure scale transform.
func Scaling(sx, sy float32) Affine { return Affine{A: sx, D: sy} }

// Apply transforms a point by the affine.
func (m Affine) Apply(p Vec2) Vec2 {
	return Vec2{
		X: m.A*p.X + m.C*p.Y + m.TX,
		Y: m.B*p.X + m.D*p.Y + m.TY,
	}
}

// ApplyVector transforms a vector (ignores translation).
func (m Affine) ApplyVector(v Vec2) Vec2 {
	return Vec2{X: m.A*v.X + m.C*v.Y, Y: m.B*v.X + m.D*v.Y}
}

// Mul composes m then n: (m.Mul(n)).Apply(p) == n.Apply(m.Apply(p)).
func (m Affine) Mul(n Affine) Affine {
	return Affine{
		A:  n.A*m.A + n.C*m.B,
		B:  n.B*m.A + n.D*m.B,
		C:  n.A*m.C + n.C*m.D,
		D:  n.B*m.C + n.D*m.D,
		TX: n.A*m.TX + n.C*m.TY + n.TX,
		TY: n.B*m.TX + n.D*m.TY + n.TY,
	}
}

// IsIdentity reports whether m is (very close to) the identity transform.
func (m Affine) IsIdentity() bool {
	const eps = 1e-6
	return absf(m.A-1) < eps && absf(m.B) < eps && absf(m.C) < eps &&
		absf(m.D-1) < eps && absf(m.TX) < eps && absf(m.TY) < eps
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// CeilDiv rounds a/b up for positive integers, matching the core's
// framebuffer_tile_size = ceil_div(dest_size, 16) computation.
func CeilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// RectI is an integer rectangle, [MinX,MinY)-[MaxX,MaxY), used for tile
// grids (half-open on the max edge like the tile maps it indexes).
type RectI struct {
	MinX, MinY, MaxX, MaxY int32
}

// Width returns the rect's width in whole units.
func (r RectI) Width() int32 { return r.MaxX - r.MinX }

// Height returns the rect's height in whole units.
func (r RectI) Height() int32 { return r.MaxY - r.MinY }

// Area returns Width*Height; zero or negative extents count as empty.
func (r RectI) Area() int32 {
	if r.Width() <= 0 || r.Height() <= 0 {
		return 0
	}
	return r.Width() * r.Height()
}

// ContainsPoint reports whether p lies inside the half-open rect.
func (r RectI) ContainsPoint(p Vec2I) bool {
	return p.X >= r.MinX && p.X < r.MaxX && p.Y >= r.MinY && p.Y < r.MaxY
}

// IntersectionI returns the overlap of r and o, possibly empty.
func (r RectI) IntersectionI(o RectI) RectI {
	out := RectI{
		MinX: maxI32(r.MinX, o.MinX),
		MinY: maxI32(r.MinY, o.MinY),
		MaxX: minI32(r.MaxX, o.MaxX),
		MaxY: minI32(r.MaxY, o.MaxY),
	}
	if out.MaxX < out.MinX {
		out.MaxX = out.MinX
	}
	if out.MaxY < out.MinY {
		out.MaxY = out.MinY
	}
	return out
}

// UnionI returns the smallest rect containing both r and o, treating
// zero-area rects as empty.
func (r RectI) UnionI(o RectI) RectI {
	if r.Area() == 0 {
		return o
	}
	if o.Area() == 0 {
		return r
	}
	return RectI{
		MinX: minI32(r.MinX, o.MinX),
		MinY: minI32(r.MinY, o.MinY),
		MaxX: maxI32(r.MaxX, o.MaxX),
		MaxY: maxI32(r.MaxY, o.MaxY),
	}
}

func minI32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxI32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// TileRectForBounds returns the tile-coordinate rect covering a pixel-space
// rect, for a square tile of the given size.
func TileRectForBounds(b Rect, tileSize int32) RectI {
	return RectI{
		MinX: int32(math.Floor(float64(b.MinX) / float64(tileSize))),
		MinY: int32(math.Floor(float64(b.MinY) / float64(tileSize))),
		MaxX: int32(math.Ceil(float64(b.MaxX) / float64(tileSize))),
		MaxY: int32(math.Ceil(float64(b.MaxY) / float64(tileSize))),
	}
}

// Inverse returns the inverse transform. A singular transform (zero
// determinant) inverts to the identity, matching how the palette treats a
// degenerate pattern transform: sampling proceeds, just unhelpfully.
func (m Affine) Inverse() Affine {
	det := m.A*m.D - m.B*m.C
	if det == 0 {
		return Identity()
	}
	inv := 1 / det
	out := Affine{
		A: m.D * inv,
		B: -m.B * inv,
		C: -m.C * inv,
		D: m.A * inv,
	}
	out.TX = -(out.A*m.TX + out.C*m.TY)
	out.TY = -(out.B*m.TX + out.D*m.TY)
	return out
}
