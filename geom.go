package viscull

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type NodeVisibility int

const (
	NodeInvisible NodeVisibility = iota
	NodeVisible
	NodeInside
)

func (v NodeVisibility) String() string {
	switch v {
	case NodeInvisible:
		return "invisible"
	case NodeVisible:
		return "visible"
	case NodeInside:
		return "inside"
	default:
		return "unknown"
	}
}

// MaxPlanes is the number of planes a frustum mask can track.
const MaxPlanes = 32

type Box struct {
	Min, Max mgl64.Vec3
}

func NewBox(min, max mgl64.Vec3) Box {
	return Box{Min: min, Max: max}
}

// BoxAround returns the cube of half extent radius centered on pos.
func BoxAround(pos mgl64.Vec3, radius float64) Box {
	r := mgl64.Vec3{radius, radius, radius}
	return Box{Min: pos.Sub(r), Max: pos.Add(r)}
}

func (b Box) Intersects(b2 Box) bool {
	return (b.Max.X() >= b2.Min.X()) && (b.Min.X() <= b2.Max.X()) &&
		(b.Max.Y() >= b2.Min.Y()) && (b.Min.Y() <= b2.Max.Y()) &&
		(b.Max.Z() >= b2.Min.Z()) && (b.Min.Z() <= b2.Max.Z())
}

func (b Box) Equals(b2 Box) bool {
	return b.Min == b2.Min && b.Max == b2.Max
}

func (b Box) SurfaceArea() float64 {
	size := b.Max.Sub(b.Min)
	return 2.0 * (size.X()*size.Y() + size.X()*size.Z() + size.Y()*size.Z())
}

func (b Box) Expand(b2 Box) Box {
	newbox := b

	for i := 0; i < 3; i++ {
		if b2.Min[i] < newbox.Min[i] {
			newbox.Min[i] = b2.Min[i]
		}
		if b2.Max[i] > newbox.Max[i] {
			newbox.Max[i] = b2.Max[i]
		}
	}

	return newbox
}

// Contains reports whether b2 lies completely inside b.
func (b Box) Contains(b2 Box) bool {
	for i := 0; i < 3; i++ {
		if b2.Min[i] < b.Min[i] || b2.Max[i] > b.Max[i] {
			return false
		}
	}
	return true
}

func (b Box) ContainsPoint(p mgl64.Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

func (b Box) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b Box) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

// Degenerate reports a box with zero or negative extent on any axis.
func (b Box) Degenerate() bool {
	size := b.Size()
	for i := 0; i < 3; i++ {
		if size[i] <= 0 {
			return true
		}
	}
	return false
}

// SquaredPosDist is the squared distance from p to the closest point of b,
// zero when p is inside.
func (b Box) SquaredPosDist(p mgl64.Vec3) float64 {
	var d float64
	for i := 0; i < 3; i++ {
		switch {
		case p[i] < b.Min[i]:
			d += (b.Min[i] - p[i]) * (b.Min[i] - p[i])
		case p[i] > b.Max[i]:
			d += (p[i] - b.Max[i]) * (p[i] - b.Max[i])
		}
	}
	return d
}

// Plane is Normal·p + D = 0. Points with a positive distance are inside.
type Plane struct {
	Normal mgl64.Vec3
	D      float64
}

// PlaneFromPoint builds the plane through point facing normal.
func PlaneFromPoint(normal, point mgl64.Vec3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, D: -n.Dot(point)}
}

func (p Plane) Distance(v mgl64.Vec3) float64 {
	return p.Normal.Dot(v) + p.D
}

func (p Plane) Normalize() Plane {
	l := p.Normal.Len()
	if l == 0 {
		return p
	}
	return Plane{Normal: p.Normal.Mul(1 / l), D: p.D / l}
}

type Segment struct {
	Start, End mgl64.Vec3
}

func (s Segment) Direction() mgl64.Vec3 {
	return s.End.Sub(s.Start)
}

// ClassifyBox clips b against the planes selected by mask. The returned mask
// keeps only the planes b straddles, so descendants of b can skip the planes
// it is already fully inside of.
func ClassifyBox(b Box, planes []Plane, mask uint32) (NodeVisibility, uint32) {
	var newMask uint32

	for i, p := range planes {
		if i >= MaxPlanes {
			break
		}
		bit := uint32(1) << uint(i)
		if mask&bit == 0 {
			continue
		}

		var pv, nv mgl64.Vec3
		for a := 0; a < 3; a++ {
			if p.Normal[a] >= 0 {
				pv[a] = b.Max[a]
				nv[a] = b.Min[a]
			} else {
				pv[a] = b.Min[a]
				nv[a] = b.Max[a]
			}
		}

		if p.Distance(pv) < 0 {
			return NodeInvisible, 0
		}
		if p.Distance(nv) < 0 {
			newMask |= bit
		}
	}

	if newMask == 0 {
		return NodeInside, 0
	}
	return NodeVisible, newMask
}

// BoxFrustum reports whether b is at least partially inside every plane in mask.
func BoxFrustum(b Box, planes []Plane, mask uint32) (bool, uint32) {
	vis, newMask := ClassifyBox(b, planes, mask)
	return vis != NodeInvisible, newMask
}

// FullMask selects every plane of a plane set of length n.
func FullMask(n int) uint32 {
	if n >= MaxPlanes {
		return math.MaxUint32
	}
	return uint32(1)<<uint(n) - 1
}

func BoxSphere(b Box, center mgl64.Vec3, sqRadius float64) bool {
	return b.SquaredPosDist(center) <= sqRadius
}

// BoxSegment returns the first point where s enters b. A segment starting
// inside b hits at its start.
func BoxSegment(b Box, s Segment) (mgl64.Vec3, bool) {
	dir := s.Direction()
	tmin, tmax := 0.0, 1.0

	for a := 0; a < 3; a++ {
		if math.Abs(dir[a]) < 1e-12 {
			if s.Start[a] < b.Min[a] || s.Start[a] > b.Max[a] {
				return mgl64.Vec3{}, false
			}
			continue
		}

		inv := 1 / dir[a]
		t1 := (b.Min[a] - s.Start[a]) * inv
		t2 := (b.Max[a] - s.Start[a]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return mgl64.Vec3{}, false
		}
	}

	return s.Start.Add(dir.Mul(tmin)), true
}

// ExtractFrustum extracts the 6 planes of the frustum from the view-projection
// matrix in the order left, right, bottom, top, near, far. Normals point
// inside and are normalized.
func ExtractFrustum(vp mgl64.Mat4) [6]Plane {
	row := func(r int) mgl64.Vec4 {
		return mgl64.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	raw := [6]mgl64.Vec4{
		r3.Add(r0),
		r3.Sub(r0),
		r3.Add(r1),
		r3.Sub(r1),
		r3.Add(r2),
		r3.Sub(r2),
	}

	var planes [6]Plane
	for i, v := range raw {
		planes[i] = Plane{Normal: v.Vec3(), D: v.W()}.Normalize()
	}
	return planes
}
