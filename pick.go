package viscull

import (
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
)

// ObjectFunc receives the objects found by a listener style picking call.
type ObjectFunc func(obj Object, frustumMask uint32)

// ObjectIterator walks the result of a picking call. Close hands its buffer
// back to the culler, iterators that are not closed make later calls
// allocate.
type ObjectIterator struct {
	objs []Object
	pos  int

	pool *scratchPool
}

func (it *ObjectIterator) HasNext() bool {
	return it.pos < len(it.objs)
}

func (it *ObjectIterator) Next() Object {
	o := it.objs[it.pos]
	it.pos++
	return o
}

func (it *ObjectIterator) Reset() {
	it.pos = 0
}

func (it *ObjectIterator) Len() int {
	return len(it.objs)
}

func (it *ObjectIterator) Close() {
	if it.pool != nil {
		it.pool.release(it.objs)
		it.pool = nil
	}
	it.objs = nil
	it.pos = 0
}

// scratchPool is the single shared result buffer of the picking calls. A
// call finding it in use works on a private buffer.
type scratchPool struct {
	inUse atomic.Bool
	buf   []Object
}

func (p *scratchPool) acquire() ([]Object, *scratchPool) {
	if p.inUse.CompareAndSwap(false, true) {
		return p.buf[:0], p
	}
	return make([]Object, 0, 16), nil
}

func (p *scratchPool) release(buf []Object) {
	clear(buf)
	p.buf = buf[:0]
	p.inUse.Store(false)
}

func (c *Culler) iterator(collect func([]Object) []Object) *ObjectIterator {
	buf, pool := c.scratch.acquire()
	return &ObjectIterator{objs: collect(buf), pool: pool}
}

// collect appends the objects of every leaf under n accepted by node and
// whose bounds pass object.
func collect(n *Node, node HitTest, object HitTest, dst []Object) []Object {
	if n.IsEmpty() || !node(n.Box) {
		return dst
	}

	if !n.IsLeaf() {
		dst = collect(n.Left, node, object, dst)
		return collect(n.Right, node, object, dst)
	}

	for _, e := range n.Objects {
		if v, ok := e.(*VisObject); ok && object(v.box) {
			dst = append(dst, v.Object)
		}
	}
	return dst
}

// TestBox returns the objects intersecting box. A degenerate box finds
// nothing.
func (c *Culler) TestBox(box Box) *ObjectIterator {
	if box.Degenerate() {
		return &ObjectIterator{}
	}

	return c.iterator(func(dst []Object) []Object {
		return collect(c.tree.Root(), box.Intersects, box.Intersects, dst)
	})
}

// TestSphere returns the objects intersecting the sphere. A radius of zero
// or less finds nothing.
func (c *Culler) TestSphere(center mgl64.Vec3, radius float64) *ObjectIterator {
	if radius <= 0 {
		return &ObjectIterator{}
	}

	sq := radius * radius
	test := func(b Box) bool {
		return BoxSphere(b, center, sq)
	}

	return c.iterator(func(dst []Object) []Object {
		return collect(c.tree.Root(), test, test, dst)
	})
}

// TestPlanes returns the objects at least partially inside every plane.
func (c *Culler) TestPlanes(planes []Plane) *ObjectIterator {
	return c.iterator(func(dst []Object) []Object {
		c.planes(c.tree.Root(), planes, FullMask(len(planes)), func(obj Object, _ uint32) {
			dst = append(dst, obj)
		})
		return dst
	})
}

// VisTestSphereFunc calls fn for every object intersecting the sphere.
func (c *Culler) VisTestSphereFunc(center mgl64.Vec3, radius float64, fn ObjectFunc) {
	if radius <= 0 {
		return
	}

	sq := radius * radius
	c.walkObjects(c.tree.Root(), func(b Box) bool { return BoxSphere(b, center, sq) }, func(v *VisObject) {
		if BoxSphere(v.box, center, sq) {
			fn(v.Object, 0)
		}
	})
}

// VisTestPlanesFunc calls fn for every object at least partially inside
// every plane, with the mask of the planes the object straddles.
func (c *Culler) VisTestPlanesFunc(planes []Plane, fn ObjectFunc) {
	c.planes(c.tree.Root(), planes, FullMask(len(planes)), fn)
}

func (c *Culler) planes(n *Node, planes []Plane, mask uint32, fn ObjectFunc) {
	if n.IsEmpty() {
		return
	}

	if mask != 0 {
		vis, newMask := ClassifyBox(n.Box, planes, mask)
		if vis == NodeInvisible {
			return
		}
		mask = newMask
	}

	if !n.IsLeaf() {
		c.planes(n.Left, planes, mask, fn)
		c.planes(n.Right, planes, mask, fn)
		return
	}

	for _, e := range n.Objects {
		v, ok := e.(*VisObject)
		if !ok {
			continue
		}

		objMask := mask
		if objMask != 0 {
			vis, m := ClassifyBox(v.box, planes, objMask)
			if vis == NodeInvisible {
				continue
			}
			objMask = m
		}
		fn(v.Object, objMask)
	}
}

func (c *Culler) walkObjects(n *Node, node HitTest, fn func(*VisObject)) {
	if n.IsEmpty() || !node(n.Box) {
		return
	}

	if !n.IsLeaf() {
		c.walkObjects(n.Left, node, fn)
		c.walkObjects(n.Right, node, fn)
		return
	}

	for _, e := range n.Objects {
		if v, ok := e.(*VisObject); ok {
			fn(v)
		}
	}
}

// SegmentHit is the nearest intersection of a segment. Point is in world
// space and Ratio is its position along the segment from start. Polygon is
// -1 unless the object was hit exactly.
type SegmentHit struct {
	Object  Object
	Point   mgl64.Vec3
	Ratio   float64
	Polygon int
}

// IntersectSegment returns the object hit first by the segment. accurate
// tests the polygons of BeamHitter objects instead of their outline.
// Objects flagged FlagNoHitBeam are ignored.
func (c *Culler) IntersectSegment(start, end mgl64.Vec3, accurate bool) (SegmentHit, bool) {
	seg := Segment{Start: start, End: end}
	best := SegmentHit{Ratio: math.MaxFloat64, Polygon: -1}
	found := false
	sqdist := math.MaxFloat64

	c.walkSegment(seg, &sqdist, func(v *VisObject) {
		hit, ok := hitObject(v, seg, accurate)
		if !ok || hit.Ratio >= best.Ratio {
			return
		}

		best = hit
		found = true
		sqdist = hit.Point.Sub(start).LenSqr()
	})

	if !found {
		return SegmentHit{Polygon: -1}, false
	}
	return best, true
}

// IntersectSegmentAll returns every object hit by the segment.
func (c *Culler) IntersectSegmentAll(start, end mgl64.Vec3, accurate bool) *ObjectIterator {
	seg := Segment{Start: start, End: end}
	sqdist := math.MaxFloat64

	return c.iterator(func(dst []Object) []Object {
		c.walkSegment(seg, &sqdist, func(v *VisObject) {
			if _, ok := hitObject(v, seg, accurate); ok {
				dst = append(dst, v.Object)
			}
		})
		return dst
	})
}

// IntersectSegmentSloppy returns the objects whose bounding box the segment
// crosses.
func (c *Culler) IntersectSegmentSloppy(start, end mgl64.Vec3) *ObjectIterator {
	seg := Segment{Start: start, End: end}
	test := func(b Box) bool {
		_, ok := BoxSegment(b, seg)
		return ok
	}

	return c.iterator(func(dst []Object) []Object {
		return collect(c.tree.Root(), test, test, dst)
	})
}

// walkSegment visits the objects of the leaves crossed by seg, ordered along
// it. Nodes entered further from the start than sqdist are pruned.
func (c *Culler) walkSegment(seg Segment, sqdist *float64, fn func(*VisObject)) {
	crossed := func(n *Node) bool {
		p, ok := BoxSegment(n.Box, seg)
		return ok && p.Sub(seg.Start).LenSqr() <= *sqdist
	}

	c.tree.TraverseF2B(seg.Direction(), crossed, func(n *Node) {
		if !crossed(n) {
			return
		}
		for _, e := range n.Objects {
			v, ok := e.(*VisObject)
			if !ok || v.Object.Flags().Has(FlagNoHitBeam) {
				continue
			}
			fn(v)
		}
	})
}

func hitObject(v *VisObject, seg Segment, accurate bool) (SegmentHit, bool) {
	p, ok := BoxSegment(v.box, seg)
	if !ok {
		return SegmentHit{}, false
	}

	bh, exact := v.Object.(BeamHitter)
	if !exact {
		return SegmentHit{Object: v.Object, Point: p, Ratio: segmentRatio(seg, p), Polygon: -1}, true
	}

	start, end := seg.Start, seg.End
	var toWorld mgl64.Mat4
	m, movable := v.Object.(Movable)
	if movable {
		toWorld = m.Transform()
		toObject := toWorld.Inv()
		start = mgl64.TransformCoordinate(start, toObject)
		end = mgl64.TransformCoordinate(end, toObject)
	}

	var (
		isect   mgl64.Vec3
		r       float64
		polygon = -1
	)
	if accurate {
		isect, r, polygon, ok = bh.HitBeamObject(start, end)
	} else {
		isect, r, ok = bh.HitBeamOutline(start, end)
	}
	if !ok {
		return SegmentHit{}, false
	}

	if movable {
		isect = mgl64.TransformCoordinate(isect, toWorld)
	}

	return SegmentHit{Object: v.Object, Point: isect, Ratio: r, Polygon: polygon}, true
}

func segmentRatio(seg Segment, p mgl64.Vec3) float64 {
	l := seg.Direction().Len()
	if l == 0 {
		return 0
	}
	return p.Sub(seg.Start).Len() / l
}
