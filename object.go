package viscull

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
	log "github.com/sirupsen/logrus"
)

type ObjectFlags uint32

const (
	// FlagInvisible objects are never reported visible.
	FlagInvisible ObjectFlags = 1 << iota
	// FlagAlwaysVisible skips occlusion testing for the leaf holding the object.
	FlagAlwaysVisible
	// FlagNoHitBeam objects are ignored by segment picking.
	FlagNoHitBeam
	// FlagPortal objects only test depth and are drawn after everything else.
	FlagPortal
)

func (f ObjectFlags) Has(flag ObjectFlags) bool {
	return f&flag != 0
}

// ZBufMode is the depth buffer usage of an object or mesh.
type ZBufMode int

const (
	ZBufUse ZBufMode = iota
	ZBufNone
	ZBufFill
	ZBufTest
	ZBufEqual
	ZBufInvert
)

func (m ZBufMode) String() string {
	switch m {
	case ZBufUse:
		return "use"
	case ZBufNone:
		return "none"
	case ZBufFill:
		return "fill"
	case ZBufTest:
		return "test"
	case ZBufEqual:
		return "equal"
	case ZBufInvert:
		return "invert"
	default:
		return "?"
	}
}

// overridesDepth reports the modes that make a leaf unusable as an occluder
// test, the leaf is then drawn without a query.
func (m ZBufMode) overridesDepth() bool {
	return m == ZBufNone || m == ZBufInvert || m == ZBufFill
}

// testsOnly reports the modes that never write depth.
func (m ZBufMode) testsOnly() bool {
	return m == ZBufNone || m == ZBufInvert || m == ZBufTest || m == ZBufEqual
}

// Mesh is one render batch of an object.
type Mesh struct {
	ZMode ZBufMode

	// NullDepthShader is set when the depth write pass of the mesh does
	// nothing, so it cannot occlude.
	NullDepthShader bool

	Data any
}

// Object is a renderable scene object.
type Object interface {
	BoundingBox() Box
	Flags() ObjectFlags
	ZBufMode() ZBufMode
	RenderPriority() int

	// VisibleMeshes returns the meshes to draw for view. frustumMask holds the
	// planes the object's node still straddles.
	VisibleMeshes(view View, frustumMask uint32) []Mesh
}

// Movable objects are positioned by a transform. Segment picking tests them
// in object space.
type Movable interface {
	Transform() mgl64.Mat4
}

// BeamHitter objects can be intersected exactly by segment picking. Start
// and end are in object space.
type BeamHitter interface {
	HitBeamObject(start, end mgl64.Vec3) (isect mgl64.Vec3, r float64, polygon int, ok bool)
	HitBeamOutline(start, end mgl64.Vec3) (isect mgl64.Vec3, r float64, ok bool)
}

// ShapeVersioned objects count their shape changes. The culler polls the
// counter at the start of each frame.
type ShapeVersioned interface {
	ShapeNumber() uint64
}

type ChangeListener interface {
	ObjectModelChanged()
	MovableChanged()
}

// Observable objects push their changes to listeners.
type Observable interface {
	AddChangeListener(ChangeListener)
	RemoveChangeListener(ChangeListener)
}

// VisObject attaches an Object to the culler's tree. It caches the bounds the
// tree last saw.
type VisObject struct {
	Object Object

	c     *Culler
	box   Box
	shape uint64
}

func (v *VisObject) Bounds() Box {
	return v.box
}

// NotifyShapeChanged must be called when the geometry of the object changed.
// Every cached result of the leaf holding it is invalid when it returns.
func (v *VisObject) NotifyShapeChanged() error {
	if s, ok := v.Object.(ShapeVersioned); ok {
		v.shape = s.ShapeNumber()
	}
	return v.update()
}

// NotifyTransformChanged must be called when the object moved.
func (v *VisObject) NotifyTransformChanged() error {
	return v.update()
}

func (v *VisObject) update() error {
	old, hadLeaf := v.c.tree.GetLeaf(v)
	v.box = v.Object.BoundingBox()

	if err := v.c.tree.Update(v); err != nil {
		return errors.New("tree rejected object update").
			WithType(ErrTypeUpdateRejected).
			Wrap(err)
	}

	if hadLeaf && !old.free {
		// The object may have been re-homed, its old leaf lost content.
		v.c.invalidateUp(old)
	}
	if n, ok := v.c.tree.GetLeaf(v); ok {
		v.c.invalidateUp(n)
	}
	return nil
}

func (v *VisObject) ObjectModelChanged() {
	if err := v.NotifyShapeChanged(); err != nil {
		v.c.logger.WithError(err).Error("shape change rejected")
	}
}

func (v *VisObject) MovableChanged() {
	if err := v.NotifyTransformChanged(); err != nil {
		v.c.logger.WithError(err).Error("transform change rejected")
	}
}

// shapeDrifted reports whether a ShapeVersioned object changed since it was
// last seen.
func (v *VisObject) shapeDrifted() bool {
	s, ok := v.Object.(ShapeVersioned)
	if !ok {
		return false
	}
	return s.ShapeNumber() != v.shape
}

var _ ChangeListener = (*VisObject)(nil)
var _ Entity = (*VisObject)(nil)

func logFields(o Object) log.Fields {
	b := o.BoundingBox()
	return log.Fields{
		"min": b.Min,
		"max": b.Max,
	}
}
