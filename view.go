package viscull

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// ViewID keys the query cache. Two views never share occlusion history.
type ViewID = uuid.UUID

// View is a camera or any other point of view that runs VisTest.
type View interface {
	ID() ViewID
	Position() mgl64.Vec3

	// Planes bound the view volume, normals pointing inside. At most
	// MaxPlanes are used.
	Planes() []Plane
	PlaneMask() uint32
}

// Camera is a View built from a view-projection matrix.
type Camera struct {
	id       ViewID
	position mgl64.Vec3
	planes   [6]Plane
}

func NewCamera(position mgl64.Vec3, viewProj mgl64.Mat4) *Camera {
	c := &Camera{id: uuid.New()}
	c.Update(position, viewProj)
	return c
}

// Update moves the camera. Its identity and therefore its query history is
// kept.
func (c *Camera) Update(position mgl64.Vec3, viewProj mgl64.Mat4) {
	c.position = position
	c.planes = ExtractFrustum(viewProj)
}

func (c *Camera) ID() ViewID {
	return c.id
}

func (c *Camera) Position() mgl64.Vec3 {
	return c.position
}

func (c *Camera) Planes() []Plane {
	return c.planes[:]
}

func (c *Camera) PlaneMask() uint32 {
	return FullMask(len(c.planes))
}

// LookAtCamera is a convenience for a perspective camera at eye looking at
// center.
func LookAtCamera(eye, center mgl64.Vec3, fovy, aspect, near, far float64) *Camera {
	return NewCamera(eye, viewProjection(eye, center, fovy, aspect, near, far))
}

func viewProjection(eye, center mgl64.Vec3, fovy, aspect, near, far float64) mgl64.Mat4 {
	proj := mgl64.Perspective(mgl64.DegToRad(fovy), aspect, near, far)
	view := mgl64.LookAtV(eye, center, mgl64.Vec3{0, 1, 0})
	return proj.Mul4(view)
}

// UpdateLookAt re-aims a camera created by LookAtCamera.
func (c *Camera) UpdateLookAt(eye, center mgl64.Vec3, fovy, aspect, near, far float64) {
	c.Update(eye, viewProjection(eye, center, fovy, aspect, near, far))
}
