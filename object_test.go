package viscull

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func TestCameraKeepsIdentity(t *testing.T) {
	cam := LookAtCamera(mgl64.Vec3{0, 0, 10}, mgl64.Vec3{}, 60, 1, 0.1, 100)
	id := cam.ID()

	require.Len(t, cam.Planes(), 6)
	require.Equal(t, uint32(0x3f), cam.PlaneMask())

	vis, _ := ClassifyBox(unitBoxAt(0, 0, 20), cam.Planes(), cam.PlaneMask())
	require.Equal(t, NodeInvisible, vis)
	vis, _ = ClassifyBox(unitBoxAt(0, 0, 0), cam.Planes(), cam.PlaneMask())
	require.Equal(t, NodeInside, vis)

	cam.UpdateLookAt(mgl64.Vec3{0, 0, -10}, mgl64.Vec3{}, 60, 1, 0.1, 100)
	require.Equal(t, id, cam.ID())
	require.Equal(t, mgl64.Vec3{0, 0, -10}, cam.Position())

	vis, _ = ClassifyBox(unitBoxAt(0, 0, -20), cam.Planes(), cam.PlaneMask())
	require.Equal(t, NodeInvisible, vis)
	vis, _ = ClassifyBox(unitBoxAt(0, 0, 20), cam.Planes(), cam.PlaneMask())
	require.Equal(t, NodeInside, vis)

	require.NotEqual(t, id, LookAtCamera(mgl64.Vec3{0, 0, 10}, mgl64.Vec3{}, 60, 1, 0.1, 100).ID())
}

func TestVisObjectBoundsAreCached(t *testing.T) {
	c := newTestCuller(t, newFakeDevice(), DefaultConfig())
	o := newFakeObject("o", unitBoxAt(0, 0, 0))
	v := register(t, c, o)[0]

	o.moveTo(unitBoxAt(5, 0, 0))
	require.Equal(t, unitBoxAt(0, 0, 0), v.Bounds())

	require.NoError(t, v.NotifyTransformChanged())
	require.Equal(t, unitBoxAt(5, 0, 0), v.Bounds())
	require.True(t, c.Tree().Root().Box.Equals(unitBoxAt(5, 0, 0)))
}

func TestVisObjectShapeCounter(t *testing.T) {
	c := newTestCuller(t, newFakeDevice(), DefaultConfig())
	o := newFakeObject("o", unitBoxAt(0, 0, 0))
	o.shape = 3
	v := register(t, c, o)[0]

	require.False(t, v.shapeDrifted())
	o.shape = 4
	require.True(t, v.shapeDrifted())

	o.listeners[0].ObjectModelChanged()
	require.False(t, v.shapeDrifted())
}

func TestVisObjectUpdateAfterUnregister(t *testing.T) {
	c := newTestCuller(t, newFakeDevice(), DefaultConfig())
	o := newFakeObject("o", unitBoxAt(0, 0, 0))
	v := register(t, c, o)[0]
	require.NoError(t, c.Unregister(o))

	err := v.NotifyTransformChanged()
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeUpdateRejected))

	// Listener callbacks only log.
	v.MovableChanged()
}

func TestObjectFlagsHas(t *testing.T) {
	f := FlagPortal | FlagNoHitBeam
	require.True(t, f.Has(FlagPortal))
	require.True(t, f.Has(FlagNoHitBeam))
	require.False(t, f.Has(FlagInvisible))
}
