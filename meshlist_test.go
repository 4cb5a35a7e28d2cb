package viscull

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func leafWith(objs ...Object) *Node {
	n := &Node{leaf: true}
	for _, o := range objs {
		n.Objects = append(n.Objects, &VisObject{Object: o, box: o.BoundingBox()})
	}
	n.Box = EntitiesBox(n.Objects)
	return n
}

func TestBuildMeshListDepthOnly(t *testing.T) {
	plain := newFakeObject("plain", unitBoxAt(0, 0, 0))
	plain.setMeshes(
		Mesh{ZMode: ZBufUse},
		Mesh{ZMode: ZBufTest},
		Mesh{ZMode: ZBufEqual},
		Mesh{ZMode: ZBufUse, NullDepthShader: true},
		Mesh{ZMode: ZBufFill},
	)

	testsOnly := newFakeObject("tests", unitBoxAt(1, 0, 0))
	testsOnly.zmode = ZBufTest
	testsOnly.setMeshes(Mesh{ZMode: ZBufUse})

	portal := newFakeObject("portal", unitBoxAt(2, 0, 0))
	portal.flags = FlagPortal
	portal.setMeshes(Mesh{ZMode: ZBufUse})

	list := buildMeshList(leafWith(plain, testsOnly, portal), nil, 0)
	require.NotNil(t, list)
	require.Equal(t, 7, list.Len())

	var depthOnly []bool
	list.Each(func(_ Object, _ Mesh, d bool) {
		depthOnly = append(depthOnly, d)
	})
	require.Equal(t, []bool{false, true, true, true, false, true, true}, depthOnly)

	require.True(t, list.Portal)
	require.False(t, list.AlwaysVisible, "test only z modes still take part in queries")
	require.False(t, list.Queried)
}

func TestMarkRecheckOnly(t *testing.T) {
	o := newFakeObject("o", unitBoxAt(0, 0, 0))
	o.setMeshes(Mesh{ZMode: ZBufUse}, Mesh{ZMode: ZBufTest}, Mesh{ZMode: ZBufFill})

	list := buildMeshList(leafWith(o), nil, 0)
	require.False(t, list.IsDepthOnly(0))
	require.False(t, list.IsDepthOnly(2))

	list.markRecheckOnly()
	require.True(t, list.RecheckOnly)
	for i := 0; i < list.Len(); i++ {
		require.True(t, list.IsDepthOnly(i))
	}
}

func TestBuildMeshListAlwaysVisible(t *testing.T) {
	tests := []struct {
		name   string
		flags  ObjectFlags
		zmode  ZBufMode
		always bool
	}{
		{name: "plain", always: false},
		{name: "flagged", flags: FlagAlwaysVisible, always: true},
		{name: "no z buffer", zmode: ZBufNone, always: true},
		{name: "inverted z", zmode: ZBufInvert, always: true},
		{name: "z fill", zmode: ZBufFill, always: true},
		{name: "z test", zmode: ZBufTest, always: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			o := newFakeObject(test.name, unitBoxAt(0, 0, 0))
			o.flags = test.flags
			o.zmode = test.zmode

			list := buildMeshList(leafWith(o), nil, 0)
			require.Equal(t, test.always, list.AlwaysVisible)
		})
	}
}

func TestBuildMeshListSkipsInvisible(t *testing.T) {
	ghost := newFakeObject("ghost", unitBoxAt(0, 0, 0))
	ghost.flags = FlagInvisible

	empty := newFakeObject("empty", unitBoxAt(1, 0, 0))
	empty.meshes = []Mesh{}

	require.Nil(t, buildMeshList(leafWith(ghost, empty), nil, 0))

	plain := newFakeObject("plain", unitBoxAt(2, 0, 0))
	plain.priority = 3
	list := buildMeshList(leafWith(ghost, plain), nil, 0)
	require.Len(t, list.Meshes, 1)
	require.Same(t, plain, list.Meshes[0].Object)
	require.Equal(t, 3, list.RenderPriority)
}

func TestSortFrontToBack(t *testing.T) {
	mk := func(x float64, priority int, portal bool) *NodeMeshList {
		return &NodeMeshList{
			Node:           &Node{Box: unitBoxAt(x, 0, 0), leaf: true},
			RenderPriority: priority,
			Portal:         portal,
		}
	}

	near := mk(1, 0, false)
	far := mk(10, 0, false)
	late := mk(0, 5, false)
	portal := mk(0, 0, true)

	lists := []*NodeMeshList{portal, far, late, near}
	sortFrontToBack(lists, mgl64.Vec3{-5, 0, 0})

	require.Equal(t, []*NodeMeshList{near, far, late, portal}, lists)
}

func TestBitArray(t *testing.T) {
	b := newBitArray(130)
	require.Len(t, b, 3)

	b.Set(0, true)
	b.Set(64, true)
	b.Set(129, true)
	require.True(t, b.Get(0))
	require.True(t, b.Get(64))
	require.True(t, b.Get(129))
	require.False(t, b.Get(1))
	require.False(t, b.Get(500))
	require.False(t, b.Get(-1))

	b.Set(64, false)
	require.False(t, b.Get(64))
}
