package viscull

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

type ObjectMeshes struct {
	Object Object
	Meshes []Mesh
}

// NodeMeshList is the render batch of one visible leaf for one view. It is
// rebuilt every frame the leaf is reached.
type NodeMeshList struct {
	Node   *Node
	Meshes []ObjectMeshes

	// DepthOnly has one bit per mesh in Meshes order. A set bit means the
	// mesh tests depth but never writes it.
	DepthOnly bitArray

	// AlwaysVisible lists are drawn without an occlusion query.
	AlwaysVisible bool

	// Queried is set when the list is the proxy geometry of a query issued
	// this frame.
	Queried bool

	// RecheckOnly is set when the node was hidden and is drawn only to
	// refresh its query. Every mesh of such a list is depth-only.
	RecheckOnly bool

	Portal         bool
	RenderPriority int

	numMeshes int
}

func (l *NodeMeshList) Len() int {
	return l.numMeshes
}

func (l *NodeMeshList) IsDepthOnly(i int) bool {
	return l.DepthOnly.Get(i)
}

// Each calls fn for every mesh of the list in draw order.
func (l *NodeMeshList) Each(fn func(obj Object, m Mesh, depthOnly bool)) {
	i := 0
	for _, om := range l.Meshes {
		for _, m := range om.Meshes {
			fn(om.Object, m, l.DepthOnly.Get(i))
			i++
		}
	}
}

// buildMeshList gathers the meshes of the objects in leaf for view. It
// returns nil when nothing in the leaf has anything to draw.
func buildMeshList(leaf *Node, view View, frustumMask uint32) *NodeMeshList {
	l := &NodeMeshList{Node: leaf}
	first := true

	for _, e := range leaf.Objects {
		v, ok := e.(*VisObject)
		if !ok {
			continue
		}

		obj := v.Object
		flags := obj.Flags()
		if flags.Has(FlagInvisible) {
			continue
		}

		meshes := obj.VisibleMeshes(view, frustumMask)
		if len(meshes) == 0 {
			continue
		}

		if first {
			l.RenderPriority = obj.RenderPriority()
			first = false
		}
		if flags.Has(FlagAlwaysVisible) || obj.ZBufMode().overridesDepth() {
			l.AlwaysVisible = true
		}
		if flags.Has(FlagPortal) {
			l.Portal = true
		}

		l.Meshes = append(l.Meshes, ObjectMeshes{Object: obj, Meshes: meshes})
		l.numMeshes += len(meshes)
	}

	if l.numMeshes == 0 {
		return nil
	}

	l.DepthOnly = newBitArray(l.numMeshes)

	i := 0
	for _, om := range l.Meshes {
		never := om.Object.Flags().Has(FlagPortal) || om.Object.ZBufMode().testsOnly()

		for _, m := range om.Meshes {
			l.DepthOnly.Set(i, never || m.ZMode.testsOnly() || m.NullDepthShader)
			i++
		}
	}

	return l
}

func (l *NodeMeshList) markRecheckOnly() {
	l.RecheckOnly = true
	for i := 0; i < l.numMeshes; i++ {
		l.DepthOnly.Set(i, true)
	}
}

// sortFrontToBack orders lists for drawing: portals last, then by render
// priority, then by distance from pos to the node.
func sortFrontToBack(lists []*NodeMeshList, pos mgl64.Vec3) {
	sort.SliceStable(lists, func(i, j int) bool {
		a, b := lists[i], lists[j]

		if a.Portal != b.Portal {
			return b.Portal
		}
		if a.RenderPriority != b.RenderPriority {
			return a.RenderPriority < b.RenderPriority
		}
		return a.Node.Box.SquaredPosDist(pos) < b.Node.Box.SquaredPosDist(pos)
	})
}

type bitArray []uint64

func newBitArray(n int) bitArray {
	return make(bitArray, (n+63)/64)
}

func (b bitArray) Set(i int, v bool) {
	if v {
		b[i/64] |= 1 << uint(i%64)
	} else {
		b[i/64] &^= 1 << uint(i%64)
	}
}

func (b bitArray) Get(i int) bool {
	if i < 0 || i/64 >= len(b) {
		return false
	}
	return b[i/64]&(1<<uint(i%64)) != 0
}
