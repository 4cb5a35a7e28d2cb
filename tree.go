package viscull

import (
	"math"
	"sort"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
	log "github.com/sirupsen/logrus"
)

type Axis int
type Rot int
type NodeState int

const (
	X Axis = iota
	Y
	Z
)

const (
	RotNone Rot = iota
	LeftRightLeft
	LeftRightRight
	RightLeftLeft
	RightLeftRight
	LeftLeftRightRight
	LeftLeftRightLeft
)

const (
	OptimizationQueued NodeState = 1 << iota
)

type RotOpt struct {
	Rot Rot
	SA  float64
}

func (best *RotOpt) FindBestRotation(n *Node, r Rot) {
	new := GetRotationSurfaceArea(n, r)

	if new.SA < best.SA {
		best.Rot = new.Rot
		best.SA = new.SA
	}
}

// GetRotationSurfaceArea is the summed surface area of the children of n
// after applying rot.
func GetRotationSurfaceArea(n *Node, rot Rot) RotOpt {
	none := RotOpt{RotNone, math.MaxFloat64}

	switch rot {
	case LeftRightLeft:
		if n.Right.IsLeaf() {
			return none
		}
		return RotOpt{rot, n.Right.Left.Box.SurfaceArea() + n.Left.Box.Expand(n.Right.Right.Box).SurfaceArea()}
	case LeftRightRight:
		if n.Right.IsLeaf() {
			return none
		}
		return RotOpt{rot, n.Right.Right.Box.SurfaceArea() + n.Left.Box.Expand(n.Right.Left.Box).SurfaceArea()}
	case RightLeftLeft:
		if n.Left.IsLeaf() {
			return none
		}
		return RotOpt{rot, n.Left.Left.Box.SurfaceArea() + n.Right.Box.Expand(n.Left.Right.Box).SurfaceArea()}
	case RightLeftRight:
		if n.Left.IsLeaf() {
			return none
		}
		return RotOpt{rot, n.Left.Right.Box.SurfaceArea() + n.Right.Box.Expand(n.Left.Left.Box).SurfaceArea()}
	case LeftLeftRightRight:
		if n.Left.IsLeaf() || n.Right.IsLeaf() {
			return none
		}
		return RotOpt{rot, n.Right.Right.Box.Expand(n.Left.Right.Box).SurfaceArea() + n.Right.Left.Box.Expand(n.Left.Left.Box).SurfaceArea()}
	case LeftLeftRightLeft:
		if n.Left.IsLeaf() || n.Right.IsLeaf() {
			return none
		}
		return RotOpt{rot, n.Right.Left.Box.Expand(n.Left.Right.Box).SurfaceArea() + n.Right.Right.Box.Expand(n.Left.Left.Box).SurfaceArea()}
	default:
		return none
	}
}

// Entity is anything the tree can hold.
type Entity interface {
	Bounds() Box
}

func EntitiesBox(ea []Entity) Box {
	if len(ea) == 0 {
		return Box{}
	}

	box := ea[0].Bounds()
	for _, e := range ea[1:] {
		box = box.Expand(e.Bounds())
	}

	return box
}

type SplitAxisOpt struct {
	Axis     Axis
	Items    []Entity
	SA       float64
	HasValue bool
}

func (s *SplitAxisOpt) SplitIndex() int {
	return len(s.Items) / 2
}

func (s *SplitAxisOpt) SortAlong(a Axis) {
	sort.SliceStable(s.Items, func(i, j int) bool {
		return s.Items[i].Bounds().Center()[a] < s.Items[j].Bounds().Center()[a]
	})
}

func (s *SplitAxisOpt) TryImproveAxis(a Axis) {
	s.SortAlong(a)

	mid := s.SplitIndex()
	left := EntitiesBox(s.Items[:mid]).SurfaceArea()
	right := EntitiesBox(s.Items[mid:]).SurfaceArea()
	new := left*float64(mid) + right*float64(len(s.Items)-mid)

	if !s.HasValue || new < s.SA {
		s.SA = new
		s.Axis = a
		s.HasValue = true
	}
}

// Hooks receives content changes of tree nodes so their annotations can be
// invalidated.
type Hooks interface {
	LeafObjectAdded(leaf *Node, e Entity)
	LeafObjectsUpdated(leaf *Node)
	NodesMerged(merged, a, b *Node)
}

// NodeDestroyer is implemented by hooks that hold resources in node
// annotations. NodeDestroyed runs before the node goes back to the free list.
type NodeDestroyer interface {
	NodeDestroyed(n *Node)
}

type nopHooks struct{}

func (nopHooks) LeafObjectAdded(*Node, Entity) {}
func (nopHooks) LeafObjectsUpdated(*Node)      {}
func (nopHooks) NodesMerged(_, _, _ *Node)     {}

type Node struct {
	Box Box

	Parent *Node
	Left   *Node
	Right  *Node

	Depth     int
	NodeIndex int

	Objects []Entity

	State NodeState

	Vis Annotation

	leaf bool
	free bool
}

func (n *Node) IsLeaf() bool {
	return n.leaf
}

func (n *Node) HasParent() bool {
	return n.Parent != nil
}

func (n *Node) IsEmpty() bool {
	return n.leaf && len(n.Objects) == 0
}

func (n *Node) IsValid() bool {
	return !n.free && (n.IsValidLeafNode() || n.IsValidBranchNode())
}

func (n *Node) IsValidBranchNode() bool {
	return !n.IsLeaf() && n.Left != nil && n.Right != nil
}

func (n *Node) IsValidLeafNode() bool {
	return n.IsLeaf() && n.Left == nil && n.Right == nil
}

func (n *Node) IsValidBranch() bool {
	return n.IsValid() && (n.IsLeaf() || n.Right.IsValidBranch() && n.Left.IsValidBranch())
}

func (n *Node) Equals(n2 *Node) bool {
	return n2 != nil && n.NodeIndex == n2.NodeIndex
}

func (n *Node) GetSibling() *Node {
	if n.Parent.Left == n {
		return n.Parent.Right
	}
	return n.Parent.Left
}

type HitTest func(box Box) bool

// Tree is a dynamic bounding volume hierarchy. Inner nodes have exactly two
// children, leaves hold up to maxLeaves entities and every node box encloses
// its contents.
type Tree struct {
	rootNode *Node

	maxDepth  int
	maxLeaves int

	hooks Hooks

	leafs      map[Entity]*Node
	nodes      []*Node
	refitQueue []*Node

	unusedNodeIndicies []int
}

func NewTree(maxLeaves int) *Tree {
	if maxLeaves < 1 {
		maxLeaves = 1
	}

	t := &Tree{
		maxLeaves: maxLeaves,
		hooks:     nopHooks{},

		leafs:      make(map[Entity]*Node),
		nodes:      make([]*Node, 0),
		refitQueue: make([]*Node, 0),

		unusedNodeIndicies: make([]int, 0),
	}

	t.rootNode = t.CreateNode(true)

	return t
}

// SetHooks installs the content change listener. nil restores the no-op hooks.
func (t *Tree) SetHooks(h Hooks) {
	if h == nil {
		h = nopHooks{}
	}
	t.hooks = h
}

func (t *Tree) Root() *Node {
	return t.rootNode
}

func (t *Tree) Len() int {
	return len(t.leafs)
}

func (t *Tree) MaxDepth() int {
	return t.maxDepth
}

func (t *Tree) CreateNode(leaf bool) (n *Node) {
	index := 0
	if len(t.unusedNodeIndicies) > 0 {
		index, t.unusedNodeIndicies = t.unusedNodeIndicies[len(t.unusedNodeIndicies)-1], t.unusedNodeIndicies[:len(t.unusedNodeIndicies)-1]
		n = t.nodes[index]
		*n = Node{}
	} else {
		n = &Node{}
		index = len(t.nodes)
		t.nodes = append(t.nodes, n)
	}

	n.NodeIndex = index
	n.leaf = leaf

	return
}

func (t *Tree) FreeNode(n *Node) {
	if d, ok := t.hooks.(NodeDestroyer); ok {
		d.NodeDestroyed(n)
	}

	n.Parent = nil
	n.Left = nil
	n.Right = nil
	n.Objects = nil
	n.Depth = 0
	n.State = 0
	n.free = true

	t.unusedNodeIndicies = append(t.unusedNodeIndicies, n.NodeIndex)
}

// Walk calls fn for every live node, parents before children.
func (t *Tree) Walk(fn func(*Node)) {
	var walk func(*Node)
	walk = func(n *Node) {
		fn(n)
		if !n.IsLeaf() {
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(t.rootNode)
}

func (t *Tree) GetLeaf(e Entity) (n *Node, ok bool) {
	n, ok = t.leafs[e]
	return
}

func (t *Tree) TraverseNode(cur *Node, test HitTest, hits []Entity) []Entity {
	if !cur.IsValid() || cur.IsEmpty() {
		return hits
	}

	if test(cur.Box) {
		if cur.IsLeaf() {
			return append(hits, cur.Objects...)
		}

		hits = t.TraverseNode(cur.Left, test, hits)
		hits = t.TraverseNode(cur.Right, test, hits)
	}

	return hits
}

func (t *Tree) Traverse(test HitTest) []Entity {
	return t.TraverseNode(t.rootNode, test, nil)
}

// F2BChildren orders the children of an inner node by their distance to pos,
// nearest first.
func (t *Tree) F2BChildren(n *Node, pos mgl64.Vec3) (near, far *Node) {
	dl := n.Left.Box.SquaredPosDist(pos)
	dr := n.Right.Box.SquaredPosDist(pos)

	if dl == dr {
		dl = n.Left.Box.Center().Sub(pos).LenSqr()
		dr = n.Right.Box.Center().Sub(pos).LenSqr()
	}

	if dr < dl {
		return n.Right, n.Left
	}
	return n.Left, n.Right
}

// TraverseF2B visits the tree ordered along dir. inner returning false prunes
// the subtree of a node, leaf is called for every leaf reached.
func (t *Tree) TraverseF2B(dir mgl64.Vec3, inner func(*Node) bool, leaf func(*Node)) {
	var rec func(*Node)
	rec = func(n *Node) {
		if n.IsEmpty() {
			return
		}
		if n.IsLeaf() {
			leaf(n)
			return
		}
		if !inner(n) {
			return
		}

		first, second := n.Left, n.Right
		if n.Right.Box.Center().Sub(n.Left.Box.Center()).Dot(dir) < 0 {
			first, second = second, first
		}
		rec(first)
		rec(second)
	}
	rec(t.rootNode)
}

func (t *Tree) Add(e Entity) error {
	if _, ok := t.leafs[e]; ok {
		return errors.New("entity is already in the tree").
			WithType(ErrTypeEntityExists)
	}

	box := e.Bounds()
	t.AddObjectToNode(t.rootNode, e, box, box.SurfaceArea())
	return nil
}

func (t *Tree) AddObjectToNode(n *Node, e Entity, b Box, sa float64) {
	for !n.IsLeaf() {
		left := n.Left
		right := n.Right

		leftSa := left.Box.SurfaceArea()
		rightSa := right.Box.SurfaceArea()

		newLeftSA := rightSa + left.Box.Expand(b).SurfaceArea()
		newRightSA := leftSa + right.Box.Expand(b).SurfaceArea()
		merged := left.Box.Expand(right.Box).SurfaceArea() + sa

		// Doing a merge-and-pushdown can be expensive, so we only do it if it's notably better
		if merged < math.Min(newLeftSA, newRightSA)*0.3 {
			t.AddItemToBranch(n, e)
			return
		}

		if newLeftSA < newRightSA {
			n = left
		} else {
			n = right
		}
	}

	t.AddItemToLeaf(n, e)
}

func (t *Tree) AddItemToLeaf(n *Node, e Entity) {
	n.Objects = append(n.Objects, e)
	t.leafs[e] = n
	t.RefitVolume(n)
	t.hooks.LeafObjectAdded(n, e)
	t.SplitIfNecessary(n)
}

// AddItemToBranch pushes the current children of n down under a new merged
// node and hangs a new leaf holding e next to it.
func (t *Tree) AddItemToBranch(n *Node, e Entity) {
	left := n.Left
	right := n.Right

	merged := t.CreateNode(false)
	merged.Left = left
	merged.Right = right
	merged.Parent = n

	left.Parent = merged
	right.Parent = merged
	t.ChildRefit(merged, false)

	leaf := t.CreateNode(true)
	leaf.Parent = n
	leaf.Objects = append(leaf.Objects, e)
	t.leafs[e] = leaf
	t.ComputeVolume(leaf)

	n.Left = merged
	n.Right = leaf

	t.SetDepth(n, n.Depth)
	t.ChildRefit(n, true)

	t.hooks.NodesMerged(merged, left, right)
	t.hooks.LeafObjectAdded(leaf, e)
}

func (t *Tree) SplitIfNecessary(n *Node) {
	if len(n.Objects) > t.maxLeaves {
		t.SplitNode(n)
	}
}

func (t *Tree) SplitNode(n *Node) {
	split := &SplitAxisOpt{
		Items: append([]Entity(nil), n.Objects...),
	}

	split.TryImproveAxis(X)
	split.TryImproveAxis(Y)
	split.TryImproveAxis(Z)
	split.SortAlong(split.Axis)

	mid := split.SplitIndex()

	n.Left = t.CreateNodeFromSplit(n, split.Items[:mid])
	n.Right = t.CreateNodeFromSplit(n, split.Items[mid:])
	n.Objects = nil
	n.leaf = false

	if !n.IsValidBranchNode() {
		log.Errorln("Invalid branch after split", n.NodeIndex)
	}

	t.ChildRefit(n, false)
	t.SplitIfNecessary(n.Left)
	t.SplitIfNecessary(n.Right)
}

func (t *Tree) CreateNodeFromSplit(parent *Node, items []Entity) *Node {
	new := t.CreateNode(true)

	new.Parent = parent
	new.Depth = parent.Depth + 1

	if t.maxDepth < new.Depth {
		t.maxDepth = new.Depth
	}

	new.Objects = append(new.Objects, items...)
	for _, e := range items {
		t.leafs[e] = new
	}

	t.ComputeVolume(new)

	return new
}

func (t *Tree) Remove(e Entity) bool {
	n, ok := t.leafs[e]
	if !ok {
		return false
	}

	delete(t.leafs, e)

	for i, o := range n.Objects {
		if o == e {
			n.Objects = append(n.Objects[:i], n.Objects[i+1:]...)
			break
		}
	}

	if len(n.Objects) > 0 || !n.HasParent() {
		t.RefitVolume(n)
		t.hooks.LeafObjectsUpdated(n)
		return true
	}

	t.RemoveNode(n)
	return true
}

// RemoveNode collapses the empty leaf n: its sibling takes the place of
// their parent.
func (t *Tree) RemoveNode(n *Node) *Node {
	p := n.Parent
	gp := p.Parent
	depth := p.Depth

	keep := n.GetSibling()

	if gp == nil {
		t.rootNode = keep
		keep.Parent = nil
	} else {
		keep.Parent = gp
		if gp.Left == p {
			gp.Left = keep
		} else {
			gp.Right = keep
		}
	}

	t.FreeNode(n)
	t.FreeNode(p)

	t.SetDepth(keep, depth)

	if keep.Parent != nil {
		t.ChildRefit(keep.Parent, true)
	}

	return keep.Parent
}

// Update refits the leaf holding e after its bounds changed. An entity that
// left the box of a shared leaf is removed and inserted again.
func (t *Tree) Update(e Entity) error {
	n, ok := t.leafs[e]
	if !ok {
		return errors.New("entity is not in the tree").
			WithType(ErrTypeEntityMissing)
	}

	box := e.Bounds()

	if len(n.Objects) > 1 && !n.Box.Contains(box) {
		t.Remove(e)
		t.AddObjectToNode(t.rootNode, e, box, box.SurfaceArea())
		return nil
	}

	if t.RefitVolume(n) {
		t.QueueForOptimize(n)
	}
	t.hooks.LeafObjectsUpdated(n)

	return nil
}

func (t *Tree) QueueForOptimize(n *Node) {
	if n.Parent == nil || n.State&OptimizationQueued != 0 {
		return
	}

	n.State |= OptimizationQueued
	t.refitQueue = append(t.refitQueue, n)
}

// Optimize rotates the nodes above every refitted leaf, deepest first.
func (t *Tree) Optimize() {
	if len(t.refitQueue) == 0 {
		return
	}

	queue := t.refitQueue
	t.refitQueue = make([]*Node, 0)

	sort.SliceStable(queue, func(i, j int) bool { return queue[i].Depth > queue[j].Depth })

	for i := 0; i < len(queue); i++ {
		n := queue[i]

		if n.free || !n.IsValid() {
			continue
		}

		n.State &^= OptimizationQueued

		if !n.IsLeaf() {
			t.TryRotate(n)
		}

		if !n.HasParent() {
			continue
		}

		if n.Parent.State&OptimizationQueued != 0 {
			continue
		}

		n.Parent.State |= OptimizationQueued

		queue = append(queue, n.Parent)
	}
}

func (t *Tree) TryRotate(n *Node) {
	if n.IsLeaf() {
		return
	}

	sa := n.Left.Box.SurfaceArea() + n.Right.Box.SurfaceArea()
	best := &RotOpt{RotNone, math.MaxFloat64}

	best.FindBestRotation(n, LeftRightLeft)
	best.FindBestRotation(n, LeftRightRight)
	best.FindBestRotation(n, RightLeftLeft)
	best.FindBestRotation(n, RightLeftRight)
	best.FindBestRotation(n, LeftLeftRightLeft)
	best.FindBestRotation(n, LeftLeftRightRight)

	if best.Rot == RotNone || best.SA >= sa {
		return
	}

	var swap *Node

	switch best.Rot {
	case LeftRightLeft:
		swap = n.Left
		n.Left = n.Right.Left
		n.Left.Parent = n
		n.Right.Left = swap
		swap.Parent = n.Right
		t.rotated(n.Right)

	case LeftRightRight:
		swap = n.Left
		n.Left = n.Right.Right
		n.Left.Parent = n
		n.Right.Right = swap
		swap.Parent = n.Right
		t.rotated(n.Right)

	case RightLeftLeft:
		swap = n.Right
		n.Right = n.Left.Left
		n.Right.Parent = n
		n.Left.Left = swap
		swap.Parent = n.Left
		t.rotated(n.Left)

	case RightLeftRight:
		swap = n.Right
		n.Right = n.Left.Right
		n.Right.Parent = n
		n.Left.Right = swap
		swap.Parent = n.Left
		t.rotated(n.Left)

	case LeftLeftRightRight:
		swap = n.Left.Left
		n.Left.Left = n.Right.Right
		n.Right.Right = swap
		n.Left.Left.Parent = n.Left
		swap.Parent = n.Right
		t.rotated(n.Left)
		t.rotated(n.Right)

	case LeftLeftRightLeft:
		swap = n.Left.Left
		n.Left.Left = n.Right.Left
		n.Right.Left = swap
		n.Left.Left.Parent = n.Left
		swap.Parent = n.Right
		t.rotated(n.Left)
		t.rotated(n.Right)
	}

	t.SetDepth(n, n.Depth)
}

// rotated refits n after its children were exchanged. Its contents are new,
// so it is reported as a merge.
func (t *Tree) rotated(n *Node) {
	t.ChildRefit(n, false)
	t.hooks.NodesMerged(n, n.Left, n.Right)
}

func (t *Tree) RefitVolume(n *Node) bool {
	old := n.Box

	t.ComputeVolume(n)

	if !n.Box.Equals(old) {
		if n.Parent != nil {
			t.ChildRefit(n.Parent, true)
		}
		return true
	}
	return false
}

func (t *Tree) ComputeVolume(n *Node) {
	if n.IsLeaf() {
		n.Box = EntitiesBox(n.Objects)
		return
	}
	n.Box = n.Left.Box.Expand(n.Right.Box)
}

func (t *Tree) ChildRefit(cur *Node, propogate bool) {
	for {
		cur.Box = cur.Left.Box.Expand(cur.Right.Box)

		cur = cur.Parent

		if !propogate || cur == nil {
			break
		}
	}
}

func (t *Tree) SetDepth(n *Node, depth int) {
	n.Depth = depth
	if depth > t.maxDepth {
		t.maxDepth = depth
	}

	if !n.IsLeaf() {
		if !n.IsValidBranch() {
			log.Errorln("Bad branch", n.NodeIndex)
			return
		}
		t.SetDepth(n.Left, depth+1)
		t.SetDepth(n.Right, depth+1)
	}
}
