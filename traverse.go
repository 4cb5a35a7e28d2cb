package viscull

import (
	"github.com/go-gl/mathgl/mgl64"
)

// traversalState is what a node visit decided for one view in one frame.
type traversalState int

const (
	stateSkip traversalState = iota
	stateFrustumReject
	stateInsideAlways
	stateCachedVisible
	stateCachedInvisible
	stateQueryPending
	stateQueryResolved

	numTraversalStates
)

func (s traversalState) String() string {
	switch s {
	case stateSkip:
		return "skip"
	case stateFrustumReject:
		return "frustum_reject"
	case stateInsideAlways:
		return "inside_always"
	case stateCachedVisible:
		return "cached_visible"
	case stateCachedInvisible:
		return "cached_invisible"
	case stateQueryPending:
		return "query_pending"
	case stateQueryResolved:
		return "query_resolved"
	default:
		return "unknown"
	}
}

// front2Back holds one VisTest call.
type front2Back struct {
	c *Culler

	view   View
	id     ViewID
	pos    mgl64.Vec3
	planes []Plane
	frame  uint32

	lists []*NodeMeshList
}

func (c *Culler) newFront2Back(view View) *front2Back {
	planes := view.Planes()
	if len(planes) > MaxPlanes {
		planes = planes[:MaxPlanes]
	}

	return &front2Back{
		c:      c,
		view:   view,
		id:     view.ID(),
		pos:    view.Position(),
		planes: planes,
		frame:  c.frame,
	}
}

// visit runs the node state machine on n and descends into its children
// nearest first. mask holds the planes the parent still straddles.
func (f *front2Back) visit(n *Node, mask uint32) {
	if n.IsEmpty() {
		instrumentNodeState(stateSkip)
		return
	}

	n.Vis.Expire(f.frame, f.c.conf.ViewExpiry, f.c.device)

	if mask != 0 {
		vis, newMask := ClassifyBox(n.Box, f.planes, mask)
		if vis == NodeInvisible {
			instrumentNodeState(stateFrustumReject)
			return
		}
		mask = newMask
	}

	if n.IsLeaf() {
		f.visitLeaf(n, mask)
		return
	}

	if n.Box.ContainsPoint(f.pos) {
		// The camera is in the box, its proxy cannot occlude anything.
		instrumentNodeState(stateInsideAlways)
	} else {
		state, draw := f.occlusion(n, QueryRegion{Box: n.Box})
		instrumentNodeState(state)
		if !draw {
			return
		}
	}

	near, far := f.c.tree.F2BChildren(n, f.pos)
	f.visit(near, mask)
	f.visit(far, mask)
}

func (f *front2Back) visitLeaf(n *Node, mask uint32) {
	list := buildMeshList(n, f.view, mask)
	if list == nil {
		instrumentNodeState(stateSkip)
		return
	}

	if list.AlwaysVisible || n.Box.ContainsPoint(f.pos) {
		list.AlwaysVisible = true
		instrumentNodeState(stateInsideAlways)
		f.emit(list)
		return
	}

	state, draw := f.occlusion(n, QueryRegion{Box: n.Box, Meshes: list})
	instrumentNodeState(state)
	if draw {
		f.emit(list)
	}
}

func (f *front2Back) emit(list *NodeMeshList) {
	f.lists = append(f.lists, list)
}

// occlusion consults and advances the query entry of n for the view. It
// reports whether n has to be drawn.
func (f *front2Back) occlusion(n *Node, region QueryRegion) (traversalState, bool) {
	e := n.Vis.GetOrCreateEntry(f.id)
	e.touch(f.frame)

	if !f.c.queries {
		e.Result = ResultVisible
		return stateCachedVisible, true
	}

	polled := false

	if e.Result == ResultUnknown {
		if e.IssuedFrame == f.frame {
			return stateQueryPending, true
		}

		if e.degraded {
			if e.NextCheckFrame > f.frame {
				return stateQueryPending, true
			}
		} else {
			switch f.c.device.PollQuery(e.Handle) {
			case QueryPending:
				return stateQueryPending, true
			case QueryVisible:
				e.Result = ResultVisible
			case QueryInvisible:
				e.Result = ResultInvisible
			}
			polled = true
		}
	}

	if e.Result != ResultInvalid && e.Result != ResultUnknown && e.NextCheckFrame > f.frame {
		visible := e.Result == ResultVisible
		switch {
		case polled:
			return stateQueryResolved, visible
		case visible:
			return stateCachedVisible, true
		default:
			return stateCachedInvisible, false
		}
	}

	f.issue(e, region, e.Result == ResultInvisible)
	return stateQueryPending, true
}

// issue starts a new query for e. The handle of the entry is reused when it
// has one. hidden marks a recheck of a node that is drawn only for its query.
func (f *front2Back) issue(e *QueryEntry, region QueryRegion, hidden bool) {
	c := f.c

	if e.Handle == NoQuery {
		handles, err := c.device.AllocateQueries(1)
		if err != nil || len(handles) == 0 {
			instrumentQueryAllocationFailure()
			c.warnAllocation(err)

			e.Result = ResultUnknown
			e.IssuedFrame = f.frame
			e.NextCheckFrame = f.frame + c.conf.FrameSkip
			e.degraded = true
			return
		}

		instrumentQueriesAllocated(len(handles))
		e.Handle = handles[0]
		releaseHandles(c.device, handles[1:])
	}

	if region.Meshes != nil {
		region.Meshes.Queried = true
		if hidden {
			region.Meshes.markRecheckOnly()
		}
	}
	c.device.BeginQuery(e.Handle, region)
	instrumentQueryIssued()

	e.Result = ResultUnknown
	e.IssuedFrame = f.frame
	e.NextCheckFrame = f.frame + c.conf.FrameSkip
	e.degraded = false
}

// markAllVisible reports every object under n without culling.
func (f *front2Back) markAllVisible(n *Node, listener Listener) {
	if n.IsLeaf() {
		for _, e := range n.Objects {
			if v, ok := e.(*VisObject); ok {
				listener.ObjectVisible(v.Object, 0)
			}
		}
		return
	}

	f.markAllVisible(n.Left, listener)
	f.markAllVisible(n.Right, listener)
}
