package viscull

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Listener receives the result of a VisTest.
type Listener interface {
	// ObjectVisible is called for every object when culling is disabled by
	// SetAllVisible.
	ObjectVisible(obj Object, frustumMask uint32)

	// MarkVisible is called for every list that has to be drawn, back to
	// front.
	MarkVisible(list *NodeMeshList)
}

type Option func(*Culler)

func WithLogger(l *log.Entry) Option {
	return func(c *Culler) {
		c.logger = l
	}
}

// Culler decides per frame and per view which objects of its tree must be
// drawn. It is not safe for concurrent use, except for the picking calls
// which may overlap each other.
type Culler struct {
	tree   *Tree
	device QueryDevice
	conf   Config
	logger *log.Entry

	queries    bool
	frame      uint32
	allVisible bool

	objects map[Object]*VisObject
	order   []*VisObject

	lists map[ViewID][]*NodeMeshList

	allocWarned bool

	scratch scratchPool
}

// New creates a culler over tree. A nil tree creates an empty one, a nil
// device disables occlusion queries.
func New(tree *Tree, device QueryDevice, conf Config, opts ...Option) (*Culler, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	if tree == nil {
		tree = NewTree(conf.MaxLeafObjects)
	}
	if device == nil {
		device = NopDevice{}
	}

	c := &Culler{
		tree:    tree,
		device:  device,
		conf:    conf,
		logger:  log.WithField("component", "viscull"),
		queries: device.OcclusionQueriesSupported(),
		objects: make(map[Object]*VisObject),
		lists:   make(map[ViewID][]*NodeMeshList),
	}

	for _, opt := range opts {
		opt(c)
	}

	tree.SetHooks(cullerHooks{c: c})

	if !c.queries {
		c.logger.Warn("occlusion queries unsupported, culling against the frustum only")
	}

	return c, nil
}

func (c *Culler) Tree() *Tree {
	return c.tree
}

func (c *Culler) Frame() uint32 {
	return c.frame
}

func (c *Culler) Config() Config {
	return c.conf
}

// Register inserts obj into the tree.
func (c *Culler) Register(obj Object) (*VisObject, error) {
	if _, ok := c.objects[obj]; ok {
		return nil, errors.New("object is already registered").
			WithType(ErrTypeAlreadyRegistered)
	}

	v := &VisObject{
		Object: obj,
		c:      c,
		box:    obj.BoundingBox(),
	}
	if s, ok := obj.(ShapeVersioned); ok {
		v.shape = s.ShapeNumber()
	}

	if err := c.tree.Add(v); err != nil {
		return nil, errors.New("adding object to tree failed").
			WithType(ErrTypeUpdateRejected).
			Wrap(err)
	}

	if o, ok := obj.(Observable); ok {
		o.AddChangeListener(v)
	}

	c.objects[obj] = v
	c.order = append(c.order, v)

	c.logger.WithFields(logFields(obj)).Debug("object registered")
	return v, nil
}

// Unregister removes obj from the tree and drops it from every pending mesh
// list.
func (c *Culler) Unregister(obj Object) error {
	v, ok := c.objects[obj]
	if !ok {
		return errors.New("object is not registered").
			WithType(ErrTypeNotRegistered)
	}

	if o, ok := obj.(Observable); ok {
		o.RemoveChangeListener(v)
	}

	c.tree.Remove(v)

	delete(c.objects, obj)
	for i, o := range c.order {
		if o == v {
			c.order[i] = c.order[len(c.order)-1]
			c.order = c.order[:len(c.order)-1]
			break
		}
	}

	for id, lists := range c.lists {
		c.lists[id] = dropObject(lists, obj)
	}

	return nil
}

func dropObject(lists []*NodeMeshList, obj Object) []*NodeMeshList {
	kept := lists[:0]
	for _, l := range lists {
		has := false
		for _, om := range l.Meshes {
			if om.Object == obj {
				has = true
				break
			}
		}
		if !has {
			kept = append(kept, l)
		}
	}
	return kept
}

// BeginFrame starts frame. It drops the lists of the previous frame, turns
// the all visible mode off, re-homes objects whose shape counter moved and
// rebalances the tree.
func (c *Culler) BeginFrame(frame uint32) {
	c.frame = frame
	c.allVisible = false
	clear(c.lists)

	if c.conf.TrackShapeChanges {
		for _, v := range c.order {
			if !v.shapeDrifted() {
				continue
			}
			if err := v.NotifyShapeChanged(); err != nil {
				c.logger.WithError(err).Error("re-homing drifted object failed")
			}
		}
	}

	if c.conf.OptimizeEachFrame {
		c.tree.Optimize()
	}

	c.logger.WithFields(log.Fields{
		"frame":   frame,
		"objects": c.tree.Len(),
		"depth":   c.tree.MaxDepth(),
	}).Debug("frame started")
}

// SetAllVisible disables culling until the next BeginFrame.
func (c *Culler) SetAllVisible(v bool) {
	c.allVisible = v
}

// VisTest culls the tree for view and hands the lists to draw to listener.
// It returns false when culling is disabled, in which case every object was
// reported through ObjectVisible.
func (c *Culler) VisTest(view View, listener Listener) bool {
	f := c.newFront2Back(view)

	if c.allVisible {
		if listener != nil && c.tree.Len() > 0 {
			f.markAllVisible(c.tree.Root(), listener)
		}
		return false
	}

	f.visit(c.tree.Root(), view.PlaneMask())

	sortFrontToBack(f.lists, f.pos)
	c.lists[f.id] = f.lists

	if listener != nil {
		for i := len(f.lists) - 1; i >= 0; i-- {
			instrumentVisibleList()
			listener.MarkVisible(f.lists[i])
		}
	}

	return true
}

// Lists returns the lists of the last VisTest of view in the current frame,
// front to back.
func (c *Culler) Lists(view ViewID) []*NodeMeshList {
	return c.lists[view]
}

// Close releases every query handle. The culler must not be used afterwards.
func (c *Culler) Close() {
	c.tree.Walk(func(n *Node) {
		n.Vis.Release(c.device)
	})
	c.tree.SetHooks(nil)
	c.lists = make(map[ViewID][]*NodeMeshList)
}

// invalidateUp invalidates n and every ancestor of n. Their cached results
// covered the old contents of n.
func (c *Culler) invalidateUp(n *Node) {
	for ; n != nil; n = n.Parent {
		n.Vis.Invalidate(c.device)
	}
}

func (c *Culler) warnAllocation(err error) {
	if c.allocWarned {
		return
	}
	c.allocWarned = true

	c.logger.WithError(err).Warn("query allocation failed, affected nodes are drawn unconditionally")
}

type cullerHooks struct {
	c *Culler
}

func (h cullerHooks) LeafObjectAdded(leaf *Node, e Entity) {
	h.c.invalidateUp(leaf)
}

func (h cullerHooks) LeafObjectsUpdated(leaf *Node) {
	h.c.invalidateUp(leaf)
}

func (h cullerHooks) NodesMerged(merged, a, b *Node) {
	h.c.invalidateUp(merged)
}

func (h cullerHooks) NodeDestroyed(n *Node) {
	n.Vis.Release(h.c.device)
}
