package viscull

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

type fakeObject struct {
	name     string
	box      Box
	flags    ObjectFlags
	zmode    ZBufMode
	priority int
	meshes   []Mesh
	shape    uint64

	listeners []ChangeListener
}

func newFakeObject(name string, box Box) *fakeObject {
	return &fakeObject{name: name, box: box}
}

func (o *fakeObject) BoundingBox() Box         { return o.box }
func (o *fakeObject) Flags() ObjectFlags       { return o.flags }
func (o *fakeObject) ZBufMode() ZBufMode       { return o.zmode }
func (o *fakeObject) RenderPriority() int      { return o.priority }
func (o *fakeObject) ShapeNumber() uint64      { return o.shape }
func (o *fakeObject) String() string           { return o.name }
func (o *fakeObject) moveTo(b Box)             { o.box = b }
func (o *fakeObject) setMeshes(meshes ...Mesh) { o.meshes = meshes }

func (o *fakeObject) VisibleMeshes(View, uint32) []Mesh {
	if o.meshes == nil {
		return []Mesh{{Data: o.name}}
	}
	return o.meshes
}

func (o *fakeObject) AddChangeListener(l ChangeListener) {
	o.listeners = append(o.listeners, l)
}

func (o *fakeObject) RemoveChangeListener(l ChangeListener) {
	for i, x := range o.listeners {
		if x == l {
			o.listeners = append(o.listeners[:i], o.listeners[i+1:]...)
			return
		}
	}
}

// beamObject is a movable box that can be hit exactly. Its local box is
// centered on the origin.
type beamObject struct {
	*fakeObject
	local     Box
	transform mgl64.Mat4
	polygon   int
}

func newBeamObject(name string, pos mgl64.Vec3, halfExtent float64) *beamObject {
	local := BoxAround(mgl64.Vec3{}, halfExtent)
	return &beamObject{
		fakeObject: newFakeObject(name, BoxAround(pos, halfExtent)),
		local:      local,
		transform:  mgl64.Translate3D(pos.X(), pos.Y(), pos.Z()),
		polygon:    7,
	}
}

func (o *beamObject) Transform() mgl64.Mat4 {
	return o.transform
}

func (o *beamObject) HitBeamObject(start, end mgl64.Vec3) (mgl64.Vec3, float64, int, bool) {
	p, r, ok := o.HitBeamOutline(start, end)
	return p, r, o.polygon, ok
}

func (o *beamObject) HitBeamOutline(start, end mgl64.Vec3) (mgl64.Vec3, float64, bool) {
	seg := Segment{Start: start, End: end}
	p, ok := BoxSegment(o.local, seg)
	if !ok {
		return mgl64.Vec3{}, 0, false
	}
	return p, segmentRatio(seg, p), true
}

// fakeDevice is a scripted occlusion query device. A query reports visible
// unless occluded says otherwise for its region.
type fakeDevice struct {
	unsupported bool
	failAlloc   bool
	occluded    func(QueryRegion) bool

	frame uint32

	next    QueryHandle
	live    map[QueryHandle]bool
	issued  map[QueryHandle]uint32
	status  map[QueryHandle]QueryStatus
	pending map[QueryHandle]bool

	begins       int
	polls        int
	earlyPolls   int
	danglingUses int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		live:    make(map[QueryHandle]bool),
		issued:  make(map[QueryHandle]uint32),
		status:  make(map[QueryHandle]QueryStatus),
		pending: make(map[QueryHandle]bool),
	}
}

func (d *fakeDevice) OcclusionQueriesSupported() bool {
	return !d.unsupported
}

func (d *fakeDevice) AllocateQueries(n int) ([]QueryHandle, error) {
	if d.failAlloc {
		return nil, errors.New("out of query objects").
			WithType(ErrTypeQueryAllocation)
	}

	handles := make([]QueryHandle, n)
	for i := range handles {
		d.next++
		handles[i] = d.next
		d.live[d.next] = true
	}
	return handles, nil
}

func (d *fakeDevice) FreeQueries(handles []QueryHandle) {
	for _, h := range handles {
		if !d.live[h] {
			d.danglingUses++
		}
		delete(d.live, h)
		delete(d.issued, h)
		delete(d.status, h)
		delete(d.pending, h)
	}
}

func (d *fakeDevice) BeginQuery(h QueryHandle, region QueryRegion) {
	if !d.live[h] {
		d.danglingUses++
	}

	d.begins++
	d.issued[h] = d.frame
	d.status[h] = QueryVisible
	if d.occluded != nil && d.occluded(region) {
		d.status[h] = QueryInvisible
	}
}

func (d *fakeDevice) PollQuery(h QueryHandle) QueryStatus {
	d.polls++
	if !d.live[h] {
		d.danglingUses++
	}
	if d.issued[h] >= d.frame {
		d.earlyPolls++
	}
	if d.pending[h] {
		return QueryPending
	}
	return d.status[h]
}

// testView is a view without planes, so nothing is frustum culled.
type testView struct {
	id     ViewID
	pos    mgl64.Vec3
	planes []Plane
}

func newTestView(pos mgl64.Vec3, planes ...Plane) *testView {
	return &testView{id: uuid.New(), pos: pos, planes: planes}
}

func (v *testView) ID() ViewID           { return v.id }
func (v *testView) Position() mgl64.Vec3 { return v.pos }
func (v *testView) Planes() []Plane      { return v.planes }
func (v *testView) PlaneMask() uint32    { return FullMask(len(v.planes)) }

type recordListener struct {
	lists   []*NodeMeshList
	objects []Object
}

func (l *recordListener) ObjectVisible(obj Object, _ uint32) {
	l.objects = append(l.objects, obj)
}

func (l *recordListener) MarkVisible(list *NodeMeshList) {
	l.lists = append(l.lists, list)
}

// names returns the names of the objects in the marked lists.
func (l *recordListener) names() []string {
	var names []string
	for _, list := range l.lists {
		for _, om := range list.Meshes {
			names = append(names, om.Object.(interface{ String() string }).String())
		}
	}
	return names
}

func unitBoxAt(x, y, z float64) Box {
	return BoxAround(mgl64.Vec3{x, y, z}, 0.5)
}
