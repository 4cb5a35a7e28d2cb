package main

import (
	"fmt"
	"os"

	"github.com/ImVexed/viscull"
	"github.com/go-gl/mathgl/mgl64"
	log "github.com/sirupsen/logrus"
)

// This example culls a field of crates standing behind a wall. Queries are
// answered by ray casting against the walls, one frame late like a GPU would.

type crate struct {
	name string
	box  viscull.Box
	wall bool
}

func (c *crate) BoundingBox() viscull.Box   { return c.box }
func (c *crate) Flags() viscull.ObjectFlags { return 0 }
func (c *crate) ZBufMode() viscull.ZBufMode { return viscull.ZBufUse }
func (c *crate) RenderPriority() int        { return 0 }
func (c *crate) String() string             { return c.name }
func (c *crate) VisibleMeshes(viscull.View, uint32) []viscull.Mesh {
	return []viscull.Mesh{{Data: c.name}}
}

// rayCaster answers a query at the frame after it was issued.
type rayCaster struct {
	eye    mgl64.Vec3
	walls  []viscull.Box
	frame  uint32
	next   viscull.QueryHandle
	issued map[viscull.QueryHandle]uint32
	result map[viscull.QueryHandle]viscull.QueryStatus
}

func newRayCaster(walls []viscull.Box) *rayCaster {
	return &rayCaster{
		walls:  walls,
		issued: make(map[viscull.QueryHandle]uint32),
		result: make(map[viscull.QueryHandle]viscull.QueryStatus),
	}
}

func (r *rayCaster) OcclusionQueriesSupported() bool {
	return true
}

func (r *rayCaster) AllocateQueries(n int) ([]viscull.QueryHandle, error) {
	handles := make([]viscull.QueryHandle, n)
	for i := range handles {
		r.next++
		handles[i] = r.next
	}
	return handles, nil
}

func (r *rayCaster) FreeQueries(handles []viscull.QueryHandle) {
	for _, h := range handles {
		delete(r.issued, h)
		delete(r.result, h)
	}
}

func (r *rayCaster) BeginQuery(h viscull.QueryHandle, region viscull.QueryRegion) {
	r.issued[h] = r.frame
	r.result[h] = viscull.QueryInvisible
	for _, p := range samples(region.Box) {
		if r.clear(p, region.Box) {
			r.result[h] = viscull.QueryVisible
			return
		}
	}
}

func (r *rayCaster) PollQuery(h viscull.QueryHandle) viscull.QueryStatus {
	if r.issued[h] >= r.frame {
		return viscull.QueryPending
	}
	return r.result[h]
}

// clear reports whether p can be seen from the eye. Walls overlapping the
// tested region do not occlude it.
func (r *rayCaster) clear(p mgl64.Vec3, region viscull.Box) bool {
	seg := viscull.Segment{Start: r.eye, End: p}
	for _, w := range r.walls {
		if w.Intersects(region) {
			continue
		}
		if _, hit := viscull.BoxSegment(w, seg); hit {
			return false
		}
	}
	return true
}

func samples(b viscull.Box) []mgl64.Vec3 {
	pts := []mgl64.Vec3{b.Center()}
	for i := 0; i < 8; i++ {
		var p mgl64.Vec3
		for a := 0; a < 3; a++ {
			if i&(1<<a) != 0 {
				p[a] = b.Max[a]
			} else {
				p[a] = b.Min[a]
			}
		}
		pts = append(pts, p)
	}
	return pts
}

type counter struct {
	objects int
}

func (c *counter) ObjectVisible(viscull.Object, uint32) {
	c.objects++
}

func (c *counter) MarkVisible(list *viscull.NodeMeshList) {
	c.objects += len(list.Meshes)
}

func main() {
	log.SetLevel(log.DebugLevel)

	wall := &crate{
		name: "wall",
		box:  viscull.NewBox(mgl64.Vec3{-20, 0, 9}, mgl64.Vec3{20, 10, 10}),
		wall: true,
	}
	scene := []*crate{wall}
	for x := -2; x <= 2; x++ {
		for z := 0; z < 3; z++ {
			pos := mgl64.Vec3{float64(x) * 4, 0.5, float64(-z) * 4}
			scene = append(scene, &crate{
				name: fmt.Sprintf("crate-%d-%d", x, z),
				box:  viscull.BoxAround(pos, 0.5),
			})
		}
	}

	var walls []viscull.Box
	for _, o := range scene {
		if o.wall {
			walls = append(walls, o.box)
		}
	}
	dev := newRayCaster(walls)

	c, err := viscull.New(nil, dev, viscull.DefaultConfig())
	if err != nil {
		log.WithError(err).Fatal("creating culler failed")
	}
	defer c.Close()

	vis := make(map[*crate]*viscull.VisObject)
	for _, o := range scene {
		v, err := c.Register(o)
		if err != nil {
			log.WithError(err).Fatal("registering object failed")
		}
		vis[o] = v
	}

	eye := mgl64.Vec3{0, 2, 30}
	cam := viscull.LookAtCamera(eye, mgl64.Vec3{}, 60, 16.0/9, 0.1, 200)
	dev.eye = eye

	runaway := scene[1]
	for frame := uint32(1); frame <= 4; frame++ {
		if frame == 3 {
			// A crate walks out in front of the wall.
			runaway.box = viscull.BoxAround(mgl64.Vec3{0, 0.5, 15}, 0.5)
			if err := vis[runaway].NotifyTransformChanged(); err != nil {
				log.WithError(err).Error("moving crate failed")
			}
		}

		dev.frame = frame
		c.BeginFrame(frame)

		drawn := &counter{}
		c.VisTest(cam, drawn)
		log.WithFields(log.Fields{
			"frame": frame,
			"drawn": drawn.objects,
			"total": len(scene),
		}).Info("frame culled")
	}

	f, err := os.Create("occlusion.bmp")
	if err != nil {
		log.WithError(err).Fatal("creating image failed")
	}
	defer f.Close()

	if err := c.DumpImage(f, cam.ID(), 8); err != nil {
		log.WithError(err).Fatal("dumping tree failed")
	}
}
