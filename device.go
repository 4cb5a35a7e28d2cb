package viscull

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// QueryHandle is an opaque occlusion query object owned by a QueryDevice.
// Devices never hand out NoQuery.
type QueryHandle uint32

const NoQuery QueryHandle = 0

type QueryStatus int

const (
	QueryPending QueryStatus = iota
	QueryVisible
	QueryInvisible
)

func (s QueryStatus) String() string {
	switch s {
	case QueryPending:
		return "pending"
	case QueryVisible:
		return "visible"
	case QueryInvisible:
		return "invisible"
	default:
		return "unknown"
	}
}

// QueryRegion is what a query is bounded to. When Meshes is nil the device
// draws Box as the proxy, otherwise it draws the mesh list depth-only.
type QueryRegion struct {
	Box    Box
	Meshes *NodeMeshList
}

// QueryDevice is the graphics device side of occlusion queries.
type QueryDevice interface {
	OcclusionQueriesSupported() bool
	AllocateQueries(n int) ([]QueryHandle, error)
	FreeQueries(handles []QueryHandle)
	BeginQuery(h QueryHandle, region QueryRegion)
	PollQuery(h QueryHandle) QueryStatus
}

// NopDevice has no occlusion query support. A culler using it does frustum
// culling only.
type NopDevice struct{}

func (NopDevice) OcclusionQueriesSupported() bool { return false }

func (NopDevice) AllocateQueries(n int) ([]QueryHandle, error) {
	return nil, errors.New("occlusion queries are not supported").
		WithType(ErrTypeQueryAllocation).
		WithTag("count", n)
}

func (NopDevice) FreeQueries([]QueryHandle) {}

func (NopDevice) BeginQuery(QueryHandle, QueryRegion) {}

func (NopDevice) PollQuery(QueryHandle) QueryStatus { return QueryVisible }
