package viscull

type QueryResult int

const (
	ResultInvalid QueryResult = iota
	ResultUnknown
	ResultVisible
	ResultInvisible
)

func (r QueryResult) String() string {
	switch r {
	case ResultInvalid:
		return "invalid"
	case ResultUnknown:
		return "unknown"
	case ResultVisible:
		return "visible"
	case ResultInvisible:
		return "invisible"
	default:
		return "?"
	}
}

// QueryEntry is the occlusion history of one node for one view.
//
// Result == ResultInvalid implies Handle == NoQuery. A handle is allocated
// when the first query is issued and kept for later queries of the same
// entry until the entry is invalidated or destroyed.
type QueryEntry struct {
	Handle         QueryHandle
	IssuedFrame    uint32
	NextCheckFrame uint32
	Result         QueryResult

	lastUsed uint32

	// Set when the device refused a handle. The entry stays Unknown, which
	// is drawn, until the next invalidation retries the allocation.
	degraded bool
}

// Annotation is the per node query cache. The node owns it by value.
type Annotation struct {
	entries map[ViewID]*QueryEntry
}

func (a *Annotation) Len() int {
	return len(a.entries)
}

func (a *Annotation) Entry(view ViewID) (*QueryEntry, bool) {
	e, ok := a.entries[view]
	return e, ok
}

// GetOrCreateEntry returns the entry for view, creating an Invalid one
// without a handle on first use.
func (a *Annotation) GetOrCreateEntry(view ViewID) *QueryEntry {
	if e, ok := a.entries[view]; ok {
		return e
	}

	if a.entries == nil {
		a.entries = make(map[ViewID]*QueryEntry)
	}

	e := &QueryEntry{Result: ResultInvalid}
	a.entries[view] = e
	return e
}

func (a *Annotation) Each(fn func(ViewID, *QueryEntry)) {
	for id, e := range a.entries {
		fn(id, e)
	}
}

// Invalidate marks every entry Invalid and gives their handles back to dev.
// It reports whether any entry changed.
func (a *Annotation) Invalidate(dev QueryDevice) bool {
	var handles []QueryHandle
	changed := false

	for _, e := range a.entries {
		if e.Result == ResultInvalid && e.Handle == NoQuery {
			continue
		}
		if e.Handle != NoQuery {
			handles = append(handles, e.Handle)
		}
		*e = QueryEntry{Result: ResultInvalid, lastUsed: e.lastUsed}
		changed = true
	}

	releaseHandles(dev, handles)
	return changed
}

// Release frees every handle and drops all entries.
func (a *Annotation) Release(dev QueryDevice) {
	var handles []QueryHandle
	for _, e := range a.entries {
		if e.Handle != NoQuery {
			handles = append(handles, e.Handle)
		}
	}

	a.entries = nil
	releaseHandles(dev, handles)
}

// Expire drops the entries of views that have not used this node for more
// than expiry frames.
func (a *Annotation) Expire(frame, expiry uint32, dev QueryDevice) {
	if expiry == 0 || len(a.entries) == 0 {
		return
	}

	var handles []QueryHandle
	for id, e := range a.entries {
		if frame-e.lastUsed <= expiry {
			continue
		}
		if e.Handle != NoQuery {
			handles = append(handles, e.Handle)
		}
		delete(a.entries, id)
	}

	releaseHandles(dev, handles)
}

func (e *QueryEntry) touch(frame uint32) {
	e.lastUsed = frame
}

func releaseHandles(dev QueryDevice, handles []QueryHandle) {
	if len(handles) == 0 {
		return
	}
	dev.FreeQueries(handles)
	instrumentQueriesFreed(len(handles))
}
