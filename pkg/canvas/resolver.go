package canvas

import (
	"github.com/google/uuid"
)

// Handle is an opaque reference to a shape owned by the rendering
// surface. Handles are allocated per canvas session and are never
// serialized across sessions; the wire protocol only ever carries
// symbolic ids.
type Handle string

// newHandle allocates a fresh surface-native handle.
func newHandle() Handle {
	return Handle("shape:" + uuid.NewString())
}

// Resolver maps caller-chosen symbolic ids to surface handles for one
// canvas session. The first resolve of an id allocates its handle;
// every later resolve of that id returns the same handle. The mapping
// is only ever emptied in bulk by Clear.
//
// A Resolver is owned by exactly one Engine and is not safe for
// concurrent use without external serialization.
type Resolver struct {
	handles map[string]Handle
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{handles: make(map[string]Handle)}
}

// Resolve returns the handle for id, allocating one on first use.
func (r *Resolver) Resolve(id string) Handle {
	if h, ok := r.handles[id]; ok {
		return h
	}
	h := newHandle()
	r.handles[id] = h
	return h
}

// Lookup returns the handle for id without allocating. Used where
// creation-on-miss would be wrong: arrow endpoints, moves and styles
// must reference shapes that already exist.
func (r *Resolver) Lookup(id string) (Handle, bool) {
	h, ok := r.handles[id]
	return h, ok
}

// Clear empties the mapping and returns every handle that was tracked,
// so the caller can delete the corresponding shapes. After Clear, a
// previously used id resolves to a brand-new handle.
func (r *Resolver) Clear() []Handle {
	handles := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.handles = make(map[string]Handle)
	return handles
}

// Len returns the number of tracked ids.
func (r *Resolver) Len() int {
	return len(r.handles)
}
