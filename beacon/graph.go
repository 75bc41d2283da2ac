package beacon

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

// DisconnectedGraphError is returned when traversal from the reference ends
// with scanners that no registration chain could reach.
type DisconnectedGraphError struct {
	Reference    int
	Unregistered []int
}

func (e *DisconnectedGraphError) Error() string {
	ids := make([]string, len(e.Unregistered))
	for i, id := range e.Unregistered {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("overlap graph is disconnected: scanners [%s] cannot be registered to reference %d",
		strings.Join(ids, ", "), e.Reference)
}

// FrameMap holds each scanner's transform into the reference frame.
// Entries are write-once; the first Claim for an index wins.
type FrameMap struct {
	mu        sync.RWMutex
	reference int
	frames    map[int]Matrix4
}

// NewFrameMap creates a frame map with the reference scanner at identity
func NewFrameMap(reference int) *FrameMap {
	return &FrameMap{
		reference: reference,
		frames:    map[int]Matrix4{reference: Identity()},
	}
}

// Reference returns the reference scanner index
func (f *FrameMap) Reference() int {
	return f.reference
}

// Get returns the frame for a scanner and whether it is registered
func (f *FrameMap) Get(scanner int) (Matrix4, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, ok := f.frames[scanner]
	return m, ok
}

// Claim stores m for scanner unless a frame is already present.
// Returns true if this call stored the frame.
func (f *FrameMap) Claim(scanner int, m Matrix4) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.frames[scanner]; ok {
		return false
	}
	f.frames[scanner] = m
	return true
}

// Len returns the number of registered scanners
func (f *FrameMap) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.frames)
}

// Snapshot returns a copy of all frames
func (f *FrameMap) Snapshot() map[int]Matrix4 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[int]Matrix4, len(f.frames))
	for k, v := range f.frames {
		out[k] = v
	}
	return out
}

// FrameMapFrom rebuilds a frame map from stored frames (e.g. a cache).
// The reference entry is always forced to identity.
func FrameMapFrom(reference int, frames map[int]Matrix4) *FrameMap {
	fm := NewFrameMap(reference)
	for k, v := range frames {
		fm.Claim(k, v)
	}
	return fm
}

// ResolveFrames registers every scanner to the reference by breadth-first
// traversal: each newly registered scanner becomes an anchor for the rest.
// Edges are discovered lazily through pairer. A traversal that cannot reach
// every scanner fails with *DisconnectedGraphError.
func ResolveFrames(ctx context.Context, pairer Pairer, scanners []Scanner, reference int) (*FrameMap, []Edge, error) {
	if len(scanners) == 0 {
		return nil, nil, ErrNoScanners
	}
	if reference < 0 || reference >= len(scanners) {
		return nil, nil, fmt.Errorf("reference scanner %d out of range [0, %d)", reference, len(scanners))
	}

	frames := NewFrameMap(reference)
	queue := []int{reference}
	var edges []Edge

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		anchorFrame, _ := frames.Get(n)

		for m := range scanners {
			if m == n {
				continue
			}
			if _, ok := frames.Get(m); ok {
				continue
			}

			reg, ok, err := pairer.Register(ctx, scanners[n], scanners[m])
			if err != nil {
				return nil, nil, fmt.Errorf("registering scanner %d against %d: %w", m, n, err)
			}
			if !ok {
				continue
			}

			if frames.Claim(m, MultiplyMatrices(anchorFrame, reg.Transform)) {
				queue = append(queue, m)
				edges = append(edges, Edge{Anchor: n, Target: m, Overlap: reg.Overlap})
				log.Printf("[GRAPH] scanner %d registered via %d (orientation %d, overlap %d)",
					m, n, reg.Orientation, reg.Overlap)
			}
		}
	}

	if frames.Len() != len(scanners) {
		var missing []int
		for m := range scanners {
			if _, ok := frames.Get(m); !ok {
				missing = append(missing, m)
			}
		}
		sort.Ints(missing)
		return frames, edges, &DisconnectedGraphError{Reference: reference, Unregistered: missing}
	}

	return frames, edges, nil
}
