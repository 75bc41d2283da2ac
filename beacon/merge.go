package beacon

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnregisteredScanner is returned when a scanner has no resolved frame
var ErrUnregisteredScanner = errors.New("scanner has no resolved frame")

// BeaconSet deduplicates beacons by exact coordinate equality.
// Exact equality is sound because every transform is an integer signed
// permutation plus an integer translation.
type BeaconSet struct {
	points map[Point]struct{}
}

// NewBeaconSet creates an empty set
func NewBeaconSet() *BeaconSet {
	return &BeaconSet{points: make(map[Point]struct{})}
}

// Add inserts p and reports whether it was new
func (s *BeaconSet) Add(p Point) bool {
	if _, ok := s.points[p]; ok {
		return false
	}
	s.points[p] = struct{}{}
	return true
}

// Contains reports whether p is in the set
func (s *BeaconSet) Contains(p Point) bool {
	_, ok := s.points[p]
	return ok
}

// Len returns the number of distinct beacons
func (s *BeaconSet) Len() int {
	return len(s.points)
}

// Points returns the beacons sorted by X, then Y, then Z
func (s *BeaconSet) Points() []Point {
	out := make([]Point, 0, len(s.points))
	for p := range s.points {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].Z < out[j].Z
	})
	return out
}

// MergeBeacons maps every scanner's beacons into the reference frame and
// deduplicates them. A scanner without a frame is an error, never skipped.
func MergeBeacons(scanners []Scanner, frames *FrameMap) (*BeaconSet, error) {
	set := NewBeaconSet()
	for i, s := range scanners {
		m, ok := frames.Get(i)
		if !ok {
			return nil, fmt.Errorf("merging scanner %d: %w", i, ErrUnregisteredScanner)
		}
		for _, p := range s.Beacons {
			set.Add(TransformPoint(p, m))
		}
	}
	return set, nil
}

// ScannerPositions returns each scanner's origin in the reference frame
func ScannerPositions(frames *FrameMap, count int) ([]Point, error) {
	out := make([]Point, count)
	for i := 0; i < count; i++ {
		m, ok := frames.Get(i)
		if !ok {
			return nil, fmt.Errorf("locating scanner %d: %w", i, ErrUnregisteredScanner)
		}
		out[i] = TranslationOf(m)
	}
	return out, nil
}

// MaxManhattanDistance returns the largest taxicab distance between any two positions
func MaxManhattanDistance(positions []Point) int {
	best := 0
	for i := range positions {
		for j := i + 1; j < len(positions); j++ {
			if d := positions[i].Manhattan(positions[j]); d > best {
				best = d
			}
		}
	}
	return best
}
