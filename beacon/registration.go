package beacon

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultOverlapThreshold is the minimum number of coinciding beacons
	DefaultOverlapThreshold = 12

	// DefaultSensingRange is the half-width of a scanner's sensing cube
	DefaultSensingRange = 1000

	// DefaultMaxCandidates caps the |A|*24*|B| search size (16M candidates).
	DefaultMaxCandidates = 1 << 24
)

// ErrResourceExhausted is returned when a pairwise search would exceed the
// configured candidate limit.
var ErrResourceExhausted = errors.New("candidate limit exhausted")

// ResourceError reports a search that was refused because of its size
type ResourceError struct {
	Candidates int
	Limit      int
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("pairwise search needs %d candidates, limit is %d", e.Candidates, e.Limit)
}

func (e *ResourceError) Unwrap() error { return ErrResourceExhausted }

// DefaultRegistrationConfig returns the standard search parameters
func DefaultRegistrationConfig() RegistrationConfig {
	return RegistrationConfig{
		OverlapThreshold: DefaultOverlapThreshold,
		SensingRange:     DefaultSensingRange,
		Workers:          0,
		MaxCandidates:    DefaultMaxCandidates,
	}
}

// Pairer finds the transform that maps a candidate scanner into an anchor's frame
type Pairer interface {
	Register(ctx context.Context, anchor, candidate Scanner) (Registration, bool, error)
}

// Registrar runs the exhaustive pairwise search over every
// (anchor beacon, orientation, candidate beacon) triple.
type Registrar struct {
	config       RegistrationConfig
	orientations []Matrix4
}

// NewRegistrar creates a registrar, filling zero fields from the defaults
func NewRegistrar(config RegistrationConfig) *Registrar {
	def := DefaultRegistrationConfig()
	if config.OverlapThreshold <= 0 {
		config.OverlapThreshold = def.OverlapThreshold
	}
	if config.SensingRange <= 0 {
		config.SensingRange = def.SensingRange
	}
	if config.MaxCandidates <= 0 {
		config.MaxCandidates = def.MaxCandidates
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	return &Registrar{
		config:       config,
		orientations: Orientations(),
	}
}

// Config returns the effective configuration
func (r *Registrar) Config() RegistrationConfig {
	return r.config
}

// Key returns the effective settings that decide which registrations are accepted
func (r *Registrar) Key() SearchKey {
	return SearchKey{
		OverlapThreshold: r.config.OverlapThreshold,
		SensingRange:     r.config.SensingRange,
		MaxCandidates:    r.config.MaxCandidates,
	}
}

// laneHit is the first accepted candidate of one (a, o) lane
type laneHit struct {
	accepted bool
	b        int32
	overlap  int32
}

// Register searches for a transform mapping candidate's local frame into anchor's.
// ok is false when no candidate passes validation; that is an expected outcome,
// not an error. Among accepted candidates the first in (a, o, b) order wins.
func (r *Registrar) Register(ctx context.Context, anchor, cand Scanner) (Registration, bool, error) {
	nA, nB, nO := len(anchor.Beacons), len(cand.Beacons), len(r.orientations)
	if nA == 0 || nB == 0 {
		return Registration{}, false, nil
	}

	total := nA * nO * nB
	if total/nA/nO != nB || total > r.config.MaxCandidates {
		return Registration{}, false, &ResourceError{Candidates: total, Limit: r.config.MaxCandidates}
	}

	// Read-only inputs shared by every lane
	rotated := make([][]Point, nO)
	for o, m := range r.orientations {
		rotated[o] = TransformPoints(cand.Beacons, m)
	}
	index := make(map[Point]int, nA)
	for j := len(anchor.Beacons) - 1; j >= 0; j-- {
		index[anchor.Beacons[j]] = j
	}

	// Lane l = a*nO + o covers slots [l*nB, (l+1)*nB)
	hits := make([]laneHit, nA*nO)
	var best atomic.Int64
	best.Store(int64(total))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)

	for lane := range hits {
		base := lane * nB
		if int64(base) > best.Load() {
			continue
		}
		a, o := lane/nO, lane%nO
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Scratch is private to this lane
			covered := make([]bool, nA)
			for b := 0; b < nB; b++ {
				slot := base + b
				if int64(slot) > best.Load() {
					return nil
				}
				diff := anchor.Beacons[a].Sub(rotated[o][b])
				overlap, ok := r.evaluate(anchor.Beacons, index, rotated[o], diff, covered)
				if ok {
					hits[lane] = laneHit{accepted: true, b: int32(b), overlap: int32(overlap)}
					lowerBest(&best, int64(slot))
					return nil
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Registration{}, false, fmt.Errorf("pairwise search %d<-%d: %w", anchor.ID, cand.ID, err)
	}

	// A lane only stops early once a lower slot was accepted, so the first
	// lane with a hit holds the lowest accepted slot.
	for lane, h := range hits {
		if !h.accepted {
			continue
		}
		a, o, b := lane/nO, lane%nO, int(h.b)
		diff := anchor.Beacons[a].Sub(rotated[o][b])
		return Registration{
			Transform:       CreateRotationTranslation(r.orientations[o], diff),
			Orientation:     o,
			Translation:     diff,
			Overlap:         int(h.overlap),
			AnchorBeacon:    a,
			CandidateBeacon: b,
		}, true, nil
	}

	return Registration{}, false, nil
}

// evaluate validates one candidate translation of an already rotated beacon list.
// It returns the overlap count and whether the candidate is accepted. Any
// translated beacon inside the anchor's cube without an exact match, or any
// anchor beacon inside the candidate's cube that was never matched, is a
// contradiction and rejects the candidate regardless of overlap.
func (r *Registrar) evaluate(anchor []Point, index map[Point]int, rotated []Point, diff Point, covered []bool) (int, bool) {
	clear(covered)
	rng := r.config.SensingRange

	overlap := 0
	for _, p := range rotated {
		t := p.Add(diff)
		if j, ok := index[t]; ok {
			overlap++
			covered[j] = true
			continue
		}
		if t.InRange(rng) {
			return overlap, false
		}
	}

	for j, p := range anchor {
		if !covered[j] && p.Sub(diff).InRange(rng) {
			return overlap, false
		}
	}

	return overlap, overlap >= r.config.OverlapThreshold
}

// lowerBest lowers v to slot if slot is smaller
func lowerBest(v *atomic.Int64, slot int64) {
	for {
		cur := v.Load()
		if slot >= cur || v.CompareAndSwap(cur, slot) {
			return
		}
	}
}
