package beacon

import (
	"context"
	"fmt"
	"log"
)

// RangeError reports a beacon outside its scanner's sensing cube
type RangeError struct {
	Scanner int
	Beacon  int
	Point   Point
	Range   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("scanner %d beacon %d at (%d,%d,%d) is outside sensing range ±%d",
		e.Scanner, e.Beacon, e.Point.X, e.Point.Y, e.Point.Z, e.Range)
}

// ValidateScanners checks the report is non-empty and every local beacon
// lies inside the sensing cube.
func ValidateScanners(scanners []Scanner, sensingRange int) error {
	if len(scanners) == 0 {
		return ErrNoScanners
	}
	for i, s := range scanners {
		for j, p := range s.Beacons {
			if !p.InRange(sensingRange) {
				return &RangeError{Scanner: i, Beacon: j, Point: p, Range: sensingRange}
			}
		}
	}
	return nil
}

// Solve registers every scanner to the configured reference and merges all
// beacons into one frame.
func Solve(ctx context.Context, scanners []Scanner, config *Config) (*Result, error) {
	return SolveWithCache(ctx, scanners, config, nil)
}

// SolveWithCache is Solve, but reuses cached frames when the cache matches
// this exact report, reference and search settings.
func SolveWithCache(ctx context.Context, scanners []Scanner, config *Config, cache *FrameCache) (*Result, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := ValidateScanners(scanners, effectiveRange(config)); err != nil {
		return nil, fmt.Errorf("validating report: %w", err)
	}

	fingerprint := Fingerprint(scanners)
	registrar := NewRegistrar(config.Registration)
	key := registrar.Key()

	var frames *FrameMap
	var edges []Edge
	fromCache := false

	if cache.Matches(fingerprint, config.Reference, len(scanners), key) {
		log.Printf("Reusing cached frames for report %s", shortFingerprint(fingerprint))
		frames = FrameMapFrom(config.Reference, cache.Frames)
		edges = cache.Edges
		fromCache = true
	} else {
		var err error
		frames, edges, err = ResolveFrames(ctx, registrar, scanners, config.Reference)
		if err != nil {
			return nil, err
		}
	}

	set, err := MergeBeacons(scanners, frames)
	if err != nil {
		return nil, err
	}
	positions, err := ScannerPositions(frames, len(scanners))
	if err != nil {
		return nil, err
	}

	return &Result{
		Reference:    config.Reference,
		ScannerCount: len(scanners),
		BeaconCount:  set.Len(),
		Beacons:      set.Points(),
		Frames:       frames.Snapshot(),
		Positions:    positions,
		Edges:        edges,
		MaxDistance:  MaxManhattanDistance(positions),
		Fingerprint:  fingerprint,
		Search:       key,
		FromCache:    fromCache,
	}, nil
}

func effectiveRange(config *Config) int {
	if config.Registration.SensingRange > 0 {
		return config.Registration.SensingRange
	}
	return DefaultSensingRange
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
