package beacon

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature kinds written to the "kind" property
const (
	KindBeacon  = "beacon"
	KindScanner = "scanner"
	KindSensing = "sensing-range"
	KindEdge    = "registration"
)

// ResultToFeatureCollection exports a plan view (X/Y) of a result as GeoJSON.
// Z is kept as a property since GeoJSON positions here are planar.
func ResultToFeatureCollection(res *Result, sensingRange int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if res == nil {
		return fc
	}

	for _, p := range res.Beacons {
		f := geojson.NewFeature(orb.Point{float64(p.X), float64(p.Y)})
		f.Properties["kind"] = KindBeacon
		f.Properties["z"] = p.Z
		fc.Append(f)
	}

	rng := float64(sensingRange)
	for i, p := range res.Positions {
		f := geojson.NewFeature(orb.Point{float64(p.X), float64(p.Y)})
		f.ID = fmt.Sprintf("scanner-%d", i)
		f.Properties["kind"] = KindScanner
		f.Properties["scanner"] = i
		f.Properties["z"] = p.Z
		f.Properties["reference"] = i == res.Reference
		fc.Append(f)

		if sensingRange > 0 {
			bound := orb.Bound{
				Min: orb.Point{float64(p.X) - rng, float64(p.Y) - rng},
				Max: orb.Point{float64(p.X) + rng, float64(p.Y) + rng},
			}
			sq := geojson.NewFeature(bound.ToPolygon())
			sq.Properties["kind"] = KindSensing
			sq.Properties["scanner"] = i
			fc.Append(sq)
		}
	}

	for _, e := range res.Edges {
		if e.Anchor >= len(res.Positions) || e.Target >= len(res.Positions) {
			continue
		}
		from, to := res.Positions[e.Anchor], res.Positions[e.Target]
		f := geojson.NewFeature(orb.LineString{
			{float64(from.X), float64(from.Y)},
			{float64(to.X), float64(to.Y)},
		})
		f.Properties["kind"] = KindEdge
		f.Properties["anchor"] = e.Anchor
		f.Properties["target"] = e.Target
		f.Properties["overlap"] = e.Overlap
		fc.Append(f)
	}

	return fc
}

// SaveGeoJSON writes the GeoJSON export of res to path
func SaveGeoJSON(path string, res *Result, sensingRange int) error {
	data, err := ResultToFeatureCollection(res, sensingRange).MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling GeoJSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing GeoJSON: %w", err)
	}
	return nil
}
