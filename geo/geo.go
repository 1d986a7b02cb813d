// Package geo provides coordinate reference identifiers, projections between
// geographic and planar coordinates and small rectangle helpers.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Crs identifies a coordinate reference system.
type Crs string

const (
	EPSG3857 Crs = "EPSG:3857"
	EPSG4326 Crs = "EPSG:4326"
)

// MaxMercatorLat is the latitude at which the Web Mercator square ends.
const MaxMercatorLat = 85.05112877980659

// MercatorExtent is the half-width of the Web Mercator square in meters.
const MercatorExtent = math.Pi * orb.EarthRadius

// Projection converts points between geographic (lon/lat) and planar coordinates.
type Projection interface {
	Crs() Crs
	Project(p orb.Point) orb.Point
	Unproject(p orb.Point) orb.Point
}

// WebMercator is the spherical Mercator projection used by web maps.
type WebMercator struct{}

func (WebMercator) Crs() Crs { return EPSG3857 }

func (WebMercator) Project(p orb.Point) orb.Point {
	lat := math.Max(-MaxMercatorLat, math.Min(MaxMercatorLat, p.Lat()))
	return project.WGS84.ToMercator(orb.Point{p.Lon(), lat})
}

func (WebMercator) Unproject(p orb.Point) orb.Point {
	return project.Mercator.ToWGS84(p)
}

// Identity leaves coordinates untouched; it is used for schemas that are
// already expressed in geographic degrees.
type Identity struct{}

func (Identity) Crs() Crs                        { return EPSG4326 }
func (Identity) Project(p orb.Point) orb.Point   { return p }
func (Identity) Unproject(p orb.Point) orb.Point { return p }

// ProjectionFor returns the projection from lon/lat into crs.
func ProjectionFor(crs Crs) (Projection, bool) {
	switch crs {
	case EPSG3857:
		return WebMercator{}, true
	case EPSG4326:
		return Identity{}, true
	}
	return nil, false
}

// ProjectBound projects a lon/lat bound into planar coordinates.
func ProjectBound(proj Projection, b orb.Bound) orb.Bound {
	return orb.Bound{Min: proj.Project(b.Min), Max: proj.Project(b.Max)}
}

// Center returns the center point of b.
func Center(b orb.Bound) orb.Point {
	return orb.Point{(b.Min[0] + b.Max[0]) / 2, (b.Min[1] + b.Max[1]) / 2}
}

// Intersection returns the overlap of a and b. The second result is false
// when the overlap has zero area or either bound is not finite.
func Intersection(a, b orb.Bound) (orb.Bound, bool) {
	if Degenerate(a) || Degenerate(b) {
		return orb.Bound{}, false
	}
	r := orb.Bound{
		Min: orb.Point{math.Max(a.Min[0], b.Min[0]), math.Max(a.Min[1], b.Min[1])},
		Max: orb.Point{math.Min(a.Max[0], b.Max[0]), math.Min(a.Max[1], b.Max[1])},
	}
	if Degenerate(r) {
		return orb.Bound{}, false
	}
	return r, true
}

// Degenerate reports whether b has no area or non-finite corners.
func Degenerate(b orb.Bound) bool {
	for _, v := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return b.Min[0] >= b.Max[0] || b.Min[1] >= b.Max[1]
}
