// Package geometry assigns detection centroids to named lane and
// intersection polygons.
//
// Regions are kept in an ordered slice. Polygons may overlap, and the first
// region in declaration order that contains a point wins, so the order of the
// region table is part of its meaning.
package geometry

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Unknown is the lane name reported for a point outside every region.
const Unknown = "unknown"

// DefaultBufferRadius is the distance, in resized pixels, by which every
// polygon is grown before containment tests.
const DefaultBufferRadius = 2.0

// Point is an integer pixel coordinate.
type Point struct {
	X, Y int
}

// Size is a frame resolution in pixels.
type Size struct {
	Width, Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Region is a named closed polygon in pixel space. The ring is implicitly
// closed; the first point is not repeated at the end.
type Region struct {
	Name   string
	Points []Point
}

// Scale maps regions from one resolution to another using independent x and
// y factors. Scaled coordinates are truncated towards zero.
func Scale(regions []Region, from, to Size) ([]Region, error) {
	if from.Width <= 0 || from.Height <= 0 {
		return nil, fmt.Errorf("invalid source resolution %s", from)
	}
	sx := float64(to.Width) / float64(from.Width)
	sy := float64(to.Height) / float64(from.Height)

	scaled := make([]Region, len(regions))
	for i, r := range regions {
		pts := make([]Point, len(r.Points))
		for j, p := range r.Points {
			pts[j] = Point{X: int(float64(p.X) * sx), Y: int(float64(p.Y) * sy)}
		}
		scaled[i] = Region{Name: r.Name, Points: pts}
	}
	return scaled, nil
}

type bufferedRegion struct {
	name    string
	polygon orb.Polygon
	bound   orb.Bound
}

// RegionSet is an ordered set of buffered regions.
type RegionSet struct {
	radius  float64
	regions []bufferedRegion
}

// NewRegionSet builds the buffered shapes for regions, preserving their order.
// A radius of zero disables buffering.
func NewRegionSet(regions []Region, radius float64) (*RegionSet, error) {
	if radius < 0 {
		return nil, fmt.Errorf("buffer radius must be non-negative, got %f", radius)
	}
	set := &RegionSet{radius: radius, regions: make([]bufferedRegion, 0, len(regions))}
	for _, r := range regions {
		if len(r.Points) < 3 {
			return nil, fmt.Errorf("region %q needs at least 3 points, got %d", r.Name, len(r.Points))
		}
		ring := make(orb.Ring, 0, len(r.Points)+1)
		for _, p := range r.Points {
			ring = append(ring, orb.Point{float64(p.X), float64(p.Y)})
		}
		ring = append(ring, ring[0])
		poly := orb.Polygon{ring}
		set.regions = append(set.regions, bufferedRegion{
			name:    r.Name,
			polygon: poly,
			bound:   poly.Bound().Pad(radius),
		})
	}
	return set, nil
}

// Names returns the region names in match order.
func (s *RegionSet) Names() []string {
	names := make([]string, len(s.regions))
	for i, r := range s.regions {
		names[i] = r.name
	}
	return names
}

// Len returns the number of regions.
func (s *RegionSet) Len() int {
	return len(s.regions)
}

// Locate returns the name of the first region whose buffered shape contains
// (x, y), or Unknown.
func (s *RegionSet) Locate(x, y int) string {
	p := orb.Point{float64(x), float64(y)}
	for _, r := range s.regions {
		if r.contains(p, s.radius) {
			return r.name
		}
	}
	return Unknown
}

// contains reports whether p lies inside the polygon grown by radius: either
// inside the ring or strictly closer than radius to its boundary.
func (r bufferedRegion) contains(p orb.Point, radius float64) bool {
	if !r.bound.Contains(p) {
		return false
	}
	if planar.PolygonContains(r.polygon, p) {
		return true
	}
	if radius == 0 {
		return false
	}
	return planar.DistanceFrom(r.polygon[0], p) < radius
}
