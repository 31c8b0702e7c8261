package geometry

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// BuildingPoint is a geocoded building as drawn on the portfolio map.
type BuildingPoint struct {
	ID            uint
	OwnerID       uint
	OwnerName     string
	Address       string
	Latitude      float64
	Longitude     float64
	UnitCount     int64
	OccupiedUnits int64
}

// BuildingsFeatureCollection returns one point feature per building and, for
// every owner with at least three distinct locations, a polygon feature
// outlining that owner's portfolio.
func BuildingsFeatureCollection(points []BuildingPoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	byOwner := make(map[uint][]orb.Point)
	names := make(map[uint]string)
	for _, b := range points {
		p := orb.Point{b.Longitude, b.Latitude}
		f := geojson.NewFeature(p)
		f.ID = b.ID
		f.Properties = geojson.Properties{
			"kind":           "building",
			"building_id":    b.ID,
			"owner_id":       b.OwnerID,
			"owner":          b.OwnerName,
			"address":        b.Address,
			"units":          b.UnitCount,
			"occupied_units": b.OccupiedUnits,
		}
		fc.Append(f)

		byOwner[b.OwnerID] = append(byOwner[b.OwnerID], p)
		names[b.OwnerID] = b.OwnerName
	}

	ownerIDs := make([]uint, 0, len(byOwner))
	for id := range byOwner {
		ownerIDs = append(ownerIDs, id)
	}
	sort.Slice(ownerIDs, func(i, j int) bool { return ownerIDs[i] < ownerIDs[j] })

	for _, id := range ownerIDs {
		hull := ConvexHull(byOwner[id])
		if hull == nil {
			continue
		}
		f := geojson.NewFeature(orb.Polygon{hull})
		f.Properties = geojson.Properties{
			"kind":      "portfolio",
			"owner_id":  id,
			"owner":     names[id],
			"buildings": len(byOwner[id]),
		}
		fc.Append(f)
	}
	return fc
}

// ConvexHull returns the closed counter-clockwise hull of the points, or nil
// when fewer than three distinct non-collinear points are given.
func ConvexHull(points []orb.Point) orb.Ring {
	pts := uniquePoints(points)
	if len(pts) < 3 {
		return nil
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	// Andrew's monotone chain
	hull := make([]orb.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// hull ends with the first point again, so 4 entries is a triangle
	if len(hull) < 4 {
		return nil
	}
	return orb.Ring(hull)
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func uniquePoints(points []orb.Point) []orb.Point {
	seen := make(map[orb.Point]bool, len(points))
	out := make([]orb.Point, 0, len(points))
	for _, p := range points {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
