// Package boundary builds the outer/inner boundary pair of a point cloud and
// measures the area between them.
package boundary

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"meltpool/internal/models"
)

// Build computes the convex hull of points and a Douglas-Peucker
// simplification whose epsilon is tolerancePercent of the relevant
// perimeter. Fewer than three distinct points give degenerate polygons.
func Build(points models.PointCloud, tolerancePercent int, policy models.InnerPolicy) (models.BoundaryPair, error) {
	if tolerancePercent < 0 || tolerancePercent > 100 {
		return models.BoundaryPair{}, fmt.Errorf("%w: tolerance %d outside [0,100]", models.ErrInvalidConfig, tolerancePercent)
	}

	distinct := firstDistinct(points, 3)
	if len(distinct) < 3 {
		return models.BoundaryPair{
			Outer: models.Polygon(distinct),
			Inner: append(models.Polygon(nil), distinct...),
		}, nil
	}

	cloud := gocv.NewPointVectorFromPoints(points)
	defer cloud.Close()

	outer, err := convexHull(cloud)
	if err != nil {
		return models.BoundaryPair{}, err
	}

	tolerance := float64(tolerancePercent) / 100.0

	var inner models.Polygon
	switch policy {
	case models.InnerFromHull:
		hull := gocv.NewPointVectorFromPoints(outer)
		defer hull.Close()
		inner = simplify(hull, tolerance*gocv.ArcLength(hull, true), true)
	case models.InnerFromPoints:
		inner = simplify(cloud, tolerance*gocv.ArcLength(cloud, true), false)
	default:
		return models.BoundaryPair{}, fmt.Errorf("%w: unknown inner policy %q", models.ErrInvalidConfig, policy)
	}

	return models.BoundaryPair{Outer: outer, Inner: inner}, nil
}

func convexHull(cloud gocv.PointVector) (models.Polygon, error) {
	hullMat := gocv.NewMat()
	defer hullMat.Close()

	gocv.ConvexHull(cloud, &hullMat, false, true)
	if hullMat.Empty() {
		return nil, fmt.Errorf("convex hull of %d points produced no output", cloud.Size())
	}

	hull := gocv.NewPointVectorFromMat(hullMat)
	defer hull.Close()

	return dropCollinear(hull.ToPoints()), nil
}

func simplify(curve gocv.PointVector, epsilon float64, closed bool) models.Polygon {
	approx := gocv.ApproxPolyDP(curve, epsilon, closed)
	defer approx.Close()
	return models.Polygon(approx.ToPoints())
}

// dropCollinear removes vertices that lie on the segment between their
// neighbours so the hull carries corner vertices only.
func dropCollinear(poly []image.Point) models.Polygon {
	if len(poly) < 3 {
		return models.Polygon(poly)
	}

	out := make(models.Polygon, 0, len(poly))
	n := len(poly)
	for i := 0; i < n; i++ {
		prev := poly[(i+n-1)%n]
		next := poly[(i+1)%n]
		if cross(prev, poly[i], next) != 0 {
			out = append(out, poly[i])
		}
	}

	if len(out) < 3 {
		return endpoints(poly)
	}
	return out
}

// endpoints returns the two farthest-apart vertices of a collinear polygon.
func endpoints(poly []image.Point) models.Polygon {
	lo, hi := poly[0], poly[0]
	for _, p := range poly[1:] {
		if p.X < lo.X || (p.X == lo.X && p.Y < lo.Y) {
			lo = p
		}
		if p.X > hi.X || (p.X == hi.X && p.Y > hi.Y) {
			hi = p
		}
	}
	if lo == hi {
		return models.Polygon{lo}
	}
	return models.Polygon{lo, hi}
}

// cross is the z component of (b-a)x(c-b).
func cross(a, b, c image.Point) int {
	return (b.X-a.X)*(c.Y-b.Y) - (b.Y-a.Y)*(c.X-b.X)
}

// firstDistinct returns up to limit distinct points in input order.
func firstDistinct(points models.PointCloud, limit int) []image.Point {
	seen := make(map[image.Point]struct{}, limit)
	out := make([]image.Point, 0, limit)
	for _, p := range points {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Bounds is the axis-aligned bounding box of points; empty when points is.
func Bounds(points models.PointCloud) image.Rectangle {
	if len(points) == 0 {
		return image.Rectangle{}
	}

	cloud := gocv.NewPointVectorFromPoints(points)
	defer cloud.Close()
	return gocv.BoundingRect(cloud)
}
