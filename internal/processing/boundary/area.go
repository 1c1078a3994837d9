package boundary

import (
	"math"

	"meltpool/internal/models"
)

// SignedArea is the shoelace area of poly; counter-clockwise in image
// coordinates gives a negative value. Degenerate polygons have area 0.
func SignedArea(poly models.Polygon) float64 {
	n := len(poly)
	if n < 3 {
		return 0
	}

	var sum int64
	for i := 0; i < n; i++ {
		a := poly[i]
		b := poly[(i+1)%n]
		sum += int64(a.X)*int64(b.Y) - int64(b.X)*int64(a.Y)
	}
	return float64(sum) / 2.0
}

func Area(poly models.Polygon) float64 {
	return math.Abs(SignedArea(poly))
}

// Compute reports both areas and scale*(outer-inner). A non-positive scale
// is treated as 1. The difference is not clamped.
func Compute(pair models.BoundaryPair, scale float64) models.AreaResult {
	if scale <= 0 {
		scale = 1.0
	}

	outer := Area(pair.Outer)
	inner := Area(pair.Inner)

	return models.AreaResult{
		OuterArea:    outer,
		InnerArea:    inner,
		MeltPoolArea: scale * (outer - inner),
	}
}
