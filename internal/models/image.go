package models

import (
	"image"
	"time"
)

// PointCloud is the unordered union of all external contour points of a
// binary frame. Empty is a valid state.
type PointCloud []image.Point

// Polygon is an ordered closed boundary; it may hold fewer than 3 vertices.
type Polygon []image.Point

// BoundaryPair holds the convex hull and its simplified counterpart.
type BoundaryPair struct {
	Outer Polygon
	Inner Polygon
}

// AreaResult is never clamped: MeltPoolArea may be negative when the inner
// boundary encloses more than the hull.
type AreaResult struct {
	OuterArea    float64
	InnerArea    float64
	MeltPoolArea float64
}

// Measurement is the per-frame outcome handed to sinks and the ledger.
type Measurement struct {
	FrameID     string
	Points      int
	Contours    int
	Pair        BoundaryPair
	Area        AreaResult
	Bounds      image.Rectangle
	ProcessTime time.Duration
}
