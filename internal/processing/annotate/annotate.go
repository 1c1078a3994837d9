// Package annotate draws a measurement onto a color copy of a frame.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
)

// Style controls the overlay.
type Style struct {
	OuterColor  color.RGBA
	InnerColor  color.RGBA
	BoundsColor color.RGBA
	TextColor   color.RGBA
	Thickness   int
	ShowBounds  bool
	TextOrigin  image.Point
	FontScale   float64
}

func DefaultStyle() Style {
	return Style{
		OuterColor:  color.RGBA{R: 255, A: 255},
		InnerColor:  color.RGBA{G: 255, A: 255},
		BoundsColor: color.RGBA{B: 255, A: 255},
		TextColor:   color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Thickness:   2,
		TextOrigin:  image.Pt(10, 30),
		FontScale:   1.0,
	}
}

// Label formats the area text drawn on every annotated frame.
func Label(area models.AreaResult) string {
	return fmt.Sprintf("Area: %.2f px", area.MeltPoolArea)
}

// Draw returns a BGR copy of frame with both boundaries and the area label.
// frame itself is left untouched.
func Draw(frame *safe.Mat, m models.Measurement, style Style) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(frame, "annotate"); err != nil {
		return nil, err
	}

	canvas, err := toBGR(frame)
	if err != nil {
		return nil, err
	}

	polyline(&canvas, m.Pair.Outer, style.OuterColor, style.Thickness)
	polyline(&canvas, m.Pair.Inner, style.InnerColor, style.Thickness)

	if style.ShowBounds && !m.Bounds.Empty() {
		gocv.Rectangle(&canvas, m.Bounds, style.BoundsColor, style.Thickness)
	}

	gocv.PutText(&canvas, Label(m.Area), style.TextOrigin, gocv.FontHersheySimplex,
		style.FontScale, style.TextColor, style.Thickness)

	return safe.Adopt(canvas, "annotated")
}

func toBGR(frame *safe.Mat) (gocv.Mat, error) {
	src := frame.GetMat()
	switch frame.Channels() {
	case 1:
		dst := gocv.NewMat()
		gocv.CvtColor(src, &dst, gocv.ColorGrayToBGR)
		if dst.Empty() {
			dst.Close()
			return gocv.Mat{}, fmt.Errorf("gray to BGR conversion produced no output")
		}
		return dst, nil
	case 3:
		return src.Clone(), nil
	default:
		return gocv.Mat{}, fmt.Errorf("annotate: unsupported channel count %d", frame.Channels())
	}
}

// polyline draws a closed polygon; fewer than two vertices draws nothing.
func polyline(canvas *gocv.Mat, poly models.Polygon, c color.RGBA, thickness int) {
	if len(poly) < 2 {
		return
	}

	pts := gocv.NewPointsVectorFromPoints([][]image.Point{poly})
	defer pts.Close()
	gocv.Polylines(canvas, pts, true, c, thickness)
}
