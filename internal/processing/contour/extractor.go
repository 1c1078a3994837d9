// Package contour turns a binary mask into the point cloud of its external
// contours.
package contour

import (
	"gocv.io/x/gocv"
	"meltpool/internal/models"
	"meltpool/internal/opencv/safe"
)

// Extract returns the union of all points on the outermost contours of bin
// and how many such contours there were. Nested contours are not traversed
// and collinear runs are already merged by the simple chain approximation.
// A mask without foreground yields an empty cloud and no error.
func Extract(bin *safe.Mat) (models.PointCloud, int, error) {
	if err := safe.ValidateGray(bin, "contour extraction"); err != nil {
		return nil, 0, err
	}

	contours := gocv.FindContours(bin.GetMat(), gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	cloud := make(models.PointCloud, 0)
	for i := 0; i < contours.Size(); i++ {
		cloud = append(cloud, contours.At(i).ToPoints()...)
	}

	return cloud, contours.Size(), nil
}
