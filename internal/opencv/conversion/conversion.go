// Package conversion bridges safe Mats and Go images for display surfaces.
package conversion

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"meltpool/internal/opencv/safe"
)

// MatToImage converts a gray or BGR Mat into a Go image. The pixel buffer
// is copied so the result outlives src.
func MatToImage(src *safe.Mat) (image.Image, error) {
	if err := safe.ValidateMatForOperation(src, "Mat to image conversion"); err != nil {
		return nil, err
	}

	rows := src.Rows()
	cols := src.Cols()
	data := src.Bytes()

	switch src.Channels() {
	case 1:
		return grayImage(data, rows, cols)
	case 3:
		return bgrToRGBA(data, rows, cols)
	default:
		return nil, fmt.Errorf("unsupported channel count: %d", src.Channels())
	}
}

// Preview converts src and fits it inside maxWidth x maxHeight, keeping the
// aspect ratio. Frames already small enough are returned unscaled.
func Preview(src *safe.Mat, maxWidth, maxHeight int) (image.Image, error) {
	img, err := MatToImage(src)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if maxWidth <= 0 || maxHeight <= 0 || (b.Dx() <= maxWidth && b.Dy() <= maxHeight) {
		return img, nil
	}
	return imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos), nil
}

func grayImage(data []byte, rows, cols int) (*image.Gray, error) {
	if len(data) < rows*cols {
		return nil, fmt.Errorf("gray buffer holds %d bytes, need %d", len(data), rows*cols)
	}

	img := image.NewGray(image.Rect(0, 0, cols, rows))
	copy(img.Pix, data[:rows*cols])
	return img, nil
}

func bgrToRGBA(data []byte, rows, cols int) (*image.RGBA, error) {
	if len(data) < rows*cols*3 {
		return nil, fmt.Errorf("BGR buffer holds %d bytes, need %d", len(data), rows*cols*3)
	}

	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for i, j := 0, 0; i < rows*cols*3; i, j = i+3, j+4 {
		img.Pix[j] = data[i+2]
		img.Pix[j+1] = data[i+1]
		img.Pix[j+2] = data[i]
		img.Pix[j+3] = 255
	}
	return img, nil
}
