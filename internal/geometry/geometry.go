// Package geometry computes safe crop regions from detector bounding boxes.
// Detector output is untrusted: boxes may be degenerate, partially outside
// the image, or carry NaN/Inf coordinates from a confused detector.
package geometry

import (
	"errors"
	"math"
)

// ErrInvalidGeometry is returned when a face frame or image dimensions are
// too degenerate to produce a usable crop. Callers are expected to fall back
// to a center crop rather than abort the capture.
var ErrInvalidGeometry = errors.New("invalid face geometry")

// PaddingRatio is the fraction of max(width, height) added on each side of
// the detector box before clamping. The extra margin keeps chin, forehead
// and ears inside the crop, which measurably improves embedding quality.
const PaddingRatio = 0.2

// FaceFrame is a detector bounding box in image pixel coordinates.
type FaceFrame struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// CropArea is a rectangle guaranteed to lie fully inside the source image:
// X, Y >= 0, Width, Height >= 1 and X+Width <= imageWidth, Y+Height <= imageHeight.
type CropArea struct {
	X      int
	Y      int
	Width  int
	Height int
}

// finite reports whether all frame values are usable numbers.
func (f FaceFrame) finite() bool {
	for _, v := range []float64{f.X, f.Y, f.Width, f.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// PadAndClamp expands a detector box by PaddingRatio per side and clamps the
// result into the image. A smaller valid crop always beats an invalid one:
// the box is shrunk as needed but never repaired beyond clamping.
func PadAndClamp(frame FaceFrame, imageWidth, imageHeight int) (CropArea, error) {
	if imageWidth <= 1 || imageHeight <= 1 {
		return CropArea{}, ErrInvalidGeometry
	}
	if !frame.finite() || frame.Width <= 1 || frame.Height <= 1 {
		return CropArea{}, ErrInvalidGeometry
	}

	pad := PaddingRatio * math.Max(frame.Width, frame.Height)

	x := frame.X - pad
	y := frame.Y - pad
	w := frame.Width + 2*pad
	h := frame.Height + 2*pad

	// Clamp origin into [0, dim-1].
	x = clampFloat(x, 0, float64(imageWidth-1))
	y = clampFloat(y, 0, float64(imageHeight-1))

	area := CropArea{
		X:      int(math.Floor(x)),
		Y:      int(math.Floor(y)),
		Width:  int(math.Round(w)),
		Height: int(math.Round(h)),
	}

	// Shrink so the crop never exceeds the image.
	if area.X+area.Width > imageWidth {
		area.Width = imageWidth - area.X
	}
	if area.Y+area.Height > imageHeight {
		area.Height = imageHeight - area.Y
	}

	if area.Width < 1 || area.Height < 1 {
		return CropArea{}, ErrInvalidGeometry
	}

	return area, nil
}

// CenterSquare returns the largest centered square crop of the image.
// Used as the fallback when the detector box is unusable.
func CenterSquare(imageWidth, imageHeight int) (CropArea, error) {
	if imageWidth < 1 || imageHeight < 1 {
		return CropArea{}, ErrInvalidGeometry
	}
	side := min(imageWidth, imageHeight)
	return CropArea{
		X:      (imageWidth - side) / 2,
		Y:      (imageHeight - side) / 2,
		Width:  side,
		Height: side,
	}, nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
