// Package preprocess turns a captured photo into the fixed-size normalized
// tensor the embedding model expects.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	// Codecs for the formats capture devices actually produce.
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/face-clock/internal/geometry"
)

// ErrImageDecode is returned when the photo bytes cannot be decoded at all.
// There is no further degradation available; the caller should ask for a
// new capture.
var ErrImageDecode = errors.New("image decode failed")

// Normalization constants. These are baked into the trained model: changing
// either without retraining invalidates every enrolled embedding.
const (
	NormMean  = 127.5
	NormScale = 128.0
)

// Channels per pixel in the output tensor (RGB).
const Channels = 3

// Branch identifies which crop strategy produced a tensor.
type Branch string

const (
	// BranchPrimary means the detector-derived crop was used.
	BranchPrimary Branch = "primary"
	// BranchFallback means the detector box was unusable and a center
	// square crop was used instead. Match quality may be degraded.
	BranchFallback Branch = "fallback"
)

// Result is a normalized tensor plus the branch that produced it, so callers
// and tests can tell a clean crop from a fallback.
type Result struct {
	// Tensor holds exactly Channels*side*side float32 values in [-1, 1],
	// row-major, channel-interleaved (R, G, B per pixel).
	Tensor []float32
	Branch Branch
	Crop   geometry.CropArea
}

// Prepare decodes the photo, crops it using the detector frame and resizes
// to side x side. An unusable detector box falls back to a center square
// crop: a tensor is always produced unless the image itself cannot be
// decoded.
func Prepare(photo []byte, frame geometry.FaceFrame, side int) (*Result, error) {
	if side < 1 {
		return nil, fmt.Errorf("invalid tensor side %d", side)
	}

	img, _, err := image.Decode(bytes.NewReader(photo))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	area, err := geometry.PadAndClamp(frame, width, height)
	branch := BranchPrimary
	if err != nil {
		area, err = geometry.CenterSquare(width, height)
		branch = BranchFallback
		if err != nil {
			// Decoded image smaller than one pixel; treat as decode failure.
			return nil, fmt.Errorf("%w: degenerate image %dx%d", ErrImageDecode, width, height)
		}
	}

	tensor := toTensor(img, area, side)
	return &Result{Tensor: tensor, Branch: branch, Crop: area}, nil
}

// toTensor crops the image to area, resizes to side x side and normalizes
// each channel via (v - NormMean) / NormScale.
func toTensor(img image.Image, area geometry.CropArea, side int) []float32 {
	src := img.Bounds()
	cropRect := image.Rect(
		src.Min.X+area.X,
		src.Min.Y+area.Y,
		src.Min.X+area.X+area.Width,
		src.Min.Y+area.Y+area.Height,
	)

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, cropRect, draw.Src, nil)

	tensor := make([]float32, Channels*side*side)
	for y := 0; y < side; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < side; x++ {
			// RGBA pixel layout; alpha is dropped.
			r := row[x*4]
			g := row[x*4+1]
			b := row[x*4+2]
			base := (y*side + x) * Channels
			tensor[base] = (float32(r) - NormMean) / NormScale
			tensor[base+1] = (float32(g) - NormMean) / NormScale
			tensor[base+2] = (float32(b) - NormMean) / NormScale
		}
	}
	return tensor
}
