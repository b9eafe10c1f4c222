package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/numscan/internal/geometry"
)

// CropNormalized extracts a normalized region from img. The returned rectangle
// is the pixel area that was cropped, in img's coordinate space.
//
// The region is clamped to the unit square first. An empty region, or one that
// rounds to zero pixels, is an error.
func CropNormalized(img image.Image, r geometry.Rect) (*image.NRGBA, image.Rectangle, error) {
	if img == nil {
		return nil, image.Rectangle{}, fmt.Errorf("no image to crop")
	}
	px := r.ToPixels(img.Bounds())
	if px.Empty() {
		return nil, image.Rectangle{}, fmt.Errorf("crop region %+v is empty at %dx%d",
			r, img.Bounds().Dx(), img.Bounds().Dy())
	}
	return imaging.Crop(img, px), px, nil
}

// Scale resizes img by factor with Lanczos resampling. A factor of 1 (or any
// non-positive factor) returns a copy at the original size.
func Scale(img image.Image, factor float64) *image.NRGBA {
	if factor <= 0 || factor == 1 {
		return imaging.Clone(img)
	}
	b := img.Bounds()
	w := int(float64(b.Dx())*factor + 0.5)
	h := int(float64(b.Dy())*factor + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
