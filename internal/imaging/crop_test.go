package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/ironsheep/numscan/internal/geometry"
)

func TestCropNormalized(t *testing.T) {
	img := createPatternImage(100, 100)

	tests := []struct {
		name   string
		region geometry.Rect
		wantPx image.Rectangle
		want   color.RGBA
	}{
		{"top-left", geometry.Rect{X: 0, Y: 0, W: 0.5, H: 0.5}, image.Rect(0, 0, 50, 50), color.RGBA{255, 0, 0, 255}},
		{"top-right", geometry.Rect{X: 0.5, Y: 0, W: 0.5, H: 0.5}, image.Rect(50, 0, 100, 50), color.RGBA{0, 255, 0, 255}},
		{"bottom-left", geometry.Rect{X: 0, Y: 0.5, W: 0.5, H: 0.5}, image.Rect(0, 50, 50, 100), color.RGBA{0, 0, 255, 255}},
		{"overflow clamps", geometry.Rect{X: 0.5, Y: 0.5, W: 3, H: 3}, image.Rect(50, 50, 100, 100), color.RGBA{255, 255, 255, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cropped, px, err := CropNormalized(img, tt.region)
			if err != nil {
				t.Fatalf("CropNormalized failed: %v", err)
			}
			if px != tt.wantPx {
				t.Errorf("pixel rect: got %v, want %v", px, tt.wantPx)
			}
			if cropped.Bounds().Dx() != tt.wantPx.Dx() || cropped.Bounds().Dy() != tt.wantPx.Dy() {
				t.Errorf("size: got %v, want %dx%d", cropped.Bounds(), tt.wantPx.Dx(), tt.wantPx.Dy())
			}
			r, g, b, _ := cropped.At(5, 5).RGBA()
			got := color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 255}
			if got != tt.want {
				t.Errorf("content: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCropNormalized_Empty(t *testing.T) {
	img := createPatternImage(100, 100)
	if _, _, err := CropNormalized(img, geometry.Rect{X: 0.2, Y: 0.2}); err == nil {
		t.Error("expected error for zero-size region")
	}
	if _, _, err := CropNormalized(nil, geometry.Rect{W: 1, H: 1}); err == nil {
		t.Error("expected error for nil image")
	}
}

func TestScale(t *testing.T) {
	img := createInMemoryImage(100, 40, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		factor      float64
		wantW, wantH int
	}{
		{1, 100, 40},
		{0, 100, 40},
		{2, 200, 80},
		{0.5, 50, 20},
		{0.001, 1, 1},
	}
	for _, tt := range tests {
		got := Scale(img, tt.factor).Bounds()
		if got.Dx() != tt.wantW || got.Dy() != tt.wantH {
			t.Errorf("Scale(%v): got %dx%d, want %dx%d", tt.factor, got.Dx(), got.Dy(), tt.wantW, tt.wantH)
		}
	}
}

func TestEncodePNG(t *testing.T) {
	img := createPatternImage(20, 10)
	data, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 20 || decoded.Bounds().Dy() != 10 {
		t.Errorf("decoded size: got %v", decoded.Bounds())
	}
}
