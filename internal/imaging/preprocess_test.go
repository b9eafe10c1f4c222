package imaging

import (
	"image/color"
	"testing"

	"github.com/ironsheep/numscan/internal/config"
)

func TestPreprocess_GrayscaleAndSize(t *testing.T) {
	img := createPatternImage(40, 20)

	tests := []struct {
		name         string
		opts         PreprocessOptions
		wantW, wantH int
	}{
		{"defaults", PreprocessOptionsFromTuning(config.EmptyTuningConfig()), 40, 20},
		{"upscale", PreprocessOptions{Upscale: 2, Contrast: 20, Sharpen: true}, 80, 40},
		{"plain", PreprocessOptions{}, 40, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Preprocess(img, tt.opts)
			b := out.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Fatalf("size: got %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
			for _, p := range [][2]int{{2, 2}, {b.Dx() - 3, 2}, {2, b.Dy() - 3}, {b.Dx() - 3, b.Dy() - 3}} {
				r, g, bl, _ := out.At(b.Min.X+p[0], b.Min.Y+p[1]).RGBA()
				if r != g || g != bl {
					t.Errorf("pixel %v not gray: r=%d g=%d b=%d", p, r>>8, g>>8, bl>>8)
				}
			}
		})
	}
}

func TestPreprocess_ContrastSeparatesTones(t *testing.T) {
	img := createInMemoryImage(10, 10, color.RGBA{100, 100, 100, 255})

	plain := Preprocess(img, PreprocessOptions{})
	stretched := Preprocess(img, PreprocessOptions{Contrast: 80})

	p, _, _, _ := plain.At(5, 5).RGBA()
	s, _, _, _ := stretched.At(5, 5).RGBA()
	if s >= p {
		t.Errorf("a dark tone should get darker with more contrast: plain=%d stretched=%d", p>>8, s>>8)
	}
}
