package imaging

import (
	"image"
	"image/color"
	"testing"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/numscan/internal/geometry"
)

// createInMemoryImage creates an in-memory test image
func createInMemoryImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createPatternImage creates an image with different colors in each quadrant
func createPatternImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			if x < width/2 && y < height/2 {
				c = color.RGBA{255, 0, 0, 255} // Red top-left
			} else if x >= width/2 && y < height/2 {
				c = color.RGBA{0, 255, 0, 255} // Green top-right
			} else if x < width/2 && y >= height/2 {
				c = color.RGBA{0, 0, 255, 255} // Blue bottom-left
			} else {
				c = color.RGBA{255, 255, 255, 255} // White bottom-right
			}
			img.Set(x, y, c)
		}
	}
	return img
}

var (
	topLeft  = geometry.Rect{X: 0, Y: 0, W: 0.5, H: 0.5}
	topHalf  = geometry.Rect{X: 0, Y: 0, W: 1, H: 0.5}
	fullSize = geometry.Rect{X: 0, Y: 0, W: 1, H: 1}
)

func TestDominantColors_SingleColorRegion(t *testing.T) {
	img := createPatternImage(100, 100)

	colors, err := DominantColors(img, topLeft, 5)
	if err != nil {
		t.Fatalf("DominantColors failed: %v", err)
	}
	if len(colors) != 1 {
		t.Fatalf("expected 1 color in a solid quadrant, got %d", len(colors))
	}
	if colors[0].Hex != "#f00000" {
		t.Errorf("Hex: got %s, want #f00000 (quantized red)", colors[0].Hex)
	}
	if colors[0].Percentage != 100 {
		t.Errorf("Percentage: got %.1f, want 100", colors[0].Percentage)
	}
}

func TestDominantColors_CountAndOrder(t *testing.T) {
	img := createPatternImage(100, 100)

	colors, err := DominantColors(img, fullSize, 2)
	if err != nil {
		t.Fatalf("DominantColors failed: %v", err)
	}
	if len(colors) != 2 {
		t.Fatalf("expected count to cap results at 2, got %d", len(colors))
	}
	for _, c := range colors {
		if c.Percentage != 25 {
			t.Errorf("%s: got %.1f%%, want 25%%", c.Hex, c.Percentage)
		}
	}
	if colors[0].Hex > colors[1].Hex {
		t.Errorf("equal shares should be ordered by hex, got %s before %s", colors[0].Hex, colors[1].Hex)
	}

	colors, err = DominantColors(img, topHalf, 0)
	if err != nil {
		t.Fatalf("DominantColors failed: %v", err)
	}
	if len(colors) != 2 {
		t.Errorf("top half should hold red and green, got %d colors", len(colors))
	}
}

func TestDominantColors_EmptyRegion(t *testing.T) {
	img := createInMemoryImage(10, 10, color.White)
	if _, err := DominantColors(img, geometry.Rect{X: 0.5, Y: 0.5}, 1); err == nil {
		t.Error("expected error for empty region")
	}
	if _, err := DominantColors(nil, fullSize, 1); err == nil {
		t.Error("expected error for nil image")
	}
}

func TestContrasting(t *testing.T) {
	white := colorful.Color{R: 1, G: 1, B: 1}
	black := colorful.Color{R: 0, G: 0, B: 0}

	if got := Contrasting(white); got != black {
		t.Errorf("Contrasting(white) = %s, want black", got.Hex())
	}
	if got := Contrasting(black); got == black {
		t.Error("Contrasting(black) must not be black")
	}
}

func TestLabelColor(t *testing.T) {
	img := createPatternImage(100, 100)
	bottomRight := geometry.Rect{X: 0.5, Y: 0.5, W: 0.5, H: 0.5}

	c, err := LabelColor(img, bottomRight)
	if err != nil {
		t.Fatalf("LabelColor failed: %v", err)
	}
	l, _, _ := c.Lab()
	if l > 0.5 {
		t.Errorf("label on a white background should be dark, got %s", c.Hex())
	}
}
