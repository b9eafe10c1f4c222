package imaging

import (
	"fmt"
	"image"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/numscan/internal/geometry"
)

// ColorFrequency is one quantized color and its share of a region.
type ColorFrequency struct {
	Hex        string         `json:"hex"`        // "#RRGGBB" after quantization
	Percentage float64        `json:"percentage"` // 0-100
	Color      colorful.Color `json:"-"`
}

// DominantColors returns up to count of the most common colors in the
// normalized region r, most frequent first.
//
// Colors are quantized by dropping the low four bits of each 8-bit component,
// so colors within 16 units per component are grouped together.
func DominantColors(img image.Image, r geometry.Rect, count int) ([]ColorFrequency, error) {
	if img == nil {
		return nil, fmt.Errorf("no image to sample")
	}
	bounds := r.ToPixels(img.Bounds())
	if bounds.Empty() {
		return nil, fmt.Errorf("region %+v is empty", r)
	}

	counts := make(map[uint32]int)
	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			key := (cr>>12)<<8 | (cg>>12)<<4 | cb>>12
			counts[key]++
			total++
		}
	}

	colors := make([]ColorFrequency, 0, len(counts))
	for key, n := range counts {
		c := colorful.Color{
			R: float64((key>>8)&0xF) * 16 / 255,
			G: float64((key>>4)&0xF) * 16 / 255,
			B: float64(key&0xF) * 16 / 255,
		}
		colors = append(colors, ColorFrequency{
			Hex:        c.Hex(),
			Percentage: float64(n) / float64(total) * 100,
			Color:      c,
		})
	}

	sort.Slice(colors, func(i, j int) bool {
		if colors[i].Percentage != colors[j].Percentage {
			return colors[i].Percentage > colors[j].Percentage
		}
		return colors[i].Hex < colors[j].Hex
	})

	if count > 0 && len(colors) > count {
		colors = colors[:count]
	}
	return colors, nil
}

// labelPalette is the set of label colors a presenter may draw with.
var labelPalette = []colorful.Color{
	{R: 1, G: 1, B: 1},             // white
	{R: 0, G: 0, B: 0},             // black
	{R: 1, G: 0.839, B: 0.039},     // amber
	{R: 0.196, G: 0.843, B: 0.294}, // green
	{R: 0.039, G: 0.518, B: 1},     // blue
}

// LabelColor picks the palette color that is perceptually farthest, in CIE
// L*a*b*, from the dominant background of region r.
func LabelColor(img image.Image, r geometry.Rect) (colorful.Color, error) {
	colors, err := DominantColors(img, r, 1)
	if err != nil {
		return colorful.Color{}, err
	}
	return Contrasting(colors[0].Color), nil
}

// Contrasting returns the palette color farthest from bg.
func Contrasting(bg colorful.Color) colorful.Color {
	best := labelPalette[0]
	bestDist := -1.0
	for _, c := range labelPalette {
		if d := bg.DistanceLab(c); d > bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
