package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/numscan/internal/config"
)

// PreprocessOptions controls the recognition prefilter.
type PreprocessOptions struct {
	// Upscale multiplies the frame size before recognition. Small serial
	// numbers recognize better at 1.5-2x.
	Upscale float64

	// Contrast is a percentage in [-100, 100].
	Contrast float64

	// Sharpen applies an unsharp mask after the contrast stretch.
	Sharpen bool
}

// PreprocessOptionsFromTuning builds PreprocessOptions from a TuningConfig.
func PreprocessOptionsFromTuning(cfg *config.TuningConfig) PreprocessOptions {
	return PreprocessOptions{
		Upscale:  cfg.GetOCRUpscale(),
		Contrast: cfg.GetOCRContrast(),
		Sharpen:  cfg.GetOCRSharpen(),
	}
}

// Preprocess converts a frame into the grayscale, contrast-stretched image the
// text detector reads. Normalized coordinates are unchanged by preprocessing,
// so regions found on the output map directly back onto the input frame.
func Preprocess(img image.Image, opts PreprocessOptions) image.Image {
	var out image.Image = imaging.Grayscale(img)

	if opts.Upscale > 0 && opts.Upscale != 1 {
		out = Scale(out, opts.Upscale)
	}

	if opts.Contrast != 0 {
		out = adjust.Contrast(out, clampPercent(opts.Contrast)/100)
	}

	if opts.Sharpen {
		g := gift.New(gift.UnsharpMask(1.0, 1.5, 0.0))
		dst := image.NewNRGBA(g.Bounds(out.Bounds()))
		g.Draw(dst, out)
		out = dst
	}

	return out
}

func clampPercent(v float64) float64 {
	if v < -100 {
		return -100
	}
	if v > 100 {
		return 100
	}
	return v
}
