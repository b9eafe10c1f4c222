package ocr

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/numscan/internal/config"
	"github.com/ironsheep/numscan/internal/detection"
	"github.com/ironsheep/numscan/internal/imaging"
)

// Options configures a TesseractDetector.
type Options struct {
	// Language is the Tesseract language code, e.g. "eng". The matching
	// traineddata must be installed.
	Language string

	// TessdataPrefix overrides the directory Tesseract loads traineddata from.
	// Empty uses the system default (TESSDATA_PREFIX or the build path).
	TessdataPrefix string

	// Preprocess is applied to every frame before recognition.
	Preprocess imaging.PreprocessOptions
}

// OptionsFromTuning builds Options from a TuningConfig.
func OptionsFromTuning(cfg *config.TuningConfig) Options {
	return Options{
		Language:   cfg.GetOCRLanguage(),
		Preprocess: imaging.PreprocessOptionsFromTuning(cfg),
	}
}

// TesseractDetector recognizes text lines in frames with Tesseract.
//
// One gosseract client is kept for the detector's lifetime, since creating a
// client reloads the language model. Detect calls are serialized on it.
type TesseractDetector struct {
	mu     sync.Mutex
	client *gosseract.Client
	opts   Options
	closed bool
}

// NewTesseractDetector creates a detector and configures its client.
//
// Sparse-text page segmentation is used because frames contain scattered
// labels rather than paragraphs.
func NewTesseractDetector(opts Options) (*TesseractDetector, error) {
	if opts.Language == "" {
		opts.Language = config.DefaultOCRLanguage
	}

	client := gosseract.NewClient()
	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(opts.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	return &TesseractDetector{client: client, opts: opts}, nil
}

// Detect returns one candidate per recognized text line. Regions resolve
// against the frame passed in, regardless of preprocessing scale.
func (d *TesseractDetector) Detect(ctx context.Context, img image.Image) ([]detection.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("no frame")
	}

	prepared := imaging.Preprocess(img, d.opts.Preprocess)
	words, err := d.Words(prepared)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Candidates(words, prepared.Bounds()), nil
}

// Words runs recognition on an already prepared image and returns the raw
// word boxes, without preprocessing.
func (d *TesseractDetector) Words(img image.Image) ([]Word, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return d.recognize(data)
}

func (d *TesseractDetector) recognize(data []byte) ([]Word, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("detector closed")
	}

	if err := d.client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	boxes, err := d.client.GetBoundingBoxesVerbose()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		words = append(words, Word{
			Text:       box.Word,
			Box:        box.Box,
			Confidence: float64(box.Confidence) / 100.0,
			Block:      box.BlockNum,
			Para:       box.ParNum,
			Line:       box.LineNum,
			Index:      box.WordNum,
		})
	}
	return words, nil
}

// Version returns the linked Tesseract version.
func (d *TesseractDetector) Version() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.client.Version()
}

// Close releases the Tesseract client. Detect fails after Close.
func (d *TesseractDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.client.Close()
}

// OCRInfo describes OCR availability.
type OCRInfo struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Language  string `json:"language"`
	Error     string `json:"error,omitempty"`
	Backend   string `json:"backend"`
}

// Info probes whether a detector can be created with opts.
func Info(opts Options) OCRInfo {
	info := OCRInfo{Language: opts.Language, Backend: "gosseract"}
	d, err := NewTesseractDetector(opts)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	defer d.Close()

	info.Available = true
	info.Version = d.Version()
	if info.Language == "" {
		info.Language = d.opts.Language
	}
	return info
}
