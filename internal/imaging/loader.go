package imaging

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/numscan/internal/timeutil"
)

// frameExtensions lists the file extensions FrameFiles accepts.
var frameExtensions = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".gif":  "gif",
}

// LoadFrame decodes an image file into a frame.
//
// EXIF orientation is applied so that photos taken on a rotated phone arrive
// upright, which the detector relies on.
//
// # Errors
//
//   - Returns error if the file does not exist or cannot be read
//   - Returns error if the file is not a valid PNG, JPEG, or GIF image
func LoadFrame(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to load frame: %w", err)
	}
	return img, nil
}

// FrameCache provides thread-safe caching of decoded frames keyed by path.
//
// Clients that submit the same still repeatedly (a paused camera, a test
// fixture) hit the cache instead of decoding again. Entries remain until Evict
// or Clear.
type FrameCache struct {
	mu     sync.RWMutex
	frames map[string]image.Image
}

// NewFrameCache creates an empty cache.
func NewFrameCache() *FrameCache {
	return &FrameCache{
		frames: make(map[string]image.Image),
	}
}

// Load returns the cached frame for path, decoding it with LoadFrame on a
// miss. Different spellings of the same file are cached separately.
func (c *FrameCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.frames[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := LoadFrame(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.frames[path] = img
	c.mu.Unlock()

	return img, nil
}

// Len returns the number of cached frames.
func (c *FrameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.frames)
}

// Clear removes every cached frame.
func (c *FrameCache) Clear() {
	c.mu.Lock()
	c.frames = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes one path from the cache.
func (c *FrameCache) Evict(path string) {
	c.mu.Lock()
	delete(c.frames, path)
	c.mu.Unlock()
}

// FrameInfo describes a frame file.
type FrameInfo struct {
	Path          string `json:"path"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format"` // Detected from the file extension
	FileSizeBytes int64  `json:"file_size_bytes"`
}

// DescribeFrame returns metadata for a decoded frame and the file it came from.
func DescribeFrame(path string, img image.Image) (*FrameInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format, ok := frameExtensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		format = "unknown"
	}

	bounds := img.Bounds()
	return &FrameInfo{
		Path:          path,
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        format,
		FileSizeBytes: stat.Size(),
	}, nil
}

// FrameFiles lists the image files in dir in lexical (capture) order.
// Subdirectories and files with other extensions are skipped.
func FrameFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := frameExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ReplayFrame is one frame delivered by Replay.
type ReplayFrame struct {
	Seq       uint64
	Path      string
	Image     image.Image
	Timestamp time.Time
}

// Replay delivers every frame in dir to fn, in order.
//
// Frame i carries the timestamp start + i*interval, where start is clock.Now()
// when Replay begins. With a positive interval Replay also paces delivery in
// wall time so downstream consumers see a realistic cadence; an interval of
// zero delivers as fast as fn returns.
//
// Replay stops at the first error from fn or when ctx is cancelled. A frame
// that fails to decode ends the replay with an error.
func Replay(ctx context.Context, dir string, interval time.Duration, clock timeutil.Clock, fn func(ReplayFrame) error) error {
	files, err := FrameFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no frames found in %s", dir)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	start := clock.Now()
	paceStart := time.Now()
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		offset := time.Duration(i) * interval
		if wait := offset - time.Since(paceStart); interval > 0 && wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		img, err := LoadFrame(path)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := fn(ReplayFrame{
			Seq:       uint64(i + 1),
			Path:      path,
			Image:     img,
			Timestamp: start.Add(offset),
		}); err != nil {
			return err
		}
	}
	return nil
}
