package imaging

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ironsheep/numscan/internal/timeutil"
)

// writeFrame writes a solid-color PNG into dir and returns its path.
func writeFrame(t *testing.T, dir, name string, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create frame file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode frame: %v", err)
	}
	return path
}

func TestLoadFrame(t *testing.T) {
	dir := t.TempDir()
	path := writeFrame(t, dir, "frame.png", 64, 48, color.RGBA{255, 0, 0, 255})

	img, err := LoadFrame(path)
	if err != nil {
		t.Fatalf("LoadFrame failed: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("unexpected dimensions: got %v", img.Bounds())
	}
}

func TestLoadFrame_Errors(t *testing.T) {
	dir := t.TempDir()
	invalid := filepath.Join(dir, "invalid.png")
	if err := os.WriteFile(invalid, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.png"), invalid} {
		if _, err := LoadFrame(path); err == nil {
			t.Errorf("LoadFrame(%s) should fail", filepath.Base(path))
		}
	}
}

func TestFrameCache_Load(t *testing.T) {
	cache := NewFrameCache()
	path := writeFrame(t, t.TempDir(), "a.png", 10, 10, color.White)

	img1, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	img2, err := cache.Load(path)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached frame")
	}
	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}

	cache.Evict(path)
	if cache.Len() != 0 {
		t.Error("Evict did not remove frame")
	}
	cache.Evict("/nonexistent/path")

	if _, err := cache.Load(path); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	cache.Clear()
	if cache.Len() != 0 {
		t.Error("Clear did not empty cache")
	}
}

func TestFrameCache_ConcurrentAccess(t *testing.T) {
	cache := NewFrameCache()
	path := writeFrame(t, t.TempDir(), "a.png", 16, 16, color.Gray{128})

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(path); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent load error: %v", err)
	}
}

func TestDescribeFrame(t *testing.T) {
	dir := t.TempDir()
	path := writeFrame(t, dir, "shot.PNG", 30, 20, color.Black)
	img, err := LoadFrame(path)
	if err != nil {
		t.Fatalf("LoadFrame failed: %v", err)
	}

	info, err := DescribeFrame(path, img)
	if err != nil {
		t.Fatalf("DescribeFrame failed: %v", err)
	}
	if info.Width != 30 || info.Height != 20 {
		t.Errorf("dimensions: got %dx%d", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("Format: got %s, want png", info.Format)
	}
	if info.FileSizeBytes <= 0 {
		t.Error("FileSizeBytes should be positive")
	}
}

func TestFrameFiles(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "frame_002.png", 4, 4, color.White)
	writeFrame(t, dir, "frame_001.png", 4, 4, color.White)
	writeFrame(t, dir, "frame_010.png", 4, 4, color.White)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := FrameFiles(dir)
	if err != nil {
		t.Fatalf("FrameFiles failed: %v", err)
	}
	want := []string{"frame_001.png", "frame_002.png", "frame_010.png"}
	if len(files) != len(want) {
		t.Fatalf("got %d files, want %d: %v", len(files), len(want), files)
	}
	for i, name := range want {
		if filepath.Base(files[i]) != name {
			t.Errorf("files[%d]: got %s, want %s", i, filepath.Base(files[i]), name)
		}
	}

	if _, err := FrameFiles(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestReplay(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		writeFrame(t, dir, name, 8, 8, color.White)
	}
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)

	var got []ReplayFrame
	err := Replay(context.Background(), dir, time.Millisecond, clock, func(f ReplayFrame) error {
		got = append(got, f)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d frames, want 3", len(got))
	}
	for i, f := range got {
		if f.Seq != uint64(i+1) {
			t.Errorf("frame %d: Seq %d", i, f.Seq)
		}
		if want := start.Add(time.Duration(i) * time.Millisecond); !f.Timestamp.Equal(want) {
			t.Errorf("frame %d: Timestamp %v, want %v", i, f.Timestamp, want)
		}
		if f.Image == nil {
			t.Errorf("frame %d: nil image", i)
		}
	}
}

func TestReplay_StopsEarly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		writeFrame(t, dir, name, 8, 8, color.White)
	}

	stop := errors.New("stop")
	calls := 0
	err := Replay(context.Background(), dir, 0, nil, func(f ReplayFrame) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("expected callback error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Replay(ctx, dir, 0, nil, func(ReplayFrame) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	if err := Replay(context.Background(), t.TempDir(), 0, nil, func(ReplayFrame) error { return nil }); err == nil {
		t.Error("expected error for empty directory")
	}
}
