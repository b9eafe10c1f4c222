package fusion

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/ironsheep/numscan/internal/detection"
	"github.com/ironsheep/numscan/internal/geometry"
	"github.com/ironsheep/numscan/internal/track"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

const frameInterval = 33 * time.Millisecond

func frameAt(i int) Frame {
	return Frame{
		Image:     image.NewGray(image.Rect(0, 0, 8, 8)),
		Timestamp: t0.Add(time.Duration(i) * frameInterval),
		Seq:       uint64(i),
	}
}

func testConfig() Config {
	return Config{
		DetectorCadence:    1,
		TrackerParallelism: 2,
		SmoothingAlpha:     0,
		Display:            geometry.DisplayTransform{Width: 1, Height: 1},
		Track: track.Policy{
			AcceptConfidence: 0.3,
			LockHits:         3,
			MaxMisses:        6,
			Timeout:          time.Second,
		},
		Match: detection.DefaultPolicy(),
	}
}

func box(cx, cy float64) geometry.Rect {
	return geometry.Rect{X: cx - 0.05, Y: cy - 0.02, W: 0.1, H: 0.04}
}

func line(text string, r geometry.Rect) detection.Candidate {
	return detection.Candidate{
		Text:       text,
		Confidence: 0.9,
		Lookup: detection.LookupFunc(func(start, end int) (geometry.Rect, bool) {
			return r, true
		}),
	}
}

// scriptDetector returns script(call) for the n-th Detect call, 1-based.
type scriptDetector struct {
	mu     sync.Mutex
	calls  int
	script func(call int) ([]detection.Candidate, error)

	// When block is set, the call number in blockOn signals entered and waits.
	blockOn int
	entered chan struct{}
	block   chan struct{}
}

func (d *scriptDetector) Detect(ctx context.Context, img image.Image) ([]detection.Candidate, error) {
	d.mu.Lock()
	d.calls++
	call := d.calls
	d.mu.Unlock()

	if d.block != nil && call == d.blockOn {
		close(d.entered)
		<-d.block
	}
	if d.script == nil {
		return nil, nil
	}
	return d.script(call)
}

func (d *scriptDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// fakeTracker hands out handles that all report the same scripted result.
type fakeTracker struct {
	mu      sync.Mutex
	found   bool
	fail    bool
	started []string
	handles []*fakeHandle
}

func (t *fakeTracker) Start(value string, img image.Image, region geometry.Rect) (TrackHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = append(t.started, value)
	h := &fakeHandle{tracker: t, region: region}
	t.handles = append(t.handles, h)
	return h, nil
}

func (t *fakeTracker) Handles() []*fakeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*fakeHandle(nil), t.handles...)
}

type fakeHandle struct {
	tracker *fakeTracker
	region  geometry.Rect

	mu     sync.Mutex
	closed bool
}

func (h *fakeHandle) Track(ctx context.Context, img image.Image) (track.Observation, error) {
	h.tracker.mu.Lock()
	found, fail := h.tracker.found, h.tracker.fail
	h.tracker.mu.Unlock()
	if fail {
		return track.Observation{}, errors.New("tracker exploded")
	}
	if !found {
		return track.Observation{}, nil
	}
	return track.Observation{Region: h.region, Confidence: 0.9, Found: true}, nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *fakeHandle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *recordingSink) Kinds(value string) []EventKind {
	var kinds []EventKind
	for _, e := range s.Events() {
		if e.Value == value {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

func (s *recordingSink) Count(kind EventKind) int {
	n := 0
	for _, e := range s.Events() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
