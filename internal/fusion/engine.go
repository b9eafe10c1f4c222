package fusion

import (
	"context"
	"errors"
	"image"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/numscan/internal/detection"
	"github.com/ironsheep/numscan/internal/geometry"
	"github.com/ironsheep/numscan/internal/monitoring"
	"github.com/ironsheep/numscan/internal/timeutil"
	"github.com/ironsheep/numscan/internal/track"
)

// ErrNotScanning is returned by operations that require an active scan.
var ErrNotScanning = errors.New("fusion: not scanning")

var errHandleClosed = errors.New("fusion: tracker handle closed")

const latencyWindow = 256

// FrameReport summarizes what one ProcessFrame call did.
type FrameReport struct {
	Seq uint64 `json:"seq"`

	Dropped   bool `json:"dropped,omitempty"`   // Another frame was still in flight
	Skipped   bool `json:"skipped,omitempty"`   // No scan active
	Discarded bool `json:"discarded,omitempty"` // Scan stopped or restarted mid-frame

	DetectorRan bool `json:"detector_ran"`
	Advanced    int  `json:"advanced"`
	Misses      int  `json:"misses"`
	Upserts     int  `json:"upserts"`
	Created     int  `json:"created"`
	Evicted     int  `json:"evicted"`
	Collected   int  `json:"collected"`
	Emitted     int  `json:"emitted"`
	Suppressed  int  `json:"suppressed"`
}

// Stats is a point-in-time view of engine counters.
type Stats struct {
	Scanning         bool                      `json:"scanning"`
	Generation       uint64                    `json:"generation"`
	Frames           uint64                    `json:"frames"`
	DroppedFrames    uint64                    `json:"dropped_frames"`
	DetectorPasses   uint64                    `json:"detector_passes"`
	DetectorFailures uint64                    `json:"detector_failures"`
	TrackerFailures  uint64                    `json:"tracker_failures"`
	Tracks           int                       `json:"tracks"`
	Expected         int                       `json:"expected"`
	Collected        int                       `json:"collected"`
	DetectorLatency  monitoring.LatencySummary `json:"detector_latency"`
	TrackerLatency   monitoring.LatencySummary `json:"tracker_latency"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for frames without a timestamp and for Refresh
// callers that pass the zero time.
func WithClock(c timeutil.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// Engine fuses sparse detector results with per-frame tracker advances.
type Engine struct {
	detector Detector
	tracker  Tracker
	sink     Sink
	clock    timeutil.Clock
	matcher  *detection.Matcher
	store    *track.Store

	frameMu sync.Mutex // held by the single in-flight ProcessFrame

	// emitMu serializes state application with sink delivery. Lock order is
	// emitMu before mu.
	emitMu sync.Mutex

	mu        sync.Mutex
	cfg       Config
	gen       uint64
	scanning  bool
	expected  map[string]struct{} // replaced, never mutated, on Start
	collected map[string]struct{}
	handles   map[string]*handleRef
	appeared  map[string]bool
	smooth    *smoother
	frames    uint64

	dropped          atomic.Uint64
	detectorPasses   atomic.Uint64
	detectorFailures atomic.Uint64
	trackerFailures  atomic.Uint64

	detectorLatency *monitoring.LatencyRecorder
	trackerLatency  *monitoring.LatencyRecorder
}

// New creates an idle Engine. tracker may be nil, in which case tracks are
// kept alive by detector hits alone. A nil sink discards events.
func New(cfg Config, detector Detector, tracker Tracker, sink Sink, opts ...Option) *Engine {
	cfg = cfg.normalized()
	if sink == nil {
		sink = discardSink{}
	}
	e := &Engine{
		detector:        detector,
		tracker:         tracker,
		sink:            sink,
		clock:           timeutil.RealClock{},
		matcher:         detection.NewMatcher(cfg.Match),
		store:           track.NewStore(cfg.Track),
		cfg:             cfg,
		expected:        map[string]struct{}{},
		collected:       map[string]struct{}{},
		handles:         map[string]*handleRef{},
		appeared:        map[string]bool{},
		smooth:          newSmoother(cfg.SmoothingAlpha),
		detectorLatency: monitoring.NewLatencyRecorder(latencyWindow),
		trackerLatency:  monitoring.NewLatencyRecorder(latencyWindow),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a new scan for the expected values. An empty list means open
// world: every well-formed token is accepted. Any previous scan is torn down
// first, emitting TrackRemoved for its visible tracks.
func (e *Engine) Start(expected []string) {
	set := make(map[string]struct{}, len(expected))
	for _, v := range expected {
		if v != "" {
			set[v] = struct{}{}
		}
	}

	e.emitMu.Lock()
	e.mu.Lock()
	events, refs := e.teardownLocked(e.clock.Now())
	e.gen++
	gen := e.gen
	e.scanning = true
	e.expected = set
	e.collected = map[string]struct{}{}
	e.frames = 0
	e.mu.Unlock()
	e.deliver(events)
	e.emitMu.Unlock()

	closeHandles(refs)
	monitoring.Logf("scan started: generation=%d expected=%d", gen, len(set))
}

// Stop ends the scan. All tracks are cleared and removal is signalled for every
// visible track before Stop returns. Detector and tracker calls still in
// flight complete and are discarded. Calling Stop when idle is a no-op.
func (e *Engine) Stop() {
	e.emitMu.Lock()
	e.mu.Lock()
	if !e.scanning {
		e.mu.Unlock()
		e.emitMu.Unlock()
		return
	}
	e.gen++
	e.scanning = false
	events, refs := e.teardownLocked(e.clock.Now())
	collected := len(e.collected)
	e.mu.Unlock()
	e.deliver(events)
	e.emitMu.Unlock()

	closeHandles(refs)
	monitoring.Logf("scan stopped: collected=%d", collected)
}

// Scanning reports whether a scan is active.
func (e *Engine) Scanning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scanning
}

// Generation returns the current scan generation. It changes on every Start
// and Stop.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

// Expected returns the sorted expected set of the current scan.
func (e *Engine) Expected() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedKeys(e.expected)
}

// Collected returns the sorted values collected so far in the current (or
// last) scan.
func (e *Engine) Collected() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedKeys(e.collected)
}

// Snapshot returns the live tracks without evicting.
func (e *Engine) Snapshot() []track.Track {
	return e.store.Snapshot()
}

// SetDisplay changes the viewport and exclusion band used for emission.
func (e *Engine) SetDisplay(t geometry.DisplayTransform, band float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Display = t
	e.cfg.ExclusionBand = band
	e.cfg = e.cfg.normalized()
}

// Refresh is the consumer role: it evicts stale tracks as of now, emits
// removals, and returns the remaining tracks. A zero now uses the engine clock.
func (e *Engine) Refresh(now time.Time) []track.Track {
	if now.IsZero() {
		now = e.clock.Now()
	}

	e.emitMu.Lock()
	e.mu.Lock()
	var (
		events []Event
		refs   []*handleRef
	)
	if e.scanning {
		events, refs = e.evictLocked(now)
	}
	snapshot := e.store.Snapshot()
	e.mu.Unlock()
	e.deliver(events)
	e.emitMu.Unlock()

	closeHandles(refs)
	return snapshot
}

// Stats returns the current counters and capability latency summaries.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	s := Stats{
		Scanning:   e.scanning,
		Generation: e.gen,
		Frames:     e.frames,
		Expected:   len(e.expected),
		Collected:  len(e.collected),
	}
	e.mu.Unlock()

	s.Tracks = e.store.Len()
	s.DroppedFrames = e.dropped.Load()
	s.DetectorPasses = e.detectorPasses.Load()
	s.DetectorFailures = e.detectorFailures.Load()
	s.TrackerFailures = e.trackerFailures.Load()
	s.DetectorLatency = e.detectorLatency.Summary()
	s.TrackerLatency = e.trackerLatency.Summary()
	return s
}

// ProcessFrame runs one pass of the frame protocol. It is the producer role;
// a frame that arrives while another is still in flight is dropped.
func (e *Engine) ProcessFrame(ctx context.Context, f Frame) FrameReport {
	report := FrameReport{Seq: f.Seq}
	if !e.frameMu.TryLock() {
		e.dropped.Add(1)
		report.Dropped = true
		return report
	}
	defer e.frameMu.Unlock()

	now := f.Timestamp
	if now.IsZero() {
		now = e.clock.Now()
	}

	e.mu.Lock()
	if !e.scanning {
		e.mu.Unlock()
		report.Skipped = true
		return report
	}
	gen := e.gen
	expected := e.expected
	e.frames++
	runDetector := e.detector != nil && f.Image != nil && (e.frames-1)%uint64(e.cfg.DetectorCadence) == 0
	parallelism := e.cfg.TrackerParallelism
	live := e.store.Snapshot()
	refs := make([]*handleRef, len(live))
	for i, t := range live {
		refs[i] = e.handles[t.Value]
	}
	e.mu.Unlock()

	// TrackerAdvance
	obs := e.advance(ctx, f.Image, refs, parallelism)
	if !e.applyAdvance(gen, now, live, obs, &report) {
		report.Discarded = true
		return report
	}

	// DetectorPass
	var (
		matches map[string]geometry.Rect
		started map[string]*handleRef
	)
	if runDetector {
		report.DetectorRan = true
		matches = e.detect(ctx, f, expected)
		started = e.startHandles(f.Image, matches)
	}

	// Reconcile
	if !e.applyDetections(gen, now, matches, started, &report) {
		closeHandles(mapValues(started))
		report.Discarded = true
		return report
	}
	return report
}

// advance runs every handle's Track concurrently, bounded by parallelism.
// Tracks without a handle, and handles that fail, yield a miss.
func (e *Engine) advance(ctx context.Context, img image.Image, refs []*handleRef, parallelism int) []track.Observation {
	obs := make([]track.Observation, len(refs))
	if img == nil {
		return obs
	}

	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, ref := range refs {
		if ref == nil {
			continue
		}
		g.Go(func() error {
			start := time.Now()
			o, err := ref.track(ctx, img)
			e.trackerLatency.Record(time.Since(start))
			if err != nil {
				if !errors.Is(err, errHandleClosed) {
					e.trackerFailures.Add(1)
					monitoring.Debugf("tracker advance failed for %s: %v", ref.value, err)
				}
				return nil
			}
			obs[i] = o
			return nil
		})
	}
	_ = g.Wait()
	return obs
}

func (e *Engine) applyAdvance(gen uint64, now time.Time, live []track.Track, obs []track.Observation, report *FrameReport) bool {
	e.emitMu.Lock()
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		e.emitMu.Unlock()
		return false
	}
	accept := e.cfg.Track.AcceptConfidence
	for i, t := range live {
		if _, ok := e.store.AdvanceFromTracker(t.Value, obs[i], now); !ok {
			continue
		}
		report.Advanced++
		if !obs[i].Found || obs[i].Confidence < accept {
			report.Misses++
		}
	}
	events, refs := e.evictLocked(now)
	report.Evicted = len(refs)
	e.mu.Unlock()

	report.Emitted += e.deliver(events)
	e.emitMu.Unlock()

	closeHandles(refs)
	return true
}

// detect runs the detector and matcher. Detector failure means no detections.
func (e *Engine) detect(ctx context.Context, f Frame, expected map[string]struct{}) map[string]geometry.Rect {
	e.detectorPasses.Add(1)
	start := time.Now()
	candidates, err := e.detector.Detect(ctx, f.Image)
	e.detectorLatency.Record(time.Since(start))
	if err != nil {
		e.detectorFailures.Add(1)
		monitoring.Debugf("detector failed on frame %d: %v", f.Seq, err)
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}
	return e.matcher.Match(candidates, expected, e.store.Centers())
}

// startHandles seeds a tracker handle for every matched value. Handles are
// restarted on each detector hit so the tracker follows the detector's region.
func (e *Engine) startHandles(img image.Image, matches map[string]geometry.Rect) map[string]*handleRef {
	if e.tracker == nil || len(matches) == 0 {
		return nil
	}
	started := make(map[string]*handleRef, len(matches))
	for _, v := range sortedKeys(matches) {
		h, err := e.tracker.Start(v, img, matches[v])
		if err != nil {
			e.trackerFailures.Add(1)
			monitoring.Debugf("tracker start failed for %s: %v", v, err)
			continue
		}
		started[v] = &handleRef{value: v, h: h}
	}
	return started
}

func (e *Engine) applyDetections(gen uint64, now time.Time, matches map[string]geometry.Rect, started map[string]*handleRef, report *FrameReport) bool {
	e.emitMu.Lock()
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		e.emitMu.Unlock()
		return false
	}
	var (
		events  []Event
		retired []*handleRef
	)
	for _, v := range sortedKeys(matches) {
		t, created := e.store.UpsertFromDetector(v, matches[v], now)
		report.Upserts++
		if created {
			report.Created++
		}
		if ref, ok := started[v]; ok {
			if old := e.handles[v]; old != nil {
				retired = append(retired, old)
			}
			e.handles[v] = ref
		}
		if _, seen := e.collected[v]; !seen {
			e.collected[v] = struct{}{}
			report.Collected++
			events = append(events, Event{
				Kind:     ValueCollected,
				Value:    v,
				RenderID: t.RenderID,
				HitCount: t.HitCount,
				Locked:   t.Locked,
				At:       now,
			})
			monitoring.Logf("value collected: %s", v)
		}
	}
	reconciled, suppressed := e.reconcileLocked(now)
	events = append(events, reconciled...)
	report.Suppressed = suppressed
	e.mu.Unlock()

	report.Emitted += e.deliver(events)
	e.emitMu.Unlock()

	closeHandles(retired)
	return true
}

// reconcileLocked builds appear/update events for every visible track.
func (e *Engine) reconcileLocked(now time.Time) ([]Event, int) {
	display := e.cfg.Display
	bandTop := display.OffsetY + display.Height - e.cfg.ExclusionBand

	var (
		events     []Event
		suppressed int
	)
	for _, t := range e.store.Snapshot() {
		d := geometry.ToDisplayRect(t.Region, display)
		c := d.Center()
		if e.cfg.ExclusionBand > 0 && c.Y > bandTop {
			suppressed++
			continue
		}
		kind := TrackUpdated
		if !e.appeared[t.Value] {
			kind = TrackAppeared
			e.appeared[t.Value] = true
		}
		events = append(events, Event{
			Kind:     kind,
			Value:    t.Value,
			RenderID: t.RenderID,
			Position: e.smooth.update(t.Value, c),
			Display:  d,
			HitCount: t.HitCount,
			Locked:   t.Locked,
			At:       now,
		})
	}
	return events, suppressed
}

// evictLocked removes stale tracks and returns removal events for the ones
// that were shown, plus their handles to close once mu is released.
func (e *Engine) evictLocked(now time.Time) ([]Event, []*handleRef) {
	return e.removeLocked(e.store.EvictStale(now), now)
}

// teardownLocked clears every track and resets per-scan presentation state.
func (e *Engine) teardownLocked(now time.Time) ([]Event, []*handleRef) {
	events, refs := e.removeLocked(e.store.Clear(), now)
	for v, ref := range e.handles {
		refs = append(refs, ref)
		delete(e.handles, v)
	}
	e.appeared = map[string]bool{}
	e.smooth.reset()
	return events, refs
}

func (e *Engine) removeLocked(removed []track.Track, now time.Time) ([]Event, []*handleRef) {
	var (
		events []Event
		refs   []*handleRef
	)
	for _, t := range removed {
		if ref := e.handles[t.Value]; ref != nil {
			refs = append(refs, ref)
			delete(e.handles, t.Value)
		}
		e.smooth.forget(t.Value)
		if !e.appeared[t.Value] {
			continue
		}
		delete(e.appeared, t.Value)
		events = append(events, Event{
			Kind:     TrackRemoved,
			Value:    t.Value,
			RenderID: t.RenderID,
			HitCount: t.HitCount,
			Locked:   t.Locked,
			At:       now,
		})
	}
	return events, refs
}

// deliver sends events to the sink. Callers hold emitMu.
func (e *Engine) deliver(events []Event) int {
	for _, ev := range events {
		e.sink.Emit(ev)
	}
	return len(events)
}

// handleRef serializes Track and Close on one tracker handle.
type handleRef struct {
	value  string
	mu     sync.Mutex
	h      TrackHandle
	closed bool
}

func (r *handleRef) track(ctx context.Context, img image.Image) (track.Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return track.Observation{}, errHandleClosed
	}
	return r.h.Track(ctx, img)
}

func (r *handleRef) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if err := r.h.Close(); err != nil {
		monitoring.Debugf("closing tracker handle for %s: %v", r.value, err)
	}
}

func closeHandles(refs []*handleRef) {
	for _, r := range refs {
		if r != nil {
			r.close()
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mapValues(m map[string]*handleRef) []*handleRef {
	out := make([]*handleRef, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
