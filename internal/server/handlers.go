package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/numscan/internal/fusion"
	"github.com/ironsheep/numscan/internal/geometry"
	"github.com/ironsheep/numscan/internal/imaging"
	"github.com/ironsheep/numscan/internal/monitoring"
	"github.com/ironsheep/numscan/internal/session"
	"github.com/ironsheep/numscan/internal/track"
)

// ErrNoSession is returned by operations that need a started round.
var ErrNoSession = errors.New("server: no scan session")

// paramsError marks a request whose params could not be decoded or validated.
type paramsError struct {
	err error
}

func (e *paramsError) Error() string { return e.err.Error() }
func (e *paramsError) Unwrap() error { return e.err }

func invalidParams(format string, v ...interface{}) error {
	return &paramsError{err: fmt.Errorf(format, v...)}
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

func (s *Server) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"scan/start":     s.handleScanStart,
		"scan/stop":      s.handleScanStop,
		"scan/finish":    s.handleScanFinish,
		"scan/missing":   s.handleScanMissing,
		"frame/submit":   s.handleFrameSubmit,
		"frame/describe": s.handleFrameDescribe,
		"tracks/list":    s.handleTracksList,
		"engine/stats":   s.handleEngineStats,
		"session/get":    s.handleSessionGet,
		"session/list":   s.handleSessionList,
	}
}

// decodeParams unmarshals params into v. Absent params leave v untouched.
func decodeParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return &paramsError{err: err}
	}
	return nil
}

// ScanInfo describes a started round.
type ScanInfo struct {
	SessionID string   `json:"session_id"`
	ParentID  string   `json:"parent_id,omitempty"`
	Round     int      `json:"round"`
	Expected  []string `json:"expected"`
	OpenWorld bool     `json:"open_world"`
}

func scanInfo(sess *session.Session) ScanInfo {
	res := sess.Result()
	info := ScanInfo{
		SessionID: res.SessionID.String(),
		Round:     res.Round,
		Expected:  res.Numbers,
		OpenWorld: len(res.Numbers) == 0,
	}
	if res.ParentID != uuid.Nil {
		info.ParentID = res.ParentID.String()
	}
	return info
}

// SetDisplay changes the viewport events are projected into.
func (s *Server) SetDisplay(t geometry.DisplayTransform, band float64) {
	s.engine.SetDisplay(t, band)
	s.stateMu.Lock()
	s.display = t
	s.band = band
	s.stateMu.Unlock()
}

// StartScan opens a new round for expected and starts the engine. An open
// previous round is closed and persisted first.
func (s *Server) StartScan(ctx context.Context, expected []string) ScanInfo {
	if prev := s.current.Load(); prev != nil && !prev.Closed() {
		s.engine.Stop()
		if res, err := prev.Close(); err == nil {
			if err := s.persist(ctx, res); err != nil {
				monitoring.Logf("Failed to persist replaced round: %v", err)
			}
		}
	}

	sess := session.New(expected, s.clock)
	s.engine.Start(expected)
	s.current.Store(sess)
	return scanInfo(sess)
}

// StopScan pauses the engine without closing the round.
func (s *Server) StopScan() fusion.Stats {
	s.engine.Stop()
	return s.engine.Stats()
}

// FinishScan stops the engine, closes the current round and persists it.
// Finishing an already closed round returns its result again.
func (s *Server) FinishScan(ctx context.Context) (session.Result, error) {
	sess := s.current.Load()
	if sess == nil {
		return session.Result{}, ErrNoSession
	}
	s.engine.Stop()

	res, err := sess.Close()
	if errors.Is(err, session.ErrClosed) {
		return sess.Result(), nil
	}
	if err != nil {
		return session.Result{}, err
	}
	if err := s.persist(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// ScanMissing closes the current round and starts a follow-up round for the
// values it did not collect.
func (s *Server) ScanMissing(ctx context.Context) (ScanInfo, error) {
	sess := s.current.Load()
	if sess == nil {
		return ScanInfo{}, ErrNoSession
	}
	s.engine.Stop()

	next, err := sess.ScanMissing()
	if perr := s.persist(ctx, sess.Result()); perr != nil {
		return ScanInfo{}, perr
	}
	if err != nil {
		return ScanInfo{}, err
	}

	s.engine.Start(next.Expected())
	s.current.Store(next)
	return scanInfo(next), nil
}

// SubmitFrame runs one frame through the engine. A zero ts uses the clock.
func (s *Server) SubmitFrame(ctx context.Context, img image.Image, ts time.Time) fusion.FrameReport {
	s.stateMu.Lock()
	s.lastFrame = img
	s.stateMu.Unlock()

	return s.engine.ProcessFrame(ctx, fusion.Frame{
		Image:     img,
		Timestamp: ts,
		Seq:       s.seq.Add(1),
	})
}

// Current returns the active round, or nil before the first scan/start.
func (s *Server) Current() *session.Session {
	return s.current.Load()
}

func (s *Server) persist(ctx context.Context, res session.Result) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(ctx, res); err != nil {
		return fmt.Errorf("failed to save session %s: %w", res.SessionID, err)
	}
	return nil
}

// === Scan Handlers ===

type scanStartParams struct {
	Expected      []string                   `json:"expected"`
	Display       *geometry.DisplayTransform `json:"display,omitempty"`
	ExclusionBand *float64                   `json:"exclusion_band,omitempty"`
}

func (s *Server) handleScanStart(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p scanStartParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	for _, v := range p.Expected {
		if !isDigits(v) {
			return nil, invalidParams("expected value %q is not a digit string", v)
		}
	}

	if p.Display != nil || p.ExclusionBand != nil {
		s.stateMu.Lock()
		t, band := s.display, s.band
		s.stateMu.Unlock()
		if p.Display != nil {
			if !p.Display.Valid() {
				return nil, invalidParams("display must have a positive width and height")
			}
			t = *p.Display
		}
		if p.ExclusionBand != nil {
			if *p.ExclusionBand < 0 {
				return nil, invalidParams("exclusion_band must be >= 0")
			}
			band = *p.ExclusionBand
		}
		s.SetDisplay(t, band)
	}

	return s.StartScan(ctx, p.Expected), nil
}

func (s *Server) handleScanStop(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return s.StopScan(), nil
}

func (s *Server) handleScanFinish(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return s.FinishScan(ctx)
}

func (s *Server) handleScanMissing(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return s.ScanMissing(ctx)
}

// === Frame Handlers ===

type frameParams struct {
	Path      string     `json:"path"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (p frameParams) validate() error {
	if p.Path == "" {
		return invalidParams("path is required")
	}
	return nil
}

func (s *Server) handleFrameSubmit(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p frameParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	img, err := s.cache.Load(p.Path)
	if err != nil {
		return nil, err
	}
	s.stateMu.Lock()
	if s.lastPath != "" && s.lastPath != p.Path {
		s.cache.Evict(s.lastPath)
	}
	s.lastPath = p.Path
	s.stateMu.Unlock()

	var ts time.Time
	if p.Timestamp != nil {
		ts = *p.Timestamp
	}
	return s.SubmitFrame(ctx, img, ts), nil
}

func (s *Server) handleFrameDescribe(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p frameParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(p.Path)
	if err != nil {
		return nil, err
	}
	return imaging.DescribeFrame(p.Path, img)
}

// === Track Handlers ===

// TrackView is a track as presented to clients.
type TrackView struct {
	track.Track
	Display geometry.DisplayRect `json:"display"`
	AgeMs   float64              `json:"age_ms"`
}

func (s *Server) handleTracksList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	now := s.clock.Now()
	tracks := s.engine.Refresh(now)

	s.stateMu.Lock()
	t := s.display
	s.stateMu.Unlock()

	views := make([]TrackView, 0, len(tracks))
	for _, tr := range tracks {
		views = append(views, TrackView{
			Track:   tr,
			Display: geometry.ToDisplayRect(tr.Region, t),
			AgeMs:   float64(tr.Age(now)) / float64(time.Millisecond),
		})
	}
	return map[string]interface{}{
		"scanning": s.engine.Scanning(),
		"tracks":   views,
	}, nil
}

// StatsView combines engine counters with the current round.
type StatsView struct {
	Engine       fusion.Stats    `json:"engine"`
	Session      *session.Result `json:"session,omitempty"`
	CachedFrames int             `json:"cached_frames"`
}

func (s *Server) handleEngineStats(ctx context.Context, params json.RawMessage) (interface{}, error) {
	v := StatsView{
		Engine:       s.engine.Stats(),
		CachedFrames: s.cache.Len(),
	}
	if sess := s.current.Load(); sess != nil {
		res := sess.Result()
		v.Session = &res
	}
	return v, nil
}

// === Session Handlers ===

type sessionGetParams struct {
	ID string `json:"id"`
}

func (s *Server) handleSessionGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p sessionGetParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	cur := s.current.Load()
	if p.ID == "" {
		if cur != nil {
			return cur.Result(), nil
		}
		if s.store == nil {
			return nil, ErrNoSession
		}
		return s.store.Latest(ctx)
	}

	id, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, invalidParams("invalid session id %q: %v", p.ID, err)
	}
	if cur != nil && cur.ID() == id {
		return cur.Result(), nil
	}
	if s.store == nil {
		return nil, ErrNoSession
	}
	return s.store.Get(ctx, id)
}

type sessionListParams struct {
	Limit int `json:"limit"`
}

func (s *Server) handleSessionList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	p := sessionListParams{Limit: 20}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if s.store == nil {
		return map[string]interface{}{"sessions": []session.Result{}}, nil
	}
	list, err := s.store.List(ctx, p.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"sessions": list}, nil
}

func isDigits(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
