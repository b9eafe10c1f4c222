package server

import (
	"encoding/json"
	"io"

	"github.com/ironsheep/numscan/internal/fusion"
	"github.com/ironsheep/numscan/internal/geometry"
	"github.com/ironsheep/numscan/internal/imaging"
	"github.com/ironsheep/numscan/internal/monitoring"
)

// notificationNames maps engine events to JSON-RPC notification methods.
var notificationNames = map[fusion.EventKind]string{
	fusion.TrackAppeared:  "track/appeared",
	fusion.TrackUpdated:   "track/updated",
	fusion.TrackRemoved:   "track/removed",
	fusion.ValueCollected: "value/collected",
}

func notificationMethods() []string {
	return []string{"track/appeared", "track/updated", "track/removed", "value/collected"}
}

// EventParams is the params payload of an event notification.
type EventParams struct {
	fusion.Event

	// LabelColor is a hex color that contrasts with the frame behind the
	// label. Empty when no frame is available.
	LabelColor string `json:"label_color,omitempty"`

	SessionID string `json:"session_id,omitempty"`
}

// SetOutput directs notifications and responses to w.
func (s *Server) SetOutput(w io.Writer) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.out = json.NewEncoder(w)
}

// Emit implements fusion.Sink. It records collections into the current
// session and writes a notification. Emit runs on the engine's delivery
// path and never calls back into the engine.
func (s *Server) Emit(e fusion.Event) {
	params := EventParams{Event: e}
	if sess := s.current.Load(); sess != nil {
		sess.Observe(e)
		params.SessionID = sess.ID().String()
	}

	if e.Kind == fusion.TrackAppeared || e.Kind == fusion.TrackUpdated {
		params.LabelColor = s.labelColor(e.Display)
	}

	method, ok := notificationNames[e.Kind]
	if !ok {
		return
	}
	s.write(&MCPNotification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
}

// labelColor samples the last submitted frame under the event's region.
func (s *Server) labelColor(d geometry.DisplayRect) string {
	s.stateMu.Lock()
	img := s.lastFrame
	t := s.display
	s.stateMu.Unlock()
	if img == nil {
		return ""
	}

	c, err := imaging.LabelColor(img, geometry.ToNormalizedRect(d, t))
	if err != nil {
		monitoring.Debugf("label color: %v", err)
		return ""
	}
	return c.Hex()
}
