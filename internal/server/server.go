package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ironsheep/numscan/internal/config"
	"github.com/ironsheep/numscan/internal/fusion"
	"github.com/ironsheep/numscan/internal/geometry"
	"github.com/ironsheep/numscan/internal/imaging"
	"github.com/ironsheep/numscan/internal/monitoring"
	"github.com/ironsheep/numscan/internal/session"
	"github.com/ironsheep/numscan/internal/timeutil"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeHandlerFailed  = -32000
)

// SessionStore persists finished rounds. *sqlite.SessionStore satisfies it.
type SessionStore interface {
	Save(ctx context.Context, res session.Result) error
	Get(ctx context.Context, id uuid.UUID) (session.Result, error)
	Latest(ctx context.Context) (session.Result, error)
	List(ctx context.Context, limit int) ([]session.Result, error)
}

// Config wires the server to its capabilities.
type Config struct {
	Detector fusion.Detector
	Tracker  fusion.Tracker   // May be nil
	Store    SessionStore     // May be nil; rounds are then kept in memory only
	Tuning   *config.TuningConfig
	Clock    timeutil.Clock
	Version  string
}

// Server handles JSON-RPC communication and owns the scan engine.
type Server struct {
	engine  *fusion.Engine
	store   SessionStore
	cache   *imaging.FrameCache
	clock   timeutil.Clock
	version string

	current atomic.Pointer[session.Session]
	seq     atomic.Uint64

	// stateMu guards the presentation state read by Emit. It is never held
	// while calling into the engine.
	stateMu   sync.Mutex
	display   geometry.DisplayTransform
	band      float64
	lastFrame image.Image
	lastPath  string

	writeMu sync.Mutex
	out     *json.Encoder
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a server with an idle engine.
func New(cfg Config) *Server {
	tuning := cfg.Tuning
	if tuning == nil {
		tuning = config.DefaultTuningConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	fcfg := fusion.ConfigFromTuning(tuning)
	s := &Server{
		store:   cfg.Store,
		cache:   imaging.NewFrameCache(),
		clock:   clock,
		version: version,
		display: fcfg.Display,
		band:    fcfg.ExclusionBand,
		out:     json.NewEncoder(io.Discard),
	}
	s.engine = fusion.New(fcfg, cfg.Detector, cfg.Tracker, s, fusion.WithClock(clock))
	return s
}

// Engine exposes the scan engine, mainly for replay drivers.
func (s *Server) Engine() *fusion.Engine {
	return s.engine
}

// Run serves requests from stdin, writing responses and notifications to stdout.
func (s *Server) Run() error {
	return s.Serve(context.Background(), os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r until EOF.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.SetOutput(w)

	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			monitoring.Logf("Failed to parse request: %v", err)
			s.write(s.errorResponse(nil, codeParseError, "Parse error", err.Error()))
			continue
		}

		if resp := s.handleRequest(ctx, &req); resp != nil {
			s.write(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// write encodes one message; notifications and responses share the encoder.
func (s *Server) write(v interface{}) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.out.Encode(v); err != nil {
		monitoring.Logf("Failed to encode message: %v", err)
	}
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	case "methods/list":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: map[string]interface{}{
				"methods": GetMethodDefinitions(),
			},
		}
	}

	h, ok := s.handlers()[req.Method]
	if !ok {
		return s.errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), "")
	}
	result, err := h(ctx, req.Params)
	if err != nil {
		var pe *paramsError
		if errors.As(err, &pe) {
			return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", pe.Error())
		}
		return s.errorResponse(req.ID, codeHandlerFailed, "Method execution failed", err.Error())
	}
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"methods":       map[string]interface{}{},
				"notifications": notificationMethods(),
			},
			"serverInfo": map[string]interface{}{
				"name":    "numscan",
				"version": s.version,
			},
		},
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	e := &MCPError{
		Code:    code,
		Message: message,
	}
	if data != "" {
		e.Data = data
	}
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   e,
	}
}
