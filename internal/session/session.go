package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/numscan/internal/fusion"
	"github.com/ironsheep/numscan/internal/timeutil"
)

var (
	// ErrClosed is returned when closing a session twice.
	ErrClosed = errors.New("session: already closed")

	// ErrNothingMissing is returned by ScanMissing when every expected value
	// was collected, or the round was open world.
	ErrNothingMissing = errors.New("session: no missing values")
)

// Result is the persisted outcome of one round.
type Result struct {
	SessionID        uuid.UUID `json:"session_id"`
	ParentID         uuid.UUID `json:"parent_id,omitempty"`
	Round            int       `json:"round"`
	Numbers          []string  `json:"numbers"`
	CollectedNumbers []string  `json:"collected_numbers"`
	MissingNumbers   []string  `json:"missing_numbers"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at"`
}

// Empty reports whether the round neither expected nor collected anything.
func (r Result) Empty() bool {
	return len(r.Numbers) == 0 && len(r.CollectedNumbers) == 0
}

// Session tracks one scanning round. It is safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	id        uuid.UUID
	parentID  uuid.UUID
	round     int
	clock     timeutil.Clock
	expected  map[string]struct{}
	collected map[string]struct{}
	startedAt time.Time
	endedAt   time.Time
	closed    bool
}

// New starts a round. An empty expected list means open world.
func New(expected []string, clock timeutil.Clock) *Session {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s := &Session{
		id:        uuid.New(),
		round:     1,
		clock:     clock,
		expected:  make(map[string]struct{}, len(expected)),
		collected: make(map[string]struct{}),
		startedAt: clock.Now(),
	}
	for _, v := range expected {
		if v != "" {
			s.expected[v] = struct{}{}
		}
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Round returns 1 for a fresh session and increments for each ScanMissing.
func (s *Session) Round() int {
	return s.round
}

// Record adds value to the collected set. It returns true only the first time
// a value is recorded in an open session.
func (s *Session) Record(value string) bool {
	if value == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, ok := s.collected[value]; ok {
		return false
	}
	s.collected[value] = struct{}{}
	return true
}

// Observe records ValueCollected events. It satisfies fusion.Sink through
// fusion.SinkFunc(s.Observe).
func (s *Session) Observe(e fusion.Event) {
	if e.Kind == fusion.ValueCollected {
		s.Record(e.Value)
	}
}

// Expected returns the sorted expected values.
func (s *Session) Expected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedNumbers(s.expected)
}

// Collected returns the sorted collected values.
func (s *Session) Collected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedNumbers(s.collected)
}

// Missing returns expected values not yet collected. Always empty in open
// world.
func (s *Session) Missing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missingLocked()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close ends the round and returns its Result.
func (s *Session) Close() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Result{}, ErrClosed
	}
	s.closed = true
	s.endedAt = s.clock.Now()
	return s.resultLocked(), nil
}

// Result returns the round's current outcome without closing it.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultLocked()
}

// ScanMissing closes the session if needed and starts a new round whose
// expected set is this round's missing values.
func (s *Session) ScanMissing() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.endedAt = s.clock.Now()
	}
	missing := s.missingLocked()
	if len(missing) == 0 {
		return nil, ErrNothingMissing
	}
	next := New(missing, s.clock)
	next.parentID = s.id
	next.round = s.round + 1
	return next, nil
}

func (s *Session) resultLocked() Result {
	return Result{
		SessionID:        s.id,
		ParentID:         s.parentID,
		Round:            s.round,
		Numbers:          sortedNumbers(s.expected),
		CollectedNumbers: sortedNumbers(s.collected),
		MissingNumbers:   s.missingLocked(),
		StartedAt:        s.startedAt,
		EndedAt:          s.endedAt,
	}
}

func (s *Session) missingLocked() []string {
	missing := make(map[string]struct{})
	for v := range s.expected {
		if _, ok := s.collected[v]; !ok {
			missing[v] = struct{}{}
		}
	}
	return sortedNumbers(missing)
}

// sortedNumbers orders digit strings numerically: shorter first, then
// lexically.
func sortedNumbers(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) < len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}
