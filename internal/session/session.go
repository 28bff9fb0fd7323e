// Package session provides the in-process conversation store.
//
// A session is keyed by an opaque caller-supplied identifier and holds a
// bounded window of recent turns plus a small amount of derived state used to
// resolve follow-up questions (currently the profile IDs of the last result).
//
// Sessions are created on first reference and live for the process lifetime.
// The store is safe for concurrent use, but no per-session lock is held across
// a whole request: two concurrent requests against the same session interleave
// with last-writer-wins semantics.
package session

import (
	"sync"

	"github.com/oceanlab/argonaut/internal/log"
)

// DefaultID is the session identifier used when the caller supplies none.
const DefaultID = "default"

// DefaultWindow is the default number of turns retained per session.
const DefaultWindow = 5

// Role identifies the author of a turn.
type Role string

// Turn roles. Only these two are stored; tool traffic never enters history.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable conversation entry.
type Turn struct {
	Role Role
	Text string
}

// state is the per-session record. Turns are ordered oldest first.
type state struct {
	turns          []Turn
	lastProfileIDs []int64
}

// Store keeps bounded conversation history and follow-up state per session.
type Store struct {
	mu       sync.Mutex
	window   int
	sessions map[string]*state
	logger   log.Logger
}

// NewStore creates a session store retaining at most window turns per session.
// A window smaller than 1 falls back to DefaultWindow.
func NewStore(window int, logger log.Logger) *Store {
	if window < 1 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		window:   window,
		sessions: make(map[string]*state),
		logger:   logger,
	}
}

// Normalize maps an empty session identifier to DefaultID.
func Normalize(id string) string {
	if id == "" {
		return DefaultID
	}
	return id
}

// get returns the session record, creating it on first reference.
// Callers must hold s.mu.
func (s *Store) get(id string) *state {
	st, ok := s.sessions[id]
	if !ok {
		st = &state{}
		s.sessions[id] = st
		s.logger.Debug("created session", "session_id", id)
	}
	return st
}

// Turns returns a copy of the session's history, oldest first.
func (s *Store) Turns(id string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(Normalize(id))
	out := make([]Turn, len(st.turns))
	copy(out, st.turns)
	return out
}

// Append adds turns in order, evicting the oldest once the window is exceeded.
func (s *Store) Append(id string, turns ...Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(Normalize(id))
	st.turns = append(st.turns, turns...)
	if n := len(st.turns); n > s.window {
		st.turns = append(st.turns[:0:0], st.turns[n-s.window:]...)
	}
}

// LastProfileIDs returns the profile identifiers stored by the previous
// result, or nil if none were recorded.
func (s *Store) LastProfileIDs(id string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(Normalize(id))
	if len(st.lastProfileIDs) == 0 {
		return nil
	}
	out := make([]int64, len(st.lastProfileIDs))
	copy(out, st.lastProfileIDs)
	return out
}

// SetLastProfileIDs records the profile identifiers observed in a result so
// follow-up questions ("where are they located") can resolve them.
// An empty slice clears the state.
func (s *Store) SetLastProfileIDs(id string, ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(Normalize(id))
	if len(ids) == 0 {
		st.lastProfileIDs = nil
		return
	}
	st.lastProfileIDs = append(st.lastProfileIDs[:0:0], ids...)
}
