// Package session holds the sidecar's process-wide state: whether a trusted
// script has been loaded, and which URL it was loaded from.
package session

import (
	"errors"
	"strings"
	"sync"
)

// ErrEmptySource is returned when initializing with an empty script source.
var ErrEmptySource = errors.New("empty script source")

// State is created once at process start and mutated only by Initialize.
// The allowed script source is non-empty exactly when the state is
// initialized.
type State struct {
	mu                  sync.RWMutex
	initialized         bool
	allowedScriptSource string
}

// Snapshot is a point-in-time copy of State.
type Snapshot struct {
	Initialized         bool   `json:"initialized"`
	AllowedScriptSource string `json:"allowed_script_source,omitempty"`
}

// New returns an uninitialized state.
func New() *State {
	return &State{}
}

// Initialized reports whether a script source has been accepted.
func (s *State) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// AllowedScriptSource returns the current trusted script URL, or "".
func (s *State) AllowedScriptSource() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowedScriptSource
}

// Initialize records source as the only trusted script and marks the state
// ready. A later call replaces the previous source. It returns the
// normalized source.
func (s *State) Initialize(source string) (string, error) {
	if source == "" {
		return "", ErrEmptySource
	}
	normalized := NormalizeScriptSource(source)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	s.allowedScriptSource = normalized
	return normalized, nil
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Initialized:         s.initialized,
		AllowedScriptSource: s.allowedScriptSource,
	}
}

// NormalizeScriptSource turns a protocol-relative URL into an https one.
func NormalizeScriptSource(source string) string {
	if strings.HasPrefix(source, "//") {
		return "https:" + source
	}
	return source
}
