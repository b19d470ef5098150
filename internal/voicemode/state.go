// Package voicemode holds the process-wide voice-mode flag. Only the
// wake-word detection and timeout paths (plus an explicit disable from
// the gateway) mutate it; everyone else reads snapshots.
package voicemode

import (
	"sync"
	"time"
)

// Snapshot is a read-only copy of the voice-mode state.
type Snapshot struct {
	Enabled      bool      `json:"enabled"`
	LastActivity time.Time `json:"last_activity"`
}

type State struct {
	mu           sync.Mutex
	enabled      bool
	lastActivity time.Time
}

func NewState() *State {
	return &State{lastActivity: time.Now().UTC()}
}

// Set updates the flag and reports whether the value changed. Re-enabling
// while already listening refreshes activity but is not a transition.
func (s *State) Set(enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now().UTC()
	if s.enabled == enabled {
		return false
	}
	s.enabled = enabled
	return true
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Enabled: s.enabled, LastActivity: s.lastActivity}
}
