package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process conversation log for local/dev use.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionRow
	entries  []Entry
	switches []Switch
}

type sessionRow struct {
	startedAt    time.Time
	endedAt      time.Time
	interactions int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*sessionRow)}
}

func (s *InMemoryStore) StartSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		return fmt.Errorf("session %s already started", sessionID)
	}
	s.sessions[sessionID] = &sessionRow{startedAt: time.Now().UTC()}
	return nil
}

func (s *InMemoryStore) EndSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	row.endedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) AddConversation(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.entries = append(s.entries, entry)
	if row, ok := s.sessions[entry.SessionID]; ok {
		row.interactions++
	}
	return nil
}

func (s *InMemoryStore) LogLanguageSwitch(_ context.Context, sw Switch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sw.Timestamp.IsZero() {
		sw.Timestamp = time.Now().UTC()
	}
	s.switches = append(s.switches, sw)
	return nil
}

func (s *InMemoryStore) SessionHistory(_ context.Context, sessionID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Statistics(_ context.Context) (Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Statistics{
		TotalSessions:           len(s.sessions),
		TotalConversations:      len(s.entries),
		ConversationsByLanguage: make(map[string]int),
	}
	for _, e := range s.entries {
		stats.ConversationsByLanguage[e.Language]++
	}
	return stats, nil
}

func (s *InMemoryStore) CleanupOldSessions(_ context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	s.mu.Lock()
	defer s.mu.Unlock()

	stale := make(map[string]bool)
	for id, row := range s.sessions {
		if row.startedAt.Before(cutoff) {
			stale[id] = true
			delete(s.sessions, id)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	kept := s.entries[:0]
	for _, e := range s.entries {
		if !stale[e.SessionID] {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

// Entries returns a copy of the recorded conversation entries, for tests.
func (s *InMemoryStore) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Switches returns a copy of the recorded language switches, for tests.
func (s *InMemoryStore) Switches() []Switch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Switch, len(s.switches))
	copy(out, s.switches)
	return out
}
