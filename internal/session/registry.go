// Package session tracks one logical conversation scope per connected
// client: its identity, language and TTS preference.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

const DefaultLanguage = "english"

type Session struct {
	ID           string     `json:"session_id"`
	Label        string     `json:"label"`
	Language     string     `json:"language"`
	TTSEnabled   bool       `json:"tts_enabled"`
	Interactions int        `json:"interactions"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// Registry maps connection identity to session record. Only the gateway
// mutates it, in response to connection and message events.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create allocates a fresh session for a connection: generated id, a
// human-decipherable label, default language, TTS on.
func (r *Registry) Create(connID string) *Session {
	now := time.Now().UTC()
	id := uuid.NewString()
	s := &Session{
		ID:         id,
		Label:      fmt.Sprintf("session_%s_%s", now.Format("20060102_150405"), id[:8]),
		Language:   DefaultLanguage,
		TTSEnabled: true,
		StartedAt:  now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = s
	return clone(s)
}

func (r *Registry) Get(connID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (r *Registry) SetLanguage(connID, language string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return ErrNotFound
	}
	s.Language = language
	return nil
}

func (r *Registry) SetTTS(connID string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return ErrNotFound
	}
	s.TTSEnabled = enabled
	return nil
}

func (r *Registry) BumpInteractions(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return ErrNotFound
	}
	s.Interactions++
	return nil
}

// Remove marks the session ended and drops the connection's record.
func (r *Registry) Remove(connID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return nil, ErrNotFound
	}
	now := time.Now().UTC()
	s.EndedAt = &now
	delete(r.sessions, connID)
	return clone(s), nil
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
