// Package store persists the conversation log: sessions, conversation
// entries and language-switch events.
package store

import (
	"context"
	"time"
)

// Entry is one exchanged turn. Append-only once written.
type Entry struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Timestamp   time.Time `json:"timestamp"`
	UserInput   string    `json:"user_input"`
	BotResponse string    `json:"bot_response"`
	Language    string    `json:"language"`
	Confidence  float64   `json:"confidence_score"`
}

// Switch records one accepted language change. Append-only.
type Switch struct {
	SessionID    string    `json:"session_id"`
	Timestamp    time.Time `json:"timestamp"`
	FromLanguage string    `json:"from_language"`
	ToLanguage   string    `json:"to_language"`
}

// Statistics summarizes the stored log.
type Statistics struct {
	TotalSessions           int            `json:"total_sessions"`
	TotalConversations      int            `json:"total_conversations"`
	ConversationsByLanguage map[string]int `json:"conversations_by_language"`
}

// Store is the conversation log collaborator.
type Store interface {
	StartSession(ctx context.Context, sessionID string) error
	EndSession(ctx context.Context, sessionID string) error
	AddConversation(ctx context.Context, entry Entry) error
	LogLanguageSwitch(ctx context.Context, sw Switch) error
	SessionHistory(ctx context.Context, sessionID string) ([]Entry, error)
	Statistics(ctx context.Context) (Statistics, error)
	CleanupOldSessions(ctx context.Context, olderThan time.Duration) error
	Close() error
}
